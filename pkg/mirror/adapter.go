package mirror

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"personahub/pkg/domain"
)

// Keys used by the dashboard mirror. The timestamp records when the persona
// list was last refreshed from the service.
const (
	PersonaListKey   = "chatbots"
	ListTimestampKey = "chatbots_timestamp"
)

// retainOnQuota is how many of the most recent personas survive an eviction
// pass when the primary store runs out of room.
const retainOnQuota = 5

// Adapter is the persistent store adapter for the dashboard cache. Writes go
// to the primary store; on quota exhaustion it evicts old personas from the
// list collection and retries once, then degrades to the secondary ephemeral
// store. Storage failures are reported via logs and Degraded(), never raised
// to the caller.
type Adapter struct {
	mu        sync.Mutex
	primary   KV
	secondary KV
	// fellBack records keys whose latest value lives in the secondary store.
	fellBack map[string]bool
}

// NewAdapter wires the two tiers. secondary may be nil, in which case an
// in-memory store is created.
func NewAdapter(primary KV, secondary KV) *Adapter {
	if secondary == nil {
		secondary = NewMemKV()
	}
	return &Adapter{
		primary:   primary,
		secondary: secondary,
		fellBack:  make(map[string]bool),
	}
}

// Save serializes and stores value under key. Only serialization errors are
// returned; storage failures degrade to the secondary store.
func (a *Adapter) Save(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	err = a.primary.Set(key, data)
	if errors.Is(err, ErrQuotaExceeded) {
		retry := data
		if key == PersonaListKey {
			if trimmed, ok := trimPersonaList(data); ok {
				retry = trimmed
			}
		} else {
			a.evictStoredPersonas()
		}
		err = a.primary.Set(key, retry)
	}
	if err == nil {
		delete(a.fellBack, key)
		return nil
	}

	slog.Warn("mirror primary store failed, using ephemeral fallback", "key", key, "err", err)
	if err := a.secondary.Set(key, data); err != nil {
		slog.Error("mirror fallback store failed, value dropped", "key", key, "err", err)
	}
	a.fellBack[key] = true
	return nil
}

// Load deserializes the stored value for key into out. Missing keys and
// malformed stored data both return ErrNotFound.
func (a *Adapter) Load(key string, out any) error {
	a.mu.Lock()
	tier := a.primary
	if a.fellBack[key] {
		tier = a.secondary
	}
	a.mu.Unlock()

	data, err := tier.Get(key)
	if err != nil {
		return ErrNotFound
	}
	if err := json.Unmarshal(data, out); err != nil {
		return ErrNotFound
	}
	return nil
}

// Degraded reports whether any key currently lives in the ephemeral store.
func (a *Adapter) Degraded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.fellBack) > 0
}

// trimPersonaList keeps only the most recent personas of an encoded list.
// Returns false when the payload is not a persona list or needs no trim.
func trimPersonaList(data []byte) ([]byte, bool) {
	var personas []domain.Persona
	if err := json.Unmarshal(data, &personas); err != nil {
		return nil, false
	}
	if len(personas) <= retainOnQuota {
		return nil, false
	}
	trimmed := personas[len(personas)-retainOnQuota:]
	slog.Warn("mirror quota exceeded, evicting oldest cached personas",
		"kept", len(trimmed), "dropped", len(personas)-len(trimmed))
	out, err := json.Marshal(trimmed)
	if err != nil {
		return nil, false
	}
	return out, true
}

// evictStoredPersonas trims the stored persona list collection to free quota
// for other keys. Callers hold the adapter lock.
func (a *Adapter) evictStoredPersonas() {
	data, err := a.primary.Get(PersonaListKey)
	if err != nil {
		return
	}
	trimmed, ok := trimPersonaList(data)
	if !ok {
		// Malformed or already small; reclaim the space outright when the
		// stored payload is unreadable.
		var personas []domain.Persona
		if json.Unmarshal(data, &personas) != nil {
			_ = a.primary.Delete(PersonaListKey)
		}
		return
	}
	_ = a.primary.Set(PersonaListKey, trimmed)
}
