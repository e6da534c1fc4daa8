package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"personahub/pkg/domain"
	"personahub/pkg/mirror"
	"personahub/pkg/personaclient"
)

// Service is the remote persona API the registry synchronizes against.
// *personaclient.Client satisfies it.
type Service interface {
	ListPersonas(ctx context.Context) ([]domain.Persona, error)
	GetPersona(ctx context.Context, uniqueID string) (domain.Persona, error)
	CreatePersona(ctx context.Context, p domain.Persona) (domain.Persona, error)
	UpdatePersona(ctx context.Context, uniqueID string, p domain.Persona) (domain.Persona, error)
	DeletePersona(ctx context.Context, uniqueID string) error
}

const refreshInterval = 10 * time.Second

// Registry keeps the working set of personas: the remote service is the
// source of truth, a mirror adapter preserves the last good list across
// restarts, and mutations apply optimistically before the remote call
// settles them.
type Registry struct {
	svc    Service
	mirror *mirror.Adapter
	logger *slog.Logger

	interval time.Duration

	mu       sync.Mutex
	personas []domain.Persona
	editing  bool
	stale    bool
}

type Option func(*Registry)

// WithRefreshInterval overrides the periodic background refresh cadence.
func WithRefreshInterval(d time.Duration) Option {
	return func(r *Registry) { r.interval = d }
}

func New(svc Service, mir *mirror.Adapter, logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		svc:      svc,
		mirror:   mir,
		logger:   logger,
		interval: refreshInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Personas returns a copy of the current working set.
func (r *Registry) Personas() []domain.Persona {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]domain.Persona, len(r.personas))
	copy(cp, r.personas)
	return cp
}

// Stale reports whether the working set came from the mirror rather than
// the remote service.
func (r *Registry) Stale() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stale
}

// SetEditing pauses background refreshes while a persona form is open so
// in-progress edits are not clobbered by a reload.
func (r *Registry) SetEditing(editing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.editing = editing
}

// Refresh replaces the working set from the remote service and persists it
// to the mirror. On remote failure it falls back to the mirrored list; when
// no usable mirror exists the set is emptied and the remote error returned.
func (r *Registry) Refresh(ctx context.Context) error {
	return r.refresh(ctx, false)
}

func (r *Registry) refresh(ctx context.Context, keepOnFailure bool) error {
	list, err := r.svc.ListPersonas(ctx)
	if err == nil {
		r.setPersonas(list, false)
		r.persist(list)
		return nil
	}
	if keepOnFailure {
		r.logger.Warn("background refresh failed, keeping current list", "error", err)
		return err
	}
	var cached []domain.Persona
	if r.mirror != nil {
		if loadErr := r.mirror.Load(mirror.PersonaListKey, &cached); loadErr != nil &&
			!errors.Is(loadErr, mirror.ErrNotFound) {
			r.logger.Warn("mirror load failed", "error", loadErr)
		}
	}
	if len(cached) > 0 {
		r.logger.Warn("remote unavailable, serving mirrored personas", "error", err, "count", len(cached))
		r.setPersonas(cached, true)
		return nil
	}
	r.setPersonas(nil, true)
	return err
}

// Run refreshes periodically until ctx is cancelled. Failures keep the last
// successful list visible, and cycles are skipped entirely while a form is
// being edited.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			editing := r.editing
			r.mu.Unlock()
			if editing {
				continue
			}
			_ = r.refresh(ctx, true)
		}
	}
}

// Upsert applies a create or update optimistically, then settles it against
// the remote service. A remote failure is re-verified with a direct lookup:
// if the persona made it through anyway the change is confirmed, otherwise
// the previous list is restored and a SyncError returned.
func (r *Registry) Upsert(ctx context.Context, p domain.Persona) (domain.Persona, error) {
	if err := p.Validate(); err != nil {
		return domain.Persona{}, &ValidationError{Err: err}
	}

	isUpdate := p.ID != ""

	r.mu.Lock()
	if p.ID == "" {
		p.ID = domain.NewLocalID()
	}
	if p.UniqueID == "" {
		uid, err := domain.NewUniqueIDAvoiding(r.personas)
		if err != nil {
			r.mu.Unlock()
			return domain.Persona{}, &ValidationError{Err: err}
		}
		p.UniqueID = uid
	}
	mut := NewMutation(r.personas)
	r.personas = upsertInto(r.personas, p)
	applied := r.personas
	r.mu.Unlock()
	r.persist(applied)

	var remoteErr error
	if isUpdate {
		_, remoteErr = r.svc.UpdatePersona(ctx, p.UniqueID, p)
	} else {
		_, remoteErr = r.svc.CreatePersona(ctx, p)
	}
	if remoteErr == nil {
		r.settle(mut.Confirm())
		return p, nil
	}

	// The call may have failed after the write landed. Trust a direct
	// lookup over the error.
	if _, getErr := r.svc.GetPersona(ctx, p.UniqueID); getErr == nil {
		r.logger.Warn("persona save reported an error but persisted", "unique_id", p.UniqueID, "error", remoteErr)
		r.settle(mut.Confirm())
		return p, nil
	}

	snapshot, revertErr := mut.Revert()
	r.settle(revertErr)
	r.setPersonas(snapshot, false)
	r.persist(snapshot)
	op := "create"
	if isUpdate {
		op = "update"
	}
	return domain.Persona{}, &SyncError{Op: op, UniqueID: p.UniqueID, Err: remoteErr}
}

// Remove deletes a persona optimistically, then verifies the deletion with
// a direct lookup. If the persona is still remotely present the working set
// is restored via a refresh and a SyncError returned.
func (r *Registry) Remove(ctx context.Context, id, uniqueID string) error {
	r.mu.Lock()
	mut := NewMutation(r.personas)
	r.personas = removeFrom(r.personas, id, uniqueID)
	applied := r.personas
	r.mu.Unlock()
	r.persist(applied)

	remoteErr := r.svc.DeletePersona(ctx, uniqueID)
	if remoteErr != nil && errors.Is(remoteErr, personaclient.ErrNotFound) {
		// Already gone remotely, nothing to reconcile.
		remoteErr = nil
	}

	if _, getErr := r.svc.GetPersona(ctx, uniqueID); getErr == nil {
		r.logger.Warn("persona still exists after delete, restoring", "unique_id", uniqueID, "error", remoteErr)
		_, revertErr := mut.Revert()
		r.settle(revertErr)
		if err := r.refresh(ctx, false); err != nil {
			return err
		}
		return &SyncError{Op: "delete", UniqueID: uniqueID, Err: remoteErr}
	}

	r.settle(mut.Confirm())
	if remoteErr != nil {
		r.logger.Warn("delete reported an error but persona is gone", "unique_id", uniqueID, "error", remoteErr)
	}
	return nil
}

// settle flags a double Confirm/Revert. Each mutation is settled exactly
// once, so anything here is a logic error worth surfacing.
func (r *Registry) settle(err error) {
	if err != nil {
		r.logger.Error("mutation settled twice", "error", err)
	}
}

func (r *Registry) setPersonas(list []domain.Persona, stale bool) {
	r.mu.Lock()
	r.personas = list
	r.stale = stale
	r.mu.Unlock()
}

func (r *Registry) persist(list []domain.Persona) {
	if r.mirror == nil {
		return
	}
	if err := r.mirror.Save(mirror.PersonaListKey, list); err != nil {
		r.logger.Warn("mirror save failed", "error", err)
		return
	}
	if err := r.mirror.Save(mirror.ListTimestampKey, time.Now().UnixMilli()); err != nil {
		r.logger.Warn("mirror timestamp save failed", "error", err)
	}
}

// upsertInto replaces the entry matching by id or uniqueId, or appends.
func upsertInto(list []domain.Persona, p domain.Persona) []domain.Persona {
	out := make([]domain.Persona, len(list))
	copy(out, list)
	for i, cur := range out {
		if (p.ID != "" && cur.ID == p.ID) || (p.UniqueID != "" && cur.UniqueID == p.UniqueID) {
			out[i] = p
			return out
		}
	}
	return append(out, p)
}

func removeFrom(list []domain.Persona, id, uniqueID string) []domain.Persona {
	out := make([]domain.Persona, 0, len(list))
	for _, cur := range list {
		if (id != "" && cur.ID == id) || (uniqueID != "" && cur.UniqueID == uniqueID) {
			continue
		}
		out = append(out, cur)
	}
	return out
}
