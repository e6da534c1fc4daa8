package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"personahub/pkg/domain"
)

// TieredStore prefers the primary (Postgres) store and falls back to the
// file store when the primary fails. A degraded store retries the primary on
// every call, so a recovered database is picked up without a restart.
type TieredStore struct {
	mu       sync.Mutex
	primary  Store
	fallback Store
	degraded bool
}

// NewTieredStore wires the two tiers. primary may be nil when no database is
// configured; all traffic then goes to the fallback.
func NewTieredStore(primary, fallback Store) *TieredStore {
	return &TieredStore{primary: primary, fallback: fallback, degraded: primary == nil}
}

func (s *TieredStore) List(ctx context.Context) ([]domain.Persona, error) {
	var out []domain.Persona
	err := s.run(ctx, "list", func(tier Store) error {
		var err error
		out, err = tier.List(ctx)
		return err
	})
	return out, err
}

func (s *TieredStore) Get(ctx context.Context, uniqueID string) (domain.Persona, error) {
	var out domain.Persona
	err := s.run(ctx, "get", func(tier Store) error {
		var err error
		out, err = tier.Get(ctx, uniqueID)
		return err
	})
	return out, err
}

func (s *TieredStore) Create(ctx context.Context, p domain.Persona) error {
	return s.run(ctx, "create", func(tier Store) error {
		return tier.Create(ctx, p)
	})
}

func (s *TieredStore) Update(ctx context.Context, uniqueID string, p domain.Persona) error {
	return s.run(ctx, "update", func(tier Store) error {
		return tier.Update(ctx, uniqueID, p)
	})
}

func (s *TieredStore) Delete(ctx context.Context, uniqueID string) error {
	return s.run(ctx, "delete", func(tier Store) error {
		return tier.Delete(ctx, uniqueID)
	})
}

// Health reports the tier that is currently serving traffic.
func (s *TieredStore) Health(ctx context.Context) domain.HealthInfo {
	if p := s.currentPrimary(); p != nil {
		info := p.Health(ctx)
		if info.Connected {
			s.setDegraded(false)
			return info
		}
		s.setDegraded(true)
	}
	return s.fallback.Health(ctx)
}

// run executes op against the primary first, falling back on any error other
// than ErrNotFound. Not-found is an answer, not an outage.
func (s *TieredStore) run(ctx context.Context, name string, op func(Store) error) error {
	if p := s.currentPrimary(); p != nil {
		err := op(p)
		if err == nil || errors.Is(err, ErrNotFound) {
			s.setDegraded(false)
			return err
		}
		s.setDegraded(true)
		slog.Warn("primary store failed, using local fallback", "op", name, "err", err)
	}
	return op(s.fallback)
}

func (s *TieredStore) currentPrimary() Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primary
}

func (s *TieredStore) setDegraded(v bool) {
	s.mu.Lock()
	s.degraded = v
	s.mu.Unlock()
}

// Degraded reports whether the last primary call failed.
func (s *TieredStore) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}
