package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"personahub/pkg/domain"
)

// failingStore simulates an unreachable database.
type failingStore struct {
	err error
}

func (f *failingStore) List(context.Context) ([]domain.Persona, error) { return nil, f.err }
func (f *failingStore) Get(context.Context, string) (domain.Persona, error) {
	return domain.Persona{}, f.err
}
func (f *failingStore) Create(context.Context, domain.Persona) error         { return f.err }
func (f *failingStore) Update(context.Context, string, domain.Persona) error { return f.err }
func (f *failingStore) Delete(context.Context, string) error                 { return f.err }
func (f *failingStore) Health(context.Context) domain.HealthInfo {
	return domain.HealthInfo{Database: domain.DatabasePostgres, Connected: false}
}

func newFallback(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "chatbots.json"))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	return s
}

func TestTieredStoreFallsBackWhenPrimaryFails(t *testing.T) {
	ctx := context.Background()
	tiered := NewTieredStore(&failingStore{err: errors.New("connection refused")}, newFallback(t))

	if err := tiered.Create(ctx, testPersona("Sales Bot", "salesbot123")); err != nil {
		t.Fatalf("create should fall back to file store: %v", err)
	}
	if !tiered.Degraded() {
		t.Fatalf("store should be marked degraded after primary failure")
	}
	personas, err := tiered.List(ctx)
	if err != nil || len(personas) != 1 {
		t.Fatalf("list via fallback = %+v, %v", personas, err)
	}

	info := tiered.Health(ctx)
	if info.Database != domain.DatabaseLocalStorage || !info.Connected {
		t.Fatalf("health should report fallback tier, got %+v", info)
	}
}

func TestTieredStoreNotFoundDoesNotTriggerFallback(t *testing.T) {
	ctx := context.Background()
	fallback := newFallback(t)
	// Seed the fallback; a healthy primary that lacks the persona must still
	// answer not-found rather than silently reading the other tier.
	if err := fallback.Create(ctx, testPersona("Ghost", "ghostbot999")); err != nil {
		t.Fatalf("seed fallback: %v", err)
	}
	primary := newFallback(t)
	tiered := NewTieredStore(primary, fallback)

	if _, err := tiered.Get(ctx, "ghostbot999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from primary, got %v", err)
	}
	if tiered.Degraded() {
		t.Fatalf("not-found must not mark the store degraded")
	}
}

func TestTieredStoreWithoutPrimaryUsesFallback(t *testing.T) {
	ctx := context.Background()
	tiered := NewTieredStore(nil, newFallback(t))
	if err := tiered.Create(ctx, testPersona("Sales Bot", "salesbot123")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got, err := tiered.Get(ctx, "salesbot123"); err != nil || got.Name != "Sales Bot" {
		t.Fatalf("get = %+v, %v", got, err)
	}
}
