package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"personahub/pkg/domain"
)

func testPersona(name, uniqueID string) domain.Persona {
	return domain.Persona{
		ID:          domain.NewLocalID(),
		UniqueID:    uniqueID,
		Name:        name,
		WelcomeText: "Welcome!",
		APIKey:      "app-" + strings.Repeat("a", 24),
	}
}

func TestFileStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "chatbots.json"))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	if err := s.Create(ctx, testPersona("Sales Bot", "salesbot123")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, testPersona("Help Bot", "helpbot4567")); err != nil {
		t.Fatalf("create: %v", err)
	}

	personas, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(personas) != 2 || personas[0].Name != "Sales Bot" {
		t.Fatalf("list = %+v, want 2 entries in insertion order", personas)
	}

	got, err := s.Get(ctx, "helpbot4567")
	if err != nil || got.Name != "Help Bot" {
		t.Fatalf("get = %+v, %v", got, err)
	}

	updated := testPersona("Help Bot 2", "helpbot4567")
	if err := s.Update(ctx, "helpbot4567", updated); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err = s.Get(ctx, "helpbot4567")
	if err != nil || got.Name != "Help Bot 2" {
		t.Fatalf("get after update = %+v, %v", got, err)
	}

	if err := s.Delete(ctx, "salesbot123"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "salesbot123"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, "salesbot123"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestFileStoreHealth(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "chatbots.json"))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := s.Create(ctx, testPersona("Sales Bot", "salesbot123")); err != nil {
		t.Fatalf("create: %v", err)
	}
	info := s.Health(ctx)
	if !info.Connected || info.Database != domain.DatabaseLocalStorage || info.ChatbotCount != 1 {
		t.Fatalf("health = %+v", info)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chatbots.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := s.Create(ctx, testPersona("Sales Bot", "salesbot123")); err != nil {
		t.Fatalf("create: %v", err)
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	personas, err := reopened.List(ctx)
	if err != nil || len(personas) != 1 {
		t.Fatalf("list after reopen = %+v, %v", personas, err)
	}
}
