package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateAPIKey(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		valid bool
	}{
		{"valid minimal", "app-" + strings.Repeat("a", 24), true},
		{"valid long mixed", "app-Abc123Abc123Abc123Abc123Abc123", true},
		{"empty", "", false},
		{"too short", "app-abc", false},
		{"missing prefix", strings.Repeat("a", 28), false},
		{"bad characters", "app-" + strings.Repeat("a", 23) + "!", false},
		{"plain word", "abc", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAPIKey(tc.key)
			if tc.valid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.valid {
				var keyErr *APIKeyError
				if !errors.As(err, &keyErr) {
					t.Fatalf("expected *APIKeyError, got %v", err)
				}
			}
		})
	}
}

func TestPersonaValidateRequiresNameAndWelcome(t *testing.T) {
	p := Persona{APIKey: "app-" + strings.Repeat("a", 24), WelcomeText: "hi"}
	if err := p.Validate(); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	p.Name = "Sales Bot"
	p.WelcomeText = " "
	if err := p.Validate(); !errors.Is(err, ErrWelcomeRequired) {
		t.Fatalf("expected ErrWelcomeRequired, got %v", err)
	}
	p.WelcomeText = "Welcome!"
	if err := p.Validate(); err != nil {
		t.Fatalf("expected valid persona, got %v", err)
	}
}

func TestNewUniqueIDShapeAndCollisionAvoidance(t *testing.T) {
	id := NewUniqueID()
	if len(id) != uniqueIDLength {
		t.Fatalf("unique id length = %d, want %d", len(id), uniqueIDLength)
	}
	for _, r := range id {
		if !strings.ContainsRune(uniqueIDAlphabet, r) {
			t.Fatalf("unique id %q contains %q outside alphabet", id, r)
		}
	}

	taken := []Persona{{UniqueID: id}}
	fresh, err := NewUniqueIDAvoiding(taken)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if fresh == id {
		t.Fatalf("regenerated id collided with taken id %q", id)
	}
}
