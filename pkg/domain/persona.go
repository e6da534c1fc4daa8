package domain

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// apiKeyFormat is the accepted credential shape for the conversational-AI
// backend: "app-" followed by at least 24 alphanumeric characters.
var apiKeyFormat = regexp.MustCompile(`^app-[a-zA-Z0-9]{24,}$`)

var (
	ErrNameRequired    = errors.New("persona name is required")
	ErrWelcomeRequired = errors.New("welcome text is required")
)

// APIKeyError reports a malformed backend credential.
type APIKeyError struct {
	Reason string
}

func (e *APIKeyError) Error() string {
	return "invalid api key: " + e.Reason
}

// ValidateAPIKey checks the backend credential format without contacting the
// backend.
func ValidateAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return &APIKeyError{Reason: "api key cannot be empty"}
	}
	if !apiKeyFormat.MatchString(key) {
		return &APIKeyError{Reason: "must start with 'app-' followed by at least 24 alphanumeric characters"}
	}
	return nil
}

// Validate checks the fields required before a persona may be saved.
func (p Persona) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrNameRequired
	}
	if strings.TrimSpace(p.WelcomeText) == "" {
		return ErrWelcomeRequired
	}
	return ValidateAPIKey(p.APIKey)
}

const uniqueIDLength = 10

const uniqueIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewUniqueID returns a random public token for shareable persona URLs.
func NewUniqueID() string {
	b := make([]byte, uniqueIDLength)
	for i := range b {
		b[i] = uniqueIDAlphabet[rand.Intn(len(uniqueIDAlphabet))]
	}
	return string(b)
}

// NewUniqueIDAvoiding regenerates until the token collides with none of the
// given personas. The token space makes more than a few attempts vanishingly
// unlikely; the bound guards against a pathological taken set.
func NewUniqueIDAvoiding(taken []Persona) (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		id := NewUniqueID()
		collision := false
		for _, p := range taken {
			if p.UniqueID == id {
				collision = true
				break
			}
		}
		if !collision {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique persona id after 100 attempts")
}

// NewLocalID returns the time-based local identity used for list operations.
func NewLocalID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}
