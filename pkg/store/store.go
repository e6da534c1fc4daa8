// Package store persists personas for the persona service. The primary
// backend is Postgres via GORM; a JSON-file store serves as a local fallback
// tier when the database is unreachable.
package store

import (
	"context"
	"errors"

	"personahub/pkg/domain"
)

// ErrNotFound is returned when no persona matches the given unique id.
var ErrNotFound = errors.New("persona not found")

// Store is the persona persistence contract.
type Store interface {
	List(ctx context.Context) ([]domain.Persona, error)
	Get(ctx context.Context, uniqueID string) (domain.Persona, error)
	Create(ctx context.Context, p domain.Persona) error
	Update(ctx context.Context, uniqueID string, p domain.Persona) error
	Delete(ctx context.Context, uniqueID string) error
	Health(ctx context.Context) domain.HealthInfo
}
