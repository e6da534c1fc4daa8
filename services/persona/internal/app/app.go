package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"personahub/pkg/domain"
	"personahub/pkg/storage"
	"personahub/pkg/store"
)

// ErrUploadsDisabled is returned when no object storage is configured.
var ErrUploadsDisabled = errors.New("asset uploads disabled: no object storage configured")

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL    string
	FallbackPath   string
	Store          store.Store
	Assets         storage.AssetStore
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// App is the persona service core: persona CRUD over the tiered store and
// branding asset uploads.
type App struct {
	store         store.Store
	assets        storage.AssetStore
	presignExpiry time.Duration
}

// New constructs the application. When a database URL is configured the
// store is Postgres with the JSON file as a fallback tier; without one the
// file store carries everything. Object storage is optional, uploads are
// rejected until it is configured.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		fileStore, err := store.NewFileStore(cfg.FallbackPath)
		if err != nil {
			return nil, fmt.Errorf("init file store: %w", err)
		}
		if cfg.DatabaseURL == "" {
			dataStore = fileStore
		} else {
			gormStore, err := store.NewGormStore(cfg.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("init postgres store: %w", err)
			}
			dataStore = store.NewTieredStore(gormStore, fileStore)
		}
	}

	assets := cfg.Assets
	if assets == nil && cfg.MinioEndpoint != "" {
		minioStore, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, fmt.Errorf("init minio store: %w", err)
		}
		assets = minioStore
	}

	return &App{
		store:         dataStore,
		assets:        assets,
		presignExpiry: 15 * time.Minute,
	}, nil
}

// ListPersonas returns all configured personas.
func (a *App) ListPersonas(ctx context.Context) ([]domain.Persona, error) {
	return a.store.List(ctx)
}

// GetPersona retrieves a persona by its public unique id.
func (a *App) GetPersona(ctx context.Context, uniqueID string) (domain.Persona, error) {
	return a.store.Get(ctx, uniqueID)
}

// CreatePersona validates and stores a new persona, assigning identifiers
// the caller left blank.
func (a *App) CreatePersona(ctx context.Context, p domain.Persona) (domain.Persona, error) {
	if err := p.Validate(); err != nil {
		return domain.Persona{}, err
	}
	if p.UniqueID == "" {
		existing, err := a.store.List(ctx)
		if err != nil {
			return domain.Persona{}, err
		}
		uid, err := domain.NewUniqueIDAvoiding(existing)
		if err != nil {
			return domain.Persona{}, err
		}
		p.UniqueID = uid
	}
	if p.ID == "" {
		p.ID = domain.NewLocalID()
	}
	if err := a.store.Create(ctx, p); err != nil {
		return domain.Persona{}, err
	}
	return p, nil
}

// UpdatePersona validates and replaces an existing persona.
func (a *App) UpdatePersona(ctx context.Context, uniqueID string, p domain.Persona) (domain.Persona, error) {
	if err := p.Validate(); err != nil {
		return domain.Persona{}, err
	}
	p.UniqueID = uniqueID
	if err := a.store.Update(ctx, uniqueID, p); err != nil {
		return domain.Persona{}, err
	}
	return p, nil
}

// DeletePersona removes a persona by unique id.
func (a *App) DeletePersona(ctx context.Context, uniqueID string) error {
	return a.store.Delete(ctx, uniqueID)
}

// Health describes the active storage backend.
func (a *App) Health(ctx context.Context) domain.HealthInfo {
	return a.store.Health(ctx)
}

// UploadAsset stores a branding file and returns its key and a pre-signed
// URL for immediate use.
func (a *App) UploadAsset(ctx context.Context, personaUniqueID, filename string, r io.Reader, size int64, contentType string) (string, string, error) {
	if a.assets == nil {
		return "", "", ErrUploadsDisabled
	}
	if filename == "" {
		return "", "", errors.New("filename required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := storage.AssetKey(personaUniqueID, filename)
	if err := a.assets.Put(ctx, key, r, size, contentType); err != nil {
		return "", "", fmt.Errorf("save asset: %w", err)
	}
	url, err := a.assets.PresignGet(ctx, key, a.presignExpiry)
	if err != nil {
		return "", "", fmt.Errorf("presign asset: %w", err)
	}
	return key, url, nil
}
