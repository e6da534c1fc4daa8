package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"personahub/pkg/domain"
)

// PersonaModel is the persona row. Branding (colors plus data-URL images,
// which can be large) lives in one JSONB column rather than a dozen text
// columns.
type PersonaModel struct {
	UniqueID     string `gorm:"primaryKey;column:unique_id"`
	LocalID      string `gorm:"column:local_id"`
	Name         string
	WelcomeText  string
	APIKey       string `gorm:"column:api_key"`
	AnalyticsURL string `gorm:"column:analytics_url"`
	Branding     datatypes.JSON
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type brandingFields struct {
	ChatLogoColor       string `json:"chatLogoColor"`
	ChatHeaderColor     string `json:"chatHeaderColor"`
	ChatBgGradientStart string `json:"chatBgGradientStart"`
	ChatBgGradientEnd   string `json:"chatBgGradientEnd"`
	ChatLogoImage       string `json:"chatLogoImage"`
	IconAvatarImage     string `json:"iconAvatarImage"`
	StaticImage         string `json:"staticImage"`
	BodyBackgroundImage string `json:"bodyBackgroundImage"`
}

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db  *gorm.DB
	dsn string
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&PersonaModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db, dsn: dsn}, nil
}

func (s *GormStore) List(ctx context.Context) ([]domain.Persona, error) {
	var rows []PersonaModel
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list personas: %w", err)
	}
	personas := make([]domain.Persona, 0, len(rows))
	for _, row := range rows {
		personas = append(personas, row.toDomain())
	}
	return personas, nil
}

func (s *GormStore) Get(ctx context.Context, uniqueID string) (domain.Persona, error) {
	var row PersonaModel
	err := s.db.WithContext(ctx).First(&row, "unique_id = ?", uniqueID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Persona{}, ErrNotFound
	}
	if err != nil {
		return domain.Persona{}, fmt.Errorf("get persona: %w", err)
	}
	return row.toDomain(), nil
}

func (s *GormStore) Create(ctx context.Context, p domain.Persona) error {
	row, err := toModel(p)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create persona: %w", err)
	}
	return nil
}

func (s *GormStore) Update(ctx context.Context, uniqueID string, p domain.Persona) error {
	row, err := toModel(p)
	if err != nil {
		return err
	}
	row.UniqueID = uniqueID
	res := s.db.WithContext(ctx).Model(&PersonaModel{}).
		Where("unique_id = ?", uniqueID).
		Updates(map[string]any{
			"local_id":      row.LocalID,
			"name":          row.Name,
			"welcome_text":  row.WelcomeText,
			"api_key":       row.APIKey,
			"analytics_url": row.AnalyticsURL,
			"branding":      row.Branding,
		})
	if res.Error != nil {
		return fmt.Errorf("update persona: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, uniqueID string) error {
	res := s.db.WithContext(ctx).Delete(&PersonaModel{}, "unique_id = ?", uniqueID)
	if res.Error != nil {
		return fmt.Errorf("delete persona: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Health(ctx context.Context) domain.HealthInfo {
	info := domain.HealthInfo{
		Database:         domain.DatabasePostgres,
		ConnectionString: redactDSN(s.dsn),
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&PersonaModel{}).Count(&count).Error; err != nil {
		return info
	}
	info.Connected = true
	info.ChatbotCount = int(count)
	return info
}

func (m PersonaModel) toDomain() domain.Persona {
	var branding brandingFields
	_ = json.Unmarshal(m.Branding, &branding)
	return domain.Persona{
		ID:                  m.LocalID,
		UniqueID:            m.UniqueID,
		Name:                m.Name,
		WelcomeText:         m.WelcomeText,
		APIKey:              m.APIKey,
		AnalyticsURL:        m.AnalyticsURL,
		ChatLogoColor:       branding.ChatLogoColor,
		ChatHeaderColor:     branding.ChatHeaderColor,
		ChatBgGradientStart: branding.ChatBgGradientStart,
		ChatBgGradientEnd:   branding.ChatBgGradientEnd,
		ChatLogoImage:       branding.ChatLogoImage,
		IconAvatarImage:     branding.IconAvatarImage,
		StaticImage:         branding.StaticImage,
		BodyBackgroundImage: branding.BodyBackgroundImage,
	}
}

func toModel(p domain.Persona) (PersonaModel, error) {
	branding, err := json.Marshal(brandingFields{
		ChatLogoColor:       p.ChatLogoColor,
		ChatHeaderColor:     p.ChatHeaderColor,
		ChatBgGradientStart: p.ChatBgGradientStart,
		ChatBgGradientEnd:   p.ChatBgGradientEnd,
		ChatLogoImage:       p.ChatLogoImage,
		IconAvatarImage:     p.IconAvatarImage,
		StaticImage:         p.StaticImage,
		BodyBackgroundImage: p.BodyBackgroundImage,
	})
	if err != nil {
		return PersonaModel{}, fmt.Errorf("marshal branding: %w", err)
	}
	return PersonaModel{
		UniqueID:     p.UniqueID,
		LocalID:      p.ID,
		Name:         p.Name,
		WelcomeText:  p.WelcomeText,
		APIKey:       p.APIKey,
		AnalyticsURL: p.AnalyticsURL,
		Branding:     datatypes.JSON(branding),
	}, nil
}

// redactDSN strips credentials from a postgres URL for health reporting.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	u.User = url.UserPassword("***", "***")
	return u.String()
}
