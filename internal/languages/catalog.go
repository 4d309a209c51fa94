// Package languages maintains the catalog of languages the providers support.
package languages

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lexicard/backend/internal/translate"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Language is one catalog entry. Deck language codes that resolve to a row
// here have translation and TTS support; codes that don't are custom.
type Language struct {
	ID        uint      `gorm:"column:id;primaryKey"`
	Code      string    `gorm:"column:code;size:32;not null;uniqueIndex"`
	Name      string    `gorm:"column:name;size:190;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing the catalog.
func (Language) TableName() string {
	return "languages"
}

// SupportedLanguageLister is the provider surface the catalog syncs from.
type SupportedLanguageLister interface {
	SupportedLanguages(ctx context.Context) ([]translate.SupportedLanguage, error)
}

var errMissingDatabase = errors.New("languages: database connection required")

// CatalogConfig describes the catalog's dependencies.
type CatalogConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Catalog reads and refreshes the language table.
type Catalog struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCatalog constructs a Catalog.
func NewCatalog(cfg CatalogConfig) (*Catalog, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{db: cfg.Database, logger: logger}, nil
}

// Known reports whether a language code is in the catalog.
func (c *Catalog) Known(ctx context.Context, code string) (bool, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return false, nil
	}
	var count int64
	if err := c.db.WithContext(ctx).
		Model(&Language{}).
		Where("code = ?", trimmed).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns the catalog ordered by display name.
func (c *Catalog) List(ctx context.Context) ([]Language, error) {
	var languages []Language
	if err := c.db.WithContext(ctx).Order("name ASC").Find(&languages).Error; err != nil {
		return nil, err
	}
	return languages, nil
}

// Sync pulls the provider's supported-language list and upserts it into the
// catalog. Returns the number of entries written.
func (c *Catalog) Sync(ctx context.Context, provider SupportedLanguageLister) (int, error) {
	supported, err := provider.SupportedLanguages(ctx)
	if err != nil {
		return 0, err
	}

	written := 0
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entry := range supported {
			code := strings.TrimSpace(entry.Code)
			if code == "" {
				continue
			}
			var existing Language
			lookupErr := tx.Where("code = ?", code).First(&existing).Error
			if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
				if createErr := tx.Create(&Language{Code: code, Name: entry.Name}).Error; createErr != nil {
					return createErr
				}
				written++
				continue
			}
			if lookupErr != nil {
				return lookupErr
			}
			if existing.Name != entry.Name {
				if updateErr := tx.Model(&Language{}).
					Where("code = ?", code).
					Update("name", entry.Name).Error; updateErr != nil {
					return updateErr
				}
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	c.logger.Info("language catalog synced", zap.Int("count", written))
	return written, nil
}
