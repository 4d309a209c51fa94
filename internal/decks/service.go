package decks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lexicard/backend/internal/languages"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates the deck does not exist or is owned by someone else.
	ErrNotFound = errors.New("decks: not found")
	// ErrMissingLanguage indicates a create/update without both language codes.
	ErrMissingLanguage = errors.New("decks: source and target languages are required")

	errMissingDatabase = errors.New("decks: database connection required")
)

// Input carries the writable deck fields.
type Input struct {
	Name           string
	SourceLanguage string
	TargetLanguage string
}

// ServiceConfig describes the deck service dependencies.
type ServiceConfig struct {
	Database *gorm.DB
	Catalog  *languages.Catalog
	Logger   *zap.Logger
}

// Service owns deck CRUD, always scoped to the requesting user.
type Service struct {
	db      *gorm.DB
	catalog *languages.Catalog
	logger  *zap.Logger
}

// NewService constructs the deck service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, catalog: cfg.Catalog, logger: logger}, nil
}

// ListForUser returns the user's decks, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uint) ([]Deck, error) {
	var decks []Deck
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&decks).Error; err != nil {
		return nil, err
	}
	return decks, nil
}

// ForUser loads a single deck owned by the user.
func (s *Service) ForUser(ctx context.Context, userID, deckID uint) (Deck, error) {
	var deck Deck
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", deckID, userID).
		First(&deck).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Deck{}, ErrNotFound
	}
	if err != nil {
		return Deck{}, err
	}
	return deck, nil
}

// Create adds a deck for the user.
func (s *Service) Create(ctx context.Context, userID uint, input Input) (Deck, error) {
	source := strings.TrimSpace(input.SourceLanguage)
	target := strings.TrimSpace(input.TargetLanguage)
	if source == "" || target == "" {
		return Deck{}, ErrMissingLanguage
	}

	deck := Deck{
		UserID:         userID,
		Name:           strings.TrimSpace(input.Name),
		SourceLanguage: source,
		TargetLanguage: target,
	}
	if err := s.db.WithContext(ctx).Create(&deck).Error; err != nil {
		return Deck{}, err
	}
	return deck, nil
}

// Update rewrites the deck's fields; blank languages keep their value.
func (s *Service) Update(ctx context.Context, userID, deckID uint, input Input) (Deck, error) {
	deck, err := s.ForUser(ctx, userID, deckID)
	if err != nil {
		return Deck{}, err
	}

	if name := strings.TrimSpace(input.Name); name != "" {
		deck.Name = name
	}
	if source := strings.TrimSpace(input.SourceLanguage); source != "" {
		deck.SourceLanguage = source
	}
	if target := strings.TrimSpace(input.TargetLanguage); target != "" {
		deck.TargetLanguage = target
	}

	if err := s.db.WithContext(ctx).Save(&deck).Error; err != nil {
		return Deck{}, err
	}
	return deck, nil
}

// Delete removes the deck and its notes in one transaction.
func (s *Service) Delete(ctx context.Context, userID, deckID uint) error {
	deck, err := s.ForUser(ctx, userID, deckID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM notes WHERE deck_id = ?", deck.ID).Error; err != nil {
			return fmt.Errorf("delete deck notes: %w", err)
		}
		return tx.Delete(&Deck{}, deck.ID).Error
	})
}

// TranslationSupported reports whether both deck languages are in the catalog.
func (s *Service) TranslationSupported(ctx context.Context, deck Deck) (bool, error) {
	if s.catalog == nil {
		return false, nil
	}
	sourceKnown, err := s.catalog.Known(ctx, deck.SourceLanguage)
	if err != nil {
		return false, err
	}
	if !sourceKnown {
		return false, nil
	}
	return s.catalog.Known(ctx, deck.TargetLanguage)
}

// TargetHasTTS reports whether the deck's target language is in the catalog.
func (s *Service) TargetHasTTS(ctx context.Context, deck Deck) (bool, error) {
	if s.catalog == nil {
		return false, nil
	}
	return s.catalog.Known(ctx, deck.TargetLanguage)
}
