package notes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lexicard/backend/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates the note does not exist in the deck.
	ErrNotFound = errors.New("notes: not found")
	// ErrUnsupportedAudio indicates an audio upload that is not MPEG.
	ErrUnsupportedAudio = errors.New("notes: audio must be audio/mpeg")
	// ErrUnsupportedImage indicates an image upload that is not PNG or JPEG.
	ErrUnsupportedImage = errors.New("notes: image must be image/png or image/jpeg")
	// ErrAttachmentTooLarge indicates an upload over the per-slot size cap.
	ErrAttachmentTooLarge = errors.New("notes: attachment too large")
	// ErrNoAudio indicates a trim request against a note without MPEG audio.
	ErrNoAudio = errors.New("notes: no audio attached")
	// ErrInvalidDirection indicates a translate request with an unknown direction.
	ErrInvalidDirection = errors.New("notes: invalid direction, use either 'to_target' or 'to_source'")

	errMissingDatabase = errors.New("notes: database connection required")
	errMissingStore    = errors.New("notes: attachment store required")
)

// Translator is the translation provider surface the service depends on.
type Translator interface {
	Translate(ctx context.Context, text, sourceCode, targetCode string) (string, error)
}

// SpeechSynthesizer is the text-to-speech provider surface.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, languageCode, gender string) ([]byte, error)
}

// AudioTrimmer cuts a clip out of an audio stream.
type AudioTrimmer interface {
	Trim(ctx context.Context, input io.Reader, startMS, endMS int64) ([]byte, error)
}

// Input carries the writable text fields of a note.
type Input struct {
	SourceText   string
	TargetText   string
	Romanization string
}

// ServiceConfig describes the note service dependencies.
type ServiceConfig struct {
	Database   *gorm.DB
	Store      *storage.Store
	Translator Translator
	Speech     SpeechSynthesizer
	Trimmer    AudioTrimmer
	Logger     *zap.Logger
}

// Service owns note CRUD, attachments, and the provider-backed note
// operations. Callers resolve deck ownership before handing over a deck id.
type Service struct {
	db         *gorm.DB
	store      *storage.Store
	translator Translator
	speech     SpeechSynthesizer
	trimmer    AudioTrimmer
	logger     *zap.Logger
}

// NewService constructs the note service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		store:      cfg.Store,
		translator: cfg.Translator,
		speech:     cfg.Speech,
		trimmer:    cfg.Trimmer,
		logger:     logger,
	}, nil
}

// ListForDeck returns the deck's notes, oldest first.
func (s *Service) ListForDeck(ctx context.Context, deckID uint) ([]Note, error) {
	var notes []Note
	if err := s.db.WithContext(ctx).
		Where("deck_id = ?", deckID).
		Order("created_at ASC").
		Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

// ForDeck loads a single note belonging to the deck.
func (s *Service) ForDeck(ctx context.Context, deckID, noteID uint) (Note, error) {
	var note Note
	err := s.db.WithContext(ctx).
		Where("id = ? AND deck_id = ?", noteID, deckID).
		First(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Note{}, ErrNotFound
	}
	if err != nil {
		return Note{}, err
	}
	return note, nil
}

// Create adds a note to the deck.
func (s *Service) Create(ctx context.Context, deckID uint, input Input) (Note, error) {
	note := Note{
		DeckID:       deckID,
		SourceText:   input.SourceText,
		TargetText:   input.TargetText,
		Romanization: input.Romanization,
	}
	if err := s.db.WithContext(ctx).Create(&note).Error; err != nil {
		return Note{}, err
	}
	return note, nil
}

// Update rewrites the note's text fields.
func (s *Service) Update(ctx context.Context, deckID, noteID uint, input Input) (Note, error) {
	note, err := s.ForDeck(ctx, deckID, noteID)
	if err != nil {
		return Note{}, err
	}
	note.SourceText = input.SourceText
	note.TargetText = input.TargetText
	note.Romanization = input.Romanization
	if err := s.db.WithContext(ctx).Save(&note).Error; err != nil {
		return Note{}, err
	}
	return note, nil
}

// Delete removes the note and its attachment blobs.
func (s *Service) Delete(ctx context.Context, deckID, noteID uint) error {
	note, err := s.ForDeck(ctx, deckID, noteID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&Note{}, note.ID).Error; err != nil {
		return err
	}
	s.discardBlob(note.AudioBlob)
	s.discardBlob(note.ImageBlob)
	return nil
}

// AttachAudio validates and stores an MPEG audio upload, replacing any
// previous attachment.
func (s *Service) AttachAudio(ctx context.Context, deckID, noteID uint, data []byte, contentType string) (Note, error) {
	if normalizeContentType(contentType) != AudioContentType {
		return Note{}, ErrUnsupportedAudio
	}
	if len(data) > MaxAudioBytes {
		return Note{}, fmt.Errorf("%w: audio exceeds %d bytes", ErrAttachmentTooLarge, MaxAudioBytes)
	}
	return s.replaceAudio(ctx, deckID, noteID, data)
}

// AttachImage validates and stores a PNG or JPEG upload, replacing any
// previous attachment.
func (s *Service) AttachImage(ctx context.Context, deckID, noteID uint, data []byte, contentType string) (Note, error) {
	normalized := normalizeContentType(contentType)
	var extension string
	switch normalized {
	case "image/png":
		extension = ".png"
	case "image/jpeg":
		extension = ".jpg"
	default:
		return Note{}, ErrUnsupportedImage
	}
	if len(data) > MaxImageBytes {
		return Note{}, fmt.Errorf("%w: image exceeds %d bytes", ErrAttachmentTooLarge, MaxImageBytes)
	}

	note, err := s.ForDeck(ctx, deckID, noteID)
	if err != nil {
		return Note{}, err
	}

	blobName, err := s.store.Put(data, extension)
	if err != nil {
		return Note{}, err
	}

	previous := note.ImageBlob
	note.ImageBlob = blobName
	note.ImageContentKind = normalized
	if err := s.db.WithContext(ctx).Save(&note).Error; err != nil {
		s.discardBlob(blobName)
		return Note{}, err
	}
	s.discardBlob(previous)
	return note, nil
}

// RemoveAudio drops the note's audio attachment.
func (s *Service) RemoveAudio(ctx context.Context, deckID, noteID uint) (Note, error) {
	note, err := s.ForDeck(ctx, deckID, noteID)
	if err != nil {
		return Note{}, err
	}
	previous := note.AudioBlob
	note.AudioBlob = ""
	note.AudioContentKind = ""
	if err := s.db.WithContext(ctx).Save(&note).Error; err != nil {
		return Note{}, err
	}
	s.discardBlob(previous)
	return note, nil
}

// RemoveImage drops the note's image attachment.
func (s *Service) RemoveImage(ctx context.Context, deckID, noteID uint) (Note, error) {
	note, err := s.ForDeck(ctx, deckID, noteID)
	if err != nil {
		return Note{}, err
	}
	previous := note.ImageBlob
	note.ImageBlob = ""
	note.ImageContentKind = ""
	if err := s.db.WithContext(ctx).Save(&note).Error; err != nil {
		return Note{}, err
	}
	s.discardBlob(previous)
	return note, nil
}

// Translate runs the provider in the requested direction and writes the
// result back onto the note.
func (s *Service) Translate(ctx context.Context, deckID, noteID uint, direction Direction, sourceLanguage, targetLanguage string) (Note, error) {
	note, err := s.ForDeck(ctx, deckID, noteID)
	if err != nil {
		return Note{}, err
	}

	switch direction {
	case DirectionToTarget:
		translated, translateErr := s.translator.Translate(ctx, note.SourceText, sourceLanguage, targetLanguage)
		if translateErr != nil {
			return Note{}, translateErr
		}
		note.TargetText = translated
	case DirectionToSource:
		translated, translateErr := s.translator.Translate(ctx, note.TargetText, targetLanguage, sourceLanguage)
		if translateErr != nil {
			return Note{}, translateErr
		}
		note.SourceText = translated
	default:
		return Note{}, ErrInvalidDirection
	}

	if err := s.db.WithContext(ctx).Save(&note).Error; err != nil {
		return Note{}, err
	}
	return note, nil
}

// SynthesizeAudio renders the note's target text as speech and attaches it.
func (s *Service) SynthesizeAudio(ctx context.Context, deckID, noteID uint, languageCode string) (Note, error) {
	note, err := s.ForDeck(ctx, deckID, noteID)
	if err != nil {
		return Note{}, err
	}

	audioBytes, err := s.speech.Synthesize(ctx, note.TargetText, languageCode, "NEUTRAL")
	if err != nil {
		return Note{}, err
	}
	return s.replaceAudioRow(ctx, note, audioBytes)
}

// TrimAudio cuts the attached audio to the millisecond range and stores the
// clipped copy in place of the original.
func (s *Service) TrimAudio(ctx context.Context, deckID, noteID uint, startMS, endMS int64) (Note, error) {
	note, err := s.ForDeck(ctx, deckID, noteID)
	if err != nil {
		return Note{}, err
	}
	if !note.HasAudio() || note.AudioContentKind != AudioContentType {
		return Note{}, ErrNoAudio
	}

	original, err := s.store.Read(note.AudioBlob)
	if err != nil {
		return Note{}, err
	}

	trimmed, err := s.trimmer.Trim(ctx, bytes.NewReader(original), startMS, endMS)
	if err != nil {
		return Note{}, err
	}
	return s.replaceAudioRow(ctx, note, trimmed)
}

func (s *Service) replaceAudio(ctx context.Context, deckID, noteID uint, data []byte) (Note, error) {
	note, err := s.ForDeck(ctx, deckID, noteID)
	if err != nil {
		return Note{}, err
	}
	return s.replaceAudioRow(ctx, note, data)
}

func (s *Service) replaceAudioRow(ctx context.Context, note Note, data []byte) (Note, error) {
	blobName, err := s.store.Put(data, ".mp3")
	if err != nil {
		return Note{}, err
	}

	previous := note.AudioBlob
	note.AudioBlob = blobName
	note.AudioContentKind = AudioContentType
	if err := s.db.WithContext(ctx).Save(&note).Error; err != nil {
		s.discardBlob(blobName)
		return Note{}, err
	}
	s.discardBlob(previous)
	return note, nil
}

func (s *Service) discardBlob(name string) {
	if name == "" {
		return
	}
	if err := s.store.Remove(name); err != nil {
		s.logger.Warn("failed to remove attachment blob", zap.String("blob", name), zap.Error(err))
	}
}

// ParseDirection maps the wire value onto a Direction.
func ParseDirection(value string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(DirectionToTarget):
		return DirectionToTarget, nil
	case string(DirectionToSource):
		return DirectionToSource, nil
	default:
		return "", ErrInvalidDirection
	}
}

func normalizeContentType(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if idx := strings.Index(normalized, ";"); idx >= 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}
	return normalized
}
