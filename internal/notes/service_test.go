package notes

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/lexicard/backend/internal/storage"
	"gorm.io/gorm"
)

type stubTranslator struct {
	result string
	err    error
	text   string
	source string
	target string
}

func (s *stubTranslator) Translate(_ context.Context, text, sourceCode, targetCode string) (string, error) {
	s.text = text
	s.source = sourceCode
	s.target = targetCode
	return s.result, s.err
}

type stubSpeech struct {
	audio []byte
	err   error
	text  string
	code  string
}

func (s *stubSpeech) Synthesize(_ context.Context, text, languageCode, _ string) ([]byte, error) {
	s.text = text
	s.code = languageCode
	return s.audio, s.err
}

type stubTrimmer struct {
	output []byte
	err    error
	input  []byte
	start  int64
	end    int64
}

func (s *stubTrimmer) Trim(_ context.Context, input io.Reader, startMS, endMS int64) ([]byte, error) {
	data, err := io.ReadAll(input)
	if err != nil {
		return nil, err
	}
	s.input = data
	s.start = startMS
	s.end = endMS
	return s.output, s.err
}

type noteFixture struct {
	service    *Service
	db         *gorm.DB
	store      *storage.Store
	translator *stubTranslator
	speech     *stubSpeech
	trimmer    *stubTrimmer
	mediaDir   string
}

func newNoteFixture(t *testing.T) *noteFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Note{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	mediaDir := t.TempDir()
	store, err := storage.NewStore(mediaDir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	translator := &stubTranslator{}
	speech := &stubSpeech{}
	trimmer := &stubTrimmer{}

	service, err := NewService(ServiceConfig{
		Database:   db,
		Store:      store,
		Translator: translator,
		Speech:     speech,
		Trimmer:    trimmer,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	return &noteFixture{
		service:    service,
		db:         db,
		store:      store,
		translator: translator,
		speech:     speech,
		trimmer:    trimmer,
		mediaDir:   mediaDir,
	}
}

func (f *noteFixture) mediaFileCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.mediaDir)
	if err != nil {
		t.Fatalf("failed to read media dir: %v", err)
	}
	return len(entries)
}

func TestCreateUpdateDelete(t *testing.T) {
	fixture := newNoteFixture(t)
	ctx := context.Background()

	note, err := fixture.service.Create(ctx, 1, Input{SourceText: "hello", TargetText: "sat sri akal"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := fixture.service.Update(ctx, 1, note.ID, Input{SourceText: "hi", TargetText: "sat sri akal", Romanization: "sat srī akāl"})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.SourceText != "hi" || updated.Romanization != "sat srī akāl" {
		t.Fatalf("unexpected note after update: %+v", updated)
	}

	if _, err := fixture.service.ForDeck(ctx, 2, note.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign deck, got %v", err)
	}

	if err := fixture.service.Delete(ctx, 1, note.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := fixture.service.ForDeck(ctx, 1, note.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected note gone, got %v", err)
	}
}

func TestAttachAudioValidation(t *testing.T) {
	fixture := newNoteFixture(t)
	ctx := context.Background()

	note, err := fixture.service.Create(ctx, 1, Input{SourceText: "hello"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := fixture.service.AttachAudio(ctx, 1, note.ID, []byte("riff"), "audio/wav"); !errors.Is(err, ErrUnsupportedAudio) {
		t.Fatalf("expected ErrUnsupportedAudio, got %v", err)
	}
	oversized := make([]byte, MaxAudioBytes+1)
	if _, err := fixture.service.AttachAudio(ctx, 1, note.ID, oversized, "audio/mpeg"); !errors.Is(err, ErrAttachmentTooLarge) {
		t.Fatalf("expected ErrAttachmentTooLarge, got %v", err)
	}

	attached, err := fixture.service.AttachAudio(ctx, 1, note.ID, []byte("mp3-bytes"), "audio/mpeg; charset=binary")
	if err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if !attached.HasAudio() || attached.AudioContentKind != AudioContentType {
		t.Fatalf("expected audio attached, got %+v", attached)
	}

	stored, err := os.ReadFile(filepath.Join(fixture.mediaDir, attached.AudioBlob))
	if err != nil {
		t.Fatalf("stored blob unreadable: %v", err)
	}
	if !bytes.Equal(stored, []byte("mp3-bytes")) {
		t.Fatal("stored blob does not match upload")
	}
}

func TestAttachImageReplacesPrevious(t *testing.T) {
	fixture := newNoteFixture(t)
	ctx := context.Background()

	note, err := fixture.service.Create(ctx, 1, Input{SourceText: "hello"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := fixture.service.AttachImage(ctx, 1, note.ID, []byte("gif"), "image/gif"); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}

	first, err := fixture.service.AttachImage(ctx, 1, note.ID, []byte("png-bytes"), "image/png")
	if err != nil {
		t.Fatalf("first attach failed: %v", err)
	}
	if filepath.Ext(first.ImageBlob) != ".png" {
		t.Fatalf("expected .png blob, got %q", first.ImageBlob)
	}

	second, err := fixture.service.AttachImage(ctx, 1, note.ID, []byte("jpg-bytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("second attach failed: %v", err)
	}
	if filepath.Ext(second.ImageBlob) != ".jpg" {
		t.Fatalf("expected .jpg blob, got %q", second.ImageBlob)
	}
	if fixture.mediaFileCount(t) != 1 {
		t.Fatalf("expected old blob removed, found %d files", fixture.mediaFileCount(t))
	}
}

func TestRemoveAttachmentsDiscardBlobs(t *testing.T) {
	fixture := newNoteFixture(t)
	ctx := context.Background()

	note, err := fixture.service.Create(ctx, 1, Input{SourceText: "hello"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := fixture.service.AttachAudio(ctx, 1, note.ID, []byte("mp3"), "audio/mpeg"); err != nil {
		t.Fatalf("attach audio failed: %v", err)
	}
	if _, err := fixture.service.AttachImage(ctx, 1, note.ID, []byte("png"), "image/png"); err != nil {
		t.Fatalf("attach image failed: %v", err)
	}

	cleared, err := fixture.service.RemoveAudio(ctx, 1, note.ID)
	if err != nil {
		t.Fatalf("remove audio failed: %v", err)
	}
	if cleared.HasAudio() {
		t.Fatal("expected audio cleared")
	}
	cleared, err = fixture.service.RemoveImage(ctx, 1, note.ID)
	if err != nil {
		t.Fatalf("remove image failed: %v", err)
	}
	if cleared.HasImage() {
		t.Fatal("expected image cleared")
	}
	if fixture.mediaFileCount(t) != 0 {
		t.Fatalf("expected media dir emptied, found %d files", fixture.mediaFileCount(t))
	}
}

func TestTranslateDirections(t *testing.T) {
	fixture := newNoteFixture(t)
	ctx := context.Background()

	note, err := fixture.service.Create(ctx, 1, Input{SourceText: "hello", TargetText: "bonjour"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	fixture.translator.result = "sat sri akal"
	translated, err := fixture.service.Translate(ctx, 1, note.ID, DirectionToTarget, "en", "pa")
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	if translated.TargetText != "sat sri akal" {
		t.Fatalf("expected target text rewritten, got %q", translated.TargetText)
	}
	if fixture.translator.text != "hello" || fixture.translator.source != "en" || fixture.translator.target != "pa" {
		t.Fatalf("unexpected provider call: %+v", fixture.translator)
	}

	fixture.translator.result = "hello again"
	translated, err = fixture.service.Translate(ctx, 1, note.ID, DirectionToSource, "en", "pa")
	if err != nil {
		t.Fatalf("reverse translate failed: %v", err)
	}
	if translated.SourceText != "hello again" {
		t.Fatalf("expected source text rewritten, got %q", translated.SourceText)
	}
	if fixture.translator.source != "pa" || fixture.translator.target != "en" {
		t.Fatalf("expected reversed language pair, got %s -> %s", fixture.translator.source, fixture.translator.target)
	}

	if _, err := fixture.service.Translate(ctx, 1, note.ID, Direction("sideways"), "en", "pa"); !errors.Is(err, ErrInvalidDirection) {
		t.Fatalf("expected ErrInvalidDirection, got %v", err)
	}
}

func TestSynthesizeAudioAttaches(t *testing.T) {
	fixture := newNoteFixture(t)
	ctx := context.Background()

	note, err := fixture.service.Create(ctx, 1, Input{TargetText: "sat sri akal"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	fixture.speech.audio = []byte("synthesized")
	synthesized, err := fixture.service.SynthesizeAudio(ctx, 1, note.ID, "pa")
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if !synthesized.HasAudio() {
		t.Fatal("expected audio attached")
	}
	if fixture.speech.text != "sat sri akal" || fixture.speech.code != "pa" {
		t.Fatalf("unexpected provider call: text=%q code=%q", fixture.speech.text, fixture.speech.code)
	}
}

func TestTrimAudio(t *testing.T) {
	fixture := newNoteFixture(t)
	ctx := context.Background()

	note, err := fixture.service.Create(ctx, 1, Input{TargetText: "sat sri akal"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := fixture.service.TrimAudio(ctx, 1, note.ID, 0, 1000); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}

	if _, err := fixture.service.AttachAudio(ctx, 1, note.ID, []byte("full-clip"), "audio/mpeg"); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	fixture.trimmer.output = []byte("clip")
	trimmed, err := fixture.service.TrimAudio(ctx, 1, note.ID, 250, 750)
	if err != nil {
		t.Fatalf("trim failed: %v", err)
	}
	if !bytes.Equal(fixture.trimmer.input, []byte("full-clip")) {
		t.Fatal("expected trimmer to receive the stored audio")
	}
	if fixture.trimmer.start != 250 || fixture.trimmer.end != 750 {
		t.Fatalf("unexpected trim range %d..%d", fixture.trimmer.start, fixture.trimmer.end)
	}

	stored, err := os.ReadFile(filepath.Join(fixture.mediaDir, trimmed.AudioBlob))
	if err != nil {
		t.Fatalf("stored blob unreadable: %v", err)
	}
	if !bytes.Equal(stored, []byte("clip")) {
		t.Fatal("expected trimmed clip stored in place of original")
	}
	if fixture.mediaFileCount(t) != 1 {
		t.Fatalf("expected single blob after trim, found %d", fixture.mediaFileCount(t))
	}
}

func TestParseDirection(t *testing.T) {
	if _, err := ParseDirection("backwards"); !errors.Is(err, ErrInvalidDirection) {
		t.Fatalf("expected ErrInvalidDirection, got %v", err)
	}
	direction, err := ParseDirection(" To_Target ")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if direction != DirectionToTarget {
		t.Fatalf("expected to_target, got %q", direction)
	}
}
