package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lexicard/backend/internal/audio"
	"github.com/lexicard/backend/internal/decks"
	"github.com/lexicard/backend/internal/notes"
	"github.com/lexicard/backend/internal/tts"
	"go.uber.org/zap"
)

type notePayload struct {
	SourceText   string `json:"source_text" form:"source_text"`
	TargetText   string `json:"target_text" form:"target_text"`
	Romanization string `json:"romanization" form:"romanization"`
	RemoveAudio  bool   `json:"remove_audio" form:"remove_audio"`
	RemoveImage  bool   `json:"remove_image" form:"remove_image"`
}

func (h *httpHandler) noteJSON(note notes.Note) gin.H {
	var audioURL, imageURL interface{}
	if note.HasAudio() {
		audioURL = "/media/" + note.AudioBlob
	}
	if note.HasImage() {
		imageURL = "/media/" + note.ImageBlob
	}
	return gin.H{
		"id":           note.ID,
		"deck_id":      note.DeckID,
		"source_text":  note.SourceText,
		"target_text":  note.TargetText,
		"romanization": note.Romanization,
		"audio_url":    audioURL,
		"image_url":    imageURL,
		"created_at":   note.CreatedAt,
		"updated_at":   note.UpdatedAt,
	}
}

// resolveDeck loads the :id deck for the current user, writing the error
// response itself when the deck cannot be used.
func (h *httpHandler) resolveDeck(c *gin.Context) (decks.Deck, bool) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return decks.Deck{}, false
	}
	deckID, ok := parseID(c, "id")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Deck not found"})
		return decks.Deck{}, false
	}
	deck, err := h.decks.ForUser(c.Request.Context(), user.ID, deckID)
	if errors.Is(err, decks.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Deck not found"})
		return decks.Deck{}, false
	}
	if err != nil {
		h.logger.Error("deck lookup failed", zap.Uint("deck_id", deckID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "decks_failed"})
		return decks.Deck{}, false
	}
	return deck, true
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	deck, ok := h.resolveDeck(c)
	if !ok {
		return
	}
	deckNotes, err := h.notes.ListForDeck(c.Request.Context(), deck.ID)
	if err != nil {
		h.logger.Error("note listing failed", zap.Uint("deck_id", deck.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "notes_failed"})
		return
	}
	response := make([]gin.H, 0, len(deckNotes))
	for _, note := range deckNotes {
		response = append(response, h.noteJSON(note))
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleShowNote(c *gin.Context) {
	deck, ok := h.resolveDeck(c)
	if !ok {
		return
	}
	noteID, ok := parseID(c, "noteID")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}
	note, err := h.notes.ForDeck(c.Request.Context(), deck.ID, noteID)
	if errors.Is(err, notes.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}
	if err != nil {
		h.logger.Error("note lookup failed", zap.Uint("note_id", noteID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "notes_failed"})
		return
	}
	c.JSON(http.StatusOK, h.noteJSON(note))
}

func (h *httpHandler) handleCreateNote(c *gin.Context) {
	deck, ok := h.resolveDeck(c)
	if !ok {
		return
	}

	payload, ok := h.bindNotePayload(c)
	if !ok {
		return
	}

	note, err := h.notes.Create(c.Request.Context(), deck.ID, notes.Input{
		SourceText:   payload.SourceText,
		TargetText:   payload.TargetText,
		Romanization: payload.Romanization,
	})
	if err != nil {
		h.logger.Error("note creation failed", zap.Uint("deck_id", deck.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "notes_failed"})
		return
	}

	note, ok = h.applyAttachments(c, deck.ID, note)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, h.noteJSON(note))
}

func (h *httpHandler) handleUpdateNote(c *gin.Context) {
	deck, ok := h.resolveDeck(c)
	if !ok {
		return
	}
	noteID, ok := parseID(c, "noteID")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}

	payload, ok := h.bindNotePayload(c)
	if !ok {
		return
	}

	note, err := h.notes.Update(c.Request.Context(), deck.ID, noteID, notes.Input{
		SourceText:   payload.SourceText,
		TargetText:   payload.TargetText,
		Romanization: payload.Romanization,
	})
	if errors.Is(err, notes.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}
	if err != nil {
		h.logger.Error("note update failed", zap.Uint("note_id", noteID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "notes_failed"})
		return
	}

	note, ok = h.applyAttachments(c, deck.ID, note)
	if !ok {
		return
	}

	if payload.RemoveAudio {
		note, err = h.notes.RemoveAudio(c.Request.Context(), deck.ID, note.ID)
		if err != nil {
			h.logger.Error("audio removal failed", zap.Uint("note_id", note.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "notes_failed"})
			return
		}
	}
	if payload.RemoveImage {
		note, err = h.notes.RemoveImage(c.Request.Context(), deck.ID, note.ID)
		if err != nil {
			h.logger.Error("image removal failed", zap.Uint("note_id", note.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "notes_failed"})
			return
		}
	}

	c.JSON(http.StatusOK, h.noteJSON(note))
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	deck, ok := h.resolveDeck(c)
	if !ok {
		return
	}
	noteID, ok := parseID(c, "noteID")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}
	err := h.notes.Delete(c.Request.Context(), deck.ID, noteID)
	if errors.Is(err, notes.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}
	if err != nil {
		h.logger.Error("note deletion failed", zap.Uint("note_id", noteID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "notes_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Note deleted"})
}

type translateNoteRequest struct {
	Direction string `json:"direction" form:"direction"`
}

func (h *httpHandler) handleTranslateNote(c *gin.Context) {
	deck, ok := h.resolveDeck(c)
	if !ok {
		return
	}
	noteID, ok := parseID(c, "noteID")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}

	var request translateNoteRequest
	_ = c.ShouldBind(&request)
	direction, err := notes.ParseDirection(request.Direction)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid direction, use either 'to_target' or 'to_source'"})
		return
	}

	note, err := h.notes.Translate(c.Request.Context(), deck.ID, noteID, direction, deck.SourceLanguage, deck.TargetLanguage)
	h.metrics.RecordProviderCall("translate", err)
	if errors.Is(err, notes.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}
	if err != nil {
		h.logger.Error("note translation failed", zap.Uint("note_id", noteID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "translation_failed"})
		return
	}
	c.JSON(http.StatusOK, h.noteJSON(note))
}

func (h *httpHandler) handleSynthesizeNote(c *gin.Context) {
	deck, ok := h.resolveDeck(c)
	if !ok {
		return
	}
	noteID, ok := parseID(c, "noteID")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}

	note, err := h.notes.SynthesizeAudio(c.Request.Context(), deck.ID, noteID, deck.TargetLanguage)
	h.metrics.RecordProviderCall("tts", err)
	switch {
	case errors.Is(err, notes.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	case errors.Is(err, tts.ErrNoVoice), errors.Is(err, tts.ErrEmptyText):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("note synthesis failed", zap.Uint("note_id", noteID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tts_failed"})
		return
	}
	c.JSON(http.StatusOK, h.noteJSON(note))
}

type trimNoteRequest struct {
	Start int64 `json:"start" form:"start"`
	End   int64 `json:"end" form:"end"`
}

func (h *httpHandler) handleTrimNote(c *gin.Context) {
	deck, ok := h.resolveDeck(c)
	if !ok {
		return
	}
	noteID, ok := parseID(c, "noteID")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}

	var request trimNoteRequest
	_ = c.ShouldBind(&request)

	note, err := h.notes.TrimAudio(c.Request.Context(), deck.ID, noteID, request.Start, request.End)
	h.metrics.RecordProviderCall("trim", err)
	switch {
	case errors.Is(err, notes.ErrNotFound), errors.Is(err, notes.ErrNoAudio):
		c.JSON(http.StatusNotFound, gin.H{"error": "Note or audio not found"})
		return
	case errors.Is(err, audio.ErrInvalidRange):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("note trim failed", zap.Uint("note_id", noteID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "trim_failed"})
		return
	}
	c.JSON(http.StatusOK, h.noteJSON(note))
}

// bindNotePayload accepts either a JSON body or a multipart form.
func (h *httpHandler) bindNotePayload(c *gin.Context) (notePayload, bool) {
	var payload notePayload
	contentType := c.ContentType()
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := c.ShouldBind(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return notePayload{}, false
		}
		return payload, true
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return notePayload{}, false
	}
	return payload, true
}

// applyAttachments stores any uploaded audio/image files onto the note.
// Errors are written to the response; false tells the caller to stop.
func (h *httpHandler) applyAttachments(c *gin.Context, deckID uint, note notes.Note) (notes.Note, bool) {
	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		return note, true
	}

	if fileHeader, err := c.FormFile("audio"); err == nil && fileHeader != nil {
		data, contentType, readErr := readUpload(fileHeader)
		if readErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return notes.Note{}, false
		}
		updated, attachErr := h.notes.AttachAudio(c.Request.Context(), deckID, note.ID, data, contentType)
		if !h.attachmentOK(c, attachErr) {
			return notes.Note{}, false
		}
		note = updated
	}

	if fileHeader, err := c.FormFile("image"); err == nil && fileHeader != nil {
		data, contentType, readErr := readUpload(fileHeader)
		if readErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return notes.Note{}, false
		}
		updated, attachErr := h.notes.AttachImage(c.Request.Context(), deckID, note.ID, data, contentType)
		if !h.attachmentOK(c, attachErr) {
			return notes.Note{}, false
		}
		note = updated
	}

	return note, true
}

func (h *httpHandler) attachmentOK(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, notes.ErrUnsupportedAudio),
		errors.Is(err, notes.ErrUnsupportedImage),
		errors.Is(err, notes.ErrAttachmentTooLarge):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{err.Error()}})
		return false
	default:
		h.logger.Error("attachment storage failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "notes_failed"})
		return false
	}
}

func readUpload(fileHeader *multipart.FileHeader) ([]byte, string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return data, fileHeader.Header.Get("Content-Type"), nil
}
