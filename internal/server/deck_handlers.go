package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lexicard/backend/internal/decks"
	"go.uber.org/zap"
)

type deckPayload struct {
	Name           string `json:"name"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

type deckResponse struct {
	ID             uint      `json:"id"`
	Name           string    `json:"name"`
	SourceLanguage string    `json:"source_language"`
	TargetLanguage string    `json:"target_language"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func deckJSON(deck decks.Deck) deckResponse {
	return deckResponse{
		ID:             deck.ID,
		Name:           deck.Name,
		SourceLanguage: deck.SourceLanguage,
		TargetLanguage: deck.TargetLanguage,
		CreatedAt:      deck.CreatedAt,
		UpdatedAt:      deck.UpdatedAt,
	}
}

func parseID(c *gin.Context, param string) (uint, bool) {
	value, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(value), true
}

func (h *httpHandler) handleListDecks(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	userDecks, err := h.decks.ListForUser(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("deck listing failed", zap.Uint("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "decks_failed"})
		return
	}
	response := make([]deckResponse, 0, len(userDecks))
	for _, deck := range userDecks {
		response = append(response, deckJSON(deck))
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleShowDeck(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	deckID, ok := parseID(c, "id")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Deck not found"})
		return
	}

	deck, err := h.decks.ForUser(c.Request.Context(), user.ID, deckID)
	if errors.Is(err, decks.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Deck not found"})
		return
	}
	if err != nil {
		h.logger.Error("deck lookup failed", zap.Uint("deck_id", deckID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "decks_failed"})
		return
	}

	translationSupported, err := h.decks.TranslationSupported(c.Request.Context(), deck)
	if err != nil {
		h.logger.Warn("translation capability check failed", zap.Uint("deck_id", deck.ID), zap.Error(err))
	}
	targetHasTTS, err := h.decks.TargetHasTTS(c.Request.Context(), deck)
	if err != nil {
		h.logger.Warn("tts capability check failed", zap.Uint("deck_id", deck.ID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                    deck.ID,
		"name":                  deck.Name,
		"source_language":       deck.SourceLanguage,
		"target_language":       deck.TargetLanguage,
		"translation_supported": translationSupported,
		"target_has_tts":        targetHasTTS,
		"created_at":            deck.CreatedAt,
		"updated_at":            deck.UpdatedAt,
	})
}

func (h *httpHandler) handleCreateDeck(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var payload deckPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	deck, err := h.decks.Create(c.Request.Context(), user.ID, decks.Input{
		Name:           payload.Name,
		SourceLanguage: payload.SourceLanguage,
		TargetLanguage: payload.TargetLanguage,
	})
	if errors.Is(err, decks.ErrMissingLanguage) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{"Source and target languages are required"}})
		return
	}
	if err != nil {
		h.logger.Error("deck creation failed", zap.Uint("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "decks_failed"})
		return
	}
	c.JSON(http.StatusCreated, deckJSON(deck))
}

func (h *httpHandler) handleUpdateDeck(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	deckID, ok := parseID(c, "id")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Deck not found"})
		return
	}

	var payload deckPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	deck, err := h.decks.Update(c.Request.Context(), user.ID, deckID, decks.Input{
		Name:           payload.Name,
		SourceLanguage: payload.SourceLanguage,
		TargetLanguage: payload.TargetLanguage,
	})
	if errors.Is(err, decks.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Deck not found"})
		return
	}
	if err != nil {
		h.logger.Error("deck update failed", zap.Uint("deck_id", deckID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "decks_failed"})
		return
	}
	c.JSON(http.StatusOK, deckJSON(deck))
}

func (h *httpHandler) handleDeleteDeck(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	deckID, ok := parseID(c, "id")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Deck not found"})
		return
	}

	err := h.decks.Delete(c.Request.Context(), user.ID, deckID)
	if errors.Is(err, decks.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Deck not found"})
		return
	}
	if err != nil {
		h.logger.Error("deck deletion failed", zap.Uint("deck_id", deckID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "decks_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deck deleted"})
}
