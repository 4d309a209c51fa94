package server

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lexicard/backend/internal/audio"
	"github.com/lexicard/backend/internal/tts"
	"go.uber.org/zap"
)

const (
	defaultSourceLanguage = "en"
	defaultTargetLanguage = "pa"
)

type translateProxyRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

func (h *httpHandler) handleTranslateProxy(c *gin.Context) {
	if h.translator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "translation_unavailable"})
		return
	}

	var request translateProxyRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if request.SourceLanguage == "" {
		request.SourceLanguage = defaultSourceLanguage
	}
	if request.TargetLanguage == "" {
		request.TargetLanguage = defaultTargetLanguage
	}

	started := time.Now()
	translated, err := h.translator.Translate(c.Request.Context(), request.Text, request.SourceLanguage, request.TargetLanguage)
	h.metrics.RecordProviderCall("translate", err)
	h.metrics.RecordProxyLatency("translate", time.Since(started))
	if err != nil {
		h.logger.Error("translation proxy failed",
			zap.String("source", request.SourceLanguage),
			zap.String("target", request.TargetLanguage),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "translation_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"text": translated})
}

type ttsProxyRequest struct {
	Text         string `json:"text"`
	LanguageCode string `json:"language_code"`
	Gender       string `json:"gender"`
}

func (h *httpHandler) handleTTSProxy(c *gin.Context) {
	if h.speech == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tts_unavailable"})
		return
	}

	var request ttsProxyRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if request.LanguageCode == "" {
		request.LanguageCode = defaultTargetLanguage
	}

	started := time.Now()
	data, err := h.speech.Synthesize(c.Request.Context(), request.Text, request.LanguageCode, request.Gender)
	h.metrics.RecordProviderCall("tts", err)
	h.metrics.RecordProxyLatency("tts", time.Since(started))
	switch {
	case errors.Is(err, tts.ErrEmptyText):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Text is required"})
		return
	case errors.Is(err, tts.ErrNoVoice):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "No voice available for language"})
		return
	case err != nil:
		h.logger.Error("tts proxy failed", zap.String("language", request.LanguageCode), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "tts_failed"})
		return
	}

	c.Data(http.StatusOK, "audio/mpeg", data)
}

func (h *httpHandler) handleTrimProxy(c *gin.Context) {
	if h.trimmer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trim_unavailable"})
		return
	}

	fileHeader, err := c.FormFile("audio_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio_file is required"})
		return
	}

	var request trimNoteRequest
	if err := c.ShouldBind(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	started := time.Now()
	trimmed, err := h.trimmer.Trim(c.Request.Context(), bytes.NewReader(data), request.Start, request.End)
	h.metrics.RecordProviderCall("trim", err)
	h.metrics.RecordProxyLatency("trim", time.Since(started))
	switch {
	case errors.Is(err, audio.ErrInvalidRange):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("trim proxy failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "trim_failed"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="trimmed.mp3"`)
	c.Data(http.StatusOK, "audio/mpeg", trimmed)
}
