package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lexicard/backend/internal/auth"
	"github.com/lexicard/backend/internal/decks"
	"github.com/lexicard/backend/internal/languages"
	"github.com/lexicard/backend/internal/metrics"
	"github.com/lexicard/backend/internal/notes"
	"github.com/lexicard/backend/internal/sessions"
	"github.com/lexicard/backend/internal/storage"
	"github.com/lexicard/backend/internal/users"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	currentUserContextKey = "lexicard_current_user"
	defaultCookieName     = "session_token"
	defaultProxyRate      = 5.0
	defaultProxyBurst     = 10
)

var (
	errMissingUsersService    = errors.New("users service dependency required")
	errMissingSessionManager  = errors.New("session manager dependency required")
	errMissingGoogleVerifier  = errors.New("google verifier dependency required")
	errMissingDecksService    = errors.New("decks service dependency required")
	errMissingNotesService    = errors.New("notes service dependency required")
	errMissingAttachmentStore = errors.New("attachment store dependency required")
)

// GoogleVerifier validates Google ID tokens.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (auth.GoogleClaims, error)
}

// Translator is the translation provider surface used by the proxy routes.
type Translator interface {
	Translate(ctx context.Context, text, sourceCode, targetCode string) (string, error)
}

// SpeechSynthesizer is the text-to-speech provider surface used by the proxy routes.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, languageCode, gender string) ([]byte, error)
}

// AudioTrimmer cuts audio clips for the trim proxy route.
type AudioTrimmer interface {
	Trim(ctx context.Context, input io.Reader, startMS, endMS int64) ([]byte, error)
}

// Dependencies wires the HTTP surface to the services behind it.
type Dependencies struct {
	Users          *users.Service
	Sessions       *sessions.Manager
	GoogleVerifier GoogleVerifier
	Decks          *decks.Service
	Notes          *notes.Service
	Languages      *languages.Catalog
	Translator     Translator
	Speech         SpeechSynthesizer
	Trimmer        AudioTrimmer
	Store          *storage.Store
	Metrics        *metrics.Collector
	Logger         *zap.Logger

	CookieName   string
	CookieSecure bool

	AllowedOrigins []string
	ProxyRate      float64
	ProxyBurst     int
}

// NewHTTPHandler assembles the router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Users == nil {
		return nil, errMissingUsersService
	}
	if deps.Sessions == nil {
		return nil, errMissingSessionManager
	}
	if deps.GoogleVerifier == nil {
		return nil, errMissingGoogleVerifier
	}
	if deps.Decks == nil {
		return nil, errMissingDecksService
	}
	if deps.Notes == nil {
		return nil, errMissingNotesService
	}
	if deps.Store == nil {
		return nil, errMissingAttachmentStore
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NewCollector()
	}
	cookieName := deps.CookieName
	if cookieName == "" {
		cookieName = defaultCookieName
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	proxyRate := deps.ProxyRate
	if proxyRate <= 0 {
		proxyRate = defaultProxyRate
	}
	proxyBurst := deps.ProxyBurst
	if proxyBurst <= 0 {
		proxyBurst = defaultProxyBurst
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handler := &httpHandler{
		users:        deps.Users,
		sessions:     deps.Sessions,
		verifier:     deps.GoogleVerifier,
		decks:        deps.Decks,
		notes:        deps.Notes,
		languages:    deps.Languages,
		translator:   deps.Translator,
		speech:       deps.Speech,
		trimmer:      deps.Trimmer,
		store:        deps.Store,
		metrics:      collector,
		logger:       logger,
		cookieName:   cookieName,
		cookieSecure: deps.CookieSecure,
		proxyLimiter: rate.NewLimiter(rate.Limit(proxyRate), proxyBurst),
	}

	router.Use(handler.recordResponseStatus)

	router.GET("/healthz", handler.handleHealth)
	router.GET("/metrics", gin.WrapH(collector.Handler()))
	router.GET("/media/:name", handler.handleMedia)

	router.POST("/auth/anonymous", handler.handleAnonymousLogin)
	router.GET("/auth/google/callback", handler.handleGoogleCallback)
	router.GET("/auth/failure", handler.handleAuthFailure)

	protected := router.Group("/")
	protected.Use(handler.authenticateRequest)

	protected.GET("/auth/status", handler.handleAuthStatus)
	protected.DELETE("/auth/logout", handler.handleLogout)

	protected.GET("/languages", handler.handleListLanguages)

	protected.GET("/decks", handler.handleListDecks)
	protected.GET("/decks/:id", handler.handleShowDeck)
	protected.POST("/decks", handler.handleCreateDeck)
	protected.PATCH("/decks/:id", handler.handleUpdateDeck)
	protected.DELETE("/decks/:id", handler.handleDeleteDeck)

	protected.GET("/decks/:id/notes", handler.handleListNotes)
	protected.GET("/decks/:id/notes/:noteID", handler.handleShowNote)
	protected.POST("/decks/:id/notes", handler.handleCreateNote)
	protected.PATCH("/decks/:id/notes/:noteID", handler.handleUpdateNote)
	protected.DELETE("/decks/:id/notes/:noteID", handler.handleDeleteNote)

	protected.POST("/decks/:id/notes/:noteID/translate", handler.handleTranslateNote)
	protected.POST("/decks/:id/notes/:noteID/tts", handler.handleSynthesizeNote)
	protected.POST("/decks/:id/notes/:noteID/trim", handler.handleTrimNote)

	proxied := protected.Group("/")
	proxied.Use(handler.limitProxyRate)
	proxied.POST("/translate", handler.handleTranslateProxy)
	proxied.POST("/tts", handler.handleTTSProxy)
	proxied.POST("/trim", handler.handleTrimProxy)

	return router, nil
}

type httpHandler struct {
	users        *users.Service
	sessions     *sessions.Manager
	verifier     GoogleVerifier
	decks        *decks.Service
	notes        *notes.Service
	languages    *languages.Catalog
	translator   Translator
	speech       SpeechSynthesizer
	trimmer      AudioTrimmer
	store        *storage.Store
	metrics      *metrics.Collector
	logger       *zap.Logger
	cookieName   string
	cookieSecure bool
	proxyLimiter *rate.Limiter
}

// authenticateRequest is the gate in front of everything except login and
// infrastructure routes. All session failures collapse into a uniform 401 so
// the response does not reveal whether a token was missing, unknown, or
// expired.
func (h *httpHandler) authenticateRequest(c *gin.Context) {
	token, err := c.Cookie(h.cookieName)
	if err != nil || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	session, err := h.sessions.Validate(c.Request.Context(), token)
	if err != nil {
		h.logger.Info("session validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.users.ByID(c.Request.Context(), session.UserID)
	if err != nil {
		h.logger.Warn("session resolved to missing user",
			zap.Uint("user_id", session.UserID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.Set(currentUserContextKey, user)
	c.Next()
}

func (h *httpHandler) recordResponseStatus(c *gin.Context) {
	c.Next()
	h.metrics.RecordHTTPStatus(c.Writer.Status())
}

func (h *httpHandler) limitProxyRate(c *gin.Context) {
	if !h.proxyLimiter.Allow() {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
		return
	}
	c.Next()
}

func currentUser(c *gin.Context) (users.User, bool) {
	value, exists := c.Get(currentUserContextKey)
	if !exists {
		return users.User{}, false
	}
	user, ok := value.(users.User)
	return user, ok
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleMedia(c *gin.Context) {
	path, err := h.store.Path(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.File(path)
}
