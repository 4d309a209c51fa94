package integration_test

import (
	"bytes"
	contextpkg "context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/lexicard/backend/internal/auth"
	"github.com/lexicard/backend/internal/decks"
	"github.com/lexicard/backend/internal/languages"
	"github.com/lexicard/backend/internal/notes"
	"github.com/lexicard/backend/internal/server"
	"github.com/lexicard/backend/internal/sessions"
	"github.com/lexicard/backend/internal/storage"
	"github.com/lexicard/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sessionCookieName = "session_token"

type staticVerifier struct {
	claims auth.GoogleClaims
}

func (v *staticVerifier) Verify(contextpkg.Context, string) (auth.GoogleClaims, error) {
	return v.claims, nil
}

type echoTranslator struct{}

func (echoTranslator) Translate(_ contextpkg.Context, text, _, targetCode string) (string, error) {
	return text + " [" + targetCode + "]", nil
}

type stack struct {
	server   *httptest.Server
	db       *gorm.DB
	clock    *time.Time
	verifier *staticVerifier
}

func newStack(testContext *testing.T) *stack {
	testContext.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		testContext.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&users.User{}, &sessions.Session{}, &decks.Deck{}, &notes.Note{}, &languages.Language{}); err != nil {
		testContext.Fatalf("failed to migrate: %v", err)
	}

	now := time.Now().UTC()
	clock := &now

	usersService, err := users.NewService(users.ServiceConfig{Database: db, Clock: func() time.Time { return *clock }})
	if err != nil {
		testContext.Fatalf("failed to build users service: %v", err)
	}
	sessionManager, err := sessions.NewManager(sessions.ManagerConfig{Database: db, Clock: func() time.Time { return *clock }})
	if err != nil {
		testContext.Fatalf("failed to build session manager: %v", err)
	}
	catalog, err := languages.NewCatalog(languages.CatalogConfig{Database: db})
	if err != nil {
		testContext.Fatalf("failed to build catalog: %v", err)
	}
	decksService, err := decks.NewService(decks.ServiceConfig{Database: db, Catalog: catalog})
	if err != nil {
		testContext.Fatalf("failed to build decks service: %v", err)
	}
	store, err := storage.NewStore(testContext.TempDir())
	if err != nil {
		testContext.Fatalf("failed to build store: %v", err)
	}
	notesService, err := notes.NewService(notes.ServiceConfig{
		Database:   db,
		Store:      store,
		Translator: echoTranslator{},
	})
	if err != nil {
		testContext.Fatalf("failed to build notes service: %v", err)
	}

	verifier := &staticVerifier{}
	handler, err := server.NewHTTPHandler(server.Dependencies{
		Users:          usersService,
		Sessions:       sessionManager,
		GoogleVerifier: verifier,
		Decks:          decksService,
		Notes:          notesService,
		Languages:      catalog,
		Translator:     echoTranslator{},
		Store:          store,
		Logger:         zap.NewNop(),
		CookieName:     sessionCookieName,
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}

	testServer := httptest.NewServer(handler)
	testContext.Cleanup(testServer.Close)

	return &stack{server: testServer, db: db, clock: clock, verifier: verifier}
}

func (s *stack) request(testContext *testing.T, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	testContext.Helper()
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			testContext.Fatalf("failed to marshal body: %v", err)
		}
		payload = encoded
	}
	request, err := http.NewRequest(method, s.server.URL+path, bytes.NewReader(payload))
	if err != nil {
		testContext.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	}
	response, err := s.server.Client().Do(request)
	if err != nil {
		testContext.Fatalf("request failed: %v", err)
	}
	defer response.Body.Close()

	var decoded map[string]interface{}
	_ = json.NewDecoder(response.Body).Decode(&decoded)
	return response, decoded
}

func TestAnonymousSessionLifecycle(testContext *testing.T) {
	app := newStack(testContext)

	response, login := app.request(testContext, http.MethodPost, "/auth/anonymous", "", nil)
	if response.StatusCode != http.StatusOK {
		testContext.Fatalf("login failed with %d", response.StatusCode)
	}
	token, _ := login["token"].(string)
	uid, _ := login["uid"].(string)
	if token == "" || uid == "" {
		testContext.Fatalf("unexpected login payload %v", login)
	}

	response, deck := app.request(testContext, http.MethodPost, "/decks", token, map[string]string{
		"name":            "Punjabi basics",
		"source_language": "en",
		"target_language": "pa",
	})
	if response.StatusCode != http.StatusCreated {
		testContext.Fatalf("deck creation failed with %d", response.StatusCode)
	}
	deckID := int(deck["id"].(float64))

	// Resuming by uid gets a fresh token that still sees the deck.
	response, resumed := app.request(testContext, http.MethodPost, "/auth/anonymous", "", map[string]string{"uid": uid})
	if response.StatusCode != http.StatusOK {
		testContext.Fatalf("resume failed with %d", response.StatusCode)
	}
	resumedToken, _ := resumed["token"].(string)
	if resumedToken == "" || resumedToken == token {
		testContext.Fatal("expected a fresh token on resume")
	}

	response, _ = app.request(testContext, http.MethodGet, "/decks/"+itoa(deckID), resumedToken, nil)
	if response.StatusCode != http.StatusOK {
		testContext.Fatalf("expected resumed session to see the deck, got %d", response.StatusCode)
	}

	// The first token remains valid too; logins do not revoke other sessions.
	response, _ = app.request(testContext, http.MethodGet, "/decks", token, nil)
	if response.StatusCode != http.StatusOK {
		testContext.Fatalf("expected original session to stay valid, got %d", response.StatusCode)
	}
}

func TestAnonymousUpgradeMergesOwnership(testContext *testing.T) {
	app := newStack(testContext)
	app.verifier.claims = auth.GoogleClaims{
		Subject: "google-subject",
		Email:   "owner@example.com",
		Name:    "Owner",
	}

	_, login := app.request(testContext, http.MethodPost, "/auth/anonymous", "", nil)
	anonToken, _ := login["token"].(string)

	response, deck := app.request(testContext, http.MethodPost, "/decks", anonToken, map[string]string{
		"name":            "Carried over",
		"source_language": "en",
		"target_language": "pa",
	})
	if response.StatusCode != http.StatusCreated {
		testContext.Fatalf("deck creation failed with %d", response.StatusCode)
	}
	deckID := int(deck["id"].(float64))

	request, err := http.NewRequest(http.MethodGet, app.server.URL+"/auth/google/callback?id_token=stub&upgrade=true", nil)
	if err != nil {
		testContext.Fatalf("failed to build request: %v", err)
	}
	request.AddCookie(&http.Cookie{Name: sessionCookieName, Value: anonToken})
	response, err = app.server.Client().Do(request)
	if err != nil {
		testContext.Fatalf("upgrade request failed: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		testContext.Fatalf("upgrade failed with %d", response.StatusCode)
	}

	var upgradedToken string
	for _, cookie := range response.Cookies() {
		if cookie.Name == sessionCookieName {
			upgradedToken = cookie.Value
		}
	}
	if upgradedToken == "" {
		testContext.Fatal("expected session cookie after upgrade")
	}

	// The merged account owns the deck.
	response, status := app.request(testContext, http.MethodGet, "/auth/status", upgradedToken, nil)
	if response.StatusCode != http.StatusOK {
		testContext.Fatalf("status failed with %d", response.StatusCode)
	}
	user, _ := status["user"].(map[string]interface{})
	if user == nil || user["provider"] != "google" || user["email"] != "owner@example.com" {
		testContext.Fatalf("unexpected merged account %v", status)
	}

	response, _ = app.request(testContext, http.MethodGet, "/decks/"+itoa(deckID), upgradedToken, nil)
	if response.StatusCode != http.StatusOK {
		testContext.Fatalf("expected merged account to own the deck, got %d", response.StatusCode)
	}

	// The anonymous session died with the merge.
	response, _ = app.request(testContext, http.MethodGet, "/decks", anonToken, nil)
	if response.StatusCode != http.StatusUnauthorized {
		testContext.Fatalf("expected anonymous session revoked, got %d", response.StatusCode)
	}

	// The anonymous user row is gone and lineage is stamped on the target.
	var anonCount int64
	if err := app.db.Model(&users.User{}).Where("provider = ?", users.ProviderAnonymous).Count(&anonCount).Error; err != nil {
		testContext.Fatalf("count failed: %v", err)
	}
	if anonCount != 0 {
		testContext.Fatalf("expected anonymous user destroyed, found %d", anonCount)
	}
	var target users.User
	if err := app.db.Where("email = ?", "owner@example.com").First(&target).Error; err != nil {
		testContext.Fatalf("target lookup failed: %v", err)
	}
	if target.MergedFromUserID == nil || target.MergedAt == nil {
		testContext.Fatal("expected merge lineage on target user")
	}
}

func TestNoteFlowWithTranslation(testContext *testing.T) {
	app := newStack(testContext)

	_, login := app.request(testContext, http.MethodPost, "/auth/anonymous", "", nil)
	token, _ := login["token"].(string)

	_, deck := app.request(testContext, http.MethodPost, "/decks", token, map[string]string{
		"name":            "Phrases",
		"source_language": "en",
		"target_language": "pa",
	})
	deckID := itoa(int(deck["id"].(float64)))

	response, note := app.request(testContext, http.MethodPost, "/decks/"+deckID+"/notes", token, map[string]string{
		"source_text": "hello",
	})
	if response.StatusCode != http.StatusCreated {
		testContext.Fatalf("note creation failed with %d", response.StatusCode)
	}
	noteID := itoa(int(note["id"].(float64)))

	response, translated := app.request(testContext, http.MethodPost, "/decks/"+deckID+"/notes/"+noteID+"/translate", token, map[string]string{
		"direction": "to_target",
	})
	if response.StatusCode != http.StatusOK {
		testContext.Fatalf("translate failed with %d", response.StatusCode)
	}
	if translated["target_text"] != "hello [pa]" {
		testContext.Fatalf("unexpected translation %v", translated["target_text"])
	}

	response, failure := app.request(testContext, http.MethodPost, "/decks/"+deckID+"/notes/"+noteID+"/translate", token, map[string]string{
		"direction": "sideways",
	})
	if response.StatusCode != http.StatusUnprocessableEntity {
		testContext.Fatalf("expected 422 for bad direction, got %d", response.StatusCode)
	}
	if failure["error"] != "Invalid direction, use either 'to_target' or 'to_source'" {
		testContext.Fatalf("unexpected error body %v", failure)
	}
}

func TestExpiredSessionRejected(testContext *testing.T) {
	app := newStack(testContext)

	_, login := app.request(testContext, http.MethodPost, "/auth/anonymous", "", nil)
	token, _ := login["token"].(string)

	*app.clock = app.clock.Add(7*24*time.Hour + time.Hour)

	response, body := app.request(testContext, http.MethodGet, "/decks", token, nil)
	if response.StatusCode != http.StatusUnauthorized {
		testContext.Fatalf("expected 401 for expired session, got %d", response.StatusCode)
	}
	if body["error"] != "unauthorized" {
		testContext.Fatalf("unexpected error body %v", body)
	}
}

func itoa(value int) string {
	return strconv.Itoa(value)
}
