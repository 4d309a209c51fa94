package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTranslateShortCircuitsOnEmptyText(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	result, err := client.Translate(context.Background(), "   ", "en", "pa")
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	if result != "" {
		t.Fatalf("expected empty translation, got %q", result)
	}
	if called {
		t.Fatal("expected no provider call for empty text")
	}
}

func TestTranslateSendsExpectedPayload(t *testing.T) {
	var captured struct {
		Query  []string `json:"q"`
		Source string   `json:"source"`
		Target string   `json:"target"`
		Format string   `json:"format"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/language/translate/v2" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "secret" {
			t.Errorf("expected api key in query, got %q", r.URL.RawQuery)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"translations":[{"translatedText":"sat sri akal"}]}}`))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{BaseURL: server.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	result, err := client.Translate(context.Background(), "hello", "en", "pa")
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	if result != "sat sri akal" {
		t.Fatalf("unexpected translation %q", result)
	}
	if len(captured.Query) != 1 || captured.Query[0] != "hello" {
		t.Fatalf("unexpected query %v", captured.Query)
	}
	if captured.Source != "en" || captured.Target != "pa" || captured.Format != "text" {
		t.Fatalf("unexpected payload %+v", captured)
	}
}

func TestTranslateEmptyResultSet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"translations":[]}}`))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if _, err := client.Translate(context.Background(), "hello", "en", "pa"); !errors.Is(err, ErrNoTranslation) {
		t.Fatalf("expected ErrNoTranslation, got %v", err)
	}
}

func TestTranslateProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if _, err := client.Translate(context.Background(), "hello", "en", "pa"); err == nil {
		t.Fatal("expected error for provider failure")
	}
}

func TestSupportedLanguages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/language/translate/v2/languages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("target") != "en" {
			t.Errorf("expected english display names, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"data":{"languages":[{"language":"en","name":"English"},{"language":"pa","name":"Punjabi"},{"language":"","name":"Bogus"}]}}`))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	languages, err := client.SupportedLanguages(context.Background())
	if err != nil {
		t.Fatalf("supported languages failed: %v", err)
	}
	if len(languages) != 2 {
		t.Fatalf("expected blank codes skipped, got %d entries", len(languages))
	}
	if languages[1].Code != "pa" || languages[1].Name != "Punjabi" {
		t.Fatalf("unexpected entry %+v", languages[1])
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatal("expected error for missing base url")
	}
}
