package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func voicesJSON(voices ...Voice) string {
	payload, _ := json.Marshal(map[string][]Voice{"voices": voices})
	return string(payload)
}

func TestSynthesizeRequiresText(t *testing.T) {
	client, err := NewClient(ClientConfig{BaseURL: "http://unused.invalid"})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if _, err := client.Synthesize(context.Background(), "  ", "pa", ""); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

func TestSynthesizePicksLastTieredVoice(t *testing.T) {
	audio := []byte("mp3-bytes")
	var synthesizeBody struct {
		Input struct {
			Text string `json:"text"`
		} `json:"input"`
		Voice struct {
			LanguageCode string `json:"languageCode"`
			Name         string `json:"name"`
			SSMLGender   string `json:"ssmlGender"`
		} `json:"voice"`
		AudioConfig struct {
			AudioEncoding string `json:"audioEncoding"`
		} `json:"audioConfig"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/voices":
			if r.URL.Query().Get("languageCode") != "pa" {
				t.Errorf("expected language filter, got %q", r.URL.RawQuery)
			}
			_, _ = w.Write([]byte(voicesJSON(
				Voice{Name: "pa-IN-Wavenet-A", LanguageCodes: []string{"pa-IN"}},
				Voice{Name: "pa-IN-Standard-A", LanguageCodes: []string{"pa-IN"}},
				Voice{Name: "pa-IN-Premium-B", LanguageCodes: []string{"pa-IN"}, Gender: "FEMALE"},
			)))
		case "/v1/text:synthesize":
			if err := json.NewDecoder(r.Body).Decode(&synthesizeBody); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
			response := map[string]string{"audioContent": base64.StdEncoding.EncodeToString(audio)}
			_ = json.NewEncoder(w).Encode(response)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	result, err := client.Synthesize(context.Background(), "sat sri akal", "pa", "")
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if string(result) != string(audio) {
		t.Fatal("expected decoded audio bytes")
	}
	if synthesizeBody.Voice.Name != "pa-IN-Premium-B" {
		t.Fatalf("expected last premium voice, got %q", synthesizeBody.Voice.Name)
	}
	if synthesizeBody.Voice.LanguageCode != "pa-IN" {
		t.Fatalf("expected voice's language code, got %q", synthesizeBody.Voice.LanguageCode)
	}
	if synthesizeBody.Voice.SSMLGender != "NEUTRAL" {
		t.Fatalf("expected gender default, got %q", synthesizeBody.Voice.SSMLGender)
	}
	if synthesizeBody.AudioConfig.AudioEncoding != "MP3" {
		t.Fatalf("expected MP3 encoding, got %q", synthesizeBody.AudioConfig.AudioEncoding)
	}
}

func TestSynthesizeNoTieredVoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(voicesJSON(
			Voice{Name: "pa-IN-Wavenet-A", LanguageCodes: []string{"pa-IN"}},
		)))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if _, err := client.Synthesize(context.Background(), "hello", "pa", ""); !errors.Is(err, ErrNoVoice) {
		t.Fatalf("expected ErrNoVoice, got %v", err)
	}
}

func TestListVoicesProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if _, err := client.ListVoices(context.Background(), "pa"); err == nil {
		t.Fatal("expected error for provider failure")
	}
}
