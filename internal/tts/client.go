// Package tts talks to the text-to-speech provider's REST surface.
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

var (
	errMissingBaseURL = errors.New("tts: base url required")
	// ErrNoVoice indicates no premium or standard voice exists for the language.
	ErrNoVoice = errors.New("tts: no matching voice for language")
	// ErrEmptyText indicates there was nothing to synthesize.
	ErrEmptyText = errors.New("tts: text required")
)

// Voice is one synthesizer voice advertised by the provider.
type Voice struct {
	Name          string   `json:"name"`
	LanguageCodes []string `json:"languageCodes"`
	Gender        string   `json:"ssmlGender"`
}

// ClientConfig bundles configuration for the speech client.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client synthesizes speech audio.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a speech client.
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errMissingBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type voicesResponse struct {
	Voices []Voice `json:"voices"`
}

// ListVoices returns the provider's voices for a language code.
func (c *Client) ListVoices(ctx context.Context, languageCode string) ([]Voice, error) {
	endpoint := c.baseURL + "/v1/voices"
	query := url.Values{}
	if languageCode != "" {
		query.Set("languageCode", languageCode)
	}
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	response, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts: voices request returned status %d", response.StatusCode)
	}

	var parsed voicesResponse
	if err := json.NewDecoder(response.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return parsed.Voices, nil
}

type synthesizeRequest struct {
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

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// Synthesize renders text as MP3 audio in the given language. Voice selection
// picks the last premium or standard voice the provider advertises for the
// language; gender defaults to NEUTRAL.
func (c *Client) Synthesize(ctx context.Context, text, languageCode, gender string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	voices, err := c.ListVoices(ctx, languageCode)
	if err != nil {
		return nil, err
	}
	voice, ok := selectVoice(voices)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoVoice, languageCode)
	}

	if strings.TrimSpace(gender) == "" {
		gender = "NEUTRAL"
	}

	voiceLanguage := languageCode
	if len(voice.LanguageCodes) > 0 {
		voiceLanguage = voice.LanguageCodes[0]
	}

	var payload synthesizeRequest
	payload.Input.Text = text
	payload.Voice.LanguageCode = voiceLanguage
	payload.Voice.Name = voice.Name
	payload.Voice.SSMLGender = gender
	payload.AudioConfig.AudioEncoding = "MP3"

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/v1/text:synthesize"
	if c.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		c.logger.Warn("speech synthesis request failed",
			zap.String("language", languageCode),
			zap.Int("status", response.StatusCode))
		return nil, fmt.Errorf("tts: synthesize request returned status %d", response.StatusCode)
	}

	var parsed synthesizeResponse
	if err := json.NewDecoder(response.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	audio, err := base64.StdEncoding.DecodeString(parsed.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("tts: invalid audio payload: %w", err)
	}
	return audio, nil
}

// selectVoice keeps the provider's premium/standard tiers and returns the
// last match, mirroring the ordering the provider advertises.
func selectVoice(voices []Voice) (Voice, bool) {
	selected := Voice{}
	found := false
	for _, voice := range voices {
		name := strings.ToLower(voice.Name)
		if strings.Contains(name, "premium") || strings.Contains(name, "standard") {
			selected = voice
			found = true
		}
	}
	return selected, found
}
