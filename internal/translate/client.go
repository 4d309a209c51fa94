// Package translate talks to the translation provider's REST surface.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

var (
	errMissingBaseURL = errors.New("translate: base url required")
	// ErrNoTranslation indicates the provider returned an empty result set.
	ErrNoTranslation = errors.New("translate: provider returned no translation")
)

// SupportedLanguage is one entry of the provider's language catalog.
type SupportedLanguage struct {
	Code string
	Name string
}

// ClientConfig bundles configuration for the translation client.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client performs translation and supported-language lookups.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a translation client.
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

type translateRequest struct {
	Query  []string `json:"q"`
	Source string   `json:"source,omitempty"`
	Target string   `json:"target"`
	Format string   `json:"format"`
}

type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
}

// Translate renders text from the source language into the target language.
// Empty input short-circuits to an empty translation without a provider call.
func (c *Client) Translate(ctx context.Context, text, sourceCode, targetCode string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	payload := translateRequest{
		Query:  []string{text},
		Source: sourceCode,
		Target: targetCode,
		Format: "text",
	}

	var parsed translateResponse
	if err := c.postJSON(ctx, "/language/translate/v2", payload, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Data.Translations) == 0 {
		return "", ErrNoTranslation
	}
	return parsed.Data.Translations[0].TranslatedText, nil
}

type languagesResponse struct {
	Data struct {
		Languages []struct {
			Language string `json:"language"`
			Name     string `json:"name"`
		} `json:"languages"`
	} `json:"data"`
}

// SupportedLanguages lists the provider's language catalog with English display names.
func (c *Client) SupportedLanguages(ctx context.Context) ([]SupportedLanguage, error) {
	endpoint := c.baseURL + "/language/translate/v2/languages"
	query := url.Values{"target": {"en"}}
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	response, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("translate: languages request returned status %d", response.StatusCode)
	}

	var parsed languagesResponse
	if err := json.NewDecoder(response.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	languages := make([]SupportedLanguage, 0, len(parsed.Data.Languages))
	for _, entry := range parsed.Data.Languages {
		if strings.TrimSpace(entry.Language) == "" {
			continue
		}
		languages = append(languages, SupportedLanguage{Code: entry.Language, Name: entry.Name})
	}
	return languages, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if c.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		c.logger.Warn("translation provider request failed",
			zap.String("path", path),
			zap.Int("status", response.StatusCode))
		return fmt.Errorf("translate: request returned status %d", response.StatusCode)
	}

	return json.NewDecoder(response.Body).Decode(out)
}
