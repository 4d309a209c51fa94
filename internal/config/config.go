package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "LEXICARD"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "lexicard.db"
	defaultLogLevel      = "info"
	defaultCookieName    = "session_token"
	defaultMediaDir      = "media"
	defaultFFmpegBinary  = "ffmpeg"
	defaultInactivity    = 7 * 24 * time.Hour
	defaultPurgeWindow   = 30 * 24 * time.Hour
	defaultProxyRate     = 5.0
	defaultProxyBurst    = 10
	defaultJWKSURL       = "https://www.googleapis.com/oauth2/v3/certs"
	defaultTranslateBase = "https://translation.googleapis.com"
	defaultTTSBase       = "https://texttospeech.googleapis.com"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress  string
	DatabasePath string
	LogLevel     string

	CookieName   string
	CookieSecure bool

	SessionInactivityWindow time.Duration
	SessionPurgeWindow      time.Duration

	GoogleClientID string
	GoogleJWKSURL  string

	TranslateBaseURL string
	TTSBaseURL       string
	ProviderAPIKey   string

	MediaDir     string
	FFmpegBinary string

	ProxyRatePerSecond float64
	ProxyBurst         int

	AllowedOrigins []string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", []string{"*"})
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("session.cookie_secure", true)
	configViper.SetDefault("session.inactivity_window", defaultInactivity)
	configViper.SetDefault("session.purge_window", defaultPurgeWindow)
	configViper.SetDefault("google.jwks_url", defaultJWKSURL)
	configViper.SetDefault("providers.translate_base_url", defaultTranslateBase)
	configViper.SetDefault("providers.tts_base_url", defaultTTSBase)
	configViper.SetDefault("media.dir", defaultMediaDir)
	configViper.SetDefault("media.ffmpeg_binary", defaultFFmpegBinary)
	configViper.SetDefault("proxy.rate_per_second", defaultProxyRate)
	configViper.SetDefault("proxy.burst", defaultProxyBurst)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:             configViper.GetString("http.address"),
		AllowedOrigins:          configViper.GetStringSlice("http.allowed_origins"),
		DatabasePath:            configViper.GetString("database.path"),
		LogLevel:                configViper.GetString("log.level"),
		CookieName:              configViper.GetString("session.cookie_name"),
		CookieSecure:            configViper.GetBool("session.cookie_secure"),
		SessionInactivityWindow: configViper.GetDuration("session.inactivity_window"),
		SessionPurgeWindow:      configViper.GetDuration("session.purge_window"),
		GoogleClientID:          configViper.GetString("google.client_id"),
		GoogleJWKSURL:           configViper.GetString("google.jwks_url"),
		TranslateBaseURL:        configViper.GetString("providers.translate_base_url"),
		TTSBaseURL:              configViper.GetString("providers.tts_base_url"),
		ProviderAPIKey:          configViper.GetString("providers.api_key"),
		MediaDir:                configViper.GetString("media.dir"),
		FFmpegBinary:            configViper.GetString("media.ffmpeg_binary"),
		ProxyRatePerSecond:      configViper.GetFloat64("proxy.rate_per_second"),
		ProxyBurst:              configViper.GetInt("proxy.burst"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.CookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if strings.TrimSpace(c.GoogleClientID) == "" {
		return fmt.Errorf("google.client_id is required")
	}
	if c.SessionInactivityWindow <= 0 {
		return fmt.Errorf("session.inactivity_window must be positive")
	}
	if c.SessionPurgeWindow <= 0 {
		return fmt.Errorf("session.purge_window must be positive")
	}
	if strings.TrimSpace(c.MediaDir) == "" {
		return fmt.Errorf("media.dir is required")
	}
	return nil
}
