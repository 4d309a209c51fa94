package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexicard/backend/internal/audio"
	"github.com/lexicard/backend/internal/auth"
	"github.com/lexicard/backend/internal/config"
	"github.com/lexicard/backend/internal/database"
	"github.com/lexicard/backend/internal/decks"
	"github.com/lexicard/backend/internal/languages"
	"github.com/lexicard/backend/internal/logging"
	"github.com/lexicard/backend/internal/metrics"
	"github.com/lexicard/backend/internal/notes"
	"github.com/lexicard/backend/internal/server"
	"github.com/lexicard/backend/internal/sessions"
	"github.com/lexicard/backend/internal/storage"
	"github.com/lexicard/backend/internal/translate"
	"github.com/lexicard/backend/internal/tts"
	"github.com/lexicard/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lexicard-api",
		Short: "Lexicard flashcard backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	syncCmd := &cobra.Command{
		Use:   "sync-languages",
		Short: "Refresh the supported language table from the translation provider",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLanguageSync(cmd.Context())
		},
	}
	rootCmd.AddCommand(syncCmd)

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("google-client-id", defaults.GetString("google.client_id"), "Google OAuth client ID")
	cmd.PersistentFlags().String("google-jwks-url", defaults.GetString("google.jwks_url"), "Google JWKS URL")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("media-dir", defaults.GetString("media.dir"), "Directory for stored audio and images")
	cmd.PersistentFlags().String("provider-api-key", "", "Google Cloud API key for translate and TTS")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "google.client_id", "google-client-id")
	bindFlag(cmd, "google.jwks_url", "google-jwks-url")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "media.dir", "media-dir")
	bindFlag(cmd, "providers.api_key", "provider-api-key")
	bindFlag(cmd, "log.level", "log-level")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	usersService, err := users.NewService(users.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	sessionManager, err := sessions.NewManager(sessions.ManagerConfig{
		Database:         db,
		Clock:            time.Now,
		InactivityWindow: appConfig.SessionInactivityWindow,
		PurgeWindow:      appConfig.SessionPurgeWindow,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	googleVerifier, err := auth.NewGoogleVerifier(auth.GoogleVerifierConfig{
		Audience:       appConfig.GoogleClientID,
		JWKSURL:        appConfig.GoogleJWKSURL,
		AllowedIssuers: []string{"https://accounts.google.com", "accounts.google.com"},
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	catalog, err := languages.NewCatalog(languages.CatalogConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	translator, err := translate.NewClient(translate.ClientConfig{
		BaseURL: appConfig.TranslateBaseURL,
		APIKey:  appConfig.ProviderAPIKey,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	speech, err := tts.NewClient(tts.ClientConfig{
		BaseURL: appConfig.TTSBaseURL,
		APIKey:  appConfig.ProviderAPIKey,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	trimmer := audio.NewTrimmer(audio.TrimmerConfig{
		Binary: appConfig.FFmpegBinary,
		Logger: logger,
	})

	store, err := storage.NewStore(appConfig.MediaDir)
	if err != nil {
		return err
	}

	decksService, err := decks.NewService(decks.ServiceConfig{
		Database: db,
		Catalog:  catalog,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	notesService, err := notes.NewService(notes.ServiceConfig{
		Database:   db,
		Store:      store,
		Translator: translator,
		Speech:     speech,
		Trimmer:    trimmer,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Users:          usersService,
		Sessions:       sessionManager,
		GoogleVerifier: googleVerifier,
		Decks:          decksService,
		Notes:          notesService,
		Languages:      catalog,
		Translator:     translator,
		Speech:         speech,
		Trimmer:        trimmer,
		Store:          store,
		Metrics:        metrics.NewCollector(),
		Logger:         logger,
		CookieName:     appConfig.CookieName,
		CookieSecure:   appConfig.CookieSecure,
		AllowedOrigins: appConfig.AllowedOrigins,
		ProxyRate:      appConfig.ProxyRatePerSecond,
		ProxyBurst:     appConfig.ProxyBurst,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runLanguageSync(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	catalog, err := languages.NewCatalog(languages.CatalogConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	translator, err := translate.NewClient(translate.ClientConfig{
		BaseURL: appConfig.TranslateBaseURL,
		APIKey:  appConfig.ProviderAPIKey,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	count, err := catalog.Sync(ctx, translator)
	if err != nil {
		return err
	}
	fmt.Printf("synced %d languages\n", count)
	return nil
}
