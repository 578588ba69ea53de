package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"talkingphoto/internal/adapter/repo"
	"talkingphoto/internal/http/handlers"
	httpapi "talkingphoto/internal/http/httpapi"
	"talkingphoto/internal/infra"
	"talkingphoto/internal/infra/geoip"
	"talkingphoto/internal/middleware"
	"talkingphoto/internal/providers/lipsync"
	"talkingphoto/internal/providers/script"
	"talkingphoto/internal/providers/speech"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	scriptGen, err := script.NewGeminiGenerator(script.GeminiOptions{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build script generator")
	}

	speechClient, err := speech.NewElevenLabsClient(speech.ElevenLabsOptions{
		APIKey:  cfg.ElevenLabsAPIKey,
		BaseURL: cfg.ElevenLabsBaseURL,
		Model:   cfg.ElevenLabsModel,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build speech client")
	}

	// The lip-sync client tolerates a missing token so the rest of the API
	// stays usable; video submission then reports the misconfiguration.
	lipsyncClient, err := lipsync.NewClient(lipsync.Options{
		APIToken:     cfg.ReplicateAPIToken,
		BaseURL:      cfg.ReplicateBaseURL,
		ModelVersion: cfg.ReplicateVersion,
		Logger:       &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build lipsync client")
	}

	app := &handlers.App{
		Script:  scriptGen,
		Speech:  speechClient,
		Lipsync: lipsyncClient,
		Logger:  logger,
	}

	ctx := context.Background()

	if cfg.DatabaseURL != "" {
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()
		runner := infra.NewSQLRunner(dbpool, logger)
		app.Usage = repo.NewUsageRepository(runner)
		app.Gallery = repo.NewGalleryRepository(runner)
		logger.Info().Msg("database connected, persistence enabled")
	} else {
		logger.Warn().Msg("DATABASE_URL not set, running stateless")
	}

	var countryLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable")
	} else if resolver != nil {
		defer resolver.Close()
		countryLookup = resolver.CountryCode
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		AllowedOrigins:  cfg.AllowedOrigins,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   countryLookup,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
