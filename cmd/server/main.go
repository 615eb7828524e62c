package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	config "ml-forecast-admin/configs"
	"ml-forecast-admin/pkg/logger"
	"ml-forecast-admin/pkg/server"
	"ml-forecast-admin/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// .envファイルを読み込み
	envErr := godotenv.Load()

	// 設定の読み込み
	cfg := config.LoadConfig()
	logger.Init("ml-forecast-admin", cfg.LogLevel, cfg.IsDevelopment())
	if envErr != nil {
		log.Warn().Err(envErr).Msg(".env file not found or could not be loaded")
	}
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// サービスの初期化
	var tokens services.TokenProvider
	if cfg.HasClientCredentials() {
		tokenService := services.NewTokenService(
			cfg.KeycloakURL,
			cfg.KeycloakRealm,
			cfg.KeycloakClientID,
			cfg.KeycloakClientSecret,
			cfg.TokenRefreshInterval,
			cfg.RequestTimeout,
		)
		if err := tokenService.Refresh(ctx); err != nil {
			log.Fatal().Err(err).Str("keycloak", cfg.KeycloakURL).Msg("Failed to acquire service token")
		}
		tokenService.Start(ctx)
		tokens = tokenService
	} else {
		log.Warn().Msg("Keycloak client credentials are not set; only request tokens are forwarded")
	}

	client := services.NewForecastClient(cfg.ServiceURL, cfg.RequestTimeout, tokens)
	router, err := server.NewRouter(cfg, server.Deps{
		API:        client,
		Monitoring: services.NewMonitoringService(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build router")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("service_url", cfg.ServiceURL).Bool("embedded", cfg.Embedded).Msg("Starting ML forecast admin server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}
