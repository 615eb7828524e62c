package handler

import (
	"net/http"
	"sync"

	config "ml-forecast-admin/configs"
	"ml-forecast-admin/pkg/logger"
	"ml-forecast-admin/pkg/server"
	"ml-forecast-admin/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var (
	app     http.Handler
	initErr error
	once    sync.Once
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
func setupApp() (http.Handler, error) {
	once.Do(func() {
		// .envファイルはプラットフォームの環境変数設定から読み込まれるため、ここではgodotenvを呼び出しません。
		cfg := config.LoadConfig()
		logger.Init("ml-forecast-admin", cfg.LogLevel, false)
		gin.SetMode(gin.ReleaseMode)

		var tokens services.TokenProvider
		if cfg.HasClientCredentials() {
			// 関数インスタンスは長く生きないため、定期更新は行わず期限切れ時に取得します。
			tokens = services.NewTokenService(
				cfg.KeycloakURL,
				cfg.KeycloakRealm,
				cfg.KeycloakClientID,
				cfg.KeycloakClientSecret,
				cfg.TokenRefreshInterval,
				cfg.RequestTimeout,
			)
		}

		router, err := server.NewRouter(cfg, server.Deps{
			API: services.NewForecastClient(cfg.ServiceURL, cfg.RequestTimeout, tokens),
		})
		if err != nil {
			initErr = err
			return
		}
		log.Info().Str("service_url", cfg.ServiceURL).Msg("Initialized serverless handler")
		app = router
	})
	return app, initErr
}

// Handler はサーバーレス環境からのすべてのリクエストを処理するエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	h, err := setupApp()
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize handler")
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	h.ServeHTTP(w, r)
}
