// Package server はハンドラを gin のエンジンに登録します。
// 常駐サーバーとサーバーレスのエントリーポイントで共有します。
package server

import (
	"fmt"
	"time"

	config "ml-forecast-admin/configs"
	"ml-forecast-admin/pkg/editor"
	"ml-forecast-admin/pkg/handlers"
	"ml-forecast-admin/pkg/listview"
	"ml-forecast-admin/pkg/modeltype"
	"ml-forecast-admin/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const (
	sessionTTL   = 30 * time.Minute
	sessionLimit = 500
)

// Deps はルーターが利用するサービスです。
type Deps struct {
	API        handlers.ForecastAPI
	Monitoring *services.MonitoringService
	// Registry の既定値は modeltype.Default() です。
	Registry *modeltype.Registry
}

// NewRouter はすべてのルートを登録した gin のエンジンを生成します。
func NewRouter(cfg *config.Config, deps Deps) (*gin.Engine, error) {
	tmpl, err := handlers.LoadTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if deps.Registry == nil {
		deps.Registry = modeltype.Default()
	}
	if deps.Monitoring == nil {
		deps.Monitoring = services.NewMonitoringService()
	}

	editors := services.NewSessionStore[*editor.Editor](sessionTTL, sessionLimit)
	views := services.NewSessionStore[*listview.ListView](sessionTTL, sessionLimit)

	configHandler := handlers.NewConfigHandler(
		deps.API,
		deps.Registry,
		editors,
		views,
		services.NewExportService(),
		handlers.UIOptions{
			Embedded:     cfg.Embedded,
			DefaultRealm: cfg.DefaultRealm,
			PlatformURL:  cfg.OpenRemoteURL,
		},
	)
	healthHandler := handlers.NewHealthHandler(cfg.Environment, cfg.Embedded, editors, views)
	monitoringHandler := handlers.NewMonitoringHandler(deps.Monitoring)

	r := gin.New()
	r.SetHTMLTemplate(tmpl)

	// ミドルウェアの登録
	r.Use(gin.Recovery())
	r.Use(deps.Monitoring.LoggingMiddleware())
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(handlers.BearerToken())

	r.GET("/", configHandler.Root)
	r.GET("/health", healthHandler.HealthCheck)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/monitoring/logs", monitoringHandler.GetLogs)
	}

	realm := r.Group("/:realm")
	{
		realm.GET("/configs", configHandler.List)
		realm.GET("/configs/export.xlsx", configHandler.Export)
		realm.GET("/configs/new", configHandler.New)
		realm.GET("/configs/:id", configHandler.Edit)

		realm.POST("/editor/:session", configHandler.Submit)
		realm.GET("/editor/:session/state", configHandler.State)

		realm.GET("/views/:view/delete/:id", configHandler.ConfirmDelete)
		realm.POST("/views/:view/delete/:id", configHandler.Delete)
	}

	r.NoRoute(configHandler.NotFound)
	return r, nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	c.AllowHeaders = append(c.AllowHeaders, "Authorization")
	return c
}
