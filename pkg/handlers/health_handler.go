package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SessionCounter は保持中のセッション数を返します。
type SessionCounter interface {
	Len() int
}

// HealthHandler は外部のヘルスチェッカー（例: ロードバランサー）向けのハンドラです。
type HealthHandler struct {
	environment string
	embedded    bool
	editors     SessionCounter
	views       SessionCounter
}

// NewHealthHandler は新しいHealthHandlerを生成します。
func NewHealthHandler(environment string, embedded bool, editors, views SessionCounter) *HealthHandler {
	return &HealthHandler{
		environment: environment,
		embedded:    embedded,
		editors:     editors,
		views:       views,
	}
}

// HealthCheck はサーバーの状態を返します。
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"environment": h.environment,
		"embedded":    h.embedded,
		"sessions": gin.H{
			"editors": h.editors.Len(),
			"views":   h.views.Len(),
		},
	})
}
