package handlers

import (
	"net/http"
	"time"

	"ml-forecast-admin/pkg/services"

	"github.com/gin-gonic/gin"
)

// MonitoringHandler はモニタリング関連の操作のハンドラです。
type MonitoringHandler struct {
	Service *services.MonitoringService
}

// NewMonitoringHandler は新しいMonitoringHandlerを生成します。
func NewMonitoringHandler(service *services.MonitoringService) *MonitoringHandler {
	return &MonitoringHandler{
		Service: service,
	}
}

// GetLogs は集計されたリクエストログを返します。period は 1h, 24h, 7d のいずれかです。
func (h *MonitoringHandler) GetLogs(c *gin.Context) {
	var period time.Duration
	switch c.DefaultQuery("period", "24h") {
	case "1h":
		period = time.Hour
	case "7d":
		period = 7 * 24 * time.Hour
	default:
		period = 24 * time.Hour
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    h.Service.GetSummary(period),
	})
}
