package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const maxLogEntries = 5000

// LogEntry は単一のリクエストログを表します。
type LogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Route        string        `json:"route"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	Realm        string        `json:"realm,omitempty"`
	StatusCode   int           `json:"statusCode"`
	ResponseTime time.Duration `json:"responseTime"`
}

// MonitoringService はリクエストの記録と集計を提供します。
type MonitoringService struct {
	logs []LogEntry
	mu   sync.RWMutex
	now  func() time.Time
}

// NewMonitoringService は新しいMonitoringServiceを生成します。
func NewMonitoringService() *MonitoringService {
	return &MonitoringService{
		logs: make([]LogEntry, 0),
		now:  time.Now,
	}
}

// LogRequest はリクエストを記録します。古いものから破棄されます。
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogEntries {
		s.logs = append(s.logs[:0:0], s.logs[len(s.logs)-maxLogEntries:]...)
	}
}

// LoggingMiddleware はリクエストを zerolog に出力し、集計用に記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := s.now()

		c.Next()

		path := c.Request.URL.Path
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		entry := LogEntry{
			Timestamp:    start,
			Route:        route,
			Path:         path,
			Method:       c.Request.Method,
			Realm:        c.Param("realm"),
			StatusCode:   c.Writer.Status(),
			ResponseTime: s.now().Sub(start),
		}

		event := log.Info()
		switch {
		case entry.StatusCode >= 500:
			event = log.Error()
		case entry.StatusCode >= 400:
			event = log.Warn()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Str("method", entry.Method).
			Str("path", path).
			Str("realm", entry.Realm).
			Int("status", entry.StatusCode).
			Dur("latency", entry.ResponseTime).
			Msg("Request handled")

		// モニタリングとヘルスチェック自体は集計しない
		if path == "/health" || strings.HasPrefix(path, "/api/v1/monitoring") {
			return
		}
		s.LogRequest(entry)
	}
}

// RouteSummary はルート単位の集計です。
type RouteSummary struct {
	Route         string `json:"route"`
	Requests      int    `json:"requests"`
	AvgResponseMs int64  `json:"avgResponseMs"`
	ServerErrors  int    `json:"serverErrors"`
	ClientErrors  int    `json:"clientErrors"`
}

// Summary はダッシュボード表示用の集計済みデータです。
type Summary struct {
	Since        time.Time      `json:"since"`
	Total        int            `json:"total"`
	StatusCodes  map[string]int `json:"statusCodes"`
	Routes       []RouteSummary `json:"routes"`
	RecentErrors []LogEntry     `json:"recentErrors"`
}

// GetSummary は直近 period のログを集計します。
func (s *MonitoringService) GetSummary(period time.Duration) Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	since := s.now().Add(-period)
	summary := Summary{
		Since: since,
		StatusCodes: map[string]int{
			"2xx Success":      0,
			"3xx Redirect":     0,
			"4xx Client Error": 0,
			"5xx Server Error": 0,
		},
		Routes:       make([]RouteSummary, 0),
		RecentErrors: make([]LogEntry, 0),
	}

	byRoute := map[string]*RouteSummary{}
	totalTime := map[string]time.Duration{}
	for _, entry := range s.logs {
		if entry.Timestamp.Before(since) {
			continue
		}
		summary.Total++

		rs, ok := byRoute[entry.Route]
		if !ok {
			rs = &RouteSummary{Route: entry.Route}
			byRoute[entry.Route] = rs
		}
		rs.Requests++
		totalTime[entry.Route] += entry.ResponseTime

		switch {
		case entry.StatusCode >= 500:
			summary.StatusCodes["5xx Server Error"]++
			rs.ServerErrors++
		case entry.StatusCode >= 400:
			summary.StatusCodes["4xx Client Error"]++
			rs.ClientErrors++
		case entry.StatusCode >= 300:
			summary.StatusCodes["3xx Redirect"]++
		case entry.StatusCode >= 200:
			summary.StatusCodes["2xx Success"]++
		}
	}

	for route, rs := range byRoute {
		rs.AvgResponseMs = totalTime[route].Milliseconds() / int64(rs.Requests)
		summary.Routes = append(summary.Routes, *rs)
	}
	sort.Slice(summary.Routes, func(i, j int) bool {
		if summary.Routes[i].Requests != summary.Routes[j].Requests {
			return summary.Routes[i].Requests > summary.Routes[j].Requests
		}
		return summary.Routes[i].Route < summary.Routes[j].Route
	})

	// 新しい順に最大10件
	for i := len(s.logs) - 1; i >= 0 && len(summary.RecentErrors) < 10; i-- {
		if s.logs[i].StatusCode >= 500 && !s.logs[i].Timestamp.Before(since) {
			summary.RecentErrors = append(summary.RecentErrors, s.logs[i])
		}
	}
	return summary
}
