package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config はアプリケーションの設定を保持します
type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// ServiceURL 予測サービスの REST API のベースURL
	ServiceURL string
	// OpenRemoteURL アセットへのリンクに使う外部プラットフォームのURL
	OpenRemoteURL string
	// Embedded プラットフォームに埋め込まれた表示ではヘッダーを出しません
	Embedded     bool
	DefaultRealm string

	KeycloakURL          string
	KeycloakRealm        string
	KeycloakClientID     string
	KeycloakClientSecret string
	TokenRefreshInterval time.Duration

	RequestTimeout time.Duration
	CORSOrigins    []string
}

// LoadConfig は環境変数から設定を読み込みます
func LoadConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVICE_URL", "http://localhost:8000")
	v.SetDefault("OPENREMOTE_URL", "http://localhost:8080")
	v.SetDefault("EMBEDDED", false)
	v.SetDefault("DEFAULT_REALM", "master")
	v.SetDefault("KEYCLOAK_URL", "http://localhost:8081/auth")
	v.SetDefault("KEYCLOAK_REALM", "master")
	v.SetDefault("KEYCLOAK_CLIENT_ID", "")
	v.SetDefault("KEYCLOAK_CLIENT_SECRET", "")
	v.SetDefault("TOKEN_REFRESH_INTERVAL", "60s")
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("CORS_ORIGINS", "")

	return &Config{
		Port:                 v.GetString("PORT"),
		Environment:          v.GetString("ENVIRONMENT"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		ServiceURL:           strings.TrimRight(v.GetString("SERVICE_URL"), "/"),
		OpenRemoteURL:        strings.TrimRight(v.GetString("OPENREMOTE_URL"), "/"),
		Embedded:             v.GetBool("EMBEDDED"),
		DefaultRealm:         v.GetString("DEFAULT_REALM"),
		KeycloakURL:          strings.TrimRight(v.GetString("KEYCLOAK_URL"), "/"),
		KeycloakRealm:        v.GetString("KEYCLOAK_REALM"),
		KeycloakClientID:     v.GetString("KEYCLOAK_CLIENT_ID"),
		KeycloakClientSecret: v.GetString("KEYCLOAK_CLIENT_SECRET"),
		TokenRefreshInterval: v.GetDuration("TOKEN_REFRESH_INTERVAL"),
		RequestTimeout:       v.GetDuration("REQUEST_TIMEOUT"),
		CORSOrigins:          splitList(v.GetString("CORS_ORIGINS")),
	}
}

// HasClientCredentials はサービスアカウントの認証情報が設定されているかを返します。
func (c *Config) HasClientCredentials() bool {
	return c.KeycloakClientID != "" && c.KeycloakClientSecret != ""
}

// IsDevelopment は開発環境で動作しているかを返します。
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// splitList はカンマ区切りの値を分割し、空の要素を除きます
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
