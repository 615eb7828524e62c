package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ml-forecast-admin/pkg/models"

	"github.com/rs/zerolog/log"
)

// HTTPError は2xx以外のレスポンスを表すエラーです。
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Status)
}

// TokenProvider はアクセストークンを提供します。
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

type tokenContextKey struct{}

// WithToken はリクエストスコープのアクセストークンをコンテキストに設定します。
// 設定されたトークンは TokenProvider より優先されます。
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext はコンテキストのアクセストークンを返します。
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey{}).(string)
	return token, ok && token != ""
}

// ForecastClient は予測サービスのREST APIクライアントです。
type ForecastClient struct {
	baseURL string
	client  *http.Client
	tokens  TokenProvider
}

// NewForecastClient は新しいForecastClientを生成します。tokens はnilでも構いません。
func NewForecastClient(baseURL string, timeout time.Duration, tokens TokenProvider) *ForecastClient {
	return &ForecastClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		tokens: tokens,
	}
}

// ListConfigs はレルムのモデル設定一覧を取得します。
// 未対応のモデル種別など、読み取れない設定は警告を出して一覧から除外します。
func (fc *ForecastClient) ListConfigs(ctx context.Context, realm string) ([]models.ModelConfig, error) {
	var raw []json.RawMessage
	if err := fc.do(ctx, http.MethodGet, configsPath(realm), nil, nil, &raw); err != nil {
		return nil, err
	}

	configs := make([]models.ModelConfig, 0, len(raw))
	for i, item := range raw {
		var cfg models.ModelConfig
		if err := json.Unmarshal(item, &cfg); err != nil {
			var ref struct {
				ID   string `json:"id"`
				Type string `json:"type"`
			}
			_ = json.Unmarshal(item, &ref)
			log.Warn().Err(err).Str("realm", realm).Int("index", i).Str("config_id", ref.ID).Str("type", ref.Type).Msg("Skipping unreadable model config")
			continue
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// GetConfig はモデル設定を1件取得します。
func (fc *ForecastClient) GetConfig(ctx context.Context, realm, id string) (models.ModelConfig, error) {
	var cfg models.ModelConfig
	err := fc.do(ctx, http.MethodGet, configsPath(realm)+"/"+url.PathEscape(id), nil, nil, &cfg)
	return cfg, err
}

// CreateConfig はモデル設定を作成し、サーバーが返した設定を返します。
func (fc *ForecastClient) CreateConfig(ctx context.Context, realm string, cfg models.ModelConfig) (models.ModelConfig, error) {
	var created models.ModelConfig
	err := fc.do(ctx, http.MethodPost, configsPath(realm), nil, cfg, &created)
	return created, err
}

// UpdateConfig はモデル設定を更新し、サーバーが返した設定を返します。
func (fc *ForecastClient) UpdateConfig(ctx context.Context, realm string, cfg models.ModelConfig) (models.ModelConfig, error) {
	var updated models.ModelConfig
	err := fc.do(ctx, http.MethodPut, configsPath(realm)+"/"+url.PathEscape(cfg.ID), nil, cfg, &updated)
	return updated, err
}

// DeleteConfig はモデル設定を削除します。
func (fc *ForecastClient) DeleteConfig(ctx context.Context, realm, id string) error {
	return fc.do(ctx, http.MethodDelete, configsPath(realm)+"/"+url.PathEscape(id), nil, nil, nil)
}

// ListAssets はレルムのアセット一覧を取得します。
func (fc *ForecastClient) ListAssets(ctx context.Context, realm string) ([]models.Asset, error) {
	var assets []models.Asset
	if err := fc.do(ctx, http.MethodGet, assetsPath(realm), nil, nil, &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// GetAssetsByIDs はID指定でアセットを取得します。存在しないIDは結果に含まれません。
func (fc *ForecastClient) GetAssetsByIDs(ctx context.Context, realm string, ids []string) ([]models.Asset, error) {
	if len(ids) == 0 {
		return []models.Asset{}, nil
	}
	query := url.Values{"ids": ids}
	var assets []models.Asset
	if err := fc.do(ctx, http.MethodGet, assetsPath(realm)+"/ids", query, nil, &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// GetRealmConfig はレルムの表示設定を取得します。
func (fc *ForecastClient) GetRealmConfig(ctx context.Context, realm string) (models.RealmConfig, error) {
	var cfg models.RealmConfig
	err := fc.do(ctx, http.MethodGet, "/openremote/"+url.PathEscape(realm)+"/realm/config", nil, nil, &cfg)
	return cfg, err
}

func configsPath(realm string) string {
	return "/api/" + url.PathEscape(realm) + "/configs"
}

func assetsPath(realm string) string {
	return "/openremote/" + url.PathEscape(realm) + "/assets"
}

// do はリクエストを送信し、レスポンスを out にデコードします。
func (fc *ForecastClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := fc.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := fc.token(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := fc.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("method", method).Str("path", path).Msg("Forecast service request failed")
		return fmt.Errorf("failed to call forecast service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("Forecast service returned an error")
		return &HTTPError{Method: method, Path: path, StatusCode: resp.StatusCode, Status: statusText(resp)}
	}

	if out == nil {
		return nil
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

// token はコンテキストのトークン、なければ TokenProvider のトークンを返します。
func (fc *ForecastClient) token(ctx context.Context) (string, error) {
	if token, ok := TokenFromContext(ctx); ok {
		return token, nil
	}
	if fc.tokens == nil {
		return "", nil
	}
	token, err := fc.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to acquire access token: %w", err)
	}
	return token, nil
}

func statusText(resp *http.Response) string {
	if text := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode))); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
