package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// ErrTokenUnavailable はトークンを取得できなかったことを示します。
var ErrTokenUnavailable = errors.New("access token unavailable")

// expirySkew だけ早く期限切れとみなし、時計のずれで失効済みのトークンを送らないようにします。
const expirySkew = 30 * time.Second

// TokenService はクライアントクレデンシャルでアクセストークンを取得し、
// 一定間隔で更新します。
type TokenService struct {
	tokenURL     string
	clientID     string
	clientSecret string
	interval     time.Duration
	client       *http.Client
	now          func() time.Time

	// refreshMu は同時に1件だけトークンを取得させます。
	refreshMu sync.Mutex
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// NewTokenService は新しいTokenServiceを生成します。
func NewTokenService(keycloakURL, realm, clientID, clientSecret string, interval, timeout time.Duration) *TokenService {
	return &TokenService{
		tokenURL:     strings.TrimRight(keycloakURL, "/") + "/realms/" + url.PathEscape(realm) + "/protocol/openid-connect/token",
		clientID:     clientID,
		clientSecret: clientSecret,
		interval:     interval,
		client: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

// Token はキャッシュ済みのトークンを返します。期限切れの場合は取得し直します。
// 同時に呼ばれても取得は1回だけ行われます。
func (ts *TokenService) Token(ctx context.Context) (string, error) {
	if token, ok := ts.cached(); ok {
		return token, nil
	}

	ts.refreshMu.Lock()
	defer ts.refreshMu.Unlock()
	if token, ok := ts.cached(); ok {
		return token, nil
	}
	if err := ts.refreshLocked(ctx); err != nil {
		return "", err
	}

	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.token, nil
}

func (ts *TokenService) cached() (string, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	if ts.token == "" || !ts.now().Add(expirySkew).Before(ts.expiresAt) {
		return "", false
	}
	return ts.token, true
}

// Refresh はトークンを取得してキャッシュを更新します。
func (ts *TokenService) Refresh(ctx context.Context) error {
	ts.refreshMu.Lock()
	defer ts.refreshMu.Unlock()
	return ts.refreshLocked(ctx)
}

func (ts *TokenService) refreshLocked(ctx context.Context) error {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {ts.clientID},
		"client_secret": {ts.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: identity provider returned %d", ErrTokenUnavailable, resp.StatusCode)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to parse token response: %w", err)
	}
	if body.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", ErrTokenUnavailable)
	}

	expiresAt := ts.expiry(body)

	ts.mu.Lock()
	ts.token = body.AccessToken
	ts.expiresAt = expiresAt
	ts.mu.Unlock()

	log.Debug().Time("expires_at", expiresAt).Msg("Access token refreshed")
	return nil
}

// expiry はトークンのexpクレーム、なければexpires_inから有効期限を求めます。
// 署名の検証は行いません（検証はサービス側の責務です）。
func (ts *TokenService) expiry(body tokenResponse) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(body.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	if body.ExpiresIn > 0 {
		return ts.now().Add(time.Duration(body.ExpiresIn) * time.Second)
	}
	return ts.now().Add(ts.interval)
}

// Start は一定間隔でトークンを更新します。ctx がキャンセルされると停止します。
func (ts *TokenService) Start(ctx context.Context) {
	if ts.interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(ts.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ts.Refresh(ctx); err != nil {
					log.Error().Err(err).Msg("Failed to refresh access token")
				}
			}
		}
	}()
}
