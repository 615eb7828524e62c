package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenServer(t *testing.T, token string, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/realms/master/protocol/openid-connect/token", r.URL.Path)
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		if r.PostForm.Get("client_secret") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": token, "expires_in": 300})
	}))
}

func TestTokenServiceCachesToken(t *testing.T) {
	var calls int32
	server := newTokenServer(t, "opaque-token", &calls)
	defer server.Close()

	ts := NewTokenService(server.URL, "master", "ml-forecast", "secret", time.Minute, time.Second)

	token, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", token)

	token, err = ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", token)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTokenServiceReadsJWTExpiry(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Unix()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp}).SignedString([]byte("k"))
	require.NoError(t, err)

	var calls int32
	server := newTokenServer(t, signed, &calls)
	defer server.Close()

	ts := NewTokenService(server.URL, "master", "ml-forecast", "secret", time.Minute, time.Second)
	require.NoError(t, ts.Refresh(context.Background()))
	assert.Equal(t, exp, ts.expiresAt.Unix())
}

func TestTokenServiceRefetchesExpiredToken(t *testing.T) {
	var calls int32
	server := newTokenServer(t, "opaque-token", &calls)
	defer server.Close()

	ts := NewTokenService(server.URL, "master", "ml-forecast", "secret", time.Minute, time.Second)
	now := time.Now()
	ts.now = func() time.Time { return now }

	_, err := ts.Token(context.Background())
	require.NoError(t, err)

	now = now.Add(10 * time.Minute)
	_, err = ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTokenServiceRejectedCredentials(t *testing.T) {
	var calls int32
	server := newTokenServer(t, "opaque-token", &calls)
	defer server.Close()

	ts := NewTokenService(server.URL, "master", "ml-forecast", "wrong", time.Minute, time.Second)
	_, err := ts.Token(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTokenUnavailable))
}

func TestTokenServiceConcurrentCallersShareOneRefresh(t *testing.T) {
	var calls int32
	server := newTokenServer(t, "opaque-token", &calls)
	defer server.Close()

	ts := NewTokenService(server.URL, "master", "ml-forecast", "secret", time.Minute, time.Second)

	var wg sync.WaitGroup
	tokens := make([]string, 8)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := ts.Token(context.Background())
			assert.NoError(t, err)
			tokens[i] = token
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, token := range tokens {
		assert.Equal(t, "opaque-token", token)
	}
}

func TestTokenServiceRefreshesBeforeExpiry(t *testing.T) {
	var calls int32
	server := newTokenServer(t, "opaque-token", &calls)
	defer server.Close()

	ts := NewTokenService(server.URL, "master", "ml-forecast", "secret", time.Minute, time.Second)
	now := time.Now()
	ts.now = func() time.Time { return now }

	_, err := ts.Token(context.Background())
	require.NoError(t, err)

	// expires_in は300秒。余裕時間の範囲に入ると期限切れとして扱います。
	now = now.Add(300*time.Second - expirySkew/2)
	_, err = ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
