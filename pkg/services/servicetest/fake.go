// Package servicetest はテストとローカル開発用のインメモリの予測サービスを提供します。
package servicetest

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"ml-forecast-admin/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Request は Fake が受け取ったリクエストです。
type Request struct {
	Method        string
	Path          string
	Authorization string
}

// Fake は設定とアセットのエンドポイントを実装したインメモリの予測サービスです。
type Fake struct {
	mu          sync.Mutex
	configs     map[string]models.ModelConfig
	assets      map[string]models.Asset
	realmConfig models.RealmConfig
	failures    []*failure
	requests    []Request
}

type failure struct {
	method    string
	fragment  string
	status    int
	remaining int
}

// New は空の Fake を生成します。
func New() *Fake {
	return &Fake{
		configs: map[string]models.ModelConfig{},
		assets:  map[string]models.Asset{},
	}
}

// AddAsset はアセットを保存します。
func (f *Fake) AddAsset(a models.Asset) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assets[a.ID] = a
}

// AddConfig は設定を保存して返します。id がなければ割り当てます。
func (f *Fake) AddConfig(cfg models.ModelConfig) models.ModelConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	f.configs[cfg.ID] = cfg.Clone()
	return cfg
}

// Config は保存された設定を返します。
func (f *Fake) Config(id string) (models.ModelConfig, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.configs[id]
	return cfg, ok
}

// SetRealmConfig はすべてのレルムで返す表示設定を設定します。
func (f *Fake) SetRealmConfig(cfg models.RealmConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.realmConfig = cfg
}

// Fail は method でパスに fragment を含む次の n 件のリクエストに status を返させます。
func (f *Fake) Fail(method, fragment string, status, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, &failure{method: method, fragment: fragment, status: status, remaining: n})
}

// Requests は受け取ったリクエストを返します。
func (f *Fake) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// Count は method でパスに fragment を含むリクエストの件数を返します。
func (f *Fake) Count(method, fragment string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Method == method && strings.Contains(r.Path, fragment) {
			n++
		}
	}
	return n
}

// Server は Fake を使う httptest のサーバーを起動します。
func (f *Fake) Server() *httptest.Server {
	return httptest.NewServer(f.Handler())
}

// Handler は Fake のエンドポイントを提供する gin のエンジンを返します。
func (f *Fake) Handler() http.Handler {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(f.observe)

	api := r.Group("/api/:realm/configs")
	{
		api.GET("", f.listConfigs)
		api.POST("", f.createConfig)
		api.GET("/:id", f.getConfig)
		api.PUT("/:id", f.updateConfig)
		api.DELETE("/:id", f.deleteConfig)
	}

	platform := r.Group("/openremote/:realm")
	{
		platform.GET("/assets", f.listAssets)
		platform.GET("/assets/ids", f.assetsByIDs)
		platform.GET("/realm/config", f.getRealmConfig)
	}
	return r
}

func (f *Fake) observe(c *gin.Context) {
	f.mu.Lock()
	f.requests = append(f.requests, Request{
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		Authorization: c.GetHeader("Authorization"),
	})
	for _, fl := range f.failures {
		if fl.remaining > 0 && fl.method == c.Request.Method && strings.Contains(c.Request.URL.Path, fl.fragment) {
			fl.remaining--
			f.mu.Unlock()
			c.AbortWithStatusJSON(fl.status, gin.H{"error": http.StatusText(fl.status)})
			return
		}
	}
	f.mu.Unlock()
	c.Next()
}

func (f *Fake) listConfigs(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	realm := c.Param("realm")
	out := make([]models.ModelConfig, 0, len(f.configs))
	for _, cfg := range f.configs {
		if cfg.Realm == realm {
			out = append(out, cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	c.JSON(http.StatusOK, out)
}

func (f *Fake) getConfig(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.configs[c.Param("id")]
	if !ok || cfg.Realm != c.Param("realm") {
		c.JSON(http.StatusNotFound, gin.H{"error": "config not found"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (f *Fake) createConfig(c *gin.Context) {
	var cfg models.ModelConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg.ID = ""
	cfg.Realm = c.Param("realm")
	c.JSON(http.StatusOK, f.AddConfig(cfg))
}

func (f *Fake) updateConfig(c *gin.Context) {
	var cfg models.ModelConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, ok := f.Config(c.Param("id")); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "config not found"})
		return
	}
	cfg.ID = c.Param("id")
	cfg.Realm = c.Param("realm")
	c.JSON(http.StatusOK, f.AddConfig(cfg))
}

func (f *Fake) deleteConfig(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.configs[c.Param("id")]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "config not found"})
		return
	}
	delete(f.configs, c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (f *Fake) listAssets(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Asset, 0, len(f.assets))
	for _, a := range f.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	c.JSON(http.StatusOK, out)
}

func (f *Fake) assetsByIDs(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Asset, 0)
	for _, id := range c.QueryArray("ids") {
		if a, ok := f.assets[id]; ok {
			out = append(out, a)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (f *Fake) getRealmConfig(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.JSON(http.StatusOK, f.realmConfig)
}
