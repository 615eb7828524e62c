package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	config "ml-forecast-admin/configs"
	"ml-forecast-admin/pkg/handlers"
	"ml-forecast-admin/pkg/models"
	"ml-forecast-admin/pkg/services"
	"ml-forecast-admin/pkg/services/servicetest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var (
	editorAction = regexp.MustCompile(`action="(/master/editor/[^"]+)"`)
	deleteHref   = regexp.MustCompile(`href="(/master/views/[^"]+/delete/[^"]+)"`)
)

type testEnv struct {
	fake   *servicetest.Fake
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fake := servicetest.New()
	fake.AddAsset(models.Asset{ID: "a1", Name: "Main meter", Attributes: map[string]models.AssetAttribute{
		"power": {Name: "power", Type: "number"}, "energy": {Name: "energy", Type: "number"},
	}})
	fake.AddAsset(models.Asset{ID: "a2", Name: "Weather station", Attributes: map[string]models.AssetAttribute{
		"temperature": {Name: "temperature", Type: "number"},
	}})
	fake.SetRealmConfig(models.RealmConfig{Styles: "body { color: #123456; }", Logo: "/logo.png"})
	server := fake.Server()
	t.Cleanup(server.Close)

	cfg := &config.Config{Environment: "test", DefaultRealm: "master"}
	router, err := NewRouter(cfg, Deps{API: services.NewForecastClient(server.URL, time.Second, nil)})
	require.NoError(t, err)
	return &testEnv{fake: fake, router: router}
}

func (env *testEnv) addConfig(name, assetID string, enabled bool) models.ModelConfig {
	return env.fake.AddConfig(models.ModelConfig{
		Realm:             "master",
		Name:              name,
		Enabled:           enabled,
		Target:            models.TargetSeries{AssetID: assetID, AttributeName: "power", TrainingDataPeriod: "P6M"},
		ForecastInterval:  "PT1H",
		TrainingInterval:  "P1D",
		ForecastPeriods:   24,
		ForecastFrequency: "1h",
		Params: models.ProphetParams{
			YearlySeasonality: true, WeeklySeasonality: true, DailySeasonality: true,
			SeasonalityMode: models.SeasonalityAdditive, ChangepointRange: 0.8,
			ChangepointPriorScale: 0.05, SeasonalityPriorScale: 10,
		},
	})
}

func (env *testEnv) do(method, path string, form url.Values, header ...string) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func (env *testEnv) openEditor(t *testing.T, path string) string {
	t.Helper()
	w := env.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	m := editorAction.FindStringSubmatch(w.Body.String())
	require.NotNil(t, m, "editor form not rendered")
	return m[1]
}

func (env *testEnv) state(t *testing.T, action string) handlers.EditorState {
	t.Helper()
	w := env.do(http.MethodGet, action+"/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var s handlers.EditorState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	return s
}

func editorForm(action string, pairs ...string) url.Values {
	v := url.Values{"_form": {"editor"}, "action": {action}}
	for i := 0; i+1 < len(pairs); i += 2 {
		v.Set(pairs[i], pairs[i+1])
	}
	return v
}

func TestRootRedirectsToDefaultRealm(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/master/configs", w.Header().Get("Location"))
}

func TestListPage(t *testing.T) {
	env := newTestEnv(t)
	env.addConfig("Building power", "a1", true)
	env.addConfig("Old meter", "deleted-asset", false)

	w := env.do(http.MethodGet, "/master/configs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()

	assert.Contains(t, body, "Building power")
	assert.Contains(t, body, "Main meter")
	assert.Contains(t, body, "Not found")
	assert.Contains(t, body, "Disabled")
	assert.Contains(t, body, "1 hour")
	assert.Contains(t, body, "body { color: #123456; }")
	assert.Contains(t, body, `<span aria-current="page">Model configs</span>`)
}

func TestListPageLoadFailure(t *testing.T) {
	env := newTestEnv(t)
	env.fake.Fail(http.MethodGet, "/configs", http.StatusServiceUnavailable, 1)

	w := env.do(http.MethodGet, "/master/configs", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to load model configs")
}

func TestEmbeddedModeHidesHeader(t *testing.T) {
	env := newTestEnv(t)
	srv := env.fake.Server()
	defer srv.Close()
	cfg := &config.Config{DefaultRealm: "master", Embedded: true}
	router, err := NewRouter(cfg, Deps{API: services.NewForecastClient(srv.URL, time.Second, nil)})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/master/configs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `class="app-header"`)

	w = env.do(http.MethodGet, "/master/configs", nil)
	assert.Contains(t, w.Body.String(), `class="app-header"`)
}

func TestCreateRedirectsToEditPage(t *testing.T) {
	env := newTestEnv(t)
	action := env.openEditor(t, "/master/configs/new")

	s := env.state(t, action)
	assert.Equal(t, "ready", string(s.State))
	assert.False(t, s.Valid)
	assert.False(t, s.CanSave)

	w := env.do(http.MethodPost, action, editorForm("update",
		"name", "Main meter power",
		"target.asset_id", "a1",
		"target.attribute_name", "temperature",
	))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<option value="energy">energy</option>`)

	s = env.state(t, action)
	assert.False(t, s.Valid, "the attribute posted with a new asset is ignored")
	assert.Contains(t, s.Errors, "target.attribute_name")

	w = env.do(http.MethodPost, action, editorForm("save",
		"name", "Main meter power",
		"target.asset_id", "a1",
		"target.attribute_name", "power",
		"forecast_interval.value", "2",
		"forecast_interval.unit", "PT{n}H",
	))
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	location := w.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/master/configs/"), location)
	assert.True(t, strings.HasSuffix(location, "?created=1"))

	id := strings.TrimSuffix(strings.TrimPrefix(location, "/master/configs/"), "?created=1")
	created, ok := env.fake.Config(id)
	require.True(t, ok)
	assert.Equal(t, "Main meter power", created.Name)
	assert.Equal(t, "PT2H", created.ForecastInterval)
	assert.Equal(t, models.ModelTypeProphet, created.Type())
	assert.False(t, created.Enabled, "an unchecked checkbox is not posted")

	w = env.do(http.MethodGet, location, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Model config created.")
	assert.Contains(t, w.Body.String(), `<span aria-current="page">Main meter power</span>`)

	w = env.do(http.MethodGet, action+"/state", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "the create session is closed")
}

func TestSwitchTypeRendersNewParams(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.addConfig("Building power", "a1", true)
	action := env.openEditor(t, "/master/configs/"+cfg.ID)

	w := env.do(http.MethodPost, action, editorForm("update",
		"enabled", "true",
		"type", "xgboost",
		"changepoint_range", "0.5",
	))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Covariates")
	assert.Contains(t, body, `name="lags"`)
	assert.NotContains(t, body, `name="changepoint_range"`)

	s := env.state(t, action)
	assert.True(t, s.Valid, s.Errors)
	assert.True(t, s.Modified)
	assert.True(t, s.CanSave)
}

func TestInvalidInputBlocksSave(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.addConfig("Building power", "a1", true)
	action := env.openEditor(t, "/master/configs/"+cfg.ID)

	w := env.do(http.MethodPost, action, editorForm("save",
		"enabled", "true",
		"forecast_periods", "0",
	))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Forecast periods must be between 1 and 10000")
	assert.Zero(t, env.fake.Count(http.MethodPut, "/configs"))

	s := env.state(t, action)
	assert.False(t, s.Valid)
	assert.True(t, s.Modified)
}

func TestUnsupportedDurationIsShownAsText(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.addConfig("Building power", "a1", true)
	cfg.ForecastInterval = "PT90S"
	env.fake.AddConfig(cfg)

	action := env.openEditor(t, "/master/configs/"+cfg.ID)
	w := env.do(http.MethodGet, "/master/configs/"+cfg.ID, nil)
	assert.Contains(t, w.Body.String(), `name="forecast_interval" value="PT90S"`)
	assert.Contains(t, w.Body.String(), "Unsupported")

	s := env.state(t, action)
	assert.False(t, s.Valid)
	assert.Contains(t, s.Errors, "forecast_interval")

	env.do(http.MethodPost, action, editorForm("update", "enabled", "true", "forecast_interval", "PT2H"))
	s = env.state(t, action)
	assert.True(t, s.Valid, s.Errors)
}

func TestSaveFailureKeepsDraft(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.addConfig("Building power", "a1", true)
	action := env.openEditor(t, "/master/configs/"+cfg.ID)
	env.fake.Fail(http.MethodPut, cfg.ID, http.StatusInternalServerError, 1)

	w := env.do(http.MethodPost, action, editorForm("save", "enabled", "true", "name", "Renamed"))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to save model config")
	assert.Contains(t, w.Body.String(), `value="Renamed"`)

	stored, _ := env.fake.Config(cfg.ID)
	assert.Equal(t, "Building power", stored.Name)

	w = env.do(http.MethodPost, action, editorForm("save", "enabled", "true", "name", "Renamed"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Model config saved.")
	stored, _ = env.fake.Config(cfg.ID)
	assert.Equal(t, "Renamed", stored.Name)
}

func TestSeriesRows(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.addConfig("Building power", "a1", true)
	action := env.openEditor(t, "/master/configs/"+cfg.ID)

	w := env.do(http.MethodPost, action, editorForm("add_series", "enabled", "true"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="series.0.asset_id"`)
	assert.False(t, env.state(t, action).Valid, "an empty row blocks saving")

	env.do(http.MethodPost, action, editorForm("update",
		"enabled", "true",
		"series.0.asset_id", "a2",
		"series.0.attribute_name", "temperature",
	))
	assert.True(t, env.state(t, action).Valid)

	w = env.do(http.MethodPost, action, editorForm("remove_series:0", "enabled", "true"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `name="series.0.asset_id"`)
	assert.True(t, env.state(t, action).Valid)
}

func TestResetDiscardsDraft(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.addConfig("Building power", "a1", true)
	action := env.openEditor(t, "/master/configs/"+cfg.ID)

	env.do(http.MethodPost, action, editorForm("update", "enabled", "true", "name", "Renamed"))
	assert.True(t, env.state(t, action).Modified)

	w := env.do(http.MethodPost, action, url.Values{"action": {"reset"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, env.state(t, action).Modified)
}

func TestEditMissingConfig(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/master/configs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to load the editor")
	assert.NotContains(t, w.Body.String(), "<form")
}

func TestExpiredSession(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/master/editor/unknown", editorForm("update"))
	assert.Equal(t, http.StatusGone, w.Code)

	w = env.do(http.MethodGet, "/master/editor/unknown/state", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteFlow(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.addConfig("Building power", "a1", true)
	env.addConfig("Other", "a1", true)

	w := env.do(http.MethodGet, "/master/configs", nil)
	var href string
	for _, m := range deleteHref.FindAllStringSubmatch(w.Body.String(), -1) {
		if strings.HasSuffix(m[1], cfg.ID) {
			href = m[1]
		}
	}
	require.NotEmpty(t, href)

	w = env.do(http.MethodGet, href, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Delete model config <strong>Building power</strong>?")

	w = env.do(http.MethodPost, href, url.Values{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, env.fake.Count(http.MethodDelete, "/configs"))

	w = env.do(http.MethodPost, href, url.Values{"confirm": {"yes"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "deleted")
	assert.NotContains(t, w.Body.String(), ">Building power<")
	assert.Contains(t, w.Body.String(), "Other")

	assert.Equal(t, 1, env.fake.Count(http.MethodDelete, "/configs/"+cfg.ID))
	assert.Equal(t, 1, env.fake.Count(http.MethodGet, "/api/master/configs"), "the list is not refetched")
	_, ok := env.fake.Config(cfg.ID)
	assert.False(t, ok)
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	env.addConfig("Building power", "a1", true)
	env.addConfig("Old meter", "deleted-asset", false)

	w := env.do(http.MethodGet, "/master/configs/export.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "master-model-configs.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Model configs")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestBearerTokenIsForwarded(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodGet, "/master/configs", nil, "Authorization", "Bearer user-token")

	requests := env.fake.Requests()
	require.NotEmpty(t, requests)
	for _, r := range requests {
		assert.Equal(t, "Bearer user-token", r.Authorization, r.Path)
	}
}

func TestNotFoundPage(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/master/unknown/page", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `<span aria-current="page">Not found</span>`)
}

func TestHealthAndMonitoring(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodGet, "/master/configs", nil)

	w := env.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])

	w = env.do(http.MethodGet, "/api/v1/monitoring/logs?period=1h", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs struct {
		Success bool             `json:"success"`
		Data    services.Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	assert.True(t, logs.Success)
	assert.Equal(t, 1, logs.Data.Total)
}
