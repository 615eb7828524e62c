package services_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ml-forecast-admin/pkg/models"
	"ml-forecast-admin/pkg/services"
	"ml-forecast-admin/pkg/services/servicetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens string

func (s staticTokens) Token(context.Context) (string, error) { return string(s), nil }

type failingTokens struct{}

func (failingTokens) Token(context.Context) (string, error) {
	return "", services.ErrTokenUnavailable
}

func sampleConfig() models.ModelConfig {
	return models.ModelConfig{
		Realm:             "master",
		Name:              "Building power",
		Enabled:           true,
		Target:            models.TargetSeries{AssetID: "a1", AttributeName: "power", TrainingDataPeriod: "P6M"},
		ForecastInterval:  "PT1H",
		TrainingInterval:  "P1D",
		ForecastPeriods:   24,
		ForecastFrequency: "1h",
		Params:            models.XGBoostParams{Lags: 24, NEstimators: 100, MaxDepth: 6, LearningRate: 0.1},
	}
}

func TestForecastClientCRUD(t *testing.T) {
	fake := servicetest.New()
	server := fake.Server()
	defer server.Close()

	client := services.NewForecastClient(server.URL, time.Second, staticTokens("service-token"))
	ctx := context.Background()

	created, err := client.CreateConfig(ctx, "master", sampleConfig())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := client.GetConfig(ctx, "master", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	got.Name = "Renamed"
	updated, err := client.UpdateConfig(ctx, "master", got)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	list, err := client.ListConfigs(ctx, "master")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, client.DeleteConfig(ctx, "master", created.ID))
	list, err = client.ListConfigs(ctx, "master")
	require.NoError(t, err)
	assert.Empty(t, list)

	for _, r := range fake.Requests() {
		assert.Equal(t, "Bearer service-token", r.Authorization, r.Path)
	}
}

func TestForecastClientContextTokenWins(t *testing.T) {
	fake := servicetest.New()
	server := fake.Server()
	defer server.Close()

	client := services.NewForecastClient(server.URL, time.Second, staticTokens("service-token"))
	ctx := services.WithToken(context.Background(), "user-token")

	_, err := client.ListConfigs(ctx, "master")
	require.NoError(t, err)
	assert.Equal(t, "Bearer user-token", fake.Requests()[0].Authorization)
}

func TestForecastClientWithoutToken(t *testing.T) {
	fake := servicetest.New()
	server := fake.Server()
	defer server.Close()

	client := services.NewForecastClient(server.URL, time.Second, nil)
	_, err := client.ListAssets(context.Background(), "master")
	require.NoError(t, err)
	assert.Empty(t, fake.Requests()[0].Authorization)
}

func TestForecastClientTokenFailure(t *testing.T) {
	fake := servicetest.New()
	server := fake.Server()
	defer server.Close()

	client := services.NewForecastClient(server.URL, time.Second, failingTokens{})
	_, err := client.ListConfigs(context.Background(), "master")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrTokenUnavailable))
	assert.Empty(t, fake.Requests())
}

func TestForecastClientHTTPError(t *testing.T) {
	fake := servicetest.New()
	server := fake.Server()
	defer server.Close()

	client := services.NewForecastClient(server.URL, time.Second, nil)

	_, err := client.GetConfig(context.Background(), "master", "missing")
	var httpErr *services.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, "Not Found", httpErr.Status)

	fake.Fail(http.MethodGet, "/configs", http.StatusInternalServerError, 1)
	_, err = client.ListConfigs(context.Background(), "master")
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, "Internal Server Error", httpErr.Status)
	assert.Contains(t, err.Error(), "Internal Server Error")
}

func TestForecastClientAssetsByIDs(t *testing.T) {
	fake := servicetest.New()
	fake.AddAsset(models.Asset{ID: "a1", Name: "Main meter"})
	fake.AddAsset(models.Asset{ID: "a2", Name: "Weather station"})
	server := fake.Server()
	defer server.Close()

	client := services.NewForecastClient(server.URL, time.Second, nil)

	assets, err := client.GetAssetsByIDs(context.Background(), "master", []string{"a2", "gone"})
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "Weather station", assets[0].Name)

	assets, err = client.GetAssetsByIDs(context.Background(), "master", nil)
	require.NoError(t, err)
	assert.Empty(t, assets)
	assert.Equal(t, 1, fake.Count(http.MethodGet, "/assets/ids"))
}

func TestForecastClientRealmConfig(t *testing.T) {
	fake := servicetest.New()
	fake.SetRealmConfig(models.RealmConfig{Styles: ":root{--or-app-color4:#4d9d2a}", Logo: "/logo.png"})
	server := fake.Server()
	defer server.Close()

	client := services.NewForecastClient(server.URL, time.Second, nil)
	cfg, err := client.GetRealmConfig(context.Background(), "master")
	require.NoError(t, err)
	assert.Equal(t, "/logo.png", cfg.Logo)
}

func TestForecastClientSkipsUnknownConfigTypes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
		{"id":"c1","realm":"master","name":"Meter","enabled":true,"type":"xgboost",
		 "target":{"asset_id":"a1","attribute_name":"power","training_data_period":"P6M"},
		 "forecast_interval":"PT1H","training_interval":"P1D","forecast_periods":24,"forecast_frequency":"1h",
		 "covariates":[],"lags":24,"n_estimators":100,"max_depth":6,"learning_rate":0.1},
		{"id":"c2","realm":"master","name":"Legacy","type":"arima"}
	]`))
	}))
	defer server.Close()

	client := services.NewForecastClient(server.URL, time.Second, nil)
	configs, err := client.ListConfigs(context.Background(), "master")
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "c1", configs[0].ID)
	assert.Equal(t, models.ModelTypeXGBoost, configs[0].Type())
}
