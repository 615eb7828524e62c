package listview_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ml-forecast-admin/pkg/listview"
	"ml-forecast-admin/pkg/models"
	"ml-forecast-admin/pkg/services"
	"ml-forecast-admin/pkg/services/servicetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func config(name, assetID string, enabled bool) models.ModelConfig {
	return models.ModelConfig{
		Realm:             "master",
		Name:              name,
		Enabled:           enabled,
		Target:            models.TargetSeries{AssetID: assetID, AttributeName: "power", TrainingDataPeriod: "P6M"},
		ForecastInterval:  "PT1H",
		TrainingInterval:  "P1D",
		ForecastPeriods:   24,
		ForecastFrequency: "1h",
		Params:            models.XGBoostParams{Lags: 24, NEstimators: 100, MaxDepth: 6, LearningRate: 0.1},
	}
}

func setup(t *testing.T) (*servicetest.Fake, *listview.ListView) {
	t.Helper()
	fake := servicetest.New()
	fake.AddAsset(models.Asset{ID: "a1", Name: "Main meter"})
	fake.AddConfig(config("A meter", "a1", true))
	fake.AddConfig(config("B meter", "a1", false))
	fake.AddConfig(config("C removed", "gone", true))

	server := fake.Server()
	t.Cleanup(server.Close)
	client := services.NewForecastClient(server.URL, time.Second, nil)
	return fake, listview.New(client, "master")
}

func TestLoadJoinsAssetNames(t *testing.T) {
	fake, view := setup(t)

	state, _ := view.State()
	assert.Equal(t, listview.StateLoading, state)

	require.NoError(t, view.Load(context.Background()))
	rows := view.Rows()
	require.Len(t, rows, 3)

	assert.Equal(t, "Main meter", rows[0].Target())
	assert.Equal(t, "Enabled", rows[0].Status())
	assert.Equal(t, "Disabled", rows[1].Status())
	assert.False(t, rows[2].AssetFound)
	assert.Equal(t, "Not found", rows[2].Target())

	assert.Equal(t, 1, fake.Count(http.MethodGet, "/assets/ids"), "asset ids are looked up once")
}

func TestAssetLookupFailureDegradesRows(t *testing.T) {
	fake, view := setup(t)
	fake.Fail(http.MethodGet, "/assets/ids", http.StatusBadGateway, 1)

	require.NoError(t, view.Load(context.Background()))
	for _, r := range view.Rows() {
		assert.False(t, r.AssetFound, r.Config.Name)
	}
	state, err := view.State()
	assert.Equal(t, listview.StateReady, state)
	assert.NoError(t, err)
}

func TestConfigFetchFailureFailsView(t *testing.T) {
	fake, view := setup(t)
	fake.Fail(http.MethodGet, "/configs", http.StatusInternalServerError, 1)

	err := view.Load(context.Background())
	var httpErr *services.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)

	state, loadErr := view.State()
	assert.Equal(t, listview.StateFailed, state)
	assert.Equal(t, err, loadErr)
	assert.Zero(t, fake.Count(http.MethodGet, "/assets/ids"))
}

func TestEmptyListSkipsAssetLookup(t *testing.T) {
	fake := servicetest.New()
	server := fake.Server()
	defer server.Close()

	view := listview.New(services.NewForecastClient(server.URL, time.Second, nil), "master")
	require.NoError(t, view.Load(context.Background()))
	assert.Empty(t, view.Rows())
	assert.Zero(t, fake.Count(http.MethodGet, "/assets/ids"))
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	fake, view := setup(t)
	require.NoError(t, view.Load(context.Background()))
	id := view.Rows()[0].Config.ID

	err := view.Delete(context.Background(), id, false)
	assert.True(t, errors.Is(err, listview.ErrDeleteNotConfirmed))
	assert.Zero(t, fake.Count(http.MethodDelete, "/configs"))
	assert.Len(t, view.Rows(), 3)

	require.NoError(t, view.Delete(context.Background(), id, true))
	assert.Equal(t, 1, fake.Count(http.MethodDelete, "/configs/"+id))
	assert.Len(t, view.Rows(), 2)
	_, ok := view.Row(id)
	assert.False(t, ok)

	listCalls := fake.Count(http.MethodGet, "/configs")
	assert.Equal(t, 1, listCalls, "delete does not refetch")
}

func TestDeleteFailureKeepsRow(t *testing.T) {
	fake, view := setup(t)
	require.NoError(t, view.Load(context.Background()))
	id := view.Rows()[1].Config.ID
	fake.Fail(http.MethodDelete, id, http.StatusForbidden, 1)

	err := view.Delete(context.Background(), id, true)
	require.Error(t, err)
	_, ok := view.Row(id)
	assert.True(t, ok)

	err = view.Delete(context.Background(), "unknown", true)
	assert.True(t, errors.Is(err, listview.ErrRowNotFound))
}

func TestConcurrentLoadIsRejected(t *testing.T) {
	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived <- struct{}{}
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("[]"))
	}))
	defer slow.Close()

	view := listview.New(services.NewForecastClient(slow.URL, 5*time.Second, nil), "master")
	done := make(chan error)
	go func() { done <- view.Load(context.Background()) }()

	<-arrived
	assert.True(t, errors.Is(view.Load(context.Background()), listview.ErrLoadInFlight))

	close(release)
	assert.NoError(t, <-done)
}

func TestConcurrentDeleteSendsOneRequest(t *testing.T) {
	fake := servicetest.New()
	cfg := fake.AddConfig(config("A meter", "a1", true))

	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	backend := fake.Handler()
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			arrived <- struct{}{}
			<-release
		}
		backend.ServeHTTP(w, r)
	}))
	defer slow.Close()

	view := listview.New(services.NewForecastClient(slow.URL, 5*time.Second, nil), "master")
	require.NoError(t, view.Load(context.Background()))

	done := make(chan error)
	go func() { done <- view.Delete(context.Background(), cfg.ID, true) }()

	<-arrived
	err := view.Delete(context.Background(), cfg.ID, true)
	assert.True(t, errors.Is(err, listview.ErrDeleteInFlight))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, fake.Count(http.MethodDelete, "/configs/"+cfg.ID))
	assert.Empty(t, view.Rows())

	err = view.Delete(context.Background(), cfg.ID, true)
	assert.True(t, errors.Is(err, listview.ErrRowNotFound))
	assert.Equal(t, 1, fake.Count(http.MethodDelete, "/configs/"+cfg.ID))
}

func TestUnknownConfigTypeDoesNotFailView(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/master/configs" {
			w.Write([]byte(`[
		{"id":"c1","realm":"master","name":"Meter","enabled":true,"type":"xgboost",
		 "target":{"asset_id":"a1","attribute_name":"power","training_data_period":"P6M"},
		 "forecast_interval":"PT1H","training_interval":"P1D","forecast_periods":24,"forecast_frequency":"1h",
		 "covariates":[],"lags":24,"n_estimators":100,"max_depth":6,"learning_rate":0.1},
		{"id":"c2","realm":"master","name":"Legacy","type":"arima"}
	]`))
			return
		}
		w.Write([]byte(`[{"id":"a1","name":"Main meter"}]`))
	}))
	defer server.Close()

	view := listview.New(services.NewForecastClient(server.URL, time.Second, nil), "master")
	require.NoError(t, view.Load(context.Background()))

	state, err := view.State()
	assert.Equal(t, listview.StateReady, state)
	assert.NoError(t, err)
	rows := view.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "c1", rows[0].Config.ID)
	assert.Equal(t, "Main meter", rows[0].Target())
}
