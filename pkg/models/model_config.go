package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownModelType は対応していないモデル種別の設定で返されます。
var ErrUnknownModelType = errors.New("unknown model type")

// ModelType 設定の予測モデルの種別
type ModelType string

const (
	ModelTypeProphet ModelType = "prophet"
	ModelTypeXGBoost ModelType = "xgboost"
)

// SeasonalityMode Prophet の季節性モード
type SeasonalityMode string

const (
	SeasonalityAdditive       SeasonalityMode = "additive"
	SeasonalityMultiplicative SeasonalityMode = "multiplicative"
)

// TargetSeries アセットの属性と学習に使う期間の組。
// 予測対象のほか、回帰変数と共変量にも使います。
type TargetSeries struct {
	AssetID            string `json:"asset_id"`
	AttributeName      string `json:"attribute_name"`
	TrainingDataPeriod string `json:"training_data_period"`
}

// Complete はすべての項目が入力済みかを返します。
func (s TargetSeries) Complete() bool {
	return s.AssetID != "" && s.AttributeName != "" && s.TrainingDataPeriod != ""
}

// ModelParams ModelConfig の種別固有の部分。
// ProphetParams と XGBoostParams だけが実装します。
type ModelParams interface {
	ModelType() ModelType
	sealed()
}

// ProphetParams Prophet モデルのパラメータ
type ProphetParams struct {
	Regressors            []TargetSeries  `json:"regressors"`
	YearlySeasonality     bool            `json:"yearly_seasonality"`
	WeeklySeasonality     bool            `json:"weekly_seasonality"`
	DailySeasonality      bool            `json:"daily_seasonality"`
	SeasonalityMode       SeasonalityMode `json:"seasonality_mode"`
	ChangepointRange      float64         `json:"changepoint_range"`
	ChangepointPriorScale float64         `json:"changepoint_prior_scale"`
	SeasonalityPriorScale float64         `json:"seasonality_prior_scale"`
}

func (ProphetParams) ModelType() ModelType { return ModelTypeProphet }
func (ProphetParams) sealed()              {}

// XGBoostParams XGBoost モデルのパラメータ
type XGBoostParams struct {
	Covariates   []TargetSeries `json:"covariates"`
	Lags         int            `json:"lags"`
	NEstimators  int            `json:"n_estimators"`
	MaxDepth     int            `json:"max_depth"`
	LearningRate float64        `json:"learning_rate"`
}

func (XGBoostParams) ModelType() ModelType { return ModelTypeXGBoost }
func (XGBoostParams) sealed()              {}

// ModelConfig 1つの予測ジョブの設定
type ModelConfig struct {
	ID      string
	Realm   string
	Name    string
	Enabled bool
	Target  TargetSeries

	// ForecastInterval 予測を生成する間隔（ISO-8601）
	ForecastInterval string
	// TrainingInterval モデルを再学習する間隔（ISO-8601）
	TrainingInterval string
	// ForecastPeriods 1回の予測で生成する点の数
	ForecastPeriods int
	// ForecastFrequency 予測点の間隔（pandas）
	ForecastFrequency string

	Params ModelParams
}

// Type は種別を返します。パラメータがなければ "" です。
func (c ModelConfig) Type() ModelType {
	if c.Params == nil {
		return ""
	}
	return c.Params.ModelType()
}

// Clone は系列のスライスも含めたコピーを返します。
func (c ModelConfig) Clone() ModelConfig {
	out := c
	switch p := c.Params.(type) {
	case ProphetParams:
		p.Regressors = cloneSeries(p.Regressors)
		out.Params = p
	case XGBoostParams:
		p.Covariates = cloneSeries(p.Covariates)
		out.Params = p
	}
	return out
}

func cloneSeries(in []TargetSeries) []TargetSeries {
	if in == nil {
		return nil
	}
	out := make([]TargetSeries, len(in))
	copy(out, in)
	return out
}

// configEnvelope はすべての種別に共通する項目です。
type configEnvelope struct {
	ID                string       `json:"id,omitempty"`
	Realm             string       `json:"realm"`
	Name              string       `json:"name"`
	Enabled           bool         `json:"enabled"`
	Type              ModelType    `json:"type"`
	Target            TargetSeries `json:"target"`
	ForecastInterval  string       `json:"forecast_interval"`
	TrainingInterval  string       `json:"training_interval"`
	ForecastPeriods   int          `json:"forecast_periods"`
	ForecastFrequency string       `json:"forecast_frequency"`
}

// MarshalJSON は共通項目と種別固有のパラメータを同じ階層に並べ、"type" で種別を示します。
func (c ModelConfig) MarshalJSON() ([]byte, error) {
	envelope := configEnvelope{
		ID:                c.ID,
		Realm:             c.Realm,
		Name:              c.Name,
		Enabled:           c.Enabled,
		Type:              c.Type(),
		Target:            c.Target,
		ForecastInterval:  c.ForecastInterval,
		TrainingInterval:  c.TrainingInterval,
		ForecastPeriods:   c.ForecastPeriods,
		ForecastFrequency: c.ForecastFrequency,
	}

	fields := map[string]json.RawMessage{}
	if c.Params != nil {
		raw, err := json.Marshal(c.Params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s params: %w", c.Type(), err)
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
	}

	raw, err := json.Marshal(envelope)
	if err != nil {
		return nil, err
	}
	shared := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &shared); err != nil {
		return nil, err
	}
	for k, v := range shared {
		fields[k] = v
	}
	return json.Marshal(fields)
}

func (c *ModelConfig) UnmarshalJSON(data []byte) error {
	var envelope configEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}

	var params ModelParams
	switch envelope.Type {
	case ModelTypeProphet:
		var p ProphetParams
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("failed to parse prophet params: %w", err)
		}
		params = p
	case ModelTypeXGBoost:
		var p XGBoostParams
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("failed to parse xgboost params: %w", err)
		}
		params = p
	default:
		return fmt.Errorf("%w: %q", ErrUnknownModelType, envelope.Type)
	}

	*c = ModelConfig{
		ID:                envelope.ID,
		Realm:             envelope.Realm,
		Name:              envelope.Name,
		Enabled:           envelope.Enabled,
		Target:            envelope.Target,
		ForecastInterval:  envelope.ForecastInterval,
		TrainingInterval:  envelope.TrainingInterval,
		ForecastPeriods:   envelope.ForecastPeriods,
		ForecastFrequency: envelope.ForecastFrequency,
		Params:            params,
	}
	return nil
}
