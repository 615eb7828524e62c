package modeltype

import (
	"fmt"
	"strconv"

	"ml-forecast-admin/pkg/form"
	"ml-forecast-admin/pkg/models"
)

// XGBoost は XGBoost モデルの記述子です。
type XGBoost struct{}

func (XGBoost) Type() models.ModelType { return models.ModelTypeXGBoost }
func (XGBoost) Label() string          { return "XGBoost" }
func (XGBoost) SeriesLabel() string    { return "Covariates" }

func (XGBoost) Defaults() models.ModelParams {
	return models.XGBoostParams{
		Lags:         24,
		NEstimators:  100,
		MaxDepth:     6,
		LearningRate: 0.1,
	}
}

func (XGBoost) ParamFields(params models.ModelParams) []form.Field {
	p, _ := params.(models.XGBoostParams)
	return []form.Field{
		{
			Name: "lags", Label: "Lags", Kind: form.KindNumber, Step: "1",
			Value: strconv.Itoa(p.Lags),
			Rules: form.Rules{Required: true, Integer: true, Min: form.Bound(1), Max: form.Bound(1000)},
		},
		{
			Name: "n_estimators", Label: "Estimators", Kind: form.KindNumber, Step: "1",
			Value: strconv.Itoa(p.NEstimators),
			Rules: form.Rules{Required: true, Integer: true, Min: form.Bound(1), Max: form.Bound(10000)},
		},
		{
			Name: "max_depth", Label: "Max depth", Kind: form.KindNumber, Step: "1",
			Value: strconv.Itoa(p.MaxDepth),
			Rules: form.Rules{Required: true, Integer: true, Min: form.Bound(1), Max: form.Bound(100)},
		},
		{
			Name: "learning_rate", Label: "Learning rate", Kind: form.KindNumber, Step: "0.001",
			Value: form.FormatFloat(p.LearningRate),
			Rules: form.Rules{Required: true, Min: form.Bound(0.001), Max: form.Bound(1)},
		},
	}
}

func (XGBoost) ApplyParam(params models.ModelParams, field, value string) (models.ModelParams, error) {
	p, ok := params.(models.XGBoostParams)
	if !ok {
		return params, ErrParamsMismatch
	}

	var err error
	switch field {
	case "lags":
		p.Lags, err = parseInt(value)
	case "n_estimators":
		p.NEstimators, err = parseInt(value)
	case "max_depth":
		p.MaxDepth, err = parseInt(value)
	case "learning_rate":
		p.LearningRate, err = parseFloat(value)
	default:
		return params, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	if err != nil {
		return params, err
	}
	return p, nil
}

func (XGBoost) Series(params models.ModelParams) []models.TargetSeries {
	p, _ := params.(models.XGBoostParams)
	return p.Covariates
}

func (XGBoost) WithSeries(params models.ModelParams, series []models.TargetSeries) models.ModelParams {
	p, ok := params.(models.XGBoostParams)
	if !ok {
		return params
	}
	p.Covariates = series
	return p
}

func (d XGBoost) Validate(cfg models.ModelConfig) error {
	p, ok := cfg.Params.(models.XGBoostParams)
	if !ok {
		return ErrParamsMismatch
	}
	return validateSeries(d.SeriesLabel(), p.Covariates)
}
