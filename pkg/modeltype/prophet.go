package modeltype

import (
	"fmt"

	"ml-forecast-admin/pkg/form"
	"ml-forecast-admin/pkg/models"
)

// Prophet は Prophet モデルの記述子です。
type Prophet struct{}

func (Prophet) Type() models.ModelType { return models.ModelTypeProphet }
func (Prophet) Label() string          { return "Prophet" }
func (Prophet) SeriesLabel() string    { return "Regressors" }

func (Prophet) Defaults() models.ModelParams {
	return models.ProphetParams{
		YearlySeasonality:     true,
		WeeklySeasonality:     true,
		DailySeasonality:      true,
		SeasonalityMode:       models.SeasonalityAdditive,
		ChangepointRange:      0.8,
		ChangepointPriorScale: 0.05,
		SeasonalityPriorScale: 10,
	}
}

func (Prophet) ParamFields(params models.ModelParams) []form.Field {
	p, _ := params.(models.ProphetParams)
	return []form.Field{
		{Name: "yearly_seasonality", Label: "Yearly seasonality", Kind: form.KindCheckbox, Checked: p.YearlySeasonality},
		{Name: "weekly_seasonality", Label: "Weekly seasonality", Kind: form.KindCheckbox, Checked: p.WeeklySeasonality},
		{Name: "daily_seasonality", Label: "Daily seasonality", Kind: form.KindCheckbox, Checked: p.DailySeasonality},
		{
			Name: "seasonality_mode", Label: "Seasonality mode", Kind: form.KindSelect,
			Value: string(p.SeasonalityMode),
			Options: []form.Option{
				{Value: string(models.SeasonalityAdditive), Label: "Additive"},
				{Value: string(models.SeasonalityMultiplicative), Label: "Multiplicative"},
			},
			Rules: form.Rules{Required: true},
		},
		{
			Name: "changepoint_range", Label: "Changepoint range", Kind: form.KindNumber, Step: "0.01",
			Value: form.FormatFloat(p.ChangepointRange),
			Rules: form.Rules{Required: true, Min: form.Bound(0), Max: form.Bound(1)},
		},
		{
			Name: "changepoint_prior_scale", Label: "Changepoint prior scale", Kind: form.KindNumber, Step: "0.001",
			Value: form.FormatFloat(p.ChangepointPriorScale),
			Rules: form.Rules{Required: true, Min: form.Bound(0.001), Max: form.Bound(100)},
		},
		{
			Name: "seasonality_prior_scale", Label: "Seasonality prior scale", Kind: form.KindNumber, Step: "0.01",
			Value: form.FormatFloat(p.SeasonalityPriorScale),
			Rules: form.Rules{Required: true, Min: form.Bound(0.01), Max: form.Bound(100)},
		},
	}
}

func (Prophet) ApplyParam(params models.ModelParams, field, value string) (models.ModelParams, error) {
	p, ok := params.(models.ProphetParams)
	if !ok {
		return params, ErrParamsMismatch
	}

	var err error
	switch field {
	case "yearly_seasonality":
		p.YearlySeasonality, err = parseBool(value)
	case "weekly_seasonality":
		p.WeeklySeasonality, err = parseBool(value)
	case "daily_seasonality":
		p.DailySeasonality, err = parseBool(value)
	case "seasonality_mode":
		p.SeasonalityMode = models.SeasonalityMode(value)
	case "changepoint_range":
		p.ChangepointRange, err = parseFloat(value)
	case "changepoint_prior_scale":
		p.ChangepointPriorScale, err = parseFloat(value)
	case "seasonality_prior_scale":
		p.SeasonalityPriorScale, err = parseFloat(value)
	default:
		return params, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	if err != nil {
		return params, err
	}
	return p, nil
}

func (Prophet) Series(params models.ModelParams) []models.TargetSeries {
	p, _ := params.(models.ProphetParams)
	return p.Regressors
}

func (Prophet) WithSeries(params models.ModelParams, series []models.TargetSeries) models.ModelParams {
	p, ok := params.(models.ProphetParams)
	if !ok {
		return params
	}
	p.Regressors = series
	return p
}

func (d Prophet) Validate(cfg models.ModelConfig) error {
	p, ok := cfg.Params.(models.ProphetParams)
	if !ok {
		return ErrParamsMismatch
	}
	if p.SeasonalityMode != models.SeasonalityAdditive && p.SeasonalityMode != models.SeasonalityMultiplicative {
		return fmt.Errorf("%w: seasonality mode %q", ErrInvalidValue, p.SeasonalityMode)
	}
	return validateSeries(d.SeriesLabel(), p.Regressors)
}
