package editor

import (
	"fmt"
	"strconv"
	"strings"

	"ml-forecast-admin/pkg/models"
)

// Change は下書きへの1つの編集です。
type Change interface {
	apply(e *Editor) error
}

type (
	SetName             struct{ Value string }
	SetEnabled          struct{ Value bool }
	SetTargetAsset      struct{ AssetID string }
	SetTargetAttribute  struct{ Name string }
	SetTargetWindow     struct{ Period string }
	SetForecastInterval struct{ Value string }
	SetTrainingInterval struct{ Value string }
	// SetForecastPeriods は入力値をそのまま保持し、解釈できない値を項目エラーとして表示させます。
	SetForecastPeriods   struct{ Value string }
	SetForecastFrequency struct{ Value string }
	// SetType は下書きを新しい種別の既定値に置き換えます。
	SetType struct{ Type models.ModelType }
	// SetParam は種別固有のパラメータを入力値から設定します。
	SetParam  struct{ Field, Value string }
	AddSeries struct{}
	// RemoveSeries は Index の行だけを削除します。
	RemoveSeries struct{ Index int }
	UpdateSeries struct {
		Index  int
		Series models.TargetSeries
	}
)

func (c SetName) apply(e *Editor) error {
	e.draft.Name = c.Value
	return nil
}

func (c SetEnabled) apply(e *Editor) error {
	e.draft.Enabled = c.Value
	return nil
}

// apply は新しいアセットに属性がなければ属性を空にします。
func (c SetTargetAsset) apply(e *Editor) error {
	if c.AssetID == e.draft.Target.AssetID {
		return nil
	}
	e.draft.Target.AssetID = c.AssetID
	if asset, ok := e.assetLocked(c.AssetID); !ok || !asset.HasAttribute(e.draft.Target.AttributeName) {
		e.draft.Target.AttributeName = ""
	}
	return nil
}

func (c SetTargetAttribute) apply(e *Editor) error {
	e.draft.Target.AttributeName = c.Name
	return nil
}

func (c SetTargetWindow) apply(e *Editor) error {
	e.draft.Target.TrainingDataPeriod = c.Period
	return nil
}

func (c SetForecastInterval) apply(e *Editor) error {
	e.draft.ForecastInterval = c.Value
	return nil
}

func (c SetTrainingInterval) apply(e *Editor) error {
	e.draft.TrainingInterval = c.Value
	return nil
}

func (c SetForecastPeriods) apply(e *Editor) error {
	const field = "forecast_periods"
	n, err := strconv.Atoi(strings.TrimSpace(c.Value))
	if err != nil {
		e.inputErrs[field] = "Forecast periods must be a whole number"
		return fmt.Errorf("%s: %w", field, err)
	}
	delete(e.inputErrs, field)
	e.draft.ForecastPeriods = n
	return nil
}

func (c SetForecastFrequency) apply(e *Editor) error {
	e.draft.ForecastFrequency = c.Value
	return nil
}

// apply は共通項目を残し、以前の種別のパラメータと系列を破棄します。
func (c SetType) apply(e *Editor) error {
	if c.Type == e.draft.Type() {
		return nil
	}
	d, ok := e.registry.Get(c.Type)
	if !ok {
		e.inputErrs["type"] = fmt.Sprintf("Unsupported model type %q", c.Type)
		return fmt.Errorf("%w: %q", models.ErrUnknownModelType, c.Type)
	}
	for name := range e.inputErrs {
		if name != "forecast_periods" {
			delete(e.inputErrs, name)
		}
	}
	e.draft.Params = d.Defaults()
	return nil
}

func (c SetParam) apply(e *Editor) error {
	d, ok := e.descriptorLocked()
	if !ok {
		return fmt.Errorf("%w: %q", models.ErrUnknownModelType, e.draft.Type())
	}
	params, err := d.ApplyParam(e.draft.Params, c.Field, c.Value)
	if err != nil {
		e.inputErrs[c.Field] = err.Error()
		return fmt.Errorf("%s: %w", c.Field, err)
	}
	delete(e.inputErrs, c.Field)
	e.draft.Params = params
	return nil
}

func (c AddSeries) apply(e *Editor) error {
	d, ok := e.descriptorLocked()
	if !ok {
		return fmt.Errorf("%w: %q", models.ErrUnknownModelType, e.draft.Type())
	}
	series := append(cloneSeries(d.Series(e.draft.Params)), models.TargetSeries{
		TrainingDataPeriod: e.draft.Target.TrainingDataPeriod,
	})
	e.draft.Params = d.WithSeries(e.draft.Params, series)
	return nil
}

func (c RemoveSeries) apply(e *Editor) error {
	d, ok := e.descriptorLocked()
	if !ok {
		return fmt.Errorf("%w: %q", models.ErrUnknownModelType, e.draft.Type())
	}
	current := d.Series(e.draft.Params)
	if c.Index < 0 || c.Index >= len(current) {
		return fmt.Errorf("series row %d out of range", c.Index)
	}
	series := make([]models.TargetSeries, 0, len(current)-1)
	series = append(series, current[:c.Index]...)
	series = append(series, current[c.Index+1:]...)
	e.draft.Params = d.WithSeries(e.draft.Params, series)
	return nil
}

// apply は新しいアセットに属性がなければ行の属性を空にします。
func (c UpdateSeries) apply(e *Editor) error {
	d, ok := e.descriptorLocked()
	if !ok {
		return fmt.Errorf("%w: %q", models.ErrUnknownModelType, e.draft.Type())
	}
	series := cloneSeries(d.Series(e.draft.Params))
	if c.Index < 0 || c.Index >= len(series) {
		return fmt.Errorf("series row %d out of range", c.Index)
	}
	row := c.Series
	if row.AssetID != series[c.Index].AssetID {
		if asset, ok := e.assetLocked(row.AssetID); !ok || !asset.HasAttribute(row.AttributeName) {
			row.AttributeName = ""
		}
	}
	series[c.Index] = row
	e.draft.Params = d.WithSeries(e.draft.Params, series)
	return nil
}

func cloneSeries(in []models.TargetSeries) []models.TargetSeries {
	out := make([]models.TargetSeries, len(in))
	copy(out, in)
	return out
}
