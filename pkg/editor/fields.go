package editor

import (
	"fmt"
	"strconv"

	"ml-forecast-admin/pkg/duration"
	"ml-forecast-admin/pkg/form"
)

// Fields は共通項目と種別固有項目の入力を、現在のエラー付きで返します。
func (e *Editor) Fields() []form.Field {
	e.mu.Lock()
	defer e.mu.Unlock()
	fields := e.fieldsLocked()
	form.CheckAll(fields)
	e.annotate(fields)
	return fields
}

// SeriesFields は回帰変数・共変量の行ごとの入力を返します。
func (e *Editor) SeriesFields() [][]form.Field {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows := e.seriesFieldsLocked()
	for _, row := range rows {
		form.CheckAll(row)
		e.annotate(row)
	}
	return rows
}

// SeriesLabel は現在の種別の系列一覧の名前です。
func (e *Editor) SeriesLabel() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d, ok := e.descriptorLocked(); ok {
		return d.SeriesLabel()
	}
	return ""
}

// annotate は解釈できなかった入力のエラーを項目に重ねます。
func (e *Editor) annotate(fields []form.Field) {
	for i := range fields {
		if msg, ok := e.inputErrs[fields[i].Name]; ok {
			fields[i].Error = msg
		}
	}
}

func (e *Editor) fieldsLocked() []form.Field {
	d := e.draft
	fields := []form.Field{
		{Name: "name", Label: "Name", Kind: form.KindText, Value: d.Name,
			Rules: form.Rules{Required: true, MaxLength: 255}},
		{Name: "enabled", Label: "Enabled", Kind: form.KindCheckbox, Checked: d.Enabled},
		{Name: "type", Label: "Model type", Kind: form.KindSelect, Value: string(d.Type()),
			Options: e.registry.SelectOptions(), Rules: form.Rules{Required: true}},
		{Name: "target.asset_id", Label: "Asset", Kind: form.KindSelect, Value: d.Target.AssetID,
			Options: e.assetOptionsLocked(d.Target.AssetID), Rules: form.Rules{Required: true}},
		{Name: "target.attribute_name", Label: "Attribute", Kind: form.KindSelect, Value: d.Target.AttributeName,
			Options: e.attributeOptionsLocked(d.Target.AssetID, d.Target.AttributeName), Rules: form.Rules{Required: true}},
		isoField("target.training_data_period", "Training data period", d.Target.TrainingDataPeriod),
		isoField("forecast_interval", "Forecast interval", d.ForecastInterval),
		isoField("training_interval", "Training interval", d.TrainingInterval),
		{Name: "forecast_periods", Label: "Forecast periods", Kind: form.KindNumber, Step: "1",
			Value: strconv.Itoa(d.ForecastPeriods),
			Rules: form.Rules{Required: true, Integer: true, Min: form.Bound(1), Max: form.Bound(10000)}},
		{Name: "forecast_frequency", Label: "Forecast frequency", Kind: form.KindDuration, Value: d.ForecastFrequency,
			Notation: duration.Pandas, Rules: form.Rules{Required: true, Pattern: duration.Pattern(duration.Pandas)}},
	}

	if desc, ok := e.descriptorLocked(); ok {
		fields = append(fields, desc.ParamFields(d.Params)...)
	}
	return fields
}

func (e *Editor) seriesFieldsLocked() [][]form.Field {
	desc, ok := e.descriptorLocked()
	if !ok {
		return nil
	}
	series := desc.Series(e.draft.Params)
	rows := make([][]form.Field, 0, len(series))
	for i, s := range series {
		prefix := SeriesFieldPrefix(i)
		rows = append(rows, []form.Field{
			{Name: prefix + "asset_id", Label: "Asset", Kind: form.KindSelect, Value: s.AssetID,
				Options: e.assetOptionsLocked(s.AssetID), Rules: form.Rules{Required: true}},
			{Name: prefix + "attribute_name", Label: "Attribute", Kind: form.KindSelect, Value: s.AttributeName,
				Options: e.attributeOptionsLocked(s.AssetID, s.AttributeName), Rules: form.Rules{Required: true}},
			isoField(prefix+"training_data_period", "Training data period", s.TrainingDataPeriod),
		})
	}
	return rows
}

// SeriesFieldPrefix は系列行の入力名の接頭辞です。
func SeriesFieldPrefix(index int) string {
	return fmt.Sprintf("series.%d.", index)
}

func isoField(name, label, value string) form.Field {
	return form.Field{
		Name: name, Label: label, Kind: form.KindDuration, Value: value, Notation: duration.ISO,
		Rules: form.Rules{Required: true, Pattern: duration.Pattern(duration.ISO)},
	}
}

// assetOptionsLocked は参照用アセットの選択肢です。
// 参照データにない選択中の id も、見つからない旨の表示で残します。
func (e *Editor) assetOptionsLocked(selected string) []form.Option {
	options := make([]form.Option, 0, len(e.assets)+1)
	found := selected == ""
	for _, a := range e.assets {
		options = append(options, form.Option{Value: a.ID, Label: a.Name})
		if a.ID == selected {
			found = true
		}
	}
	if !found {
		options = append(options, form.Option{Value: selected, Label: "Not found (" + selected + ")"})
	}
	return options
}

func (e *Editor) attributeOptionsLocked(assetID, selected string) []form.Option {
	var options []form.Option
	asset, ok := e.assetLocked(assetID)
	if ok {
		for _, name := range asset.AttributeNames() {
			options = append(options, form.Option{Value: name, Label: name})
		}
	}
	if !ok && selected != "" {
		options = append(options, form.Option{Value: selected, Label: selected})
	}
	return options
}

// AssetName は参照用アセットの表示名を返します。
func (e *Editor) AssetName(id string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.assetLocked(id)
	return a.Name, ok
}
