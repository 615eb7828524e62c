package handlers

import (
	"net/url"
	"strconv"
	"strings"

	"ml-forecast-admin/pkg/duration"
	"ml-forecast-admin/pkg/editor"
	"ml-forecast-admin/pkg/form"
	"ml-forecast-admin/pkg/models"
)

// formMarker は編集フォームが送信する目印です。これがない送信は
// チェックボックスの未チェックと区別できないため、何もデコードしません。
const formMarker = "_form"

var sharedFields = map[string]bool{
	"name":                        true,
	"enabled":                     true,
	"type":                        true,
	"target.asset_id":             true,
	"target.attribute_name":       true,
	"target.training_data_period": true,
	"forecast_interval":           true,
	"training_interval":           true,
	"forecast_periods":            true,
	"forecast_frequency":          true,
}

// splitFields は共通項目と種別固有の項目を分けます。
func splitFields(fields []form.Field) (shared, params []form.Field) {
	for _, f := range fields {
		if sharedFields[f.Name] {
			shared = append(shared, f)
		} else {
			params = append(params, f)
		}
	}
	return shared, params
}

// decodeChanges は送信された編集フォームを現在の下書きへの変更に変換します。
// 種別の変更は最後に適用し、以前の種別のパラメータと系列の送信値は使いません。
// 対象アセットを変更した場合、以前のアセットから選んだ属性の送信値は使いません。
func decodeChanges(e *editor.Editor, values url.Values) []editor.Change {
	if values.Get(formMarker) == "" {
		return nil
	}

	draft := e.Draft()
	var (
		changes []editor.Change
		setType *editor.SetType
	)

	if t, ok := posted(values, "type"); ok && models.ModelType(t) != draft.Type() {
		setType = &editor.SetType{Type: models.ModelType(t)}
	}

	assetChanged := false
	for _, f := range e.Fields() {
		switch f.Name {
		case "name":
			if v, ok := posted(values, f.Name); ok {
				changes = append(changes, editor.SetName{Value: strings.TrimSpace(v)})
			}
		case "enabled":
			changes = append(changes, editor.SetEnabled{Value: checked(values, f.Name)})
		case "type":
		case "target.asset_id":
			if v, ok := posted(values, f.Name); ok && v != draft.Target.AssetID {
				assetChanged = true
				changes = append(changes, editor.SetTargetAsset{AssetID: v})
			}
		case "target.attribute_name":
			if v, ok := posted(values, f.Name); ok && !assetChanged {
				changes = append(changes, editor.SetTargetAttribute{Name: v})
			}
		case "target.training_data_period":
			if v, ok := durationValue(values, f); ok {
				changes = append(changes, editor.SetTargetWindow{Period: v})
			}
		case "forecast_interval":
			if v, ok := durationValue(values, f); ok {
				changes = append(changes, editor.SetForecastInterval{Value: v})
			}
		case "training_interval":
			if v, ok := durationValue(values, f); ok {
				changes = append(changes, editor.SetTrainingInterval{Value: v})
			}
		case "forecast_periods":
			if v, ok := posted(values, f.Name); ok {
				changes = append(changes, editor.SetForecastPeriods{Value: v})
			}
		case "forecast_frequency":
			if v, ok := durationValue(values, f); ok {
				changes = append(changes, editor.SetForecastFrequency{Value: v})
			}
		default:
			if setType != nil {
				continue
			}
			if f.Kind == form.KindCheckbox {
				changes = append(changes, editor.SetParam{Field: f.Name, Value: strconv.FormatBool(checked(values, f.Name))})
			} else if v, ok := posted(values, f.Name); ok {
				changes = append(changes, editor.SetParam{Field: f.Name, Value: v})
			}
		}
	}

	if setType == nil {
		for i, row := range e.SeriesFields() {
			if update, ok := decodeSeriesRow(values, i, row); ok {
				changes = append(changes, update)
			}
		}
	} else {
		changes = append(changes, *setType)
	}
	return changes
}

func decodeSeriesRow(values url.Values, index int, row []form.Field) (editor.UpdateSeries, bool) {
	prefix := editor.SeriesFieldPrefix(index)
	var (
		series models.TargetSeries
		found  bool
	)
	for _, f := range row {
		var (
			v  string
			ok bool
		)
		if f.Kind == form.KindDuration {
			v, ok = durationValue(values, f)
		} else {
			v, ok = posted(values, f.Name)
		}
		if !ok {
			v = f.Value
		}
		found = found || ok

		switch strings.TrimPrefix(f.Name, prefix) {
		case "asset_id":
			series.AssetID = v
		case "attribute_name":
			series.AttributeName = v
		case "training_data_period":
			series.TrainingDataPeriod = v
		}
	}
	return editor.UpdateSeries{Index: index, Series: series}, found
}

// durationValue は数値と単位の入力から期間を組み立てます。
// 未対応の値で表示されるテキスト入力だけが送信された場合は、そのまま読み取ります。
func durationValue(values url.Values, f form.Field) (string, bool) {
	magnitude, ok := posted(values, f.Name+".value")
	if !ok {
		return posted(values, f.Name)
	}
	magnitude = strings.TrimSpace(magnitude)
	if magnitude == "" {
		return "", true
	}

	unit := duration.Unit(values.Get(f.Name + ".unit"))
	n, err := strconv.Atoi(magnitude)
	if err != nil || !duration.KnownUnit(f.Notation, unit) {
		return magnitude, true
	}
	return duration.Format(n, unit), true
}

func posted(values url.Values, name string) (string, bool) {
	v, ok := values[name]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

func checked(values url.Values, name string) bool {
	v, ok := posted(values, name)
	return ok && v != "" && v != "false"
}
