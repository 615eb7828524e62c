// Package modeltype は対応する予測モデル種別の記述子（既定値、固有の入力、検証）を保持します。
package modeltype

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"ml-forecast-admin/pkg/form"
	"ml-forecast-admin/pkg/models"
)

var (
	ErrUnknownField   = errors.New("unknown field")
	ErrInvalidValue   = errors.New("invalid value")
	ErrParamsMismatch = errors.New("params do not match model type")
	ErrIncompleteRow  = errors.New("incomplete series row")
)

// ModelTypeDescriptor は1つのモデル種別を記述します。
type ModelTypeDescriptor interface {
	Type() models.ModelType
	Label() string
	// Defaults は新しい既定パラメータを返します。
	Defaults() models.ModelParams
	// ParamFields は params の種別固有の入力を返します。
	ParamFields(params models.ModelParams) []form.Field
	// ApplyParam は種別固有の項目を入力値から設定します。
	ApplyParam(params models.ModelParams, field, value string) (models.ModelParams, error)
	// SeriesLabel は補助系列一覧の名前です（"Regressors", "Covariates"）。
	SeriesLabel() string
	Series(params models.ModelParams) []models.TargetSeries
	WithSeries(params models.ModelParams, series []models.TargetSeries) models.ModelParams
	// Validate はこの種別として設定全体を検証します。
	Validate(cfg models.ModelConfig) error
}

// For はモデル種別の記述子を返します。
func For(t models.ModelType) (ModelTypeDescriptor, error) {
	switch t {
	case models.ModelTypeProphet:
		return Prophet{}, nil
	case models.ModelTypeXGBoost:
		return XGBoost{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownModelType, t)
	}
}

// Registry はモデル種別と記述子の対応を登録順に保持します。
type Registry struct {
	mu          sync.RWMutex
	descriptors map[models.ModelType]ModelTypeDescriptor
	order       []models.ModelType
}

// NewRegistry は空のRegistryを生成します。
func NewRegistry() *Registry {
	return &Registry{descriptors: map[models.ModelType]ModelTypeDescriptor{}}
}

// Default は対応するすべての種別を登録したRegistryを返します。
func Default() *Registry {
	r := NewRegistry()
	r.Register(Prophet{})
	r.Register(XGBoost{})
	return r
}

// Register は d を登録します。同じ種別の記述子は置き換えます。
func (r *Registry) Register(d ModelTypeDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descriptors[d.Type()]; !exists {
		r.order = append(r.order, d.Type())
	}
	r.descriptors[d.Type()] = d
}

func (r *Registry) Get(t models.ModelType) (ModelTypeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[t]
	return d, ok
}

// All は記述子を登録順に返します。
func (r *Registry) All() []ModelTypeDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModelTypeDescriptor, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.descriptors[t])
	}
	return out
}

// SelectOptions は登録済みの種別をドロップダウンの選択肢として返します。
func (r *Registry) SelectOptions() []form.Option {
	all := r.All()
	options := make([]form.Option, 0, len(all))
	for _, d := range all {
		options = append(options, form.Option{Value: string(d.Type()), Label: d.Label()})
	}
	return options
}

// validateSeries は未入力の項目がある最初の行を報告します。
func validateSeries(label string, series []models.TargetSeries) error {
	for i, s := range series {
		if !s.Complete() {
			return fmt.Errorf("%w: %s row %d", ErrIncompleteRow, strings.ToLower(label), i+1)
		}
	}
	return nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "on", "1", "yes":
		return true, nil
	case "false", "off", "0", "no", "":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, value)
}

func parseFloat(value string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, value)
	}
	return f, nil
}

func parseInt(value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a whole number", ErrInvalidValue, value)
	}
	return n, nil
}
