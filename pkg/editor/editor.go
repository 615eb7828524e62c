// Package editor はモデル設定エディタの状態を保持します。
// 最後に読み込み・保存したスナップショット、編集中の下書き、
// 保存可否を決める妥当性と変更有無のフラグを扱います。
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ml-forecast-admin/pkg/form"
	"ml-forecast-admin/pkg/modeltype"
	"ml-forecast-admin/pkg/models"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rs/zerolog/log"
)

var (
	ErrLoadInFlight = errors.New("editor is already loading")
	ErrSaveInFlight = errors.New("editor is already saving")
	ErrNotReady     = errors.New("editor is not ready")
	ErrNotSavable   = errors.New("config is invalid or unchanged")
)

// State はエディタの状態です。
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// ConfigAPI はエディタが利用する予測サービスの操作です。
type ConfigAPI interface {
	GetConfig(ctx context.Context, realm, id string) (models.ModelConfig, error)
	CreateConfig(ctx context.Context, realm string, cfg models.ModelConfig) (models.ModelConfig, error)
	UpdateConfig(ctx context.Context, realm string, cfg models.ModelConfig) (models.ModelConfig, error)
	ListAssets(ctx context.Context, realm string) ([]models.Asset, error)
}

// SaveResult は保存の結果です。
type SaveResult struct {
	Created bool
	Config  models.ModelConfig
}

// Editor は1つの設定エディタの状態です。並行して呼び出せますが、
// 読み込みと保存は同時に1つだけ実行できます。
type Editor struct {
	api      ConfigAPI
	registry *modeltype.Registry
	realm    string

	mu       sync.Mutex
	state    State
	loadErr  error
	loading  bool
	saving   bool
	assets   []models.Asset
	snapshot models.ModelConfig
	draft    models.ModelConfig

	// inputErrs は解釈できなかった入力のエラーです（キーは項目名）。
	inputErrs map[string]string
	valid     bool
	modified  bool
}

// New はレルムのエディタを生成します。初期状態は loading です。
func New(api ConfigAPI, registry *modeltype.Registry, realm string) *Editor {
	return &Editor{
		api:       api,
		registry:  registry,
		realm:     realm,
		state:     StateLoading,
		inputErrs: map[string]string{},
	}
}

// NewDraft は指定した種別の既定値の下書きを返します。
func NewDraft(realm string, d modeltype.ModelTypeDescriptor) models.ModelConfig {
	return models.ModelConfig{
		Realm:             realm,
		Enabled:           true,
		Target:            models.TargetSeries{TrainingDataPeriod: "P6M"},
		ForecastInterval:  "PT1H",
		TrainingInterval:  "P1D",
		ForecastPeriods:   24,
		ForecastFrequency: "1h",
		Params:            d.Defaults(),
	}
}

// Load は参照用のアセットと、id が空でなければ編集対象の設定を取得します。
// id が空の場合は既定値の新しい下書きから始めます。
func (e *Editor) Load(ctx context.Context, id string) error {
	e.mu.Lock()
	if e.loading {
		e.mu.Unlock()
		return ErrLoadInFlight
	}
	e.loading = true
	e.state = StateLoading
	e.loadErr = nil
	e.mu.Unlock()

	cfg, assets, err := e.fetch(ctx, id)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loading = false
	if err != nil {
		log.Error().Err(err).Str("realm", e.realm).Str("config_id", id).Msg("Failed to load config editor")
		e.state = StateFailed
		e.loadErr = err
		return err
	}

	e.assets = assets
	e.snapshot = cfg.Clone()
	e.draft = cfg.Clone()
	e.inputErrs = map[string]string{}
	e.state = StateReady
	e.recompute()
	return nil
}

func (e *Editor) fetch(ctx context.Context, id string) (models.ModelConfig, []models.Asset, error) {
	assets, err := e.api.ListAssets(ctx, e.realm)
	if err != nil {
		return models.ModelConfig{}, nil, fmt.Errorf("failed to load assets: %w", err)
	}

	if id == "" {
		d, ok := e.registry.Get(models.ModelTypeProphet)
		if !ok {
			all := e.registry.All()
			if len(all) == 0 {
				return models.ModelConfig{}, nil, fmt.Errorf("no model types registered")
			}
			d = all[0]
		}
		return NewDraft(e.realm, d), assets, nil
	}

	cfg, err := e.api.GetConfig(ctx, e.realm, id)
	if err != nil {
		return models.ModelConfig{}, nil, fmt.Errorf("failed to load config %s: %w", id, err)
	}
	return cfg, assets, nil
}

// Apply は変更を順に適用し、そのたびにフラグを再計算します。
// 解釈できない値は項目エラーとして記録し、残りの変更は続けて適用します。
// 返すエラーはすべての失敗をまとめたものです。
func (e *Editor) Apply(changes ...Change) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateReady {
		return ErrNotReady
	}
	if e.saving {
		return ErrSaveInFlight
	}

	var errs []error
	for _, c := range changes {
		if err := c.apply(e); err != nil {
			errs = append(errs, err)
		}
		e.recompute()
	}
	return errors.Join(errs...)
}

// Reset は下書きを破棄してスナップショットに戻します。
func (e *Editor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.draft = e.snapshot.Clone()
	e.inputErrs = map[string]string{}
	e.recompute()
}

// Save は id がなければ設定を作成し、あれば更新します。
// CanSave でなければ通信せずに拒否します。失敗しても下書きは変更しません。
func (e *Editor) Save(ctx context.Context) (SaveResult, error) {
	e.mu.Lock()
	if e.state != StateReady {
		e.mu.Unlock()
		return SaveResult{}, ErrNotReady
	}
	if e.saving {
		e.mu.Unlock()
		return SaveResult{}, ErrSaveInFlight
	}
	if !e.valid || !e.modified {
		e.mu.Unlock()
		return SaveResult{}, ErrNotSavable
	}
	e.saving = true
	payload := e.draft.Clone()
	payload.Realm = e.realm
	e.mu.Unlock()

	var (
		saved   models.ModelConfig
		err     error
		created = payload.ID == ""
	)
	if created {
		saved, err = e.api.CreateConfig(ctx, e.realm, payload)
	} else {
		saved, err = e.api.UpdateConfig(ctx, e.realm, payload)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.saving = false
	if err != nil {
		log.Error().Err(err).Str("realm", e.realm).Str("config_id", payload.ID).Msg("Failed to save config")
		return SaveResult{}, fmt.Errorf("failed to save config: %w", err)
	}

	e.snapshot = saved.Clone()
	e.draft = saved.Clone()
	e.inputErrs = map[string]string{}
	e.recompute()
	return SaveResult{Created: created, Config: saved}, nil
}

// recompute は妥当性と変更有無を再計算します。e.mu を保持して呼び出します。
func (e *Editor) recompute() {
	e.modified = !Equal(e.draft, e.snapshot)
	e.valid = len(e.errorsLocked()) == 0
}

// Equal は2つの設定が構造的に等しいかを返します。nil と空の系列は等しいとみなします。
func Equal(a, b models.ModelConfig) bool {
	return cmp.Equal(a, b, cmpopts.EquateEmpty())
}

// errorsLocked は項目名ごとの検証メッセージを返します。
func (e *Editor) errorsLocked() map[string]string {
	errs := map[string]string{}
	if e.draft.Target.AssetID == "" {
		errs["target.asset_id"] = "Target asset is required"
	}
	if e.draft.Target.AttributeName == "" {
		errs["target.attribute_name"] = "Target attribute is required"
	}

	d, ok := e.descriptorLocked()
	if !ok {
		errs["type"] = fmt.Sprintf("Unsupported model type %q", e.draft.Type())
	} else if err := d.Validate(e.draft); err != nil {
		errs["series"] = err.Error()
	}

	for name, msg := range form.CheckAll(e.fieldsLocked()) {
		if _, exists := errs[name]; !exists {
			errs[name] = msg
		}
	}
	for _, row := range e.seriesFieldsLocked() {
		for name, msg := range form.CheckAll(row) {
			errs[name] = msg
		}
	}
	for name, msg := range e.inputErrs {
		errs[name] = msg
	}
	return errs
}

func (e *Editor) descriptorLocked() (modeltype.ModelTypeDescriptor, bool) {
	if e.draft.Params == nil {
		return nil, false
	}
	return e.registry.Get(e.draft.Type())
}

// State は状態と読み込みエラーを返します。
func (e *Editor) State() (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.loadErr
}

// IsValid はすべての項目が制約を満たすかを返します。
func (e *Editor) IsValid() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateReady && e.valid
}

// IsModified は下書きがスナップショットと異なるかを返します。
func (e *Editor) IsModified() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateReady && e.modified
}

// CanSave は保存できるかを返します。
func (e *Editor) CanSave() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateReady && !e.saving && e.valid && e.modified
}

// Errors は現在の検証メッセージを項目名ごとに返します。
func (e *Editor) Errors() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateReady {
		return map[string]string{}
	}
	return e.errorsLocked()
}

// Draft は下書きのコピーを返します。
func (e *Editor) Draft() models.ModelConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft.Clone()
}

// Snapshot は最後に読み込み・保存した設定のコピーを返します。
func (e *Editor) Snapshot() models.ModelConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot.Clone()
}

// IsNew は下書きが未保存の新規設定かを返します。
func (e *Editor) IsNew() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot.ID == ""
}

func (e *Editor) Realm() string {
	return e.realm
}

// Assets は参照用のアセットを返します。
func (e *Editor) Assets() []models.Asset {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Asset, len(e.assets))
	copy(out, e.assets)
	return out
}

func (e *Editor) assetLocked(id string) (models.Asset, bool) {
	for _, a := range e.assets {
		if a.ID == id {
			return a, true
		}
	}
	return models.Asset{}, false
}
