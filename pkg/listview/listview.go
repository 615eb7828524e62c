// Package listview はレルムのモデル設定一覧を、対象アセットの名前と結合して保持します。
package listview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ml-forecast-admin/pkg/models"

	"github.com/rs/zerolog/log"
)

var (
	ErrLoadInFlight       = errors.New("list is already loading")
	ErrDeleteNotConfirmed = errors.New("delete was not confirmed")
	ErrRowNotFound        = errors.New("config is not in the list")
	ErrDeleteInFlight     = errors.New("config is already being deleted")
)

// State は一覧の状態です。
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// ConfigAPI は一覧が利用する予測サービスの操作です。
type ConfigAPI interface {
	ListConfigs(ctx context.Context, realm string) ([]models.ModelConfig, error)
	GetAssetsByIDs(ctx context.Context, realm string, ids []string) ([]models.Asset, error)
	DeleteConfig(ctx context.Context, realm, id string) error
}

// Row は一覧の1行です。
type Row struct {
	Config     models.ModelConfig
	AssetName  string
	AssetFound bool
}

// Status は行のバッジの文言です。
func (r Row) Status() string {
	if r.Config.Enabled {
		return "Enabled"
	}
	return "Disabled"
}

// Target は対象アセット名、レルムに存在しなければ "Not found" を返します。
func (r Row) Target() string {
	if !r.AssetFound {
		return "Not found"
	}
	return r.AssetName
}

// ListView は並行して呼び出せます。
type ListView struct {
	api   ConfigAPI
	realm string

	mu      sync.Mutex
	state   State
	loadErr error
	loading  bool
	deleting map[string]bool
	rows     []Row
}

// New はレルムの一覧を生成します。初期状態は loading です。
func New(api ConfigAPI, realm string) *ListView {
	return &ListView{api: api, realm: realm, state: StateLoading, deleting: map[string]bool{}}
}

// Load は設定一覧を取得し、続けて対象アセットを取得します。
// アセットの取得に失敗した場合は全行を Not found とし、
// 設定の取得に失敗した場合は一覧を failed にします。
func (v *ListView) Load(ctx context.Context) error {
	v.mu.Lock()
	if v.loading {
		v.mu.Unlock()
		return ErrLoadInFlight
	}
	v.loading = true
	v.state = StateLoading
	v.loadErr = nil
	v.mu.Unlock()

	rows, err := v.fetch(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.loading = false
	if err != nil {
		log.Error().Err(err).Str("realm", v.realm).Msg("Failed to load config list")
		v.state = StateFailed
		v.loadErr = err
		return err
	}
	v.rows = rows
	v.state = StateReady
	return nil
}

func (v *ListView) fetch(ctx context.Context) ([]Row, error) {
	configs, err := v.api.ListConfigs(ctx, v.realm)
	if err != nil {
		return nil, fmt.Errorf("failed to load configs: %w", err)
	}

	names := map[string]string{}
	if ids := targetIDs(configs); len(ids) > 0 {
		assets, err := v.api.GetAssetsByIDs(ctx, v.realm, ids)
		if err != nil {
			log.Warn().Err(err).Str("realm", v.realm).Int("assets", len(ids)).Msg("Failed to look up target assets")
		}
		for _, a := range assets {
			names[a.ID] = a.Name
		}
	}

	rows := make([]Row, 0, len(configs))
	for _, cfg := range configs {
		name, found := names[cfg.Target.AssetID]
		rows = append(rows, Row{Config: cfg, AssetName: name, AssetFound: found})
	}
	return rows, nil
}

// targetIDs は重複を除いた対象アセット id を出現順に返します。
func targetIDs(configs []models.ModelConfig) []string {
	seen := map[string]bool{}
	var ids []string
	for _, cfg := range configs {
		id := cfg.Target.AssetID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// Delete は設定を削除します。確認がなければ ErrDeleteNotConfirmed を返し、何も送信しません。
// 同じ行の削除が実行中であれば ErrDeleteInFlight を返します。
// 成功すると再取得せずに行を一覧から取り除きます。
func (v *ListView) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrDeleteNotConfirmed
	}
	v.mu.Lock()
	if v.deleting[id] {
		v.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeleteInFlight, id)
	}
	if !v.hasRowLocked(id) {
		v.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRowNotFound, id)
	}
	v.deleting[id] = true
	v.mu.Unlock()

	err := v.api.DeleteConfig(ctx, v.realm, id)

	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.deleting, id)
	if err != nil {
		log.Error().Err(err).Str("realm", v.realm).Str("config_id", id).Msg("Failed to delete config")
		return fmt.Errorf("failed to delete config: %w", err)
	}
	for i, r := range v.rows {
		if r.Config.ID == id {
			v.rows = append(v.rows[:i:i], v.rows[i+1:]...)
			break
		}
	}
	return nil
}

func (v *ListView) hasRowLocked(id string) bool {
	for _, r := range v.rows {
		if r.Config.ID == id {
			return true
		}
	}
	return false
}

// Row は設定の行を返します。
func (v *ListView) Row(id string) (Row, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, r := range v.rows {
		if r.Config.ID == id {
			return r, true
		}
	}
	return Row{}, false
}

// Rows は行のコピーを返します。
func (v *ListView) Rows() []Row {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Row, len(v.rows))
	copy(out, v.rows)
	return out
}

// State は状態と読み込みエラーを返します。
func (v *ListView) State() (State, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state, v.loadErr
}

func (v *ListView) Realm() string {
	return v.realm
}
