package handlers

import (
	"context"
	"errors"
	"net/http"

	"ml-forecast-admin/pkg/editor"
	"ml-forecast-admin/pkg/listview"
	"ml-forecast-admin/pkg/models"
	"ml-forecast-admin/pkg/nav"
	"ml-forecast-admin/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ForecastAPI は画面が利用する予測サービスの操作です。
type ForecastAPI interface {
	editor.ConfigAPI
	listview.ConfigAPI
	GetRealmConfig(ctx context.Context, realm string) (models.RealmConfig, error)
}

// UIOptions は画面共通の表示設定です。
type UIOptions struct {
	// Embedded はプラットフォーム内に埋め込まれた表示で、ヘッダーを出しません。
	Embedded     bool
	DefaultRealm string
	PlatformURL  string
}

// notice はページ上部の通知です。
type notice struct {
	Kind string
	Text string
}

func success(text string) *notice { return &notice{Kind: "success", Text: text} }
func failure(text string) *notice { return &notice{Kind: "error", Text: text} }

// page は全ページ共通のテンプレートデータです。
type page struct {
	Title       string
	Realm       string
	RealmConfig models.RealmConfig
	Embedded    bool
	PlatformURL string
	Breadcrumbs []nav.Crumb
	Notice      *notice
}

type errorPage struct {
	page
	Message  string
	BackHref string
}

// newPage はレルム設定を取得して共通データを組み立てます。
// レルム設定の取得に失敗しても画面は既定の見た目で表示します。
func newPage(c *gin.Context, api ForecastAPI, ui UIOptions, title string, route nav.Route, label string) page {
	realm := c.Param("realm")
	if realm == "" {
		realm = ui.DefaultRealm
	}

	var realmConfig models.RealmConfig
	if api != nil {
		rc, err := api.GetRealmConfig(c.Request.Context(), realm)
		if err != nil {
			log.Warn().Err(err).Str("realm", realm).Msg("Failed to load realm config")
		} else {
			realmConfig = rc
		}
	}

	return page{
		Title:       title,
		Realm:       realm,
		RealmConfig: realmConfig,
		Embedded:    ui.Embedded,
		PlatformURL: ui.PlatformURL,
		Breadcrumbs: nav.Breadcrumbs(route, realm, label),
	}
}

// statusFor はサービス呼び出しのエラーを応答ステータスに変換します。
func statusFor(err error) int {
	var httpErr *services.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

// renderError はエラーページを描画します。
func renderError(c *gin.Context, api ForecastAPI, ui UIOptions, status int, message string) {
	p := newPage(c, api, ui, "Error", nav.RouteNotFound, "")
	back := ""
	if realm := c.Param("realm"); realm != "" {
		back = nav.ListPath(realm)
	}
	c.HTML(status, "error.html", errorPage{page: p, Message: message, BackHref: back})
}
