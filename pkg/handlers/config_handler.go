package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"ml-forecast-admin/pkg/duration"
	"ml-forecast-admin/pkg/editor"
	"ml-forecast-admin/pkg/listview"
	"ml-forecast-admin/pkg/modeltype"
	"ml-forecast-admin/pkg/nav"
	"ml-forecast-admin/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ConfigHandler はモデル設定の一覧・編集・削除画面のハンドラです。
type ConfigHandler struct {
	api      ForecastAPI
	registry *modeltype.Registry
	editors  *services.SessionStore[*editor.Editor]
	views    *services.SessionStore[*listview.ListView]
	exporter *services.ExportService
	ui       UIOptions
}

// NewConfigHandler は新しいConfigHandlerを生成します。
func NewConfigHandler(
	api ForecastAPI,
	registry *modeltype.Registry,
	editors *services.SessionStore[*editor.Editor],
	views *services.SessionStore[*listview.ListView],
	exporter *services.ExportService,
	ui UIOptions,
) *ConfigHandler {
	return &ConfigHandler{
		api:      api,
		registry: registry,
		editors:  editors,
		views:    views,
		exporter: exporter,
		ui:       ui,
	}
}

type listRow struct {
	listview.Row
	TypeLabel  string
	Interval   string
	EditHref   string
	DeleteHref string
}

type listPage struct {
	page
	LoadError  string
	Rows       []listRow
	NewHref    string
	ExportHref string
}

type confirmPage struct {
	page
	Name       string
	Action     string
	CancelHref string
}

// Root は既定のレルムの一覧へリダイレクトします。
func (h *ConfigHandler) Root(c *gin.Context) {
	c.Redirect(http.StatusFound, nav.ListPath(h.ui.DefaultRealm))
}

// NotFound は未定義のルートに対する404ページです。
func (h *ConfigHandler) NotFound(c *gin.Context) {
	p := newPage(c, nil, h.ui, "Not found", nav.RouteNotFound, "")
	c.HTML(http.StatusNotFound, "error.html", errorPage{
		page:    p,
		Message: fmt.Sprintf("Page %s does not exist.", c.Request.URL.Path),
	})
}

// List は設定一覧を取得して表示します。
func (h *ConfigHandler) List(c *gin.Context) {
	realm := c.Param("realm")
	view := listview.New(h.api, realm)
	if err := view.Load(c.Request.Context()); err != nil {
		h.renderList(c, statusFor(err), view, "", nil)
		return
	}
	id := h.views.Put(view)
	h.renderList(c, http.StatusOK, view, id, nil)
}

func (h *ConfigHandler) renderList(c *gin.Context, status int, view *listview.ListView, viewID string, n *notice) {
	realm := view.Realm()
	p := newPage(c, h.api, h.ui, "Model configs", nav.RouteList, "")
	p.Notice = n

	data := listPage{
		page:       p,
		NewHref:    nav.NewPath(realm),
		ExportHref: nav.ListPath(realm) + "/export.xlsx",
	}
	if viewID != "" {
		data.ExportHref += "?view=" + url.QueryEscape(viewID)
	}

	if _, err := view.State(); err != nil {
		data.LoadError = err.Error()
		c.HTML(status, "list.html", data)
		return
	}

	for _, r := range view.Rows() {
		row := listRow{
			Row:      r,
			Interval: duration.Describe(duration.ParseISO(r.Config.ForecastInterval)),
			EditHref: nav.EditPath(realm, r.Config.ID),
		}
		row.TypeLabel = string(r.Config.Type())
		if d, ok := h.registry.Get(r.Config.Type()); ok {
			row.TypeLabel = d.Label()
		}
		if viewID != "" {
			row.DeleteHref = deletePath(realm, viewID, r.Config.ID)
		}
		data.Rows = append(data.Rows, row)
	}
	c.HTML(status, "list.html", data)
}

// Export は一覧を XLSX で返します。一覧画面のビューがあればその行を使います。
func (h *ConfigHandler) Export(c *gin.Context) {
	realm := c.Param("realm")
	view, ok := h.views.Get(c.Query("view"))
	if !ok || view.Realm() != realm {
		view = listview.New(h.api, realm)
		if err := view.Load(c.Request.Context()); err != nil {
			renderError(c, h.api, h.ui, statusFor(err), "Failed to load model configs: "+err.Error())
			return
		}
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", realm+"-model-configs.xlsx"))
	c.Status(http.StatusOK)
	if err := h.exporter.WriteXLSX(c.Writer, view.Rows()); err != nil {
		log.Error().Err(err).Str("realm", realm).Msg("Failed to export model configs")
		_ = c.Error(err)
	}
}

// New は新規作成の編集画面を表示します。
func (h *ConfigHandler) New(c *gin.Context) {
	h.openEditor(c, "")
}

// Edit は既存設定の編集画面を表示します。
func (h *ConfigHandler) Edit(c *gin.Context) {
	h.openEditor(c, c.Param("id"))
}

func (h *ConfigHandler) openEditor(c *gin.Context, id string) {
	e := editor.New(h.api, h.registry, c.Param("realm"))
	if err := e.Load(c.Request.Context(), id); err != nil {
		h.renderEditor(c, statusFor(err), e, "", nil)
		return
	}
	session := h.editors.Put(e)

	var n *notice
	if c.Query("created") != "" {
		n = success("Model config created.")
	}
	h.renderEditor(c, http.StatusOK, e, session, n)
}

// ConfirmDelete は削除確認画面を表示します。
func (h *ConfigHandler) ConfirmDelete(c *gin.Context) {
	realm := c.Param("realm")
	view, ok := h.views.Get(c.Param("view"))
	if !ok || view.Realm() != realm {
		c.Redirect(http.StatusSeeOther, nav.ListPath(realm))
		return
	}
	row, ok := view.Row(c.Param("id"))
	if !ok {
		renderError(c, h.api, h.ui, http.StatusNotFound, "The model config is no longer in the list.")
		return
	}
	h.renderConfirm(c, http.StatusOK, row, nil)
}

func (h *ConfigHandler) renderConfirm(c *gin.Context, status int, row listview.Row, n *notice) {
	realm := c.Param("realm")
	p := newPage(c, h.api, h.ui, "Delete model config", nav.RouteEdit, row.Config.Name)
	p.Notice = n
	c.HTML(status, "confirm.html", confirmPage{
		page:       p,
		Name:       row.Config.Name,
		Action:     deletePath(realm, c.Param("view"), row.Config.ID),
		CancelHref: nav.ListPath(realm),
	})
}

// Delete は確認済みの削除を実行し、再取得せずに一覧を表示します。
func (h *ConfigHandler) Delete(c *gin.Context) {
	realm := c.Param("realm")
	viewID := c.Param("view")
	view, ok := h.views.Get(viewID)
	if !ok || view.Realm() != realm {
		c.Redirect(http.StatusSeeOther, nav.ListPath(realm))
		return
	}
	id := c.Param("id")
	row, ok := view.Row(id)
	if !ok {
		renderError(c, h.api, h.ui, http.StatusNotFound, "The model config is no longer in the list.")
		return
	}

	err := view.Delete(c.Request.Context(), id, c.PostForm("confirm") == "yes")
	switch {
	case errors.Is(err, listview.ErrDeleteNotConfirmed):
		h.renderList(c, http.StatusOK, view, viewID, nil)
	case errors.Is(err, listview.ErrDeleteInFlight):
		h.renderList(c, http.StatusConflict, view, viewID, failure(fmt.Sprintf("Model config %q is already being deleted.", row.Config.Name)))
	case errors.Is(err, listview.ErrRowNotFound):
		renderError(c, h.api, h.ui, http.StatusNotFound, "The model config is no longer in the list.")
	case err != nil:
		h.renderConfirm(c, statusFor(err), row, failure("Failed to delete model config: "+err.Error()))
	default:
		h.renderList(c, http.StatusOK, view, viewID, success(fmt.Sprintf("Model config %q deleted.", row.Config.Name)))
	}
}

func deletePath(realm, view, id string) string {
	return "/" + url.PathEscape(realm) + "/views/" + url.PathEscape(view) + "/delete/" + url.PathEscape(id)
}
