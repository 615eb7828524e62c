package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ml-forecast-admin/pkg/editor"
	"ml-forecast-admin/pkg/form"
	"ml-forecast-admin/pkg/nav"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type editorPage struct {
	page
	LoadError   string
	Action      string
	StateHref   string
	ListHref    string
	IsNew       bool
	Shared      []form.Field
	Params      []form.Field
	Series      [][]form.Field
	SeriesLabel string
	SeriesError string
	Valid       bool
	Modified    bool
	CanSave     bool
}

// EditorState は編集セッションの JSON 表現です。
type EditorState struct {
	State    editor.State      `json:"state"`
	Valid    bool              `json:"valid"`
	Modified bool              `json:"modified"`
	CanSave  bool              `json:"can_save"`
	Errors   map[string]string `json:"errors"`
}

func (h *ConfigHandler) renderEditor(c *gin.Context, status int, e *editor.Editor, session string, n *notice) {
	realm := e.Realm()
	route, title, label := nav.RouteNew, "New model config", ""
	if !e.IsNew() {
		label = e.Snapshot().Name
		route, title = nav.RouteEdit, "Edit "+label
	}

	data := editorPage{ListHref: nav.ListPath(realm)}
	state, loadErr := e.State()
	if state == editor.StateFailed {
		route, title = nav.RouteEdit, "Model config"
		if c.Param("id") == "" {
			route = nav.RouteNew
		}
		data.LoadError = "Failed to load the editor: " + loadErr.Error()
	}

	data.page = newPage(c, h.api, h.ui, title, route, label)
	data.Notice = n
	if data.LoadError != "" {
		c.HTML(status, "editor.html", data)
		return
	}

	data.Action = editorPath(realm, session)
	data.StateHref = data.Action + "/state"
	data.IsNew = e.IsNew()
	data.Shared, data.Params = splitFields(e.Fields())
	data.Series = e.SeriesFields()
	data.SeriesLabel = e.SeriesLabel()
	data.SeriesError = e.Errors()["series"]
	data.Valid = e.IsValid()
	data.Modified = e.IsModified()
	data.CanSave = e.CanSave()
	c.HTML(status, "editor.html", data)
}

// Submit は編集フォームの送信を処理します。
// action は update, save, add_series, remove_series, reset のいずれかです。
func (h *ConfigHandler) Submit(c *gin.Context) {
	realm := c.Param("realm")
	session := c.Param("session")
	e, ok := h.editors.Get(session)
	if !ok || e.Realm() != realm {
		renderError(c, h.api, h.ui, http.StatusGone, "The editor session has expired. Open the model config again.")
		return
	}
	if err := c.Request.ParseForm(); err != nil {
		renderError(c, h.api, h.ui, http.StatusBadRequest, "Invalid form: "+err.Error())
		return
	}

	action, index := parseAction(c.Request.PostForm)
	if action == "reset" {
		e.Reset()
		h.renderEditor(c, http.StatusOK, e, session, nil)
		return
	}

	changes := decodeChanges(e, c.Request.PostForm)
	switch action {
	case "update", "save":
	case "add_series":
		changes = append(changes, editor.AddSeries{})
	case "remove_series":
		changes = append(changes, editor.RemoveSeries{Index: index})
	default:
		renderError(c, h.api, h.ui, http.StatusBadRequest, fmt.Sprintf("Unknown action %q.", action))
		return
	}

	if err := e.Apply(changes...); err != nil {
		if errors.Is(err, editor.ErrNotReady) || errors.Is(err, editor.ErrSaveInFlight) {
			h.renderEditor(c, http.StatusConflict, e, session, failure("The editor is busy, try again."))
			return
		}
		log.Debug().Err(err).Str("session", session).Msg("Editor input rejected")
	}

	if action != "save" {
		h.renderEditor(c, http.StatusOK, e, session, nil)
		return
	}

	result, err := e.Save(c.Request.Context())
	switch {
	case errors.Is(err, editor.ErrNotSavable):
		h.renderEditor(c, http.StatusUnprocessableEntity, e, session, failure("Fix the highlighted fields before saving."))
	case err != nil:
		h.renderEditor(c, statusFor(err), e, session, failure("Failed to save model config: "+err.Error()))
	case result.Created:
		h.editors.Delete(session)
		c.Redirect(http.StatusSeeOther, nav.EditPath(realm, result.Config.ID)+"?created=1")
	default:
		h.renderEditor(c, http.StatusOK, e, session, success("Model config saved."))
	}
}

// State は編集セッションの状態を JSON で返します。
func (h *ConfigHandler) State(c *gin.Context) {
	e, ok := h.editors.Get(c.Param("session"))
	if !ok || e.Realm() != c.Param("realm") {
		c.JSON(http.StatusNotFound, gin.H{"error": "editor session not found"})
		return
	}
	state, _ := e.State()
	c.JSON(http.StatusOK, EditorState{
		State:    state,
		Valid:    e.IsValid(),
		Modified: e.IsModified(),
		CanSave:  e.CanSave(),
		Errors:   e.Errors(),
	})
}

// parseAction は送信された action を読み取ります。削除ボタンは
// "remove_series:<index>" を送信します。index 項目での指定も受け付けます。
func parseAction(values url.Values) (string, int) {
	action := values.Get("action")
	if action == "" {
		action = "update"
	}
	name, suffix, found := strings.Cut(action, ":")
	if !found {
		suffix = values.Get("index")
	}
	index, err := strconv.Atoi(suffix)
	if err != nil {
		index = -1
	}
	return name, index
}

func editorPath(realm, session string) string {
	return "/" + url.PathEscape(realm) + "/editor/" + url.PathEscape(session)
}
