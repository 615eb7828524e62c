// Package nav はページのルートからパンくずリストを組み立てます。
package nav

import "net/url"

// Route は管理画面のページです。
type Route int

const (
	RouteList Route = iota
	RouteNew
	RouteEdit
	RouteNotFound
)

// Crumb はパンくずの1項目です。現在のページは Href が空です。
type Crumb struct {
	Label string
	Href  string
}

// ListPath はレルムの設定一覧のパスです。
func ListPath(realm string) string {
	return "/" + url.PathEscape(realm) + "/configs"
}

// NewPath は新規作成ページのパスです。
func NewPath(realm string) string {
	return ListPath(realm) + "/new"
}

// EditPath は設定の編集ページのパスです。
func EditPath(realm, id string) string {
	return ListPath(realm) + "/" + url.PathEscape(id)
}

// Breadcrumbs はルートのパンくずリストを返します。label は編集ページの設定名で、
// 他のページでは使いません。最後の項目はリンクしません。
func Breadcrumbs(route Route, realm, label string) []Crumb {
	list := Crumb{Label: "Model configs", Href: ListPath(realm)}

	var trail []Crumb
	switch route {
	case RouteList:
		trail = []Crumb{list}
	case RouteNew:
		trail = []Crumb{list, {Label: "New config"}}
	case RouteEdit:
		if label == "" {
			label = "Edit config"
		}
		trail = []Crumb{list, {Label: label}}
	default:
		trail = []Crumb{{Label: "Home", Href: "/"}, {Label: "Not found"}}
	}

	trail[len(trail)-1].Href = ""
	return trail
}
