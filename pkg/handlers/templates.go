package handlers

import (
	"embed"
	"html/template"

	"ml-forecast-admin/pkg/duration"
	"ml-forecast-admin/pkg/form"
)

//go:embed templates/*.html
var templateFS embed.FS

// LoadTemplates は埋め込まれたページテンプレートを読み込みます。
func LoadTemplates() (*template.Template, error) {
	return template.New("pages").Funcs(template.FuncMap{
		"durationOf": func(f form.Field) duration.Duration {
			return duration.Parse(f.Notation, f.Value)
		},
		"units": duration.Units,
		"num": func(v *float64) string {
			if v == nil {
				return ""
			}
			return form.FormatFloat(*v)
		},
		// レルムのスタイルはプラットフォームが管理するため、そのまま出力します。
		"safeCSS": func(s string) template.CSS { return template.CSS(s) },
	}).ParseFS(templateFS, "templates/*.html")
}
