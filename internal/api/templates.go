package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"logsentry/internal/schema"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"cell": cell,
}).ParseFS(templateFS, "templates/*.html"))

type indexPage struct {
	Error string
}

type resultsPage struct {
	Report   *schema.Report
	Records  int
	Patterns int
}

// cell renders the value of column in row; padded nulls render empty.
func cell(row schema.Record, column string) string {
	v, ok := row.Get(column)
	if !ok || v.IsNull() {
		return ""
	}
	return v.String()
}

func (h *Handler) renderIndex(w http.ResponseWriter, status int, message string) {
	h.render(w, status, "index.html", indexPage{Error: message})
}

func (h *Handler) renderResults(w http.ResponseWriter, report *schema.Report) {
	h.render(w, http.StatusOK, "results.html", resultsPage{
		Report:   report,
		Records:  report.CountByKind(schema.AnomalyRecord),
		Patterns: report.CountByKind(schema.AnomalySequence),
	})
}

// render executes into a buffer first so a template error still yields a
// clean 500.
func (h *Handler) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("failed to render page", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
