// Package report renders detection and classification results as static
// HTML pages for manual review.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"github.com/jonesrussell/north-cloud/product-detector/internal/domain"
)

// Segment markup is scraped from third-party pages, so each card embeds it
// in a sandboxed iframe where scripts cannot run.
var resultTmpl = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Model Results</title>
<style>
body { font-family: Arial, sans-serif; padding: 20px; }
.model-section { margin-bottom: 20px; }
.toggle-btn { background: #007BFF; color: white; padding: 10px 15px; border: none; border-radius: 5px; cursor: pointer; margin-bottom: 10px; }
.product-grid { grid-template-columns: repeat(auto-fill, minmax(300px, 1fr)); gap: 10px; display: none; }
.product-card { border: 1px solid #ccc; border-radius: 10px; padding: 10px; background: #f9f9f9; }
.product-card iframe { width: 100%; min-height: 240px; border: 0; }
.failure { color: #b00020; }
</style>
<script>
function toggleGrid(id) {
  const grid = document.getElementById(id);
  grid.style.display = grid.style.display === 'grid' ? 'none' : 'grid';
}
</script>
</head>
<body>
<h1>Detected Products by Model</h1>
{{- with .URL}}
<p class="source">Source: <a href="{{.}}">{{.}}</a></p>
{{- end}}
<p>{{len .Segments}} candidate segments</p>
{{- range $i, $s := .Sections}}
<div class="model-section">
<button class="toggle-btn" onclick="toggleGrid('grid_{{$i}}')">{{$s.Name}} Found Products ({{len $s.Items}})</button>
{{- with $s.Failure}}
<p class="failure">{{$s.Name}} failed: {{.}}</p>
{{- end}}
<div class="product-grid" id="grid_{{$i}}">
{{- range $s.Items}}
<div class="product-card"><iframe sandbox srcdoc="{{.}}"></iframe></div>
{{- end}}
</div>
</div>
{{- end}}
</body>
</html>
`))

var gridTmpl = template.Must(template.New("grid").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
.product-grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(300px, 1fr)); gap: 20px; padding: 20px; }
.product-item { border: 1px solid #ddd; padding: 10px; border-radius: 8px; box-shadow: 0 2px 8px rgba(0, 0, 0, 0.1); }
.product-item iframe { width: 100%; min-height: 240px; border: 0; }
.product-item .product-text { font-size: 14px; margin-top: 10px; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="product-grid">
{{- range .Segments}}
<div class="product-item" data-index="{{.Index}}">
<iframe sandbox srcdoc="{{.HTML}}"></iframe>
<div class="product-text">{{.Text}}</div>
</div>
{{- end}}
</div>
</body>
</html>
`))

type section struct {
	Name    string
	Items   []string
	Failure string
}

type resultView struct {
	URL      string
	Segments []domain.Segment
	Sections []section
}

// RenderResult writes one section per classifier, in name order.
func RenderResult(w io.Writer, r *domain.PageResult) error {
	view := resultView{URL: r.URL, Segments: r.Segments}
	names := r.ClassifierNames()
	for name := range r.Failures {
		if _, ok := r.Accepted[name]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	for _, name := range names {
		view.Sections = append(view.Sections, section{
			Name:    name,
			Items:   r.Accepted[name],
			Failure: r.Failures[name],
		})
	}
	return resultTmpl.Execute(w, view)
}

// RenderGrid writes every segment as one card.
func RenderGrid(w io.Writer, title string, segments []domain.Segment) error {
	return gridTmpl.Execute(w, struct {
		Title    string
		Segments []domain.Segment
	}{Title: title, Segments: segments})
}

// Writer saves rendered pages under a directory with random file names.
type Writer struct {
	dir   string
	newID func() string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, newID: uuid.NewString}
}

// Write renders r to <dir>/<uuid>.html and returns the path.
func (w *Writer) Write(r *domain.PageResult) (string, error) {
	var buf bytes.Buffer
	if err := RenderResult(&buf, r); err != nil {
		return "", fmt.Errorf("render result report: %w", err)
	}
	return w.save(w.newID()+".html", buf.Bytes())
}

// WriteGrid renders segments to <dir>/<uuid>_grid.html and returns the path.
func (w *Writer) WriteGrid(title string, segments []domain.Segment) (string, error) {
	var buf bytes.Buffer
	if err := RenderGrid(&buf, title, segments); err != nil {
		return "", fmt.Errorf("render grid report: %w", err)
	}
	return w.save(w.newID()+"_grid.html", buf.Bytes())
}

func (w *Writer) save(name string, data []byte) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
