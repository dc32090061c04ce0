// Package web holds the embedded HTML templates and static assets of the
// locker site and renders pages for echo.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"time"

	"github.com/docker/go-units"
	"github.com/labstack/echo/v4"
)

//go:embed templates/layouts/*
var layoutFS embed.FS

//go:embed templates/pages/*
var pageFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Page template names.
const (
	PageIndex      = "index.html"
	PageInitialize = "initialize.html"
	PageLogin      = "admin_login.html"
	PagePanel      = "admin_panel.html"
	PageUpload     = "upload.html"
)

var pages = []string{PageIndex, PageInitialize, PageLogin, PagePanel, PageUpload}

const layoutName = "layout"

// PageData is passed to every page template.
type PageData struct {
	Title string
	Data  any
}

var funcs = template.FuncMap{
	"humanSize": func(n int64) string {
		return units.BytesSize(float64(n))
	},
	"datetime": func(t time.Time) string {
		return t.Local().Format("2006-01-02 15:04:05")
	},
}

// Renderer implements echo.Renderer over templates parsed once at startup.
// Each page is parsed into its own clone of the layouts.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses the embedded layouts and pages.
func NewRenderer() (*Renderer, error) {
	layouts, err := template.New("").Funcs(funcs).ParseFS(layoutFS, "templates/layouts/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse layouts: %w", err)
	}

	pageSub, err := fs.Sub(pageFS, "templates/pages")
	if err != nil {
		return nil, err
	}

	parsed := make(map[string]*template.Template, len(pages))
	for _, name := range pages {
		t, err := layouts.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layouts for %s: %w", name, err)
		}
		if _, err := t.ParseFS(pageSub, name); err != nil {
			return nil, fmt.Errorf("parse template: %s: %w", name, err)
		}
		parsed[name] = t
	}

	return &Renderer{pages: parsed}, nil
}

// Render executes the layout with the named page.
func (r *Renderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("template not found: %s", name)
	}
	return t.ExecuteTemplate(w, layoutName, data)
}

// Static returns the stylesheet and scripts served under /static.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
