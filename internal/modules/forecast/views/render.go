package views

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"time"
)

//go:embed templates static
var viewsFS embed.FS

const (
	PageDashboard = "app.html"
	PageAnalytics = "analytics.html"
	PageAbout     = "about.html"
)

var pageNames = []string{PageDashboard, PageAnalytics, PageAbout}

// pages maps a page file name to its template set (layout + partials + page).
var pages map[string]*template.Template

var funcs = template.FuncMap{
	"year": func() int { return time.Now().Year() },
}

// loadTemplatesFromFS loads the page templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	base, err := template.New("layout.html").Funcs(funcs).ParseFS(sub, "layout.html", "partials/*.html")
	if err != nil {
		return err
	}

	loaded := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return err
		}
		t, err := clone.ParseFS(sub, name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		loaded[name] = t
	}
	pages = loaded
	return nil
}

// LoadTemplates loads the embedded page templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// StaticFS returns the embedded client assets (js, css) rooted at static/.
func StaticFS() fs.FS {
	sub, err := fs.Sub(viewsFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// PageData is shared by every page.
type PageData struct {
	Project   string
	Title     string
	Active    string
	Districts []string
}

// RenderPage executes the layout for page into w.
func RenderPage(w io.Writer, page string, data *PageData) error {
	if pages == nil {
		return errors.New("page templates not loaded: call views.LoadTemplates during startup")
	}
	t, ok := pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	return t.ExecuteTemplate(w, "layout.html", data)
}
