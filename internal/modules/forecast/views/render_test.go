package views

import (
	"bytes"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadTemplates_success(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates() = %v; want nil", err)
	}
	for _, name := range pageNames {
		if pages[name] == nil {
			t.Errorf("LoadTemplates() left page %q nil", name)
		}
	}
}

func TestLoadTemplates_failure_missingDir(t *testing.T) {
	// Empty FS has no templates; ParseFS finds nothing to parse.
	err := loadTemplatesFromFS(fstest.MapFS{}, "templates")
	if err == nil {
		t.Fatal("loadTemplatesFromFS(emptyFS, \"templates\") = nil; want error")
	}
}

func TestLoadTemplates_failure_parse(t *testing.T) {
	badFS := fstest.MapFS{
		"templates/layout.html":          {Data: []byte("{{ .")},
		"templates/partials/nav.html":    {Data: []byte("")},
		"templates/partials/footer.html": {Data: []byte("")},
	}
	if err := loadTemplatesFromFS(badFS, "templates"); err == nil {
		t.Fatal("loadTemplatesFromFS(badFS, \"templates\") = nil; want error")
	}
}

func TestLoadTemplates_failure_missingPage(t *testing.T) {
	prev := pages
	t.Cleanup(func() { pages = prev })

	partialFS := fstest.MapFS{
		"templates/layout.html":          {Data: []byte(`{{block "content" .}}{{end}}`)},
		"templates/partials/nav.html":    {Data: []byte("")},
		"templates/partials/footer.html": {Data: []byte("")},
		"templates/app.html":             {Data: []byte(`{{define "content"}}dashboard{{end}}`)},
	}
	err := loadTemplatesFromFS(partialFS, "templates")
	if err == nil {
		t.Fatal("loadTemplatesFromFS with missing pages = nil; want error")
	}
	if !strings.Contains(err.Error(), "analytics.html") {
		t.Errorf("err = %q; want it to name analytics.html", err)
	}
}

func TestRenderPage_notLoaded(t *testing.T) {
	prev := pages
	pages = nil
	t.Cleanup(func() { pages = prev })

	var buf bytes.Buffer
	err := RenderPage(&buf, PageDashboard, &PageData{})
	if err == nil {
		t.Fatal("RenderPage() = nil; want error when templates not loaded")
	}
	if !strings.Contains(err.Error(), "not loaded") {
		t.Errorf("err = %q; want message containing \"not loaded\"", err.Error())
	}
}

func TestRenderPage_unknownPage(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	var buf bytes.Buffer
	if err := RenderPage(&buf, "admin.html", &PageData{}); err == nil {
		t.Fatal("RenderPage(admin.html) = nil; want error")
	}
}

func TestRenderPage_dashboard(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	var buf bytes.Buffer
	data := &PageData{
		Project:   "Water Quality Forecast",
		Title:     "Forecast",
		Active:    "dashboard",
		Districts: []string{"Ariyalur", "Chennai", "<script>"},
	}
	if err := RenderPage(&buf, PageDashboard, data); err != nil {
		t.Fatalf("RenderPage: %v", err)
	}
	html := buf.String()

	for _, want := range []string{
		`<option value="Ariyalur">Ariyalur</option>`,
		`<option value="Chennai">Chennai</option>`,
		`id="precipChart"`,
		`id="tempChart"`,
		`id="chlorophyllChart"`,
		`/static/js/charts.js`,
		`/static/js/app.js`,
		`<title>Forecast | Water Quality Forecast</title>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("dashboard HTML missing %q", want)
		}
	}
	if strings.Contains(html, "<option value=\"<script>\">") {
		t.Error("district names must be HTML-escaped")
	}
}

func TestRenderPage_analyticsAndAbout(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	tests := []struct {
		page string
		want []string
	}{
		{PageAnalytics, []string{`id="leaderboard"`, `/static/js/analytics.js`, `id="topChart"`}},
		{PageAbout, []string{"About Water Quality Forecast", "Advisory thresholds"}},
	}
	for _, tt := range tests {
		t.Run(tt.page, func(t *testing.T) {
			var buf bytes.Buffer
			if err := RenderPage(&buf, tt.page, &PageData{Project: "Water Quality Forecast", Title: "x"}); err != nil {
				t.Fatalf("RenderPage: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("%s missing %q", tt.page, want)
				}
			}
			if strings.Contains(buf.String(), "precipChart") {
				t.Errorf("%s must not include the dashboard content block", tt.page)
			}
		})
	}
}

func TestRenderPage_navActive(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	var buf bytes.Buffer
	if err := RenderPage(&buf, PageAbout, &PageData{Active: "about"}); err != nil {
		t.Fatalf("RenderPage: %v", err)
	}
	if !strings.Contains(buf.String(), `class="nav-link active" href="/about"`) {
		t.Error("about link should be marked active")
	}
}

func TestStaticFS(t *testing.T) {
	for _, name := range []string{"js/app.js", "js/analytics.js", "js/charts.js", "css/style.css"} {
		data, err := fs.ReadFile(StaticFS(), name)
		if err != nil {
			t.Errorf("ReadFile(%s): %v", name, err)
			continue
		}
		if len(data) == 0 {
			t.Errorf("%s is empty", name)
		}
	}

	charts, err := fs.ReadFile(StaticFS(), "js/charts.js")
	if err != nil {
		t.Fatalf("read charts.js: %v", err)
	}
	if !strings.Contains(string(charts), "function replaceChart(") {
		t.Error("charts.js must define replaceChart")
	}
	if strings.Contains(string(charts), "window[") {
		t.Error("chart handles must not live on window")
	}
}
