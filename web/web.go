// Package web renders the server-side HTML pages. Every page template is
// parsed together with the shared layout.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/modernplatform/modern-platform/internal/feed"
	"github.com/modernplatform/modern-platform/internal/models"
)

//go:embed templates
var templateFS embed.FS

// Page is the data every template receives.
type Page struct {
	Title string
	Path  string
	Theme string
	User  *models.User

	Error  string
	Notice string
	Form   map[string]string
	Errors map[string]string

	// register
	AlreadyRegistered bool
	// contact
	Sent bool
	// explore and home
	Posts []models.PostWithAuthor
	Query feed.Query
	// profile
	OwnPosts    []models.Post
	Editing     bool
	MaxUploadMB int64
}

// Field returns the submitted value of a form field, for re-rendering.
func (p *Page) Field(name string) string {
	if p.Form == nil {
		return ""
	}
	return p.Form[name]
}

// FieldError returns the validation message for a form field.
func (p *Page) FieldError(name string) string {
	if p.Errors == nil {
		return ""
	}
	return p.Errors[name]
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2, 2006")
	},
	"initial": func(s string) string {
		s = strings.TrimSpace(s)
		if s == "" {
			return "?"
		}
		return strings.ToUpper(string([]rune(s)[0]))
	},
	"selected": func(a, b string) template.HTMLAttr {
		if a == b {
			return "selected"
		}
		return ""
	},
}

// Renderer holds one parsed template set per page.
type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	files, err := fs.Glob(templateFS, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	r := &Renderer{pages: make(map[string]*template.Template, len(files))}
	for _, f := range files {
		name := strings.TrimSuffix(path.Base(f), ".html")
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", f)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render executes page into w. Output is buffered so a failing template
// never leaves a half-written response.
func (r *Renderer) Render(w io.Writer, page string, data *Page) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
