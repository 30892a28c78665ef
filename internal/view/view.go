// Package view renders the HTML pages from embedded templates.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/notely/notely/internal/model"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Page names.
const (
	PageIndex    = "index"
	PageNew      = "new"
	PageShow     = "show"
	PageEdit     = "edit"
	PageRegister = "register"
	PageLogin    = "login"
	PageError    = "error"
)

var pages = []string{PageIndex, PageNew, PageShow, PageEdit, PageRegister, PageLogin, PageError}

// Data is the context every page template receives.
type Data struct {
	Title string
	User  *model.User

	Notes []*model.Note
	Note  *model.Note

	// Form echoes submitted values back on re-render.
	Form map[string]string
	// Errors holds per-field messages; FormError a message for the whole form.
	Errors    map[string]string
	FormError string

	UploadsEnabled bool
	GitHubEnabled  bool

	Status  int
	Message string
}

// Renderer executes page templates.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.Format("Jan 2, 2006 15:04")
	},
	"edited": func(n *model.Note) bool {
		return n.UpdatedAt.After(n.CreatedAt)
	},
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	return parse(templatesFS)
}

func parse(fsys fs.FS) (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(fsys, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render writes page with status. The page is buffered so a template error
// never leaves a half-written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data Data) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
