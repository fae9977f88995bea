package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gorilla/csrf"
	log "github.com/sirupsen/logrus"

	"megatrade-web/models"
	"megatrade-web/utils"
	"megatrade-web/web"
)

// NavLink is one entry of the top bar.
type NavLink struct {
	Label string
	Href  string
}

// NavLinks returns the top bar links for identity: Home and My Account when
// someone is signed in, Home and Sign In otherwise.
func NavLinks(identity *models.Identity, signInURL, dashboardURL string) []NavLink {
	if identity != nil && (identity.IsUser() || identity.IsAdmin()) {
		return []NavLink{{Label: "Home", Href: "/"}, {Label: "My Account", Href: dashboardURL}}
	}
	return []NavLink{{Label: "Home", Href: "/"}, {Label: "Sign In", Href: signInURL}}
}

type pageData struct {
	Title         string
	Nav           []NavLink
	Identity      *models.Identity
	Notifications []models.Notification
	CSRFField     template.HTML
	CSRFToken     string
	Content       interface{}
}

// Renderer executes the page templates compiled into the binary.
type Renderer struct {
	templates    map[string]*template.Template
	signInURL    string
	dashboardURL string
}

func NewRenderer(signInURL, dashboardURL string) (*Renderer, error) {
	templates, err := loadTemplates(web.FS)
	if err != nil {
		return nil, err
	}
	return &Renderer{
		templates:    templates,
		signInURL:    signInURL,
		dashboardURL: dashboardURL,
	}, nil
}

func loadTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"formatPrice": utils.FormatPrice,
		"formatDate":  utils.FormatBillingDate,
		"holds":       models.Membership.Holds,
		"safeImage":   safeImage,
	}

	pages := map[string]string{
		"home":               "templates/home.html",
		"subscriptions":      "templates/subscriptions.html",
		"admin_subscription": "templates/admin_subscription_form.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(fsys, "templates/base.html", file)
		if err != nil {
			return nil, fmt.Errorf("parse %s templates: %w", name, err)
		}
		templates[name] = tmpl
	}
	return templates, nil
}

// safeImage lets uploaded data URIs and web URLs through as image sources and
// blanks anything else.
func safeImage(src string) template.URL {
	src = strings.TrimSpace(src)
	lower := strings.ToLower(src)
	switch {
	case strings.HasPrefix(lower, "data:image/") && !strings.HasPrefix(lower, "data:image/svg"):
		return template.URL(src)
	case strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "http://"), strings.HasPrefix(src, "/"):
		return template.URL(src)
	}
	return ""
}

// Render writes page name with status. The page is rendered to a buffer first so
// a template error never leaves a half written response.
func (rr *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	tmpl, ok := rr.templates[name]
	if !ok {
		log.Printf("Unknown template %q", name)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if data.Identity == nil {
		data.Identity = identityFrom(r)
	}
	data.Nav = NavLinks(data.Identity, rr.signInURL, rr.dashboardURL)
	data.CSRFField = csrf.TemplateField(r)
	data.CSRFToken = csrf.Token(r)

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		log.Printf("Error rendering %s: %v", name, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("Error writing %s page: %v", name, err)
	}
}
