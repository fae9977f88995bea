package handlers

import (
	"net/http"

	"github.com/gorilla/sessions"
)

type PageHandler struct {
	store    sessions.Store
	renderer *Renderer
}

func NewPageHandler(store sessions.Store, renderer *Renderer) *PageHandler {
	return &PageHandler{store: store, renderer: renderer}
}

// Home renders the landing page with the navigation shell.
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s := session(h.store, r)
	notes := takeFlashes(s)
	if len(notes) > 0 {
		saveSession(w, r, s)
	}

	h.renderer.Render(w, r, http.StatusOK, "home", pageData{
		Title:         "Home",
		Notifications: notes,
	})
}
