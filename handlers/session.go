package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"unicode"

	log "github.com/sirupsen/logrus"

	"megatrade-web/middleware"
	"megatrade-web/models"
)

type SessionHandler struct {
	auth      *middleware.SessionAuth
	signInURL string
}

func NewSessionHandler(sessionAuth *middleware.SessionAuth, signInURL string) *SessionHandler {
	return &SessionHandler{auth: sessionAuth, signInURL: signInURL}
}

// Start exchanges a session token for the session cookie and sends the browser
// on to its landing page.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		http.Redirect(w, r, h.signInURL, http.StatusSeeOther)
		return
	}

	identity, err := h.auth.StartSession(w, r, token)
	if err != nil {
		log.Printf("Rejected session start: %s", tokenErrorMessage(err))
		http.Redirect(w, r, h.signInURL, http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, landingPath(identity, r.URL.Query().Get("next")), http.StatusSeeOther)
}

// End signs the browser out.
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.EndSession(w, r); err != nil {
		log.Printf("Error ending session: %v", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// landingPath honours next only for local paths.
func landingPath(identity *models.Identity, next string) string {
	if isLocalPath(next) {
		return next
	}
	if identity.IsAdmin() {
		return newSubscriptionPath
	}
	return subscriptionsPath
}

// isLocalPath rejects anything a browser could turn into another origin,
// including paths hiding a "//" behind characters it strips.
func isLocalPath(next string) bool {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return false
	}
	for _, r := range next {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return false
		}
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return false
	}
	return !strings.HasPrefix(u.Path, "//")
}
