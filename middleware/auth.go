package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/sessions"
	log "github.com/sirupsen/logrus"

	"megatrade-web/models"
	"megatrade-web/services/auth"
	"megatrade-web/utils"
)

type contextKey string

const (
	IdentityContextKey contextKey = "identity"

	SessionName     = "megatrade_session"
	sessionTokenKey = "token"
)

// SessionAuth resolves the signed-in identity from a bearer token or from the
// session cookie.
type SessionAuth struct {
	store      sessions.Store
	jwtService *auth.JWTService
}

func NewSessionAuth(store sessions.Store, jwtService *auth.JWTService) *SessionAuth {
	return &SessionAuth{store: store, jwtService: jwtService}
}

// Authenticate adds the identity to the request context when one is present.
// Anonymous requests pass through untouched.
func (a *SessionAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, fromSession := a.token(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := a.jwtService.ValidateToken(token)
		if err != nil {
			log.Printf("Token validation failed from %s: %v", utils.ClientIP(r), err)
			if fromSession {
				a.forget(w, r)
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func (a *SessionAuth) token(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1], false
		}
		return "", false
	}

	session, err := a.store.Get(r, SessionName)
	if err != nil {
		return "", false
	}
	token, _ := session.Values[sessionTokenKey].(string)
	return token, true
}

func (a *SessionAuth) forget(w http.ResponseWriter, r *http.Request) {
	session, err := a.store.Get(r, SessionName)
	if err != nil {
		return
	}
	delete(session.Values, sessionTokenKey)
	if err := session.Save(r, w); err != nil {
		log.Printf("Error clearing expired session token: %v", err)
	}
}

// StartSession validates token and stores it in the session cookie.
func (a *SessionAuth) StartSession(w http.ResponseWriter, r *http.Request, token string) (*models.Identity, error) {
	identity, err := a.jwtService.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	session, err := a.store.Get(r, SessionName)
	if err != nil && session == nil {
		return nil, err
	}
	// a fresh sign-in never inherits dialog state from someone else
	session.Values = map[interface{}]interface{}{sessionTokenKey: token}
	if err := session.Save(r, w); err != nil {
		return nil, err
	}
	return identity, nil
}

// EndSession expires the session cookie.
func (a *SessionAuth) EndSession(w http.ResponseWriter, r *http.Request) error {
	session, err := a.store.Get(r, SessionName)
	if err != nil && session == nil {
		return err
	}
	session.Values = map[interface{}]interface{}{}
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, identity)
}

// IdentityFromContext returns the signed-in identity, or nil for anonymous
// requests.
func IdentityFromContext(ctx context.Context) *models.Identity {
	identity, ok := ctx.Value(IdentityContextKey).(*models.Identity)
	if !ok {
		return nil
	}
	return identity
}

var errForbidden = errors.New("forbidden")

// RequireUser lets through only signed-in users. Page requests are redirected
// to signInURL, JSON requests get a 401.
func RequireUser(signInURL string) func(http.Handler) http.Handler {
	return require(signInURL, func(identity *models.Identity) error {
		if identity.IsUser() {
			return nil
		}
		return errForbidden
	})
}

// RequireAdmin lets through only admins.
func RequireAdmin(signInURL string) func(http.Handler) http.Handler {
	return require(signInURL, func(identity *models.Identity) error {
		if identity.IsAdmin() {
			return nil
		}
		return errForbidden
	})
}

func require(signInURL string, check func(*models.Identity) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			if identity == nil {
				if utils.WantsJSON(r) || r.Method != http.MethodGet {
					utils.SendErrorResponse(w, http.StatusUnauthorized, "Authentication required")
					return
				}
				http.Redirect(w, r, signInRedirect(signInURL, r), http.StatusSeeOther)
				return
			}

			if err := check(identity); err != nil {
				log.WithFields(log.Fields{
					"user_id":  identity.UserID,
					"admin_id": identity.AdminID,
					"role":     identity.Role,
				}).Printf("Access denied to %s", r.URL.Path)
				utils.SendErrorResponse(w, http.StatusForbidden, "Access denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func signInRedirect(signInURL string, r *http.Request) string {
	target, err := url.Parse(signInURL)
	if err != nil {
		return signInURL
	}
	q := target.Query()
	q.Set("next", r.URL.RequestURI())
	target.RawQuery = q.Encode()
	return target.String()
}
