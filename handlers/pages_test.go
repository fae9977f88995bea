package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"megatrade-web/models"
)

func navLabels(links []NavLink) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.Label)
	}
	return out
}

func TestNavLinks(t *testing.T) {
	anonymous := NavLinks(nil, "/sign-in", "/dashboard")
	assert.Equal(t, []string{"Home", "Sign In"}, navLabels(anonymous))
	assert.Equal(t, "/sign-in", anonymous[1].Href)

	signedIn := NavLinks(&models.Identity{UserID: "user-1", Role: models.RoleUser}, "/sign-in", "/dashboard")
	assert.Equal(t, []string{"Home", "My Account"}, navLabels(signedIn))
	assert.Equal(t, "/dashboard", signedIn[1].Href)
}

func TestHomeRendersNavShell(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	doc := parseDoc(t, rec)
	assert.Equal(t, "/", doc.Find(".topbar__logo").AttrOr("href", ""))
	assert.Equal(t, "Sign In", doc.Find(".topbar__link").Last().Text())

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/", nil), &testUser)
	doc = parseDoc(t, rec)
	assert.Equal(t, "My Account", doc.Find(".topbar__link").Last().Text())
	assert.Equal(t, "/dashboard", doc.Find(".topbar__link").Last().AttrOr("href", ""))
}

func TestSecurityHeadersOnPages(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/static/checkout.js", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "createSubscription")
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/health", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"pending":2`)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "megatrade_web_http_requests_total")
}
