package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"

	"megatrade-web/forms"
	"megatrade-web/middleware"
	"megatrade-web/models"
	"megatrade-web/queue"
	"megatrade-web/services/api"
	"megatrade-web/services/auth"
	"megatrade-web/services/paypal"
	"megatrade-web/services/subscriptions"
)

const testSecret = "internal-secret-value"

type fakeUserAPI struct {
	data       *api.SubscriptionsData
	fetchErr   error
	fetchCalls int
	created    []api.CreateSubscriptionRequest
	createErr  error
	cancelErr  error
	sponsors   []api.GetSponsorRequest
	sponsorErr error
}

func (f *fakeUserAPI) FetchSubscriptions(ctx context.Context, userID string) (*api.SubscriptionsData, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.data, nil
}

func (f *fakeUserAPI) CreateSubscription(ctx context.Context, req api.CreateSubscriptionRequest) (*api.Result, error) {
	f.created = append(f.created, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &api.Result{Message: "Subscription created"}, nil
}

func (f *fakeUserAPI) CancelSubscription(ctx context.Context, userID string) (*api.Result, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return &api.Result{Message: "Subscription cancelled"}, nil
}

func (f *fakeUserAPI) GetSponsor(ctx context.Context, req api.GetSponsorRequest) (*api.Result, error) {
	f.sponsors = append(f.sponsors, req)
	if f.sponsorErr != nil {
		return nil, f.sponsorErr
	}
	return &api.Result{Message: "Sponsor applied"}, nil
}

type fakeAdminAPI struct {
	requests []api.CreateSubscriptionsRequest
	err      error
}

func (f *fakeAdminAPI) CreateSubscriptions(ctx context.Context, req api.CreateSubscriptionsRequest) (*api.Result, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &api.Result{Message: "Subscription saved"}, nil
}

type fakeFetcher struct {
	details *paypal.SubscriptionDetails
	err     error
}

func (f *fakeFetcher) GetSubscription(ctx context.Context, id string) (*paypal.SubscriptionDetails, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.details, nil
}

type fakeLedger struct {
	recorded []models.PaymentEvent
	listed   []models.PaymentEvent
	lastUser string
	lastLim  int
}

func (f *fakeLedger) Record(ctx context.Context, event models.PaymentEvent) {
	f.recorded = append(f.recorded, event)
}

func (f *fakeLedger) ListPaymentEvents(ctx context.Context, userID string, limit int) ([]models.PaymentEvent, error) {
	f.lastUser = userID
	f.lastLim = limit
	return f.listed, nil
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(ctx context.Context) error { return p.err }

type fakeProbe struct{ err error }

func (p fakeProbe) Ping(ctx context.Context) error { return p.err }

func (p fakeProbe) Stats(ctx context.Context) (queue.Stats, error) {
	return queue.Stats{Pending: 2}, nil
}

type testEnv struct {
	router  http.Handler
	jwt     *auth.JWTService
	user    *fakeUserAPI
	admin   *fakeAdminAPI
	fetcher *fakeFetcher
	ledger  *fakeLedger
	jobs    *queue.Queue
}

var (
	testUser  = models.Identity{UserID: "user-1", Role: models.RoleUser}
	testAdmin = models.Identity{AdminID: "admin-1", Role: models.RoleAdmin}
)

func sampleSubscriptions() *api.SubscriptionsData {
	return &api.SubscriptionsData{
		Subscriptions: []models.Subscription{
			{Title: "Free Membership", Price: "0", Tier: models.TierFree},
			{Title: "Gold", Price: "49", PlanID: "P-GOLD", Validity: "1 month", Description: "All markets", Tier: models.TierPaid},
		},
		Membership: models.Membership{Title: "Free Membership"},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		jwt:     auth.NewJWTService("jwt-secret", "megatrade-web", time.Hour),
		user:    &fakeUserAPI{data: sampleSubscriptions()},
		admin:   &fakeAdminAPI{},
		fetcher: &fakeFetcher{details: &paypal.SubscriptionDetails{PlanID: "P-GOLD", StartTime: "2024-05-01T10:00:00Z", NextBillingTime: "2024-06-01T10:00:00Z"}},
		ledger:  &fakeLedger{},
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	env.jobs = queue.NewQueueWithClient(client, "test:ledger")

	store := sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef"))
	renderer, err := NewRenderer("/sign-in", "/dashboard")
	require.NoError(t, err)

	orchestrator := subscriptions.NewOrchestrator(env.user, env.fetcher, env.ledger)
	sessionAuth := middleware.NewSessionAuth(store, env.jwt)

	router, err := NewRouter(Router{
		Pages:         NewPageHandler(store, renderer),
		Subscriptions: NewSubscriptionHandler(orchestrator, store, renderer, PayPalSettings{ClientID: "client-abc"}),
		Payments:      NewPaymentHandler(orchestrator, store),
		Admin:         NewAdminSubscriptionHandler(env.admin, forms.SubscriptionSchema(4096), store, renderer, env.ledger),
		Internal:      NewInternalHandler(env.jwt, testSecret),
		Session:       NewSessionHandler(sessionAuth, "/sign-in"),
		Health:        NewHealthHandler(fakePinger{}, fakeProbe{}),
		LedgerJobs:    NewLedgerJobsHandler(env.jobs),
		SessionAuth:   sessionAuth,
		SignInURL:     "/sign-in",
	})
	require.NoError(t, err)
	env.router = router
	return env
}

// do serves req as identity (nil for anonymous) carrying cookies.
func (e *testEnv) do(t *testing.T, req *http.Request, identity *models.Identity, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	if identity != nil {
		issued, err := e.jwt.GenerateToken(*identity)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+issued.Token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func formRequest(method, path string, values map[string]string) *http.Request {
	form := url.Values{}
	for k, v := range values {
		form.Set(k, v)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req
}

func parseDoc(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	return doc
}

func decodeJSON(rec *httptest.ResponseRecorder, dst interface{}) error {
	return json.Unmarshal(rec.Body.Bytes(), dst)
}
