package handlers

import (
	"io/fs"
	"net/http"

	"github.com/gorilla/mux"

	"megatrade-web/metrics"
	"megatrade-web/middleware"
	"megatrade-web/web"
)

// Router bundles what NewRouter needs. RateLimiter and CSRF are optional.
type Router struct {
	Pages         *PageHandler
	Subscriptions *SubscriptionHandler
	Payments      *PaymentHandler
	Admin         *AdminSubscriptionHandler
	Internal      *InternalHandler
	Session       *SessionHandler
	Health        *HealthHandler
	LedgerJobs    *LedgerJobsHandler

	SessionAuth *middleware.SessionAuth
	RateLimiter *middleware.RateLimiter
	CSRF        mux.MiddlewareFunc
	SignInURL   string
}

func NewRouter(rt Router) (*mux.Router, error) {
	static, err := fs.Sub(web.FS, "static")
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	router.Use(metrics.InstrumentHandler)
	router.Use(middleware.SecurityHeadersMiddleware)
	router.Use(middleware.LoggingMiddleware)

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/api/health", rt.Health.Health).Methods(http.MethodGet)
	router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(static)))).Methods(http.MethodGet)

	internal := router.PathPrefix("/internal").Subrouter()
	internal.Use(rt.Internal.RequireInternalSecret)
	if rt.RateLimiter != nil {
		internal.Use(rt.RateLimiter.RateLimitMiddleware)
	}
	internal.HandleFunc("/session-token", rt.Internal.GenerateSessionToken).Methods(http.MethodPost)
	internal.HandleFunc("/health", rt.Internal.InternalHealthCheck).Methods(http.MethodGet)

	pages := router.NewRoute().Subrouter()
	pages.Use(rt.SessionAuth.Authenticate)
	if rt.RateLimiter != nil {
		pages.Use(rt.RateLimiter.RateLimitMiddleware)
	}
	if rt.CSRF != nil {
		pages.Use(rt.CSRF)
	}

	pages.HandleFunc("/", rt.Pages.Home).Methods(http.MethodGet)
	pages.HandleFunc("/session/start", rt.Session.Start).Methods(http.MethodGet)
	pages.HandleFunc("/session/end", rt.Session.End).Methods(http.MethodPost)

	user := pages.PathPrefix("/subscriptions").Subrouter()
	user.Use(middleware.RequireUser(rt.SignInURL))
	user.HandleFunc("", rt.Subscriptions.List).Methods(http.MethodGet)
	user.HandleFunc("/select", rt.Subscriptions.Select).Methods(http.MethodPost)
	user.HandleFunc("/free/confirm", rt.Subscriptions.ConfirmFree).Methods(http.MethodPost)
	user.HandleFunc("/cancel", rt.Subscriptions.Cancel).Methods(http.MethodPost)
	user.HandleFunc("/dialogs/close", rt.Subscriptions.CloseDialogs).Methods(http.MethodPost)
	user.HandleFunc("/sponsor", rt.Subscriptions.RedeemSponsor).Methods(http.MethodPost)
	user.HandleFunc("/payment/approve", rt.Payments.Approve).Methods(http.MethodPost)
	user.HandleFunc("/payment/error", rt.Payments.Error).Methods(http.MethodPost)
	user.HandleFunc("/payment/cancel", rt.Payments.Cancel).Methods(http.MethodPost)

	admin := pages.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin(rt.SignInURL))
	admin.HandleFunc("/subscriptions/new", rt.Admin.New).Methods(http.MethodGet)
	admin.HandleFunc("/subscriptions", rt.Admin.Create).Methods(http.MethodPost)
	admin.HandleFunc("/subscriptions/validate", rt.Admin.Validate).Methods(http.MethodPost)
	admin.HandleFunc("/payment-events", rt.Admin.PaymentEvents).Methods(http.MethodGet)
	admin.HandleFunc("/ledger/failed-jobs", rt.LedgerJobs.FailedJobs).Methods(http.MethodGet)
	admin.HandleFunc("/ledger/failed-jobs/{id}/retry", rt.LedgerJobs.Retry).Methods(http.MethodPost)

	return router, nil
}
