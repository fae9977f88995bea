package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/csrf"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	log "github.com/sirupsen/logrus"

	"megatrade-web/config"
	"megatrade-web/database"
	"megatrade-web/forms"
	"megatrade-web/handlers"
	"megatrade-web/middleware"
	"megatrade-web/queue"
	"megatrade-web/services/api"
	"megatrade-web/services/auth"
	"megatrade-web/services/paypal"
	"megatrade-web/services/subscriptions"
	"megatrade-web/utils"
	"megatrade-web/worker"
)

// keyOrRandom returns the configured key, or a random one that only lives as
// long as the process.
func keyOrRandom(configured, name string) []byte {
	if configured != "" {
		return []byte(configured)
	}
	log.Printf("Warning: %s not set, using an ephemeral key; sessions will not survive a restart", name)
	return securecookie.GenerateRandomKey(32)
}

func csrfMiddleware(key []byte, secure bool) func(http.Handler) http.Handler {
	protect := csrf.Protect(key,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("CSRF check failed for %s %s: %v", r.Method, r.URL.Path, csrf.FailureReason(r))
			utils.SendErrorResponse(w, http.StatusForbidden, "Invalid or missing CSRF token")
		})),
	)
	return func(next http.Handler) http.Handler {
		protected := protect(next)
		if secure {
			return protected
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			protected.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
}

func main() {
	cfg := config.Load()
	cfg.ConfigureLogging()

	var db *database.Connection
	var err error
	for retries := 0; retries < 5; retries++ {
		db, err = database.NewConnection(cfg.Database)
		if err == nil {
			break
		}
		retryDelay := time.Duration(retries+1) * time.Second
		log.Printf("Failed to connect to database (attempt %d/5): %v. Retrying in %v...",
			retries+1, err, retryDelay)
		time.Sleep(retryDelay)
	}
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.EnsureSchema(ctx); err != nil {
		cancel()
		log.Fatalf("Failed to prepare database schema: %v", err)
	}
	cancel()
	log.Println("Successfully connected to database")

	jobQueue, err := queue.NewQueue(cfg.Redis.URL, queue.DefaultQueueName)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Println("Successfully connected to Redis")

	ledgerWorker := worker.NewWorker(jobQueue, db)
	if err := ledgerWorker.Start(cfg.Redis.WorkerConcurrency); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	platform := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
	payments := paypal.NewClient(cfg.PayPal.ClientID, cfg.PayPal.ClientSecret, cfg.PayPal.Environment)
	jwtService := auth.NewJWTService(
		string(keyOrRandom(cfg.Session.JWTSecret, "SESSION_JWT_SECRET")),
		cfg.Session.Issuer,
		cfg.Session.TokenTTL,
	)

	store := sessions.NewCookieStore(keyOrRandom(cfg.Session.CookieKey, "SESSION_COOKIE_KEY"))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.Session.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(int(cfg.Session.TokenTTL.Seconds()))
	sessionAuth := middleware.NewSessionAuth(store, jwtService)

	renderer, err := handlers.NewRenderer(cfg.Server.SignInURL, cfg.Server.DashboardURL)
	if err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}

	orchestrator := subscriptions.NewOrchestrator(platform, payments, queue.NewLedgerRecorder(jobQueue))

	router, err := handlers.NewRouter(handlers.Router{
		Pages:         handlers.NewPageHandler(store, renderer),
		Subscriptions: handlers.NewSubscriptionHandler(orchestrator, store, renderer, handlers.PayPalSettings{ClientID: cfg.PayPal.ClientID}),
		Payments:      handlers.NewPaymentHandler(orchestrator, store),
		Admin:         handlers.NewAdminSubscriptionHandler(platform, forms.SubscriptionSchema(cfg.Forms.ImageMaxLength), store, renderer, db),
		Internal:      handlers.NewInternalHandler(jwtService, cfg.Server.InternalSecret),
		Session:       handlers.NewSessionHandler(sessionAuth, cfg.Server.SignInURL),
		Health:        handlers.NewHealthHandler(db, jobQueue),
		LedgerJobs:    handlers.NewLedgerJobsHandler(jobQueue),
		SessionAuth:   sessionAuth,
		RateLimiter:   middleware.NewRateLimiter(jobQueue.Client()),
		CSRF:          csrfMiddleware(keyOrRandom(cfg.Session.CSRFKey, "CSRF_KEY"), cfg.Session.SecureCookie),
		SignInURL:     cfg.Server.SignInURL,
	})
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   45 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Stopping ledger worker...")
	ledgerWorker.Stop()

	log.Println("Closing database connections...")
	db.Close()

	log.Println("Closing Redis connections...")
	jobQueue.Close()

	log.Println("Server exited properly")
}
