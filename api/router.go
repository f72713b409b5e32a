package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"stagehall/handlers"
	"stagehall/services/sessions"
)

// RouterConfig carries everything the router wires together.
type RouterConfig struct {
	Sessions *sessions.Service

	Auth  *handlers.AuthHandler
	Shows *handlers.ShowsHandler
	Sync  *handlers.SyncHandler

	CronSecret   string
	IsProduction bool
}

// NewRouter builds the HTTP route table: public reads, rate-limited auth,
// the admin-gated rebuild trigger and the scheduler endpoints.
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	// Public read endpoints.
	r.HandleFunc("/api/shows", cfg.Shows.List).Methods(http.MethodGet)
	r.HandleFunc("/api/shows/{slug}", cfg.Shows.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/shows/{slug}/performances", cfg.Shows.ListPerformances).Methods(http.MethodGet)
	r.HandleFunc("/api/performances/upcoming", cfg.Shows.Upcoming).Methods(http.MethodGet)

	// Auth. Login is rate limited per IP: 5 attempts per minute.
	loginLimiter := NewIPRateLimiter(rate.Every(12*time.Second), 5)
	r.HandleFunc("/api/auth/login", RateLimitHandlerFunc(loginLimiter, cfg.Auth.Login)).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", cfg.Auth.Logout).Methods(http.MethodPost)

	// The manual rebuild needs an authenticated administrator session.
	admin := r.PathPrefix("/api/admin").Subrouter()
	admin.Use(SessionAuthMiddleware(cfg.Sessions))
	admin.Use(AdminOnlyMiddleware())
	admin.HandleFunc("/sync/rebuild", cfg.Sync.Rebuild).Methods(http.MethodPost)

	// Scheduler endpoints authenticate with a shared secret header.
	cron := r.PathPrefix("/api/cron").Subrouter()
	cron.Use(CronAuthMiddleware(cfg.CronSecret, cfg.IsProduction))
	cron.HandleFunc("/sync/productions", cfg.Sync.CronSyncProductions).Methods(http.MethodPost)
	cron.HandleFunc("/sync/events", cfg.Sync.CronSyncEvents).Methods(http.MethodPost)

	return r
}
