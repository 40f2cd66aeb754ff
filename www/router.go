package www

import (
	"net/http"

	"orderlink/client"
	"orderlink/config"
	"orderlink/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	client   *client.Client
	db       *store.DB
	cfg      *config.Config
	sessions *sessionStore
	eventHub *EventHub
}

// NewRouter creates the chi router and returns it along with a stop function.
func NewRouter(c *client.Client, db *store.DB, cfg *config.Config) (http.Handler, func()) {
	h := &Handlers{
		client:   c,
		db:       db,
		cfg:      cfg,
		sessions: newSessionStore(cfg.Web.SessionSecret),
		eventHub: NewEventHub(),
	}

	h.eventHub.Start()
	h.eventHub.SetupClientListeners(c)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// SSE (no auth, same trust boundary as the terminal itself)
	r.Get("/events", h.eventHub.HandleSSE)

	// Login/logout
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	r.Route("/api", func(r chi.Router) {
		// Public surface for the terminal UI.
		r.Get("/status", h.apiStatus)
		r.Post("/orders", h.apiSubmitOrder)
		r.Get("/notifications", h.apiListNotifications)
		r.Post("/notifications/{id}/read", h.apiMarkRead)
		r.Post("/notifications/read-all", h.apiMarkAllRead)
		r.Post("/notifications/permission", h.apiRequestPermission)
		r.Get("/offline/pending", h.apiListPending)
		r.Get("/offline/failed", h.apiListFailed)
		r.Post("/offline/sync", h.apiSyncNow)

		// Operator-only mutations.
		r.Group(func(r chi.Router) {
			r.Use(h.operatorMiddleware)
			r.Post("/connect", h.apiConnect)
			r.Post("/disconnect", h.apiDisconnect)
			r.Delete("/offline/{id}", h.apiDiscardPending)
			r.Put("/config/realtime", h.apiUpdateRealtime)
			r.Post("/config/password", h.apiChangePassword)
		})
	})

	return r, func() {
		h.eventHub.Stop()
	}
}

func (h *Handlers) operatorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, ok := h.sessions.getUser(r)
		if !ok || username == "" {
			respondError(w, http.StatusUnauthorized, "login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
