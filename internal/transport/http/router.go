package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"campusnotify/internal/handler"
	"campusnotify/internal/httputil"
	authmw "campusnotify/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	NotificationHandler *handler.NotificationHandler
	PreferenceHandler   *handler.PreferenceHandler
	DeviceHandler       *handler.DeviceHandler
	Realtime            http.HandlerFunc
	Tokens              authmw.TokenValidator
	Logger              logrus.FieldLogger
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(authmw.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(authmw.CORS)

	// Health check endpoint (useful for deployment/monitoring)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// The realtime endpoint authenticates its own handshake so it can reject
	// before upgrading.
	if cfg.Realtime != nil {
		r.Get("/ws", cfg.Realtime)
	}

	// Protected routes - require authentication
	r.Group(func(r chi.Router) {
		r.Use(authmw.AuthMiddleware(cfg.Tokens))

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", cfg.DeviceHandler.List)
			r.Post("/token", cfg.DeviceHandler.RegisterToken)
			r.Delete("/token", cfg.DeviceHandler.RemoveToken)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", cfg.NotificationHandler.List)
			r.Get("/unread-count", cfg.NotificationHandler.UnreadCount)
			r.Get("/stats", cfg.NotificationHandler.Stats)
			r.Post("/read", cfg.NotificationHandler.BulkMarkRead)
			r.Post("/read-all", cfg.NotificationHandler.MarkAllRead)
			r.Post("/{id}/read", cfg.NotificationHandler.MarkRead)

			r.Get("/preferences", cfg.PreferenceHandler.Get)
			r.Put("/preferences", cfg.PreferenceHandler.Update)
		})
	})

	return r
}
