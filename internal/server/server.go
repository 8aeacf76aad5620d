package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sollane/worldstate-watcher/internal/monitor"
	"github.com/sollane/worldstate-watcher/internal/subscription"
	"github.com/sollane/worldstate-watcher/internal/worldstate"
)

// Server is the operational status surface: health, cache and monitor
// state, subscription listing, and the notification event stream.
type Server struct {
	cache   *worldstate.Cache
	monitor *monitor.Monitor
	store   *subscription.Store
	hub     *Hub
	logger  *zap.Logger
}

func New(cache *worldstate.Cache, mon *monitor.Monitor, store *subscription.Store, hub *Hub, logger *zap.Logger) *Server {
	return &Server{
		cache:   cache,
		monitor: mon,
		store:   store,
		hub:     hub,
		logger:  logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(zapLoggerMiddleware(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/subscriptions", s.handleSubscriptions)
	r.Get("/events/ws", s.hub.HandleWS)

	return r
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context, listen string) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", zap.String("addr", listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Cache        worldstate.Info `json:"cache"`
	Monitor      monitor.Stats   `json:"monitor"`
	Subs         int             `json:"subscriptions"`
	EventClients int             `json:"event_clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Cache:        s.cache.Info(),
		Monitor:      s.monitor.Stats(),
		Subs:         s.store.Len(),
		EventClients: s.hub.ClientCount(),
	})
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	channel := r.URL.Query().Get("channel")

	var subs []subscription.Subscription
	switch {
	case owner != "":
		subs = s.store.ListByOwner(owner, channel)
	case channel != "":
		subs = s.store.ListByChannel(channel)
	default:
		subs = s.store.All()
	}
	if subs == nil {
		subs = []subscription.Subscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func zapLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r)
		})
	}
}
