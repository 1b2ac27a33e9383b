package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"serafin/internal/bootstrap/logging"
	"serafin/internal/infrastructure/ws"
	"serafin/internal/usecase/monitor"
)

// Server exposes the observation pipeline over HTTP: catalog and feed
// reads, monitor control, chat, and the websocket activity stream.
type Server struct {
	service *monitor.Service
	manager *monitor.Manager
	hub     *ws.Hub
}

func NewServer(service *monitor.Service, manager *monitor.Manager, hub *ws.Hub) *Server {
	return &Server{service: service, manager: manager, hub: hub}
}

func (s *Server) Router() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger)

	router.Route("/api", func(r chi.Router) {
		r.Get("/cameras", s.handleListCameras)
		r.Route("/cameras/{cameraID}", func(r chi.Router) {
			r.Get("/", s.handleGetCamera)
			r.Get("/threads", s.handleListThreads)
			r.Get("/activities", s.handleListActivities)
			r.Post("/analyze", s.handleAnalyze)
			r.Post("/monitor", s.handleSetMonitoring)
			r.Put("/interval", s.handleSetInterval)
			r.Post("/chat", s.handleCameraChat)
		})
		r.Get("/threads", s.handleListThreads)
		r.Get("/threads/{threadID}", s.handleGetThread)
		r.Get("/activities", s.handleListActivities)
		r.Get("/status", s.handleStatus)
		r.Post("/chat", s.handleAssistantChat)
	})

	if s.hub != nil {
		router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			ws.Serve(s.hub, w, r)
		})
	}

	return router
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)
		logging.Info(
			logging.WithAttrs(r.Context(), slog.String("component", "api")),
			"request handled",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", wrapped.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}
