package adaptor

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ponyo877/roomcast/server/domain"
	"github.com/ponyo877/roomcast/server/usecase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterOptions struct {
	AllowedOrigins []string
	Query          QueryOptions
}

type httpHandler struct {
	uc     Usecase
	logger *slog.Logger
	query  QueryOptions
}

// NewRouter mounts the websocket endpoint, the query API and /metrics.
func NewRouter(uc Usecase, ws http.Handler, gatherer prometheus.Gatherer, logger *slog.Logger, opts RouterOptions) http.Handler {
	logger = logger.With(slog.String("component", "http"))
	h := &httpHandler{uc: uc, logger: logger, query: opts.Query}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		// An empty list allows any origin.
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("Chat server is running"))
	})
	r.Get("/healthz", h.health)
	r.Handle("/ws", ws)
	r.Route("/api", func(r chi.Router) {
		r.Get("/messages", h.listMessages)
		r.Get("/messages/recent", h.recentMessages)
		r.Get("/users", h.listUsers)
		r.Get("/stats", h.stats)
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

func (h *httpHandler) health(w http.ResponseWriter, r *http.Request) {
	if _, err := h.uc.Stats(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *httpHandler) listMessages(w http.ResponseWriter, r *http.Request) {
	room, q, err := ParseHistoryQuery(r.URL.Query(), h.query)
	if err != nil {
		h.writeError(w, err)
		return
	}
	messages, err := h.uc.Messages(r.Context(), room, q)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *httpHandler) recentMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := ParseLimit(r.URL.Query().Get("limit"), h.query)
	if err != nil {
		h.writeError(w, err)
		return
	}
	messages, err := h.uc.RecentMessages(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *httpHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.uc.Sessions(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *httpHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.uc.Stats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *httpHandler) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, usecase.ErrClosed):
		code = http.StatusServiceUnavailable
	default:
		h.logger.Error("Request failed", slog.Any("error", err))
	}
	writeJSON(w, code, domain.ErrorNotice{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("HTTP request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
					slog.String("requestID", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

