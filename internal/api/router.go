package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter registers the service routes and wraps them with the standard
// middleware plus extra, such as rate limiting and security headers.
func NewRouter(h *Handler, logger *slog.Logger, extra ...func(http.Handler) http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	router := mux.NewRouter()
	router.HandleFunc("/", h.Index).Methods(http.MethodGet)
	router.HandleFunc("/upload", h.Upload).Methods(http.MethodPost)
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.Handle("/metrics", h.Metrics().Handler()).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not found", RequestID(r.Context()))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", RequestID(r.Context()))
	})

	return WithMiddleware(router, logger, extra...)
}
