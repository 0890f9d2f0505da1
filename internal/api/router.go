package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/quantfeed/pulse/internal/api/handlers"
	"github.com/quantfeed/pulse/internal/api/ws"
	"github.com/quantfeed/pulse/pkg/logger"
)

// NewRouter creates and configures the HTTP router
func NewRouter(marketHandler *handlers.MarketHandler, hub *ws.Hub, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", marketHandler.Health).Methods("GET")

	// API
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/performance", marketHandler.GetPerformance).Methods("GET")
	api.HandleFunc("/snapshots", marketHandler.GetSnapshots).Methods("GET")
	api.HandleFunc("/sectors", marketHandler.GetSectors).Methods("GET")
	api.HandleFunc("/history", marketHandler.GetHistory).Methods("GET")
	api.HandleFunc("/download/{id}", marketHandler.Download).Methods("GET")
	api.HandleFunc("/refresh", marketHandler.Refresh).Methods("POST")

	// Live updates
	if hub != nil {
		r.HandleFunc("/ws", hub.ServeWS)
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
