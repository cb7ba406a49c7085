package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bus-monitor/internal/metrics"
	"bus-monitor/internal/models"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const version = "1.0.0"

// StatsSource is the read-only view of the running monitor.
type StatsSource interface {
	GetCurrentStats() models.AnalyticsStats
	GetRecentAlerts(limit int) []models.AlertEvent
}

// AlertArchive is the persistent alert store, keyed by session.
type AlertArchive interface {
	GetRecentAlerts(ctx context.Context, sessionID string, count int64) ([]models.AlertEvent, error)
}

type Server struct {
	router  *mux.Router
	source  StatsSource
	archive AlertArchive
	log     *zap.Logger
}

// New builds the status server. archive may be nil, in which case
// /alerts/stored reports the store as unavailable.
func New(source StatsSource, archive AlertArchive, log *zap.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		source:  source,
		archive: archive,
		log:     log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.HandleFunc("/analytics/current", s.getAnalyticsHandler).Methods("GET")
	s.router.HandleFunc("/alerts/recent", s.getAlertsHandler).Methods("GET")
	s.router.HandleFunc("/alerts/stored", s.getStoredAlertsHandler).Methods("GET")
	s.router.Handle("/metrics/prometheus", promhttp.Handler())
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   version,
		"phase":     s.source.GetCurrentStats().Phase,
	}

	writeJSON(w, http.StatusOK, health)
	observe(r, start, http.StatusOK)
}

func (s *Server) getAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	writeJSON(w, http.StatusOK, s.source.GetCurrentStats())
	observe(r, start, http.StatusOK)
}

func (s *Server) getAlertsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	limit, ok := parseLimit(w, r, start)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, s.source.GetRecentAlerts(limit))
	observe(r, start, http.StatusOK)
}

func (s *Server) getStoredAlertsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if s.archive == nil {
		http.Error(w, "alert store is not configured", http.StatusServiceUnavailable)
		observe(r, start, http.StatusServiceUnavailable)
		return
	}

	limit, ok := parseLimit(w, r, start)
	if !ok {
		return
	}

	sessionID := s.source.GetCurrentStats().SessionID
	alerts, err := s.archive.GetRecentAlerts(r.Context(), sessionID, int64(limit))
	if err != nil {
		s.log.Warn("failed to read stored alerts", zap.String("session", sessionID), zap.Error(err))
		http.Error(w, "failed to read stored alerts", http.StatusBadGateway)
		observe(r, start, http.StatusBadGateway)
		return
	}
	if alerts == nil {
		alerts = []models.AlertEvent{}
	}

	writeJSON(w, http.StatusOK, alerts)
	observe(r, start, http.StatusOK)
}

// parseLimit reads ?limit=, defaulting to 10. On a bad value it writes the
// 400 response itself and returns false.
func parseLimit(w http.ResponseWriter, r *http.Request, start time.Time) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 10, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
		observe(r, start, http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func observe(r *http.Request, start time.Time, status int) {
	metrics.RequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(status)).Inc()
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.log.Info("status server is shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("could not gracefully shutdown the status server", zap.Error(err))
		}
	}()

	s.log.Info("status server is ready to handle requests", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("could not listen on %s: %w", addr, err)
	}

	<-done
	s.log.Info("status server stopped")
	return nil
}
