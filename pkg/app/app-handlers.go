package app

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/sgaunet/aspectidx/pkg/dto"
	"github.com/sgaunet/aspectidx/pkg/health"
)

func (s *App) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// HealthHandler reports backend reachability.
func (s *App) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	info := s.healthMon.GetHealthInfo()
	status := http.StatusOK
	if info.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, info)
}

// StatsHandler reports current index counters.
func (s *App) StatsHandler(w http.ResponseWriter, _ *http.Request) {
	stats := s.manager.Stats()
	s.mu.Lock()
	lastRefresh := s.lastRefresh
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, dto.IndexStats{
		Buckets:     stats.Buckets,
		Images:      stats.Images,
		Discovered:  stats.Discovered,
		LastRefresh: lastRefresh,
	})
}

// RefreshHandler triggers a bucket refresh out of schedule.
func (s *App) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	s.log.Info("Manual bucket refresh requested")
	if err := s.manager.RefreshBuckets(r.Context()); err != nil {
		s.log.Error("Manual bucket refresh failed", slog.String("error", err.Error()))
		s.writeJSON(w, http.StatusInternalServerError, dto.RefreshResponse{
			Status: "failed",
			Error:  err.Error(),
		})
		return
	}
	s.mu.Lock()
	s.lastRefresh = time.Now()
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, dto.RefreshResponse{Status: "completed"})
}
