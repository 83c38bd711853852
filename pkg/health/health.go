// Package health provides storage backend health monitoring and status tracking.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sgaunet/aspectidx/pkg/backend"
)

// Status represents the current health status.
type Status string

const (
	// StatusHealthy indicates the backend is reachable.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the backend is not reachable.
	StatusUnhealthy Status = "unhealthy"
	// StatusUnknown indicates the health status hasn't been determined yet.
	StatusUnknown Status = "unknown"
)

// BackendHealth tracks storage backend reachability.
type BackendHealth struct {
	mu                  sync.RWMutex
	backend             backend.Backend
	probePrefix         string
	status              Status
	lastCheck           time.Time
	lastError           error
	consecutiveFailures int
	logger              *slog.Logger
	checkInterval       time.Duration
	cancel              context.CancelFunc
}

// Info contains current health information.
type Info struct {
	Status              Status    `json:"status"`
	LastCheck           time.Time `json:"last_check"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	IsConnected         bool      `json:"is_connected"`
}

// NewBackendHealth creates a new backend health monitor. The probe lists the
// given prefix, so a prefix with few keys keeps the probe cheap.
func NewBackendHealth(b backend.Backend, probePrefix string, logger *slog.Logger) *BackendHealth {
	const defaultCheckInterval = 30 * time.Second
	return &BackendHealth{
		backend:       b,
		probePrefix:   probePrefix,
		status:        StatusUnknown,
		logger:        logger,
		checkInterval: defaultCheckInterval,
	}
}

// Start begins health monitoring in the background.
func (h *BackendHealth) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel

	// Perform initial health check
	h.checkHealth(ctx)

	// Start periodic health checks
	go h.healthCheckLoop(ctx)
}

// Stop stops the health monitoring.
func (h *BackendHealth) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
}

// GetHealthInfo returns current health information.
func (h *BackendHealth) GetHealthInfo() Info {
	h.mu.RLock()
	defer h.mu.RUnlock()

	errorMsg := ""
	if h.lastError != nil {
		errorMsg = h.lastError.Error()
	}

	return Info{
		Status:              h.status,
		LastCheck:           h.lastCheck,
		LastError:           errorMsg,
		ConsecutiveFailures: h.consecutiveFailures,
		IsConnected:         h.status == StatusHealthy,
	}
}

// IsHealthy returns true if the backend is currently reachable.
func (h *BackendHealth) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status == StatusHealthy
}

// healthCheckLoop runs periodic health checks.
func (h *BackendHealth) healthCheckLoop(ctx context.Context) {
	ticker := time.NewTicker(h.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.checkHealth(ctx)
		}
	}
}

// checkHealth performs a reachability probe against the backend.
func (h *BackendHealth) checkHealth(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastCheck = time.Now()

	const probeTimeout = 5 * time.Second
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	_, err := h.backend.ListByPrefix(probeCtx, h.probePrefix)
	if err != nil {
		h.status = StatusUnhealthy
		h.lastError = err
		h.consecutiveFailures++

		h.logger.Debug("Backend health check failed",
			slog.String("error", err.Error()),
			slog.Int("consecutive_failures", h.consecutiveFailures))
	} else {
		wasUnhealthy := h.status == StatusUnhealthy
		h.status = StatusHealthy
		h.lastError = nil
		h.consecutiveFailures = 0

		if wasUnhealthy {
			h.logger.Info("Backend health restored")
		}
	}
}
