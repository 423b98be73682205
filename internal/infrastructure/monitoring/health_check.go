package monitoring

import (
	"context"
	"sync"
	"time"
)

// CheckFunc probes one dependency. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// HealthChecker aggregates dependency probes for the health and readiness
// endpoints. Checks run on demand, each under its own timeout, so one slow
// dependency cannot wedge the endpoint.
type HealthChecker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HealthChecker{
		checks:  make(map[string]CheckFunc),
		timeout: timeout,
	}
}

// AddCheck registers a named probe. Registering the same name again replaces
// the previous probe.
func (h *HealthChecker) AddCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// CheckAll runs every registered probe and reports the combined status.
func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	snapshot := make(map[string]CheckFunc, len(h.checks))
	for name, check := range h.checks {
		snapshot[name] = check
	}
	h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]string, len(snapshot)),
	}

	for name, check := range snapshot {
		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := check(checkCtx)
		cancel()

		if err != nil {
			status.Status = "unhealthy"
			status.Checks[name] = err.Error()
		} else {
			status.Checks[name] = "healthy"
		}
	}
	return status
}

// Healthy reports whether every probe currently passes.
func (h *HealthChecker) Healthy(ctx context.Context) bool {
	return h.CheckAll(ctx).Status == "healthy"
}
