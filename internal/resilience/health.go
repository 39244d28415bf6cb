package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Name      string        `json:"name"`
	Status    HealthStatus  `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ns"`
	CheckedAt time.Time     `json:"checked_at"`
}

// HealthCheck reports the health of one component.
type HealthCheck func(ctx context.Context) ComponentHealth

// SystemHealth is the combined result of every registered check.
type SystemHealth struct {
	Status     HealthStatus      `json:"status"`
	Components []ComponentHealth `json:"components"`
}

// HealthChecker runs registered component checks on demand.
type HealthChecker struct {
	mu      sync.RWMutex
	names   []string
	checks  map[string]HealthCheck
	timeout time.Duration
}

// NewHealthChecker creates a checker bounding each run by timeout.
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthChecker{
		checks:  make(map[string]HealthCheck),
		timeout: timeout,
	}
}

// RegisterComponent adds or replaces a named check.
func (h *HealthChecker) RegisterComponent(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.checks[name]; !ok {
		h.names = append(h.names, name)
	}
	h.checks[name] = check
}

// Check runs every check concurrently. Components are reported in
// registration order; the overall status is the worst component status.
func (h *HealthChecker) Check(ctx context.Context) SystemHealth {
	h.mu.RLock()
	names := append([]string(nil), h.names...)
	checks := make([]HealthCheck, len(names))
	for i, n := range names {
		checks[i] = h.checks[n]
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make([]ComponentHealth, len(names))
	var wg sync.WaitGroup
	for i := range checks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = ComponentHealth{
						Status:  HealthStatusUnhealthy,
						Message: fmt.Sprintf("check panicked: %v", r),
					}
				}
				results[i].Name = names[i]
				results[i].CheckedAt = time.Now()
			}()
			results[i] = checks[i](ctx)
		}(i)
	}
	wg.Wait()

	sys := SystemHealth{Status: HealthStatusHealthy, Components: results}
	for _, c := range results {
		switch c.Status {
		case HealthStatusUnhealthy:
			sys.Status = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if sys.Status == HealthStatusHealthy {
				sys.Status = HealthStatusDegraded
			}
		}
	}
	return sys
}

// PingCheck reports a component unhealthy when ping fails and degraded when
// it is slower than slow.
func PingCheck(ping func(ctx context.Context) error, slow time.Duration) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		var health ComponentHealth

		start := time.Now()
		err := ping(ctx)
		health.Latency = time.Since(start)

		switch {
		case err != nil:
			health.Status = HealthStatusUnhealthy
			health.Message = fmt.Sprintf("ping failed: %v", err)
		case slow > 0 && health.Latency > slow:
			health.Status = HealthStatusDegraded
			health.Message = fmt.Sprintf("slow: %v", health.Latency.Round(time.Millisecond))
		default:
			health.Status = HealthStatusHealthy
		}
		return health
	}
}

// BreakerCheck reports a component degraded while its breaker is not closed.
func BreakerCheck(b *Breaker) HealthCheck {
	return func(context.Context) ComponentHealth {
		state := b.State()
		if state == "closed" {
			return ComponentHealth{Status: HealthStatusHealthy}
		}
		return ComponentHealth{
			Status:  HealthStatusDegraded,
			Message: "circuit " + state,
		}
	}
}
