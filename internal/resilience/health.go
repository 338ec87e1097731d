package resilience

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusDegraded  HealthStatus = "DEGRADED"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Name    string        `json:"name"`
	Status  HealthStatus  `json:"status"`
	Message string        `json:"message,omitempty"`
	Latency time.Duration `json:"latency_ns"`
}

// HealthCheck checks one component.
type HealthCheck func(ctx context.Context) ComponentHealth

// Report is the result of checking every component.
type Report struct {
	Status     HealthStatus      `json:"status"`
	Uptime     string            `json:"uptime"`
	Goroutines int               `json:"goroutines"`
	Components []ComponentHealth `json:"components"`
	CheckedAt  time.Time         `json:"checked_at"`
}

// Checker runs registered health checks on demand.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]HealthCheck
	started time.Time
	timeout time.Duration
}

// NewChecker creates a checker whose checks share timeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		checks:  make(map[string]HealthCheck),
		started: time.Now(),
		timeout: timeout,
	}
}

// Register adds or replaces the check for name.
func (c *Checker) Register(name string, check HealthCheck) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Check runs all checks concurrently. A panicking check is reported unhealthy.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]HealthCheck, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var wg sync.WaitGroup
	results := make(chan ComponentHealth, len(checks))
	for name, check := range checks {
		wg.Add(1)
		go func(n string, hc HealthCheck) {
			defer wg.Done()
			start := time.Now()
			h := runCheck(ctx, n, hc)
			h.Name = n
			h.Latency = time.Since(start)
			results <- h
		}(name, check)
	}
	wg.Wait()
	close(results)

	report := Report{
		Status:     HealthStatusHealthy,
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		CheckedAt:  time.Now().UTC(),
	}
	for h := range results {
		report.Components = append(report.Components, h)
		switch h.Status {
		case HealthStatusUnhealthy:
			report.Status = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if report.Status == HealthStatusHealthy {
				report.Status = HealthStatusDegraded
			}
		}
	}
	sort.Slice(report.Components, func(i, j int) bool {
		return report.Components[i].Name < report.Components[j].Name
	})
	return report
}

func runCheck(ctx context.Context, name string, hc HealthCheck) (h ComponentHealth) {
	defer func() {
		if r := recover(); r != nil {
			h = ComponentHealth{Status: HealthStatusUnhealthy, Message: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return hc(ctx)
}

// PingCheck adapts a ping function into a health check.
func PingCheck(ping func(ctx context.Context) error) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: HealthStatusUnhealthy, Message: err.Error()}
		}
		return ComponentHealth{Status: HealthStatusHealthy}
	}
}

// BreakerCheck reports an open breaker as degraded.
func BreakerCheck(b *Breaker) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		s := b.Stats()
		switch s.State {
		case CircuitOpen:
			return ComponentHealth{Status: HealthStatusDegraded, Message: "circuit open: " + s.LastError}
		case CircuitHalfOpen:
			return ComponentHealth{Status: HealthStatusDegraded, Message: "probing after failures"}
		default:
			return ComponentHealth{Status: HealthStatusHealthy}
		}
	}
}
