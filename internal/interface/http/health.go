package http

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH CHECKS
// ══════════════════════════════════════════════════════════════════════════════

// HealthChecker reports the health of the service's dependencies.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// HealthCheckFunc returns an error when a dependency is unhealthy.
type HealthCheckFunc func(ctx context.Context) error

// Pinger is anything with a Ping, such as the database or Redis cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger.
func PingCheck(p Pinger) HealthCheckFunc {
	return p.Ping
}

// HealthStatus represents the overall health status of the service.
type HealthStatus struct {
	Healthy   bool                   `json:"healthy"`
	Message   string                 `json:"message,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// CheckResult represents the result of a single health check.
type CheckResult struct {
	Healthy  bool   `json:"healthy"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// CompositeHealthChecker runs named checks concurrently.
type CompositeHealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]HealthCheckFunc
	startTime time.Time
	version   string
	timeout   time.Duration
}

// NewCompositeHealthChecker creates a new composite health checker.
func NewCompositeHealthChecker(version string) *CompositeHealthChecker {
	return &CompositeHealthChecker{
		checks:    make(map[string]HealthCheckFunc),
		startTime: time.Now(),
		version:   version,
		timeout:   3 * time.Second,
	}
}

// AddCheck adds a named health check function.
func (c *CompositeHealthChecker) AddCheck(name string, check HealthCheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Check runs every check with a per-check timeout.
func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := make(map[string]HealthCheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	status := HealthStatus{
		Healthy:   true,
		Checks:    make(map[string]CheckResult, len(checks)),
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		bad []string
	)
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check HealthCheckFunc) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			start := time.Now()
			err := check(checkCtx)
			res := CheckResult{
				Healthy:  err == nil,
				Message:  "OK",
				Duration: time.Since(start).Round(time.Millisecond).String(),
			}
			if err != nil {
				res.Message = err.Error()
			}

			mu.Lock()
			status.Checks[name] = res
			if err != nil {
				bad = append(bad, name)
			}
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	if len(bad) > 0 {
		sort.Strings(bad)
		status.Healthy = false
		status.Message = "failing checks: " + strings.Join(bad, ", ")
	} else {
		status.Message = "all checks passed"
	}
	return status
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	status := s.deps.Health.Check(c.UserContext())
	code := fiber.StatusOK
	if !status.Healthy {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(status)
}
