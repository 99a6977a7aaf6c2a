// Package health provides periodic health checks for the store and cache.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/studydash/studydash/internal/infra/metrics"
)

// DefaultInterval is how often checks run.
const DefaultInterval = 60 * time.Second

// checkTimeout bounds a single check.
const checkTimeout = 5 * time.Second

// Pinger is anything with a connectivity probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Reconnecter is a Pinger that can re-establish its connection.
type Reconnecter interface {
	Reconnect(ctx context.Context) error
}

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic health checks.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
	log      *zap.Logger
}

// NewChecker creates a checker that pings the store and, when non-nil, the cache.
// A cache that implements Reconnecter is re-dialed after a failed check.
func NewChecker(store, cache Pinger, log *zap.Logger) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	checks := []Check{{Name: "store", CheckFn: store.Ping}}
	if cache != nil {
		check := Check{Name: "cache", CheckFn: cache.Ping}
		if r, ok := cache.(Reconnecter); ok {
			check.RecoverFn = r.Reconnect
		}
		checks = append(checks, check)
	}
	return &Checker{
		interval: DefaultInterval,
		checks:   checks,
		log:      log.Named("health"),
	}
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	c.RunOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce runs every check and stores the results.
func (c *Checker) RunOnce(ctx context.Context) {
	c.mu.RLock()
	checks := make([]Check, len(c.checks))
	copy(checks, c.checks)
	c.mu.RUnlock()

	statuses := make([]Status, len(checks))
	for i, check := range checks {
		s := Status{Name: check.Name, CheckedAt: time.Now().UTC()}

		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := check.CheckFn(cctx)
		cancel()

		if err != nil {
			s.Error = err.Error()
			c.log.Warn("health check failed", zap.String("check", check.Name), zap.Error(err))
			if check.RecoverFn != nil {
				if rerr := check.RecoverFn(ctx); rerr != nil {
					c.log.Warn("recovery failed", zap.String("check", check.Name), zap.Error(rerr))
				}
			}
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(0)
		} else {
			s.Healthy = true
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(1)
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}
