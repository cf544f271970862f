package orchestrator

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/org-intel/internal/config"
)

// Tuning for the adaptive bucket. The ceiling and floor are fixed
// multiples of the configured rate so a misbehaving upstream can never
// push a domain outside its sanctioned band.
const (
	rampFactor    = 1.2
	backoffFactor = 0.5
	ceilingFactor = 2.0
	floorFactor   = 0.25
)

// AdaptiveLimiter is a per-domain token bucket whose refill rate drifts
// with upstream behavior: clean responses widen it toward the ceiling,
// a throttling response snaps it down toward the floor.
type AdaptiveLimiter struct {
	bucket *rate.Limiter

	mu      sync.Mutex
	current rate.Limit
	ceiling rate.Limit
	floor   rate.Limit
}

// NewAdaptiveLimiter creates a limiter centered on the given rate.
func NewAdaptiveLimiter(rps rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		bucket:  rate.NewLimiter(rps, burst),
		current: rps,
		ceiling: rps * ceilingFactor,
		floor:   rps * floorFactor,
	}
}

// Wait blocks until the bucket allows an event or ctx ends.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.bucket.Wait(ctx)
}

// retune scales the current rate, clamps it to the band, and applies it.
func (a *AdaptiveLimiter) retune(factor float64) rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.current * rate.Limit(factor)
	if next > a.ceiling {
		next = a.ceiling
	}
	if next < a.floor {
		next = a.floor
	}
	a.current = next
	a.bucket.SetLimit(next)
	return next
}

// OnSuccess widens the bucket after a clean upstream response.
func (a *AdaptiveLimiter) OnSuccess() {
	a.retune(rampFactor)
}

// OnRateLimit narrows the bucket after the upstream throttled us.
func (a *AdaptiveLimiter) OnRateLimit() {
	next := a.retune(backoffFactor)
	zap.L().Warn("source rate limited, narrowing bucket",
		zap.Float64("rps", float64(next)),
	)
}

// Limit returns the current refill rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// newDomainLimiter sizes a limiter for one domain, honoring a per-domain
// rate override from config.
func newDomainLimiter(cfg config.RateLimitConfig, domain string) *AdaptiveLimiter {
	rps := cfg.DefaultRPS
	if override, ok := cfg.Domains[domain]; ok && override > 0 {
		rps = override
	}
	return NewAdaptiveLimiter(rate.Limit(rps), cfg.DefaultBurst)
}

// Limiters hands out one AdaptiveLimiter per upstream domain. The map
// is shared by every job in the process, so concurrent jobs hitting the
// same host draw from the same bucket.
type Limiters struct {
	mu      sync.Mutex
	cfg     config.RateLimitConfig
	domains map[string]*AdaptiveLimiter
}

// NewLimiters creates a limiter registry from config.
func NewLimiters(cfg config.RateLimitConfig) *Limiters {
	if cfg.DefaultRPS <= 0 {
		cfg.DefaultRPS = 2.0
	}
	if cfg.DefaultBurst <= 0 {
		cfg.DefaultBurst = 4
	}
	return &Limiters{
		cfg:     cfg,
		domains: make(map[string]*AdaptiveLimiter),
	}
}

// For returns the limiter for a domain, creating it on first use.
func (l *Limiters) For(domain string) *AdaptiveLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.domains[domain]
	if !ok {
		lim = newDomainLimiter(l.cfg, domain)
		l.domains[domain] = lim
	}
	return lim
}
