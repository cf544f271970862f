package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/sells-group/org-intel/internal/config"
)

func TestAdaptiveLimiter_SuccessRampsUpToCap(t *testing.T) {
	t.Parallel()

	lim := NewAdaptiveLimiter(10, 4)
	for range 20 {
		lim.OnSuccess()
	}
	assert.Equal(t, rate.Limit(20), lim.Limit())
}

func TestAdaptiveLimiter_RateLimitBacksOffToFloor(t *testing.T) {
	t.Parallel()

	lim := NewAdaptiveLimiter(10, 4)
	for range 20 {
		lim.OnRateLimit()
	}
	assert.Equal(t, rate.Limit(2.5), lim.Limit())
}

func TestAdaptiveLimiter_RecoversAfterBackoff(t *testing.T) {
	t.Parallel()

	lim := NewAdaptiveLimiter(10, 4)
	lim.OnRateLimit()
	assert.Equal(t, rate.Limit(5), lim.Limit())
	lim.OnSuccess()
	assert.InDelta(t, 6, float64(lim.Limit()), 1e-9)
}

func TestLimiters_SharedPerDomain(t *testing.T) {
	t.Parallel()

	ls := NewLimiters(config.RateLimitConfig{DefaultRPS: 3, DefaultBurst: 2})
	a := ls.For("sec.gov")
	b := ls.For("sec.gov")
	assert.Same(t, a, b)

	c := ls.For("example.com")
	assert.NotSame(t, a, c)
	assert.Equal(t, rate.Limit(3), c.Limit())
}

func TestLimiters_DomainOverride(t *testing.T) {
	t.Parallel()

	ls := NewLimiters(config.RateLimitConfig{
		DefaultRPS:   3,
		DefaultBurst: 2,
		Domains:      map[string]float64{"sec.gov": 0.5},
	})
	assert.Equal(t, rate.Limit(0.5), ls.For("sec.gov").Limit())
	assert.Equal(t, rate.Limit(3), ls.For("other.com").Limit())
}
