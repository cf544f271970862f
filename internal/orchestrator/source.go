package orchestrator

import (
	"context"

	"github.com/sells-group/org-intel/internal/model"
)

// CompanyRef identifies a collection target. Name is optional; when set
// it sharpens the resolver's fuzzy company guard.
type CompanyRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Source fetches and extracts raw person candidates for one company.
// Implementations live outside the engine (SEC filings, website
// scraping, press feeds); the engine owns retries, rate limiting and
// timeouts, so Collect should fail fast and wrap throttling errors with
// resilience.NewTransientError.
type Source interface {
	// Type labels the candidates this source produces.
	Type() model.SourceType

	// Domain is the upstream host the source talks to. Sources sharing
	// a domain share one token bucket across all jobs.
	Domain() string

	// Collect returns the raw candidates observed for the company.
	Collect(ctx context.Context, company CompanyRef) ([]model.Candidate, error)
}
