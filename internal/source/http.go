// Package source provides the concrete candidate feeds behind the
// orchestrator's Source interface: a client for the external extraction
// service and a local-file source for pre-extracted batches.
package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/org-intel/internal/model"
	"github.com/sells-group/org-intel/internal/orchestrator"
	"github.com/sells-group/org-intel/internal/resilience"
)

// HTTPSource fetches candidates from the external extraction service.
// One instance serves one source type; instances pointing at the same
// host share the orchestrator's per-domain token bucket via Domain().
type HTTPSource struct {
	client    *http.Client
	baseURL   string
	domain    string
	userAgent string
	typ       model.SourceType
}

// NewHTTP creates an extraction-service source for one source type.
func NewHTTP(baseURL, userAgent string, typ model.SourceType) (*HTTPSource, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, eris.Errorf("source: invalid extractor url %q", baseURL)
	}
	if userAgent == "" {
		userAgent = "org-intel/1.0"
	}
	return &HTTPSource{
		client:    &http.Client{Timeout: 60 * time.Second},
		baseURL:   strings.TrimRight(baseURL, "/"),
		domain:    u.Host,
		userAgent: userAgent,
		typ:       typ,
	}, nil
}

// Type implements orchestrator.Source.
func (s *HTTPSource) Type() model.SourceType { return s.typ }

// Domain implements orchestrator.Source.
func (s *HTTPSource) Domain() string { return s.domain }

// Collect calls GET /extract on the extraction service. Throttling and
// server-side failures come back as transient errors so the engine's
// retry loop can take over.
func (s *HTTPSource) Collect(ctx context.Context, company orchestrator.CompanyRef) ([]model.Candidate, error) {
	q := url.Values{}
	q.Set("company_id", company.ID)
	if company.Name != "" {
		q.Set("company_name", company.Name)
	}
	q.Set("source_type", string(s.typ))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/extract?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "source: create request")
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "source: extractor request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("source: extractor returned %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var cands []model.Candidate
	if err := json.NewDecoder(resp.Body).Decode(&cands); err != nil {
		return nil, eris.Wrap(err, "source: decode candidates")
	}
	return cands, nil
}
