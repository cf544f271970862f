// Package normalize validates raw extraction candidates and maps their
// free-text titles onto the seniority taxonomy. Bad records are reported,
// never fatal.
package normalize

import (
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/org-intel/internal/match"
	"github.com/sells-group/org-intel/internal/model"
)

// ErrInvalidCandidate marks a candidate the normalizer refused.
var ErrInvalidCandidate = eris.New("normalize: invalid candidate")

// sourceReliability weights extraction confidence by how trustworthy the
// source class is: regulatory filings beat structured pages beat press text.
var sourceReliability = map[model.SourceType]float64{
	model.SourceFiling:  1.0,
	model.SourceWebsite: 0.8,
	model.SourceNews:    0.6,
}

// reliabilityWeight is the share of the final confidence contributed by
// the source class; the remainder comes from the extractor's own score.
const reliabilityWeight = 0.6

// Normalizer turns raw candidates into normalized ones.
type Normalizer struct {
	taxonomy *Taxonomy
}

// New creates a Normalizer over the given taxonomy.
func New(taxonomy *Taxonomy) *Normalizer {
	return &Normalizer{taxonomy: taxonomy}
}

// Result is the outcome of normalizing one batch.
type Result struct {
	Accepted []model.NormalizedCandidate
	Rejected []model.Rejection
}

// Normalize validates and normalizes a batch of candidates for one
// company. Malformed records land in Rejected; the batch never fails.
func (n *Normalizer) Normalize(companyID string, candidates []model.Candidate) Result {
	log := zap.L().With(zap.String("component", "normalizer"), zap.String("company_id", companyID))

	var res Result
	for _, c := range candidates {
		nc, err := n.normalizeOne(c)
		if err != nil {
			log.Debug("candidate rejected",
				zap.String("name", c.FullName),
				zap.String("reason", err.Error()),
			)
			res.Rejected = append(res.Rejected, model.Rejection{Candidate: c, Reason: err.Error()})
			continue
		}
		res.Accepted = append(res.Accepted, nc)
	}

	if len(res.Rejected) > 0 {
		log.Info("normalization complete with rejections",
			zap.Int("accepted", len(res.Accepted)),
			zap.Int("rejected", len(res.Rejected)),
		)
	}
	return res
}

func (n *Normalizer) normalizeOne(c model.Candidate) (model.NormalizedCandidate, error) {
	name := strings.TrimSpace(c.FullName)
	if name == "" {
		return model.NormalizedCandidate{}, eris.Wrap(ErrInvalidCandidate, "empty name")
	}
	if strings.TrimSpace(c.RawTitle) == "" {
		return model.NormalizedCandidate{}, eris.Wrap(ErrInvalidCandidate, "empty title")
	}

	normalized := match.PersonName(name)
	tokens := strings.Fields(normalized)
	if len(tokens) < 2 {
		return model.NormalizedCandidate{}, eris.Wrap(ErrInvalidCandidate, "single token name")
	}
	if allDigits(normalized) {
		return model.NormalizedCandidate{}, eris.Wrap(ErrInvalidCandidate, "name is all digits")
	}

	reliability, ok := sourceReliability[c.SourceType]
	if !ok {
		return model.NormalizedCandidate{}, eris.Wrap(ErrInvalidCandidate, "unknown source type")
	}

	tm := n.taxonomy.Lookup(c.RawTitle)

	observed := time.Now().UTC()
	if c.ObservedAt != nil {
		observed = c.ObservedAt.UTC()
	}

	return model.NormalizedCandidate{
		FullName:       name,
		NormalizedName: normalized,
		RawTitle:       strings.TrimSpace(c.RawTitle),
		Title:          tm.Title,
		TitleLevel:     tm.Level,
		SeniorityRank:  tm.Rank,
		Department:     strings.TrimSpace(c.Department),
		Bio:            strings.TrimSpace(c.Bio),
		ProfileURL:     strings.TrimSpace(c.ProfileURL),
		ReportsToHint:  strings.TrimSpace(c.ReportsToHint),
		SourceType:     c.SourceType,
		Confidence:     clamp01(reliability*reliabilityWeight + c.SourceConfidence*(1-reliabilityWeight)),
		IsBoard:        tm.Board,
		IsInterim:      tm.Interim,
		ObservedAt:     observed,
	}, nil
}

func allDigits(s string) bool {
	seen := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		if !unicode.IsDigit(r) {
			return false
		}
		seen = true
	}
	return seen
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
