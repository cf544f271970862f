// Package resolve merges normalized extraction candidates into the
// canonical person/role graph. It is the only writer of that graph;
// resolution for a single company is serialized so concurrent source
// tasks cannot race each other into duplicate persons.
package resolve

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/org-intel/internal/match"
	"github.com/sells-group/org-intel/internal/model"
)

// Sentinel errors for the resolution taxonomy. Both are recoverable:
// an ambiguous match degrades to create-new, a refused merge leaves the
// records independent.
var (
	ErrAmbiguousMatch = eris.New("resolve: ambiguous match")
	ErrCycleDetected  = eris.New("resolve: canonical merge would create a cycle")
)

// Store is the slice of persistence the resolver needs.
type Store interface {
	GetPerson(ctx context.Context, id string) (*model.Person, error)
	GetPersonByProfileURL(ctx context.Context, url string) (*model.Person, error)
	ListRoster(ctx context.Context, companyID string, currentOnly bool) ([]model.RosterEntry, error)
	CreatePerson(ctx context.Context, p *model.Person) error
	UpdatePerson(ctx context.Context, p *model.Person) error
	CreateRole(ctx context.Context, r *model.Role) error
	UpdateRole(ctx context.Context, r *model.Role) error
	ReassignRoles(ctx context.Context, fromPersonID, toPersonID string) error
}

// Config holds the matching thresholds.
type Config struct {
	// NameSimilarity is the minimum fuzzy name score for pass 3.
	NameSimilarity float64
	// CompanySimilarity guards pass 3 against unrelated-company collisions.
	CompanySimilarity float64
	// AmbiguousConfidence is assigned to persons created because a fuzzy
	// tie could not be broken.
	AmbiguousConfidence float64
}

// DefaultConfig returns the standard matching thresholds.
func DefaultConfig() Config {
	return Config{
		NameSimilarity:      0.85,
		CompanySimilarity:   0.85,
		AmbiguousConfidence: 0.4,
	}
}

// Resolver matches candidates against the existing graph.
type Resolver struct {
	store Store
	cfg   Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Resolver.
func New(store Store, cfg Config) *Resolver {
	if cfg.NameSimilarity == 0 {
		cfg = DefaultConfig()
	}
	return &Resolver{store: store, cfg: cfg, locks: make(map[string]*sync.Mutex)}
}

// companyLock returns the mutex serializing resolution for one company.
func (r *Resolver) companyLock(companyID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[companyID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[companyID] = l
	}
	return l
}

// Resolve merges a batch of normalized candidates for one company and
// returns the roster delta. Per-record problems are logged and skipped;
// only persistence failures abort the pass.
func (r *Resolver) Resolve(ctx context.Context, companyID, companyName string, candidates []model.NormalizedCandidate) (model.RosterDelta, error) {
	lock := r.companyLock(companyID)
	lock.Lock()
	defer lock.Unlock()

	log := zap.L().With(zap.String("component", "resolver"), zap.String("company_id", companyID))

	roster, err := r.store.ListRoster(ctx, companyID, false)
	if err != nil {
		return model.RosterDelta{}, eris.Wrap(err, "resolve: load roster")
	}

	var delta model.RosterDelta
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return delta, eris.Wrap(err, "resolve: cancelled")
		}

		outcome, err := r.resolveOne(ctx, companyID, companyName, cand, &roster, log)
		if err != nil {
			return delta, err
		}
		delta.Append(outcome)
	}

	log.Info("resolution pass complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("created", len(delta.Created)),
		zap.Int("updated", len(delta.Updated)),
		zap.Int("unchanged", len(delta.Unchanged)),
		zap.Int("merges", len(delta.Merges)),
	)
	return delta, nil
}

// matchResult names the person a candidate resolved to and how.
type matchResult struct {
	person     *model.Person
	matchType  string
	confidence float64
}

func (r *Resolver) resolveOne(ctx context.Context, companyID, companyName string, cand model.NormalizedCandidate, roster *[]model.RosterEntry, log *zap.Logger) (model.RosterDelta, error) {
	var delta model.RosterDelta

	matched, secondary, err := r.findMatch(ctx, companyID, companyName, cand, *roster)
	if err != nil {
		if eris.Is(err, ErrAmbiguousMatch) {
			// Guessing between equally likely persons is worse than a
			// duplicate, which a later deterministic signal can merge.
			log.Warn("ambiguous fuzzy match, creating new person",
				zap.String("name", cand.NormalizedName),
			)
			created, createErr := r.createPersonAndRole(ctx, companyID, cand, r.cfg.AmbiguousConfidence)
			if createErr != nil {
				return delta, createErr
			}
			*roster = append(*roster, created)
			delta.Created = append(delta.Created, created.Role)
			return delta, nil
		}
		return delta, err
	}

	if matched == nil {
		created, createErr := r.createPersonAndRole(ctx, companyID, cand, cand.Confidence)
		if createErr != nil {
			return delta, createErr
		}
		*roster = append(*roster, created)
		delta.Created = append(delta.Created, created.Role)
		log.Debug("created person",
			zap.String("name", cand.NormalizedName),
			zap.String("person_id", created.Person.ID),
		)
		return delta, nil
	}

	// A deterministic profile-URL hit alongside a distinct name match
	// means two records describe the same human: fold the name match
	// into the URL-anchored canonical record.
	if secondary != nil && secondary.ID != matched.person.ID {
		rec, mergeErr := r.mergePersons(ctx, matched, secondary)
		if mergeErr != nil {
			if eris.Is(mergeErr, ErrCycleDetected) {
				log.Warn("merge refused: canonical cycle",
					zap.String("winner_id", matched.person.ID),
					zap.String("loser_id", secondary.ID),
				)
			} else {
				return delta, mergeErr
			}
		} else {
			delta.Merges = append(delta.Merges, rec)
			syncRosterPerson(roster, secondary)
			reindexRoster(roster, secondary.ID, matched.person.ID)
		}
	}

	roleDelta, err := r.applyCandidate(ctx, companyID, matched, cand, roster)
	if err != nil {
		return delta, err
	}
	delta.Append(roleDelta)
	return delta, nil
}

// findMatch runs the three-pass cascade. It returns the matched person
// (nil when no pass matched) and, when a deterministic URL match and a
// name-based match point at different persons, the secondary person to
// be merged.
func (r *Resolver) findMatch(ctx context.Context, companyID, companyName string, cand model.NormalizedCandidate, roster []model.RosterEntry) (*matchResult, *model.Person, error) {
	// Pass 1: external profile URL (deterministic, confidence 1.0).
	var urlMatch *model.Person
	if cand.ProfileURL != "" {
		p, err := r.store.GetPersonByProfileURL(ctx, cand.ProfileURL)
		if err != nil {
			return nil, nil, eris.Wrap(err, "resolve: lookup by profile url")
		}
		if p != nil {
			canonical, derefErr := r.Dereference(ctx, p)
			if derefErr != nil {
				return nil, nil, derefErr
			}
			urlMatch = canonical
		}
	}

	// Pass 2: exact normalized name among current roles.
	var nameMatch *model.Person
	for i := range roster {
		if !roster[i].Role.IsCurrent {
			continue
		}
		if roster[i].Person.NormalizedName == cand.NormalizedName {
			p := roster[i].Person
			nameMatch = &p
			break
		}
	}

	// Pass 3: fuzzy name + company guard, only when nothing exact hit.
	if urlMatch == nil && nameMatch == nil {
		fuzzy, err := r.fuzzyMatch(companyName, cand, roster)
		if err != nil {
			return nil, nil, err
		}
		if fuzzy == nil {
			return nil, nil, nil
		}
		return fuzzy, nil, nil
	}

	if urlMatch != nil {
		res := &matchResult{person: urlMatch, matchType: "profile_url", confidence: 1.0}
		if nameMatch != nil && nameMatch.ID != urlMatch.ID && !nameMatch.IsMerged() {
			return res, nameMatch, nil
		}
		return res, nil, nil
	}
	return &matchResult{person: nameMatch, matchType: "exact_name", confidence: 0.95}, nil, nil
}

// fuzzyMatch scores the candidate against every distinct person on the
// roster. Ties on combined score break by most recent observation; an
// exact tie there too is ambiguous.
func (r *Resolver) fuzzyMatch(companyName string, cand model.NormalizedCandidate, roster []model.RosterEntry) (*matchResult, error) {
	normalizedCompany := match.CompanyName(companyName)

	type scored struct {
		person   model.Person
		combined float64
	}
	var best *scored
	var tied bool

	seen := make(map[string]bool, len(roster))
	for i := range roster {
		p := roster[i].Person
		if seen[p.ID] || p.IsMerged() {
			continue
		}
		seen[p.ID] = true

		nameSim := match.NameSimilarity(p.NormalizedName, cand.NormalizedName)
		if nameSim < r.cfg.NameSimilarity {
			continue
		}

		rosterCompany := match.CompanyName(roster[i].CompanyName)
		companySim := 1.0
		if rosterCompany != "" && normalizedCompany != "" {
			companySim = match.NameSimilarity(rosterCompany, normalizedCompany)
		}
		if companySim < r.cfg.CompanySimilarity {
			continue
		}

		combined := (nameSim + companySim) / 2
		switch {
		case best == nil || combined > best.combined:
			best = &scored{person: p, combined: combined}
			tied = false
		case combined == best.combined && p.ID != best.person.ID:
			if p.LastSeenAt.After(best.person.LastSeenAt) {
				best = &scored{person: p, combined: combined}
				tied = false
			} else if p.LastSeenAt.Equal(best.person.LastSeenAt) {
				tied = true
			}
		}
	}

	if best == nil {
		return nil, nil
	}
	if tied {
		return nil, eris.Wrapf(ErrAmbiguousMatch, "candidate %q", cand.NormalizedName)
	}
	return &matchResult{person: &best.person, matchType: "fuzzy_name", confidence: best.combined}, nil
}

// createPersonAndRole inserts a new person with a current role.
func (r *Resolver) createPersonAndRole(ctx context.Context, companyID string, cand model.NormalizedCandidate, confidence float64) (model.RosterEntry, error) {
	now := time.Now().UTC()

	person := model.Person{
		ID:             uuid.New().String(),
		FullName:       cand.FullName,
		NormalizedName: cand.NormalizedName,
		ProfileURL:     cand.ProfileURL,
		Bio:            cand.Bio,
		Sources:        []string{string(cand.SourceType)},
		Confidence:     confidence,
		FirstSeenAt:    cand.ObservedAt,
		LastSeenAt:     cand.ObservedAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.store.CreatePerson(ctx, &person); err != nil {
		return model.RosterEntry{}, eris.Wrap(err, "resolve: create person")
	}

	role := r.newRole(companyID, person.ID, cand)
	if err := r.store.CreateRole(ctx, &role); err != nil {
		return model.RosterEntry{}, eris.Wrap(err, "resolve: create role")
	}

	return model.RosterEntry{Person: person, Role: role}, nil
}

func (r *Resolver) newRole(companyID, personID string, cand model.NormalizedCandidate) model.Role {
	now := time.Now().UTC()
	observed := cand.ObservedAt
	return model.Role{
		ID:            uuid.New().String(),
		CompanyID:     companyID,
		PersonID:      personID,
		RawTitle:      cand.RawTitle,
		Title:         cand.Title,
		TitleLevel:    cand.TitleLevel,
		SeniorityRank: cand.SeniorityRank,
		Department:    cand.Department,
		ReportsTo:     cand.ReportsToHint,
		IsBoard:       cand.IsBoard,
		IsInterim:     cand.IsInterim,
		IsCurrent:     true,
		StartDate:     &observed,
		Sources:       []string{string(cand.SourceType)},
		Confidence:    cand.Confidence,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// applyCandidate updates the matched person and their role set. Mutable
// fields move only when the new source is at least as confident as the
// stored value; provenance accumulates from both sources.
func (r *Resolver) applyCandidate(ctx context.Context, companyID string, m *matchResult, cand model.NormalizedCandidate, roster *[]model.RosterEntry) (model.RosterDelta, error) {
	var delta model.RosterDelta
	person := m.person

	personChanged := false
	if cand.Confidence >= person.Confidence {
		if cand.Bio != "" && cand.Bio != person.Bio {
			person.Bio = cand.Bio
			personChanged = true
		}
		if person.Confidence != cand.Confidence {
			person.Confidence = cand.Confidence
			personChanged = true
		}
	}
	if cand.ProfileURL != "" && person.ProfileURL == "" {
		person.ProfileURL = cand.ProfileURL
		personChanged = true
	}
	before := len(person.Sources)
	person.AddSource(string(cand.SourceType))
	if len(person.Sources) != before {
		personChanged = true
	}
	if cand.ObservedAt.After(person.LastSeenAt) {
		person.LastSeenAt = cand.ObservedAt
		personChanged = true
	}
	if personChanged {
		person.UpdatedAt = time.Now().UTC()
		if err := r.store.UpdatePerson(ctx, person); err != nil {
			return delta, eris.Wrap(err, "resolve: update person")
		}
		// The roster holds value copies; without this a second mention
		// of the same person in the batch would submit a stale version.
		syncRosterPerson(roster, person)
	}

	// Locate this person's current role at the company with the same
	// normalized title.
	var existing *model.Role
	var prior []*model.Role
	for i := range *roster {
		e := &(*roster)[i]
		if e.Role.PersonID != person.ID || e.Role.CompanyID != companyID || !e.Role.IsCurrent {
			continue
		}
		if strings.EqualFold(e.Role.Title, cand.Title) {
			existing = &e.Role
		} else {
			prior = append(prior, &e.Role)
		}
	}

	if existing == nil {
		// New title for a known person: end the prior current roles of
		// the same track (executive vs board) and open the new one.
		for _, old := range prior {
			if old.IsBoard != cand.IsBoard {
				continue
			}
			old.IsCurrent = false
			end := cand.ObservedAt
			old.EndDate = &end
			old.UpdatedAt = time.Now().UTC()
			if err := r.store.UpdateRole(ctx, old); err != nil {
				return delta, eris.Wrap(err, "resolve: end prior role")
			}
			delta.Updated = append(delta.Updated, *old)
		}

		role := r.newRole(companyID, person.ID, cand)
		if err := r.store.CreateRole(ctx, &role); err != nil {
			return delta, eris.Wrap(err, "resolve: create role")
		}
		*roster = append(*roster, model.RosterEntry{Person: *person, Role: role})
		delta.Created = append(delta.Created, role)
		return delta, nil
	}

	roleChanged := false
	if cand.Confidence >= existing.Confidence {
		if existing.Confidence != cand.Confidence {
			existing.Confidence = cand.Confidence
			roleChanged = true
		}
		if cand.Department != "" && cand.Department != existing.Department {
			existing.Department = cand.Department
			roleChanged = true
		}
		if cand.ReportsToHint != "" && cand.ReportsToHint != existing.ReportsTo {
			existing.ReportsTo = cand.ReportsToHint
			roleChanged = true
		}
	}
	before = len(existing.Sources)
	existing.AddSource(string(cand.SourceType))
	if len(existing.Sources) != before {
		roleChanged = true
	}

	if roleChanged {
		existing.UpdatedAt = time.Now().UTC()
		if err := r.store.UpdateRole(ctx, existing); err != nil {
			return delta, eris.Wrap(err, "resolve: update role")
		}
		delta.Updated = append(delta.Updated, *existing)
	} else {
		delta.Unchanged = append(delta.Unchanged, *existing)
	}
	return delta, nil
}
