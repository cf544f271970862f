package resolve

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/org-intel/internal/model"
)

// Dereference follows the canonical_id chain from a person to the
// surviving record. Merges are one-way, so the chain length is bounded
// by the number of merges performed; a revisited id means corrupted data
// and is reported as a cycle.
func (r *Resolver) Dereference(ctx context.Context, p *model.Person) (*model.Person, error) {
	visited := map[string]bool{p.ID: true}

	current := p
	for current.IsMerged() {
		next, err := r.store.GetPerson(ctx, *current.CanonicalID)
		if err != nil {
			return nil, eris.Wrapf(err, "resolve: dereference %s", *current.CanonicalID)
		}
		if next == nil {
			// Dangling pointer: treat the last resolvable record as
			// canonical rather than failing the whole pass.
			zap.L().Warn("dangling canonical_id",
				zap.String("person_id", current.ID),
				zap.String("canonical_id", *current.CanonicalID),
			)
			return current, nil
		}
		if visited[next.ID] {
			return nil, eris.Wrapf(ErrCycleDetected, "person %s", p.ID)
		}
		visited[next.ID] = true
		current = next
	}
	return current, nil
}

// mergePersons folds loser into winner: the loser gets canonical_id set,
// its role history moves to the winner, and provenance is combined. The
// merge is refused when it would create a canonical cycle.
func (r *Resolver) mergePersons(ctx context.Context, winner *matchResult, loser *model.Person) (model.MergeRecord, error) {
	w := winner.person

	if w.ID == loser.ID {
		return model.MergeRecord{}, eris.Wrapf(ErrCycleDetected, "self-merge of %s", w.ID)
	}

	// Refuse when the winner's chain already leads back to the loser.
	canonical, err := r.Dereference(ctx, w)
	if err != nil {
		return model.MergeRecord{}, err
	}
	if canonical.ID == loser.ID {
		return model.MergeRecord{}, eris.Wrapf(ErrCycleDetected, "merge %s into %s", loser.ID, w.ID)
	}

	now := time.Now().UTC()

	loser.CanonicalID = &canonical.ID
	loser.MergedAt = &now
	loser.UpdatedAt = now
	if err := r.store.UpdatePerson(ctx, loser); err != nil {
		return model.MergeRecord{}, eris.Wrap(err, "resolve: mark merged")
	}

	if err := r.store.ReassignRoles(ctx, loser.ID, canonical.ID); err != nil {
		return model.MergeRecord{}, eris.Wrap(err, "resolve: move role history")
	}

	changed := false
	for _, s := range loser.Sources {
		before := len(canonical.Sources)
		canonical.AddSource(s)
		changed = changed || len(canonical.Sources) != before
	}
	if canonical.ProfileURL == "" && loser.ProfileURL != "" {
		canonical.ProfileURL = loser.ProfileURL
		changed = true
	}
	if loser.Confidence > canonical.Confidence {
		canonical.Confidence = loser.Confidence
		changed = true
	}
	if changed {
		canonical.UpdatedAt = now
		if err := r.store.UpdatePerson(ctx, canonical); err != nil {
			return model.MergeRecord{}, eris.Wrap(err, "resolve: update canonical")
		}
	}

	zap.L().Info("merged persons",
		zap.String("winner_id", canonical.ID),
		zap.String("loser_id", loser.ID),
		zap.String("match_type", winner.matchType),
	)

	return model.MergeRecord{
		WinnerID: canonical.ID,
		LoserID:  loser.ID,
		Reason:   winner.matchType,
		MergedAt: now,
	}, nil
}

// syncRosterPerson copies an updated person value back into every roster
// entry carrying it, keeping in-memory versions aligned with the store.
func syncRosterPerson(roster *[]model.RosterEntry, p *model.Person) {
	for i := range *roster {
		if (*roster)[i].Person.ID == p.ID {
			(*roster)[i].Person = *p
		}
	}
}

// reindexRoster repoints in-memory roster entries from a merged person
// to the canonical one so later candidates in the same batch match it.
func reindexRoster(roster *[]model.RosterEntry, fromID, toID string) {
	for i := range *roster {
		if (*roster)[i].Role.PersonID == fromID {
			(*roster)[i].Role.PersonID = toID
		}
		if (*roster)[i].Person.ID == fromID {
			canonical := toID
			(*roster)[i].Person.CanonicalID = &canonical
		}
	}
}
