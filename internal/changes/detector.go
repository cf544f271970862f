// Package changes diffs two roster states for a company and classifies
// the differences into leadership-change events, scored by business
// impact and deduplicated against previously recorded announcements.
package changes

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/org-intel/internal/model"
)

// Base significance per change type before level scaling. Values keep
// the ordering departure > retirement > hire/interim > demotion >
// promotion = board moves > lateral.
var baseSignificance = map[model.ChangeType]float64{
	model.ChangeHire:           0.60,
	model.ChangeDeparture:      0.70,
	model.ChangePromotion:      0.50,
	model.ChangeDemotion:       0.55,
	model.ChangeLateral:        0.30,
	model.ChangeRetirement:     0.65,
	model.ChangeBoardAppointed: 0.50,
	model.ChangeBoardDeparture: 0.50,
	model.ChangeInterim:        0.60,
}

var levelWeight = map[model.TitleLevel]float64{
	model.LevelCSuite:    1.00,
	model.LevelPresident: 0.95,
	model.LevelBoard:     0.90,
	model.LevelEVP:       0.80,
	model.LevelSVP:       0.70,
	model.LevelVP:        0.60,
	model.LevelDirector:  0.45,
	model.LevelManager:   0.30,
	model.LevelUnknown:   0.25,
}

// Scaling applied to a departure depending on whether the same diff
// shows someone stepping into the vacated title.
const (
	noSuccessorScale   = 1.2
	withSuccessorScale = 0.85
)

// Detector classifies roster differences. The zero value is ready.
type Detector struct{}

// Detect compares the previous and current roster of one company and
// returns the new change events. Board roles diff independently of
// executive roles, so a director who joins the board produces a
// board_appointment without disturbing their executive history.
// Events duplicating prevEvents under the ±7 day window are dropped.
func (d *Detector) Detect(companyID string, prev, curr []model.RosterEntry, prevEvents []model.ChangeEvent, runDate time.Time) []model.ChangeEvent {
	var out []model.ChangeEvent
	emit := func(ev model.ChangeEvent) {
		for i := range prevEvents {
			if ev.SameAnnouncement(&prevEvents[i]) {
				zap.L().Debug("changes: duplicate announcement dropped",
					zap.String("company_id", companyID),
					zap.String("person", ev.PersonName),
					zap.String("type", string(ev.Type)),
				)
				return
			}
		}
		for i := range out {
			if ev.SameAnnouncement(&out[i]) {
				return
			}
		}
		out = append(out, ev)
	}

	for _, board := range []bool{false, true} {
		before := topRoles(prev, board)
		after := topRoles(curr, board)
		d.diffTrack(companyID, board, before, after, runDate, emit)
	}

	if len(out) > 0 {
		zap.L().Info("changes detected",
			zap.String("company_id", companyID),
			zap.Int("events", len(out)),
		)
	}
	return out
}

// diffTrack diffs one track (executive or board) keyed by canonical
// person id.
func (d *Detector) diffTrack(companyID string, board bool, before, after map[string]model.RosterEntry, runDate time.Time, emit func(model.ChangeEvent)) {
	for id, cur := range after {
		old, existed := before[id]
		if !existed {
			typ := model.ChangeHire
			if board {
				typ = model.ChangeBoardAppointed
			} else if cur.Role.IsInterim {
				typ = model.ChangeInterim
			}
			emit(d.event(companyID, cur, model.RosterEntry{}, typ, startOr(cur.Role, runDate)))
			continue
		}

		oldRank, newRank := old.Role.SeniorityRank, cur.Role.SeniorityRank
		switch {
		case newRank > oldRank:
			typ := model.ChangePromotion
			if cur.Role.IsInterim {
				typ = model.ChangeInterim
			}
			emit(d.event(companyID, cur, old, typ, startOr(cur.Role, runDate)))
		case newRank < oldRank:
			emit(d.event(companyID, cur, old, model.ChangeDemotion, startOr(cur.Role, runDate)))
		case cur.Role.Title != old.Role.Title || cur.Role.Department != old.Role.Department:
			emit(d.event(companyID, cur, old, model.ChangeLateral, startOr(cur.Role, runDate)))
		}
	}

	for id, old := range before {
		if _, still := after[id]; still {
			continue
		}
		typ := model.ChangeDeparture
		if board {
			typ = model.ChangeBoardDeparture
		} else if retirementHint(old.Person) {
			typ = model.ChangeRetirement
		}
		ev := d.event(companyID, old, old, typ, endOr(old.Role, runDate))
		ev.NewTitle = ""
		ev.NewRank = 0
		if typ == model.ChangeDeparture || typ == model.ChangeRetirement {
			scale := noSuccessorScale
			if hasSuccessor(old.Role, after) {
				scale = withSuccessorScale
			}
			ev.Significance = clamp01(ev.Significance * scale)
		}
		emit(ev)
	}
}

// event builds a ChangeEvent from the current and (possibly zero) prior
// entry. Significance is base-by-type scaled by title level.
func (d *Detector) event(companyID string, cur, old model.RosterEntry, typ model.ChangeType, effective time.Time) model.ChangeEvent {
	personID := cur.Person.ID
	ev := model.ChangeEvent{
		ID:            uuid.New().String(),
		CompanyID:     companyID,
		PersonID:      &personID,
		PersonName:    cur.Person.FullName,
		Type:          typ,
		OldTitle:      old.Role.Title,
		NewTitle:      cur.Role.Title,
		OldRank:       old.Role.SeniorityRank,
		NewRank:       cur.Role.SeniorityRank,
		TitleLevel:    cur.Role.TitleLevel,
		EffectiveDate: effective,
		Sources:       append([]string(nil), cur.Role.Sources...),
		CreatedAt:     time.Now().UTC(),
	}
	ev.Significance = clamp01(baseSignificance[typ] * levelWeight[ev.TitleLevel])
	return ev
}

// topRoles picks each person's highest-rank current role on one track.
func topRoles(roster []model.RosterEntry, board bool) map[string]model.RosterEntry {
	top := make(map[string]model.RosterEntry)
	for _, e := range roster {
		if !e.Role.IsCurrent || e.Role.IsBoard != board {
			continue
		}
		id := canonicalID(e.Person)
		if best, ok := top[id]; !ok || e.Role.SeniorityRank > best.Role.SeniorityRank {
			top[id] = e
		}
	}
	return top
}

func canonicalID(p model.Person) string {
	if p.IsMerged() {
		return *p.CanonicalID
	}
	return p.ID
}

// hasSuccessor reports whether the current roster already shows someone
// else holding the departed role's title.
func hasSuccessor(departed model.Role, after map[string]model.RosterEntry) bool {
	for id, e := range after {
		if id == departed.PersonID {
			continue
		}
		if e.Role.Title == departed.Title {
			return true
		}
	}
	return false
}

func retirementHint(p model.Person) bool {
	return strings.Contains(strings.ToLower(p.Bio), "retir")
}

func startOr(r model.Role, fallback time.Time) time.Time {
	if r.StartDate != nil {
		return *r.StartDate
	}
	return fallback
}

func endOr(r model.Role, fallback time.Time) time.Time {
	if r.EndDate != nil {
		return *r.EndDate
	}
	return fallback
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
