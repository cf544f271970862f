package model

import "time"

// ChangeType classifies a leadership-change event.
type ChangeType string

const (
	ChangeHire           ChangeType = "hire"
	ChangeDeparture      ChangeType = "departure"
	ChangePromotion      ChangeType = "promotion"
	ChangeDemotion       ChangeType = "demotion"
	ChangeLateral        ChangeType = "lateral"
	ChangeRetirement     ChangeType = "retirement"
	ChangeBoardAppointed ChangeType = "board_appointment"
	ChangeBoardDeparture ChangeType = "board_departure"
	ChangeInterim        ChangeType = "interim"
)

// DedupWindow is the tolerance applied to the uniqueness key: two events
// with the same (company, person, type) whose effective dates fall within
// this window are the same announcement seen twice.
const DedupWindow = 7 * 24 * time.Hour

// ChangeEvent is one classified difference between two roster states.
// PersonID is nil when the event references a name the resolver has not
// (or no longer) anchored to a canonical person.
type ChangeEvent struct {
	ID            string     `json:"id" db:"id"`
	CompanyID     string     `json:"company_id" db:"company_id"`
	PersonID      *string    `json:"person_id,omitempty" db:"person_id"`
	PersonName    string     `json:"person_name" db:"person_name"`
	Type          ChangeType `json:"type" db:"change_type"`
	OldTitle      string     `json:"old_title,omitempty" db:"old_title"`
	NewTitle      string     `json:"new_title,omitempty" db:"new_title"`
	OldRank       int        `json:"old_rank,omitempty" db:"old_rank"`
	NewRank       int        `json:"new_rank,omitempty" db:"new_rank"`
	TitleLevel    TitleLevel `json:"title_level" db:"title_level"`
	EffectiveDate time.Time  `json:"effective_date" db:"effective_date"`
	Significance  float64    `json:"significance" db:"significance"`
	Sources       []string   `json:"sources,omitempty" db:"sources"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// DedupKeyName returns the person component of the uniqueness key:
// the canonical person id when resolved, otherwise the observed name.
func (e *ChangeEvent) DedupKeyName() string {
	if e.PersonID != nil && *e.PersonID != "" {
		return *e.PersonID
	}
	return e.PersonName
}

// SameAnnouncement reports whether other is a duplicate of this event
// under the dedup invariant.
func (e *ChangeEvent) SameAnnouncement(other *ChangeEvent) bool {
	if e.CompanyID != other.CompanyID || e.Type != other.Type {
		return false
	}
	if e.DedupKeyName() != other.DedupKeyName() {
		return false
	}
	gap := e.EffectiveDate.Sub(other.EffectiveDate)
	if gap < 0 {
		gap = -gap
	}
	return gap <= DedupWindow
}

// ChangeFilter selects events from the change feed.
type ChangeFilter struct {
	CompanyID  string      `json:"company_id,omitempty"`
	Types      []ChangeType `json:"types,omitempty"`
	TitleLevel TitleLevel  `json:"title_level,omitempty"`
	Since      *time.Time  `json:"since,omitempty"`
	Until      *time.Time  `json:"until,omitempty"`
	Limit      int         `json:"limit,omitempty"`
	Offset     int         `json:"offset,omitempty"`
}
