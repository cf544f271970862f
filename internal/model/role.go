package model

import "time"

// TitleLevel buckets a seniority rank into a coarse band for filtering
// and significance scoring.
type TitleLevel string

const (
	LevelCSuite    TitleLevel = "c_suite"
	LevelPresident TitleLevel = "president"
	LevelEVP       TitleLevel = "evp"
	LevelSVP       TitleLevel = "svp"
	LevelVP        TitleLevel = "vp"
	LevelDirector  TitleLevel = "director"
	LevelManager   TitleLevel = "manager"
	LevelBoard     TitleLevel = "board"
	LevelUnknown   TitleLevel = "unknown"
)

// Role is a person's position at a company. ReportsTo is a weak reference
// to another role id; it is a hint, never an owning pointer.
type Role struct {
	ID            string     `json:"id" db:"id"`
	CompanyID     string     `json:"company_id" db:"company_id"`
	PersonID      string     `json:"person_id" db:"person_id"`
	RawTitle      string     `json:"raw_title" db:"raw_title"`
	Title         string     `json:"title" db:"title"`
	TitleLevel    TitleLevel `json:"title_level" db:"title_level"`
	SeniorityRank int        `json:"seniority_rank" db:"seniority_rank"`
	Department    string     `json:"department,omitempty" db:"department"`
	ReportsTo     string     `json:"reports_to,omitempty" db:"reports_to"`
	IsBoard       bool       `json:"is_board" db:"is_board"`
	IsInterim     bool       `json:"is_interim" db:"is_interim"`
	IsCurrent     bool       `json:"is_current" db:"is_current"`
	StartDate     *time.Time `json:"start_date,omitempty" db:"start_date"`
	EndDate       *time.Time `json:"end_date,omitempty" db:"end_date"`
	Sources       []string   `json:"sources,omitempty" db:"sources"`
	Confidence    float64    `json:"confidence" db:"confidence"`
	Version       int64      `json:"version" db:"version"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// AddSource appends a provenance tag if not already present.
func (r *Role) AddSource(source string) {
	for _, s := range r.Sources {
		if s == source {
			return
		}
	}
	r.Sources = append(r.Sources, source)
}

// RosterDelta is the outcome of one resolution pass for a company.
type RosterDelta struct {
	Created   []Role        `json:"created"`
	Updated   []Role        `json:"updated"`
	Unchanged []Role        `json:"unchanged"`
	Merges    []MergeRecord `json:"merges,omitempty"`
}

// Changed reports whether the pass touched the roster at all.
func (d *RosterDelta) Changed() bool {
	return len(d.Created) > 0 || len(d.Updated) > 0 || len(d.Merges) > 0
}

// Append folds another delta into this one.
func (d *RosterDelta) Append(other RosterDelta) {
	d.Created = append(d.Created, other.Created...)
	d.Updated = append(d.Updated, other.Updated...)
	d.Unchanged = append(d.Unchanged, other.Unchanged...)
	d.Merges = append(d.Merges, other.Merges...)
}
