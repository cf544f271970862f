package model

import "time"

// Person is the canonical record for a human identity. Persons are never
// deleted; when two records are discovered to be the same individual the
// loser gets CanonicalID set and its role history moves to the winner.
type Person struct {
	ID             string     `json:"id" db:"id"`
	FullName       string     `json:"full_name" db:"full_name"`
	NormalizedName string     `json:"normalized_name" db:"normalized_name"`
	ProfileURL     string     `json:"profile_url,omitempty" db:"profile_url"`
	Bio            string     `json:"bio,omitempty" db:"bio"`
	Sources        []string   `json:"sources,omitempty" db:"sources"`
	Confidence     float64    `json:"confidence" db:"confidence"`
	CanonicalID    *string    `json:"canonical_id,omitempty" db:"canonical_id"`
	Version        int64      `json:"version" db:"version"`
	FirstSeenAt    time.Time  `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt     time.Time  `json:"last_seen_at" db:"last_seen_at"`
	MergedAt       *time.Time `json:"merged_at,omitempty" db:"merged_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// IsMerged reports whether this record has been folded into another person.
func (p *Person) IsMerged() bool {
	return p.CanonicalID != nil && *p.CanonicalID != ""
}

// AddSource appends a provenance tag if not already present.
func (p *Person) AddSource(source string) {
	for _, s := range p.Sources {
		if s == source {
			return
		}
	}
	p.Sources = append(p.Sources, source)
}

// MergeRecord is one entry in the resolver's merge log.
type MergeRecord struct {
	WinnerID string    `json:"winner_id"`
	LoserID  string    `json:"loser_id"`
	Reason   string    `json:"reason"`
	MergedAt time.Time `json:"merged_at"`
}
