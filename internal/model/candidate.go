package model

import "time"

// SourceType identifies which collection source produced a candidate.
type SourceType string

const (
	SourceFiling  SourceType = "filing"
	SourceWebsite SourceType = "website"
	SourceNews    SourceType = "news"
)

// Candidate is a raw person record as returned by the external extraction
// service. Every field except FullName and SourceType is optional; nothing
// here is trusted until the normalizer has validated it.
type Candidate struct {
	FullName         string     `json:"full_name"`
	RawTitle         string     `json:"raw_title"`
	Bio              string     `json:"bio,omitempty"`
	ProfileURL       string     `json:"profile_url,omitempty"`
	Department       string     `json:"department,omitempty"`
	ReportsToHint    string     `json:"reports_to_hint,omitempty"`
	SourceType       SourceType `json:"source_type"`
	SourceConfidence float64    `json:"source_confidence"`
	ObservedAt       *time.Time `json:"observed_at,omitempty"`
}

// NormalizedCandidate is a candidate that passed validation and title
// normalization, ready for entity resolution.
type NormalizedCandidate struct {
	FullName       string     `json:"full_name"`
	NormalizedName string     `json:"normalized_name"`
	RawTitle       string     `json:"raw_title"`
	Title          string     `json:"title"`
	TitleLevel     TitleLevel `json:"title_level"`
	SeniorityRank  int        `json:"seniority_rank"`
	Department     string     `json:"department,omitempty"`
	Bio            string     `json:"bio,omitempty"`
	ProfileURL     string     `json:"profile_url,omitempty"`
	ReportsToHint  string     `json:"reports_to_hint,omitempty"`
	SourceType     SourceType `json:"source_type"`
	Confidence     float64    `json:"confidence"`
	IsBoard        bool       `json:"is_board"`
	IsInterim      bool       `json:"is_interim"`
	ObservedAt     time.Time  `json:"observed_at"`
}

// Rejection records a candidate the normalizer refused, with the reason.
// Rejections are reported on the job, never fatal.
type Rejection struct {
	Candidate Candidate `json:"candidate"`
	Reason    string    `json:"reason"`
}
