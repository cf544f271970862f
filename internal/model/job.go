package model

import "time"

// JobStatus is the state of a collection job.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailed  JobStatus = "failed"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed
}

// JobCounts holds aggregate progress counters for a job. Counts are
// always reported, including on failed jobs, so callers can distinguish
// "found nothing" from "errored before producing results".
type JobCounts struct {
	PeopleFound     int `json:"people_found"`
	PeopleCreated   int `json:"people_created"`
	PeopleUpdated   int `json:"people_updated"`
	CandidatesBad   int `json:"candidates_rejected"`
	ChangesDetected int `json:"changes_detected"`
	SnapshotsBuilt  int `json:"snapshots_built"`
	CompaniesDone   int `json:"companies_done"`
}

// Add accumulates another set of counts.
func (c *JobCounts) Add(other JobCounts) {
	c.PeopleFound += other.PeopleFound
	c.PeopleCreated += other.PeopleCreated
	c.PeopleUpdated += other.PeopleUpdated
	c.CandidatesBad += other.CandidatesBad
	c.ChangesDetected += other.ChangesDetected
	c.SnapshotsBuilt += other.SnapshotsBuilt
	c.CompaniesDone += other.CompaniesDone
}

// CollectionJob tracks one orchestration run over one or more companies.
// Only the orchestrator mutates a job; it is immutable once terminal.
type CollectionJob struct {
	ID           string       `json:"id" db:"id"`
	CompanyIDs   []string     `json:"company_ids" db:"company_ids"`
	SourceTypes  []SourceType `json:"source_types" db:"source_types"`
	Status       JobStatus    `json:"status" db:"status"`
	Counts       JobCounts    `json:"counts" db:"counts"`
	Warnings     []string     `json:"warnings,omitempty" db:"warnings"`
	Error        string       `json:"error,omitempty" db:"error"`
	CancelReason string       `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty" db:"started_at"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty" db:"finished_at"`
}
