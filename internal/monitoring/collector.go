// Package monitoring aggregates job and change-feed metrics from the
// store into a point-in-time snapshot for the status command and the
// health endpoint.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/org-intel/internal/model"
	"github.com/sells-group/org-intel/internal/store"
)

// MetricsSnapshot holds a point-in-time view of collection health.
type MetricsSnapshot struct {
	// Job metrics within the lookback window.
	JobsTotal    int     `json:"jobs_total"`
	JobsSuccess  int     `json:"jobs_success"`
	JobsFailed   int     `json:"jobs_failed"`
	JobsRunning  int     `json:"jobs_running"`
	JobsPending  int     `json:"jobs_pending"`
	JobsFailRate float64 `json:"jobs_fail_rate"`

	// Aggregate output of those jobs.
	PeopleFound     int `json:"people_found"`
	PeopleCreated   int `json:"people_created"`
	PeopleUpdated   int `json:"people_updated"`
	ChangesDetected int `json:"changes_detected"`
	SnapshotsBuilt  int `json:"snapshots_built"`
	WarningCount    int `json:"warning_count"`

	// High-significance events in the window.
	CriticalChanges int `json:"critical_changes"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// CriticalSignificance is the threshold above which a change event
// counts as critical in the snapshot.
const CriticalSignificance = 0.6

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}
	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	jobs, err := c.store.ListJobs(ctx, store.JobFilter{Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list jobs")
	}

	for _, j := range jobs {
		if j.CreatedAt.Before(cutoff) {
			continue
		}
		snap.JobsTotal++
		switch j.Status {
		case model.JobStatusSuccess:
			snap.JobsSuccess++
		case model.JobStatusFailed:
			snap.JobsFailed++
		case model.JobStatusRunning:
			snap.JobsRunning++
		case model.JobStatusPending:
			snap.JobsPending++
		}
		snap.PeopleFound += j.Counts.PeopleFound
		snap.PeopleCreated += j.Counts.PeopleCreated
		snap.PeopleUpdated += j.Counts.PeopleUpdated
		snap.ChangesDetected += j.Counts.ChangesDetected
		snap.SnapshotsBuilt += j.Counts.SnapshotsBuilt
		snap.WarningCount += len(j.Warnings)
	}

	finished := snap.JobsSuccess + snap.JobsFailed
	if finished > 0 {
		snap.JobsFailRate = float64(snap.JobsFailed) / float64(finished)
	}

	events, err := c.store.ListChangeEvents(ctx, model.ChangeFilter{
		Since: &cutoff,
		Limit: 10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list change events")
	}
	for _, ev := range events {
		if ev.Significance >= CriticalSignificance {
			snap.CriticalChanges++
		}
	}

	return snap, nil
}
