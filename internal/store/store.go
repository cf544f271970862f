// Package store persists persons, roles, snapshots, change events and
// collection jobs. Two implementations share one interface: SQLite for
// local single-binary use and Postgres for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/org-intel/internal/model"
)

var (
	// ErrNotFound is returned by updates targeting a missing record.
	ErrNotFound = eris.New("store: not found")

	// ErrVersionConflict is returned when an optimistic-concurrency
	// update loses the race: the stored version moved on.
	ErrVersionConflict = eris.New("store: version conflict")

	// ErrDuplicateEvent is returned when a change event collides with
	// the dedup uniqueness key.
	ErrDuplicateEvent = eris.New("store: duplicate change event")

	// ErrUnavailable marks persistence failures that must fail the job
	// rather than degrade to a warning.
	ErrUnavailable = eris.New("store: unavailable")
)

// JobFilter specifies criteria for listing collection jobs.
type JobFilter struct {
	Status    model.JobStatus `json:"status,omitempty"`
	CompanyID string          `json:"company_id,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// Store is the persistence interface for the collection engine. Get
// methods return (nil, nil) when the record does not exist; Update
// methods return ErrNotFound or ErrVersionConflict instead.
type Store interface {
	// Persons. UpdatePerson enforces optimistic concurrency on the
	// version column and bumps it on success.
	GetPerson(ctx context.Context, id string) (*model.Person, error)
	GetPersonByProfileURL(ctx context.Context, url string) (*model.Person, error)
	CreatePerson(ctx context.Context, p *model.Person) error
	UpdatePerson(ctx context.Context, p *model.Person) error

	// Roles.
	CreateRole(ctx context.Context, r *model.Role) error
	UpdateRole(ctx context.Context, r *model.Role) error
	ReassignRoles(ctx context.Context, fromPersonID, toPersonID string) error
	ListRoster(ctx context.Context, companyID string, currentOnly bool) ([]model.RosterEntry, error)

	// Snapshots are append-only.
	SaveSnapshot(ctx context.Context, snap *model.OrgSnapshot) error
	GetLatestSnapshot(ctx context.Context, companyID string) (*model.OrgSnapshot, error)

	// Change events. SaveChangeEvents skips rows colliding with the
	// dedup key and reports how many were actually written;
	// SaveChangeEvent returns ErrDuplicateEvent on a collision.
	SaveChangeEvents(ctx context.Context, events []model.ChangeEvent) (int, error)
	SaveChangeEvent(ctx context.Context, ev *model.ChangeEvent) error
	ListChangeEvents(ctx context.Context, filter model.ChangeFilter) ([]model.ChangeEvent, error)

	// Jobs.
	CreateJob(ctx context.Context, job *model.CollectionJob) error
	UpdateJob(ctx context.Context, job *model.CollectionJob) error
	GetJob(ctx context.Context, id string) (*model.CollectionJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.CollectionJob, error)

	// Lifecycle.
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// dedupBucket truncates an effective date to its day so the uniqueness
// index catches the common repeat-collection case exactly; the detector
// handles the wider ±7 day window before events reach the store.
func dedupBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
