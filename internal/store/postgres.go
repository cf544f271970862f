package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/org-intel/internal/db"
	"github.com/sells-group/org-intel/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hot path of a collection run.
var preparedStatements = map[string]string{
	"get_person":            `SELECT ` + personColumns + ` FROM persons WHERE id = $1`,
	"get_person_by_url":     `SELECT ` + personColumns + ` FROM persons WHERE profile_url = $1 AND canonical_id IS NULL ORDER BY last_seen_at DESC LIMIT 1`,
	"reassign_roles":        `UPDATE roles SET person_id = $1, updated_at = $2 WHERE person_id = $3`,
	"get_latest_snapshot":   `SELECT id, company_id, snapshot_date, roots, multi_root, node_count, max_depth, created_at FROM org_snapshots WHERE company_id = $1 ORDER BY created_at DESC LIMIT 1`,
	"get_job":               `SELECT id, company_ids, source_types, status, counts, warnings, error, cancel_reason, created_at, started_at, finished_at FROM collection_jobs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS persons (
	id              TEXT PRIMARY KEY,
	full_name       TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	profile_url     TEXT NOT NULL DEFAULT '',
	bio             TEXT NOT NULL DEFAULT '',
	sources         JSONB NOT NULL DEFAULT '[]',
	confidence      DOUBLE PRECISION NOT NULL DEFAULT 0,
	canonical_id    TEXT REFERENCES persons(id),
	version         BIGINT NOT NULL DEFAULT 1,
	first_seen_at   TIMESTAMPTZ NOT NULL,
	last_seen_at    TIMESTAMPTZ NOT NULL,
	merged_at       TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS roles (
	id             TEXT PRIMARY KEY,
	company_id     TEXT NOT NULL,
	person_id      TEXT NOT NULL REFERENCES persons(id),
	raw_title      TEXT NOT NULL,
	title          TEXT NOT NULL,
	title_level    TEXT NOT NULL,
	seniority_rank INTEGER NOT NULL,
	department     TEXT NOT NULL DEFAULT '',
	reports_to     TEXT NOT NULL DEFAULT '',
	is_board       BOOLEAN NOT NULL DEFAULT false,
	is_interim     BOOLEAN NOT NULL DEFAULT false,
	is_current     BOOLEAN NOT NULL DEFAULT true,
	start_date     TIMESTAMPTZ,
	end_date       TIMESTAMPTZ,
	sources        JSONB NOT NULL DEFAULT '[]',
	confidence     DOUBLE PRECISION NOT NULL DEFAULT 0,
	version        BIGINT NOT NULL DEFAULT 1,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS org_snapshots (
	id            TEXT PRIMARY KEY,
	company_id    TEXT NOT NULL,
	snapshot_date TIMESTAMPTZ NOT NULL,
	roots         JSONB NOT NULL,
	multi_root    BOOLEAN NOT NULL DEFAULT false,
	node_count    INTEGER NOT NULL,
	max_depth     INTEGER NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS change_events (
	id             TEXT PRIMARY KEY,
	company_id     TEXT NOT NULL,
	person_id      TEXT,
	person_name    TEXT NOT NULL,
	change_type    TEXT NOT NULL,
	old_title      TEXT NOT NULL DEFAULT '',
	new_title      TEXT NOT NULL DEFAULT '',
	old_rank       INTEGER NOT NULL DEFAULT 0,
	new_rank       INTEGER NOT NULL DEFAULT 0,
	title_level    TEXT NOT NULL,
	effective_date TIMESTAMPTZ NOT NULL,
	dedup_day      TEXT NOT NULL,
	significance   DOUBLE PRECISION NOT NULL,
	sources        JSONB NOT NULL DEFAULT '[]',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS collection_jobs (
	id            TEXT PRIMARY KEY,
	company_ids   JSONB NOT NULL,
	source_types  JSONB NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	counts        JSONB NOT NULL DEFAULT '{}',
	warnings      JSONB NOT NULL DEFAULT '[]',
	error         TEXT NOT NULL DEFAULT '',
	cancel_reason TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at    TIMESTAMPTZ,
	finished_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_persons_normalized_name ON persons(normalized_name);
CREATE INDEX IF NOT EXISTS idx_persons_profile_url ON persons(profile_url);
CREATE INDEX IF NOT EXISTS idx_roles_company_current ON roles(company_id, is_current);
CREATE INDEX IF NOT EXISTS idx_roles_person ON roles(person_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_company ON org_snapshots(company_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_events_company_date ON change_events(company_id, effective_date DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_events_dedup
	ON change_events(company_id, coalesce(person_id, person_name), change_type, dedup_day);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON collection_jobs(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return eris.Wrapf(ErrUnavailable, "postgres: ping: %v", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Persons

func (s *PostgresStore) GetPerson(ctx context.Context, id string) (*model.Person, error) {
	return s.scanPersonRow(s.pool.QueryRow(ctx,
		`SELECT `+personColumns+` FROM persons WHERE id = $1`, id))
}

func (s *PostgresStore) GetPersonByProfileURL(ctx context.Context, url string) (*model.Person, error) {
	return s.scanPersonRow(s.pool.QueryRow(ctx,
		`SELECT `+personColumns+` FROM persons
		 WHERE profile_url = $1 AND canonical_id IS NULL
		 ORDER BY last_seen_at DESC LIMIT 1`, url))
}

func (s *PostgresStore) CreatePerson(ctx context.Context, p *model.Person) error {
	sources, err := marshalStrings(p.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal person sources")
	}
	if p.Version == 0 {
		p.Version = 1
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO persons (`+personColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, p.FullName, p.NormalizedName, p.ProfileURL, p.Bio, sources, p.Confidence,
		p.CanonicalID, p.Version, p.FirstSeenAt, p.LastSeenAt, p.MergedAt, p.CreatedAt, p.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert person %s", p.ID)
}

func (s *PostgresStore) UpdatePerson(ctx context.Context, p *model.Person) error {
	sources, err := marshalStrings(p.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal person sources")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE persons SET full_name = $1, normalized_name = $2, profile_url = $3, bio = $4,
		 sources = $5, confidence = $6, canonical_id = $7, last_seen_at = $8, merged_at = $9,
		 updated_at = $10, version = version + 1
		 WHERE id = $11 AND version = $12`,
		p.FullName, p.NormalizedName, p.ProfileURL, p.Bio,
		sources, p.Confidence, p.CanonicalID, p.LastSeenAt, p.MergedAt,
		p.UpdatedAt, p.ID, p.Version,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update person %s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return s.versionedMiss(ctx, "persons", p.ID)
	}
	p.Version++
	return nil
}

// Roles

func (s *PostgresStore) CreateRole(ctx context.Context, r *model.Role) error {
	sources, err := marshalStrings(r.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal role sources")
	}
	if r.Version == 0 {
		r.Version = 1
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO roles (`+roleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		r.ID, r.CompanyID, r.PersonID, r.RawTitle, r.Title, string(r.TitleLevel), r.SeniorityRank,
		r.Department, r.ReportsTo, r.IsBoard, r.IsInterim, r.IsCurrent, r.StartDate, r.EndDate,
		sources, r.Confidence, r.Version, r.CreatedAt, r.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert role %s", r.ID)
}

func (s *PostgresStore) UpdateRole(ctx context.Context, r *model.Role) error {
	sources, err := marshalStrings(r.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal role sources")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE roles SET raw_title = $1, title = $2, title_level = $3, seniority_rank = $4,
		 department = $5, reports_to = $6, is_board = $7, is_interim = $8, is_current = $9,
		 start_date = $10, end_date = $11, sources = $12, confidence = $13, updated_at = $14,
		 version = version + 1
		 WHERE id = $15 AND version = $16`,
		r.RawTitle, r.Title, string(r.TitleLevel), r.SeniorityRank,
		r.Department, r.ReportsTo, r.IsBoard, r.IsInterim, r.IsCurrent,
		r.StartDate, r.EndDate, sources, r.Confidence, r.UpdatedAt,
		r.ID, r.Version,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update role %s", r.ID)
	}
	if tag.RowsAffected() == 0 {
		return s.versionedMiss(ctx, "roles", r.ID)
	}
	r.Version++
	return nil
}

func (s *PostgresStore) ReassignRoles(ctx context.Context, fromPersonID, toPersonID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE roles SET person_id = $1, updated_at = $2 WHERE person_id = $3`,
		toPersonID, time.Now().UTC(), fromPersonID,
	)
	return eris.Wrapf(err, "postgres: reassign roles %s -> %s", fromPersonID, toPersonID)
}

func (s *PostgresStore) ListRoster(ctx context.Context, companyID string, currentOnly bool) ([]model.RosterEntry, error) {
	query := `SELECT
		 r.id, r.company_id, r.person_id, r.raw_title, r.title, r.title_level, r.seniority_rank,
		 r.department, r.reports_to, r.is_board, r.is_interim, r.is_current, r.start_date, r.end_date,
		 r.sources, r.confidence, r.version, r.created_at, r.updated_at,
		 p.id, p.full_name, p.normalized_name, p.profile_url, p.bio, p.sources, p.confidence,
		 p.canonical_id, p.version, p.first_seen_at, p.last_seen_at, p.merged_at, p.created_at, p.updated_at
		 FROM roles r JOIN persons p ON p.id = r.person_id
		 WHERE r.company_id = $1`
	if currentOnly {
		query += ` AND r.is_current`
	}
	query += ` ORDER BY r.seniority_rank DESC, r.created_at ASC`

	rows, err := s.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list roster")
	}
	defer rows.Close()

	var roster []model.RosterEntry
	for rows.Next() {
		var e model.RosterEntry
		var roleSources, personSources []byte
		if err := rows.Scan(
			&e.Role.ID, &e.Role.CompanyID, &e.Role.PersonID, &e.Role.RawTitle, &e.Role.Title,
			&e.Role.TitleLevel, &e.Role.SeniorityRank, &e.Role.Department, &e.Role.ReportsTo,
			&e.Role.IsBoard, &e.Role.IsInterim, &e.Role.IsCurrent, &e.Role.StartDate, &e.Role.EndDate,
			&roleSources, &e.Role.Confidence, &e.Role.Version, &e.Role.CreatedAt, &e.Role.UpdatedAt,
			&e.Person.ID, &e.Person.FullName, &e.Person.NormalizedName, &e.Person.ProfileURL, &e.Person.Bio,
			&personSources, &e.Person.Confidence, &e.Person.CanonicalID, &e.Person.Version,
			&e.Person.FirstSeenAt, &e.Person.LastSeenAt, &e.Person.MergedAt, &e.Person.CreatedAt, &e.Person.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan roster entry")
		}
		if err := json.Unmarshal(roleSources, &e.Role.Sources); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal role sources")
		}
		if err := json.Unmarshal(personSources, &e.Person.Sources); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal person sources")
		}
		roster = append(roster, e)
	}
	return roster, eris.Wrap(rows.Err(), "postgres: list roster iterate")
}

// Snapshots

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *model.OrgSnapshot) error {
	roots, err := json.Marshal(snap.Roots)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal snapshot roots")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO org_snapshots (id, company_id, snapshot_date, roots, multi_root, node_count, max_depth, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		snap.ID, snap.CompanyID, snap.Date, roots, snap.MultiRoot, snap.NodeCount, snap.MaxDepth, snap.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert snapshot %s", snap.ID)
}

func (s *PostgresStore) GetLatestSnapshot(ctx context.Context, companyID string) (*model.OrgSnapshot, error) {
	var snap model.OrgSnapshot
	var roots []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, company_id, snapshot_date, roots, multi_root, node_count, max_depth, created_at
		 FROM org_snapshots WHERE company_id = $1
		 ORDER BY created_at DESC LIMIT 1`, companyID,
	).Scan(&snap.ID, &snap.CompanyID, &snap.Date, &roots,
		&snap.MultiRoot, &snap.NodeCount, &snap.MaxDepth, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get latest snapshot")
	}
	if err := json.Unmarshal(roots, &snap.Roots); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal snapshot roots")
	}
	return &snap, nil
}

// Change events

var changeEventColumns = []string{
	"id", "company_id", "person_id", "person_name", "change_type",
	"old_title", "new_title", "old_rank", "new_rank", "title_level",
	"effective_date", "dedup_day", "significance", "sources", "created_at",
}

func (s *PostgresStore) SaveChangeEvents(ctx context.Context, events []model.ChangeEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	rows := make([][]any, 0, len(events))
	for i := range events {
		ev := &events[i]
		sources, err := marshalStrings(ev.Sources)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal event sources")
		}
		rows = append(rows, []any{
			ev.ID, ev.CompanyID, ev.PersonID, ev.PersonName, string(ev.Type),
			ev.OldTitle, ev.NewTitle, ev.OldRank, ev.NewRank, string(ev.TitleLevel),
			ev.EffectiveDate, dedupBucket(ev.EffectiveDate),
			ev.Significance, sources, ev.CreatedAt,
		})
	}
	n, err := db.BulkInsertIgnore(ctx, s.pool, "change_events", changeEventColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: save change events")
	}
	return int(n), nil
}

func (s *PostgresStore) SaveChangeEvent(ctx context.Context, ev *model.ChangeEvent) error {
	sources, err := marshalStrings(ev.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal event sources")
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO change_events (id, company_id, person_id, person_name, change_type,
		 old_title, new_title, old_rank, new_rank, title_level, effective_date, dedup_day,
		 significance, sources, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT DO NOTHING`,
		ev.ID, ev.CompanyID, ev.PersonID, ev.PersonName, string(ev.Type),
		ev.OldTitle, ev.NewTitle, ev.OldRank, ev.NewRank, string(ev.TitleLevel),
		ev.EffectiveDate, dedupBucket(ev.EffectiveDate),
		ev.Significance, sources, ev.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert event %s", ev.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrDuplicateEvent, "%s %s", ev.Type, ev.DedupKeyName())
	}
	return nil
}

func (s *PostgresStore) ListChangeEvents(ctx context.Context, filter model.ChangeFilter) ([]model.ChangeEvent, error) {
	query := `SELECT id, company_id, person_id, person_name, change_type, old_title, new_title,
		 old_rank, new_rank, title_level, effective_date, significance, sources, created_at
		 FROM change_events WHERE true`
	args := []any{}
	argIdx := 1

	if filter.CompanyID != "" {
		query += fmt.Sprintf(` AND company_id = $%d`, argIdx)
		args = append(args, filter.CompanyID)
		argIdx++
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = fmt.Sprintf("$%d", argIdx)
			args = append(args, string(t))
			argIdx++
		}
		query += ` AND change_type IN (` + strings.Join(placeholders, ", ") + `)`
	}
	if filter.TitleLevel != "" {
		query += fmt.Sprintf(` AND title_level = $%d`, argIdx)
		args = append(args, string(filter.TitleLevel))
		argIdx++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND effective_date >= $%d`, argIdx)
		args = append(args, *filter.Since)
		argIdx++
	}
	if filter.Until != nil {
		query += fmt.Sprintf(` AND effective_date <= $%d`, argIdx)
		args = append(args, *filter.Until)
		argIdx++
	}
	query += ` ORDER BY effective_date DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list events")
	}
	defer rows.Close()

	var events []model.ChangeEvent
	for rows.Next() {
		var ev model.ChangeEvent
		var sources []byte
		if err := rows.Scan(&ev.ID, &ev.CompanyID, &ev.PersonID, &ev.PersonName, &ev.Type,
			&ev.OldTitle, &ev.NewTitle, &ev.OldRank, &ev.NewRank, &ev.TitleLevel,
			&ev.EffectiveDate, &ev.Significance, &sources, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		if err := json.Unmarshal(sources, &ev.Sources); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal event sources")
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list events iterate")
}

// Jobs

func (s *PostgresStore) CreateJob(ctx context.Context, job *model.CollectionJob) error {
	companies, err := marshalStrings(job.CompanyIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal job companies")
	}
	sourceTypes, err := json.Marshal(job.SourceTypes)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal job source types")
	}
	counts, err := json.Marshal(job.Counts)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal job counts")
	}
	warnings, err := marshalStrings(job.Warnings)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal job warnings")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO collection_jobs (id, company_ids, source_types, status, counts, warnings,
		 error, cancel_reason, created_at, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		job.ID, companies, sourceTypes, string(job.Status), counts, warnings,
		job.Error, job.CancelReason, job.CreatedAt, job.StartedAt, job.FinishedAt,
	)
	return eris.Wrapf(err, "postgres: insert job %s", job.ID)
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job *model.CollectionJob) error {
	counts, err := json.Marshal(job.Counts)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal job counts")
	}
	warnings, err := marshalStrings(job.Warnings)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal job warnings")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE collection_jobs SET status = $1, counts = $2, warnings = $3, error = $4,
		 cancel_reason = $5, started_at = $6, finished_at = $7 WHERE id = $8`,
		string(job.Status), counts, warnings, job.Error,
		job.CancelReason, job.StartedAt, job.FinishedAt, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "job %s", job.ID)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.CollectionJob, error) {
	var j model.CollectionJob
	var companies, sourceTypes, counts, warnings []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, company_ids, source_types, status, counts, warnings, error, cancel_reason,
		 created_at, started_at, finished_at
		 FROM collection_jobs WHERE id = $1`, id,
	).Scan(&j.ID, &companies, &sourceTypes, &j.Status, &counts, &warnings,
		&j.Error, &j.CancelReason, &j.CreatedAt, &j.StartedAt, &j.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get job %s", id)
	}
	if err := unmarshalJob(&j, companies, sourceTypes, counts, warnings); err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.CollectionJob, error) {
	query := `SELECT id, company_ids, source_types, status, counts, warnings, error, cancel_reason,
		 created_at, started_at, finished_at
		 FROM collection_jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.CompanyID != "" {
		query += fmt.Sprintf(` AND company_ids ? $%d`, argIdx)
		args = append(args, filter.CompanyID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.CollectionJob
	for rows.Next() {
		var j model.CollectionJob
		var companies, sourceTypes, counts, warnings []byte
		if err := rows.Scan(&j.ID, &companies, &sourceTypes, &j.Status, &counts, &warnings,
			&j.Error, &j.CancelReason, &j.CreatedAt, &j.StartedAt, &j.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		if err := unmarshalJob(&j, companies, sourceTypes, counts, warnings); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

// helpers

func (s *PostgresStore) scanPersonRow(row pgx.Row) (*model.Person, error) {
	var p model.Person
	var sources []byte
	err := row.Scan(&p.ID, &p.FullName, &p.NormalizedName, &p.ProfileURL, &p.Bio,
		&sources, &p.Confidence, &p.CanonicalID, &p.Version,
		&p.FirstSeenAt, &p.LastSeenAt, &p.MergedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: scan person")
	}
	if err := json.Unmarshal(sources, &p.Sources); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal person sources")
	}
	return &p, nil
}

// versionedMiss distinguishes a stale version from a missing row.
func (s *PostgresStore) versionedMiss(ctx context.Context, table, id string) error {
	var exists int
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s WHERE id = $1`, table), id).Scan(&exists)
	if err != nil {
		return eris.Wrapf(err, "postgres: check %s %s", table, id)
	}
	if exists > 0 {
		return eris.Wrapf(ErrVersionConflict, "%s %s", table, id)
	}
	return eris.Wrapf(ErrNotFound, "%s %s", table, id)
}

func unmarshalJob(j *model.CollectionJob, companies, sourceTypes, counts, warnings []byte) error {
	if err := json.Unmarshal(companies, &j.CompanyIDs); err != nil {
		return eris.Wrap(err, "postgres: unmarshal job companies")
	}
	if err := json.Unmarshal(sourceTypes, &j.SourceTypes); err != nil {
		return eris.Wrap(err, "postgres: unmarshal job source types")
	}
	if err := json.Unmarshal(counts, &j.Counts); err != nil {
		return eris.Wrap(err, "postgres: unmarshal job counts")
	}
	if err := json.Unmarshal(warnings, &j.Warnings); err != nil {
		return eris.Wrap(err, "postgres: unmarshal job warnings")
	}
	return nil
}
