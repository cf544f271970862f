package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/org-intel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given DSN and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS persons (
	id              TEXT PRIMARY KEY,
	full_name       TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	profile_url     TEXT NOT NULL DEFAULT '',
	bio             TEXT NOT NULL DEFAULT '',
	sources         TEXT NOT NULL DEFAULT '[]',
	confidence      REAL NOT NULL DEFAULT 0,
	canonical_id    TEXT REFERENCES persons(id),
	version         INTEGER NOT NULL DEFAULT 1,
	first_seen_at   DATETIME NOT NULL,
	last_seen_at    DATETIME NOT NULL,
	merged_at       DATETIME,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
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
	is_board       INTEGER NOT NULL DEFAULT 0,
	is_interim     INTEGER NOT NULL DEFAULT 0,
	is_current     INTEGER NOT NULL DEFAULT 1,
	start_date     DATETIME,
	end_date       DATETIME,
	sources        TEXT NOT NULL DEFAULT '[]',
	confidence     REAL NOT NULL DEFAULT 0,
	version        INTEGER NOT NULL DEFAULT 1,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS org_snapshots (
	id            TEXT PRIMARY KEY,
	company_id    TEXT NOT NULL,
	snapshot_date DATETIME NOT NULL,
	roots         TEXT NOT NULL,
	multi_root    INTEGER NOT NULL DEFAULT 0,
	node_count    INTEGER NOT NULL,
	max_depth     INTEGER NOT NULL,
	created_at    DATETIME NOT NULL
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
	effective_date DATETIME NOT NULL,
	dedup_day      TEXT NOT NULL,
	significance   REAL NOT NULL,
	sources        TEXT NOT NULL DEFAULT '[]',
	created_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS collection_jobs (
	id            TEXT PRIMARY KEY,
	company_ids   TEXT NOT NULL,
	source_types  TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	counts        TEXT NOT NULL DEFAULT '{}',
	warnings      TEXT NOT NULL DEFAULT '[]',
	error         TEXT NOT NULL DEFAULT '',
	cancel_reason TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL,
	started_at    DATETIME,
	finished_at   DATETIME
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return eris.Wrapf(ErrUnavailable, "sqlite: ping: %v", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Persons

const personColumns = `id, full_name, normalized_name, profile_url, bio, sources, confidence,
	canonical_id, version, first_seen_at, last_seen_at, merged_at, created_at, updated_at`

func (s *SQLiteStore) GetPerson(ctx context.Context, id string) (*model.Person, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE id = ?`, id)
	return scanPerson(row)
}

func (s *SQLiteStore) GetPersonByProfileURL(ctx context.Context, url string) (*model.Person, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons
		 WHERE profile_url = ? AND canonical_id IS NULL
		 ORDER BY last_seen_at DESC LIMIT 1`, url)
	return scanPerson(row)
}

func (s *SQLiteStore) CreatePerson(ctx context.Context, p *model.Person) error {
	sources, err := marshalStrings(p.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal person sources")
	}
	if p.Version == 0 {
		p.Version = 1
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO persons (`+personColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.FullName, p.NormalizedName, p.ProfileURL, p.Bio, sources, p.Confidence,
		p.CanonicalID, p.Version, p.FirstSeenAt, p.LastSeenAt, p.MergedAt, p.CreatedAt, p.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert person %s", p.ID)
}

func (s *SQLiteStore) UpdatePerson(ctx context.Context, p *model.Person) error {
	sources, err := marshalStrings(p.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal person sources")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE persons SET full_name = ?, normalized_name = ?, profile_url = ?, bio = ?,
		 sources = ?, confidence = ?, canonical_id = ?, last_seen_at = ?, merged_at = ?,
		 updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		p.FullName, p.NormalizedName, p.ProfileURL, p.Bio,
		sources, p.Confidence, p.CanonicalID, p.LastSeenAt, p.MergedAt,
		p.UpdatedAt, p.ID, p.Version,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update person %s", p.ID)
	}
	if err := s.checkVersioned(ctx, res, "persons", p.ID); err != nil {
		return err
	}
	p.Version++
	return nil
}

// Roles

const roleColumns = `id, company_id, person_id, raw_title, title, title_level, seniority_rank,
	department, reports_to, is_board, is_interim, is_current, start_date, end_date,
	sources, confidence, version, created_at, updated_at`

func (s *SQLiteStore) CreateRole(ctx context.Context, r *model.Role) error {
	sources, err := marshalStrings(r.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal role sources")
	}
	if r.Version == 0 {
		r.Version = 1
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO roles (`+roleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CompanyID, r.PersonID, r.RawTitle, r.Title, string(r.TitleLevel), r.SeniorityRank,
		r.Department, r.ReportsTo, r.IsBoard, r.IsInterim, r.IsCurrent, r.StartDate, r.EndDate,
		sources, r.Confidence, r.Version, r.CreatedAt, r.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert role %s", r.ID)
}

func (s *SQLiteStore) UpdateRole(ctx context.Context, r *model.Role) error {
	sources, err := marshalStrings(r.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal role sources")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE roles SET raw_title = ?, title = ?, title_level = ?, seniority_rank = ?,
		 department = ?, reports_to = ?, is_board = ?, is_interim = ?, is_current = ?,
		 start_date = ?, end_date = ?, sources = ?, confidence = ?, updated_at = ?,
		 version = version + 1
		 WHERE id = ? AND version = ?`,
		r.RawTitle, r.Title, string(r.TitleLevel), r.SeniorityRank,
		r.Department, r.ReportsTo, r.IsBoard, r.IsInterim, r.IsCurrent,
		r.StartDate, r.EndDate, sources, r.Confidence, r.UpdatedAt,
		r.ID, r.Version,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update role %s", r.ID)
	}
	if err := s.checkVersioned(ctx, res, "roles", r.ID); err != nil {
		return err
	}
	r.Version++
	return nil
}

func (s *SQLiteStore) ReassignRoles(ctx context.Context, fromPersonID, toPersonID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE roles SET person_id = ?, updated_at = ? WHERE person_id = ?`,
		toPersonID, time.Now().UTC(), fromPersonID,
	)
	return eris.Wrapf(err, "sqlite: reassign roles %s -> %s", fromPersonID, toPersonID)
}

func (s *SQLiteStore) ListRoster(ctx context.Context, companyID string, currentOnly bool) ([]model.RosterEntry, error) {
	query := `SELECT
		 r.id, r.company_id, r.person_id, r.raw_title, r.title, r.title_level, r.seniority_rank,
		 r.department, r.reports_to, r.is_board, r.is_interim, r.is_current, r.start_date, r.end_date,
		 r.sources, r.confidence, r.version, r.created_at, r.updated_at,
		 p.id, p.full_name, p.normalized_name, p.profile_url, p.bio, p.sources, p.confidence,
		 p.canonical_id, p.version, p.first_seen_at, p.last_seen_at, p.merged_at, p.created_at, p.updated_at
		 FROM roles r JOIN persons p ON p.id = r.person_id
		 WHERE r.company_id = ?`
	if currentOnly {
		query += ` AND r.is_current = 1`
	}
	query += ` ORDER BY r.seniority_rank DESC, r.created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list roster")
	}
	defer rows.Close()

	var roster []model.RosterEntry
	for rows.Next() {
		e, err := scanRosterEntry(rows)
		if err != nil {
			return nil, err
		}
		roster = append(roster, *e)
	}
	return roster, eris.Wrap(rows.Err(), "sqlite: list roster iterate")
}

// Snapshots

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *model.OrgSnapshot) error {
	roots, err := json.Marshal(snap.Roots)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal snapshot roots")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO org_snapshots (id, company_id, snapshot_date, roots, multi_root, node_count, max_depth, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.CompanyID, snap.Date, string(roots), snap.MultiRoot, snap.NodeCount, snap.MaxDepth, snap.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert snapshot %s", snap.ID)
}

func (s *SQLiteStore) GetLatestSnapshot(ctx context.Context, companyID string) (*model.OrgSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, company_id, snapshot_date, roots, multi_root, node_count, max_depth, created_at
		 FROM org_snapshots WHERE company_id = ?
		 ORDER BY created_at DESC LIMIT 1`, companyID)

	var snap model.OrgSnapshot
	var rootsJSON string
	err := row.Scan(&snap.ID, &snap.CompanyID, &snap.Date, &rootsJSON,
		&snap.MultiRoot, &snap.NodeCount, &snap.MaxDepth, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get latest snapshot")
	}
	if err := json.Unmarshal([]byte(rootsJSON), &snap.Roots); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal snapshot roots")
	}
	return &snap, nil
}

// Change events

func (s *SQLiteStore) SaveChangeEvents(ctx context.Context, events []model.ChangeEvent) (int, error) {
	saved := 0
	for i := range events {
		inserted, err := s.insertEvent(ctx, &events[i])
		if err != nil {
			return saved, err
		}
		if inserted {
			saved++
		}
	}
	return saved, nil
}

func (s *SQLiteStore) SaveChangeEvent(ctx context.Context, ev *model.ChangeEvent) error {
	inserted, err := s.insertEvent(ctx, ev)
	if err != nil {
		return err
	}
	if !inserted {
		return eris.Wrapf(ErrDuplicateEvent, "%s %s", ev.Type, ev.DedupKeyName())
	}
	return nil
}

func (s *SQLiteStore) insertEvent(ctx context.Context, ev *model.ChangeEvent) (bool, error) {
	sources, err := marshalStrings(ev.Sources)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: marshal event sources")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO change_events (id, company_id, person_id, person_name, change_type,
		 old_title, new_title, old_rank, new_rank, title_level, effective_date, dedup_day,
		 significance, sources, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		ev.ID, ev.CompanyID, ev.PersonID, ev.PersonName, string(ev.Type),
		ev.OldTitle, ev.NewTitle, ev.OldRank, ev.NewRank, string(ev.TitleLevel),
		ev.EffectiveDate, dedupBucket(ev.EffectiveDate),
		ev.Significance, sources, ev.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert event %s", ev.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListChangeEvents(ctx context.Context, filter model.ChangeFilter) ([]model.ChangeEvent, error) {
	query := `SELECT id, company_id, person_id, person_name, change_type, old_title, new_title,
		 old_rank, new_rank, title_level, effective_date, significance, sources, created_at
		 FROM change_events WHERE 1=1`
	var args []any

	if filter.CompanyID != "" {
		query += ` AND company_id = ?`
		args = append(args, filter.CompanyID)
	}
	if len(filter.Types) > 0 {
		query += ` AND change_type IN (?` + strings.Repeat(", ?", len(filter.Types)-1) + `)`
		for _, t := range filter.Types {
			args = append(args, string(t))
		}
	}
	if filter.TitleLevel != "" {
		query += ` AND title_level = ?`
		args = append(args, string(filter.TitleLevel))
	}
	if filter.Since != nil {
		query += ` AND effective_date >= ?`
		args = append(args, *filter.Since)
	}
	if filter.Until != nil {
		query += ` AND effective_date <= ?`
		args = append(args, *filter.Until)
	}
	query += ` ORDER BY effective_date DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list events")
	}
	defer rows.Close()

	var events []model.ChangeEvent
	for rows.Next() {
		var ev model.ChangeEvent
		var sourcesJSON string
		if err := rows.Scan(&ev.ID, &ev.CompanyID, &ev.PersonID, &ev.PersonName, &ev.Type,
			&ev.OldTitle, &ev.NewTitle, &ev.OldRank, &ev.NewRank, &ev.TitleLevel,
			&ev.EffectiveDate, &ev.Significance, &sourcesJSON, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		if err := json.Unmarshal([]byte(sourcesJSON), &ev.Sources); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal event sources")
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list events iterate")
}

// Jobs

func (s *SQLiteStore) CreateJob(ctx context.Context, job *model.CollectionJob) error {
	companies, err := marshalStrings(job.CompanyIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal job companies")
	}
	sourceTypes, err := json.Marshal(job.SourceTypes)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal job source types")
	}
	counts, err := json.Marshal(job.Counts)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal job counts")
	}
	warnings, err := marshalStrings(job.Warnings)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal job warnings")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO collection_jobs (id, company_ids, source_types, status, counts, warnings,
		 error, cancel_reason, created_at, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, companies, string(sourceTypes), string(job.Status), string(counts), warnings,
		job.Error, job.CancelReason, job.CreatedAt, job.StartedAt, job.FinishedAt,
	)
	return eris.Wrapf(err, "sqlite: insert job %s", job.ID)
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, job *model.CollectionJob) error {
	counts, err := json.Marshal(job.Counts)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal job counts")
	}
	warnings, err := marshalStrings(job.Warnings)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal job warnings")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE collection_jobs SET status = ?, counts = ?, warnings = ?, error = ?,
		 cancel_reason = ?, started_at = ?, finished_at = ? WHERE id = ?`,
		string(job.Status), string(counts), warnings, job.Error,
		job.CancelReason, job.StartedAt, job.FinishedAt, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", job.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "job %s", job.ID)
	}
	return nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.CollectionJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, company_ids, source_types, status, counts, warnings, error, cancel_reason,
		 created_at, started_at, finished_at
		 FROM collection_jobs WHERE id = ?`, id)
	return scanJob(row)
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.CollectionJob, error) {
	query := `SELECT id, company_ids, source_types, status, counts, warnings, error, cancel_reason,
		 created_at, started_at, finished_at
		 FROM collection_jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.CompanyID != "" {
		query += ` AND company_ids LIKE ?`
		args = append(args, `%"`+filter.CompanyID+`"%`)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.CollectionJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

// helpers

// checkVersioned distinguishes a stale version from a missing row after
// a zero-row optimistic update.
func (s *SQLiteStore) checkVersioned(ctx context.Context, res sql.Result, table, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s WHERE id = ?`, table), id).Scan(&exists)
	if err != nil {
		return eris.Wrapf(err, "sqlite: check %s %s", table, id)
	}
	if exists > 0 {
		return eris.Wrapf(ErrVersionConflict, "%s %s", table, id)
	}
	return eris.Wrapf(ErrNotFound, "%s %s", table, id)
}

func marshalStrings(ss []string) (string, error) {
	if ss == nil {
		ss = []string{}
	}
	b, err := json.Marshal(ss)
	return string(b), err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPerson(row scannable) (*model.Person, error) {
	var p model.Person
	var sourcesJSON string
	err := row.Scan(&p.ID, &p.FullName, &p.NormalizedName, &p.ProfileURL, &p.Bio,
		&sourcesJSON, &p.Confidence, &p.CanonicalID, &p.Version,
		&p.FirstSeenAt, &p.LastSeenAt, &p.MergedAt, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan person")
	}
	if err := json.Unmarshal([]byte(sourcesJSON), &p.Sources); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal person sources")
	}
	return &p, nil
}

func scanRosterEntry(row scannable) (*model.RosterEntry, error) {
	var e model.RosterEntry
	var roleSources, personSources string
	err := row.Scan(
		&e.Role.ID, &e.Role.CompanyID, &e.Role.PersonID, &e.Role.RawTitle, &e.Role.Title,
		&e.Role.TitleLevel, &e.Role.SeniorityRank, &e.Role.Department, &e.Role.ReportsTo,
		&e.Role.IsBoard, &e.Role.IsInterim, &e.Role.IsCurrent, &e.Role.StartDate, &e.Role.EndDate,
		&roleSources, &e.Role.Confidence, &e.Role.Version, &e.Role.CreatedAt, &e.Role.UpdatedAt,
		&e.Person.ID, &e.Person.FullName, &e.Person.NormalizedName, &e.Person.ProfileURL, &e.Person.Bio,
		&personSources, &e.Person.Confidence, &e.Person.CanonicalID, &e.Person.Version,
		&e.Person.FirstSeenAt, &e.Person.LastSeenAt, &e.Person.MergedAt, &e.Person.CreatedAt, &e.Person.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan roster entry")
	}
	if err := json.Unmarshal([]byte(roleSources), &e.Role.Sources); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal role sources")
	}
	if err := json.Unmarshal([]byte(personSources), &e.Person.Sources); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal person sources")
	}
	return &e, nil
}

func scanJob(row scannable) (*model.CollectionJob, error) {
	var j model.CollectionJob
	var companies, sourceTypes, counts, warnings string
	err := row.Scan(&j.ID, &companies, &sourceTypes, &j.Status, &counts, &warnings,
		&j.Error, &j.CancelReason, &j.CreatedAt, &j.StartedAt, &j.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}
	if err := json.Unmarshal([]byte(companies), &j.CompanyIDs); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal job companies")
	}
	if err := json.Unmarshal([]byte(sourceTypes), &j.SourceTypes); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal job source types")
	}
	if err := json.Unmarshal([]byte(counts), &j.Counts); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal job counts")
	}
	if err := json.Unmarshal([]byte(warnings), &j.Warnings); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal job warnings")
	}
	return &j, nil
}
