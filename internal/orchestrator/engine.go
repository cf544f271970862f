// Package orchestrator drives collection runs: it fans out source
// tasks, feeds their candidates through normalization and entity
// resolution, rebuilds the org chart when the roster moved, and records
// the resulting change events, all under one job with aggregate
// progress counts.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/org-intel/internal/changes"
	"github.com/sells-group/org-intel/internal/config"
	"github.com/sells-group/org-intel/internal/model"
	"github.com/sells-group/org-intel/internal/normalize"
	"github.com/sells-group/org-intel/internal/orgchart"
	"github.com/sells-group/org-intel/internal/resilience"
	"github.com/sells-group/org-intel/internal/resolve"
	"github.com/sells-group/org-intel/internal/store"
)

var (
	// ErrSourceTaskFailed wraps a source task failure recorded as a job
	// warning.
	ErrSourceTaskFailed = eris.New("orchestrator: source task failed")

	// ErrJobCancelled marks a job stopped by caller cancellation.
	ErrJobCancelled = eris.New("orchestrator: job cancelled")

	// ErrUnknownSource is returned when a job requests a source type no
	// registered Source provides.
	ErrUnknownSource = eris.New("orchestrator: unknown source type")

	// ErrJobNotFound is returned for job ids the store does not know.
	ErrJobNotFound = eris.New("orchestrator: job not found")
)

// Engine is the collection orchestrator. One Engine serves all jobs in
// the process; per-domain rate limiters and the resolver's per-company
// locks are shared across them.
type Engine struct {
	cfg        *config.Config
	store      store.Store
	normalizer *normalize.Normalizer
	resolver   *resolve.Resolver
	detector   changes.Detector
	sources    map[model.SourceType]Source
	limiters   *Limiters
	retry      resilience.RetryConfig

	mu      sync.Mutex
	targets map[string][]CompanyRef
}

// New creates an Engine with the given sources registered.
func New(cfg *config.Config, st store.Store, n *normalize.Normalizer, r *resolve.Resolver, sources ...Source) *Engine {
	byType := make(map[model.SourceType]Source, len(sources))
	for _, s := range sources {
		byType[s.Type()] = s
	}
	retry := resilience.DefaultRetryConfig()
	if cfg.Collect.MaxRetries > 0 {
		retry.MaxAttempts = cfg.Collect.MaxRetries
	}
	return &Engine{
		cfg:        cfg,
		store:      st,
		normalizer: n,
		resolver:   r,
		sources:    byType,
		limiters:   NewLimiters(cfg.RateLimit),
		retry:      retry,
		targets:    make(map[string][]CompanyRef),
	}
}

// SubmitJob validates the request and persists a pending job. The job
// does not run until Run is called with its id.
func (e *Engine) SubmitJob(ctx context.Context, companies []CompanyRef, sourceTypes []model.SourceType) (*model.CollectionJob, error) {
	if len(companies) == 0 {
		return nil, eris.New("orchestrator: no companies requested")
	}
	if len(sourceTypes) == 0 {
		for t := range e.sources {
			sourceTypes = append(sourceTypes, t)
		}
	}
	for _, t := range sourceTypes {
		if _, ok := e.sources[t]; !ok {
			return nil, eris.Wrapf(ErrUnknownSource, "%s", t)
		}
	}

	ids := make([]string, len(companies))
	for i, c := range companies {
		ids[i] = c.ID
	}
	job := &model.CollectionJob{
		ID:          uuid.New().String(),
		CompanyIDs:  ids,
		SourceTypes: sourceTypes,
		Status:      model.JobStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.store.CreateJob(ctx, job); err != nil {
		return nil, eris.Wrap(err, "orchestrator: create job")
	}

	e.mu.Lock()
	e.targets[job.ID] = companies
	e.mu.Unlock()

	zap.L().Info("job submitted",
		zap.String("job_id", job.ID),
		zap.Int("companies", len(companies)),
		zap.Int("sources", len(sourceTypes)),
	)
	return job, nil
}

// Run executes a submitted job to completion. Per-record and per-source
// failures become warnings; persistence failures, the job timeout and
// caller cancellation fail the job. Partial counts are persisted either
// way, so GetJobStatus reports progress even for failed jobs.
func (e *Engine) Run(ctx context.Context, jobID string) (*model.CollectionJob, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, eris.Wrapf(ErrJobNotFound, "%s", jobID)
	}
	if job.Status.Terminal() {
		return job, nil
	}

	e.mu.Lock()
	companies := e.targets[jobID]
	delete(e.targets, jobID)
	e.mu.Unlock()
	if len(companies) == 0 {
		companies = make([]CompanyRef, len(job.CompanyIDs))
		for i, id := range job.CompanyIDs {
			companies[i] = CompanyRef{ID: id}
		}
	}

	now := time.Now().UTC()
	job.Status = model.JobStatusRunning
	job.StartedAt = &now
	if err := e.store.UpdateJob(ctx, job); err != nil {
		return nil, eris.Wrap(err, "orchestrator: mark running")
	}

	jobCtx := ctx
	var cancel context.CancelFunc
	if t := e.cfg.Collect.JobTimeout(); t > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	log := zap.L().With(zap.String("component", "orchestrator"), zap.String("job_id", job.ID))

	var progress sync.Mutex
	g, gctx := errgroup.WithContext(jobCtx)
	if n := e.cfg.Batch.MaxConcurrentCompanies; n > 0 {
		g.SetLimit(n)
	}
	for _, company := range companies {
		company := company
		g.Go(func() error {
			counts, warnings, err := e.processCompany(gctx, job.SourceTypes, company, log)

			progress.Lock()
			job.Counts.Add(counts)
			job.Warnings = append(job.Warnings, warnings...)
			// Persist progress so status queries see partial counts
			// while the job is still running.
			if uerr := e.store.UpdateJob(context.WithoutCancel(gctx), job); uerr != nil && err == nil {
				err = uerr
			}
			progress.Unlock()
			return err
		})
	}
	runErr := g.Wait()

	finished := time.Now().UTC()
	job.FinishedAt = &finished
	switch {
	case runErr == nil:
		job.Status = model.JobStatusSuccess
	case ctx.Err() != nil:
		job.Status = model.JobStatusFailed
		job.CancelReason = context.Cause(ctx).Error()
		job.Error = ErrJobCancelled.Error()
	case jobCtx.Err() != nil:
		job.Status = model.JobStatusFailed
		job.Error = fmt.Sprintf("job timeout after %s", e.cfg.Collect.JobTimeout())
	default:
		job.Status = model.JobStatusFailed
		job.Error = runErr.Error()
	}

	if err := e.store.UpdateJob(context.WithoutCancel(ctx), job); err != nil {
		return job, eris.Wrap(err, "orchestrator: finalize job")
	}

	log.Info("job finished",
		zap.String("status", string(job.Status)),
		zap.Int("people_found", job.Counts.PeopleFound),
		zap.Int("changes", job.Counts.ChangesDetected),
		zap.Int("warnings", len(job.Warnings)),
	)
	if runErr != nil {
		return job, eris.Wrap(runErr, "orchestrator: run job")
	}
	return job, nil
}

// processCompany runs the full pipeline for one company: source fan-out,
// normalize, resolve, then snapshot and change detection if the roster
// moved. The returned error is job-fatal; source failures are folded
// into warnings instead.
func (e *Engine) processCompany(ctx context.Context, sourceTypes []model.SourceType, company CompanyRef, log *zap.Logger) (model.JobCounts, []string, error) {
	var counts model.JobCounts
	var warnings []string

	prevRoster, err := e.store.ListRoster(ctx, company.ID, true)
	if err != nil {
		return counts, warnings, err
	}
	since := time.Now().UTC().Add(-4 * model.DedupWindow)
	prevEvents, err := e.store.ListChangeEvents(ctx, model.ChangeFilter{
		CompanyID: company.ID,
		Since:     &since,
		Limit:     1000,
	})
	if err != nil {
		return counts, warnings, err
	}

	var state sync.Mutex
	rosterChanged := false
	sourcesSucceeded := 0
	observed := make(map[string]bool)

	g, gctx := errgroup.WithContext(ctx)
	for _, st := range sourceTypes {
		src, ok := e.sources[st]
		if !ok {
			return counts, warnings, eris.Wrapf(ErrUnknownSource, "%s", st)
		}
		g.Go(func() error {
			cands, err := e.collectFromSource(gctx, src, company)
			if err != nil {
				if gctx.Err() != nil {
					return err
				}
				// Source failures degrade to warnings; the job keeps
				// whatever the other sources produce.
				warn := fmt.Sprintf("%s: %v", src.Type(), err)
				log.Warn("source task failed",
					zap.String("company_id", company.ID),
					zap.Error(eris.Wrap(err, ErrSourceTaskFailed.Error())),
				)
				state.Lock()
				warnings = append(warnings, warn)
				state.Unlock()
				return nil
			}
			if len(cands) == 0 {
				state.Lock()
				sourcesSucceeded++
				state.Unlock()
				return nil
			}

			result := e.normalizer.Normalize(company.ID, cands)
			delta, err := e.resolver.Resolve(gctx, company.ID, company.Name, result.Accepted)
			if err != nil {
				return err
			}

			state.Lock()
			sourcesSucceeded++
			counts.PeopleFound += len(result.Accepted)
			counts.CandidatesBad += len(result.Rejected)
			for _, rej := range result.Rejected {
				warnings = append(warnings, fmt.Sprintf("%s: rejected %q: %s", src.Type(), rej.Candidate.FullName, rej.Reason))
			}
			counts.PeopleCreated += len(delta.Created)
			counts.PeopleUpdated += len(delta.Updated)
			rosterChanged = rosterChanged || delta.Changed()
			for _, roles := range [][]model.Role{delta.Created, delta.Updated, delta.Unchanged} {
				for _, r := range roles {
					observed[r.PersonID] = true
				}
			}
			state.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return counts, warnings, err
	}

	runDate := time.Now().UTC()

	// The run's union of observed people is the authoritative roster: a
	// current role whose person no source reported anymore gets ended so
	// the detector can see the departure. Skipped when every source
	// failed, because that proves nothing about who left.
	if sourcesSucceeded > 0 {
		ended, err := e.endUnobservedRoles(ctx, company.ID, observed, runDate)
		if err != nil {
			return counts, warnings, err
		}
		rosterChanged = rosterChanged || ended > 0
	}

	if rosterChanged {
		curr, err := e.store.ListRoster(ctx, company.ID, true)
		if err != nil {
			return counts, warnings, err
		}

		snap, err := orgchart.Build(company.ID, curr, runDate)
		if err != nil {
			return counts, warnings, err
		}
		if snap != nil {
			if err := e.store.SaveSnapshot(ctx, snap); err != nil {
				return counts, warnings, err
			}
			counts.SnapshotsBuilt++
		}

		// A company seen for the first time has no prior state to diff
		// against, so its initial roster emits no events.
		if len(prevRoster) > 0 {
			events := e.detector.Detect(company.ID, prevRoster, curr, prevEvents, runDate)
			saved, err := e.store.SaveChangeEvents(ctx, events)
			if err != nil {
				return counts, warnings, err
			}
			counts.ChangesDetected += saved
		}
	}

	counts.CompaniesDone = 1
	return counts, warnings, nil
}

// endUnobservedRoles closes current roles belonging to people the run
// did not observe and returns how many it ended.
func (e *Engine) endUnobservedRoles(ctx context.Context, companyID string, observed map[string]bool, runDate time.Time) (int, error) {
	curr, err := e.store.ListRoster(ctx, companyID, true)
	if err != nil {
		return 0, err
	}
	ended := 0
	for i := range curr {
		role := curr[i].Role
		if observed[role.PersonID] {
			continue
		}
		role.IsCurrent = false
		end := runDate
		role.EndDate = &end
		role.UpdatedAt = runDate
		if err := e.store.UpdateRole(ctx, &role); err != nil {
			return ended, err
		}
		ended++
	}
	return ended, nil
}

// collectFromSource runs one rate-limited, retried source call under
// the per-source timeout.
func (e *Engine) collectFromSource(ctx context.Context, src Source, company CompanyRef) ([]model.Candidate, error) {
	lim := e.limiters.For(src.Domain())
	if err := lim.Wait(ctx); err != nil {
		return nil, err
	}

	srcCtx := ctx
	var cancel context.CancelFunc
	if t := e.cfg.Collect.SourceTimeout(); t > 0 {
		srcCtx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	retry := e.retry
	retry.OnRetry = resilience.RetryLogger(string(src.Type()), company.ID)
	cands, err := resilience.DoVal(srcCtx, retry, func(ctx context.Context) ([]model.Candidate, error) {
		return src.Collect(ctx, company)
	})
	if err != nil {
		if resilience.IsRateLimited(err) {
			lim.OnRateLimit()
		}
		if srcCtx.Err() != nil && ctx.Err() == nil {
			return nil, eris.Wrapf(err, "timeout after %s", e.cfg.Collect.SourceTimeout())
		}
		return nil, err
	}
	lim.OnSuccess()
	return cands, nil
}

// GetJobStatus returns the job with its latest persisted counts.
func (e *Engine) GetJobStatus(ctx context.Context, jobID string) (*model.CollectionJob, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, eris.Wrapf(ErrJobNotFound, "%s", jobID)
	}
	return job, nil
}

// GetCurrentRoster returns the company's current resolved roster.
func (e *Engine) GetCurrentRoster(ctx context.Context, companyID string) ([]model.RosterEntry, error) {
	return e.store.ListRoster(ctx, companyID, true)
}

// GetLatestSnapshot returns the most recent org snapshot, or nil when
// the company has never produced one.
func (e *Engine) GetLatestSnapshot(ctx context.Context, companyID string) (*model.OrgSnapshot, error) {
	return e.store.GetLatestSnapshot(ctx, companyID)
}

// GetChangeFeed returns change events matching the filter, newest first.
func (e *Engine) GetChangeFeed(ctx context.Context, filter model.ChangeFilter) ([]model.ChangeEvent, error) {
	return e.store.ListChangeEvents(ctx, filter)
}
