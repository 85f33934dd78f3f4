// Package decay keeps stored classifications current as activity ages. The
// sweep re-derives momentum for leads that still carry some, and a backfill
// variant rescores every lead from scratch.
package decay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lead_scoring_backend/internal/scoring/classify"
	"lead_scoring_backend/internal/scoring/domain"
	"lead_scoring_backend/internal/scoring/repository"
	"lead_scoring_backend/internal/scoring/rules"
	"lead_scoring_backend/internal/scoring/service"
	"lead_scoring_backend/platform/apperr"
	"lead_scoring_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	JobDecay          = "score_decay"
	JobRecalculateAll = "score_recalculate_all"

	defaultBatchSize   = 100
	defaultConcurrency = 8
	maxRecordedChanges = 500
)

// Store is what the sweep reads.
type Store interface {
	repository.ScoreReader
	repository.LeadReader
	repository.ActivityStore
}

// Config bounds the load a sweep puts on the store.
type Config struct {
	MinMomentum int
	BatchSize   int
	Concurrency int
	BatchDelay  time.Duration
}

// Options are per-run switches.
type Options struct {
	DryRun bool
}

// Change records one lead whose stored result differs from the recomputed one.
type Change struct {
	LeadID                 uuid.UUID `json:"leadId"`
	PreviousClassification string    `json:"previousClassification,omitempty"`
	Classification         string    `json:"classification"`
	PreviousMomentum       int       `json:"previousMomentum"`
	Momentum               int       `json:"momentum"`
}

// Stats summarises a run.
type Stats struct {
	Job               string        `json:"job"`
	Processed         int           `json:"processed"`
	Updated           int           `json:"updated"`
	Unchanged         int           `json:"unchanged"`
	Skipped           int           `json:"skipped"`
	ErrorsEncountered int           `json:"errorsEncountered"`
	DryRun            bool          `json:"dryRun"`
	Cancelled         bool          `json:"cancelled"`
	Duration          time.Duration `json:"-"`
	DurationMs        int64         `json:"durationMs"`
	Changes           []Change      `json:"changes"`
}

type collector struct {
	mu    sync.Mutex
	stats Stats
}

func (c *collector) unchanged() {
	c.mu.Lock()
	c.stats.Processed++
	c.stats.Unchanged++
	c.mu.Unlock()
}

// skipped counts a lead whose stored score moved on while it was being
// processed.
func (c *collector) skipped() {
	c.mu.Lock()
	c.stats.Processed++
	c.stats.Skipped++
	c.mu.Unlock()
}

func (c *collector) failed() {
	c.mu.Lock()
	c.stats.Processed++
	c.stats.ErrorsEncountered++
	c.mu.Unlock()
}

func (c *collector) updated(change Change) {
	c.mu.Lock()
	c.stats.Processed++
	c.stats.Updated++
	if len(c.stats.Changes) < maxRecordedChanges {
		c.stats.Changes = append(c.stats.Changes, change)
	}
	c.mu.Unlock()
}

// Job runs decay sweeps and full recalculations.
type Job struct {
	engine *service.Engine
	store  Store
	rules  rules.Provider
	cfg    Config
	log    *logger.Logger
}

// New creates a Job. Zero config values fall back to defaults.
func New(engine *service.Engine, store Store, provider rules.Provider, cfg Config, log *logger.Logger) *Job {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.MinMomentum <= 0 {
		cfg.MinMomentum = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Job{engine: engine, store: store, rules: provider, cfg: cfg, log: log}
}

// RunDecay re-derives momentum and classification for every lead whose
// stored momentum is at least MinMomentum, keeping the stored total. A lead
// is written only when its momentum score or classification changed.
func (j *Job) RunDecay(ctx context.Context, opts Options) (Stats, error) {
	set, err := j.rules.Snapshot(ctx)
	if err != nil {
		return Stats{Job: JobDecay, DryRun: opts.DryRun}, apperr.Wrap(apperr.KindUnavailable, "scoring rules unavailable", err).WithOp("decay.RunDecay")
	}
	tiers := classify.TiersFromThresholds(set.Thresholds)
	now := j.engine.Now()

	fetch := func(ctx context.Context, after uuid.UUID) ([]domain.LeadScore, uuid.UUID, error) {
		batch, err := j.store.ListDecayCandidates(ctx, j.cfg.MinMomentum, after, j.cfg.BatchSize)
		if err != nil || len(batch) == 0 {
			return nil, after, err
		}
		return batch, batch[len(batch)-1].LeadID, nil
	}

	return run(ctx, j, JobDecay, opts, fetch, func(ctx context.Context, stored domain.LeadScore, c *collector) {
		j.decayLead(ctx, stored, tiers, now, opts, c)
	})
}

func (j *Job) decayLead(ctx context.Context, candidate domain.LeadScore, tiers classify.Tiers, now time.Time, opts Options, c *collector) {
	// The page may be stale by now; derive from the current row.
	stored, err := j.store.GetScore(ctx, candidate.LeadID)
	if errors.Is(err, repository.ErrNotFound) {
		c.skipped()
		return
	}
	if err != nil {
		j.log.Warn("decay: load score failed", "lead_id", candidate.LeadID, "error", err)
		c.failed()
		return
	}

	activities, err := j.store.ListActivities(ctx, stored.LeadID, j.engine.ActivityLimit())
	if err != nil {
		j.log.Warn("decay: load activities failed", "lead_id", stored.LeadID, "error", err)
		c.failed()
		return
	}

	next := service.Reclassify(stored, activities, tiers, now)
	if next.Momentum.Score == stored.Momentum.Score && next.Classification == stored.Classification {
		c.unchanged()
		return
	}

	if !opts.DryRun {
		err := j.engine.Persist(ctx, &stored, next, domain.TriggerDecay)
		if errors.Is(err, repository.ErrStaleScore) {
			j.log.Info("decay: score changed during sweep, skipping", "lead_id", stored.LeadID)
			c.skipped()
			return
		}
		if err != nil {
			j.log.Warn("decay: persist failed", "lead_id", stored.LeadID, "error", err)
			c.failed()
			return
		}
	}

	c.updated(Change{
		LeadID:                 stored.LeadID,
		PreviousClassification: stored.Classification.String(),
		Classification:         next.Classification.String(),
		PreviousMomentum:       stored.Momentum.Score,
		Momentum:               next.Momentum.Score,
	})
}

// RecalculateAll rescores every lead from scratch, regardless of momentum.
// Leads whose result is unchanged are not written.
func (j *Job) RecalculateAll(ctx context.Context, opts Options) (Stats, error) {
	set, err := j.rules.Snapshot(ctx)
	if err != nil {
		return Stats{Job: JobRecalculateAll, DryRun: opts.DryRun}, apperr.Wrap(apperr.KindUnavailable, "scoring rules unavailable", err).WithOp("decay.RecalculateAll")
	}

	fetch := func(ctx context.Context, after uuid.UUID) ([]uuid.UUID, uuid.UUID, error) {
		ids, err := j.store.ListLeadIDs(ctx, after, j.cfg.BatchSize)
		if err != nil || len(ids) == 0 {
			return nil, after, err
		}
		return ids, ids[len(ids)-1], nil
	}

	return run(ctx, j, JobRecalculateAll, opts, fetch, func(ctx context.Context, leadID uuid.UUID, c *collector) {
		j.recalculateLead(ctx, set, leadID, opts, c)
	})
}

func (j *Job) recalculateLead(ctx context.Context, set domain.RuleSet, leadID uuid.UUID, opts Options, c *collector) {
	result, err := j.engine.RecalculateWith(ctx, set, leadID, domain.TriggerBackfill, true)
	if err != nil {
		j.log.Warn("recalculate: lead failed", "lead_id", leadID, "error", err)
		c.failed()
		return
	}
	if !result.Changed {
		c.unchanged()
		return
	}

	if !opts.DryRun {
		err := j.engine.Persist(ctx, result.Previous, result.Score, domain.TriggerBackfill)
		if errors.Is(err, repository.ErrStaleScore) {
			j.log.Info("recalculate: score changed during sweep, skipping", "lead_id", leadID)
			c.skipped()
			return
		}
		if err != nil {
			j.log.Warn("recalculate: persist failed", "lead_id", leadID, "error", err)
			c.failed()
			return
		}
	}

	change := Change{
		LeadID:         leadID,
		Classification: result.Score.Classification.String(),
		Momentum:       result.Score.Momentum.Score,
	}
	if result.Previous != nil {
		change.PreviousClassification = result.Previous.Classification.String()
		change.PreviousMomentum = result.Previous.Momentum.Score
	}
	c.updated(change)
}

// run pages through items, processing each page with a bounded worker pool.
// Cancellation is checked before each lead; a lead that has started runs to
// completion on a context detached from ctx.
func run[T any](ctx context.Context, j *Job, name string, opts Options, fetch func(context.Context, uuid.UUID) ([]T, uuid.UUID, error), process func(context.Context, T, *collector)) (Stats, error) {
	started := time.Now()
	c := &collector{stats: Stats{Job: name, DryRun: opts.DryRun, Changes: []Change{}}}

	var limiter *rate.Limiter
	if j.cfg.BatchDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(j.cfg.BatchDelay), 1)
	}

	cursor := uuid.Nil
	firstPage := true
	for {
		if ctx.Err() != nil {
			c.stats.Cancelled = true
			break
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				c.stats.Cancelled = true
				break
			}
		}

		batch, next, err := fetch(ctx, cursor)
		if err != nil {
			if firstPage {
				return c.stats, fmt.Errorf("%s: list leads: %w", name, err)
			}
			j.log.Error("batch fetch failed, stopping sweep", "job", name, "error", err)
			c.stats.ErrorsEncountered++
			break
		}
		firstPage = false
		if len(batch) == 0 {
			break
		}
		cursor = next

		var g errgroup.Group
		g.SetLimit(j.cfg.Concurrency)
		for _, item := range batch {
			if ctx.Err() != nil {
				c.stats.Cancelled = true
				break
			}
			g.Go(func() error {
				process(context.WithoutCancel(ctx), item, c)
				return nil
			})
		}
		_ = g.Wait()

		if c.stats.Cancelled || len(batch) < j.cfg.BatchSize {
			break
		}
	}

	c.stats.Duration = time.Since(started)
	c.stats.DurationMs = c.stats.Duration.Milliseconds()
	j.log.WithContext(ctx).JobSummary(name, c.stats.Processed, c.stats.Updated, c.stats.ErrorsEncountered, opts.DryRun, c.stats.Duration)
	return c.stats, nil
}
