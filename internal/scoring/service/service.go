// Package service orchestrates a single-lead recalculation: it pulls the rule
// snapshot, the lead and its recent activities, runs the pure scoring
// packages and persists the result.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lead_scoring_backend/internal/events"
	"lead_scoring_backend/internal/scoring/aggregator"
	"lead_scoring_backend/internal/scoring/classify"
	"lead_scoring_backend/internal/scoring/domain"
	"lead_scoring_backend/internal/scoring/momentum"
	"lead_scoring_backend/internal/scoring/repository"
	"lead_scoring_backend/internal/scoring/rules"
	"lead_scoring_backend/platform/apperr"
	"lead_scoring_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	DefaultActivityLimit = 100
	defaultHistoryLimit  = 50
	maxHistoryLimit      = 500
)

// Clock returns the reference time for a recalculation.
type Clock func() time.Time

// Store is the persistence surface the engine needs.
type Store interface {
	repository.LeadReader
	repository.ActivityStore
	repository.ScoreReader
	repository.ScoreWriter
}

// Result is the outcome of one recalculation.
type Result struct {
	Score     domain.LeadScore  `json:"score"`
	Previous  *domain.LeadScore `json:"previous,omitempty"`
	Changed   bool              `json:"changed"`
	Persisted bool              `json:"persisted"`
}

// Engine computes and stores lead scores.
type Engine struct {
	rules         rules.Provider
	store         Store
	aggregator    *aggregator.Aggregator
	bus           events.Bus
	log           *logger.Logger
	now           Clock
	activityLimit int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(e *Engine) { e.now = clock }
}

// WithActivityLimit caps how many recent activities are read per lead.
func WithActivityLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.activityLimit = limit
		}
	}
}

// WithAggregator replaces the default aggregator, e.g. to register extra fields.
func WithAggregator(agg *aggregator.Aggregator) Option {
	return func(e *Engine) { e.aggregator = agg }
}

// New creates an Engine. The bus may be nil.
func New(provider rules.Provider, store Store, bus events.Bus, log *logger.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	e := &Engine{
		rules:         provider,
		store:         store,
		aggregator:    aggregator.New(nil),
		bus:           bus,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
		activityLimit: DefaultActivityLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the engine's current reference time.
func (e *Engine) Now() time.Time {
	return e.now()
}

// ActivityLimit is the per-lead activity fetch cap.
func (e *Engine) ActivityLimit() int {
	return e.activityLimit
}

// Compute derives a full score from scratch.
func (e *Engine) Compute(set domain.RuleSet, lead domain.Lead, activities []domain.Activity, now time.Time) domain.LeadScore {
	breakdown := e.aggregator.Score(set, lead, activities, now)
	m := momentum.Calculate(activities, now)
	result := classify.New(classify.TiersFromThresholds(set.Thresholds)).Evaluate(breakdown.Total, m, now)

	return domain.LeadScore{
		LeadID:         lead.ID,
		Breakdown:      breakdown,
		Classification: result.Classification,
		Reason:         result.Reason,
		Momentum:       m,
		CalculatedAt:   now,
	}
}

// Reclassify recomputes momentum and classification for a stored score
// while keeping its breakdown.
func Reclassify(stored domain.LeadScore, activities []domain.Activity, tiers classify.Tiers, now time.Time) domain.LeadScore {
	m := momentum.Calculate(activities, now)
	result := classify.New(tiers).Evaluate(stored.Breakdown.Total, m, now)

	next := stored
	next.Momentum = m
	next.Classification = result.Classification
	next.Reason = result.Reason
	next.CalculatedAt = now
	return next
}

// Recalculate rescores one lead and persists the result.
func (e *Engine) Recalculate(ctx context.Context, leadID uuid.UUID, trigger domain.Trigger) (Result, error) {
	set, err := e.rules.Snapshot(ctx)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindUnavailable, "scoring rules unavailable", err).WithOp("scoring.Recalculate")
	}
	return e.recalculate(ctx, set, leadID, trigger, false)
}

// Preview computes a lead's score without storing it.
func (e *Engine) Preview(ctx context.Context, leadID uuid.UUID) (Result, error) {
	set, err := e.rules.Snapshot(ctx)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindUnavailable, "scoring rules unavailable", err).WithOp("scoring.Preview")
	}
	return e.recalculate(ctx, set, leadID, domain.TriggerManual, true)
}

// RecalculateWith rescores a lead against an already loaded rule set. Batch
// jobs use it to share one snapshot across a sweep.
func (e *Engine) RecalculateWith(ctx context.Context, set domain.RuleSet, leadID uuid.UUID, trigger domain.Trigger, dryRun bool) (Result, error) {
	return e.recalculate(ctx, set, leadID, trigger, dryRun)
}

func (e *Engine) recalculate(ctx context.Context, set domain.RuleSet, leadID uuid.UUID, trigger domain.Trigger, dryRun bool) (Result, error) {
	lead, err := e.store.GetLead(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Result{}, apperr.NotFound("lead not found")
		}
		return Result{}, fmt.Errorf("load lead %s: %w", leadID, err)
	}

	activities, err := e.store.ListActivities(ctx, leadID, e.activityLimit)
	if err != nil {
		return Result{}, fmt.Errorf("load activities for lead %s: %w", leadID, err)
	}

	var previous *domain.LeadScore
	stored, err := e.store.GetScore(ctx, leadID)
	switch {
	case err == nil:
		previous = &stored
	case !errors.Is(err, repository.ErrNotFound):
		return Result{}, fmt.Errorf("load stored score for lead %s: %w", leadID, err)
	}

	score := e.Compute(set, lead, activities, e.now())
	result := Result{Score: score, Previous: previous, Changed: Changed(previous, score)}
	if dryRun {
		return result, nil
	}

	if err := e.store.SaveScore(ctx, score, trigger, ChangeReason(previous, score)); err != nil {
		return Result{}, fmt.Errorf("save score for lead %s: %w", leadID, err)
	}
	result.Persisted = true
	e.announce(ctx, previous, score, trigger)

	return result, nil
}

// Persist stores an already computed score, provided the stored row is still
// the one it was derived from. A newer row makes it fail with
// repository.ErrStaleScore and leaves storage untouched.
func (e *Engine) Persist(ctx context.Context, previous *domain.LeadScore, score domain.LeadScore, trigger domain.Trigger) error {
	if err := e.store.SaveScoreIfCurrent(ctx, score, previous, trigger, ChangeReason(previous, score)); err != nil {
		return fmt.Errorf("save score for lead %s: %w", score.LeadID, err)
	}
	e.announce(ctx, previous, score, trigger)
	return nil
}

func (e *Engine) announce(ctx context.Context, previous *domain.LeadScore, score domain.LeadScore, trigger domain.Trigger) {
	prevClass := ""
	if previous != nil {
		if previous.Classification == score.Classification {
			return
		}
		prevClass = previous.Classification.String()
	}

	e.log.WithContext(ctx).ScoreChanged(score.LeadID.String(), prevClass, score.Classification.String(),
		score.Breakdown.Total, score.Momentum.Score, string(trigger))

	if e.bus == nil {
		return
	}
	e.bus.Publish(ctx, events.LeadScoreChanged{
		BaseEvent:              events.NewBaseEvent(),
		LeadID:                 score.LeadID,
		PreviousClassification: prevClass,
		Classification:         score.Classification.String(),
		TotalScore:             score.Breakdown.Total,
		MomentumScore:          score.Momentum.Score,
		Trigger:                string(trigger),
		Reason:                 score.Reason,
	})
}

// Changed reports whether next differs from previous in total, momentum
// score or classification.
func Changed(previous *domain.LeadScore, next domain.LeadScore) bool {
	if previous == nil {
		return true
	}
	return previous.Breakdown.Total != next.Breakdown.Total ||
		previous.Momentum.Score != next.Momentum.Score ||
		previous.Classification != next.Classification
}

// ChangeReason describes a transition for the history log.
func ChangeReason(previous *domain.LeadScore, next domain.LeadScore) string {
	if previous == nil {
		return "initial score"
	}

	parts := make([]string, 0, 3)
	if previous.Classification != next.Classification {
		parts = append(parts, fmt.Sprintf("classification %s -> %s", previous.Classification, next.Classification))
	}
	if previous.Breakdown.Total != next.Breakdown.Total {
		parts = append(parts, fmt.Sprintf("total %d -> %d", previous.Breakdown.Total, next.Breakdown.Total))
	}
	if previous.Momentum.Score != next.Momentum.Score {
		parts = append(parts, fmt.Sprintf("momentum %d -> %d", previous.Momentum.Score, next.Momentum.Score))
	}
	if len(parts) == 0 {
		return "recalculated without changes"
	}
	return strings.Join(parts, "; ")
}

// GetScore returns the stored score for a lead.
func (e *Engine) GetScore(ctx context.Context, leadID uuid.UUID) (domain.LeadScore, error) {
	score, err := e.store.GetScore(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.LeadScore{}, apperr.NotFound("score not found")
	}
	if err != nil {
		return domain.LeadScore{}, fmt.Errorf("load score: %w", err)
	}
	return score, nil
}

// History returns recent history entries, newest first.
func (e *Engine) History(ctx context.Context, leadID uuid.UUID, limit int) ([]domain.ScoreHistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	entries, err := e.store.ListHistory(ctx, leadID, limit)
	if err != nil {
		return nil, fmt.Errorf("load score history: %w", err)
	}
	return entries, nil
}

// RecordActivityParams describes a new lead activity.
type RecordActivityParams struct {
	LeadID          uuid.UUID
	ActivityType    string
	ActivitySubtype *string
	OccurredAt      *time.Time
}

// RecordActivity appends an activity and publishes ActivityRecorded so the
// lead gets rescored.
func (e *Engine) RecordActivity(ctx context.Context, params RecordActivityParams) (domain.Activity, error) {
	occurredAt := e.now()
	if params.OccurredAt != nil {
		occurredAt = params.OccurredAt.UTC()
	}

	activity, err := e.store.InsertActivity(ctx, repository.InsertActivityParams{
		LeadID:          params.LeadID,
		ActivityType:    strings.ToLower(strings.TrimSpace(params.ActivityType)),
		ActivitySubtype: params.ActivitySubtype,
		OccurredAt:      occurredAt,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Activity{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return domain.Activity{}, fmt.Errorf("record activity: %w", err)
	}

	if e.bus != nil {
		e.bus.Publish(ctx, events.ActivityRecorded{
			BaseEvent:    events.NewBaseEvent(),
			ActivityID:   activity.ID,
			LeadID:       activity.LeadID,
			ActivityType: activity.ActivityType,
		})
	}
	return activity, nil
}
