package repository

import (
	"context"

	"lead_scoring_backend/internal/scoring/domain"

	"github.com/google/uuid"
)

// RuleReader loads the active rule configuration.
type RuleReader interface {
	ListRules(ctx context.Context) ([]domain.Rule, error)
	ListThresholds(ctx context.Context) ([]domain.Threshold, error)
}

// RuleWriter replaces the stored rule configuration.
type RuleWriter interface {
	ReplaceRuleSet(ctx context.Context, set domain.RuleSet) error
}

// LeadReader reads lead snapshots and enumerates leads.
type LeadReader interface {
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	ListLeadIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

// ActivityStore reads and appends lead activities.
type ActivityStore interface {
	ListActivities(ctx context.Context, leadID uuid.UUID, limit int) ([]domain.Activity, error)
	InsertActivity(ctx context.Context, params InsertActivityParams) (domain.Activity, error)
}

// ScoreReader reads stored scores and their history.
type ScoreReader interface {
	GetScore(ctx context.Context, leadID uuid.UUID) (domain.LeadScore, error)
	ListHistory(ctx context.Context, leadID uuid.UUID, limit int) ([]domain.ScoreHistoryEntry, error)
	ListDecayCandidates(ctx context.Context, minMomentum int, after uuid.UUID, limit int) ([]domain.LeadScore, error)
}

// ScoreWriter persists a recalculation.
type ScoreWriter interface {
	SaveScore(ctx context.Context, score domain.LeadScore, trigger domain.Trigger, changeReason string) error
	SaveScoreIfCurrent(ctx context.Context, score domain.LeadScore, previous *domain.LeadScore, trigger domain.Trigger, changeReason string) error
}

// ScoringRepository is the full persistence surface used by the engine.
type ScoringRepository interface {
	RuleReader
	RuleWriter
	LeadReader
	ActivityStore
	ScoreReader
	ScoreWriter
}

var _ ScoringRepository = (*Repository)(nil)
