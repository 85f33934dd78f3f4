// Package transport holds the request and response bodies of the scoring API.
package transport

import (
	"time"

	"lead_scoring_backend/internal/scoring/domain"
)

type RecordActivityRequest struct {
	ActivityType    string     `json:"activityType" validate:"required,activity_type"`
	ActivitySubtype *string    `json:"activitySubtype,omitempty" validate:"omitempty,max=128"`
	OccurredAt      *time.Time `json:"occurredAt,omitempty"`
}

type RecordActivityResponse struct {
	Activity domain.Activity `json:"activity"`
}

type HistoryQuery struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=500"`
}

type HistoryResponse struct {
	Items []domain.ScoreHistoryEntry `json:"items"`
}

type RecalculateResponse struct {
	Score     domain.LeadScore  `json:"score"`
	Previous  *domain.LeadScore `json:"previous,omitempty"`
	Changed   bool              `json:"changed"`
	Persisted bool              `json:"persisted"`
}

// SweepRequest starts a decay sweep or a full recalculation. With Async set
// the job is queued instead of run inside the request.
type SweepRequest struct {
	DryRun bool `json:"dryRun"`
	Async  bool `json:"async"`
}

type SweepQueuedResponse struct {
	Mode   string `json:"mode"`
	DryRun bool   `json:"dryRun"`
	Queued bool   `json:"queued"`
}

type RulesRefreshResponse struct {
	Demographic int `json:"demographic"`
	Behavioral  int `json:"behavioral"`
	Negative    int `json:"negative"`
	Thresholds  int `json:"thresholds"`
}
