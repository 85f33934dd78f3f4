// Package events defines the domain events exchanged between the scoring
// modules. Bus infrastructure lives in platform/events.
package events

import (
	"lead_scoring_backend/platform/events"
	"lead_scoring_backend/platform/logger"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates the process-local bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// ActivityRecorded is published after a lead activity has been stored.
type ActivityRecorded struct {
	BaseEvent
	ActivityID   uuid.UUID `json:"activityId"`
	LeadID       uuid.UUID `json:"leadId"`
	ActivityType string    `json:"activityType"`
}

func (e ActivityRecorded) EventName() string { return "scoring.activity.recorded" }

// LeadScoreChanged is published when a persisted recalculation changed the
// lead's classification.
type LeadScoreChanged struct {
	BaseEvent
	LeadID                 uuid.UUID `json:"leadId"`
	PreviousClassification string    `json:"previousClassification,omitempty"`
	Classification         string    `json:"classification"`
	TotalScore             int       `json:"totalScore"`
	MomentumScore          int       `json:"momentumScore"`
	Trigger                string    `json:"trigger"`
	Reason                 string    `json:"reason"`
}

func (e LeadScoreChanged) EventName() string { return "scoring.lead.score_changed" }
