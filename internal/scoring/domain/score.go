package domain

import (
	"time"

	"github.com/google/uuid"
)

// Trigger names what caused a recalculation.
type Trigger string

const (
	TriggerActivity Trigger = "activity"
	TriggerManual   Trigger = "manual"
	TriggerDecay    Trigger = "decay"
	TriggerBackfill Trigger = "backfill"
)

// LeadScore is the stored result of the latest recalculation for a lead.
type LeadScore struct {
	LeadID         uuid.UUID      `json:"leadId"`
	Breakdown      ScoreBreakdown `json:"breakdown"`
	Classification Classification `json:"classification"`
	Reason         string         `json:"reason"`
	Momentum       Momentum       `json:"momentum"`
	CalculatedAt   time.Time      `json:"calculatedAt"`
}

// ScoreHistoryEntry is one append-only record of a persisted recalculation.
type ScoreHistoryEntry struct {
	ID           int64     `json:"id"`
	Score        LeadScore `json:"score"`
	Trigger      Trigger   `json:"trigger"`
	ChangeReason string    `json:"changeReason"`
	CreatedAt    time.Time `json:"createdAt"`
}
