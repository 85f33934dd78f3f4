package service

import (
	"context"

	"lead_scoring_backend/internal/events"
	"lead_scoring_backend/internal/scoring/domain"

	"github.com/google/uuid"
)

// Enqueuer schedules a recalculation on a background queue.
type Enqueuer interface {
	EnqueueRecalculate(ctx context.Context, leadID uuid.UUID, trigger domain.Trigger) error
}

// ActivityHandler rescores the lead of every ActivityRecorded event. With a
// nil enqueuer the recalculation runs inline in the handler.
func (e *Engine) ActivityHandler(enqueuer Enqueuer) events.Handler {
	return events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		recorded, ok := event.(events.ActivityRecorded)
		if !ok {
			return nil
		}

		if enqueuer != nil {
			err := enqueuer.EnqueueRecalculate(ctx, recorded.LeadID, domain.TriggerActivity)
			if err == nil {
				return nil
			}
			e.log.Warn("enqueue recalculation failed, scoring inline", "lead_id", recorded.LeadID, "error", err)
		}

		_, err := e.Recalculate(ctx, recorded.LeadID, domain.TriggerActivity)
		return err
	})
}
