package repository

import (
	"context"
	"time"

	"lead_scoring_backend/internal/scoring/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type InsertActivityParams struct {
	LeadID          uuid.UUID
	ActivityType    string
	ActivitySubtype *string
	OccurredAt      time.Time
}

// ListActivities returns a lead's activities most recent first. A
// non-positive limit returns all of them.
func (r *Repository) ListActivities(ctx context.Context, leadID uuid.UUID, limit int) ([]domain.Activity, error) {
	var limitArg *int
	if limit > 0 {
		limitArg = &limit
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, activity_type, activity_subtype, occurred_at
		FROM lead_activities
		WHERE lead_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2
	`, leadID, limitArg)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Activity, error) {
		var a domain.Activity
		err := row.Scan(&a.ID, &a.LeadID, &a.ActivityType, &a.ActivitySubtype, &a.OccurredAt)
		return a, err
	})
}

// InsertActivity appends an activity and bumps the lead's last activity
// timestamp. It returns ErrNotFound when the lead does not exist.
func (r *Repository) InsertActivity(ctx context.Context, params InsertActivityParams) (domain.Activity, error) {
	activity := domain.Activity{
		ID:              uuid.New(),
		LeadID:          params.LeadID,
		ActivityType:    params.ActivityType,
		ActivitySubtype: params.ActivitySubtype,
		OccurredAt:      params.OccurredAt,
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE leads
			SET last_activity_at = GREATEST(COALESCE(last_activity_at, $2), $2)
			WHERE id = $1
		`, params.LeadID, params.OccurredAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO lead_activities (id, lead_id, activity_type, activity_subtype, occurred_at)
			VALUES ($1, $2, $3, $4, $5)
		`, activity.ID, activity.LeadID, activity.ActivityType, activity.ActivitySubtype, activity.OccurredAt)
		return err
	})
	if err != nil {
		return domain.Activity{}, err
	}

	return activity, nil
}
