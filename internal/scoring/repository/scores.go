package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"lead_scoring_backend/internal/scoring/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const scoreColumns = `
	lead_id, demographic_score, behavioral_score, negative_score, total_score,
	classification, classification_reason, momentum_score, momentum_level,
	actions_last_hour, actions_last_24h, actions_last_72h, actions_last_7d,
	surge_detected, last_high_intent_at, last_high_intent_type, matched_rules, calculated_at`

func scanScore(row pgx.Row) (domain.LeadScore, error) {
	var (
		s              domain.LeadScore
		classification string
		level          string
		highIntentType *string
		matched        []byte
	)
	err := row.Scan(
		&s.LeadID, &s.Breakdown.Demographic, &s.Breakdown.Behavioral, &s.Breakdown.Negative, &s.Breakdown.Total,
		&classification, &s.Reason, &s.Momentum.Score, &level,
		&s.Momentum.ActionsLastHour, &s.Momentum.ActionsLast24h, &s.Momentum.ActionsLast72h, &s.Momentum.ActionsLast7d,
		&s.Momentum.SurgeDetected, &s.Momentum.LastHighIntentAction, &highIntentType, &matched, &s.CalculatedAt,
	)
	if err != nil {
		return domain.LeadScore{}, err
	}

	s.Classification, _ = domain.ParseClassification(classification)
	s.Momentum.Level = domain.ParseMomentumLevel(level)
	if highIntentType != nil {
		s.Momentum.LastHighIntentType = *highIntentType
	}
	s.Breakdown.MatchedRules = []domain.MatchedRule{}
	if len(matched) > 0 {
		if err := json.Unmarshal(matched, &s.Breakdown.MatchedRules); err != nil {
			return domain.LeadScore{}, err
		}
	}
	return s, nil
}

func (r *Repository) GetScore(ctx context.Context, leadID uuid.UUID) (domain.LeadScore, error) {
	score, err := scanScore(r.pool.QueryRow(ctx, `SELECT `+scoreColumns+` FROM lead_scores WHERE lead_id = $1`, leadID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LeadScore{}, ErrNotFound
	}
	return score, err
}

// ListDecayCandidates pages through stored scores whose momentum is at least
// minMomentum, ordered by lead id.
func (r *Repository) ListDecayCandidates(ctx context.Context, minMomentum int, after uuid.UUID, limit int) ([]domain.LeadScore, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+scoreColumns+`
		FROM lead_scores
		WHERE momentum_score >= $1 AND lead_id > $2
		ORDER BY lead_id
		LIMIT $3
	`, minMomentum, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.LeadScore, 0, limit)
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, score)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

// SaveScore upserts the current score and appends a history record in one
// transaction.
func (r *Repository) SaveScore(ctx context.Context, score domain.LeadScore, trigger domain.Trigger, changeReason string) error {
	args, err := scoreArgs(score)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO lead_scores (`+scoreColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			ON CONFLICT (lead_id) DO UPDATE SET
				demographic_score = EXCLUDED.demographic_score,
				behavioral_score = EXCLUDED.behavioral_score,
				negative_score = EXCLUDED.negative_score,
				total_score = EXCLUDED.total_score,
				classification = EXCLUDED.classification,
				classification_reason = EXCLUDED.classification_reason,
				momentum_score = EXCLUDED.momentum_score,
				momentum_level = EXCLUDED.momentum_level,
				actions_last_hour = EXCLUDED.actions_last_hour,
				actions_last_24h = EXCLUDED.actions_last_24h,
				actions_last_72h = EXCLUDED.actions_last_72h,
				actions_last_7d = EXCLUDED.actions_last_7d,
				surge_detected = EXCLUDED.surge_detected,
				last_high_intent_at = EXCLUDED.last_high_intent_at,
				last_high_intent_type = EXCLUDED.last_high_intent_type,
				matched_rules = EXCLUDED.matched_rules,
				calculated_at = EXCLUDED.calculated_at
		`, args...)
		if err != nil {
			return err
		}
		return insertHistory(ctx, tx, args, trigger, changeReason)
	})
}

// SaveScoreIfCurrent writes score only while the stored row still matches
// previous: same calculated_at, or no row at all when previous is nil. It
// returns ErrStaleScore and writes nothing when another writer got there
// first.
func (r *Repository) SaveScoreIfCurrent(ctx context.Context, score domain.LeadScore, previous *domain.LeadScore, trigger domain.Trigger, changeReason string) error {
	args, err := scoreArgs(score)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var (
			tag pgconn.CommandTag
			err error
		)
		if previous == nil {
			tag, err = tx.Exec(ctx, `
				INSERT INTO lead_scores (`+scoreColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
				ON CONFLICT (lead_id) DO NOTHING
			`, args...)
		} else {
			tag, err = tx.Exec(ctx, `
				UPDATE lead_scores SET
					demographic_score = $2,
					behavioral_score = $3,
					negative_score = $4,
					total_score = $5,
					classification = $6,
					classification_reason = $7,
					momentum_score = $8,
					momentum_level = $9,
					actions_last_hour = $10,
					actions_last_24h = $11,
					actions_last_72h = $12,
					actions_last_7d = $13,
					surge_detected = $14,
					last_high_intent_at = $15,
					last_high_intent_type = $16,
					matched_rules = $17,
					calculated_at = $18
				WHERE lead_id = $1 AND calculated_at = $19
			`, append(args, previous.CalculatedAt)...)
		}
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrStaleScore
		}
		return insertHistory(ctx, tx, args, trigger, changeReason)
	})
}

// scoreArgs lays out score in scoreColumns order.
func scoreArgs(score domain.LeadScore) ([]any, error) {
	matched, err := json.Marshal(score.Breakdown.MatchedRules)
	if err != nil {
		return nil, err
	}

	var highIntentType *string
	if score.Momentum.LastHighIntentType != "" {
		highIntentType = &score.Momentum.LastHighIntentType
	}

	return []any{
		score.LeadID, score.Breakdown.Demographic, score.Breakdown.Behavioral, score.Breakdown.Negative, score.Breakdown.Total,
		score.Classification.String(), score.Reason, score.Momentum.Score, score.Momentum.Level.String(),
		score.Momentum.ActionsLastHour, score.Momentum.ActionsLast24h, score.Momentum.ActionsLast72h, score.Momentum.ActionsLast7d,
		score.Momentum.SurgeDetected, score.Momentum.LastHighIntentAction, highIntentType, matched, score.CalculatedAt,
	}, nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, args []any, trigger domain.Trigger, changeReason string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO lead_score_history (
			lead_id, demographic_score, behavioral_score, negative_score, total_score,
			classification, classification_reason, momentum_score, momentum_level,
			surge_detected, matched_rules, trigger, change_reason, calculated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		args[0], args[1], args[2], args[3], args[4],
		args[5], args[6], args[7], args[8],
		args[13], args[16], string(trigger), changeReason, args[17],
	)
	return err
}

// ListHistory returns the newest history records for a lead.
func (r *Repository) ListHistory(ctx context.Context, leadID uuid.UUID, limit int) ([]domain.ScoreHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, demographic_score, behavioral_score, negative_score, total_score,
			classification, classification_reason, momentum_score, momentum_level,
			surge_detected, matched_rules, trigger, change_reason, calculated_at, created_at
		FROM lead_score_history
		WHERE lead_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, leadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ScoreHistoryEntry, 0)
	for rows.Next() {
		var (
			entry          domain.ScoreHistoryEntry
			classification string
			level          string
			matched        []byte
			trigger        string
			calculatedAt   time.Time
		)
		if err := rows.Scan(
			&entry.ID, &entry.Score.LeadID, &entry.Score.Breakdown.Demographic, &entry.Score.Breakdown.Behavioral,
			&entry.Score.Breakdown.Negative, &entry.Score.Breakdown.Total,
			&classification, &entry.Score.Reason, &entry.Score.Momentum.Score, &level,
			&entry.Score.Momentum.SurgeDetected, &matched, &trigger, &entry.ChangeReason, &calculatedAt, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.Score.Classification, _ = domain.ParseClassification(classification)
		entry.Score.Momentum.Level = domain.ParseMomentumLevel(level)
		entry.Score.CalculatedAt = calculatedAt
		entry.Trigger = domain.Trigger(trigger)
		entry.Score.Breakdown.MatchedRules = []domain.MatchedRule{}
		if len(matched) > 0 {
			if err := json.Unmarshal(matched, &entry.Score.Breakdown.MatchedRules); err != nil {
				return nil, err
			}
		}
		items = append(items, entry)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}
