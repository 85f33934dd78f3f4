package repository

import (
	"context"
	"fmt"

	"lead_scoring_backend/internal/scoring/domain"

	"github.com/jackc/pgx/v5"
)

// ListRules returns every rule, active or not, in priority order.
func (r *Repository) ListRules(ctx context.Context) ([]domain.Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, category, condition_field, condition_operator, condition_value,
			points, priority_order, is_active, max_occurrences, repeat_multiplier
		FROM scoring_rules
		ORDER BY category, priority_order ASC, name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Rule, 0)
	for rows.Next() {
		var (
			rule     domain.Rule
			category string
			operator string
		)
		if err := rows.Scan(
			&rule.ID, &rule.Name, &category, &rule.ConditionField, &operator, &rule.ConditionValue,
			&rule.Points, &rule.PriorityOrder, &rule.IsActive, &rule.MaxOccurrences, &rule.RepeatMultiplier,
		); err != nil {
			return nil, err
		}
		rule.Category = domain.RuleCategory(category)
		rule.ConditionOperator = domain.Operator(operator)
		items = append(items, rule)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

func (r *Repository) ListThresholds(ctx context.Context) ([]domain.Threshold, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, min_score FROM scoring_thresholds ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Threshold, 0)
	for rows.Next() {
		var t domain.Threshold
		if err := rows.Scan(&t.Name, &t.MinScore); err != nil {
			return nil, err
		}
		items = append(items, t)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

// LoadRuleSet groups stored rules by category.
func (r *Repository) LoadRuleSet(ctx context.Context) (domain.RuleSet, error) {
	rules, err := r.ListRules(ctx)
	if err != nil {
		return domain.RuleSet{}, fmt.Errorf("list rules: %w", err)
	}
	thresholds, err := r.ListThresholds(ctx)
	if err != nil {
		return domain.RuleSet{}, fmt.Errorf("list thresholds: %w", err)
	}

	set := domain.RuleSet{Thresholds: thresholds}
	for _, rule := range rules {
		switch rule.Category {
		case domain.CategoryDemographic:
			set.Demographic = append(set.Demographic, rule)
		case domain.CategoryBehavioral:
			set.Behavioral = append(set.Behavioral, rule)
		case domain.CategoryNegative:
			set.Negative = append(set.Negative, rule)
		}
	}
	return set, nil
}

// ReplaceRuleSet swaps the stored rules and thresholds in one transaction so
// readers never observe a partial set.
func (r *Repository) ReplaceRuleSet(ctx context.Context, set domain.RuleSet) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM scoring_rules`); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM scoring_thresholds`); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, group := range [][]domain.Rule{set.Demographic, set.Behavioral, set.Negative} {
			for _, rule := range group {
				batch.Queue(`
					INSERT INTO scoring_rules (
						id, name, category, condition_field, condition_operator, condition_value,
						points, priority_order, is_active, max_occurrences, repeat_multiplier
					) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
				`,
					rule.ID, rule.Name, string(rule.Category), rule.ConditionField, string(rule.ConditionOperator), rule.ConditionValue,
					rule.Points, rule.PriorityOrder, rule.IsActive, rule.MaxOccurrences, rule.RepeatMultiplier,
				)
			}
		}
		for _, t := range set.Thresholds {
			batch.Queue(`INSERT INTO scoring_thresholds (name, min_score) VALUES ($1, $2)`, t.Name, t.MinScore)
		}

		return tx.SendBatch(ctx, batch).Close()
	})
}
