package repository

import (
	"context"
	"encoding/json"
	"errors"

	"lead_scoring_backend/internal/scoring/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	var (
		lead       domain.Lead
		attributes []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, phone, job_title, seniority, department, industry, country,
			company_name, company_size, employee_count, annual_revenue::float8, has_budget_authority,
			lead_source, attributes, created_at, last_activity_at
		FROM leads
		WHERE id = $1
	`, id).Scan(
		&lead.ID, &lead.Email, &lead.Phone, &lead.JobTitle, &lead.Seniority, &lead.Department, &lead.Industry, &lead.Country,
		&lead.CompanyName, &lead.CompanySize, &lead.EmployeeCount, &lead.AnnualRevenue, &lead.HasBudgetAuthority,
		&lead.LeadSource, &attributes, &lead.CreatedAt, &lead.LastActivityAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}

	if len(attributes) > 0 {
		if err := json.Unmarshal(attributes, &lead.Attributes); err != nil {
			return domain.Lead{}, err
		}
	}

	return lead, nil
}

// ListLeadIDs pages through all leads by id. Pass uuid.Nil to start.
func (r *Repository) ListLeadIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM leads
		WHERE id > $1
		ORDER BY id
		LIMIT $2
	`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0, limit)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return ids, nil
}
