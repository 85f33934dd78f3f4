// Package domain holds the value types shared by the scoring engine:
// rules, activities, score breakdowns, momentum and classifications.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// RuleCategory identifies which aggregator a rule belongs to.
type RuleCategory string

const (
	CategoryDemographic RuleCategory = "demographic"
	CategoryBehavioral  RuleCategory = "behavioral"
	CategoryNegative    RuleCategory = "negative"
)

// Valid reports whether c is one of the known categories.
func (c RuleCategory) Valid() bool {
	switch c {
	case CategoryDemographic, CategoryBehavioral, CategoryNegative:
		return true
	}
	return false
}

// Operator is a condition operator. Unknown operators never match.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpBetween     Operator = "between"
	OpDaysSince   Operator = "days_since"
)

// Supported reports whether the evaluator implements op.
func (op Operator) Supported() bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpIn, OpNotIn, OpGreaterThan, OpLessThan, OpBetween, OpDaysSince:
		return true
	}
	return false
}

// Rule is one scoring rule. Rules are read-only for the duration of an evaluation.
type Rule struct {
	ID                uuid.UUID    `json:"id" yaml:"id"`
	Name              string       `json:"name" yaml:"name" validate:"required"`
	Category          RuleCategory `json:"category" yaml:"category" validate:"required,oneof=demographic behavioral negative"`
	ConditionField    string       `json:"conditionField" yaml:"condition_field" validate:"required"`
	ConditionOperator Operator     `json:"conditionOperator" yaml:"condition_operator" validate:"required,rule_operator"`
	ConditionValue    string       `json:"conditionValue" yaml:"condition_value"`
	Points            int          `json:"points" yaml:"points"`
	PriorityOrder     int          `json:"priorityOrder" yaml:"priority_order"`
	IsActive          bool         `json:"isActive" yaml:"is_active"`
	MaxOccurrences    *int         `json:"maxOccurrences,omitempty" yaml:"max_occurrences,omitempty" validate:"omitempty,min=1"`
	RepeatMultiplier  *float64     `json:"repeatMultiplier,omitempty" yaml:"repeat_multiplier,omitempty" validate:"omitempty,gt=0"`
}

// Threshold overrides a score tier boundary. Name is "high" or "medium".
type Threshold struct {
	Name     string `json:"name" yaml:"name" validate:"required,oneof=high medium"`
	MinScore int    `json:"minScore" yaml:"min_score" validate:"min=0,max=150"`
}

// RuleSet is an immutable snapshot of every rule category plus thresholds.
type RuleSet struct {
	Demographic []Rule      `json:"demographic" yaml:"demographic" validate:"dive"`
	Behavioral  []Rule      `json:"behavioral" yaml:"behavioral" validate:"dive"`
	Negative    []Rule      `json:"negative" yaml:"negative" validate:"dive"`
	Thresholds  []Threshold `json:"thresholds" yaml:"thresholds" validate:"dive"`
}

// Size returns the total number of rules in the set.
func (s RuleSet) Size() int {
	return len(s.Demographic) + len(s.Behavioral) + len(s.Negative)
}

// Activity is an append-only event generated by a lead.
type Activity struct {
	ID              uuid.UUID `json:"id"`
	LeadID          uuid.UUID `json:"leadId"`
	ActivityType    string    `json:"activityType"`
	ActivitySubtype *string   `json:"activitySubtype,omitempty"`
	OccurredAt      time.Time `json:"occurredAt"`
}

// Subtype returns the subtype or an empty string.
func (a Activity) Subtype() string {
	if a.ActivitySubtype == nil {
		return ""
	}
	return *a.ActivitySubtype
}

// Lead is the snapshot of lead, contact and company attributes that
// demographic and negative rules are evaluated against.
type Lead struct {
	ID                 uuid.UUID
	Email              *string
	Phone              *string
	JobTitle           *string
	Seniority          *string
	Department         *string
	Industry           *string
	Country            *string
	CompanyName        *string
	CompanySize        *string
	EmployeeCount      *int
	AnnualRevenue      *float64
	HasBudgetAuthority *bool
	LeadSource         *string
	Attributes         map[string]string
	CreatedAt          time.Time
	LastActivityAt     *time.Time
}

// MatchedRule is one entry in the explainability trace.
type MatchedRule struct {
	Type     RuleCategory `json:"type"`
	RuleID   uuid.UUID    `json:"ruleId"`
	RuleName string       `json:"ruleName"`
	Points   int          `json:"points"`
	Count    *int         `json:"count,omitempty"`
}

// ScoreBreakdown holds capped category sub-scores and the derived total.
type ScoreBreakdown struct {
	Demographic  int           `json:"demographic"`
	Behavioral   int           `json:"behavioral"`
	Negative     int           `json:"negative"`
	Total        int           `json:"total"`
	MatchedRules []MatchedRule `json:"matchedRules"`
}

const (
	MaxDemographic = 50
	MaxBehavioral  = 100
	MaxTotal       = MaxDemographic + MaxBehavioral
)

// NewBreakdown derives the total from already-capped category scores.
func NewBreakdown(demographic, behavioral, negative int, matched []MatchedRule) ScoreBreakdown {
	total := demographic + behavioral + negative
	if total < 0 {
		total = 0
	}
	if matched == nil {
		matched = []MatchedRule{}
	}
	return ScoreBreakdown{
		Demographic:  demographic,
		Behavioral:   behavioral,
		Negative:     negative,
		Total:        total,
		MatchedRules: matched,
	}
}
