// Package aggregator applies categorized scoring rules to a lead snapshot
// and its activity history, producing capped sub-scores and the matched-rule
// trace used to explain a score.
package aggregator

import (
	"math"
	"sort"
	"time"

	"lead_scoring_backend/internal/scoring/condition"
	"lead_scoring_backend/internal/scoring/domain"
)

// Behavioral rules address activity groups through these fields.
const (
	FieldActivityType    = "activity_type"
	FieldActivitySubtype = "activity_subtype"
	FieldActivityKey     = "activity"
)

// Aggregator evaluates rule categories. It holds no per-lead state and is
// safe for concurrent use once constructed.
type Aggregator struct {
	fields *FieldResolver
}

// New creates an aggregator using the given field resolver.
func New(fields *FieldResolver) *Aggregator {
	if fields == nil {
		fields = NewFieldResolver()
	}
	return &Aggregator{fields: fields}
}

// Score computes the full breakdown for one lead.
func (a *Aggregator) Score(rules domain.RuleSet, lead domain.Lead, activities []domain.Activity, now time.Time) domain.ScoreBreakdown {
	demographic, demoMatches := a.Demographic(rules.Demographic, lead, now)
	behavioral, behaviorMatches := a.Behavioral(rules.Behavioral, activities, now)
	negative, negativeMatches := a.Negative(rules.Negative, lead, now)

	matched := make([]domain.MatchedRule, 0, len(demoMatches)+len(behaviorMatches)+len(negativeMatches))
	matched = append(matched, demoMatches...)
	matched = append(matched, behaviorMatches...)
	matched = append(matched, negativeMatches...)

	return domain.NewBreakdown(demographic, behavioral, negative, matched)
}

// Demographic sums points of matching lead-attribute rules, clamped to [0, 50].
func (a *Aggregator) Demographic(rules []domain.Rule, lead domain.Lead, now time.Time) (int, []domain.MatchedRule) {
	total := 0
	matched := make([]domain.MatchedRule, 0)

	for _, rule := range activeInOrder(rules) {
		value := a.fields.Resolve(lead, rule.ConditionField)
		if !condition.Evaluate(value, rule.ConditionOperator, rule.ConditionValue, now) {
			continue
		}
		total += rule.Points
		matched = append(matched, domain.MatchedRule{
			Type:     domain.CategoryDemographic,
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Points:   rule.Points,
		})
	}

	return clamp(total, 0, domain.MaxDemographic), matched
}

// Negative deducts the magnitude of every matching rule's points. The result
// is never positive and is not capped on its own.
func (a *Aggregator) Negative(rules []domain.Rule, lead domain.Lead, now time.Time) (int, []domain.MatchedRule) {
	total := 0
	matched := make([]domain.MatchedRule, 0)

	for _, rule := range activeInOrder(rules) {
		value := a.fields.Resolve(lead, rule.ConditionField)
		if !condition.Evaluate(value, rule.ConditionOperator, rule.ConditionValue, now) {
			continue
		}
		deduction := absInt(rule.Points)
		total -= deduction
		matched = append(matched, domain.MatchedRule{
			Type:     domain.CategoryNegative,
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Points:   -deduction,
		})
	}

	return total, matched
}

type activityGroup struct {
	activityType string
	subtype      string
	count        int
}

func (g activityGroup) key() string {
	if g.subtype == "" {
		return g.activityType
	}
	return g.activityType + ":" + g.subtype
}

// Behavioral counts activities per (type, subtype) and awards points per
// matching rule with occurrence caps and repeat multipliers. The category
// total is clamped to [0, 100] after summation.
func (a *Aggregator) Behavioral(rules []domain.Rule, activities []domain.Activity, now time.Time) (int, []domain.MatchedRule) {
	groups := groupActivities(activities)
	total := 0
	matched := make([]domain.MatchedRule, 0)

	for _, rule := range activeInOrder(rules) {
		count := 0
		for _, group := range groups {
			if matchesGroup(rule, group, now) {
				count += group.count
			}
		}
		if count == 0 {
			continue
		}

		points, effective := behavioralPoints(rule, count)
		total += points
		matched = append(matched, domain.MatchedRule{
			Type:     domain.CategoryBehavioral,
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Points:   points,
			Count:    &effective,
		})
	}

	return clamp(total, 0, domain.MaxBehavioral), matched
}

// behavioralPoints applies the occurrence cap and repeat multiplier and
// returns the floored points plus the effective count used.
func behavioralPoints(rule domain.Rule, count int) (int, int) {
	effective := count
	if rule.MaxOccurrences != nil && *rule.MaxOccurrences < effective {
		effective = *rule.MaxOccurrences
	}
	if effective < 0 {
		effective = 0
	}

	base := float64(rule.Points)
	var points float64
	if effective > 1 && rule.RepeatMultiplier != nil && *rule.RepeatMultiplier > 1 {
		points = base + base*float64(effective-1)*(*rule.RepeatMultiplier)
	} else {
		points = base * float64(effective)
	}

	return int(math.Floor(points)), effective
}

func matchesGroup(rule domain.Rule, group activityGroup, now time.Time) bool {
	var value string
	switch rule.ConditionField {
	case FieldActivitySubtype:
		if group.subtype == "" {
			return false
		}
		value = group.subtype
	case FieldActivityKey:
		value = group.key()
	default:
		value = group.activityType
	}
	return condition.Evaluate(value, rule.ConditionOperator, rule.ConditionValue, now)
}

func groupActivities(activities []domain.Activity) []activityGroup {
	index := make(map[string]int, len(activities))
	groups := make([]activityGroup, 0)

	for _, activity := range activities {
		group := activityGroup{activityType: activity.ActivityType, subtype: activity.Subtype()}
		key := group.key()
		if i, ok := index[key]; ok {
			groups[i].count++
			continue
		}
		group.count = 1
		index[key] = len(groups)
		groups = append(groups, group)
	}

	return groups
}

func activeInOrder(rules []domain.Rule) []domain.Rule {
	active := make([]domain.Rule, 0, len(rules))
	for _, rule := range rules {
		if rule.IsActive {
			active = append(active, rule)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].PriorityOrder < active[j].PriorityOrder
	})
	return active
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func absInt(value int) int {
	if value < 0 {
		return -value
	}
	return value
}
