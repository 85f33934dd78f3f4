// Package classify turns a total score and a momentum reading into the final
// lead classification and a human-readable reason.
package classify

import (
	"fmt"
	"time"

	"lead_scoring_backend/internal/scoring/domain"
)

const (
	DefaultHighMin   = 60
	DefaultMediumMin = 40

	thresholdHigh   = "high"
	thresholdMedium = "medium"
)

// Tiers holds the minimum totals for the medium and high score tiers.
type Tiers struct {
	HighMin   int
	MediumMin int
}

// DefaultTiers returns the built-in 60/40 boundaries.
func DefaultTiers() Tiers {
	return Tiers{HighMin: DefaultHighMin, MediumMin: DefaultMediumMin}
}

// TiersFromThresholds applies stored threshold overrides on top of the
// defaults. An override that would put medium above high is ignored.
func TiersFromThresholds(thresholds []domain.Threshold) Tiers {
	tiers := DefaultTiers()
	for _, t := range thresholds {
		switch t.Name {
		case thresholdHigh:
			tiers.HighMin = t.MinScore
		case thresholdMedium:
			tiers.MediumMin = t.MinScore
		}
	}
	if tiers.MediumMin > tiers.HighMin {
		return DefaultTiers()
	}
	return tiers
}

// Tier buckets a total score.
func (t Tiers) Tier(total int) domain.ScoreTier {
	switch {
	case total >= t.HighMin:
		return domain.TierHigh
	case total >= t.MediumMin:
		return domain.TierMedium
	default:
		return domain.TierLow
	}
}

// ScoreTier buckets a total with the default boundaries.
func ScoreTier(total int) domain.ScoreTier {
	return DefaultTiers().Tier(total)
}

type matrixKey struct {
	tier  domain.ScoreTier
	level domain.MomentumLevel
}

// matrix lists every (tier, level) pair. Low and none momentum share a column.
var matrix = map[matrixKey]domain.Classification{
	{domain.TierHigh, domain.MomentumHigh}:   domain.ClassHot,
	{domain.TierHigh, domain.MomentumMedium}: domain.ClassWarm,
	{domain.TierHigh, domain.MomentumLow}:    domain.ClassCold,
	{domain.TierHigh, domain.MomentumNone}:   domain.ClassCold,

	{domain.TierMedium, domain.MomentumHigh}:   domain.ClassHot,
	{domain.TierMedium, domain.MomentumMedium}: domain.ClassWarm,
	{domain.TierMedium, domain.MomentumLow}:    domain.ClassQualified,
	{domain.TierMedium, domain.MomentumNone}:   domain.ClassQualified,

	{domain.TierLow, domain.MomentumHigh}:   domain.ClassWarm,
	{domain.TierLow, domain.MomentumMedium}: domain.ClassQualified,
	{domain.TierLow, domain.MomentumLow}:    domain.ClassCold,
	{domain.TierLow, domain.MomentumNone}:   domain.ClassCold,
}

// Lookup returns the matrix entry for a tier and momentum level, cold when
// the pair is unknown.
func Lookup(tier domain.ScoreTier, level domain.MomentumLevel) domain.Classification {
	if c, ok := matrix[matrixKey{tier: tier, level: level}]; ok {
		return c
	}
	return domain.ClassCold
}

// Result is a classification with its explanation.
type Result struct {
	Classification domain.Classification `json:"classification"`
	Tier           domain.ScoreTier      `json:"-"`
	Reason         string                `json:"reason"`
}

// Classifier applies the matrix using a fixed set of tier boundaries.
type Classifier struct {
	tiers Tiers
}

// New creates a classifier with the given tiers.
func New(tiers Tiers) Classifier {
	return Classifier{tiers: tiers}
}

// Classify maps a total and momentum level to a classification.
func (c Classifier) Classify(total int, level domain.MomentumLevel) domain.Classification {
	return Lookup(c.tiers.Tier(total), level)
}

// Evaluate classifies and explains in one step.
func (c Classifier) Evaluate(total int, m domain.Momentum, now time.Time) Result {
	tier := c.tiers.Tier(total)
	class := Lookup(tier, m.Level)
	return Result{
		Classification: class,
		Tier:           tier,
		Reason:         reason(total >= c.tiers.HighMin, m, class, now),
	}
}

// Classify uses the default tiers.
func Classify(total int, level domain.MomentumLevel) domain.Classification {
	return New(DefaultTiers()).Classify(total, level)
}

// Reason picks the first matching explanation template using the default
// tiers.
func Reason(total int, m domain.Momentum, class domain.Classification, now time.Time) string {
	return reason(total >= DefaultHighMin, m, class, now)
}

func reason(highScore bool, m domain.Momentum, class domain.Classification, now time.Time) string {
	switch {
	case m.SurgeDetected:
		return fmt.Sprintf("Surge: %d actions in the last hour", m.ActionsLastHour)
	case m.Level == domain.MomentumHigh:
		if m.LastHighIntentAction != nil {
			return fmt.Sprintf("High intent: %s %s ago", humanizeType(m.LastHighIntentType), humanizeAge(now.Sub(*m.LastHighIntentAction)))
		}
		return fmt.Sprintf("Very active: %d actions in last 24 hours", m.ActionsLast24h)
	case m.Level == domain.MomentumMedium:
		return fmt.Sprintf("Engaged: %d actions in last 3 days", m.ActionsLast72h)
	case m.ActionsLast7d > 0:
		return fmt.Sprintf("Some activity: %d actions in last 7 days", m.ActionsLast7d)
	case class == domain.ClassCold && highScore:
		return "High score but no recent activity"
	default:
		return "No recent activity"
	}
}

func humanizeType(activityType string) string {
	if activityType == "" {
		return "action"
	}
	out := []rune(activityType)
	for i, r := range out {
		if r == '_' || r == '-' {
			out[i] = ' '
		}
	}
	return string(out)
}

func humanizeAge(age time.Duration) string {
	if age < 0 {
		age = 0
	}
	switch {
	case age < time.Hour:
		minutes := int(age / time.Minute)
		if minutes <= 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	case age < 24*time.Hour:
		hours := int(age / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	default:
		days := int(age / (24 * time.Hour))
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
}
