// Package momentum computes the time-decayed activity signal for a lead.
// Calculate is a pure function of the activity list and the reference time.
package momentum

import (
	"math"
	"strings"
	"time"

	"lead_scoring_backend/internal/scoring/domain"
)

const (
	basePoints      = 5.0
	surgeMultiplier = 1.5
	surgeThreshold  = 3
	maxScore        = 100

	highLevelScore   = 60
	mediumLevelScore = 30
	lowLevelScore    = 10

	// Window is how far back activities contribute at all.
	Window = 14 * 24 * time.Hour
)

// timeWeights are checked in order; an activity falls into the first bucket
// whose bound it is strictly younger than. The last bucket is inclusive so an
// activity exactly 14 days old still counts.
var timeWeights = []struct {
	within time.Duration
	weight float64
}{
	{24 * time.Hour, 1.0},
	{72 * time.Hour, 0.7},
	{7 * 24 * time.Hour, 0.4},
}

const oldestWeight = 0.2

var (
	highIntentKeywords   = []string{"pricing", "demo", "trial", "quote", "contact_sales", "proposal", "purchase", "checkout"}
	mediumIntentKeywords = []string{"product", "case_study", "case-study", "casestudy", "whitepaper", "webinar", "video", "feature", "integration"}
)

// Calculate computes momentum from activities relative to now. Activities
// may be in any order; future timestamps are treated as happening now.
func Calculate(activities []domain.Activity, now time.Time) domain.Momentum {
	var (
		result   domain.Momentum
		weighted float64
	)

	for _, activity := range activities {
		age := now.Sub(activity.OccurredAt)
		if age < 0 {
			age = 0
		}
		if age > Window {
			continue
		}

		intent := IntentMultiplier(activity.ActivityType)
		weighted += basePoints * TimeWeight(age) * intent

		if age < time.Hour {
			result.ActionsLastHour++
		}
		if age < 24*time.Hour {
			result.ActionsLast24h++
		}
		if age < 72*time.Hour {
			result.ActionsLast72h++
		}
		if age < 7*24*time.Hour {
			result.ActionsLast7d++
		}

		if intent == 3 {
			at := activity.OccurredAt
			if result.LastHighIntentAction == nil || at.After(*result.LastHighIntentAction) {
				result.LastHighIntentAction = &at
				result.LastHighIntentType = activity.ActivityType
			}
		}
	}

	if result.ActionsLastHour >= surgeThreshold {
		result.SurgeDetected = true
		weighted *= surgeMultiplier
	}

	score := int(math.Round(weighted))
	if score > maxScore {
		score = maxScore
	}
	result.Score = score
	result.Level = LevelFor(score, result.SurgeDetected)

	return result
}

// TimeWeight returns the decay weight for an activity of the given age.
func TimeWeight(age time.Duration) float64 {
	for _, bucket := range timeWeights {
		if age < bucket.within {
			return bucket.weight
		}
	}
	return oldestWeight
}

// IntentMultiplier classifies an activity type by keyword: 3 for high
// intent, 2 for medium, 1 otherwise.
func IntentMultiplier(activityType string) float64 {
	normalized := strings.ToLower(activityType)
	if containsAny(normalized, highIntentKeywords) {
		return 3
	}
	if containsAny(normalized, mediumIntentKeywords) {
		return 2
	}
	return 1
}

// LevelFor maps a score to a level. A surge always yields high.
func LevelFor(score int, surge bool) domain.MomentumLevel {
	switch {
	case surge || score >= highLevelScore:
		return domain.MomentumHigh
	case score >= mediumLevelScore:
		return domain.MomentumMedium
	case score >= lowLevelScore:
		return domain.MomentumLow
	default:
		return domain.MomentumNone
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
