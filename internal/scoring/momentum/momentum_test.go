package momentum

import (
	"testing"
	"time"

	"lead_scoring_backend/internal/scoring/domain"
)

var now = time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC)

func act(activityType string, ago time.Duration) domain.Activity {
	return domain.Activity{ActivityType: activityType, OccurredAt: now.Add(-ago)}
}

func TestCalculateNoActivities(t *testing.T) {
	got := Calculate(nil, now)

	if got.Score != 0 || got.Level != domain.MomentumNone || got.SurgeDetected {
		t.Fatalf("expected zero momentum, got %+v", got)
	}
	if got.ActionsLast24h != 0 || got.ActionsLast72h != 0 || got.ActionsLast7d != 0 {
		t.Fatalf("expected zero counters, got %+v", got)
	}
}

func TestCalculateDiscardsActivitiesOlderThanWindow(t *testing.T) {
	got := Calculate([]domain.Activity{act("demo_request", 15*24*time.Hour)}, now)

	if got != (domain.Momentum{}) {
		t.Fatalf("expected zero momentum for stale activity, got %+v", got)
	}
}

func TestCalculateSinglePricingViewOneHourAgo(t *testing.T) {
	got := Calculate([]domain.Activity{act("pricing_page", time.Hour)}, now)

	// 5 * 1.0 * 3 = 15
	if got.Score != 15 {
		t.Fatalf("expected score 15, got %d", got.Score)
	}
	if got.Level != domain.MomentumLow {
		t.Fatalf("expected low level, got %s", got.Level)
	}
	if got.SurgeDetected {
		t.Fatalf("expected no surge for a single action")
	}
	if got.LastHighIntentAction == nil || got.LastHighIntentType != "pricing_page" {
		t.Fatalf("expected last high intent action to be recorded, got %+v", got)
	}
}

func TestCalculateSurge(t *testing.T) {
	acts := []domain.Activity{
		act("demo_request", 5*time.Minute),
		act("demo_request", 20*time.Minute),
		act("demo_request", 40*time.Minute),
	}

	got := Calculate(acts, now)

	// 3 * 15 = 45, * 1.5 = 67.5 -> 68
	if got.Score != 68 {
		t.Fatalf("expected score 68, got %d", got.Score)
	}
	if !got.SurgeDetected || got.Level != domain.MomentumHigh {
		t.Fatalf("expected surge with high level, got %+v", got)
	}
	if got.ActionsLastHour != 3 {
		t.Fatalf("expected 3 actions in last hour, got %d", got.ActionsLastHour)
	}
}

func TestSurgeForcesHighForLowIntent(t *testing.T) {
	acts := []domain.Activity{
		act("email_open", time.Minute),
		act("email_open", 2*time.Minute),
		act("email_open", 3*time.Minute),
	}

	got := Calculate(acts, now)

	// 15 * 1.5 = 22.5 -> 23, below the medium threshold
	if got.Score != 23 || got.Level != domain.MomentumHigh {
		t.Fatalf("expected score 23 forced high, got %+v", got)
	}
}

func TestTimeWeightBoundaries(t *testing.T) {
	cases := []struct {
		age  time.Duration
		want float64
	}{
		{0, 1.0},
		{24*time.Hour - time.Nanosecond, 1.0},
		{24 * time.Hour, 0.7},
		{72 * time.Hour, 0.4},
		{168 * time.Hour, 0.2},
		{336 * time.Hour, 0.2},
	}
	for _, tc := range cases {
		if got := TimeWeight(tc.age); got != tc.want {
			t.Fatalf("age %s: expected weight %v, got %v", tc.age, tc.want, got)
		}
	}
}

func TestExactly24HoursUsesSecondBucket(t *testing.T) {
	got := Calculate([]domain.Activity{act("pricing_page", 24*time.Hour)}, now)

	// 5 * 0.7 * 3 = 10.5 -> 11
	if got.Score != 11 {
		t.Fatalf("expected score 11, got %d", got.Score)
	}
	if got.ActionsLast24h != 0 || got.ActionsLast72h != 1 {
		t.Fatalf("expected activity counted only from the 72h window, got %+v", got)
	}
}

func TestCountersAreMonotonic(t *testing.T) {
	acts := []domain.Activity{
		act("page_view", 30*time.Minute),
		act("page_view", 30*time.Hour),
		act("page_view", 100*time.Hour),
		act("page_view", 200*time.Hour),
	}

	got := Calculate(acts, now)

	if !(got.ActionsLast24h <= got.ActionsLast72h && got.ActionsLast72h <= got.ActionsLast7d) {
		t.Fatalf("expected monotonic counters, got %+v", got)
	}
	if got.ActionsLast24h != 1 || got.ActionsLast72h != 2 || got.ActionsLast7d != 3 {
		t.Fatalf("unexpected counters %+v", got)
	}
}

func TestScoreNonDecreasingWhenAddingRecentActivity(t *testing.T) {
	base := []domain.Activity{act("page_view", 80*time.Hour), act("webinar_attended", 30*time.Hour)}
	before := Calculate(base, now)
	after := Calculate(append(base, act("trial_started", 2*time.Hour)), now)

	if after.Score < before.Score {
		t.Fatalf("expected score to be non-decreasing, before %d after %d", before.Score, after.Score)
	}
}

func TestScoreCappedAt100(t *testing.T) {
	acts := make([]domain.Activity, 0, 20)
	for i := 0; i < 20; i++ {
		acts = append(acts, act("demo_request", time.Duration(i)*time.Minute))
	}

	got := Calculate(acts, now)

	if got.Score != 100 {
		t.Fatalf("expected capped score 100, got %d", got.Score)
	}
}

func TestIntentMultiplier(t *testing.T) {
	if IntentMultiplier("Pricing_Page") != 3 {
		t.Fatalf("expected pricing to be high intent")
	}
	if IntentMultiplier("case_study_download") != 2 {
		t.Fatalf("expected case study to be medium intent")
	}
	if IntentMultiplier("email_open") != 1 {
		t.Fatalf("expected email open to be low intent")
	}
}

func TestLevelFor(t *testing.T) {
	cases := []struct {
		score int
		surge bool
		want  domain.MomentumLevel
	}{
		{0, false, domain.MomentumNone},
		{9, false, domain.MomentumNone},
		{10, false, domain.MomentumLow},
		{30, false, domain.MomentumMedium},
		{60, false, domain.MomentumHigh},
		{5, true, domain.MomentumHigh},
	}
	for _, tc := range cases {
		if got := LevelFor(tc.score, tc.surge); got != tc.want {
			t.Fatalf("score %d surge %v: expected %s, got %s", tc.score, tc.surge, tc.want, got)
		}
	}
}
