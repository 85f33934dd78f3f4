package aggregator

import (
	"testing"
	"time"

	"lead_scoring_backend/internal/scoring/domain"

	"github.com/google/uuid"
)

var testNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func strPtr(v string) *string     { return &v }
func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func rule(category domain.RuleCategory, name, field string, op domain.Operator, value string, points int) domain.Rule {
	return domain.Rule{
		ID:                uuid.New(),
		Name:              name,
		Category:          category,
		ConditionField:    field,
		ConditionOperator: op,
		ConditionValue:    value,
		Points:            points,
		IsActive:          true,
	}
}

func activities(n int, activityType string, subtype *string) []domain.Activity {
	out := make([]domain.Activity, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Activity{
			ActivityType:    activityType,
			ActivitySubtype: subtype,
			OccurredAt:      testNow.Add(-time.Duration(i+1) * time.Hour),
		})
	}
	return out
}

func TestDemographicEmployeeBucketNormalized(t *testing.T) {
	agg := New(nil)
	lead := domain.Lead{CompanySize: strPtr("1001+")}
	rules := []domain.Rule{rule(domain.CategoryDemographic, "Enterprise", "employee_count", domain.OpGreaterThan, "1000", 15)}

	score, matched := agg.Demographic(rules, lead, testNow)

	if score != 15 {
		t.Fatalf("expected 15 points, got %d", score)
	}
	if len(matched) != 1 || matched[0].RuleName != "Enterprise" {
		t.Fatalf("expected Enterprise rule in trace, got %+v", matched)
	}
	if got := NormalizeEmployeeCount("1001+"); got != 1500 {
		t.Fatalf("expected 1001+ to normalize to 1500, got %v", got)
	}
}

func TestEmployeeCountClampsOversizedNumbers(t *testing.T) {
	if got := NormalizeEmployeeCount("99999999999999999999"); got != 1500 {
		t.Fatalf("expected oversized count to clamp to 1500, got %v", got)
	}
	if got := NormalizeEmployeeCount("250.5"); got != 250 {
		t.Fatalf("expected 250, got %v", got)
	}

	agg := New(nil)
	lead := domain.Lead{CompanySize: strPtr("99999999999999999999")}
	rules := []domain.Rule{rule(domain.CategoryDemographic, "Enterprise", "employee_count", domain.OpGreaterThan, "1000", 15)}
	if score, _ := agg.Demographic(rules, lead, testNow); score != 15 {
		t.Fatalf("expected 15 points, got %d", score)
	}
}

func TestDemographicCapAndInactiveRules(t *testing.T) {
	agg := New(nil)
	lead := domain.Lead{
		JobTitle:           strPtr("Chief Technology Officer"),
		Industry:           strPtr("SaaS"),
		HasBudgetAuthority: boolPtr(true),
		Attributes:         map[string]string{"tech_stack": "go"},
	}
	inactive := rule(domain.CategoryDemographic, "Inactive", "industry", domain.OpEquals, "saas", 40)
	inactive.IsActive = false
	rules := []domain.Rule{
		rule(domain.CategoryDemographic, "C-level", "job_title", domain.OpContains, "chief,vp", 25),
		rule(domain.CategoryDemographic, "SaaS", "industry", domain.OpIn, "saas,fintech", 20),
		rule(domain.CategoryDemographic, "Budget", "has_budget_authority", domain.OpEquals, "true", 15),
		rule(domain.CategoryDemographic, "Raw attribute", "tech_stack", domain.OpEquals, "Go", 5),
		inactive,
	}

	score, matched := agg.Demographic(rules, lead, testNow)

	if score != domain.MaxDemographic {
		t.Fatalf("expected demographic capped at %d, got %d", domain.MaxDemographic, score)
	}
	if len(matched) != 4 {
		t.Fatalf("expected 4 matched rules, got %d", len(matched))
	}
}

func TestBehavioralRepeatMultiplierAndCap(t *testing.T) {
	agg := New(nil)
	pricing := rule(domain.CategoryBehavioral, "Pricing views", FieldActivityType, domain.OpEquals, "pricing_page", 10)
	pricing.MaxOccurrences = intPtr(3)
	pricing.RepeatMultiplier = floatPtr(1.5)

	score, matched := agg.Behavioral([]domain.Rule{pricing}, activities(5, "pricing_page", nil), testNow)

	// effective count 3: 10 + 10*2*1.5 = 40
	if score != 40 {
		t.Fatalf("expected 40 points, got %d", score)
	}
	if matched[0].Count == nil || *matched[0].Count != 3 {
		t.Fatalf("expected effective count 3, got %+v", matched[0].Count)
	}
}

func TestBehavioralFloorsFractionalPoints(t *testing.T) {
	agg := New(nil)
	webinar := rule(domain.CategoryBehavioral, "Webinar", FieldActivityType, domain.OpEquals, "webinar", 3)
	webinar.RepeatMultiplier = floatPtr(1.25)

	score, _ := agg.Behavioral([]domain.Rule{webinar}, activities(2, "webinar", nil), testNow)

	// 3 + 3*1*1.25 = 6.75 -> 6
	if score != 6 {
		t.Fatalf("expected floored 6 points, got %d", score)
	}
}

func TestBehavioralWithoutMultiplierIsLinear(t *testing.T) {
	agg := New(nil)
	visit := rule(domain.CategoryBehavioral, "Visits", FieldActivityType, domain.OpEquals, "page_view", 2)

	score, _ := agg.Behavioral([]domain.Rule{visit}, activities(4, "page_view", nil), testNow)

	if score != 8 {
		t.Fatalf("expected 8 points, got %d", score)
	}
}

func TestBehavioralAggregateThenClamp(t *testing.T) {
	agg := New(nil)
	demo := rule(domain.CategoryBehavioral, "Demo", FieldActivityType, domain.OpEquals, "demo_request", 60)
	trial := rule(domain.CategoryBehavioral, "Trial", FieldActivityType, domain.OpEquals, "trial_signup", 60)
	acts := append(activities(1, "demo_request", nil), activities(1, "trial_signup", nil)...)

	score, matched := agg.Behavioral([]domain.Rule{demo, trial}, acts, testNow)

	if score != domain.MaxBehavioral {
		t.Fatalf("expected behavioral capped at %d, got %d", domain.MaxBehavioral, score)
	}
	if len(matched) != 2 || matched[0].Points != 60 || matched[1].Points != 60 {
		t.Fatalf("expected uncapped per-rule trace, got %+v", matched)
	}
}

func TestBehavioralSubtypeKeys(t *testing.T) {
	agg := New(nil)
	pricingView := rule(domain.CategoryBehavioral, "Pricing page", FieldActivityKey, domain.OpEquals, "page_view:pricing", 5)
	anySubtype := rule(domain.CategoryBehavioral, "Docs", FieldActivitySubtype, domain.OpIn, "docs,api", 1)
	acts := append(activities(2, "page_view", strPtr("pricing")), activities(3, "page_view", strPtr("docs"))...)
	acts = append(acts, activities(1, "page_view", nil)...)

	score, matched := agg.Behavioral([]domain.Rule{pricingView, anySubtype}, acts, testNow)

	if score != 13 {
		t.Fatalf("expected 13 points, got %d", score)
	}
	if len(matched) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matched))
	}
}

func TestNegativeDeductsMagnitude(t *testing.T) {
	agg := New(nil)
	lead := domain.Lead{Email: strPtr("someone@gmail.com"), JobTitle: strPtr("Student")}
	rules := []domain.Rule{
		rule(domain.CategoryNegative, "Free email", "email_domain", domain.OpIn, "gmail.com,yahoo.com", 10),
		rule(domain.CategoryNegative, "Student", "job_title", domain.OpContains, "student", -15),
	}

	score, matched := agg.Negative(rules, lead, testNow)

	if score != -25 {
		t.Fatalf("expected -25, got %d", score)
	}
	for _, m := range matched {
		if m.Points > 0 {
			t.Fatalf("expected negative trace points, got %d", m.Points)
		}
	}
}

func TestScoreTotalInvariant(t *testing.T) {
	agg := New(nil)
	lead := domain.Lead{Email: strPtr("x@gmail.com"), Industry: strPtr("saas")}
	rules := domain.RuleSet{
		Demographic: []domain.Rule{rule(domain.CategoryDemographic, "SaaS", "industry", domain.OpEquals, "saas", 10)},
		Behavioral:  []domain.Rule{rule(domain.CategoryBehavioral, "Visit", FieldActivityType, domain.OpEquals, "page_view", 5)},
		Negative:    []domain.Rule{rule(domain.CategoryNegative, "Free email", "email_domain", domain.OpEquals, "gmail.com", 40)},
	}

	got := agg.Score(rules, lead, activities(1, "page_view", nil), testNow)

	if got.Total != 0 {
		t.Fatalf("expected total clamped to 0, got %d", got.Total)
	}
	if got.Demographic != 10 || got.Behavioral != 5 || got.Negative != -40 {
		t.Fatalf("unexpected breakdown %+v", got)
	}
	if len(got.MatchedRules) != 3 {
		t.Fatalf("expected 3 trace entries, got %d", len(got.MatchedRules))
	}
}

func TestResolverFallsBackToAttributes(t *testing.T) {
	r := NewFieldResolver()
	lead := domain.Lead{Attributes: map[string]string{"Region": "EMEA"}}

	if got := r.Resolve(lead, "Region"); got != "EMEA" {
		t.Fatalf("expected EMEA, got %v", got)
	}
	if got := r.Resolve(lead, "missing"); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestResolverPhoneFields(t *testing.T) {
	r := NewFieldResolver()
	raw := "+44 20 8366 1177"
	lead := domain.Lead{ID: uuid.New(), Phone: &raw}

	if got := r.Resolve(lead, "phone"); got != "+442083661177" {
		t.Fatalf("expected E.164 phone, got %v", got)
	}
	if got := r.Resolve(lead, "phone_country"); got != "GB" {
		t.Fatalf("expected GB, got %v", got)
	}
	if got := r.Resolve(domain.Lead{ID: uuid.New()}, "phone_country"); got != nil {
		t.Fatalf("expected nil without a phone, got %v", got)
	}
}
