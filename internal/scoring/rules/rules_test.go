package rules

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lead_scoring_backend/internal/scoring/domain"
	"lead_scoring_backend/platform/cache"
)

const sampleRules = `
demographic:
  - name: Enterprise
    condition_field: employee_count
    condition_operator: greater_than
    condition_value: "1000"
    points: 15
behavioral:
  - name: Pricing views
    condition_field: activity_type
    condition_operator: equals
    condition_value: pricing_page
    points: 10
    max_occurrences: 3
    repeat_multiplier: 1.5
negative:
  - name: Free email
    condition_field: email_domain
    condition_operator: in
    condition_value: gmail.com,yahoo.com
    points: 10
    is_active: false
thresholds:
  - name: high
    min_score: 70
`

func TestParseAssignsCategoriesAndDefaults(t *testing.T) {
	set, err := Parse([]byte(sampleRules))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if set.Size() != 3 {
		t.Fatalf("expected 3 rules, got %d", set.Size())
	}
	if set.Demographic[0].Category != domain.CategoryDemographic || !set.Demographic[0].IsActive {
		t.Fatalf("unexpected demographic rule %+v", set.Demographic[0])
	}
	if set.Negative[0].IsActive {
		t.Fatalf("expected explicit is_active false to be kept")
	}
	if *set.Behavioral[0].MaxOccurrences != 3 {
		t.Fatalf("expected max_occurrences 3")
	}

	again, _ := Parse([]byte(sampleRules))
	if again.Demographic[0].ID != set.Demographic[0].ID {
		t.Fatalf("expected stable derived ids")
	}
}

func TestParseRejectsUnknownOperator(t *testing.T) {
	_, err := Parse([]byte(`
demographic:
  - name: Bad
    condition_field: industry
    condition_operator: regex
    condition_value: "^saas"
    points: 5
`))
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(sampleRules), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	set, err := FileLoader{Path: path}.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(set.Thresholds) != 1 || set.Thresholds[0].MinScore != 70 {
		t.Fatalf("unexpected thresholds %+v", set.Thresholds)
	}
}

func TestDefaultRuleFileIsValid(t *testing.T) {
	set, err := LoadFile(filepath.Join("..", "..", "..", "configs", "scoring-rules.yaml"))
	if err != nil {
		t.Fatalf("load default rules: %v", err)
	}
	if len(set.Demographic) != 5 || len(set.Behavioral) != 4 || len(set.Negative) != 3 {
		t.Fatalf("unexpected rule counts %d/%d/%d", len(set.Demographic), len(set.Behavioral), len(set.Negative))
	}
	if len(set.Thresholds) != 2 {
		t.Fatalf("expected 2 thresholds, got %d", len(set.Thresholds))
	}
}

func oneRule(name string) domain.RuleSet {
	return domain.RuleSet{Demographic: []domain.Rule{{Name: name, Category: domain.CategoryDemographic}}}
}

func TestCacheServesFreshSnapshotWithoutReload(t *testing.T) {
	var calls atomic.Int32
	loader := LoaderFunc(func(context.Context) (domain.RuleSet, error) {
		calls.Add(1)
		return oneRule("v1"), nil
	})
	c := NewCache(loader, cache.NewMemoryStore(), time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Snapshot(ctx); err != nil {
			t.Fatalf("snapshot: %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one load, got %d", calls.Load())
	}
}

func TestCacheReloadsAfterTTL(t *testing.T) {
	version := "v1"
	loader := LoaderFunc(func(context.Context) (domain.RuleSet, error) {
		return oneRule(version), nil
	})
	c := NewCache(loader, cache.NewMemoryStore(), time.Minute, nil)
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }
	ctx := context.Background()

	_, _ = c.Snapshot(ctx)
	version = "v2"
	current = current.Add(2 * time.Minute)

	set, err := c.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if set.Demographic[0].Name != "v2" {
		t.Fatalf("expected reloaded rules, got %s", set.Demographic[0].Name)
	}
}

func TestCacheServesStaleSnapshotWhenLoaderFails(t *testing.T) {
	fail := false
	loader := LoaderFunc(func(context.Context) (domain.RuleSet, error) {
		if fail {
			return domain.RuleSet{}, errors.New("database down")
		}
		return oneRule("good"), nil
	})
	c := NewCache(loader, cache.NewMemoryStore(), time.Minute, nil)
	ctx := context.Background()

	if _, err := c.Snapshot(ctx); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	fail = true
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	set, err := c.Snapshot(ctx)
	if err != nil {
		t.Fatalf("expected stale rules, got error %v", err)
	}
	if set.Demographic[0].Name != "good" {
		t.Fatalf("expected last good snapshot, got %+v", set)
	}

	if _, err := c.Refresh(ctx); err == nil {
		t.Fatalf("expected forced refresh to report the loader error")
	}
}

func TestCacheFailsWithoutAnySnapshot(t *testing.T) {
	loader := LoaderFunc(func(context.Context) (domain.RuleSet, error) {
		return domain.RuleSet{}, errors.New("unreachable")
	})
	c := NewCache(loader, nil, time.Minute, nil)

	if _, err := c.Snapshot(context.Background()); err == nil {
		t.Fatalf("expected error when no snapshot has ever loaded")
	}
}

func TestCacheSharesSnapshotThroughStore(t *testing.T) {
	store := cache.NewMemoryStore()
	first := NewCache(LoaderFunc(func(context.Context) (domain.RuleSet, error) {
		return oneRule("shared"), nil
	}), store, time.Minute, nil)
	second := NewCache(LoaderFunc(func(context.Context) (domain.RuleSet, error) {
		return domain.RuleSet{}, errors.New("second loader must not run")
	}), store, time.Minute, nil)
	ctx := context.Background()

	if _, err := first.Snapshot(ctx); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	set, err := second.Snapshot(ctx)
	if err != nil {
		t.Fatalf("expected snapshot from shared store, got %v", err)
	}
	if set.Demographic[0].Name != "shared" {
		t.Fatalf("unexpected rules %+v", set)
	}
}

func TestCacheCollapsesConcurrentLoads(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	loader := LoaderFunc(func(context.Context) (domain.RuleSet, error) {
		calls.Add(1)
		<-release
		return oneRule("v1"), nil
	})
	c := NewCache(loader, nil, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Snapshot(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected a single load, got %d", calls.Load())
	}
}
