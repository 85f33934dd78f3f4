package phone

import "testing"

func TestRegionCode(t *testing.T) {
	if got := RegionCode("+44 20 8366 1177"); got != "GB" {
		t.Fatalf("expected GB, got %q", got)
	}
	if got := RegionCode("not a number"); got != "" {
		t.Fatalf("expected empty region, got %q", got)
	}
}

func TestNormalizeE164FallsBackToTrimmedInput(t *testing.T) {
	if got := NormalizeE164("  abc "); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}
