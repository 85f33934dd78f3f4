package sanitize

import "testing"

func TestStripHTML(t *testing.T) {
	cases := map[string]string{
		"  plain  ":                             "plain",
		"<b>bold</b> text":                      "bold text",
		"&lt;script&gt;alert(1)&lt;/script&gt;": "alert(1)",
	}
	for in, want := range cases {
		if got := StripHTML(in); got != want {
			t.Fatalf("StripHTML(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestTextPtr(t *testing.T) {
	if TextPtr(nil) != nil {
		t.Fatalf("expected nil for nil input")
	}
	blank := "  <i></i> "
	if TextPtr(&blank) != nil {
		t.Fatalf("expected nil for blank input")
	}
	value := " webinar <b>2026</b> "
	if got := TextPtr(&value); got == nil || *got != "webinar 2026" {
		t.Fatalf("expected sanitized value, got %v", got)
	}
}

func TestIdentifier(t *testing.T) {
	cases := map[string]string{
		"Pricing Page":      "pricing_page",
		"  demo-request ":   "demo_request",
		"email.open":        "email.open",
		"<b>Form</b> Fill!": "form_fill",
		"___":               "",
	}
	for in, want := range cases {
		if got := Identifier(in); got != want {
			t.Fatalf("Identifier(%q): expected %q, got %q", in, want, got)
		}
	}
}
