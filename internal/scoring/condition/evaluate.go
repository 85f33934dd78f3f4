// Package condition evaluates a single rule condition against a resolved
// field value. Evaluation is total: malformed rules, unknown operators and
// unparsable values never match and never panic.
package condition

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"lead_scoring_backend/internal/scoring/domain"

	"golang.org/x/text/cases"
)

var leadingNumber = regexp.MustCompile(`^[-+]?(\d+(\.\d*)?|\.\d+)([eE][-+]?\d+)?`)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Evaluate reports whether value satisfies operator against comparand.
// now is only consulted by days_since.
func Evaluate(value any, operator domain.Operator, comparand string, now time.Time) bool {
	value = deref(value)
	if value == nil {
		return false
	}

	switch operator {
	case domain.OpEquals:
		text, _ := toText(value)
		return fold(text) == fold(comparand)
	case domain.OpNotEquals:
		text, _ := toText(value)
		return fold(text) != fold(comparand)
	case domain.OpContains:
		text, _ := toText(value)
		haystack := fold(text)
		for _, item := range splitList(comparand) {
			if strings.Contains(haystack, fold(item)) {
				return true
			}
		}
		return false
	case domain.OpIn:
		text, _ := toText(value)
		return inList(fold(text), comparand)
	case domain.OpNotIn:
		text, _ := toText(value)
		return !inList(fold(text), comparand)
	case domain.OpGreaterThan:
		return parseNumber(value) > parseComparand(comparand)
	case domain.OpLessThan:
		return parseNumber(value) < parseComparand(comparand)
	case domain.OpBetween:
		bounds := strings.Split(comparand, ",")
		if len(bounds) != 2 {
			return false
		}
		n := parseNumber(value)
		lo := parseComparand(bounds[0])
		hi := parseComparand(bounds[1])
		return n >= lo && n <= hi
	case domain.OpDaysSince:
		at, ok := toTime(value)
		if !ok {
			return false
		}
		days := math.Floor(now.Sub(at).Hours() / 24)
		return days >= parseComparand(comparand)
	default:
		return false
	}
}

// ParseNumber extracts the leading numeric prefix of s, returning NaN when
// there is none. "1001+" parses as 1001, "abc" as NaN.
func ParseNumber(s string) float64 {
	match := leadingNumber.FindString(strings.TrimSpace(s))
	if match == "" {
		return math.NaN()
	}
	n, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return math.NaN()
	}
	return n
}

func parseComparand(s string) float64 {
	return ParseNumber(s)
}

func parseNumber(value any) float64 {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	case float64:
		return v
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		return ParseNumber(v)
	default:
		return math.NaN()
	}
}

func toText(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case time.Time:
		return v.UTC().Format(time.RFC3339), true
	default:
		return "", false
	}
}

func toTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, !v.IsZero()
	case string:
		trimmed := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, trimmed); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

// deref unwraps the pointer types produced by the field resolver so that a
// nil pointer is treated the same as a missing value.
func deref(value any) any {
	switch v := value.(type) {
	case *string:
		if v == nil {
			return nil
		}
		return *v
	case *int:
		if v == nil {
			return nil
		}
		return *v
	case *int64:
		if v == nil {
			return nil
		}
		return *v
	case *float64:
		if v == nil {
			return nil
		}
		return *v
	case *bool:
		if v == nil {
			return nil
		}
		return *v
	case *time.Time:
		if v == nil {
			return nil
		}
		return *v
	}
	return value
}

func fold(s string) string {
	// A Caser is stateful, so one is created per call.
	return cases.Fold().String(strings.TrimSpace(s))
}

func splitList(comparand string) []string {
	parts := strings.Split(comparand, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func inList(needle, comparand string) bool {
	for _, item := range splitList(comparand) {
		if fold(item) == needle {
			return true
		}
	}
	return false
}
