// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "NL"

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	number, ok := parse(input)
	if !ok {
		return strings.TrimSpace(input)
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}

// RegionCode returns the ISO 3166-1 alpha-2 region of a phone number,
// or an empty string when the number cannot be parsed or is invalid.
func RegionCode(input string) string {
	number, ok := parse(input)
	if !ok {
		return ""
	}
	return phonenumbers.GetRegionCodeForNumber(number)
}

func parse(input string) (*phonenumbers.PhoneNumber, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, false
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return nil, false
	}

	if !phonenumbers.IsValidNumber(number) {
		return nil, false
	}

	return number, true
}
