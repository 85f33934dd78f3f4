// Package validator wraps go-playground/validator with the custom tags used
// by request DTOs and rule files.
package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator validates structs by their `validate` tags.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator with the custom tags registered.
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("rule_operator", validateOperator)
	_ = v.RegisterValidation("activity_type", validateActivityType)
	return &Validator{v: v}
}

func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

var supportedOperators = map[string]struct{}{
	"equals": {}, "not_equals": {}, "contains": {}, "in": {}, "not_in": {},
	"greater_than": {}, "less_than": {}, "between": {}, "days_since": {},
}

func validateOperator(fl validator.FieldLevel) bool {
	_, ok := supportedOperators[fl.Field().String()]
	return ok
}

// activity types are snake_case identifiers such as "pricing_page".
func validateActivityType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" || len(value) > 64 {
		return false
	}
	for _, r := range value {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '_' && r != '-' && r != '.' {
			return false
		}
	}
	return !strings.HasPrefix(value, "_")
}
