package rules

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"lead_scoring_backend/internal/scoring/domain"
	"lead_scoring_backend/platform/validator"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ruleNamespace derives stable ids for rules declared without one.
var ruleNamespace = uuid.MustParse("5b0f3c1e-8c55-4f0e-9d7e-2a0c4c6b7a10")

type fileRule struct {
	ID                *uuid.UUID `yaml:"id"`
	Name              string     `yaml:"name"`
	ConditionField    string     `yaml:"condition_field"`
	ConditionOperator string     `yaml:"condition_operator"`
	ConditionValue    string     `yaml:"condition_value"`
	Points            int        `yaml:"points"`
	PriorityOrder     int        `yaml:"priority_order"`
	IsActive          *bool      `yaml:"is_active"`
	MaxOccurrences    *int       `yaml:"max_occurrences"`
	RepeatMultiplier  *float64   `yaml:"repeat_multiplier"`
}

type fileRuleSet struct {
	Demographic []fileRule         `yaml:"demographic"`
	Behavioral  []fileRule         `yaml:"behavioral"`
	Negative    []fileRule         `yaml:"negative"`
	Thresholds  []domain.Threshold `yaml:"thresholds"`
}

// LoadFile reads and validates a YAML rule file.
func LoadFile(path string) (domain.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.RuleSet{}, fmt.Errorf("read rules file: %w", err)
	}
	set, err := Parse(data)
	if err != nil {
		return domain.RuleSet{}, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Parse decodes YAML rules. The section a rule is listed under sets its
// category; rules are active unless is_active is false.
func Parse(data []byte) (domain.RuleSet, error) {
	var raw fileRuleSet
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return domain.RuleSet{}, fmt.Errorf("decode rules: %w", err)
	}

	set := domain.RuleSet{
		Demographic: convert(raw.Demographic, domain.CategoryDemographic),
		Behavioral:  convert(raw.Behavioral, domain.CategoryBehavioral),
		Negative:    convert(raw.Negative, domain.CategoryNegative),
		Thresholds:  raw.Thresholds,
	}
	if err := validator.New().Struct(set); err != nil {
		return domain.RuleSet{}, fmt.Errorf("invalid rules: %w", err)
	}
	return set, nil
}

func convert(in []fileRule, category domain.RuleCategory) []domain.Rule {
	out := make([]domain.Rule, 0, len(in))
	for _, r := range in {
		rule := domain.Rule{
			Name:              r.Name,
			Category:          category,
			ConditionField:    r.ConditionField,
			ConditionOperator: domain.Operator(r.ConditionOperator),
			ConditionValue:    r.ConditionValue,
			Points:            r.Points,
			PriorityOrder:     r.PriorityOrder,
			IsActive:          r.IsActive == nil || *r.IsActive,
			MaxOccurrences:    r.MaxOccurrences,
			RepeatMultiplier:  r.RepeatMultiplier,
		}
		if r.ID != nil {
			rule.ID = *r.ID
		} else {
			rule.ID = uuid.NewSHA1(ruleNamespace, []byte(string(category)+"/"+r.Name))
		}
		out = append(out, rule)
	}
	return out
}

// FileLoader loads rules from a YAML file on every call.
type FileLoader struct {
	Path string
}

func (l FileLoader) Load(context.Context) (domain.RuleSet, error) {
	return LoadFile(l.Path)
}
