package aggregator

import (
	"math"
	"strconv"
	"strings"

	"lead_scoring_backend/internal/scoring/condition"
	"lead_scoring_backend/internal/scoring/domain"
	"lead_scoring_backend/platform/phone"
)

// FieldExtractor resolves one abstract rule field on a lead. A nil return
// means the lead has no value for the field.
type FieldExtractor func(lead domain.Lead) any

// FieldResolver maps a rule's condition_field onto a concrete lead attribute.
// Unknown fields fall back to the lead's raw attribute map.
type FieldResolver struct {
	extractors map[string]FieldExtractor
}

// largeCompanySentinel stands in for open-ended buckets such as "1001+".
const largeCompanySentinel = 1500

// employeeBuckets normalizes descriptive company-size strings.
var employeeBuckets = map[string]int{
	"1":          1,
	"1-10":       5,
	"2-10":       5,
	"11-50":      30,
	"51-200":     125,
	"201-500":    350,
	"501-1000":   750,
	"1001+":      largeCompanySentinel,
	"1001-5000":  3000,
	"5001+":      7500,
	"5001-10000": 7500,
	"10000+":     15000,
	"10001+":     15000,
}

// NewFieldResolver returns the default resolver table.
func NewFieldResolver() *FieldResolver {
	r := &FieldResolver{extractors: map[string]FieldExtractor{
		"employee_count":       employeeCount,
		"company_size":         employeeCount,
		"job_title":            func(l domain.Lead) any { return l.JobTitle },
		"seniority":            func(l domain.Lead) any { return l.Seniority },
		"department":           func(l domain.Lead) any { return l.Department },
		"industry":             func(l domain.Lead) any { return l.Industry },
		"country":              func(l domain.Lead) any { return l.Country },
		"company_name":         func(l domain.Lead) any { return l.CompanyName },
		"annual_revenue":       func(l domain.Lead) any { return l.AnnualRevenue },
		"has_budget_authority": budgetAuthority,
		"email":                func(l domain.Lead) any { return l.Email },
		"email_domain":         emailDomain,
		"lead_source":          func(l domain.Lead) any { return l.LeadSource },
		"source":               func(l domain.Lead) any { return l.LeadSource },
		"phone":                phoneE164,
		"phone_country":        phoneCountry,
		"created_at":           func(l domain.Lead) any { return l.CreatedAt },
		"last_activity_at":     func(l domain.Lead) any { return l.LastActivityAt },
	}}
	return r
}

// Register adds or replaces an extractor.
func (r *FieldResolver) Register(field string, fn FieldExtractor) {
	r.extractors[strings.ToLower(field)] = fn
}

// Resolve returns the value of field on lead, or nil when absent.
func (r *FieldResolver) Resolve(lead domain.Lead, field string) any {
	key := strings.ToLower(strings.TrimSpace(field))
	if fn, ok := r.extractors[key]; ok {
		return fn(lead)
	}
	if lead.Attributes == nil {
		return nil
	}
	if raw, ok := lead.Attributes[field]; ok {
		return raw
	}
	if raw, ok := lead.Attributes[key]; ok {
		return raw
	}
	return nil
}

func employeeCount(l domain.Lead) any {
	if l.EmployeeCount != nil {
		return *l.EmployeeCount
	}
	if l.CompanySize == nil {
		return nil
	}
	return NormalizeEmployeeCount(*l.CompanySize)
}

// NormalizeEmployeeCount converts a size bucket ("51-200", "1001+") or a
// plain number into an employee count. Unparsable input yields nil.
func NormalizeEmployeeCount(raw string) any {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return nil
	}
	if n, ok := employeeBuckets[cleaned]; ok {
		return n
	}
	if n, err := strconv.Atoi(cleaned); err == nil {
		return n
	}
	n := condition.ParseNumber(cleaned)
	if math.IsNaN(n) {
		return nil
	}
	if n > math.MaxInt32 {
		return largeCompanySentinel
	}
	return int(n)
}

func budgetAuthority(l domain.Lead) any {
	if l.HasBudgetAuthority == nil {
		return nil
	}
	return strconv.FormatBool(*l.HasBudgetAuthority)
}

func emailDomain(l domain.Lead) any {
	if l.Email == nil {
		return nil
	}
	at := strings.LastIndex(*l.Email, "@")
	if at < 0 || at == len(*l.Email)-1 {
		return nil
	}
	return strings.ToLower((*l.Email)[at+1:])
}

// phoneE164 lets equals and contains rules on the E.164 form, such as
// contains "+31", match however the number was typed.
func phoneE164(l domain.Lead) any {
	if l.Phone == nil {
		return nil
	}
	return phone.NormalizeE164(*l.Phone)
}

func phoneCountry(l domain.Lead) any {
	if l.Phone == nil {
		return nil
	}
	region := phone.RegionCode(*l.Phone)
	if region == "" {
		return nil
	}
	return region
}
