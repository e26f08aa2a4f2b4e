// Package validation checks that a contract is complete enough to be sent for signature.
package validation

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nurpe/lease-contracts/internal/model"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Result struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors"`
}

const clauseSchema = `{
	"type": "array",
	"minItems": 1,
	"items": {
		"type": "object",
		"required": ["title", "body"],
		"properties": {
			"title": {"type": "string", "minLength": 1},
			"body": {"type": "string", "minLength": 1}
		}
	}
}`

var structuredClauses = jsonschema.MustCompileString("clauses.schema.json", clauseSchema)

type check func(c *model.Contract) []FieldError

var checklist = []check{
	checkTenant,
	checkOwner,
	checkProperty,
	checkGuarantee,
	checkCommercialTerms,
	checkJurisdiction,
	checkClauses,
}

// Validate runs every check independently, so one failure never hides another.
func Validate(c *model.Contract) Result {
	result := Result{Valid: true, Errors: []FieldError{}}
	for _, fn := range checklist {
		if errs := fn(c); len(errs) > 0 {
			result.Errors = append(result.Errors, errs...)
		}
	}
	result.Valid = len(result.Errors) == 0
	return result
}

func checkTenant(c *model.Contract) []FieldError {
	if c.TenantID == 0 || c.Tenant == nil {
		return []FieldError{{Field: "tenant", Message: "tenant is required"}}
	}
	return nil
}

func checkOwner(c *model.Contract) []FieldError {
	if c.OwnerID == 0 || c.Owner == nil {
		return []FieldError{{Field: "owner", Message: "owner is required"}}
	}
	return nil
}

func checkProperty(c *model.Contract) []FieldError {
	if c.PropertyID == 0 || c.Property == nil {
		return []FieldError{{Field: "property", Message: "property is required"}}
	}
	return nil
}

func checkGuarantee(c *model.Contract) []FieldError {
	switch {
	case c.GuaranteeType == "":
		return []FieldError{{Field: "guaranteeType", Message: "guarantee type is required"}}
	case c.GuaranteeType == model.GuaranteeDeposit:
		if c.Deposit <= 0 {
			return []FieldError{{Field: "deposit", Message: "deposit must be positive for a deposit guarantee"}}
		}
	case !c.GuaranteeType.IsInstrument():
		return []FieldError{{Field: "guaranteeType", Message: "guarantee type is not recognised"}}
	}
	return nil
}

func checkCommercialTerms(c *model.Contract) []FieldError {
	var errs []FieldError
	if c.MonthlyRent <= 0 {
		errs = append(errs, FieldError{Field: "monthlyRent", Message: "monthly rent must be positive"})
	}
	if c.StartDate == nil {
		errs = append(errs, FieldError{Field: "startDate", Message: "start date is required"})
	}
	if c.EndDate == nil {
		errs = append(errs, FieldError{Field: "endDate", Message: "end date is required"})
	}
	if c.StartDate != nil && c.EndDate != nil && !c.EndDate.After(*c.StartDate) {
		errs = append(errs, FieldError{Field: "endDate", Message: "end date must be after start date"})
	}
	return errs
}

func checkJurisdiction(c *model.Contract) []FieldError {
	if strings.TrimSpace(c.Jurisdiction) == "" {
		return []FieldError{{Field: "jurisdiction", Message: "jurisdiction is required"}}
	}
	return nil
}

// checkClauses only applies to structured clauses; free text is accepted as is.
func checkClauses(c *model.Contract) []FieldError {
	raw := strings.TrimSpace(c.Clauses)
	if !strings.HasPrefix(raw, "[") && !strings.HasPrefix(raw, "{") {
		return nil
	}
	var doc interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return []FieldError{{Field: "clauses", Message: "structured clauses are not valid JSON"}}
	}
	if err := structuredClauses.Validate(doc); err != nil {
		return []FieldError{{Field: "clauses", Message: "structured clauses must be a list of {title, body}"}}
	}
	return nil
}
