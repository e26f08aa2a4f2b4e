package rules

import (
	"strings"

	"github.com/nurpe/lease-contracts/internal/model"
)

type ReadinessItem struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

type Readiness struct {
	ContractID   int64           `json:"contract_id"`
	Items        []ReadinessItem `json:"items"`
	OverallReady bool            `json:"overall_ready"`
	MissingItems []string        `json:"missing_items"`
}

type readinessCheck struct {
	key  string
	name string
	pass func(c *model.Contract, auditEvents int) bool
}

var readinessChecklist = []readinessCheck{
	{"party_qualification", "party qualification", func(c *model.Contract, _ int) bool {
		return c.Tenant != nil && c.Owner != nil &&
			strings.TrimSpace(c.Tenant.Document) != "" && strings.TrimSpace(c.Owner.Document) != ""
	}},
	{"contract_type", "contract type defined", func(c *model.Contract, _ int) bool {
		return c.ContractType != ""
	}},
	{"guarantee", "valid guarantee", func(c *model.Contract, _ int) bool {
		if c.GuaranteeType == model.GuaranteeDeposit {
			return c.Deposit > 0
		}
		return c.GuaranteeType.IsInstrument()
	}},
	{"signatures", "completed signatures", func(c *model.Contract, _ int) bool {
		return c.AllRequiredSigned()
	}},
	{"audit_trail", "audit trail present", func(_ *model.Contract, auditEvents int) bool {
		return auditEvents > 0
	}},
	{"clauses", "clauses present", func(c *model.Contract, _ int) bool {
		return strings.TrimSpace(c.Clauses) != ""
	}},
	{"charges", "charges defined", func(c *model.Contract, _ int) bool {
		return c.MonthlyRent > 0 && c.DueDay >= 1 && c.DueDay <= 31
	}},
	{"penalties", "penalties parameterized", func(c *model.Contract, _ int) bool {
		return c.LateFeePercent > 0 && c.InterestRatePercent > 0
	}},
	{"legal_basis", "legal basis documented", func(c *model.Contract, _ int) bool {
		return strings.TrimSpace(c.Jurisdiction) != ""
	}},
	{"hash", "hash generated", func(c *model.Contract, _ int) bool {
		return c.ContentHash != ""
	}},
}

// CheckJudicialReadiness evaluates every item; missing items keep checklist order.
func CheckJudicialReadiness(c *model.Contract, auditEvents int) Readiness {
	r := Readiness{
		ContractID:   c.ID,
		Items:        make([]ReadinessItem, 0, len(readinessChecklist)),
		OverallReady: true,
		MissingItems: []string{},
	}
	for _, check := range readinessChecklist {
		passed := check.pass(c, auditEvents)
		r.Items = append(r.Items, ReadinessItem{Key: check.key, Name: check.name, Passed: passed})
		if !passed {
			r.OverallReady = false
			r.MissingItems = append(r.MissingItems, check.name)
		}
	}
	return r
}
