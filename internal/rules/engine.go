// Package rules holds the advisory legal rules applied to lease contracts.
package rules

import (
	_ "embed"
	"fmt"
	"math"
	"time"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"

	"github.com/nurpe/lease-contracts/internal/model"
)

//go:embed rules.yaml
var catalogYAML []byte

// GracePeriodDays is the tolerance before late fees accrue.
const GracePeriodDays = 5

type Definition struct {
	ID          string `yaml:"id" json:"id"`
	Description string `yaml:"description" json:"description"`
	LegalBasis  string `yaml:"legal_basis" json:"legal_basis"`
	Condition   string `yaml:"condition" json:"condition"`
}

type catalog struct {
	Rules []Definition `yaml:"rules"`
}

type action func(c *model.Contract, now time.Time) map[string]any

type rule struct {
	Definition
	program cel.Program
	action  action
}

type Result struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	LegalBasis  string         `json:"legal_basis"`
	Action      map[string]any `json:"action"`
}

// Engine evaluates rules without side effects; it is safe for concurrent use.
type Engine struct {
	rules []rule
}

var actions = map[string]action{
	"residential_framework": frameworkAction(model.ContractTypeResidential),
	"commercial_framework":  frameworkAction(model.ContractTypeCommercial),
	"seasonal_framework":    frameworkAction(model.ContractTypeSeasonal),
	"rent_adjustment":       rentAdjustmentAction,
	"grace_period":          gracePeriodAction,
	"acceleration_clause":   accelerationAction,
	"forum_selection":       forumAction,
}

func NewEngine() (*Engine, error) {
	return Load(catalogYAML)
}

func Load(data []byte) (*Engine, error) {
	var cat catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse rule catalog: %w", err)
	}

	env, err := cel.NewEnv(
		cel.Variable("contract", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("today", cel.MapType(cel.StringType, cel.IntType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	engine := &Engine{rules: make([]rule, 0, len(cat.Rules))}
	for _, def := range cat.Rules {
		act, ok := actions[def.ID]
		if !ok {
			return nil, fmt.Errorf("rule %s has no action", def.ID)
		}
		ast, issues := env.Compile(def.Condition)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile rule %s: %w", def.ID, issues.Err())
		}
		prg, err := env.Program(ast, cel.CostLimit(10000))
		if err != nil {
			return nil, fmt.Errorf("program rule %s: %w", def.ID, err)
		}
		engine.rules = append(engine.rules, rule{Definition: def, program: prg, action: act})
	}
	return engine, nil
}

func (e *Engine) Definitions() []Definition {
	out := make([]Definition, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r.Definition)
	}
	return out
}

// Apply returns the rules whose condition holds, in catalog order.
func (e *Engine) Apply(c *model.Contract, now time.Time) ([]Result, error) {
	input := map[string]any{
		"contract": contractFacts(c),
		"today": map[string]int64{
			"year":  int64(now.Year()),
			"month": int64(now.Month()),
			"day":   int64(now.Day()),
		},
	}

	results := make([]Result, 0, len(e.rules))
	for _, r := range e.rules {
		out, _, err := r.program.Eval(input)
		if err != nil {
			return nil, fmt.Errorf("evaluate rule %s: %w", r.ID, err)
		}
		matched, ok := out.Value().(bool)
		if !ok {
			return nil, fmt.Errorf("rule %s did not return a boolean", r.ID)
		}
		if !matched {
			continue
		}
		results = append(results, Result{
			ID:          r.ID,
			Description: r.Description,
			LegalBasis:  r.LegalBasis,
			Action:      r.action(c, now),
		})
	}
	return results, nil
}

func contractFacts(c *model.Contract) map[string]any {
	return map[string]any{
		"id":                 c.ID,
		"contract_type":      string(c.ContractType),
		"status":             string(c.Status),
		"readjustment_month": int64(c.ReadjustmentMonth),
		"readjustment_index": c.ReadjustmentIndex,
		"jurisdiction":       c.Jurisdiction,
		"monthly_rent":       c.MonthlyRent,
		"guarantee_type":     string(c.GuaranteeType),
		"has_agency":         c.AgencyID != nil,
	}
}

func frameworkAction(ct model.ContractType) action {
	return func(c *model.Contract, _ time.Time) map[string]any {
		return map[string]any{
			"contract_type": string(ct),
			"legal_basis":   LegalBasisFor(ct),
		}
	}
}

func rentAdjustmentAction(c *model.Contract, now time.Time) map[string]any {
	return map[string]any{
		"index":        c.ReadjustmentIndex,
		"month":        c.ReadjustmentMonth,
		"year":         now.Year(),
		"current_rent": c.MonthlyRent,
	}
}

func gracePeriodAction(c *model.Contract, _ time.Time) map[string]any {
	return map[string]any{
		"grace_days":            GracePeriodDays,
		"due_day":               c.DueDay,
		"late_fee_percent":      c.LateFeePercent,
		"interest_rate_percent": c.InterestRatePercent,
	}
}

func accelerationAction(c *model.Contract, now time.Time) map[string]any {
	remaining := 0
	if c.EndDate != nil {
		remaining = MonthsBetween(now, *c.EndDate)
		if remaining < 0 {
			remaining = 0
		}
	}
	return map[string]any{
		"remaining_months":   remaining,
		"accelerated_amount": round2(c.MonthlyRent * float64(remaining)),
	}
}

func forumAction(c *model.Contract, _ time.Time) map[string]any {
	return map[string]any{
		"forum": "Foro da Comarca de " + c.Jurisdiction,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
