package rules

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/lease-contracts/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func readyContract() *model.Contract {
	start := date(2024, 1, 1)
	end := date(2025, 1, 1)
	signed := date(2023, 12, 20)
	c := &model.Contract{
		ID:           9,
		ContractType: model.ContractTypeResidential,
		Status:       model.ContractStatusActive,
		Clauses:      "Clause 1. Object.",
		ContentHash:  "ab12",
		Tenant:       &model.User{ID: 10, Name: "Ana", Document: "111.111.111-11"},
		Owner:        &model.User{ID: 20, Name: "Bruno", Document: "222.222.222-22"},
	}
	c.MonthlyRent = 1000
	c.Deposit = 3000
	c.DueDay = 5
	c.GuaranteeType = model.GuaranteeDeposit
	c.StartDate = &start
	c.EndDate = &end
	c.LateFeePercent = 10
	c.InterestRatePercent = 1
	c.ReadjustmentIndex = "IGP-M"
	c.ReadjustmentMonth = 1
	c.Jurisdiction = "São Paulo/SP"
	c.TenantSignature.SignedAt = &signed
	c.OwnerSignature.SignedAt = &signed
	return c
}

func ids(results []Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.ID)
	}
	return out
}

func TestEngineAppliesMatchingRulesInOrder(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	require.Len(t, engine.Definitions(), 7)

	c := readyContract()
	results, err := engine.Apply(c, date(2024, 1, 15))
	require.NoError(t, err)
	assert.Equal(t, []string{"residential_framework", "rent_adjustment", "grace_period", "acceleration_clause", "forum_selection"}, ids(results))

	forum := results[len(results)-1]
	assert.Equal(t, "Foro da Comarca de São Paulo/SP", forum.Action["forum"])
	assert.NotEmpty(t, forum.LegalBasis)

	acceleration := results[3]
	assert.Equal(t, 11, acceleration.Action["remaining_months"])
	assert.Equal(t, 11000.0, acceleration.Action["accelerated_amount"])
}

func TestEngineSkipsTimingRulesOutsideWindow(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	c := readyContract()
	c.Status = model.ContractStatusPending
	c.Jurisdiction = ""
	c.ContractType = model.ContractTypeCommercial

	results, err := engine.Apply(c, date(2024, 1, 15))
	require.NoError(t, err)
	assert.Equal(t, []string{"commercial_framework"}, ids(results))
}

func TestLoadRejectsUnknownRule(t *testing.T) {
	_, err := Load([]byte("rules:\n  - id: mystery\n    condition: true\n"))
	assert.ErrorContains(t, err, "has no action")

	_, err = Load([]byte("rules:\n  - id: forum_selection\n    condition: contract.jurisdiction ==\n"))
	assert.ErrorContains(t, err, "compile rule forum_selection")
}

func TestCheckJudicialReadinessAllPass(t *testing.T) {
	r := CheckJudicialReadiness(readyContract(), 3)
	assert.True(t, r.OverallReady)
	assert.Empty(t, r.MissingItems)
	assert.Len(t, r.Items, 10)
}

func TestCheckJudicialReadinessMissingJurisdictionOnly(t *testing.T) {
	c := readyContract()
	c.Jurisdiction = ""

	r := CheckJudicialReadiness(c, 3)
	assert.False(t, r.OverallReady)
	assert.Equal(t, []string{"legal basis documented"}, r.MissingItems)

	passed := 0
	for _, item := range r.Items {
		if item.Passed {
			passed++
		}
	}
	assert.Equal(t, 9, passed)
}

func TestCheckJudicialReadinessKeepsChecklistOrder(t *testing.T) {
	c := readyContract()
	c.ContentHash = ""
	c.ContractType = ""

	r := CheckJudicialReadiness(c, 0)
	assert.Equal(t, []string{"contract type defined", "audit trail present", "hash generated"}, r.MissingItems)
}

func TestGenerateAutomaticClauses(t *testing.T) {
	c := readyContract()
	withForum := GenerateAutomaticClauses(c)

	c.Jurisdiction = "  "
	without := GenerateAutomaticClauses(c)

	assert.Len(t, withForum, len(without)+1)
	assert.Equal(t, without, withForum[:len(without)])
	assert.Contains(t, withForum[len(withForum)-1], "São Paulo/SP")
}

func TestCalculatePenalty(t *testing.T) {
	c := readyContract()
	p, err := CalculatePenalty(c, 6, 12)
	require.NoError(t, err)
	assert.Equal(t, 3000.0, p.BasePenalty)
	assert.Equal(t, 1500.0, p.Penalty)

	_, err = CalculatePenalty(c, 6, 0)
	assert.ErrorIs(t, err, ErrZeroTerm)
}

func TestProportionalPenalty(t *testing.T) {
	c := readyContract()
	p, err := ProportionalPenalty(c, date(2024, 7, 1))
	require.NoError(t, err)
	assert.Equal(t, 3000.0, p.BasePenalty)
	assert.Equal(t, 6, p.RemainingMonths)
	assert.Equal(t, 12, p.TotalMonths)
	assert.Equal(t, 1500.0, p.Penalty)
	assert.Equal(t, "1000.00 x 3 x (6 / 12) = 1500.00", p.Calculation)

	p, err = ProportionalPenalty(c, date(2025, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, p.RemainingMonths)
}

func TestMonthsBetween(t *testing.T) {
	assert.Equal(t, 12, MonthsBetween(date(2024, 1, 1), date(2025, 1, 1)))
	assert.Equal(t, 0, MonthsBetween(date(2024, 1, 31), date(2024, 2, 29)))
	assert.Equal(t, -2, MonthsBetween(date(2024, 3, 1), date(2024, 1, 1)))
}

func TestPenaltyNeverExceedsBase(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("0 <= penalty <= base when remaining <= total", prop.ForAll(
		func(rent float64, total, remaining int) bool {
			if remaining > total {
				remaining = total
			}
			c := &model.Contract{}
			c.MonthlyRent = rent
			p, err := CalculatePenalty(c, remaining, total)
			if err != nil {
				return false
			}
			return p.Penalty >= 0 && p.Penalty <= p.BasePenalty+0.01
		},
		gen.Float64Range(0, 50000),
		gen.IntRange(1, 120),
		gen.IntRange(0, 120),
	))

	properties.TestingRun(t)
}
