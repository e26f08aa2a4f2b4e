package rules

import (
	"fmt"
	"strings"

	"github.com/nurpe/lease-contracts/internal/model"
)

var legalBasisByType = map[model.ContractType][]string{
	model.ContractTypeResidential: {
		"Lei 8.245/1991, art. 9º, III (rescisão por falta de pagamento)",
		"Lei 8.245/1991, art. 62 (ação de despejo por falta de pagamento)",
		"Código Civil, art. 397 (mora do devedor)",
	},
	model.ContractTypeCommercial: {
		"Lei 8.245/1991, arts. 51 a 57 (locação não residencial)",
		"Lei 8.245/1991, art. 62 (ação de despejo por falta de pagamento)",
		"Código Civil, art. 397 (mora do devedor)",
	},
	model.ContractTypeSeasonal: {
		"Lei 8.245/1991, arts. 48 a 50 (locação para temporada)",
		"Lei 8.245/1991, art. 59, §1º, III (despejo liminar)",
		"Código Civil, art. 397 (mora do devedor)",
	},
}

var defaultLegalBasis = []string{
	"Lei 8.245/1991 (Lei do Inquilinato)",
	"Código Civil, art. 397 (mora do devedor)",
}

// LegalBasisFor returns a copy, so callers may append to it.
func LegalBasisFor(ct model.ContractType) []string {
	basis, ok := legalBasisByType[ct]
	if !ok {
		basis = defaultLegalBasis
	}
	return append([]string(nil), basis...)
}

// GenerateAutomaticClauses returns the boilerplate clauses every lease carries.
func GenerateAutomaticClauses(c *model.Contract) []string {
	clauses := []string{
		fmt.Sprintf("Late payment incurs a fine of %.2f%% on the amount due plus interest of %.2f%% per month, pro rata die.",
			c.LateFeePercent, c.InterestRatePercent),
		fmt.Sprintf("Rent not paid within %d days of the due date allows the landlord to declare default and demand all remaining installments.",
			GracePeriodDays),
		fmt.Sprintf("Early termination by the tenant is subject to a penalty of %d monthly rents, reduced in proportion to the time already served.",
			PenaltyRentMultiplier),
		"Absent written notice of termination at least thirty days before the end date, the lease is extended for an indefinite term.",
		"The rent is adjusted yearly by the agreed index on the agreed month.",
		"The parties accept electronic signatures, with the signer IP address and timestamp recorded as evidence of consent.",
	}
	if j := strings.TrimSpace(c.Jurisdiction); j != "" {
		clauses = append(clauses, fmt.Sprintf("The parties elect the forum of %s to settle any dispute arising from this contract.", j))
	}
	return clauses
}
