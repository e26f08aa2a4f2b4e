package rules

import (
	"errors"
	"fmt"
	"time"

	"github.com/nurpe/lease-contracts/internal/model"
)

// PenaltyRentMultiplier is the number of monthly rents charged for a full-term breach.
const PenaltyRentMultiplier = 3

var ErrZeroTerm = errors.New("total months must be positive")

type Penalty struct {
	BasePenalty     float64 `json:"base_penalty"`
	RemainingMonths int     `json:"remaining_months"`
	TotalMonths     int     `json:"total_months"`
	Penalty         float64 `json:"penalty"`
	Calculation     string  `json:"calculation"`
}

// CalculatePenalty is rent * 3 * remaining/total.
func CalculatePenalty(c *model.Contract, remainingMonths, totalMonths int) (Penalty, error) {
	if totalMonths <= 0 {
		return Penalty{}, ErrZeroTerm
	}
	if remainingMonths < 0 {
		remainingMonths = 0
	}
	base := round2(c.MonthlyRent * PenaltyRentMultiplier)
	amount := round2(base * float64(remainingMonths) / float64(totalMonths))
	return Penalty{
		BasePenalty:     base,
		RemainingMonths: remainingMonths,
		TotalMonths:     totalMonths,
		Penalty:         amount,
		Calculation: fmt.Sprintf("%.2f x %d x (%d / %d) = %.2f",
			c.MonthlyRent, PenaltyRentMultiplier, remainingMonths, totalMonths, amount),
	}, nil
}

// MonthsBetween counts whole calendar months from a to b; it is negative when b is before a.
func MonthsBetween(a, b time.Time) int {
	if b.Before(a) {
		return -MonthsBetween(b, a)
	}
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		months--
	}
	return months
}

// ProportionalPenalty floors both month counts at one before applying CalculatePenalty.
func ProportionalPenalty(c *model.Contract, terminationDate time.Time) (Penalty, error) {
	if c.StartDate == nil || c.EndDate == nil {
		return Penalty{}, errors.New("contract start and end dates are required")
	}
	remaining := MonthsBetween(terminationDate, *c.EndDate)
	if remaining < 1 {
		remaining = 1
	}
	total := MonthsBetween(*c.StartDate, *c.EndDate)
	if total < 1 {
		total = 1
	}
	return CalculatePenalty(c, remaining, total)
}
