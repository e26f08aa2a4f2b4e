package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/lease-contracts/internal/clock"
	"github.com/nurpe/lease-contracts/internal/model"
	"github.com/nurpe/lease-contracts/internal/rules"
)

const (
	tacitRenewalWindowDays = 30
	terminationLookback    = 90 * 24 * time.Hour
)

type LifecycleService struct {
	contracts ContractStore
	events    EventStore
	clock     clock.Clock
	log       zerolog.Logger
}

func NewLifecycleService(contracts ContractStore, events EventStore, clk clock.Clock, log zerolog.Logger) *LifecycleService {
	return &LifecycleService{contracts: contracts, events: events, clock: clk, log: log}
}

type CreateEventInput struct {
	ContractID      int64
	Type            model.EventType
	Description     string
	Metadata        map[string]any
	CreatedBy       string
	FinancialEffect *model.FinancialEffect
}

// CreateEvent appends an event. Unlike audit writes, a failure here is returned.
func (s *LifecycleService) CreateEvent(ctx context.Context, input CreateEventInput) (*model.LifecycleEvent, error) {
	if strings.TrimSpace(string(input.Type)) == "" {
		return nil, fmt.Errorf("%w: event type is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.CreatedBy) == "" {
		input.CreatedBy = model.SystemActor
	}
	if fe := input.FinancialEffect; fe != nil {
		switch fe.Kind {
		case model.EffectPenalty, model.EffectAdjustment, model.EffectDiscount, model.EffectPayment:
		default:
			return nil, fmt.Errorf("%w: unknown financial effect kind %q", ErrInvalidInput, fe.Kind)
		}
		if fe.Currency == "" {
			return nil, fmt.Errorf("%w: financial effect currency is required", ErrInvalidInput)
		}
	}
	if _, err := s.contracts.GetContract(ctx, input.ContractID); err != nil {
		return nil, notFound(err, "contract")
	}

	e := &model.LifecycleEvent{
		ContractID:      input.ContractID,
		Type:            input.Type,
		Description:     input.Description,
		Metadata:        input.Metadata,
		CreatedBy:       input.CreatedBy,
		FinancialEffect: input.FinancialEffect,
		CreatedAt:       s.clock.Now(),
	}
	if err := s.events.CreateEvent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *LifecycleService) GetContractTimeline(ctx context.Context, contractID int64) ([]model.LifecycleEvent, error) {
	if _, err := s.contracts.GetContract(ctx, contractID); err != nil {
		return nil, notFound(err, "contract")
	}
	return s.events.ListEvents(ctx, contractID)
}

type RentAdjustmentCheck struct {
	ContractID  int64   `json:"contract_id"`
	Due         bool    `json:"due"`
	Month       int     `json:"month"`
	Index       string  `json:"index"`
	CurrentRent float64 `json:"current_rent"`
}

// CheckRentAdjustment is due when the contract is ACTIVE, this is the
// adjustment month and no adjustment was recorded this calendar year.
func (s *LifecycleService) CheckRentAdjustment(ctx context.Context, contractID int64) (*RentAdjustmentCheck, error) {
	c, err := s.contracts.GetContract(ctx, contractID)
	if err != nil {
		return nil, notFound(err, "contract")
	}
	check := &RentAdjustmentCheck{
		ContractID:  c.ID,
		Month:       c.ReadjustmentMonth,
		Index:       c.ReadjustmentIndex,
		CurrentRent: c.MonthlyRent,
	}

	now := s.clock.Now()
	if c.Status != model.ContractStatusActive || int(now.Month()) != c.ReadjustmentMonth {
		return check, nil
	}
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	done, err := s.events.HasEventSince(ctx, c.ID, []model.EventType{model.EventRentAdjustment}, yearStart)
	if err != nil {
		return nil, err
	}
	check.Due = !done
	return check, nil
}

type TacitRenewalCheck struct {
	ContractID   int64 `json:"contract_id"`
	Eligible     bool  `json:"eligible"`
	DaysUntilEnd int   `json:"days_until_end"`
}

func (s *LifecycleService) CheckTacitRenewal(ctx context.Context, contractID int64) (*TacitRenewalCheck, error) {
	c, err := s.contracts.GetContract(ctx, contractID)
	if err != nil {
		return nil, notFound(err, "contract")
	}
	check := &TacitRenewalCheck{ContractID: c.ID}
	if c.EndDate == nil {
		return check, nil
	}

	now := s.clock.Now()
	days := int(clock.DateOnly(*c.EndDate).Sub(clock.DateOnly(now)).Hours() / 24)
	check.DaysUntilEnd = days
	if days <= 0 || days > tacitRenewalWindowDays {
		return check, nil
	}
	noticed, err := s.events.HasEventSince(ctx, c.ID, model.TerminationNoticeFamily, now.Add(-terminationLookback))
	if err != nil {
		return nil, err
	}
	check.Eligible = !noticed
	return check, nil
}

func (s *LifecycleService) CalculateProportionalPenalty(ctx context.Context, contractID int64, terminationDate time.Time) (*rules.Penalty, error) {
	c, err := s.contracts.GetContract(ctx, contractID)
	if err != nil {
		return nil, notFound(err, "contract")
	}
	if c.StartDate == nil || c.EndDate == nil {
		return nil, precondition("contract start and end dates are required to compute the penalty")
	}
	if terminationDate.IsZero() {
		terminationDate = s.clock.Now()
	}
	p, err := rules.ProportionalPenalty(c, terminationDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreconditionFailed, err)
	}
	return &p, nil
}

// RecordRentAdjustment stores this year's adjustment. The billing side reads
// the event and applies the new value; the signed terms stay untouched.
func (s *LifecycleService) RecordRentAdjustment(ctx context.Context, p model.Principal, contractID int64, percent float64) (*model.LifecycleEvent, error) {
	if percent < -100 || percent > 100 {
		return nil, fmt.Errorf("%w: adjustment percent must be between -100 and 100", ErrInvalidInput)
	}
	check, err := s.CheckRentAdjustment(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if !check.Due {
		return nil, precondition("rent adjustment is not due for this contract")
	}
	newRent := check.CurrentRent * (1 + percent/100)
	return s.CreateEvent(ctx, CreateEventInput{
		ContractID:  contractID,
		Type:        model.EventRentAdjustment,
		Description: fmt.Sprintf("Yearly rent adjustment of %.2f%% by %s", percent, check.Index),
		Metadata: map[string]any{
			"index":        check.Index,
			"percent":      percent,
			"previous":     check.CurrentRent,
			"adjusted":     roundCents(newRent),
			"applied_year": s.clock.Now().Year(),
		},
		CreatedBy:       actorOf(p),
		FinancialEffect: &model.FinancialEffect{Kind: model.EffectAdjustment, Amount: percent, Currency: model.CurrencyPercent},
	})
}

func (s *LifecycleService) RecordTerminationNotice(ctx context.Context, p model.Principal, contractID int64, eventType model.EventType, description string) (*model.LifecycleEvent, error) {
	allowed := false
	for _, t := range model.TerminationNoticeFamily {
		if t == eventType {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s is not a termination notice", ErrInvalidInput, eventType)
	}
	c, err := s.contracts.GetContract(ctx, contractID)
	if err != nil {
		return nil, notFound(err, "contract")
	}
	if c.Status != model.ContractStatusActive && c.Status != model.ContractStatusSigned {
		return nil, precondition("only signed or active contracts accept termination notices")
	}
	return s.CreateEvent(ctx, CreateEventInput{
		ContractID:  contractID,
		Type:        eventType,
		Description: description,
		CreatedBy:   actorOf(p),
	})
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
