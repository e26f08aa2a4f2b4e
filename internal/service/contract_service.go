package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nurpe/lease-contracts/internal/clock"
	"github.com/nurpe/lease-contracts/internal/config"
	"github.com/nurpe/lease-contracts/internal/document"
	"github.com/nurpe/lease-contracts/internal/model"
	"github.com/nurpe/lease-contracts/internal/policy"
	"github.com/nurpe/lease-contracts/internal/rules"
	"github.com/nurpe/lease-contracts/internal/token"
)

type ContractService struct {
	contracts ContractStore
	documents DocumentStore
	audit     auditLog
	clock     clock.Clock
	cfg       config.ContractsConfig
	log       zerolog.Logger
}

func NewContractService(
	contracts ContractStore,
	events EventStore,
	documents DocumentStore,
	clk clock.Clock,
	cfg config.ContractsConfig,
	log zerolog.Logger,
) *ContractService {
	return &ContractService{
		contracts: contracts,
		documents: documents,
		audit:     auditLog{events: events, clock: clk, log: log},
		clock:     clk,
		cfg:       cfg,
		log:       log,
	}
}

// TermsPatch changes only the fields that are set.
type TermsPatch struct {
	MonthlyRent                    *float64             `json:"monthly_rent"`
	Deposit                        *float64             `json:"deposit"`
	DueDay                         *int                 `json:"due_day"`
	StartDate                      *time.Time           `json:"start_date"`
	EndDate                        *time.Time           `json:"end_date"`
	ReadjustmentIndex              *string              `json:"readjustment_index"`
	ReadjustmentMonth              *int                 `json:"readjustment_month"`
	LateFeePercent                 *float64             `json:"late_fee_percent"`
	InterestRatePercent            *float64             `json:"interest_rate_percent"`
	EarlyTerminationPenaltyPercent *float64             `json:"early_termination_penalty_percent"`
	GuaranteeType                  *model.GuaranteeType `json:"guarantee_type"`
	Jurisdiction                   *string              `json:"jurisdiction"`
}

func (p TermsPatch) IsEmpty() bool {
	return p.MonthlyRent == nil && p.Deposit == nil && p.DueDay == nil && p.StartDate == nil &&
		p.EndDate == nil && p.ReadjustmentIndex == nil && p.ReadjustmentMonth == nil &&
		p.LateFeePercent == nil && p.InterestRatePercent == nil &&
		p.EarlyTerminationPenaltyPercent == nil && p.GuaranteeType == nil && p.Jurisdiction == nil
}

func (p TermsPatch) Apply(t model.CommercialTerms) model.CommercialTerms {
	if p.MonthlyRent != nil {
		t.MonthlyRent = *p.MonthlyRent
	}
	if p.Deposit != nil {
		t.Deposit = *p.Deposit
	}
	if p.DueDay != nil {
		t.DueDay = *p.DueDay
	}
	if p.StartDate != nil {
		d := clock.DateOnly(*p.StartDate)
		t.StartDate = &d
	}
	if p.EndDate != nil {
		d := clock.DateOnly(*p.EndDate)
		t.EndDate = &d
	}
	if p.ReadjustmentIndex != nil {
		t.ReadjustmentIndex = strings.TrimSpace(*p.ReadjustmentIndex)
	}
	if p.ReadjustmentMonth != nil {
		t.ReadjustmentMonth = *p.ReadjustmentMonth
	}
	if p.LateFeePercent != nil {
		t.LateFeePercent = *p.LateFeePercent
	}
	if p.InterestRatePercent != nil {
		t.InterestRatePercent = *p.InterestRatePercent
	}
	if p.EarlyTerminationPenaltyPercent != nil {
		t.EarlyTerminationPenaltyPercent = *p.EarlyTerminationPenaltyPercent
	}
	if p.GuaranteeType != nil {
		t.GuaranteeType = *p.GuaranteeType
	}
	if p.Jurisdiction != nil {
		t.Jurisdiction = strings.TrimSpace(*p.Jurisdiction)
	}
	return t
}

func checkTerms(t model.CommercialTerms) error {
	switch {
	case t.MonthlyRent < 0 || t.Deposit < 0:
		return fmt.Errorf("%w: amounts cannot be negative", ErrInvalidInput)
	case t.DueDay < 0 || t.DueDay > 31:
		return fmt.Errorf("%w: due_day must be between 1 and 31", ErrInvalidInput)
	case t.ReadjustmentMonth < 0 || t.ReadjustmentMonth > 12:
		return fmt.Errorf("%w: readjustment_month must be between 1 and 12", ErrInvalidInput)
	case t.LateFeePercent < 0 || t.InterestRatePercent < 0 || t.EarlyTerminationPenaltyPercent < 0:
		return fmt.Errorf("%w: percentages cannot be negative", ErrInvalidInput)
	case t.StartDate != nil && t.EndDate != nil && !t.EndDate.After(*t.StartDate):
		return fmt.Errorf("%w: end_date must be after start_date", ErrInvalidInput)
	}
	switch t.GuaranteeType {
	case "", model.GuaranteeDeposit, model.GuaranteeGuarantor, model.GuaranteeSuretyInsurance, model.GuaranteeCapitalizationTitle:
	default:
		return fmt.Errorf("%w: unknown guarantee_type %q", ErrInvalidInput, t.GuaranteeType)
	}
	return nil
}

func (s *ContractService) snapshotFor(c *model.Contract) string {
	return document.DefaultTemplate(c, s.cfg.Currency, rules.GenerateAutomaticClauses(c))
}

func (s *ContractService) Get(ctx context.Context, p model.Principal, id int64) (*model.Contract, error) {
	return loadVisible(ctx, s.contracts, p, id)
}

type CreateContractInput struct {
	PropertyID      int64              `json:"property_id"`
	TenantID        int64              `json:"tenant_id"`
	OwnerID         int64              `json:"owner_id"`
	AgencyID        *int64             `json:"agency_id"`
	WitnessName     string             `json:"witness_name"`
	WitnessDocument string             `json:"witness_document"`
	ContractType    model.ContractType `json:"contract_type"`
	Terms           TermsPatch         `json:"terms"`
	Clauses         string             `json:"clauses"`
}

// Create stores a new PENDING contract with its verification token and template.
func (s *ContractService) Create(ctx context.Context, p model.Principal, input CreateContractInput) (*model.Contract, error) {
	if !policy.CapabilitiesFor(p.Role).CanCreate {
		return nil, ErrPermissionDenied
	}
	if input.PropertyID == 0 || input.TenantID == 0 || input.OwnerID == 0 {
		return nil, fmt.Errorf("%w: property_id, tenant_id and owner_id are required", ErrInvalidInput)
	}
	switch input.ContractType {
	case model.ContractTypeResidential, model.ContractTypeCommercial, model.ContractTypeSeasonal:
	default:
		return nil, fmt.Errorf("%w: unknown contract_type %q", ErrInvalidInput, input.ContractType)
	}
	terms := input.Terms.Apply(model.CommercialTerms{})
	if err := checkTerms(terms); err != nil {
		return nil, err
	}

	agencyID := input.AgencyID
	if p.IsAgencyStaff() || p.Role == model.RoleBroker {
		if p.AgencyID == nil {
			return nil, ErrPermissionDenied
		}
		if agencyID != nil && *agencyID != *p.AgencyID {
			return nil, ErrPermissionDenied
		}
		agencyID = p.AgencyID
	}

	open, err := s.contracts.HasOpenContractForProperty(ctx, input.PropertyID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, fmt.Errorf("%w: property already has an open contract", ErrConflict)
	}

	now := s.clock.Now()
	tok, err := token.Generate(s.cfg.TokenType, now)
	if err != nil {
		return nil, err
	}

	c := &model.Contract{
		VerificationToken: tok,
		PropertyID:        input.PropertyID,
		TenantID:          input.TenantID,
		OwnerID:           input.OwnerID,
		AgencyID:          agencyID,
		WitnessName:       strings.TrimSpace(input.WitnessName),
		WitnessDocument:   strings.TrimSpace(input.WitnessDocument),
		ContractType:      input.ContractType,
		Status:            model.ContractStatusPending,
		CommercialTerms:   terms,
		Clauses:           input.Clauses,
		CreatedByID:       p.UserID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.contracts.CreateContract(ctx, c); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: property already has an open contract", ErrConflict)
		}
		return nil, err
	}
	return s.refreshSnapshot(ctx, c.ID)
}

// refreshSnapshot rebuilds the template once parties are loaded.
func (s *ContractService) refreshSnapshot(ctx context.Context, id int64) (*model.Contract, error) {
	c, err := s.contracts.GetContract(ctx, id)
	if err != nil {
		return nil, notFound(err, "contract")
	}
	snapshot := s.snapshotFor(c)
	ok, err := s.contracts.UpdateTerms(ctx, c.ID, c.CommercialTerms, snapshot)
	if err != nil {
		return nil, err
	}
	if ok {
		c.ContentSnapshot = snapshot
	}
	return c, nil
}

type UpdateContractInput struct {
	Terms      TermsPatch `json:"terms"`
	AdminNotes *string    `json:"admin_notes"`
}

// Update changes commercial terms while the contract is editable; admin notes
// stay editable for the whole life of the contract.
func (s *ContractService) Update(ctx context.Context, p model.Principal, id int64, input UpdateContractInput) (*model.Contract, error) {
	c, err := loadVisible(ctx, s.contracts, p, id)
	if err != nil {
		return nil, err
	}
	if !policy.CapabilitiesFor(p.Role).CanEdit {
		return nil, ErrPermissionDenied
	}
	if input.Terms.IsEmpty() && input.AdminNotes == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}

	if !input.Terms.IsEmpty() {
		if d := policy.CanEdit(policy.StateOf(c)); !d.Allowed {
			return nil, precondition(d.Message)
		}
		updated := *c
		updated.CommercialTerms = input.Terms.Apply(c.CommercialTerms)
		if err := checkTerms(updated.CommercialTerms); err != nil {
			return nil, err
		}
		ok, err := s.contracts.UpdateTerms(ctx, id, updated.CommercialTerms, s.snapshotFor(&updated))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, s.staleEdit(ctx, id)
		}
	}

	if input.AdminNotes != nil {
		if d := policy.CanEditMetadata(policy.StateOf(c)); !d.Allowed {
			return nil, precondition(d.Message)
		}
		if err := s.contracts.UpdateAdminNotes(ctx, id, strings.TrimSpace(*input.AdminNotes)); err != nil {
			return nil, notFound(err, "contract")
		}
	}

	updated, err := s.contracts.GetContract(ctx, id)
	if err != nil {
		return nil, notFound(err, "contract")
	}
	return updated, nil
}

// staleEdit explains a guarded write that lost to a concurrent signature or transition.
func (s *ContractService) staleEdit(ctx context.Context, id int64) error {
	current, err := s.contracts.GetContract(ctx, id)
	if err != nil {
		return notFound(err, "contract")
	}
	if d := policy.CanEdit(policy.StateOf(current)); !d.Allowed {
		return precondition(d.Message)
	}
	return fmt.Errorf("%w: contract changed concurrently, reload and retry", ErrConflict)
}

func (s *ContractService) UpdateClauses(ctx context.Context, p model.Principal, id int64, clauses, ip string) (*model.Contract, error) {
	c, err := loadVisible(ctx, s.contracts, p, id)
	if err != nil {
		return nil, err
	}
	if !policy.CapabilitiesFor(p.Role).CanEdit {
		return nil, ErrPermissionDenied
	}
	if d := policy.CanEdit(policy.StateOf(c)); !d.Allowed {
		return nil, precondition(d.Message)
	}
	if strings.TrimSpace(clauses) == "" {
		return nil, fmt.Errorf("%w: clauses cannot be empty", ErrInvalidInput)
	}

	now := s.clock.Now()
	entry := model.ClauseHistoryEntry{
		ContractID:      id,
		PreviousClauses: c.Clauses,
		EditedBy:        p.UserID,
		EditedAt:        now,
		IP:              ip,
	}
	updated := *c
	updated.Clauses = clauses
	ok, err := s.contracts.UpdateClauses(ctx, id, clauses, s.snapshotFor(&updated), entry)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.staleEdit(ctx, id)
	}

	s.audit.record(ctx, model.LifecycleEvent{
		ContractID:  id,
		Type:        model.EventClausesUpdated,
		Description: "Contract clauses edited",
		Metadata:    map[string]any{"ip": ip},
		CreatedBy:   actorOf(p),
	})
	return s.contracts.GetContract(ctx, id)
}

func (s *ContractService) ClauseHistory(ctx context.Context, p model.Principal, id int64) ([]model.ClauseHistoryEntry, error) {
	if _, err := loadVisible(ctx, s.contracts, p, id); err != nil {
		return nil, err
	}
	return s.contracts.ListClauseHistory(ctx, id)
}

// Delete soft-deletes the contract; invoices, payments and inspections are detached.
func (s *ContractService) Delete(ctx context.Context, p model.Principal, id int64) error {
	c, err := loadVisible(ctx, s.contracts, p, id)
	if err != nil {
		return err
	}
	if !policy.CapabilitiesFor(p.Role).CanDelete {
		return ErrPermissionDenied
	}
	if d := policy.CanDelete(policy.StateOf(c)); !d.Allowed {
		return precondition(d.Message)
	}
	ok, err := s.contracts.SoftDelete(ctx, id, s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return precondition("contract changed and can no longer be deleted")
	}
	s.log.Info().Int64("contract_id", id).Int64("user_id", p.UserID).Msg("contract deleted")
	return nil
}

type AmendInput struct {
	Terms   TermsPatch `json:"terms"`
	Clauses *string    `json:"clauses"`
	Reason  string     `json:"reason"`
}

// Amend creates a PENDING contract that references the original, which is
// left untouched. Only one amendment per original may be open at a time.
func (s *ContractService) Amend(ctx context.Context, p model.Principal, id int64, input AmendInput) (*model.Contract, error) {
	original, err := loadVisible(ctx, s.contracts, p, id)
	if err != nil {
		return nil, err
	}
	caps := policy.CapabilitiesFor(p.Role)
	if !caps.CanCreate || !caps.CanEdit {
		return nil, ErrPermissionDenied
	}
	if d := policy.CanAmend(policy.StateOf(original)); !d.Allowed {
		return nil, precondition(d.Message)
	}
	if input.Terms.IsEmpty() && input.Clauses == nil {
		return nil, fmt.Errorf("%w: an amendment must change terms or clauses", ErrInvalidInput)
	}
	terms := input.Terms.Apply(original.CommercialTerms)
	if err := checkTerms(terms); err != nil {
		return nil, err
	}
	clauses := original.Clauses
	if input.Clauses != nil {
		clauses = *input.Clauses
	}

	now := s.clock.Now()
	tok, err := token.Generate(s.cfg.TokenType, now)
	if err != nil {
		return nil, err
	}
	originalID := original.ID
	amendment := &model.Contract{
		VerificationToken: tok,
		PropertyID:        original.PropertyID,
		TenantID:          original.TenantID,
		OwnerID:           original.OwnerID,
		AgencyID:          original.AgencyID,
		WitnessName:       original.WitnessName,
		WitnessDocument:   original.WitnessDocument,
		ContractType:      original.ContractType,
		Status:            model.ContractStatusPending,
		CommercialTerms:   terms,
		Clauses:           clauses,
		AmendsContractID:  &originalID,
		CreatedByID:       p.UserID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.contracts.CreateContract(ctx, amendment); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: contract already has an open amendment", ErrConflict)
		}
		return nil, err
	}

	s.audit.record(ctx, model.LifecycleEvent{
		ContractID:  original.ID,
		Type:        model.EventContractAmended,
		Description: "Amendment created",
		Metadata:    map[string]any{"amendment_id": amendment.ID, "reason": input.Reason},
		CreatedBy:   actorOf(p),
	})
	return s.refreshSnapshot(ctx, amendment.ID)
}

// Activate starts a SIGNED contract.
func (s *ContractService) Activate(ctx context.Context, p model.Principal, id int64) (*model.Contract, error) {
	return s.transition(ctx, p, id, []model.ContractStatus{model.ContractStatusSigned}, model.ContractStatusActive,
		model.EventContractActivated, "Contract activated", "", "only signed contracts can be activated")
}

// Terminate ends a SIGNED or ACTIVE contract.
func (s *ContractService) Terminate(ctx context.Context, p model.Principal, id int64, reason string) (*model.Contract, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}
	return s.transition(ctx, p, id, []model.ContractStatus{model.ContractStatusSigned, model.ContractStatusActive},
		model.ContractStatusTerminated, model.EventContractEnded, "Contract terminated", reason,
		"only signed or active contracts can be terminated")
}

func (s *ContractService) transition(
	ctx context.Context,
	p model.Principal,
	id int64,
	from []model.ContractStatus,
	to model.ContractStatus,
	eventType model.EventType,
	description, reason, refusal string,
) (*model.Contract, error) {
	c, err := loadVisible(ctx, s.contracts, p, id)
	if err != nil {
		return nil, err
	}
	if !policy.CapabilitiesFor(p.Role).CanRevoke {
		return nil, ErrPermissionDenied
	}
	ok, err := s.contracts.TransitionStatus(ctx, c.ID, from, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, precondition(refusal)
	}

	metadata := map[string]any{"from": string(c.Status)}
	if reason != "" {
		metadata["reason"] = reason
	}
	s.audit.record(ctx, model.LifecycleEvent{
		ContractID:  c.ID,
		Type:        eventType,
		Description: description,
		Metadata:    metadata,
		CreatedBy:   actorOf(p),
	})
	return s.contracts.GetContract(ctx, id)
}

// Document returns the stored PDF of the given stage.
func (s *ContractService) Document(ctx context.Context, p model.Principal, id int64, stage model.DocumentStage) ([]byte, error) {
	c, err := loadVisible(ctx, s.contracts, p, id)
	if err != nil {
		return nil, err
	}
	ref := c.ProvisionalPDFRef
	if stage == model.DocumentFinal {
		ref = c.FinalPDFRef
	}
	if ref == "" {
		return nil, fmt.Errorf("%w: %s document", ErrNotFound, strings.ToLower(string(stage)))
	}
	doc, err := s.documents.GetDocument(ctx, id, ref)
	if err != nil {
		return nil, notFound(err, "document")
	}
	return doc.Content, nil
}
