package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/lease-contracts/internal/clock"
	"github.com/nurpe/lease-contracts/internal/config"
	"github.com/nurpe/lease-contracts/internal/document"
	"github.com/nurpe/lease-contracts/internal/model"
	"github.com/nurpe/lease-contracts/internal/policy"
	"github.com/nurpe/lease-contracts/internal/rules"
)

// NoticeDeadlineDays is the cure period granted by an extrajudicial notice.
const NoticeDeadlineDays = 15

const (
	StepContractActive         = "CONTRACT_ACTIVE"
	StepDefaultDetected        = "DEFAULT_DETECTED"
	StepNoticeGenerated        = "NOTICE_GENERATED"
	StepAgreementProposed      = "AGREEMENT_PROPOSED"
	StepJudicialReady          = "JUDICIAL_READY"
	StepJudicialIncomplete     = "JUDICIAL_PREPARATION_INCOMPLETE"
	ActionMonitorPayments      = "MONITOR_PAYMENTS"
	ActionGenerateNotice       = "GENERATE_NOTICE"
	ActionSendNotice           = "SEND_NOTICE"
	ActionAwaitAgreement       = "AWAIT_AGREEMENT_RESPONSE"
	ActionCompleteDossier      = "COMPLETE_DOSSIER"
	ActionFileLawsuit          = "FILE_LAWSUIT"
	dossierMissingFinalPDF     = "final signed PDF"
	dossierMissingTenantSig    = "tenant signature"
	dossierMissingOwnerSig     = "owner signature"
	dossierMissingAuditEntries = "lifecycle events"
)

const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

type LegalService struct {
	contracts     ContractStore
	events        EventStore
	invoices      InvoiceProvider
	notifications NotificationLog
	pdf           PDFGenerator
	excel         ExcelGenerator
	audit         auditLog
	clock         clock.Clock
	cfg           config.ContractsConfig
	log           zerolog.Logger
}

func NewLegalService(
	contracts ContractStore,
	events EventStore,
	invoices InvoiceProvider,
	notifications NotificationLog,
	pdf PDFGenerator,
	excel ExcelGenerator,
	clk clock.Clock,
	cfg config.ContractsConfig,
	log zerolog.Logger,
) *LegalService {
	return &LegalService{
		contracts:     contracts,
		events:        events,
		invoices:      invoices,
		notifications: notifications,
		pdf:           pdf,
		excel:         excel,
		audit:         auditLog{events: events, clock: clk, log: log},
		clock:         clk,
		cfg:           cfg,
		log:           log,
	}
}

type AgreementInput struct {
	DiscountPercent float64 `json:"discount_percent"`
	Installments    int     `json:"installments"`
}

func (in AgreementInput) normalize() (AgreementInput, error) {
	if in.DiscountPercent < 0 || in.DiscountPercent > 100 {
		return in, fmt.Errorf("%w: discount_percent must be between 0 and 100", ErrInvalidInput)
	}
	if in.Installments < 0 {
		return in, fmt.Errorf("%w: installments cannot be negative", ErrInvalidInput)
	}
	if in.Installments == 0 {
		in.Installments = 1
	}
	return in, nil
}

func (s *LegalService) load(ctx context.Context, p model.Principal, id int64) (*model.Contract, error) {
	c, err := loadVisible(ctx, s.contracts, p, id)
	if err != nil {
		return nil, err
	}
	if !policy.CapabilitiesFor(p.Role).CanRunLegal {
		return nil, ErrPermissionDenied
	}
	return c, nil
}

// DetectDefault reports overdue invoices and declares the default once per
// overdue period.
func (s *LegalService) DetectDefault(ctx context.Context, p model.Principal, id int64) (*model.DefaultDetection, error) {
	c, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return s.detect(ctx, c, p)
}

func (s *LegalService) detect(ctx context.Context, c *model.Contract, p model.Principal) (*model.DefaultDetection, error) {
	today := clock.DateOnly(s.clock.Now())
	overdue, err := s.invoices.ListOverdueInvoices(ctx, c.ID, today)
	if err != nil {
		return nil, err
	}

	d := &model.DefaultDetection{ContractID: c.ID, Status: model.DefaultStatusNone}
	if len(overdue) == 0 {
		declared, err := s.events.HasEventSince(ctx, c.ID, []model.EventType{model.EventDefaultDeclared}, time.Time{})
		if err != nil {
			return nil, err
		}
		if declared {
			d.Status = model.DefaultStatusAlleged
		}
		return d, nil
	}

	d.DefaultDetected = true
	d.Status = model.DefaultStatusProven
	d.OverdueCount = len(overdue)
	oldest := clock.DateOnly(overdue[0].DueDate)
	for _, inv := range overdue {
		d.TotalOverdue += inv.OriginalValue
		if due := clock.DateOnly(inv.DueDate); due.Before(oldest) {
			oldest = due
		}
	}
	d.TotalOverdue = roundCents(d.TotalOverdue)
	d.OldestDueDate = &oldest
	d.MaxDaysOverdue = int(today.Sub(oldest).Hours() / 24)

	declared, err := s.events.HasEventSince(ctx, c.ID, []model.EventType{model.EventDefaultDeclared}, oldest)
	if err != nil {
		return nil, err
	}
	if !declared {
		s.audit.record(ctx, model.LifecycleEvent{
			ContractID:  c.ID,
			Type:        model.EventDefaultDeclared,
			Description: fmt.Sprintf("Default declared: %d overdue invoice(s) totaling %s", d.OverdueCount, document.Money(d.TotalOverdue, s.cfg.Currency)),
			Metadata: map[string]any{
				"overdue_count":    d.OverdueCount,
				"oldest_due_date":  oldest.Format("2006-01-02"),
				"max_days_overdue": d.MaxDaysOverdue,
			},
			CreatedBy:       actorOf(p),
			FinancialEffect: &model.FinancialEffect{Kind: model.EffectPenalty, Amount: d.TotalOverdue, Currency: s.cfg.Currency},
		})
	}
	return d, nil
}

// GenerateNotice drafts the extrajudicial notice; delivery happens elsewhere.
func (s *LegalService) GenerateNotice(ctx context.Context, p model.Principal, id int64) (*model.DefaultNotice, error) {
	c, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	d, err := s.detect(ctx, c, p)
	if err != nil {
		return nil, err
	}
	return s.notice(c, d)
}

func (s *LegalService) notice(c *model.Contract, d *model.DefaultDetection) (*model.DefaultNotice, error) {
	if d.Status != model.DefaultStatusProven {
		return nil, precondition("a notice requires a default proven by overdue invoices")
	}
	now := s.clock.Now()
	deadline := clock.DateOnly(now).AddDate(0, 0, NoticeDeadlineDays)
	basis := rules.LegalBasisFor(c.ContractType)

	var recipients []string
	for _, r := range recipientsOf(c) {
		if r.UserID == c.TenantID {
			recipients = append(recipients, r.Name)
		}
	}

	tenant := "the tenant"
	if c.Tenant != nil && c.Tenant.Name != "" {
		tenant = c.Tenant.Name
	}
	var b strings.Builder
	b.WriteString("EXTRAJUDICIAL NOTICE OF DEFAULT\n\n")
	fmt.Fprintf(&b, "To %s, regarding lease contract %s.\n\n", tenant, c.VerificationToken)
	fmt.Fprintf(&b, "%d rent invoice(s) remain unpaid, totaling %s", d.OverdueCount, document.Money(d.TotalOverdue, s.cfg.Currency))
	if d.OldestDueDate != nil {
		fmt.Fprintf(&b, ", the oldest due on %s", d.OldestDueDate.Format("02/01/2006"))
	}
	fmt.Fprintf(&b, ".\n\nYou have %d days, until %s, to settle the debt. ", NoticeDeadlineDays, deadline.Format("02/01/2006"))
	b.WriteString("Failing that, the landlord may terminate the lease and file for eviction and collection.\n\n")
	b.WriteString("Legal basis:\n")
	for _, l := range basis {
		fmt.Fprintf(&b, "- %s\n", l)
	}

	return &model.DefaultNotice{
		ContractID:   c.ID,
		DebtAmount:   d.TotalOverdue,
		DeadlineDays: NoticeDeadlineDays,
		DeadlineDate: deadline,
		LegalBasis:   basis,
		Text:         b.String(),
		Recipients:   recipients,
		IssuedAt:     now,
	}, nil
}

// CreateAgreementProposal offers the outstanding debt with a discount, split
// into equal installments.
func (s *LegalService) CreateAgreementProposal(ctx context.Context, p model.Principal, id int64, input AgreementInput) (*model.AgreementProposal, error) {
	input, err := input.normalize()
	if err != nil {
		return nil, err
	}
	c, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	d, err := s.detect(ctx, c, p)
	if err != nil {
		return nil, err
	}
	return s.propose(ctx, c, p, d.TotalOverdue, input)
}

func (s *LegalService) propose(ctx context.Context, c *model.Contract, p model.Principal, debt float64, input AgreementInput) (*model.AgreementProposal, error) {
	if debt <= 0 {
		return nil, precondition("there is no outstanding debt to negotiate")
	}
	negotiated := roundCents(debt * (1 - input.DiscountPercent/100))
	proposal := &model.AgreementProposal{
		ContractID:       c.ID,
		TotalDebt:        debt,
		DiscountPercent:  input.DiscountPercent,
		NegotiatedAmount: negotiated,
		Installments:     input.Installments,
		InstallmentValue: roundCents(negotiated / float64(input.Installments)),
		ProposedAt:       s.clock.Now(),
	}

	s.audit.record(ctx, model.LifecycleEvent{
		ContractID: c.ID,
		Type:       model.EventAgreementReached,
		Description: fmt.Sprintf("Agreement proposed: %s in %d installment(s) of %s",
			document.Money(negotiated, s.cfg.Currency), proposal.Installments, document.Money(proposal.InstallmentValue, s.cfg.Currency)),
		Metadata: map[string]any{
			"total_debt":        debt,
			"negotiated_amount": negotiated,
			"installments":      proposal.Installments,
			"installment_value": proposal.InstallmentValue,
		},
		CreatedBy: actorOf(p),
		FinancialEffect: &model.FinancialEffect{
			Kind:     model.EffectAdjustment,
			Amount:   -input.DiscountPercent,
			Currency: model.CurrencyPercent,
		},
	})
	return proposal, nil
}

// PrepareJudicial assembles the dossier and records the preparation whether
// or not it is complete.
func (s *LegalService) PrepareJudicial(ctx context.Context, p model.Principal, id int64) (*model.JudicialDossier, error) {
	c, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return s.prepare(ctx, c, p)
}

func (s *LegalService) prepare(ctx context.Context, c *model.Contract, p model.Principal) (*model.JudicialDossier, error) {
	dossier, err := s.buildDossier(ctx, c)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, model.LifecycleEvent{
		ContractID:  c.ID,
		Type:        model.EventJudicialPreparation,
		Description: "Judicial dossier prepared",
		Metadata: map[string]any{
			"ready":         dossier.Ready,
			"missing_items": dossier.MissingItems,
		},
		CreatedBy: actorOf(p),
	})
	return dossier, nil
}

func (s *LegalService) buildDossier(ctx context.Context, c *model.Contract) (*model.JudicialDossier, error) {
	now := s.clock.Now()
	events, err := s.events.ListEvents(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	overdue, err := s.invoices.ListOverdueInvoices(ctx, c.ID, clock.DateOnly(now))
	if err != nil {
		return nil, err
	}
	invoices, err := s.invoices.ListInvoices(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	notifications, err := s.notifications.ListNotifications(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	dossier := &model.JudicialDossier{
		Contract:   summarize(c),
		Timeline:   mergeTimeline(events, overdue, notifications, s.cfg.Currency),
		Financial:  financialSummary(invoices, overdue, s.cfg.Currency),
		LegalBasis: rules.LegalBasisFor(c.ContractType),
		Documents: []model.DossierDocument{
			{Name: "Final signed contract (PDF)", Reference: c.FinalPDFRef, Available: c.FinalPDFRef != ""},
			{Name: "Provisional contract (PDF)", Reference: c.ProvisionalPDFRef, Available: c.ProvisionalPDFRef != ""},
			{Name: "Content hash", Reference: c.ContentHash, Available: c.ContentHash != ""},
			{Name: "Lifecycle events", Reference: fmt.Sprintf("%d event(s)", len(events)), Available: len(events) > 0},
		},
		MissingItems: []string{},
		PreparedAt:   now,
	}

	if c.FinalPDFRef == "" {
		dossier.MissingItems = append(dossier.MissingItems, dossierMissingFinalPDF)
	}
	if !c.TenantSignature.IsSigned() {
		dossier.MissingItems = append(dossier.MissingItems, dossierMissingTenantSig)
	}
	if !c.OwnerSignature.IsSigned() {
		dossier.MissingItems = append(dossier.MissingItems, dossierMissingOwnerSig)
	}
	if len(events) == 0 {
		dossier.MissingItems = append(dossier.MissingItems, dossierMissingAuditEntries)
	}
	dossier.Ready = len(dossier.MissingItems) == 0
	return dossier, nil
}

func summarize(c *model.Contract) model.ContractSummary {
	s := model.ContractSummary{
		ContractID:        c.ID,
		VerificationToken: c.VerificationToken,
		ContractType:      c.ContractType,
		Status:            c.Status,
		MonthlyRent:       c.MonthlyRent,
		StartDate:         c.StartDate,
		EndDate:           c.EndDate,
		Jurisdiction:      c.Jurisdiction,
		ContentHash:       c.ContentHash,
	}
	if c.Tenant != nil {
		s.TenantName = c.Tenant.Name
	}
	if c.Owner != nil {
		s.OwnerName = c.Owner.Name
	}
	if c.Property != nil {
		parts := []string{c.Property.Address}
		if c.Property.City != "" {
			parts = append(parts, c.Property.City+"/"+c.Property.State)
		}
		s.PropertyAddress = strings.Join(parts, ", ")
	}
	return s
}

// mergeTimeline orders every source by date; ties keep source order.
func mergeTimeline(events []model.LifecycleEvent, overdue []model.Invoice, notifications []model.NotificationRecord, currency string) []model.TimelineEntry {
	timeline := make([]model.TimelineEntry, 0, len(events)+len(overdue)+len(notifications))
	for _, e := range events {
		timeline = append(timeline, model.TimelineEntry{
			Date:        e.CreatedAt,
			Source:      model.TimelineLifecycle,
			Type:        string(e.Type),
			Description: e.Description,
			Effect:      e.FinancialEffect,
		})
	}
	for _, inv := range overdue {
		timeline = append(timeline, model.TimelineEntry{
			Date:        inv.DueDate,
			Source:      model.TimelineInvoice,
			Type:        string(model.InvoiceStatusOverdue),
			Description: fmt.Sprintf("Invoice #%d of %s not paid", inv.ID, document.Money(inv.OriginalValue, currency)),
		})
	}
	for _, n := range notifications {
		timeline = append(timeline, model.TimelineEntry{
			Date:        n.SentAt,
			Source:      model.TimelineNotification,
			Type:        n.Event,
			Description: fmt.Sprintf("Notification sent by %s to %s", n.Channel, n.Recipient),
		})
	}
	slices.SortStableFunc(timeline, func(a, b model.TimelineEntry) int {
		return a.Date.Compare(b.Date)
	})
	return timeline
}

func financialSummary(invoices, overdue []model.Invoice, currency string) model.FinancialSummary {
	var f model.FinancialSummary
	for _, inv := range invoices {
		f.TotalRent += inv.OriginalValue
		f.TotalPaid += inv.PaidValue
	}
	for _, inv := range overdue {
		f.TotalOverdue += inv.OriginalValue
	}
	f.TotalRent = roundCents(f.TotalRent)
	f.TotalPaid = roundCents(f.TotalPaid)
	f.TotalOverdue = roundCents(f.TotalOverdue)
	f.Balance = roundCents(f.TotalRent - f.TotalPaid)
	f.Currency = currency
	return f
}

// ExecuteCompleteFlow runs the four steps in order and stops at the first one
// that produces nothing.
func (s *LegalService) ExecuteCompleteFlow(ctx context.Context, p model.Principal, id int64, input AgreementInput) (*model.FlowResult, error) {
	input, err := input.normalize()
	if err != nil {
		return nil, err
	}
	c, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}

	result := &model.FlowResult{}
	if result.Step1, err = s.detect(ctx, c, p); err != nil {
		return nil, err
	}
	if result.Step1.DefaultDetected {
		if result.Step2, err = s.notice(c, result.Step1); err != nil {
			return nil, err
		}
	}
	if result.Step2 != nil {
		if result.Step3, err = s.propose(ctx, c, p, result.Step2.DebtAmount, input); err != nil {
			return nil, err
		}
		if result.Step4, err = s.prepare(ctx, c, p); err != nil {
			return nil, err
		}
	}
	result.Summary = Summarize(result.Step1, result.Step2, result.Step3, result.Step4)
	return result, nil
}

// Summarize derives the flow position from the step results alone.
func Summarize(step1 *model.DefaultDetection, step2 *model.DefaultNotice, step3 *model.AgreementProposal, step4 *model.JudicialDossier) model.FlowSummary {
	switch {
	case step4 != nil && step4.Ready:
		return model.FlowSummary{
			CurrentStep:     StepJudicialReady,
			NextAction:      ActionFileLawsuit,
			Recommendations: []string{"file the eviction and collection action with the prepared dossier"},
		}
	case step4 != nil:
		recs := make([]string, 0, len(step4.MissingItems))
		for _, item := range step4.MissingItems {
			recs = append(recs, "provide "+item)
		}
		return model.FlowSummary{CurrentStep: StepJudicialIncomplete, NextAction: ActionCompleteDossier, Recommendations: recs}
	case step3 != nil:
		return model.FlowSummary{
			CurrentStep:     StepAgreementProposed,
			NextAction:      ActionAwaitAgreement,
			Recommendations: []string{"wait for the tenant's answer to the agreement proposal"},
		}
	case step2 != nil:
		return model.FlowSummary{
			CurrentStep: StepNoticeGenerated,
			NextAction:  ActionSendNotice,
			Recommendations: []string{
				fmt.Sprintf("deliver the notice and wait %d days for payment", step2.DeadlineDays),
			},
		}
	case step1 != nil && step1.DefaultDetected:
		return model.FlowSummary{
			CurrentStep:     StepDefaultDetected,
			NextAction:      ActionGenerateNotice,
			Recommendations: []string{"generate the extrajudicial notice"},
		}
	}
	return model.FlowSummary{
		CurrentStep:     StepContractActive,
		NextAction:      ActionMonitorPayments,
		Recommendations: []string{"no overdue invoices; keep monitoring payments"},
	}
}

// ExportDossier renders the dossier without recording a preparation event.
func (s *LegalService) ExportDossier(ctx context.Context, p model.Principal, id int64, format string) ([]byte, string, error) {
	c, err := s.load(ctx, p, id)
	if err != nil {
		return nil, "", err
	}
	dossier, err := s.buildDossier(ctx, c)
	if err != nil {
		return nil, "", err
	}

	switch strings.ToLower(format) {
	case "", FormatPDF:
		data, err := s.pdf.GenerateDossier(*dossier)
		if err != nil {
			return nil, "", fmt.Errorf("%w: dossier pdf: %v", ErrExternalFailure, err)
		}
		return data, "application/pdf", nil
	case FormatXLSX:
		data, err := s.excel.GenerateDossier(*dossier)
		if err != nil {
			return nil, "", fmt.Errorf("%w: dossier workbook: %v", ErrExternalFailure, err)
		}
		return data, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
	}
	return nil, "", fmt.Errorf("%w: unsupported format %q", ErrInvalidInput, format)
}
