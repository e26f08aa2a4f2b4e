package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/lease-contracts/internal/clock"
	"github.com/nurpe/lease-contracts/internal/model"
)

func signedContract(id int64) *model.Contract {
	c := completeContract(id, model.ContractStatusActive)
	signedAt := time.Date(2023, 12, 20, 9, 0, 0, 0, time.UTC)
	c.TenantSignature.SignedAt = &signedAt
	c.OwnerSignature.SignedAt = &signedAt
	c.ContentHash = "4f2a"
	c.FinalPDFRef = "final-ref"
	return c
}

func seedInvoices(f *fixture, id int64) {
	f.store.invoices = []model.Invoice{
		{ID: 1, ContractID: id, DueDate: time.Date(2023, 12, 5, 0, 0, 0, 0, time.UTC), OriginalValue: 1000, PaidValue: 1000, Status: model.InvoiceStatusPaid},
		{ID: 2, ContractID: id, DueDate: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), OriginalValue: 1000, Status: model.InvoiceStatusOverdue},
		{ID: 3, ContractID: id, DueDate: time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC), OriginalValue: 1000, Status: model.InvoiceStatusOpen},
		{ID: 4, ContractID: id, DueDate: time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC), OriginalValue: 1000, Status: model.InvoiceStatusOpen},
	}
}

func TestCompleteFlowWithoutOverdueInvoices(t *testing.T) {
	f := newFixture(clock.Fixed{At: testNow})
	f.store.put(signedContract(1))

	res, err := f.legal.ExecuteCompleteFlow(context.Background(), ownerP, 1, AgreementInput{})
	require.NoError(t, err)

	require.NotNil(t, res.Step1)
	assert.False(t, res.Step1.DefaultDetected)
	assert.Equal(t, model.DefaultStatusNone, res.Step1.Status)
	assert.Nil(t, res.Step2)
	assert.Nil(t, res.Step3)
	assert.Nil(t, res.Step4)
	assert.Equal(t, StepContractActive, res.Summary.CurrentStep)
	assert.Equal(t, ActionMonitorPayments, res.Summary.NextAction)
	assert.Empty(t, f.store.events)
}

func TestCompleteFlowWithOverdueInvoices(t *testing.T) {
	f := newFixture(clock.Fixed{At: testNow})
	f.store.put(signedContract(1))
	seedInvoices(f, 1)

	res, err := f.legal.ExecuteCompleteFlow(context.Background(), ownerP, 1, AgreementInput{DiscountPercent: 10, Installments: 3})
	require.NoError(t, err)

	assert.True(t, res.Step1.DefaultDetected)
	assert.Equal(t, model.DefaultStatusProven, res.Step1.Status)
	assert.Equal(t, 2, res.Step1.OverdueCount)
	assert.Equal(t, 2000.0, res.Step1.TotalOverdue)
	assert.Equal(t, 65, res.Step1.MaxDaysOverdue)

	require.NotNil(t, res.Step2)
	assert.Equal(t, 2000.0, res.Step2.DebtAmount)
	assert.Equal(t, NoticeDeadlineDays, res.Step2.DeadlineDays)
	assert.Equal(t, time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC), res.Step2.DeadlineDate)
	assert.Contains(t, res.Step2.Text, "R$ 2.000,00")
	assert.Contains(t, res.Step2.LegalBasis[0], "8.245")
	assert.Equal(t, []string{"Ana Souza"}, res.Step2.Recipients)

	require.NotNil(t, res.Step3)
	assert.Equal(t, 1800.0, res.Step3.NegotiatedAmount)
	assert.Equal(t, 600.0, res.Step3.InstallmentValue)

	require.NotNil(t, res.Step4)
	assert.True(t, res.Step4.Ready)
	assert.Empty(t, res.Step4.MissingItems)
	assert.Equal(t, model.FinancialSummary{TotalRent: 4000, TotalPaid: 1000, TotalOverdue: 2000, Balance: 3000, Currency: "BRL"}, res.Step4.Financial)
	require.NotEmpty(t, res.Step4.Timeline)
	assert.Equal(t, model.TimelineInvoice, res.Step4.Timeline[0].Source)
	assert.Equal(t, StepJudicialReady, res.Summary.CurrentStep)
	assert.Equal(t, ActionFileLawsuit, res.Summary.NextAction)

	declared := f.store.eventsOf(model.EventDefaultDeclared)
	require.Len(t, declared, 1)
	require.NotNil(t, declared[0].FinancialEffect)
	assert.Equal(t, model.EffectPenalty, declared[0].FinancialEffect.Kind)
	assert.Equal(t, 2000.0, declared[0].FinancialEffect.Amount)

	agreements := f.store.eventsOf(model.EventAgreementReached)
	require.Len(t, agreements, 1)
	assert.Equal(t, &model.FinancialEffect{Kind: model.EffectAdjustment, Amount: -10, Currency: model.CurrencyPercent}, agreements[0].FinancialEffect)
	assert.Len(t, f.store.eventsOf(model.EventJudicialPreparation), 1)

	_, err = f.legal.ExecuteCompleteFlow(context.Background(), ownerP, 1, AgreementInput{})
	require.NoError(t, err)
	assert.Len(t, f.store.eventsOf(model.EventDefaultDeclared), 1)
	assert.Len(t, f.store.eventsOf(model.EventJudicialPreparation), 2)
}

func TestPrepareJudicialIncomplete(t *testing.T) {
	f := newFixture(clock.Fixed{At: testNow})
	c := completeContract(1, model.ContractStatusAwaitingSignatures)
	now := testNow
	c.OwnerSignature.SignedAt = &now
	f.store.put(c)

	d, err := f.legal.PrepareJudicial(context.Background(), ownerP, 1)
	require.NoError(t, err)
	assert.False(t, d.Ready)
	assert.Equal(t, []string{dossierMissingFinalPDF, dossierMissingTenantSig, dossierMissingAuditEntries}, d.MissingItems)

	events := f.store.eventsOf(model.EventJudicialPreparation)
	require.Len(t, events, 1)
	assert.Equal(t, false, events[0].Metadata["ready"])
}

func TestGenerateNoticeRequiresProvenDefault(t *testing.T) {
	f := newFixture(clock.Fixed{At: testNow})
	f.store.put(signedContract(1))
	require.NoError(t, f.store.CreateEvent(context.Background(), &model.LifecycleEvent{
		ContractID: 1, Type: model.EventDefaultDeclared, CreatedAt: testNow.AddDate(0, -2, 0),
	}))

	d, err := f.legal.DetectDefault(context.Background(), ownerP, 1)
	require.NoError(t, err)
	assert.False(t, d.DefaultDetected)
	assert.Equal(t, model.DefaultStatusAlleged, d.Status)

	_, err = f.legal.GenerateNotice(context.Background(), ownerP, 1)
	assert.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestAgreementProposalInput(t *testing.T) {
	f := newFixture(clock.Fixed{At: testNow})
	f.store.put(signedContract(1))

	_, err := f.legal.CreateAgreementProposal(context.Background(), ownerP, 1, AgreementInput{DiscountPercent: 120})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.legal.CreateAgreementProposal(context.Background(), ownerP, 1, AgreementInput{Installments: -1})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.legal.CreateAgreementProposal(context.Background(), ownerP, 1, AgreementInput{})
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	seedInvoices(f, 1)
	p, err := f.legal.CreateAgreementProposal(context.Background(), ownerP, 1, AgreementInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Installments)
	assert.Equal(t, 2000.0, p.NegotiatedAmount)
	assert.Equal(t, 2000.0, p.InstallmentValue)
}

func TestLegalFlowRequiresCapability(t *testing.T) {
	f := newFixture(clock.Fixed{At: testNow})
	f.store.put(signedContract(1))

	_, err := f.legal.DetectDefault(context.Background(), tenantP, 1)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestExportDossier(t *testing.T) {
	f := newFixture(clock.Fixed{At: testNow})
	f.store.put(signedContract(1))

	data, contentType, err := f.legal.ExportDossier(context.Background(), ownerP, 1, "")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.Equal(t, "%PDF-dossier", string(data))

	_, contentType, err = f.legal.ExportDossier(context.Background(), ownerP, 1, "XLSX")
	require.NoError(t, err)
	assert.Contains(t, contentType, "spreadsheetml")

	_, _, err = f.legal.ExportDossier(context.Background(), ownerP, 1, "csv")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, f.store.eventsOf(model.EventJudicialPreparation))
}

func TestSummarize(t *testing.T) {
	detected := &model.DefaultDetection{DefaultDetected: true, Status: model.DefaultStatusProven}
	notice := &model.DefaultNotice{DeadlineDays: NoticeDeadlineDays}
	proposal := &model.AgreementProposal{}
	incomplete := &model.JudicialDossier{MissingItems: []string{dossierMissingFinalPDF}}

	tests := []struct {
		name string
		got  model.FlowSummary
		step string
		next string
	}{
		{"nothing", Summarize(nil, nil, nil, nil), StepContractActive, ActionMonitorPayments},
		{"no default", Summarize(&model.DefaultDetection{}, nil, nil, nil), StepContractActive, ActionMonitorPayments},
		{"default only", Summarize(detected, nil, nil, nil), StepDefaultDetected, ActionGenerateNotice},
		{"notice", Summarize(detected, notice, nil, nil), StepNoticeGenerated, ActionSendNotice},
		{"agreement", Summarize(detected, notice, proposal, nil), StepAgreementProposed, ActionAwaitAgreement},
		{"dossier incomplete", Summarize(detected, notice, proposal, incomplete), StepJudicialIncomplete, ActionCompleteDossier},
		{"dossier ready", Summarize(detected, notice, proposal, &model.JudicialDossier{Ready: true}), StepJudicialReady, ActionFileLawsuit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.step, tt.got.CurrentStep)
			assert.Equal(t, tt.next, tt.got.NextAction)
			assert.NotEmpty(t, tt.got.Recommendations)
		})
	}

	assert.Equal(t, []string{"provide final signed PDF"}, Summarize(detected, notice, proposal, incomplete).Recommendations)
}
