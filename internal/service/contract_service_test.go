package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/lease-contracts/internal/clock"
	"github.com/nurpe/lease-contracts/internal/model"
	"github.com/nurpe/lease-contracts/internal/token"
)

func ptr[T any](v T) *T { return &v }

func TestCreateContract(t *testing.T) {
	f := newFixture(clock.Fixed{At: testNow})

	c, err := f.contracts.Create(context.Background(), ownerP, CreateContractInput{
		PropertyID:   7,
		TenantID:     10,
		OwnerID:      20,
		ContractType: model.ContractTypeResidential,
		Terms:        TermsPatch{MonthlyRent: ptr(1500.0), DueDay: ptr(10), Jurisdiction: ptr(" Campinas/SP ")},
		Clauses:      "Clause 1.",
	})
	require.NoError(t, err)

	assert.Equal(t, model.ContractStatusPending, c.Status)
	assert.True(t, token.Valid(c.VerificationToken))
	assert.Equal(t, 1500.0, c.MonthlyRent)
	assert.Equal(t, "Campinas/SP", c.Jurisdiction)
	assert.Contains(t, c.ContentSnapshot, "{{signature:tenant}}")
	assert.Contains(t, c.ContentSnapshot, "{{signature:owner}}")
	assert.Contains(t, c.ContentSnapshot, "R$ 1.500,00")

	_, err = f.contracts.Create(context.Background(), ownerP, CreateContractInput{
		PropertyID: 7, TenantID: 11, OwnerID: 20, ContractType: model.ContractTypeResidential,
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateContractRejects(t *testing.T) {
	f := newFixture(clock.Fixed{At: testNow})

	_, err := f.contracts.Create(context.Background(), tenantP, CreateContractInput{PropertyID: 1, TenantID: 10, OwnerID: 20, ContractType: model.ContractTypeResidential})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.contracts.Create(context.Background(), ownerP, CreateContractInput{PropertyID: 1, TenantID: 10, OwnerID: 20, ContractType: "LAND"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.contracts.Create(context.Background(), ownerP, CreateContractInput{
		PropertyID: 1, TenantID: 10, OwnerID: 20, ContractType: model.ContractTypeCommercial,
		Terms: TermsPatch{StartDate: dateOf(2024, 5, 1), EndDate: dateOf(2024, 4, 1)},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	broker := model.Principal{UserID: 40, Role: model.RoleBroker}
	_, err = f.contracts.Create(context.Background(), broker, CreateContractInput{PropertyID: 1, TenantID: 10, OwnerID: 20, ContractType: model.ContractTypeResidential})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestUpdateAfterSignatureFails(t *testing.T) {
	f := newFixture(clock.Fixed{At: testNow})
	c := completeContract(1, model.ContractStatusPending)
	now := testNow
	c.TenantSignature.SignedAt = &now
	f.store.put(c)

	_, err := f.contracts.Update(context.Background(), ownerP, 1, UpdateContractInput{Terms: TermsPatch{MonthlyRent: ptr(2000.0)}})
	require.ErrorIs(t, err, ErrPreconditionFailed)
	assert.Equal(t, 1000.0, f.store.get(1).MonthlyRent)

	notes := "tenant asked for paper copy"
	updated, err := f.contracts.Update(context.Background(), ownerP, 1, UpdateContractInput{AdminNotes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.AdminNotes)
}

func TestUpdatePendingContract(t *testing.T) {
	f := newFixture(clock.Fixed{At: testNow})
	f.store.put(completeContract(1, model.ContractStatusPending))

	updated, err := f.contracts.Update(context.Background(), ownerP, 1, UpdateContractInput{Terms: TermsPatch{MonthlyRent: ptr(1200.0)}})
	require.NoError(t, err)
	assert.Equal(t, 1200.0, updated.MonthlyRent)
	assert.Equal(t, 3000.0, updated.Deposit)
	assert.Contains(t, updated.ContentSnapshot, "R$ 1.200,00")

	_, err = f.contracts.Update(context.Background(), ownerP, 1, UpdateContractInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.contracts.Update(context.Background(), tenantP, 1, UpdateContractInput{Terms: TermsPatch{MonthlyRent: ptr(1.0)}})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestUpdateClausesKeepsHistory(t *testing.T) {
	f := newFixture(clock.Fixed{At: testNow})
	f.store.put(completeContract(1, model.ContractStatusPending))

	updated, err := f.contracts.UpdateClauses(context.Background(), ownerP, 1, "Clause 1. Pets allowed.", "10.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, "Clause 1. Pets allowed.", updated.Clauses)

	history, err := f.contracts.ClauseHistory(context.Background(), ownerP, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Clause 1. The property is leased for residential use.", history[0].PreviousClauses)
	assert.Equal(t, int64(20), history[0].EditedBy)
	assert.Equal(t, "10.1.1.1", history[0].IP)
	assert.Len(t, f.store.eventsOf(model.EventClausesUpdated), 1)

	f.store.put(completeContract(2, model.ContractStatusAwaitingSignatures))
	_, err = f.contracts.UpdateClauses(context.Background(), ownerP, 2, "x", "")
	assert.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestDeleteContract(t *testing.T) {
	f := newFixture(clock.Fixed{At: testNow})
	f.store.put(completeContract(1, model.ContractStatusPending))
	f.store.invoices = []model.Invoice{{ID: 1, ContractID: 1, Status: model.InvoiceStatusOpen}}

	require.NoError(t, f.contracts.Delete(context.Background(), ownerP, 1))
	assert.Zero(t, f.store.invoices[0].ContractID)

	_, err := f.contracts.Get(context.Background(), ownerP, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	c := completeContract(2, model.ContractStatusSigned)
	now := testNow
	c.TenantSignature.SignedAt = &now
	f.store.put(c)
	assert.ErrorIs(t, f.contracts.Delete(context.Background(), ownerP, 2), ErrPreconditionFailed)
}

func TestAmendCreatesNewPendingContract(t *testing.T) {
	f := newFixture(clock.Fixed{At: testNow})
	original := completeContract(1, model.ContractStatusSigned)
	now := testNow
	original.TenantSignature.SignedAt = &now
	original.OwnerSignature.SignedAt = &now
	f.store.put(original)

	amendment, err := f.contracts.Amend(context.Background(), ownerP, 1, AmendInput{Terms: TermsPatch{MonthlyRent: ptr(1300.0)}, Reason: "renegotiated"})
	require.NoError(t, err)
	assert.NotEqual(t, int64(1), amendment.ID)
	assert.Equal(t, model.ContractStatusPending, amendment.Status)
	require.NotNil(t, amendment.AmendsContractID)
	assert.Equal(t, int64(1), *amendment.AmendsContractID)
	assert.Equal(t, 1300.0, amendment.MonthlyRent)
	assert.False(t, amendment.HasAnySignature())

	assert.Equal(t, 1000.0, f.store.get(1).MonthlyRent)
	assert.Equal(t, model.ContractStatusSigned, f.store.get(1).Status)
	events := f.store.eventsOf(model.EventContractAmended)
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].ContractID)

	f.store.put(completeContract(3, model.ContractStatusPending))
	_, err = f.contracts.Amend(context.Background(), ownerP, 3, AmendInput{Terms: TermsPatch{MonthlyRent: ptr(1.0)}})
	assert.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestAmendAllowsOneOpenAmendment(t *testing.T) {
	f := newFixture(clock.Fixed{At: testNow})
	f.store.put(completeContract(1, model.ContractStatusActive))

	first, err := f.contracts.Amend(context.Background(), ownerP, 1, AmendInput{Terms: TermsPatch{MonthlyRent: ptr(1300.0)}})
	require.NoError(t, err)

	_, err = f.contracts.Amend(context.Background(), ownerP, 1, AmendInput{Terms: TermsPatch{MonthlyRent: ptr(1400.0)}})
	require.ErrorIs(t, err, ErrConflict)
	assert.Len(t, f.store.eventsOf(model.EventContractAmended), 1)

	_, err = f.signing.Revoke(context.Background(), ownerP, first.ID, "superseded")
	require.NoError(t, err)
	second, err := f.contracts.Amend(context.Background(), ownerP, 1, AmendInput{Terms: TermsPatch{MonthlyRent: ptr(1400.0)}})
	require.NoError(t, err)
	assert.Equal(t, 1400.0, second.MonthlyRent)
}

func TestActivateAndTerminate(t *testing.T) {
	f := newFixture(clock.Fixed{At: testNow})
	f.store.put(completeContract(1, model.ContractStatusSigned))

	c, err := f.contracts.Activate(context.Background(), ownerP, 1)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusActive, c.Status)

	_, err = f.contracts.Activate(context.Background(), ownerP, 1)
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	_, err = f.contracts.Terminate(context.Background(), ownerP, 1, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	c, err = f.contracts.Terminate(context.Background(), ownerP, 1, "end of term")
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusTerminated, c.Status)

	events := f.store.eventsOf(model.EventContractEnded)
	require.Len(t, events, 1)
	assert.Equal(t, "end of term", events[0].Metadata["reason"])
}

func TestDocumentDownload(t *testing.T) {
	f := newFixture(clock.Fixed{At: testNow})
	f.store.put(completeContract(1, model.ContractStatusPending))

	_, err := f.contracts.Document(context.Background(), ownerP, 1, model.DocumentProvisional)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.signing.PrepareForSigning(context.Background(), ownerP, 1, "")
	require.NoError(t, err)

	data, err := f.contracts.Document(context.Background(), tenantP, 1, model.DocumentProvisional)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-PROVISIONAL", string(data))
}
