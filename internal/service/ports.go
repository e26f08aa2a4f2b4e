package service

import (
	"context"
	"time"

	"github.com/nurpe/lease-contracts/internal/model"
	"github.com/nurpe/lease-contracts/internal/repository"
)

type ContractStore interface {
	GetContract(ctx context.Context, id int64) (*model.Contract, error)
	CreateContract(ctx context.Context, c *model.Contract) error
	HasOpenContractForProperty(ctx context.Context, propertyID int64) (bool, error)
	UpdateTerms(ctx context.Context, id int64, terms model.CommercialTerms, snapshot string) (bool, error)
	UpdateAdminNotes(ctx context.Context, id int64, notes string) error
	UpdateClauses(ctx context.Context, id int64, clauses, snapshot string, entry model.ClauseHistoryEntry) (bool, error)
	ListClauseHistory(ctx context.Context, id int64) ([]model.ClauseHistoryEntry, error)
	TransitionStatus(ctx context.Context, id int64, from []model.ContractStatus, to model.ContractStatus) (bool, error)
	Revoke(ctx context.Context, id int64, reason string) (bool, error)
	SetProvisionalDocument(ctx context.Context, id int64, ref string) error
	RecordSignature(ctx context.Context, id int64, role model.SignerRole, sig model.Signature, guard repository.SignatureGuard) (bool, error)
	FinalizeLocked(ctx context.Context, id int64, decide func(c *model.Contract) (*model.Finalization, error)) (bool, error)
	SoftDelete(ctx context.Context, id int64, at time.Time) (bool, error)
}

type EventStore interface {
	CreateEvent(ctx context.Context, e *model.LifecycleEvent) error
	ListEvents(ctx context.Context, contractID int64) ([]model.LifecycleEvent, error)
	HasEventSince(ctx context.Context, contractID int64, types []model.EventType, since time.Time) (bool, error)
	CountEvents(ctx context.Context, contractID int64) (int, error)
}

type InvoiceProvider interface {
	ListOverdueInvoices(ctx context.Context, contractID int64, today time.Time) ([]model.Invoice, error)
	ListInvoices(ctx context.Context, contractID int64) ([]model.Invoice, error)
}

type NotificationLog interface {
	ListNotifications(ctx context.Context, contractID int64) ([]model.NotificationRecord, error)
}

type SignatureLinks interface {
	CreateLinks(ctx context.Context, contractID int64, parties []model.LinkParty, createdAt, expiresAt time.Time) ([]model.SignatureLink, error)
	RevokeAll(ctx context.Context, contractID int64, at time.Time) (int64, error)
}

type DocumentStore interface {
	SaveDocument(ctx context.Context, contractID int64, stage model.DocumentStage, data []byte, at time.Time) (string, error)
	GetDocument(ctx context.Context, contractID int64, ref string) (*repository.StoredDocument, error)
}

type Notifier interface {
	Notify(ctx context.Context, contractID int64, event string, recipients []model.Recipient, payload map[string]any) error
}

type PDFGenerator interface {
	GenerateContract(doc model.ContractDocument) ([]byte, error)
	GenerateDossier(d model.JudicialDossier) ([]byte, error)
}

type ExcelGenerator interface {
	GenerateDossier(d model.JudicialDossier) ([]byte, error)
}
