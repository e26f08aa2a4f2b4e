package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nurpe/lease-contracts/internal/clock"
	"github.com/nurpe/lease-contracts/internal/config"
	"github.com/nurpe/lease-contracts/internal/model"
	"github.com/nurpe/lease-contracts/internal/repository"
	"github.com/nurpe/lease-contracts/internal/rules"
)

// memStore implements every persistence port in memory. Conditional writes
// are checked under mu; FinalizeLocked holds rowLock like SELECT ... FOR UPDATE.
type memStore struct {
	mu      sync.Mutex
	rowLock sync.Mutex

	nextID        int64
	contracts     map[int64]*model.Contract
	history       []model.ClauseHistoryEntry
	events        []model.LifecycleEvent
	documents     map[string]repository.StoredDocument
	invoices      []model.Invoice
	notifications []model.NotificationRecord
	links         []model.SignatureLink

	revokeAllCalls int
	failEvents     bool
}

func newMemStore() *memStore {
	return &memStore{
		nextID:    100,
		contracts: make(map[int64]*model.Contract),
		documents: make(map[string]repository.StoredDocument),
	}
}

func (m *memStore) put(c *model.Contract) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.contracts[c.ID] = &cp
}

func (m *memStore) get(id int64) *model.Contract {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.contracts[id]
	return &cp
}

func (m *memStore) eventsOf(t model.EventType) []model.LifecycleEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.LifecycleEvent
	for _, e := range m.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (m *memStore) live(id int64) (*model.Contract, bool) {
	c, ok := m.contracts[id]
	if !ok || c.DeletedAt.Valid {
		return nil, false
	}
	return c, true
}

func (m *memStore) GetContract(_ context.Context, id int64) (*model.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.live(id)
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) CreateContract(_ context.Context, c *model.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.AmendsContractID != nil {
		for _, other := range m.contracts {
			open := other.Status == model.ContractStatusPending || other.Status == model.ContractStatusAwaitingSignatures
			if open && !other.DeletedAt.Valid && other.AmendsContractID != nil && *other.AmendsContractID == *c.AmendsContractID {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	m.nextID++
	c.ID = m.nextID
	cp := *c
	m.contracts[c.ID] = &cp
	return nil
}

func (m *memStore) HasOpenContractForProperty(_ context.Context, propertyID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contracts {
		if c.PropertyID == propertyID && !c.Status.IsTerminal() && !c.DeletedAt.Valid && c.AmendsContractID == nil {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) editable(id int64) (*model.Contract, bool) {
	c, ok := m.live(id)
	if !ok || c.Status != model.ContractStatusPending || c.HasAnySignature() {
		return nil, false
	}
	return c, true
}

func (m *memStore) UpdateTerms(_ context.Context, id int64, terms model.CommercialTerms, snapshot string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.editable(id)
	if !ok {
		return false, nil
	}
	c.CommercialTerms = terms
	c.ContentSnapshot = snapshot
	return true, nil
}

func (m *memStore) UpdateAdminNotes(_ context.Context, id int64, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.live(id)
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.AdminNotes = notes
	return nil
}

func (m *memStore) UpdateClauses(_ context.Context, id int64, clauses, snapshot string, entry model.ClauseHistoryEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.editable(id)
	if !ok {
		return false, nil
	}
	c.Clauses = clauses
	c.ContentSnapshot = snapshot
	entry.ID = int64(len(m.history) + 1)
	m.history = append(m.history, entry)
	return true, nil
}

func (m *memStore) ListClauseHistory(_ context.Context, id int64) ([]model.ClauseHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ClauseHistoryEntry
	for _, h := range m.history {
		if h.ContractID == id {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memStore) TransitionStatus(_ context.Context, id int64, from []model.ContractStatus, to model.ContractStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.live(id)
	if !ok || !statusIn(c.Status, from) {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (m *memStore) Revoke(_ context.Context, id int64, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.live(id)
	if !ok || c.Status.IsTerminal() {
		return false, nil
	}
	c.Status = model.ContractStatusRevoked
	c.RevocationReason = reason
	return true, nil
}

func (m *memStore) SetProvisionalDocument(_ context.Context, id int64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.contracts[id]; ok {
		c.ProvisionalPDFRef = ref
	}
	return nil
}

func (m *memStore) RecordSignature(_ context.Context, id int64, role model.SignerRole, sig model.Signature, guard repository.SignatureGuard) (bool, error) {
	if _, ok := model.ParseSignerRole(string(role)); !ok {
		return false, fmt.Errorf("unknown signer role %q", role)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.live(id)
	if !ok || c.SignatureFor(role).IsSigned() {
		return false, nil
	}
	if len(guard.Statuses) > 0 && !statusIn(c.Status, guard.Statuses) {
		return false, nil
	}
	for _, required := range guard.RequireSigned {
		if !c.SignatureFor(required).IsSigned() {
			return false, nil
		}
	}
	*c.SignatureFor(role) = sig
	return true, nil
}

func (m *memStore) FinalizeLocked(ctx context.Context, id int64, decide func(c *model.Contract) (*model.Finalization, error)) (bool, error) {
	m.rowLock.Lock()
	defer m.rowLock.Unlock()

	c, err := m.GetContract(ctx, id)
	if err != nil {
		return false, err
	}
	fin, err := decide(c)
	if err != nil || fin == nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ref := uuid.New()
	m.documents[ref.String()] = repository.StoredDocument{
		ID: ref, ContractID: id, Stage: model.DocumentFinal, Content: fin.PDF, CreatedAt: fin.SignedAt,
	}
	stored := m.contracts[id]
	stored.Status = model.ContractStatusSigned
	stored.FinalContent = fin.FinalContent
	stored.ContentHash = fin.ContentHash
	stored.HashGeneratedAt = &fin.SignedAt
	stored.HashIP = fin.HashIP
	stored.SignedAt = &fin.SignedAt
	stored.FinalPDFRef = ref.String()
	return true, nil
}

func (m *memStore) SoftDelete(_ context.Context, id int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.live(id)
	if !ok || c.HasAnySignature() || (c.Status != model.ContractStatusPending && c.Status != model.ContractStatusRevoked) {
		return false, nil
	}
	c.DeletedAt = gorm.DeletedAt{Time: at, Valid: true}
	for i := range m.invoices {
		if m.invoices[i].ContractID == id {
			m.invoices[i].ContractID = 0
		}
	}
	return true, nil
}

func (m *memStore) CreateEvent(_ context.Context, e *model.LifecycleEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failEvents {
		return errors.New("event store unavailable")
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	m.events = append(m.events, *e)
	return nil
}

func (m *memStore) ListEvents(_ context.Context, contractID int64) ([]model.LifecycleEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.LifecycleEvent
	for _, e := range m.events {
		if e.ContractID == contractID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) HasEventSince(_ context.Context, contractID int64, types []model.EventType, since time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ContractID != contractID || e.CreatedAt.Before(since) {
			continue
		}
		for _, t := range types {
			if e.Type == t {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *memStore) CountEvents(ctx context.Context, contractID int64) (int, error) {
	events, err := m.ListEvents(ctx, contractID)
	return len(events), err
}

func (m *memStore) ListOverdueInvoices(_ context.Context, contractID int64, today time.Time) ([]model.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Invoice
	for _, inv := range m.invoices {
		if inv.ContractID != contractID {
			continue
		}
		if inv.Status == model.InvoiceStatusOverdue || (inv.Status == model.InvoiceStatusOpen && inv.DueDate.Before(today)) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *memStore) ListInvoices(_ context.Context, contractID int64) ([]model.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Invoice
	for _, inv := range m.invoices {
		if inv.ContractID == contractID && inv.Status != model.InvoiceStatusCanceled {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *memStore) ListNotifications(_ context.Context, contractID int64) ([]model.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.NotificationRecord
	for _, n := range m.notifications {
		if n.ContractID == contractID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memStore) CreateLinks(_ context.Context, contractID int64, parties []model.LinkParty, createdAt, expiresAt time.Time) ([]model.SignatureLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.SignatureLink, 0, len(parties))
	for _, p := range parties {
		link := model.SignatureLink{
			ID: uuid.New(), ContractID: contractID, SignerRole: p.Role, Contact: p.Contact,
			Token: uuid.NewString(), ExpiresAt: expiresAt, CreatedAt: createdAt,
		}
		m.links = append(m.links, link)
		out = append(out, link)
	}
	return out, nil
}

func (m *memStore) RevokeAll(_ context.Context, contractID int64, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revokeAllCalls++
	var n int64
	for i := range m.links {
		if m.links[i].ContractID == contractID && m.links[i].RevokedAt == nil {
			m.links[i].RevokedAt = &at
			n++
		}
	}
	return n, nil
}

func (m *memStore) SaveDocument(_ context.Context, contractID int64, stage model.DocumentStage, data []byte, at time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := uuid.New()
	m.documents[ref.String()] = repository.StoredDocument{ID: ref, ContractID: contractID, Stage: stage, Content: data, CreatedAt: at}
	return ref.String(), nil
}

func (m *memStore) GetDocument(_ context.Context, contractID int64, ref string) (*repository.StoredDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[ref]
	if !ok || doc.ContractID != contractID {
		return nil, gorm.ErrRecordNotFound
	}
	return &doc, nil
}

type countingPDF struct {
	mu       sync.Mutex
	byStage  map[model.DocumentStage]int
	dossiers int
	fail     bool
}

func (p *countingPDF) GenerateContract(doc model.ContractDocument) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return nil, errors.New("renderer down")
	}
	if p.byStage == nil {
		p.byStage = make(map[model.DocumentStage]int)
	}
	p.byStage[doc.Stage]++
	return []byte("%PDF-" + string(doc.Stage)), nil
}

func (p *countingPDF) GenerateDossier(model.JudicialDossier) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dossiers++
	return []byte("%PDF-dossier"), nil
}

func (p *countingPDF) count(stage model.DocumentStage) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.byStage[stage]
}

type stubExcel struct{}

func (stubExcel) GenerateDossier(model.JudicialDossier) ([]byte, error) {
	return []byte("PK"), nil
}

type countingNotifier struct {
	mu     sync.Mutex
	events []string
	fail   bool
}

func (n *countingNotifier) Notify(_ context.Context, _ int64, event string, _ []model.Recipient, _ map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	if n.fail {
		return errors.New("smtp down")
	}
	return nil
}

var testNow = time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC)

var testConfig = config.ContractsConfig{TokenType: "CTR", Currency: "BRL", SignatureLinkTTL: 72 * time.Hour}

type fixture struct {
	store    *memStore
	pdf      *countingPDF
	notifier *countingNotifier
	clock    clock.Clock

	contracts *ContractService
	signing   *SignatureService
	lifecycle *LifecycleService
	rules     *RulesService
	legal     *LegalService
}

func newFixture(clk clock.Clock) *fixture {
	f := &fixture{store: newMemStore(), pdf: &countingPDF{}, notifier: &countingNotifier{}, clock: clk}
	log := zerolog.Nop()
	f.contracts = NewContractService(f.store, f.store, f.store, clk, testConfig, log)
	f.signing = NewSignatureService(f.store, f.store, f.store, f.store, f.pdf, f.notifier, clk, testConfig, log)
	f.lifecycle = NewLifecycleService(f.store, f.store, clk, log)
	engine, err := rules.NewEngine()
	if err != nil {
		panic(err)
	}
	f.rules = NewRulesService(f.store, f.store, engine, clk, log)
	f.legal = NewLegalService(f.store, f.store, f.store, f.store, f.pdf, stubExcel{}, clk, testConfig, log)
	return f
}

var (
	adminP  = model.Principal{UserID: 1, Role: model.RoleAdmin}
	tenantP = model.Principal{UserID: 10, Role: model.RoleTenant}
	ownerP  = model.Principal{UserID: 20, Role: model.RoleOwner}
)

func dateOf(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// completeContract passes the signing checklist.
func completeContract(id int64, status model.ContractStatus) *model.Contract {
	c := &model.Contract{
		ID:                id,
		VerificationToken: "MR3X-CTR-2024-00001-00002",
		PropertyID:        7,
		TenantID:          10,
		OwnerID:           20,
		ContractType:      model.ContractTypeResidential,
		Status:            status,
		Clauses:           "Clause 1. The property is leased for residential use.",
		ContentSnapshot:   "LEASE\n\nTenant: {{signature:tenant}}\nLandlord: {{signature:owner}}\n",
		Property:          &model.Property{ID: 7, OwnerID: 20, CreatedByID: 20, Address: "Rua A, 10", City: "São Paulo", State: "SP"},
		Tenant:            &model.User{ID: 10, Name: "Ana Souza", Document: "111.111.111-11", Email: "ana@example.com"},
		Owner:             &model.User{ID: 20, Name: "Bruno Lima", Document: "222.222.222-22", Phone: "+5511999990000"},
	}
	c.MonthlyRent = 1000
	c.Deposit = 3000
	c.DueDay = 5
	c.GuaranteeType = model.GuaranteeDeposit
	c.StartDate = dateOf(2024, 1, 1)
	c.EndDate = dateOf(2025, 1, 1)
	c.LateFeePercent = 10
	c.InterestRatePercent = 1
	c.ReadjustmentIndex = "IGP-M"
	c.ReadjustmentMonth = 3
	c.Jurisdiction = "São Paulo/SP"
	return c
}
