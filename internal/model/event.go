package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventRentAdjustment      EventType = "RENT_ADJUSTMENT"
	EventTacitRenewal        EventType = "TACIT_RENEWAL"
	EventTerminationNotice   EventType = "TERMINATION_NOTICE"
	EventNonRenewalNotice    EventType = "NON_RENEWAL_NOTICE"
	EventTerminationRequest  EventType = "TERMINATION_REQUESTED"
	EventDefaultDeclared     EventType = "DEFAULT_DECLARED"
	EventAgreementReached    EventType = "AGREEMENT_REACHED"
	EventJudicialPreparation EventType = "JUDICIAL_PREPARATION"

	EventSentForSignature  EventType = "CONTRACT_SENT_FOR_SIGNATURE"
	EventContractFinalized EventType = "CONTRACT_FINALIZED"
	EventContractRevoked   EventType = "CONTRACT_REVOKED"
	EventContractAmended   EventType = "CONTRACT_AMENDED"
	EventContractActivated EventType = "CONTRACT_ACTIVATED"
	EventContractEnded     EventType = "CONTRACT_TERMINATED"
	EventClausesUpdated    EventType = "CLAUSES_UPDATED"
)

// TerminationNoticeFamily blocks tacit renewal when present.
var TerminationNoticeFamily = []EventType{
	EventTerminationNotice,
	EventNonRenewalNotice,
	EventTerminationRequest,
}

// SignatureEventType is SIGNATURE_CAPTURED_<ROLE> for geolocated captures and
// SIGNED_BY_<ROLE> otherwise.
func SignatureEventType(role SignerRole, geolocated bool) EventType {
	suffix := strings.ToUpper(string(role))
	if geolocated {
		return EventType("SIGNATURE_CAPTURED_" + suffix)
	}
	return EventType("SIGNED_BY_" + suffix)
}

type EffectKind string

const (
	EffectPenalty    EffectKind = "PENALTY"
	EffectAdjustment EffectKind = "ADJUSTMENT"
	EffectDiscount   EffectKind = "DISCOUNT"
	EffectPayment    EffectKind = "PAYMENT"
)

// CurrencyPercent marks effects expressed as a percentage rather than money.
const CurrencyPercent = "PERCENT"

const SystemActor = "SYSTEM"

type FinancialEffect struct {
	Kind     EffectKind `json:"kind"`
	Amount   float64    `json:"amount"`
	Currency string     `json:"currency"`
}

// LifecycleEvent is never updated or deleted after creation.
type LifecycleEvent struct {
	ID              uuid.UUID        `json:"id"`
	ContractID      int64            `json:"contract_id"`
	Type            EventType        `json:"type"`
	Description     string           `json:"description"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
	CreatedBy       string           `json:"created_by"`
	FinancialEffect *FinancialEffect `json:"financial_effect,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

type ClauseHistoryEntry struct {
	ID              int64     `gorm:"primaryKey" json:"id"`
	ContractID      int64     `gorm:"column:contract_id;index" json:"contract_id"`
	PreviousClauses string    `gorm:"column:previous_clauses" json:"previous_clauses"`
	EditedBy        int64     `gorm:"column:edited_by" json:"edited_by"`
	EditedAt        time.Time `gorm:"column:edited_at" json:"edited_at"`
	IP              string    `gorm:"column:ip" json:"ip"`
}

func (ClauseHistoryEntry) TableName() string { return "contract_clause_history" }
