package model

import "time"

type DefaultStatus string

const (
	DefaultStatusNone    DefaultStatus = "NONE"
	DefaultStatusAlleged DefaultStatus = "ALLEGED"
	DefaultStatusProven  DefaultStatus = "PROVEN"
)

type DefaultDetection struct {
	ContractID      int64         `json:"contract_id"`
	DefaultDetected bool          `json:"default_detected"`
	Status          DefaultStatus `json:"status"`
	OverdueCount    int           `json:"overdue_count"`
	TotalOverdue    float64       `json:"total_overdue"`
	OldestDueDate   *time.Time    `json:"oldest_due_date,omitempty"`
	MaxDaysOverdue  int           `json:"max_days_overdue"`
}

type DefaultNotice struct {
	ContractID   int64     `json:"contract_id"`
	DebtAmount   float64   `json:"debt_amount"`
	DeadlineDays int       `json:"deadline_days"`
	DeadlineDate time.Time `json:"deadline_date"`
	LegalBasis   []string  `json:"legal_basis"`
	Text         string    `json:"text"`
	Recipients   []string  `json:"recipients"`
	IssuedAt     time.Time `json:"issued_at"`
}

type AgreementProposal struct {
	ContractID       int64     `json:"contract_id"`
	TotalDebt        float64   `json:"total_debt"`
	DiscountPercent  float64   `json:"discount_percent"`
	NegotiatedAmount float64   `json:"negotiated_amount"`
	Installments     int       `json:"installments"`
	InstallmentValue float64   `json:"installment_value"`
	ProposedAt       time.Time `json:"proposed_at"`
}

type TimelineSource string

const (
	TimelineLifecycle    TimelineSource = "LIFECYCLE_EVENT"
	TimelineInvoice      TimelineSource = "OVERDUE_INVOICE"
	TimelineNotification TimelineSource = "NOTIFICATION"
)

type TimelineEntry struct {
	Date        time.Time        `json:"date"`
	Source      TimelineSource   `json:"source"`
	Type        string           `json:"type"`
	Description string           `json:"description"`
	Effect      *FinancialEffect `json:"financial_effect,omitempty"`
}

type FinancialSummary struct {
	TotalRent    float64 `json:"total_rent"`
	TotalPaid    float64 `json:"total_paid"`
	TotalOverdue float64 `json:"total_overdue"`
	Balance      float64 `json:"balance"`
	Currency     string  `json:"currency"`
}

type ContractSummary struct {
	ContractID        int64          `json:"contract_id"`
	VerificationToken string         `json:"verification_token"`
	ContractType      ContractType   `json:"contract_type"`
	Status            ContractStatus `json:"status"`
	TenantName        string         `json:"tenant_name"`
	OwnerName         string         `json:"owner_name"`
	PropertyAddress   string         `json:"property_address"`
	MonthlyRent       float64        `json:"monthly_rent"`
	StartDate         *time.Time     `json:"start_date,omitempty"`
	EndDate           *time.Time     `json:"end_date,omitempty"`
	Jurisdiction      string         `json:"jurisdiction"`
	ContentHash       string         `json:"content_hash"`
}

type DossierDocument struct {
	Name      string `json:"name"`
	Reference string `json:"reference"`
	Available bool   `json:"available"`
}

type JudicialDossier struct {
	Contract     ContractSummary   `json:"contract"`
	Timeline     []TimelineEntry   `json:"timeline"`
	Financial    FinancialSummary  `json:"financial"`
	LegalBasis   []string          `json:"legal_basis"`
	Documents    []DossierDocument `json:"documents"`
	MissingItems []string          `json:"missing_items"`
	Ready        bool              `json:"ready"`
	PreparedAt   time.Time         `json:"prepared_at"`
}

type FlowSummary struct {
	CurrentStep     string   `json:"current_step"`
	NextAction      string   `json:"next_action"`
	Recommendations []string `json:"recommendations"`
}

type FlowResult struct {
	Step1   *DefaultDetection  `json:"step1"`
	Step2   *DefaultNotice     `json:"step2"`
	Step3   *AgreementProposal `json:"step3"`
	Step4   *JudicialDossier   `json:"step4"`
	Summary FlowSummary        `json:"summary"`
}
