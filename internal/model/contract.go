package model

import (
	"time"

	"gorm.io/gorm"
)

type ContractStatus string

const (
	ContractStatusPending            ContractStatus = "PENDING"
	ContractStatusAwaitingSignatures ContractStatus = "AWAITING_SIGNATURES"
	ContractStatusSigned             ContractStatus = "SIGNED"
	ContractStatusActive             ContractStatus = "ACTIVE"
	ContractStatusTerminated         ContractStatus = "TERMINATED"
	ContractStatusRevoked            ContractStatus = "REVOKED"
)

// IsTerminal reports whether no further transition may leave the status.
func (s ContractStatus) IsTerminal() bool {
	return s == ContractStatusRevoked || s == ContractStatusTerminated
}

func (s ContractStatus) Valid() bool {
	switch s {
	case ContractStatusPending, ContractStatusAwaitingSignatures, ContractStatusSigned,
		ContractStatusActive, ContractStatusTerminated, ContractStatusRevoked:
		return true
	}
	return false
}

type ContractType string

const (
	ContractTypeResidential ContractType = "RESIDENTIAL"
	ContractTypeCommercial  ContractType = "COMMERCIAL"
	ContractTypeSeasonal    ContractType = "SEASONAL"
)

type GuaranteeType string

const (
	GuaranteeDeposit             GuaranteeType = "DEPOSIT"
	GuaranteeGuarantor           GuaranteeType = "GUARANTOR"
	GuaranteeSuretyInsurance     GuaranteeType = "SURETY_INSURANCE"
	GuaranteeCapitalizationTitle GuaranteeType = "CAPITALIZATION_TITLE"
)

// IsInstrument reports whether the guarantee stands on its own without a cash deposit.
func (g GuaranteeType) IsInstrument() bool {
	switch g {
	case GuaranteeGuarantor, GuaranteeSuretyInsurance, GuaranteeCapitalizationTitle:
		return true
	}
	return false
}

// CommercialTerms are frozen once any party has signed.
type CommercialTerms struct {
	MonthlyRent                    float64       `gorm:"column:monthly_rent;type:numeric(14,2)" json:"monthly_rent"`
	Deposit                        float64       `gorm:"column:deposit;type:numeric(14,2)" json:"deposit"`
	DueDay                         int           `gorm:"column:due_day" json:"due_day"`
	StartDate                      *time.Time    `gorm:"column:start_date" json:"start_date,omitempty"`
	EndDate                        *time.Time    `gorm:"column:end_date" json:"end_date,omitempty"`
	ReadjustmentIndex              string        `gorm:"column:readjustment_index" json:"readjustment_index"`
	ReadjustmentMonth              int           `gorm:"column:readjustment_month" json:"readjustment_month"`
	LateFeePercent                 float64       `gorm:"column:late_fee_percent;type:numeric(6,2)" json:"late_fee_percent"`
	InterestRatePercent            float64       `gorm:"column:interest_rate_percent;type:numeric(6,2)" json:"interest_rate_percent"`
	EarlyTerminationPenaltyPercent float64       `gorm:"column:early_termination_penalty_percent;type:numeric(6,2)" json:"early_termination_penalty_percent"`
	GuaranteeType                  GuaranteeType `gorm:"column:guarantee_type" json:"guarantee_type"`
	Jurisdiction                   string        `gorm:"column:jurisdiction" json:"jurisdiction"`
}

type Contract struct {
	ID                int64          `gorm:"primaryKey" json:"id"`
	VerificationToken string         `gorm:"column:verification_token;uniqueIndex" json:"verification_token"`
	ContentHash       string         `gorm:"column:content_hash" json:"content_hash,omitempty"`
	HashGeneratedAt   *time.Time     `gorm:"column:hash_generated_at" json:"hash_generated_at,omitempty"`
	HashIP            string         `gorm:"column:hash_ip" json:"hash_ip,omitempty"`
	PropertyID        int64          `gorm:"column:property_id;index" json:"property_id"`
	TenantID          int64          `gorm:"column:tenant_id;index" json:"tenant_id"`
	OwnerID           int64          `gorm:"column:owner_id;index" json:"owner_id"`
	AgencyID          *int64         `gorm:"column:agency_id;index" json:"agency_id,omitempty"`
	WitnessName       string         `gorm:"column:witness_name" json:"witness_name,omitempty"`
	WitnessDocument   string         `gorm:"column:witness_document" json:"witness_document,omitempty"`
	ContractType      ContractType   `gorm:"column:contract_type" json:"contract_type"`
	Status            ContractStatus `gorm:"column:status" json:"status"`

	CommercialTerms `gorm:"embedded"`

	Clauses           string `gorm:"column:clauses" json:"clauses"`
	ContentSnapshot   string `gorm:"column:content_snapshot" json:"content_snapshot"`
	FinalContent      string `gorm:"column:final_content" json:"final_content,omitempty"`
	ProvisionalPDFRef string `gorm:"column:provisional_pdf_ref" json:"provisional_pdf_ref,omitempty"`
	FinalPDFRef       string `gorm:"column:final_pdf_ref" json:"final_pdf_ref,omitempty"`

	TenantSignature  Signature `gorm:"embedded;embeddedPrefix:tenant_sig_" json:"tenant_signature"`
	OwnerSignature   Signature `gorm:"embedded;embeddedPrefix:owner_sig_" json:"owner_signature"`
	AgencySignature  Signature `gorm:"embedded;embeddedPrefix:agency_sig_" json:"agency_signature"`
	WitnessSignature Signature `gorm:"embedded;embeddedPrefix:witness_sig_" json:"witness_signature"`

	AmendsContractID *int64     `gorm:"column:amends_contract_id" json:"amends_contract_id,omitempty"`
	AdminNotes       string     `gorm:"column:admin_notes" json:"admin_notes,omitempty"`
	RevocationReason string     `gorm:"column:revocation_reason" json:"revocation_reason,omitempty"`
	SignedAt         *time.Time `gorm:"column:signed_at" json:"signed_at,omitempty"`
	CreatedByID      int64      `gorm:"column:created_by_id" json:"created_by_id"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Property *Property `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
	Tenant   *User     `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
	Owner    *User     `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}

func (Contract) TableName() string { return "contracts" }

// SignatureFor returns the stored signature of the given role.
func (c *Contract) SignatureFor(role SignerRole) *Signature {
	switch role {
	case SignerTenant:
		return &c.TenantSignature
	case SignerOwner:
		return &c.OwnerSignature
	case SignerAgency:
		return &c.AgencySignature
	case SignerWitness:
		return &c.WitnessSignature
	}
	return nil
}

// RequiredSigners is tenant and owner, plus agency when the contract is brokered.
func (c *Contract) RequiredSigners() []SignerRole {
	roles := []SignerRole{SignerTenant, SignerOwner}
	if c.AgencyID != nil {
		roles = append(roles, SignerAgency)
	}
	return roles
}

func (c *Contract) HasAnySignature() bool {
	for _, role := range AllSignerRoles {
		if c.SignatureFor(role).IsSigned() {
			return true
		}
	}
	return false
}

func (c *Contract) AllRequiredSigned() bool {
	for _, role := range c.RequiredSigners() {
		if !c.SignatureFor(role).IsSigned() {
			return false
		}
	}
	return true
}

func (c *Contract) IsDeleted() bool {
	return c.DeletedAt.Valid
}

type DocumentStage string

const (
	DocumentProvisional DocumentStage = "PROVISIONAL"
	DocumentFinal       DocumentStage = "FINAL"
)

// ContractDocument is the input of the contract PDF template.
type ContractDocument struct {
	Stage       DocumentStage
	Contract    Contract
	Content     string
	ContentHash string
	GeneratedAt time.Time
}

// Finalization is everything written when a contract becomes SIGNED.
type Finalization struct {
	FinalContent string
	ContentHash  string
	HashIP       string
	SignedAt     time.Time
	PDF          []byte
}
