package model

import (
	"time"

	"github.com/google/uuid"
)

type SignerRole string

const (
	SignerTenant  SignerRole = "tenant"
	SignerOwner   SignerRole = "owner"
	SignerAgency  SignerRole = "agency"
	SignerWitness SignerRole = "witness"
)

var AllSignerRoles = []SignerRole{SignerTenant, SignerOwner, SignerAgency, SignerWitness}

func ParseSignerRole(raw string) (SignerRole, bool) {
	for _, role := range AllSignerRoles {
		if string(role) == raw {
			return role, true
		}
	}
	return "", false
}

type Signature struct {
	Image      string     `gorm:"column:image" json:"image,omitempty"`
	SignedAt   *time.Time `gorm:"column:signed_at" json:"signed_at,omitempty"`
	IP         string     `gorm:"column:ip" json:"ip,omitempty"`
	UserAgent  string     `gorm:"column:user_agent" json:"user_agent,omitempty"`
	Latitude   *float64   `gorm:"column:latitude" json:"latitude,omitempty"`
	Longitude  *float64   `gorm:"column:longitude" json:"longitude,omitempty"`
	GeoConsent bool       `gorm:"column:geo_consent" json:"geo_consent"`
	SignerID   *int64     `gorm:"column:signer_id" json:"signer_id,omitempty"`
}

func (s *Signature) IsSigned() bool {
	return s != nil && s.SignedAt != nil
}

type Geolocation struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Consent   bool    `json:"consent"`
}

// SignatureLink is an expiring invitation for one signer; delivery happens elsewhere.
type SignatureLink struct {
	ID         uuid.UUID  `json:"id"`
	ContractID int64      `json:"contract_id"`
	SignerRole SignerRole `json:"signer_role"`
	Contact    string     `json:"contact"`
	Token      string     `json:"token"`
	ExpiresAt  time.Time  `json:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type LinkParty struct {
	Role    SignerRole
	Contact string
}
