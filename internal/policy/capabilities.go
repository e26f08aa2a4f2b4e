package policy

import (
	"errors"

	"github.com/nurpe/lease-contracts/internal/model"
)

var (
	ErrSignerMismatch = errors.New("caller cannot sign for this party")
	ErrUnknownRole    = errors.New("unknown signer role")
)

type ViewScope string

const (
	ViewAll    ViewScope = "ALL"
	ViewAgency ViewScope = "AGENCY"
	ViewOwn    ViewScope = "OWN"
	ViewNone   ViewScope = "NONE"
)

type Capabilities struct {
	ViewScope     ViewScope
	CanCreate     bool
	CanEdit       bool
	CanDelete     bool
	CanSign       bool
	CanRevoke     bool
	CanRunLegal   bool
	SignableRoles []model.SignerRole
}

func (c Capabilities) CanSignAs(role model.SignerRole) bool {
	if !c.CanSign {
		return false
	}
	for _, r := range c.SignableRoles {
		if r == role {
			return true
		}
	}
	return false
}

var capabilityTable = map[model.Role]Capabilities{
	model.RoleAdmin: {
		ViewScope:     ViewAll,
		CanCreate:     true,
		CanEdit:       true,
		CanDelete:     true,
		CanSign:       true,
		CanRevoke:     true,
		CanRunLegal:   true,
		SignableRoles: []model.SignerRole{model.SignerWitness},
	},
	model.RoleAgencyAdmin: {
		ViewScope:     ViewAgency,
		CanCreate:     true,
		CanEdit:       true,
		CanDelete:     true,
		CanSign:       true,
		CanRevoke:     true,
		CanRunLegal:   true,
		SignableRoles: []model.SignerRole{model.SignerAgency, model.SignerWitness},
	},
	model.RoleAgencyManager: {
		ViewScope:     ViewAgency,
		CanCreate:     true,
		CanEdit:       true,
		CanSign:       true,
		CanRevoke:     true,
		CanRunLegal:   true,
		SignableRoles: []model.SignerRole{model.SignerAgency, model.SignerWitness},
	},
	model.RoleBroker: {
		ViewScope: ViewAgency,
		CanCreate: true,
		CanEdit:   true,
	},
	model.RoleOwner: {
		ViewScope:     ViewOwn,
		CanCreate:     true,
		CanEdit:       true,
		CanDelete:     true,
		CanSign:       true,
		CanRevoke:     true,
		CanRunLegal:   true,
		SignableRoles: []model.SignerRole{model.SignerOwner},
	},
	model.RoleTenant: {
		ViewScope:     ViewOwn,
		CanSign:       true,
		SignableRoles: []model.SignerRole{model.SignerTenant},
	},
}

// CapabilitiesFor returns the zero value for unknown roles, which grants nothing.
func CapabilitiesFor(role model.Role) Capabilities {
	caps, ok := capabilityTable[role]
	if !ok {
		return Capabilities{ViewScope: ViewNone}
	}
	return caps
}

// CanView applies the role's view scope to a contract.
func CanView(p model.Principal, c *model.Contract) bool {
	switch CapabilitiesFor(p.Role).ViewScope {
	case ViewAll:
		return true
	case ViewAgency:
		return c.AgencyID != nil && p.BelongsToAgency(*c.AgencyID)
	case ViewOwn:
		return isPartyOf(p, c)
	}
	return false
}

func isPartyOf(p model.Principal, c *model.Contract) bool {
	if p.UserID == c.TenantID || p.UserID == c.OwnerID {
		return true
	}
	return c.Property != nil && (p.UserID == c.Property.OwnerID || p.UserID == c.Property.CreatedByID)
}

// AuthorizeSigner checks that p may place the signature of role on c.
func AuthorizeSigner(p model.Principal, role model.SignerRole, c *model.Contract) error {
	if _, ok := model.ParseSignerRole(string(role)); !ok {
		return ErrUnknownRole
	}
	if !CapabilitiesFor(p.Role).CanSignAs(role) {
		return ErrSignerMismatch
	}

	switch role {
	case model.SignerTenant:
		if p.UserID != c.TenantID {
			return ErrSignerMismatch
		}
	case model.SignerOwner:
		if p.UserID == c.OwnerID {
			return nil
		}
		if c.Property != nil && (p.UserID == c.Property.OwnerID || p.UserID == c.Property.CreatedByID) {
			return nil
		}
		return ErrSignerMismatch
	case model.SignerAgency:
		if !p.IsAgencyStaff() {
			return ErrSignerMismatch
		}
		if c.AgencyID != nil && !p.BelongsToAgency(*c.AgencyID) {
			return ErrSignerMismatch
		}
	case model.SignerWitness:
		if p.IsAgencyStaff() && c.AgencyID != nil && !p.BelongsToAgency(*c.AgencyID) {
			return ErrSignerMismatch
		}
	}
	return nil
}
