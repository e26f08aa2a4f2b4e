package model

type Role string

const (
	RoleAdmin         Role = "ADMIN"
	RoleAgencyAdmin   Role = "AGENCY_ADMIN"
	RoleAgencyManager Role = "AGENCY_MANAGER"
	RoleBroker        Role = "BROKER"
	RoleOwner         Role = "OWNER"
	RoleTenant        Role = "TENANT"
)

type User struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	Name     string `json:"name"`
	Document string `json:"document"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Role     Role   `json:"role"`
	AgencyID *int64 `json:"agency_id,omitempty"`
}

func (User) TableName() string { return "users" }

type Property struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	OwnerID     int64  `json:"owner_id"`
	CreatedByID int64  `json:"created_by_id"`
	AgencyID    *int64 `json:"agency_id,omitempty"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
}

func (Property) TableName() string { return "properties" }

// Principal is the authenticated caller.
type Principal struct {
	UserID   int64
	Role     Role
	AgencyID *int64
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) IsAgencyStaff() bool {
	return p.Role == RoleAgencyAdmin || p.Role == RoleAgencyManager
}

func (p Principal) BelongsToAgency(agencyID int64) bool {
	return p.AgencyID != nil && *p.AgencyID == agencyID
}
