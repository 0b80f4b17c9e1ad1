package partnerships

import "time"

// PermissionType is the engineer-visibility scope of a grant.
type PermissionType string

const (
	FullAccess   PermissionType = "FULL_ACCESS"
	WaitingOnly  PermissionType = "WAITING_ONLY"
	SelectedOnly PermissionType = "SELECTED_ONLY"
)

// Valid reports whether p is one of the known permission types.
func (p PermissionType) Valid() bool {
	switch p {
	case FullAccess, WaitingOnly, SelectedOnly:
		return true
	}
	return false
}

// Partnership links a staffing company to one client company.
// An inactive partnership cancels every login and session derived from it.
type Partnership struct {
	ID                string    `json:"id"`
	StaffingCompanyID string    `json:"staffing_company_id"`
	ClientCompanyID   string    `json:"client_company_id"`
	Active            bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at,omitempty"`
}

// Grant defines which engineers the partnership's client users may see.
// EngineerIDs is only meaningful for SelectedOnly.
type Grant struct {
	ID             string         `json:"id"`
	PartnershipID  string         `json:"partnership_id"`
	PermissionType PermissionType `json:"permission_type"`
	EngineerIDs    []string       `json:"engineer_ids,omitempty"`
	Active         bool           `json:"is_active"`
}
