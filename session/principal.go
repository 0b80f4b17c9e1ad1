package session

import "slices"

// Audience distinguishes the two token kinds. It is carried in the token_type claim.
type Audience string

const (
	AudienceAccess  Audience = "access"
	AudienceRefresh Audience = "refresh"
)

// Principal is the authenticated identity carried by an access token.
// It is immutable for the lifetime of one token and never persisted.
type Principal struct {
	UserID        string   `json:"userId"`
	Identifier    string   `json:"identifier"`
	DisplayName   string   `json:"displayName"`
	PartnershipID string   `json:"partnershipId"`
	Roles         []string `json:"roles"`
	Permissions   []string `json:"permissions"`
}

// HasPermission reports whether the principal carries the named permission.
func (p *Principal) HasPermission(name string) bool {
	return slices.Contains(p.Permissions, name)
}

// HasRole reports whether the principal carries the named role.
func (p *Principal) HasRole(name string) bool {
	return slices.Contains(p.Roles, name)
}
