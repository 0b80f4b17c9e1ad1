// Package visibility decides which engineer records a client session may read.
//
// The filter produced here is the single source of truth: list endpoints apply it
// through Matches or SQL, and single-record checks evaluate the same filter.
package visibility

import (
	"fmt"
	"slices"

	"github.com/jrsteele09/ses-client-auth/engineers"
	"github.com/jrsteele09/ses-client-auth/partnerships"
)

// FilterKind tags the EngineerFilter union.
type FilterKind string

const (
	Unrestricted FilterKind = "unrestricted"
	ByStatus     FilterKind = "by_status"
	ByIDSet      FilterKind = "by_id_set"
	DenyAll      FilterKind = "deny_all"
)

// WaitingStatuses are the statuses visible under WAITING_ONLY.
var WaitingStatuses = []engineers.Status{engineers.StatusWaiting, engineers.StatusWaitingSoon}

// Filter describes the engineer records a session may read.
type Filter struct {
	Kind        FilterKind         `json:"kind"`
	Statuses    []engineers.Status `json:"statuses,omitempty"`
	EngineerIDs []string           `json:"engineerIds,omitempty"`
}

// Deny is the filter used whenever the grant cannot be established.
func Deny() Filter {
	return Filter{Kind: DenyAll}
}

// Matches evaluates the filter against one engineer.
func (f Filter) Matches(e engineers.Engineer) bool {
	switch f.Kind {
	case Unrestricted:
		return true
	case ByStatus:
		return slices.Contains(f.Statuses, e.Status)
	case ByIDSet:
		return slices.Contains(f.EngineerIDs, e.ID)
	}
	return false
}

// MatchesNothing reports whether the filter can never match a record.
func (f Filter) MatchesNothing() bool {
	switch f.Kind {
	case Unrestricted:
		return false
	case ByStatus:
		return len(f.Statuses) == 0
	case ByIDSet:
		return len(f.EngineerIDs) == 0
	}
	return true
}

// SQL renders the filter as a predicate for a Postgres query. Placeholders start at firstArg.
func (f Filter) SQL(idColumn, statusColumn string, firstArg int) (string, []any) {
	if f.MatchesNothing() {
		return "FALSE", nil
	}
	switch f.Kind {
	case Unrestricted:
		return "TRUE", nil
	case ByStatus:
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		return fmt.Sprintf("%s = ANY($%d)", statusColumn, firstArg), []any{statuses}
	case ByIDSet:
		return fmt.Sprintf("%s = ANY($%d)", idColumn, firstArg), []any{append([]string(nil), f.EngineerIDs...)}
	}
	return "FALSE", nil
}

// Resolve maps a grant to its filter. A nil or inactive grant is the NoGrant
// case and resolves to WAITING_ONLY, as does an unknown permission type.
func Resolve(grant *partnerships.Grant) Filter {
	switch ScopeOf(grant) {
	case partnerships.FullAccess:
		return Filter{Kind: Unrestricted}
	case partnerships.SelectedOnly:
		// an empty id set selects nothing
		return Filter{Kind: ByIDSet, EngineerIDs: append([]string{}, grant.EngineerIDs...)}
	}
	return Filter{Kind: ByStatus, Statuses: append([]engineers.Status(nil), WaitingStatuses...)}
}

// ScopeOf returns the effective permission type of a grant, applying the NoGrant default.
func ScopeOf(grant *partnerships.Grant) partnerships.PermissionType {
	if grant == nil || !grant.Active || !grant.PermissionType.Valid() {
		return partnerships.WaitingOnly
	}
	return grant.PermissionType
}

// CanView is the single-record check for a grant, evaluated through the same filter as lists.
func CanView(grant *partnerships.Grant, e engineers.Engineer) bool {
	return Resolve(grant).Matches(e)
}
