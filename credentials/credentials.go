package credentials

import (
	"fmt"
	"sync"
	"time"
	"unicode"

	"github.com/jrsteele09/ses-client-auth/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

// Role is a named bundle of permission names assigned to a client user.
type Role struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions,omitempty"`
}

// Credential is a client-company user as seen by the authentication core.
type Credential struct {
	ID            string     `json:"id,omitempty"`
	Identifier    string     `json:"identifier,omitempty"`   // Normalized login identifier, matched exactly
	DisplayName   string     `json:"display_name,omitempty"` // Shown in the portal header
	PasswordHash  string     `json:"-"`                      // bcrypt hash - never serialize
	PartnershipID string     `json:"partnership_id,omitempty"`
	Active        bool       `json:"active"`
	Roles         []Role     `json:"roles,omitempty"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`

	LockoutState
}

// LockoutState is mutated only by the authenticator.
type LockoutState struct {
	FailedAttempts int        `json:"failed_attempts"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
}

// IsLocked reports whether the lock is set and still in the future.
func (s LockoutState) IsLocked(now time.Time) bool {
	return s.LockedUntil != nil && s.LockedUntil.After(now)
}

// RoleNames returns role names in assignment order.
func (c *Credential) RoleNames() []string {
	names := make([]string, 0, len(c.Roles))
	for _, r := range c.Roles {
		names = append(names, r.Name)
	}
	return utils.Dedupe(names)
}

// PermissionNames is the deduplicated union of permissions across all roles.
func (c *Credential) PermissionNames() []string {
	var perms []string
	for _, r := range c.Roles {
		perms = append(perms, r.Permissions...)
	}
	return utils.Dedupe(perms)
}

// Clone returns a deep copy so stores never hand out shared state.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Roles = make([]Role, len(c.Roles))
	for i, r := range c.Roles {
		cp.Roles[i] = Role{Name: r.Name, Permissions: append([]string(nil), r.Permissions...)}
	}
	if c.LockedUntil != nil {
		cp.LockedUntil = utils.Ptr(*c.LockedUntil)
	}
	if c.LastLoginAt != nil {
		cp.LastLoginAt = utils.Ptr(*c.LastLoginAt)
	}
	return &cp
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares in constant time with respect to the password.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// BurnPasswordCheck runs a comparison against a throwaway hash so unknown
// identifiers cost the same as a wrong password.
func BurnPasswordCheck(password string) {
	dummyHashOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
		if err == nil {
			dummyHash = string(h)
		}
	})
	_ = CheckPasswordHash(password, dummyHash)
}
