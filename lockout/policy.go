// Package lockout maps a failed-attempt count to a lock decision.
//
// Tiers use an inclusive lower bound and are evaluated on the count that
// already includes the current failure:
//
//	[0, 10)   no lock
//	[10, 20)  30 minutes
//	[20, 30)  2 hours
//	[30, ∞)   permanent (administrative reset only)
package lockout

import "time"

const (
	FirstTierThreshold  = 10
	SecondTierThreshold = 20
	ThirdTierThreshold  = 30

	FirstTierDuration  = 30 * time.Minute
	SecondTierDuration = 2 * time.Hour
)

// PermanentUntil is the sentinel expiry for the permanent tier.
var PermanentUntil = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Tier names a lockout tier.
type Tier string

const (
	TierNone      Tier = "none"
	TierShort     Tier = "30m"
	TierLong      Tier = "2h"
	TierPermanent Tier = "permanent"
)

// Decision is the outcome of the policy for one failed-attempt count.
type Decision struct {
	Tier     Tier
	Duration time.Duration // zero for TierNone and TierPermanent
}

// Locked reports whether the decision locks the account.
func (d Decision) Locked() bool {
	return d.Tier != TierNone
}

// Permanent reports whether the lock requires an administrative reset.
func (d Decision) Permanent() bool {
	return d.Tier == TierPermanent
}

// Until returns the lock expiry relative to now, or nil when not locked.
func (d Decision) Until(now time.Time) *time.Time {
	switch d.Tier {
	case TierNone:
		return nil
	case TierPermanent:
		until := PermanentUntil
		return &until
	}
	until := now.Add(d.Duration)
	return &until
}

// Decide is total and deterministic. Negative counts are treated as zero.
func Decide(failedAttempts int) Decision {
	switch {
	case failedAttempts >= ThirdTierThreshold:
		return Decision{Tier: TierPermanent}
	case failedAttempts >= SecondTierThreshold:
		return Decision{Tier: TierLong, Duration: SecondTierDuration}
	case failedAttempts >= FirstTierThreshold:
		return Decision{Tier: TierShort, Duration: FirstTierDuration}
	}
	return Decision{Tier: TierNone}
}

// LockedUntil combines Decide and Until.
func LockedUntil(failedAttempts int, now time.Time) *time.Time {
	return Decide(failedAttempts).Until(now)
}

// RemainingAttempts is the advisory hint returned with a failed login. It floors at zero.
func RemainingAttempts(failedAttempts int) int {
	if r := FirstTierThreshold - failedAttempts; r > 0 {
		return r
	}
	return 0
}
