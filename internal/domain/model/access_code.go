package model

import (
	"time"
)

type AccessCodeStatus string

const (
	AccessCodeUnused    AccessCodeStatus = "unused"
	AccessCodeUsed      AccessCodeStatus = "used"
	AccessCodePending   AccessCodeStatus = "pending"
	AccessCodeActivated AccessCodeStatus = "activated"
	AccessCodeExpired   AccessCodeStatus = "expired"
)

var accessCodeTransitions = map[AccessCodeStatus][]AccessCodeStatus{
	AccessCodeUnused:    {AccessCodeUsed, AccessCodePending},
	AccessCodeUsed:      {AccessCodeExpired},
	AccessCodePending:   {AccessCodeActivated},
	AccessCodeActivated: {AccessCodeExpired},
}

func (s AccessCodeStatus) CanTransitionTo(next AccessCodeStatus) bool {
	for _, t := range accessCodeTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Running is true while the countdown is ticking: either direct activation (used)
// or a deferred session that has been started (activated).
func (s AccessCodeStatus) Running() bool {
	return s == AccessCodeUsed || s == AccessCodeActivated
}

// RunningStatuses lists the statuses the expiry sweep looks at.
var RunningStatuses = []AccessCodeStatus{AccessCodeUsed, AccessCodeActivated}

// AccessCode is a single-use prepaid code redeemable for one package.
type AccessCode struct {
	Code          string
	PlanID        string
	DurationHours int
	Price         int64
	Status        AccessCodeStatus
	MACAddress    *string // set from binding onwards
	CreatedAt     time.Time
	UsedAt        *time.Time
	ActivatedAt   *time.Time
	Expiry        *time.Time // set when the countdown starts
}

func (c *AccessCode) Duration() time.Duration {
	return time.Duration(c.DurationHours) * time.Hour
}

// CodeAccessStatus is the answer to a code access check.
type CodeAccessStatus string

const (
	CodeAccessGranted CodeAccessStatus = "granted"
	CodeAccessPending CodeAccessStatus = "pending"
	CodeAccessExpired CodeAccessStatus = "expired"
	CodeAccessInvalid CodeAccessStatus = "invalid"
)

type CodeAccess struct {
	Code      string
	Status    CodeAccessStatus
	Remaining time.Duration
	Expiry    *time.Time
}
