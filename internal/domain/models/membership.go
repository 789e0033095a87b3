// internal/domain/models/membership.go
package models

import "strings"

// Tier is the membership tier chosen at registration. It never changes
// for the lifetime of a user.
type Tier string

const (
	TierCore      Tier = "core"
	TierFlagship  Tier = "flagship"
	TierIndustria Tier = "industria"
	TierDigital   Tier = "digital"
)

var allTiers = []Tier{TierCore, TierFlagship, TierIndustria, TierDigital}

// Tiers returns every tier in display order.
func Tiers() []Tier {
	out := make([]Tier, len(allTiers))
	copy(out, allTiers)
	return out
}

// ParseTier maps user input onto a Tier. Matching is case-insensitive.
func ParseTier(s string) (Tier, bool) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	for _, k := range allTiers {
		if k == t {
			return true
		}
	}
	return false
}

// IsMidTier reports whether the tier requires a core-connected referral
// before the user can join a community.
func (t Tier) IsMidTier() bool {
	return t == TierFlagship || t == TierIndustria
}

// FeeType identifies a kind of fee in the schedule.
type FeeType string

const (
	FeeRegistration       FeeType = "registration"
	FeeAnnual             FeeType = "annual"
	FeeCommunityLaunching FeeType = "community_launching"
	FeeMeeting            FeeType = "meeting"
)

var allFeeTypes = []FeeType{FeeRegistration, FeeAnnual, FeeCommunityLaunching, FeeMeeting}

// FeeTypes returns every fee type in canonical order.
func FeeTypes() []FeeType {
	out := make([]FeeType, len(allFeeTypes))
	copy(out, allFeeTypes)
	return out
}

// ParseFeeType maps user input onto a FeeType.
func ParseFeeType(s string) (FeeType, bool) {
	f := FeeType(strings.ToLower(strings.TrimSpace(s)))
	return f, f.Valid()
}

func (f FeeType) Valid() bool {
	for _, k := range allFeeTypes {
		if k == f {
			return true
		}
	}
	return false
}

// FeeStatus is the lifecycle state of a fee record.
type FeeStatus string

const (
	FeePending   FeeStatus = "pending"
	FeeCompleted FeeStatus = "completed"
)

// PaymentMethod records how a fee was settled.
type PaymentMethod string

const (
	MethodGateway PaymentMethod = "gateway"
	MethodCash    PaymentMethod = "cash"
	MethodCheck   PaymentMethod = "check"
	MethodManual  PaymentMethod = "manual"
)

// ParseOfflineMethod accepts the methods an administrator may record by
// hand. "gateway" is never accepted here.
func ParseOfflineMethod(s string) (PaymentMethod, bool) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MethodCash, MethodCheck, MethodManual:
		return m, true
	}
	return "", false
}

// CommunityRole is the role a user holds inside their community.
type CommunityRole string

const (
	RoleCoreMember CommunityRole = "core_member"
	RoleMember     CommunityRole = "member"
)
