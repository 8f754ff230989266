package ratelimit

import (
	"time"
)

// Tier represents a subscriber class used to select a rate limit policy.
type Tier string

const (
	// TierFree has the lowest rate limits and is the fallback for
	// unrecognized tiers.
	TierFree Tier = "free"

	// TierPremium has elevated rate limits for paying subscribers.
	TierPremium Tier = "premium"

	// TierEnterprise has the highest rate limits.
	TierEnterprise Tier = "enterprise"
)

// String returns the string representation of the tier.
func (t Tier) String() string {
	return string(t)
}

// IsValid checks if the tier is a recognized value.
func (t Tier) IsValid() bool {
	switch t {
	case TierFree, TierPremium, TierEnterprise:
		return true
	default:
		return false
	}
}

// Operation categories recognized by the default policy table.
const (
	// CategoryMatching covers job-matching runs, the most expensive
	// operation class.
	CategoryMatching = "matching"

	// CategoryScraping covers on-demand job scraping requests.
	CategoryScraping = "scraping"

	// CategoryGeneral covers everything else and is the per-tier fallback
	// for unrecognized categories.
	CategoryGeneral = "general"
)

// Policy is an immutable (limit, window) pair.
type Policy struct {
	// Limit is the maximum number of admitted requests per window.
	Limit int

	// Window is the trailing interval the limit applies to.
	Window time.Duration
}

// PolicyTable maps (tier, category) pairs to policies.
//
// Resolve is a total function: an unresolved tier falls back to the free
// tier, and an unresolved category within a tier falls back to that tier's
// "general" policy. Policy resolution therefore can never become a failure
// mode for admission control.
type PolicyTable struct {
	policies map[Tier]map[string]Policy
}

// NewPolicyTable builds a PolicyTable from the given mapping.
//
// The table must contain a (free, general) entry so that resolution is
// total; if it does not, the default free/general policy is added.
func NewPolicyTable(policies map[Tier]map[string]Policy) *PolicyTable {
	table := make(map[Tier]map[string]Policy, len(policies))
	for tier, categories := range policies {
		table[tier] = make(map[string]Policy, len(categories))
		for category, policy := range categories {
			table[tier][category] = policy
		}
	}

	if _, ok := table[TierFree][CategoryGeneral]; !ok {
		if table[TierFree] == nil {
			table[TierFree] = make(map[string]Policy)
		}
		table[TierFree][CategoryGeneral] = Policy{Limit: 60, Window: time.Minute}
	}

	return &PolicyTable{policies: table}
}

// DefaultPolicyTable returns the compiled-in policy table.
//
// Limits per tier and category:
//
//	              matching        scraping        general
//	free          5 / 15m         10 / 1h         60 / 1m
//	premium       25 / 15m        50 / 1h         300 / 1m
//	enterprise    100 / 15m       200 / 1h        1000 / 1m
func DefaultPolicyTable() *PolicyTable {
	return NewPolicyTable(map[Tier]map[string]Policy{
		TierFree: {
			CategoryMatching: {Limit: 5, Window: 15 * time.Minute},
			CategoryScraping: {Limit: 10, Window: time.Hour},
			CategoryGeneral:  {Limit: 60, Window: time.Minute},
		},
		TierPremium: {
			CategoryMatching: {Limit: 25, Window: 15 * time.Minute},
			CategoryScraping: {Limit: 50, Window: time.Hour},
			CategoryGeneral:  {Limit: 300, Window: time.Minute},
		},
		TierEnterprise: {
			CategoryMatching: {Limit: 100, Window: 15 * time.Minute},
			CategoryScraping: {Limit: 200, Window: time.Hour},
			CategoryGeneral:  {Limit: 1000, Window: time.Minute},
		},
	})
}

// Resolve maps (tier, category) to a policy.
//
// Resolution order: exact (tier, category) hit, then (tier, "general"),
// then (free, "general"). The returned tier is the one whose table provided
// the policy, and exact reports whether the first lookup succeeded.
//
// Resolve accepts arbitrary strings, including empty ones, and always
// returns a valid policy.
func (t *PolicyTable) Resolve(tier, category string) (policy Policy, resolved Tier, exact bool) {
	resolved = Tier(tier)
	if !resolved.IsValid() {
		resolved = TierFree
	}

	if categories, ok := t.policies[resolved]; ok {
		if p, ok := categories[category]; ok {
			return p, resolved, resolved == Tier(tier)
		}
		if p, ok := categories[CategoryGeneral]; ok {
			return p, resolved, false
		}
	}

	// Guaranteed to exist by NewPolicyTable.
	return t.policies[TierFree][CategoryGeneral], TierFree, false
}

// Tiers returns the tiers present in the table, for diagnostics.
func (t *PolicyTable) Tiers() []Tier {
	tiers := make([]Tier, 0, len(t.policies))
	for tier := range t.policies {
		tiers = append(tiers, tier)
	}
	return tiers
}
