package ratelimit

import (
	"strings"
	"time"
)

// Denial messages shown to callers. The AI message is distinct so clients
// can tell metering exhaustion from generic throttling.
const (
	DefaultMessage = "rate limit exceeded, slow down and retry later"
	// AIMessage signals that the caller's plan quota is spent.
	AIMessage = "AI quota exhausted for your plan, upgrade to continue"
)

// Policies holds the quota policy tables: general route-class policies
// keyed by (class, tier), AI metering policies keyed by tier alone, and
// exact-path overrides. Read-only at request time.
type Policies struct {
	general   map[RouteClass]map[Tier]Policy
	ai        map[Tier]Policy
	overrides map[string]Policy
}

// NewPolicies constructs an empty policy table.
func NewPolicies() *Policies {
	return &Policies{
		general:   make(map[RouteClass]map[Tier]Policy),
		ai:        make(map[Tier]Policy),
		overrides: make(map[string]Policy),
	}
}

// DefaultPolicies returns the built-in policy tables. Values are
// defaults, not contracts; deployments tune them through the config file.
func DefaultPolicies() *Policies {
	p := NewPolicies()

	// Authentication endpoints are abuse-sensitive: small windows, low caps.
	p.setTiers(ClassAuth, time.Minute, map[Tier]int{
		TierAnonymous: 5, TierFree: 10, TierPro: 20, TierEnterprise: 30,
	}, "too many authentication attempts, try again shortly")

	// Payment endpoints carry the tightest caps of all.
	p.setTiers(ClassPayment, time.Minute, map[Tier]int{
		TierAnonymous: 2, TierFree: 3, TierPro: 5, TierEnterprise: 10,
	}, "too many payment requests, try again shortly")

	// Reads are low sensitivity, large caps.
	p.setTiers(ClassRead, time.Minute, map[Tier]int{
		TierAnonymous: 60, TierFree: 120, TierPro: 300, TierEnterprise: 600,
	}, DefaultMessage)

	p.setTiers(ClassWrite, time.Minute, map[Tier]int{
		TierAnonymous: 15, TierFree: 30, TierPro: 60, TierEnterprise: 120,
	}, DefaultMessage)

	p.setTiers(ClassPublic, time.Minute, map[Tier]int{
		TierAnonymous: 60, TierFree: 60, TierPro: 60, TierEnterprise: 60,
	}, DefaultMessage)

	// External-integration calls: small windows, low caps.
	p.setTiers(ClassUtility, 5*time.Minute, map[Tier]int{
		TierAnonymous: 5, TierFree: 10, TierPro: 20, TierEnterprise: 40,
	}, "too many integration requests, try again shortly")

	// AI metering requires a billable identity; anonymous has no entry.
	p.SetAI(Policy{Tier: TierFree, Window: time.Hour, MaxRequests: 20, Message: AIMessage})
	p.SetAI(Policy{Tier: TierPro, Window: time.Hour, MaxRequests: 200, Message: AIMessage})
	p.SetAI(Policy{Tier: TierEnterprise, Window: time.Hour, MaxRequests: 2000, Message: AIMessage})

	// Especially sensitive operations get exact-path overrides.
	p.SetOverride("/v0/account/delete", Policy{Window: time.Hour, MaxRequests: 2, Message: "too many account deletion requests"})
	p.SetOverride("/v0/data/export", Policy{Window: time.Hour, MaxRequests: 5, Message: "too many export requests"})
	p.SetOverride("/v0/team/invite", Policy{Window: time.Hour, MaxRequests: 20, Message: "too many invitations sent"})

	return p
}

func (p *Policies) setTiers(class RouteClass, window time.Duration, caps map[Tier]int, message string) {
	for tier, maxRequests := range caps {
		p.Set(Policy{
			RouteClass:  class,
			Tier:        tier,
			Window:      window,
			MaxRequests: maxRequests,
			Message:     message,
		})
	}
}

// Set installs or replaces a general route-class policy.
func (p *Policies) Set(policy Policy) {
	if p == nil || policy.RouteClass == "" || policy.Tier == "" {
		return
	}
	tiers := p.general[policy.RouteClass]
	if tiers == nil {
		tiers = make(map[Tier]Policy)
		p.general[policy.RouteClass] = tiers
	}
	if policy.Message == "" {
		policy.Message = DefaultMessage
	}
	tiers[policy.Tier] = policy
}

// SetAI installs or replaces an AI metering policy for a tier.
func (p *Policies) SetAI(policy Policy) {
	if p == nil || policy.Tier == "" {
		return
	}
	if policy.Message == "" {
		policy.Message = AIMessage
	}
	p.ai[policy.Tier] = policy
}

// SetOverride installs or replaces an exact-path override.
func (p *Policies) SetOverride(path string, policy Policy) {
	if p == nil {
		return
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}
	if policy.Message == "" {
		policy.Message = DefaultMessage
	}
	p.overrides[path] = policy
}

// General resolves the policy for (class, tier), falling back to the free
// tier entry when the exact tier has none.
func (p *Policies) General(class RouteClass, tier Tier) (Policy, bool) {
	if p == nil {
		return Policy{}, false
	}
	tiers, ok := p.general[class]
	if !ok {
		return Policy{}, false
	}
	if policy, okTier := tiers[tier]; okTier {
		return policy, true
	}
	policy, okFree := tiers[TierFree]
	return policy, okFree
}

// AI resolves the metering policy for a tier. Absence means the tier has
// no metered allowance at all.
func (p *Policies) AI(tier Tier) (Policy, bool) {
	if p == nil {
		return Policy{}, false
	}
	policy, ok := p.ai[tier]
	return policy, ok
}

// Override resolves an exact-path override, if one exists.
func (p *Policies) Override(path string) (Policy, bool) {
	if p == nil {
		return Policy{}, false
	}
	policy, ok := p.overrides[path]
	return policy, ok
}
