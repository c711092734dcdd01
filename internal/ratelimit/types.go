package ratelimit

import (
	"context"
	"time"
)

// RouteClass is a coarse endpoint category used to select a quota policy.
type RouteClass string

const (
	ClassAuth    RouteClass = "auth"
	ClassPayment RouteClass = "payment"
	ClassRead    RouteClass = "read"
	ClassWrite   RouteClass = "write"
	ClassPublic  RouteClass = "public"
	ClassUtility RouteClass = "utility"
)

// Tier is a caller's subscription level.
type Tier string

const (
	TierAnonymous  Tier = "anonymous"
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Policy is one quota rule: at most MaxRequests per Window.
type Policy struct {
	RouteClass  RouteClass
	Tier        Tier
	Window      time.Duration
	MaxRequests int
	Message     string
}

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter int // seconds until the window resets; zero when allowed
	Message    string
}

// Limiter provides fixed-window rate limit checks.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error)
}
