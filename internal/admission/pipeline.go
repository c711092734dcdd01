package admission

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/edgegate/edgegate/internal/block"
	"github.com/edgegate/edgegate/internal/csrf"
	"github.com/edgegate/edgegate/internal/ddos"
	"github.com/edgegate/edgegate/internal/identity"
	"github.com/edgegate/edgegate/internal/models"
	"github.com/edgegate/edgegate/internal/ratelimit"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TierResolver supplies the caller's subscription tier. The admission
// layer treats the result as an opaque external fact.
type TierResolver func(ctx context.Context, db *gorm.DB, userID uint64) (ratelimit.Tier, error)

// Pipeline holds the admission dependencies for one server instance.
// All mutable counter state is owned here, never in package globals, so
// tests and multi-instance deployments get clean isolation.
type Pipeline struct {
	DB            *gorm.DB
	Limiter       *ratelimit.Manager
	Policies      *ratelimit.Policies
	Blocks        *block.Registry
	Detector      *ddos.Detector
	CSRF          *csrf.Service
	Routes        Routes
	ResolveTier   TierResolver
	BlockDuration func() time.Duration
	NowFn         func() time.Time
	SecureCookies bool
}

// quotaDenial is the structured 429 body.
type quotaDenial struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
	Reset      string `json:"reset"`
}

// Middleware returns the gin handler enforcing the admission pipeline.
//
// Internal errors from the block registry, the detector, the counter
// store, and tier resolution fail OPEN: the request proceeds and the
// failure is logged. Explicit policy checks (quota exhausted, blocked
// identity, CSRF mismatch, missing identity on a metered route) deny as
// usual. This is the one place that availability-over-strictness
// trade-off lives.
func (p *Pipeline) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p == nil || c.Request == nil {
			return
		}
		now := p.now()
		path := c.Request.URL.Path
		method := c.Request.Method
		ctx := c.Request.Context()

		id := identity.Resolve(c)
		key := id.Key()

		blocked, errBlocked := p.Blocks.IsBlocked(ctx, key)
		if errBlocked != nil {
			p.failOpen("block-registry", key, path, errBlocked)
		}
		if blocked {
			denyBlocked(c)
			return
		}

		if p.Detector.Inspect(key, path, now) {
			until := now.Add(p.blockDuration())
			if errInsert := p.Blocks.Block(ctx, key, "request anomaly detected", models.BlockSourceDetector, until); errInsert != nil {
				p.failOpen("block-insert", key, path, errInsert)
			}
			log.WithFields(log.Fields{"identity": key, "path": path}).Warn("admission: anomaly detected, identity blocked")
			denyBlocked(c)
			return
		}

		if p.Routes.Exempt(path) {
			c.Next()
			return
		}

		tier := p.resolveTier(ctx, c, id)
		class := p.Routes.Classify(path, method)

		var headerResult *ratelimit.Result

		if policy, ok := p.Policies.General(class, tier); ok {
			result, errCheck := p.Limiter.Check(ctx, ratelimit.GeneralKey(key, class), policy)
			if errCheck != nil {
				p.failOpen("rate-limiter", key, path, errCheck)
			} else {
				headerResult = mostRestrictive(headerResult, &result)
				if !result.Allowed {
					denyQuota(c, result)
					return
				}
			}
		}

		if policy, ok := p.Policies.Override(path); ok {
			result, errCheck := p.Limiter.Check(ctx, ratelimit.OverrideKey(key, path), policy)
			if errCheck != nil {
				p.failOpen("rate-limiter", key, path, errCheck)
			} else {
				headerResult = mostRestrictive(headerResult, &result)
				if !result.Allowed {
					denyQuota(c, result)
					return
				}
			}
		}

		if p.Routes.AI(path) {
			if !id.Authenticated() {
				setRateHeaders(c, headerResult)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required for metered routes"})
				return
			}
			policy, ok := p.Policies.AI(tier)
			if !ok {
				setRateHeaders(c, headerResult)
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": ratelimit.AIMessage})
				return
			}
			result, errCheck := p.Limiter.Check(ctx, ratelimit.AIKey(key), policy)
			if errCheck != nil {
				p.failOpen("ai-limiter", key, path, errCheck)
			} else {
				headerResult = mostRestrictive(headerResult, &result)
				if !result.Allowed {
					denyQuota(c, result)
					return
				}
			}
		}

		if isStateChanging(method) && !p.Routes.CSRFExempt(path) && p.CSRF != nil && id.SessionID != "" {
			token := csrf.TokenFromRequest(c)
			if errVerify := p.CSRF.Verify(token, id.SessionID); errVerify != nil {
				setRateHeaders(c, headerResult)
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "csrf verification failed, refresh your session token"})
				return
			}
		}

		setRateHeaders(c, headerResult)
		c.Next()
	}
}

// resolveTier determines the caller's tier: anonymous without a user,
// the session claim when present, otherwise a database lookup. Lookup
// failures fail open to the free tier.
func (p *Pipeline) resolveTier(ctx context.Context, c *gin.Context, id identity.Identity) ratelimit.Tier {
	if !id.Authenticated() {
		return ratelimit.TierAnonymous
	}
	if raw, ok := c.Get(identity.CtxTier); ok {
		if tier, okCast := raw.(string); okCast && tier != "" {
			return ratelimit.Tier(tier)
		}
	}
	if p.ResolveTier == nil {
		return ratelimit.TierFree
	}
	tier, errResolve := p.ResolveTier(ctx, p.DB, id.UserID)
	if errResolve != nil {
		p.failOpen("tier-resolver", id.Key(), c.Request.URL.Path, errResolve)
		return ratelimit.TierFree
	}
	if tier == "" {
		return ratelimit.TierFree
	}
	return tier
}

// failOpen records an infrastructure failure that was converted into an
// admit. The caller never sees these as denials.
func (p *Pipeline) failOpen(component, key, path string, err error) {
	log.WithError(err).WithFields(log.Fields{
		"component": component,
		"identity":  key,
		"path":      path,
	}).Warn("admission: internal error, failing open")
}

func (p *Pipeline) now() time.Time {
	if p.NowFn != nil {
		return p.NowFn()
	}
	return time.Now()
}

func (p *Pipeline) blockDuration() time.Duration {
	if p.BlockDuration != nil {
		return p.BlockDuration()
	}
	return block.LoadBlockDuration()
}

// mostRestrictive keeps the result with the fewest remaining requests so
// response headers reflect the tightest applicable policy.
func mostRestrictive(current, candidate *ratelimit.Result) *ratelimit.Result {
	if candidate == nil || candidate.Limit <= 0 {
		return current
	}
	if current == nil {
		return candidate
	}
	if !candidate.Allowed {
		return candidate
	}
	if candidate.Remaining < current.Remaining {
		return candidate
	}
	return current
}

func setRateHeaders(c *gin.Context, result *ratelimit.Result) {
	if c == nil || result == nil || result.Limit <= 0 {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(result.Reset.Unix(), 10))
}

func denyQuota(c *gin.Context, result ratelimit.Result) {
	setRateHeaders(c, &result)
	c.Header("Retry-After", strconv.Itoa(result.RetryAfter))
	message := result.Message
	if message == "" {
		message = ratelimit.DefaultMessage
	}
	c.AbortWithStatusJSON(http.StatusTooManyRequests, quotaDenial{
		Error:      message,
		RetryAfter: result.RetryAfter,
		Limit:      result.Limit,
		Remaining:  result.Remaining,
		Reset:      result.Reset.UTC().Format(time.RFC3339),
	})
}

func denyBlocked(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"error": "access temporarily restricted for this client",
	})
}
