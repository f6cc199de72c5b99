package middleware

import (
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/base2ML/baby-raffle-platform-sub000/internal/config"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/domain"
	httpmiddleware "github.com/base2ML/baby-raffle-platform-sub000/internal/http/middleware"
)

// RateLimiter applies a token-bucket quota per tenant. Buckets are
// tenant-local: one tenant's burst never consumes another tenant's quota.
// Bucket capacity and refill rate derive from the tenant's plan tier.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limits  map[domain.PlanTier]int
}

type bucket struct {
	limiter *rate.Limiter
	tier    domain.PlanTier
}

// NewRateLimiter builds the limiter from configured per-tier
// requests-per-minute values.
func NewRateLimiter(cfg config.Config) *RateLimiter {
	return &RateLimiter{
		buckets: map[string]*bucket{},
		limits: map[domain.PlanTier]int{
			domain.PlanFree:       cfg.RateLimitFreePerMin,
			domain.PlanPremium:    cfg.RateLimitPremiumPerMin,
			domain.PlanEnterprise: cfg.RateLimitEnterprisePerMin,
		},
	}
}

// Allow consumes one token from the tenant's bucket. The check-and-decrement
// is atomic inside rate.Limiter, so concurrent requests cannot both pass a
// bucket with capacity for one.
func (l *RateLimiter) Allow(tenantID string, tier domain.PlanTier) bool {
	return l.bucketFor(tenantID, tier).limiter.Allow()
}

// RetryAfter returns the wait hint for a denied request, derived from the
// tier's refill rate.
func (l *RateLimiter) RetryAfter(tier domain.PlanTier) time.Duration {
	rpm := l.rpmFor(tier)
	perToken := time.Minute / time.Duration(rpm)
	if perToken < time.Second {
		return time.Second
	}
	return perToken
}

func (l *RateLimiter) rpmFor(tier domain.PlanTier) int {
	rpm, ok := l.limits[tier]
	if !ok || rpm <= 0 {
		rpm = l.limits[domain.PlanFree]
	}
	if rpm <= 0 {
		rpm = 60
	}
	return rpm
}

func (l *RateLimiter) bucketFor(tenantID string, tier domain.PlanTier) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[tenantID]
	if !ok || b.tier != tier {
		rpm := l.rpmFor(tier)
		b = &bucket{
			limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
			tier:    tier,
		}
		l.buckets[tenantID] = b
	}
	return b
}

// Handler enforces the quota for resolved tenants. It runs after the tenant
// resolver; tenant-less requests (public endpoints) are not limited here.
func (l *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, ok := httpmiddleware.GetRequestContext(c)
		if !ok || rc.TenantID == "" {
			c.Next()
			return
		}
		if !l.Allow(rc.TenantID, rc.Tenant.Plan) {
			retry := l.RetryAfter(rc.Tenant.Plan)
			c.Header("Retry-After", fmt.Sprintf("%d", int(math.Ceil(retry.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":             "rate_limited",
				"error_description": "Request quota exceeded for this tenant.",
			})
			return
		}
		c.Next()
	}
}
