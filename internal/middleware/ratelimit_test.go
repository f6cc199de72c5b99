package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/base2ML/baby-raffle-platform-sub000/internal/config"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/domain"
	httpmiddleware "github.com/base2ML/baby-raffle-platform-sub000/internal/http/middleware"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/middleware"
)

func newLimiter(free, premium, enterprise int) *middleware.RateLimiter {
	return middleware.NewRateLimiter(config.Config{
		RateLimitFreePerMin:       free,
		RateLimitPremiumPerMin:    premium,
		RateLimitEnterprisePerMin: enterprise,
	})
}

func TestAllowExhaustsBucket(t *testing.T) {
	l := newLimiter(10, 500, 2000)

	for i := 0; i < 10; i++ {
		require.True(t, l.Allow("t1", domain.PlanFree), "request %d should pass", i)
	}
	require.False(t, l.Allow("t1", domain.PlanFree), "11th request must be denied")
}

func TestBucketsAreTenantLocal(t *testing.T) {
	l := newLimiter(5, 500, 2000)

	for i := 0; i < 5; i++ {
		require.True(t, l.Allow("t1", domain.PlanFree))
	}
	require.False(t, l.Allow("t1", domain.PlanFree))

	// t1's exhaustion must not touch t2's bucket.
	require.True(t, l.Allow("t2", domain.PlanFree))
}

func TestTierChangeResetsBucket(t *testing.T) {
	l := newLimiter(5, 500, 2000)

	for i := 0; i < 5; i++ {
		require.True(t, l.Allow("t1", domain.PlanFree))
	}
	require.False(t, l.Allow("t1", domain.PlanFree))

	// An upgrade takes effect on the next request.
	require.True(t, l.Allow("t1", domain.PlanPremium))
}

func TestUnknownTierFallsBackToFree(t *testing.T) {
	l := newLimiter(3, 500, 2000)

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow("t1", domain.PlanTier("bogus")))
	}
	require.False(t, l.Allow("t1", domain.PlanTier("bogus")))
}

func TestConcurrentAllowNeverOversells(t *testing.T) {
	const capacity = 30
	l := newLimiter(capacity, 500, 2000)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("t1", domain.PlanFree) {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(capacity), allowed.Load(),
		"exactly the bucket capacity may pass under concurrency")
}

func TestRetryAfter(t *testing.T) {
	l := newLimiter(100, 500, 2000)

	// Fast tiers still advertise at least one second.
	require.Equal(t, time.Second, l.RetryAfter(domain.PlanFree))

	slow := newLimiter(2, 500, 2000)
	require.Equal(t, 30*time.Second, slow.RetryAfter(domain.PlanFree))
}

func TestHandlerReturns429WithRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := newLimiter(1, 500, 2000)

	r := gin.New()
	r.GET("/probe",
		func(c *gin.Context) {
			httpmiddleware.SetRequestContext(c, domain.RequestContext{
				TenantID: "t1",
				Tenant:   domain.Tenant{ID: "t1", Subdomain: "acme", Plan: domain.PlanFree},
				Source:   domain.SourceHostHeader,
			})
		},
		l.Handler(),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/probe", nil))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/probe", nil))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestHandlerSkipsTenantlessRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := newLimiter(1, 500, 2000)

	r := gin.New()
	r.GET("/probe", l.Handler(), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}
