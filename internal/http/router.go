package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/base2ML/baby-raffle-platform-sub000/internal/config"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/http/handler"
	httpmiddleware "github.com/base2ML/baby-raffle-platform-sub000/internal/http/middleware"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/middleware"
)

// NewRouter wires gin routes and middleware. Ordering on tenant-scoped
// groups follows the request pipeline: resolve tenant, then rate limit, then
// the business handler.
func NewRouter(
	cfg config.Config,
	resolver *httpmiddleware.Resolver,
	rateLimiter *middleware.RateLimiter,
	authHandler *handler.AuthHandler,
	adminHandler *handler.AdminHandler,
	siteHandler *handler.SiteHandler,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	r.Use(middleware.SecurityHeaders())
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/health", siteHandler.Health)

	wellKnown := r.Group("/.well-known")
	wellKnown.Use(resolver.AllowAnonymous(), middleware.TenantCORS(cfg))
	{
		wellKnown.GET("/tenant", siteHandler.TenantDiscovery)
	}

	auth := r.Group("/auth")
	auth.Use(resolver.AllowAnonymous(), rateLimiter.Handler(), middleware.TenantCORS(cfg))
	{
		auth.GET("/oauth/start", authHandler.OAuthStart)
		auth.GET("/oauth/callback", authHandler.OAuthCallback)
		auth.POST("/oauth/callback", authHandler.OAuthCallback) // Apple uses form_post
	}

	api := r.Group("/api")
	api.Use(resolver.RequireTenant(), httpmiddleware.RequireAuth(), rateLimiter.Handler(), middleware.TenantCORS(cfg))
	{
		api.GET("/me", authHandler.Me)
		api.GET("/bets", siteHandler.ListBets)
	}

	// Cross-tenant operator surface; own authentication, no tenant
	// resolution, never reachable with per-tenant session tokens.
	admin := r.Group("/admin")
	admin.Use(httpmiddleware.AdminKey(cfg.AdminKeyHash))
	{
		admin.POST("/tenants", adminHandler.CreateTenant)
		admin.POST("/tenants/:id/suspend", adminHandler.SuspendTenant)
		admin.POST("/tenants/:id/activate", adminHandler.ActivateTenant)
		admin.POST("/tenants/:id/users/:userID/revoke-tokens", adminHandler.RevokeUserTokens)
	}

	return r
}
