package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/base2ML/baby-raffle-platform-sub000/internal/domain"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/tenant"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/token"
)

const ginRequestContextKey = "requestContext"

type requestContextKey struct{}

// Resolver determines the acting tenant for every request from the Host
// header and the bearer token, rejects any disagreement between the two, and
// attaches the result for downstream handlers.
type Resolver struct {
	Directory  *tenant.Directory
	Tokens     *token.Service
	BaseDomain string
}

func NewResolver(directory *tenant.Directory, tokens *token.Service, baseDomain string) *Resolver {
	return &Resolver{Directory: directory, Tokens: tokens, BaseDomain: baseDomain}
}

// RequireTenant resolves the tenant and rejects requests that end up with
// neither a resolvable host nor a valid token. Unknown subdomains get 404,
// not 401, so unauthenticated callers cannot probe which tenants exist.
func (m *Resolver) RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.resolve(c, false)
	}
}

// AllowAnonymous resolves the tenant when possible but lets the request
// proceed without one. A present-but-invalid Authorization header is still
// rejected; only an entirely absent header counts as anonymous.
func (m *Resolver) AllowAnonymous() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.resolve(c, true)
	}
}

func (m *Resolver) resolve(c *gin.Context, allowAnonymous bool) {
	ctx := c.Request.Context()

	// Candidate A: tenant implied by the Host header.
	var hostTenant *domain.Tenant
	if sub, ok := tenant.SubdomainFromHost(c.Request.Host, m.BaseDomain); ok {
		if t, err := m.Directory.Resolve(ctx, sub); err == nil {
			hostTenant = &t
		}
	}

	// Candidate B: tenant bound inside the bearer token.
	var ident *token.Identity
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			unauthorized(c)
			return
		}
		id, err := m.Tokens.Verify(ctx, strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, domain.ErrTenantSuspended) {
				suspended(c)
				return
			}
			unauthorized(c)
			return
		}
		ident = &id
	}

	var rc domain.RequestContext
	switch {
	case hostTenant != nil && ident != nil:
		if !hostTenant.Status.Servable() {
			suspended(c)
			return
		}
		if hostTenant.ID != ident.TenantID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":             "tenant_mismatch",
				"error_description": "Token is not valid for this tenant.",
			})
			return
		}
		rc = domain.RequestContext{
			TenantID: hostTenant.ID,
			Tenant:   *hostTenant,
			UserID:   ident.UserID,
			Role:     ident.Role,
			Source:   domain.SourceBothMatching,
		}

	case ident != nil:
		rc = domain.RequestContext{
			TenantID: ident.TenantID,
			Tenant:   ident.Tenant,
			UserID:   ident.UserID,
			Role:     ident.Role,
			Source:   domain.SourceToken,
		}

	case hostTenant != nil:
		if !hostTenant.Status.Servable() {
			suspended(c)
			return
		}
		if !allowAnonymous {
			unauthorized(c)
			return
		}
		rc = domain.RequestContext{
			TenantID: hostTenant.ID,
			Tenant:   *hostTenant,
			Source:   domain.SourceHostHeader,
		}

	default:
		if !allowAnonymous {
			notFound(c)
			return
		}
		// Anonymous, tenant-less request to an endpoint that permits it.
	}

	SetRequestContext(c, rc)
	c.Next()
}

// SetRequestContext attaches the resolved context to both the gin context and
// the request context, so handlers and code below the HTTP layer see the same
// resolution.
func SetRequestContext(c *gin.Context, rc domain.RequestContext) {
	ctx := context.WithValue(c.Request.Context(), requestContextKey{}, rc)
	c.Request = c.Request.WithContext(ctx)
	c.Set(ginRequestContextKey, rc)
}

// RequireAuth rejects requests without a verified user identity. It runs
// after RequireTenant.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, ok := GetRequestContext(c)
		if !ok || !rc.Authenticated() {
			unauthorized(c)
			return
		}
		c.Next()
	}
}

// RequireRole rejects authenticated users below the required role.
func RequireRole(required domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, ok := GetRequestContext(c)
		if !ok || !rc.Authenticated() {
			unauthorized(c)
			return
		}
		if !rc.Role.AtLeast(required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":             "insufficient_role",
				"error_description": "Higher role required.",
			})
			return
		}
		c.Next()
	}
}

// GetRequestContext extracts the resolved request context from gin.
func GetRequestContext(c *gin.Context) (domain.RequestContext, bool) {
	value, ok := c.Get(ginRequestContextKey)
	if !ok {
		return domain.RequestContext{}, false
	}
	rc, ok := value.(domain.RequestContext)
	return rc, ok
}

// RequestContextFrom extracts the resolved request context from a standard
// context, for code below the HTTP layer.
func RequestContextFrom(ctx context.Context) (domain.RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey{}).(domain.RequestContext)
	return rc, ok
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":             "invalid_token",
		"error_description": "Valid bearer token required.",
	})
}

func suspended(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"error":             "tenant_suspended",
		"error_description": "Tenant is not active. Contact support.",
	})
}

func notFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
		"error":             "tenant_not_found",
		"error_description": "Unknown tenant.",
	})
}
