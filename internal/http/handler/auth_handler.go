package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/base2ML/baby-raffle-platform-sub000/internal/domain"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/http/middleware"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/oauth"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/repository"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/tenant"
)

const sessionCookie = "br_session"

// AuthHandler exposes the login endpoints.
type AuthHandler struct {
	Exchange   *oauth.Exchange
	Users      repository.UserRepository
	BaseDomain string
}

func NewAuthHandler(exchange *oauth.Exchange, users repository.UserRepository, baseDomain string) *AuthHandler {
	return &AuthHandler{Exchange: exchange, Users: users, BaseDomain: baseDomain}
}

// OAuthStart builds the provider authorization URL for the tenant implied by
// the request host.
func (h *AuthHandler) OAuthStart(c *gin.Context) {
	provider := strings.TrimSpace(c.Query("provider"))
	redirectURI := strings.TrimSpace(c.Query("redirect_uri"))
	if provider == "" || redirectURI == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "provider and redirect_uri are required.",
		})
		return
	}

	subdomain, _ := tenant.SubdomainFromHost(c.Request.Host, h.BaseDomain)
	result, err := h.Exchange.Initiate(c.Request.Context(), provider, subdomain, redirectURI)
	if err != nil {
		h.respondExchangeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authorization_url": result.RedirectURL,
		"state":             result.State,
	})
}

// OAuthCallback completes the handshake. Parameters are read with FormValue
// because Apple posts them as a form body (response_mode=form_post) while
// Google sends them in the query string. Flow failures surface as a login
// failure redirect, never a bare 500.
func (h *AuthHandler) OAuthCallback(c *gin.Context) {
	if providerErr := strings.TrimSpace(c.Request.FormValue("error")); providerErr != "" {
		h.loginFailureRedirect(c, "provider_error")
		return
	}

	session, err := h.Exchange.CompleteCallback(c.Request.Context(),
		c.Request.FormValue("code"), c.Request.FormValue("state"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrStateMismatch):
			h.loginFailureRedirect(c, "state_mismatch")
		case errors.Is(err, domain.ErrProviderError):
			h.loginFailureRedirect(c, "provider_error")
		case errors.Is(err, domain.ErrTenantMismatch):
			c.JSON(http.StatusForbidden, gin.H{
				"error":             "tenant_mismatch",
				"error_description": "This account belongs to a different tenant.",
			})
		case errors.Is(err, domain.ErrTenantSuspended):
			c.JSON(http.StatusForbidden, gin.H{
				"error":             "tenant_suspended",
				"error_description": "Tenant is not active. Contact support.",
			})
		case errors.Is(err, domain.ErrTenantUnresolved):
			h.loginFailureRedirect(c, "unknown_tenant")
		default:
			zap.L().Error("oauth callback failed", zap.Error(err))
			h.loginFailureRedirect(c, "login_failed")
		}
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Request.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	c.JSON(http.StatusOK, gin.H{
		"access_token": session.Token,
		"token_type":   "Bearer",
		"user": gin.H{
			"id":    session.User.ID,
			"email": session.User.Email,
			"name":  session.User.Name,
			"role":  session.User.Role,
		},
		"tenant": gin.H{
			"id":        session.Tenant.ID,
			"subdomain": session.Tenant.Subdomain,
		},
	})
}

// Me returns the authenticated user's profile. It runs behind RequireAuth,
// which guarantees a resolved, authenticated request context.
func (h *AuthHandler) Me(c *gin.Context) {
	rc, _ := middleware.GetRequestContext(c)

	user, err := h.Users.GetByID(c.Request.Context(), rc.TenantID, rc.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Failed to load profile.",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     user.ID,
		"email":  user.Email,
		"name":   user.Name,
		"role":   user.Role,
		"tenant": rc.Tenant.Subdomain,
	})
}

func (h *AuthHandler) respondExchangeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrTenantUnresolved):
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "tenant_not_found",
			"error_description": "Unknown tenant.",
		})
	case errors.Is(err, domain.ErrTenantSuspended):
		c.JSON(http.StatusForbidden, gin.H{
			"error":             "tenant_suspended",
			"error_description": "Tenant is not active.",
		})
	case errors.Is(err, domain.ErrProviderError):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Unknown or misconfigured provider.",
		})
	default:
		zap.L().Error("oauth start failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Failed to start login.",
		})
	}
}

func (h *AuthHandler) loginFailureRedirect(c *gin.Context, code string) {
	target := url.URL{Path: "/login"}
	q := target.Query()
	q.Set("error", code)
	target.RawQuery = q.Encode()
	c.Redirect(http.StatusFound, target.String())
}
