package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/base2ML/baby-raffle-platform-sub000/internal/domain"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/repository"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/tenant"
)

// AdminHandler implements the cross-tenant administrative surface. It is
// mounted behind the admin key middleware, outside normal tenant resolution.
type AdminHandler struct {
	Tenants   repository.TenantRepository
	Users     repository.UserRepository
	Directory *tenant.Directory
}

func NewAdminHandler(tenants repository.TenantRepository, users repository.UserRepository, directory *tenant.Directory) *AdminHandler {
	return &AdminHandler{Tenants: tenants, Users: users, Directory: directory}
}

// CreateTenant provisions a tenant and its owner user.
func (h *AdminHandler) CreateTenant(c *gin.Context) {
	var req struct {
		Subdomain  string `json:"subdomain" binding:"required"`
		Name       string `json:"name" binding:"required"`
		Plan       string `json:"plan"`
		OwnerEmail string `json:"owner_email" binding:"required"`
		OwnerName  string `json:"owner_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "subdomain, name, and owner_email are required.",
		})
		return
	}

	if err := domain.ValidateSubdomain(req.Subdomain); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_subdomain",
			"error_description": err.Error(),
		})
		return
	}

	plan := domain.PlanTier(strings.ToLower(strings.TrimSpace(req.Plan)))
	if plan == "" {
		plan = domain.PlanFree
	}

	created, err := h.Tenants.Create(c.Request.Context(), domain.Tenant{
		Subdomain: strings.ToLower(req.Subdomain),
		Name:      req.Name,
		Status:    domain.TenantTrial,
		Plan:      plan,
	})
	if err != nil {
		zap.L().Error("tenant provisioning failed", zap.String("subdomain", req.Subdomain), zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{
			"error":             "tenant_create_failed",
			"error_description": "Subdomain may already be taken.",
		})
		return
	}

	ownerName := strings.TrimSpace(req.OwnerName)
	if ownerName == "" {
		ownerName = req.OwnerEmail
	}
	owner, err := h.Users.Create(c.Request.Context(), domain.User{
		TenantID: created.ID,
		Email:    req.OwnerEmail,
		Name:     ownerName,
		Role:     domain.RoleOwner,
		Status:   domain.UserActive,
	})
	if err != nil {
		zap.L().Error("owner provisioning failed", zap.String("tenant_id", created.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Tenant created but owner provisioning failed.",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"tenant": gin.H{
			"id":        created.ID,
			"subdomain": created.Subdomain,
			"name":      created.Name,
			"status":    created.Status,
			"plan":      created.Plan,
		},
		"owner": gin.H{
			"id":    owner.ID,
			"email": owner.Email,
			"role":  owner.Role,
		},
	})
}

// SuspendTenant suspends a tenant. Already-issued session tokens stop
// verifying as soon as the directory entry is invalidated.
func (h *AdminHandler) SuspendTenant(c *gin.Context) {
	h.setStatus(c, domain.TenantSuspended)
}

// ActivateTenant returns a tenant to active status.
func (h *AdminHandler) ActivateTenant(c *gin.Context) {
	h.setStatus(c, domain.TenantActive)
}

func (h *AdminHandler) setStatus(c *gin.Context, status domain.TenantStatus) {
	tenantID := c.Param("id")

	t, err := h.Tenants.GetByID(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "tenant_not_found",
			"error_description": "Unknown tenant.",
		})
		return
	}

	if err := h.Tenants.UpdateStatus(c.Request.Context(), tenantID, status); err != nil {
		zap.L().Error("tenant status change failed",
			zap.String("tenant_id", tenantID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Failed to update tenant status.",
		})
		return
	}

	// Drop the cached entry so the change takes effect now, not after TTL.
	h.Directory.Invalidate(t.Subdomain, t.ID)

	zap.L().Info("tenant status changed",
		zap.String("tenant_id", tenantID),
		zap.String("subdomain", t.Subdomain),
		zap.String("status", string(status)),
	)
	c.JSON(http.StatusOK, gin.H{"id": tenantID, "status": status})
}

// RevokeUserTokens bumps the user's token version, invalidating every
// session token issued before this call.
func (h *AdminHandler) RevokeUserTokens(c *gin.Context) {
	tenantID := c.Param("id")
	userID := c.Param("userID")

	version, err := h.Users.BumpTokenVersion(c.Request.Context(), tenantID, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "user_not_found",
			"error_description": "Unknown user.",
		})
		return
	}

	zap.L().Info("user tokens revoked",
		zap.String("tenant_id", tenantID),
		zap.String("user_id", userID),
		zap.Int64("token_version", version),
	)
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "token_version": version})
}
