package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/base2ML/baby-raffle-platform-sub000/internal/http/middleware"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/tenantdb"
)

// SiteHandler serves discovery and the tenant-scoped read endpoints. It is
// the canonical consumer of the bound database session: handlers never pass
// a tenant id into queries, and never see rows outside the bound tenant.
type SiteHandler struct {
	DB *tenantdb.DB
}

func NewSiteHandler(db *tenantdb.DB) *SiteHandler {
	return &SiteHandler{DB: db}
}

// Health is the unauthenticated liveness endpoint.
func (h *SiteHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// TenantDiscovery returns public metadata for the tenant implied by the host.
func (h *SiteHandler) TenantDiscovery(c *gin.Context) {
	rc, ok := middleware.GetRequestContext(c)
	if !ok || rc.TenantID == "" {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "tenant_not_found",
			"error_description": "Unknown tenant.",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subdomain": rc.Tenant.Subdomain,
		"name":      rc.Tenant.Name,
		"status":    rc.Tenant.Status,
		"plan":      rc.Tenant.Plan,
	})
}

type betRow struct {
	ID        string  `json:"id"`
	Category  string  `json:"category"`
	Amount    float64 `json:"amount"`
	CreatedAt string  `json:"created_at"`
}

// ListBets lists the tenant's bets. The query carries no tenant filter of its
// own: row-level security scopes it through the bound session, and each row
// is re-checked against the bound tenant on the way out.
func (h *SiteHandler) ListBets(c *gin.Context) {
	rc, ok := middleware.GetRequestContext(c)
	if !ok || rc.TenantID == "" {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "tenant_not_found",
			"error_description": "Unknown tenant.",
		})
		return
	}

	var bets []betRow
	err := h.DB.WithTenant(c.Request.Context(), rc.TenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(c.Request.Context(),
			`SELECT id, tenant_id, category, amount, created_at FROM bets ORDER BY created_at DESC LIMIT 100`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				b           betRow
				rowTenantID string
			)
			if err := rows.Scan(&b.ID, &rowTenantID, &b.Category, &b.Amount, &b.CreatedAt); err != nil {
				return err
			}
			if err := tenantdb.AssertTenant(rowTenantID, rc.TenantID); err != nil {
				return err
			}
			bets = append(bets, b)
		}
		return rows.Err()
	})
	if err != nil {
		// Includes isolation-breach assertions: fail the request, never
		// return rows we cannot attribute to the bound tenant.
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Failed to load bets.",
		})
		return
	}

	if bets == nil {
		bets = []betRow{}
	}
	c.JSON(http.StatusOK, gin.H{"bets": bets})
}
