package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TenantStatus is the lifecycle state of a tenant.
type TenantStatus string

const (
	TenantTrial     TenantStatus = "trial"
	TenantActive    TenantStatus = "active"
	TenantSuspended TenantStatus = "suspended"
	TenantInactive  TenantStatus = "inactive"
)

// Servable reports whether requests for the tenant may be served.
func (s TenantStatus) Servable() bool {
	return s == TenantActive || s == TenantTrial
}

// PlanTier determines quota and feature limits for a tenant.
type PlanTier string

const (
	PlanFree       PlanTier = "free"
	PlanPremium    PlanTier = "premium"
	PlanEnterprise PlanTier = "enterprise"
)

// Tenant represents an isolated customer account reachable at its own subdomain.
// The subdomain is globally unique and immutable after creation.
type Tenant struct {
	ID        string
	Subdomain string
	Name      string
	Status    TenantStatus
	Plan      PlanTier
	CreatedAt time.Time
	UpdatedAt time.Time
}

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// reservedSubdomains cannot be claimed by tenants.
var reservedSubdomains = map[string]struct{}{
	"www": {}, "api": {}, "admin": {}, "app": {}, "mail": {}, "ftp": {},
	"blog": {}, "shop": {}, "support": {}, "help": {}, "docs": {}, "status": {},
	"cdn": {}, "assets": {}, "static": {}, "media": {}, "files": {}, "images": {},
	"uploads": {}, "dashboard": {}, "portal": {}, "console": {}, "manage": {},
	"control": {},
}

// ValidateSubdomain checks format rules: 3-63 chars, lowercase alphanumeric plus
// hyphen, no leading/trailing hyphen, no consecutive hyphens, not reserved.
func ValidateSubdomain(subdomain string) error {
	s := strings.ToLower(strings.TrimSpace(subdomain))
	if len(s) < 3 || len(s) > 63 {
		return fmt.Errorf("subdomain %q: length must be 3-63 characters", subdomain)
	}
	if !subdomainPattern.MatchString(s) {
		return fmt.Errorf("subdomain %q: must be lowercase alphanumeric with inner hyphens", subdomain)
	}
	if strings.Contains(s, "--") {
		return fmt.Errorf("subdomain %q: consecutive hyphens not allowed", subdomain)
	}
	if _, ok := reservedSubdomains[s]; ok {
		return fmt.Errorf("subdomain %q is reserved", subdomain)
	}
	return nil
}
