package repository

import (
	"context"

	"github.com/base2ML/baby-raffle-platform-sub000/internal/domain"
)

// TenantRepository loads and mutates tenant records. Lookups are served to the
// tenant directory; writes come from provisioning and the admin surface.
type TenantRepository interface {
	GetBySubdomain(ctx context.Context, subdomain string) (domain.Tenant, error)
	GetByID(ctx context.Context, tenantID string) (domain.Tenant, error)
	Create(ctx context.Context, tenant domain.Tenant) (domain.Tenant, error)
	UpdateStatus(ctx context.Context, tenantID string, status domain.TenantStatus) error
}

// UserRepository loads and mutates user records.
type UserRepository interface {
	GetByID(ctx context.Context, tenantID, userID string) (domain.User, error)
	GetByEmail(ctx context.Context, tenantID, email string) (domain.User, error)
	// GetByProviderSubject looks an OAuth identity up across all tenants;
	// the (provider, subject) pair is globally unique.
	GetByProviderSubject(ctx context.Context, provider, subject string) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	// BumpTokenVersion increments the user's token version and returns the
	// new value, invalidating every previously issued session token.
	BumpTokenVersion(ctx context.Context, tenantID, userID string) (int64, error)
}
