package handler_test

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/base2ML/baby-raffle-platform-sub000/internal/domain"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/oauth"
)

// In-memory doubles shared by the handler tests.

type memTenantRepo struct {
	tenants map[string]domain.Tenant // keyed by subdomain
	nextID  int
}

func newMemTenantRepo() *memTenantRepo {
	return &memTenantRepo{tenants: map[string]domain.Tenant{}}
}

func (r *memTenantRepo) GetBySubdomain(_ context.Context, subdomain string) (domain.Tenant, error) {
	t, ok := r.tenants[subdomain]
	if !ok {
		return domain.Tenant{}, fmt.Errorf("get tenant: %w", pgx.ErrNoRows)
	}
	return t, nil
}

func (r *memTenantRepo) GetByID(_ context.Context, tenantID string) (domain.Tenant, error) {
	for _, t := range r.tenants {
		if t.ID == tenantID {
			return t, nil
		}
	}
	return domain.Tenant{}, fmt.Errorf("get tenant: %w", pgx.ErrNoRows)
}

func (r *memTenantRepo) Create(_ context.Context, t domain.Tenant) (domain.Tenant, error) {
	if _, taken := r.tenants[t.Subdomain]; taken {
		return domain.Tenant{}, fmt.Errorf("duplicate subdomain %q", t.Subdomain)
	}
	r.nextID++
	t.ID = fmt.Sprintf("t%d", r.nextID)
	r.tenants[t.Subdomain] = t
	return t, nil
}

func (r *memTenantRepo) UpdateStatus(_ context.Context, tenantID string, status domain.TenantStatus) error {
	for sub, t := range r.tenants {
		if t.ID == tenantID {
			t.Status = status
			r.tenants[sub] = t
			return nil
		}
	}
	return fmt.Errorf("update tenant: %w", pgx.ErrNoRows)
}

type memUserRepo struct {
	users  map[string]domain.User
	nextID int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]domain.User{}}
}

func (r *memUserRepo) GetByID(_ context.Context, tenantID, userID string) (domain.User, error) {
	u, ok := r.users[userID]
	if !ok || u.TenantID != tenantID {
		return domain.User{}, fmt.Errorf("get user: %w", pgx.ErrNoRows)
	}
	return u, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, tenantID, email string) (domain.User, error) {
	for _, u := range r.users {
		if u.TenantID == tenantID && strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domain.User{}, fmt.Errorf("get user: %w", pgx.ErrNoRows)
}

func (r *memUserRepo) GetByProviderSubject(_ context.Context, provider, subject string) (domain.User, error) {
	for _, u := range r.users {
		if u.Provider == provider && u.ProviderSubject == subject {
			return u, nil
		}
	}
	return domain.User{}, fmt.Errorf("get user: %w", pgx.ErrNoRows)
}

func (r *memUserRepo) Create(_ context.Context, u domain.User) (domain.User, error) {
	r.nextID++
	u.ID = fmt.Sprintf("u%d", r.nextID)
	u.TokenVersion = 1
	r.users[u.ID] = u
	return u, nil
}

func (r *memUserRepo) BumpTokenVersion(_ context.Context, tenantID, userID string) (int64, error) {
	u, ok := r.users[userID]
	if !ok || u.TenantID != tenantID {
		return 0, fmt.Errorf("bump token version: %w", pgx.ErrNoRows)
	}
	u.TokenVersion++
	r.users[userID] = u
	return u.TokenVersion, nil
}

type stubProvider struct {
	name     string
	identity oauth.ProviderIdentity
	failCode bool
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) AuthCodeURL(state, redirectURI string) string {
	return "https://provider.test/auth?state=" + state
}

func (p *stubProvider) ExchangeCode(_ context.Context, code, _ string) (oauth.ProviderTokens, error) {
	if p.failCode {
		return oauth.ProviderTokens{}, fmt.Errorf("provider rejected code")
	}
	return oauth.ProviderTokens{AccessToken: "at-" + code}, nil
}

func (p *stubProvider) FetchIdentity(_ context.Context, _ oauth.ProviderTokens) (oauth.ProviderIdentity, error) {
	return p.identity, nil
}
