package tenant

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/base2ML/baby-raffle-platform-sub000/internal/domain"
)

type countingRepo struct {
	tenants map[string]domain.Tenant
	lookups atomic.Int64
	fail    atomic.Bool
}

func (r *countingRepo) GetBySubdomain(_ context.Context, subdomain string) (domain.Tenant, error) {
	r.lookups.Add(1)
	if r.fail.Load() {
		return domain.Tenant{}, fmt.Errorf("directory unavailable")
	}
	t, ok := r.tenants[subdomain]
	if !ok {
		return domain.Tenant{}, fmt.Errorf("no such tenant")
	}
	return t, nil
}

func (r *countingRepo) GetByID(_ context.Context, tenantID string) (domain.Tenant, error) {
	r.lookups.Add(1)
	if r.fail.Load() {
		return domain.Tenant{}, fmt.Errorf("directory unavailable")
	}
	for _, t := range r.tenants {
		if t.ID == tenantID {
			return t, nil
		}
	}
	return domain.Tenant{}, fmt.Errorf("no such tenant")
}

func (r *countingRepo) Create(_ context.Context, t domain.Tenant) (domain.Tenant, error) {
	return t, nil
}

func (r *countingRepo) UpdateStatus(_ context.Context, _ string, _ domain.TenantStatus) error {
	return nil
}

func newTestRepo() *countingRepo {
	return &countingRepo{tenants: map[string]domain.Tenant{
		"acme": {ID: "t1", Subdomain: "acme", Name: "Acme", Status: domain.TenantActive, Plan: domain.PlanFree},
	}}
}

func TestDirectoryResolveCaches(t *testing.T) {
	repo := newTestRepo()
	d := NewDirectory(repo, 30*time.Second, time.Second)

	first, err := d.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, "t1", first.ID)

	second, err := d.Resolve(context.Background(), "ACME ")
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.Equal(t, int64(1), repo.lookups.Load(), "second resolve must be served from cache")
}

func TestDirectoryTTLExpiry(t *testing.T) {
	repo := newTestRepo()
	d := NewDirectory(repo, 30*time.Second, time.Second)

	now := time.Now()
	d.now = func() time.Time { return now }

	_, err := d.Resolve(context.Background(), "acme")
	require.NoError(t, err)

	now = now.Add(31 * time.Second)
	_, err = d.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, int64(2), repo.lookups.Load(), "expired entry must be refetched")
}

func TestDirectoryFailsClosed(t *testing.T) {
	repo := newTestRepo()
	d := NewDirectory(repo, 30*time.Second, time.Second)

	_, err := d.Resolve(context.Background(), "unknown")
	require.ErrorIs(t, err, domain.ErrTenantUnresolved)

	repo.fail.Store(true)
	_, err = d.Resolve(context.Background(), "acme")
	require.ErrorIs(t, err, domain.ErrTenantUnresolved)

	_, err = d.Resolve(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrTenantUnresolved)
}

func TestDirectoryInvalidate(t *testing.T) {
	repo := newTestRepo()
	d := NewDirectory(repo, time.Hour, time.Second)

	_, err := d.Resolve(context.Background(), "acme")
	require.NoError(t, err)

	repo.tenants["acme"] = domain.Tenant{ID: "t1", Subdomain: "acme", Status: domain.TenantSuspended}
	d.Invalidate("acme", "t1")

	refetched, err := d.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, domain.TenantSuspended, refetched.Status, "invalidation must bypass TTL")
	require.Equal(t, int64(2), repo.lookups.Load())
}

func TestDirectoryResolveByID(t *testing.T) {
	repo := newTestRepo()
	d := NewDirectory(repo, time.Hour, time.Second)

	got, err := d.ResolveByID(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "acme", got.Subdomain)

	// The id lookup warms both indexes.
	_, err = d.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, int64(1), repo.lookups.Load())

	_, err = d.ResolveByID(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrTenantUnresolved)
}

func TestSubdomainFromHost(t *testing.T) {
	cases := []struct {
		host string
		want string
		ok   bool
	}{
		{"acme.base2ml.com", "acme", true},
		{"ACME.base2ml.com:443", "acme", true},
		{"base2ml.com", "", false},
		{"deep.acme.base2ml.com", "", false},
		{"localhost:8080", "", false},
		{"127.0.0.1", "", false},
		{"evil.other.com", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := SubdomainFromHost(tc.host, "base2ml.com")
		require.Equal(t, tc.ok, ok, tc.host)
		require.Equal(t, tc.want, got, tc.host)
	}
}
