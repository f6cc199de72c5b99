package tenant

import (
	"context"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/base2ML/baby-raffle-platform-sub000/internal/domain"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/repository"
)

// Directory maps subdomains to tenant records. Reads are served from an
// immutable snapshot swapped atomically, so the hot path takes no locks and
// readers never observe a half-updated entry. Entries expire after TTL;
// status changes become visible within one TTL at worst, or immediately when
// the writer calls Invalidate.
//
// Lookups fail closed: an unknown subdomain, a repository error, or a timed
// out lookup all surface as domain.ErrTenantUnresolved. There is no default
// tenant.
type Directory struct {
	repo          repository.TenantRepository
	ttl           time.Duration
	lookupTimeout time.Duration

	group    singleflight.Group
	snapshot atomic.Pointer[snapshot]
	mu       sync.Mutex // serializes snapshot replacement

	now func() time.Time
}

type snapshot struct {
	bySubdomain map[string]entry
	byID        map[string]entry
}

type entry struct {
	tenant    domain.Tenant
	fetchedAt time.Time
}

// NewDirectory creates a tenant directory over the given repository.
func NewDirectory(repo repository.TenantRepository, ttl, lookupTimeout time.Duration) *Directory {
	d := &Directory{
		repo:          repo,
		ttl:           ttl,
		lookupTimeout: lookupTimeout,
		now:           time.Now,
	}
	d.snapshot.Store(&snapshot{
		bySubdomain: map[string]entry{},
		byID:        map[string]entry{},
	})
	return d
}

// Resolve returns the tenant for a subdomain, or domain.ErrTenantUnresolved.
// The returned tenant may be suspended; callers decide how to respond.
func (d *Directory) Resolve(ctx context.Context, subdomain string) (domain.Tenant, error) {
	cleaned := strings.ToLower(strings.TrimSpace(subdomain))
	if cleaned == "" {
		return domain.Tenant{}, domain.ErrTenantUnresolved
	}

	snap := d.snapshot.Load()
	if e, ok := snap.bySubdomain[cleaned]; ok && d.fresh(e) {
		return e.tenant, nil
	}

	v, err, _ := d.group.Do("sub:"+cleaned, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(ctx, d.lookupTimeout)
		defer cancel()

		t, err := d.repo.GetBySubdomain(lookupCtx, cleaned)
		if err != nil {
			return nil, err
		}
		d.store(t)
		return t, nil
	})
	if err != nil {
		zap.L().Warn("tenant directory lookup failed",
			zap.String("subdomain", cleaned),
			zap.Error(err),
		)
		return domain.Tenant{}, domain.ErrTenantUnresolved
	}
	return v.(domain.Tenant), nil
}

// ResolveByID returns the tenant for an id, or domain.ErrTenantUnresolved.
// Used on the token-verification path for live status checks.
func (d *Directory) ResolveByID(ctx context.Context, tenantID string) (domain.Tenant, error) {
	if tenantID == "" {
		return domain.Tenant{}, domain.ErrTenantUnresolved
	}

	snap := d.snapshot.Load()
	if e, ok := snap.byID[tenantID]; ok && d.fresh(e) {
		return e.tenant, nil
	}

	v, err, _ := d.group.Do("id:"+tenantID, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(ctx, d.lookupTimeout)
		defer cancel()

		t, err := d.repo.GetByID(lookupCtx, tenantID)
		if err != nil {
			return nil, err
		}
		d.store(t)
		return t, nil
	})
	if err != nil {
		zap.L().Warn("tenant directory id lookup failed",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return domain.Tenant{}, domain.ErrTenantUnresolved
	}
	return v.(domain.Tenant), nil
}

// Invalidate drops the cached entry for a tenant. Writers call this right
// after a status change so suspension takes effect without waiting for TTL.
func (d *Directory) Invalidate(subdomain, tenantID string) {
	cleaned := strings.ToLower(strings.TrimSpace(subdomain))

	d.mu.Lock()
	defer d.mu.Unlock()

	old := d.snapshot.Load()
	next := cloneSnapshot(old)
	delete(next.bySubdomain, cleaned)
	delete(next.byID, tenantID)
	d.snapshot.Store(next)
}

func (d *Directory) fresh(e entry) bool {
	return d.now().Sub(e.fetchedAt) < d.ttl
}

func (d *Directory) store(t domain.Tenant) {
	e := entry{tenant: t, fetchedAt: d.now()}

	d.mu.Lock()
	defer d.mu.Unlock()

	old := d.snapshot.Load()
	next := cloneSnapshot(old)
	next.bySubdomain[t.Subdomain] = e
	next.byID[t.ID] = e
	d.snapshot.Store(next)
}

func cloneSnapshot(old *snapshot) *snapshot {
	next := &snapshot{
		bySubdomain: make(map[string]entry, len(old.bySubdomain)),
		byID:        make(map[string]entry, len(old.byID)),
	}
	for k, v := range old.bySubdomain {
		next.bySubdomain[k] = v
	}
	for k, v := range old.byID {
		next.byID[k] = v
	}
	return next
}

// SubdomainFromHost extracts the tenant subdomain from a Host header value.
// Returns false for the bare base domain, localhost, raw IPs, and hosts
// outside the base domain.
func SubdomainFromHost(host, baseDomain string) (string, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(host))
	if cleaned == "" {
		return "", false
	}
	if h, _, err := net.SplitHostPort(cleaned); err == nil {
		cleaned = h
	}
	if cleaned == "localhost" || net.ParseIP(cleaned) != nil {
		return "", false
	}
	suffix := "." + strings.ToLower(baseDomain)
	if !strings.HasSuffix(cleaned, suffix) {
		return "", false
	}
	sub := strings.TrimSuffix(cleaned, suffix)
	if sub == "" || strings.Contains(sub, ".") {
		return "", false
	}
	return sub, true
}
