package domain

import "errors"

// Expected request outcomes. Handlers map these to HTTP statuses at the
// middleware boundary; they never propagate into business handlers.
var (
	// ErrTenantUnresolved covers unknown subdomains and directory lookup
	// failures. Always fail closed: no default or wildcard tenant.
	ErrTenantUnresolved = errors.New("tenant unresolved")

	// ErrTokenInvalid covers expired, malformed, and stale-version tokens.
	// The caller cannot distinguish which check failed.
	ErrTokenInvalid = errors.New("invalid session token")

	// ErrTenantSuspended means the tenant exists but is not servable.
	ErrTenantSuspended = errors.New("tenant suspended")

	// ErrTenantMismatch means the host header and session token resolve to
	// different tenants.
	ErrTenantMismatch = errors.New("tenant mismatch")

	// ErrRateLimited means the tenant exhausted its request quota.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrStateMismatch means an OAuth callback carried an unknown or altered
	// state value.
	ErrStateMismatch = errors.New("oauth state mismatch")

	// ErrProviderError means the OAuth provider rejected the flow or the user
	// denied consent.
	ErrProviderError = errors.New("oauth provider error")

	// ErrNoTenant means a data-layer operation was attempted without a bound
	// tenant. Queries are denied, never unscoped.
	ErrNoTenant = errors.New("no tenant bound to session")

	// ErrIsolationBreach means a row escaped the storage-level tenant filter.
	// This indicates a server bug and is treated as fatal.
	ErrIsolationBreach = errors.New("tenant isolation breach")
)
