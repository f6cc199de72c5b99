package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/base2ML/baby-raffle-platform-sub000/internal/domain"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/repository"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/token"
)

// TenantResolver is the directory dependency for binding flows to tenants.
type TenantResolver interface {
	Resolve(ctx context.Context, subdomain string) (domain.Tenant, error)
	ResolveByID(ctx context.Context, tenantID string) (domain.Tenant, error)
}

// Exchange orchestrates third-party login handshakes and produces a signed
// session token for the verified (user, tenant) pair.
type Exchange struct {
	providers map[string]Provider
	states    StateStore
	directory TenantResolver
	users     repository.UserRepository
	tokens    *token.Service
	stateTTL  time.Duration
}

// NewExchange wires the exchange over a fixed provider set.
func NewExchange(providers []Provider, states StateStore, directory TenantResolver, users repository.UserRepository, tokens *token.Service, stateTTL time.Duration) *Exchange {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Exchange{
		providers: byName,
		states:    states,
		directory: directory,
		users:     users,
		tokens:    tokens,
		stateTTL:  stateTTL,
	}
}

// InitiateResult carries the provider redirect URL and the opaque state bound
// to this attempt.
type InitiateResult struct {
	RedirectURL string
	State       string
}

// Initiate starts a login attempt. tenantSubdomain may be empty for logins
// arriving from the base domain; in that case the callback derives the tenant
// from the identity's existing binding.
func (e *Exchange) Initiate(ctx context.Context, providerName, tenantSubdomain, redirectURI string) (InitiateResult, error) {
	provider, ok := e.providers[strings.ToLower(strings.TrimSpace(providerName))]
	if !ok {
		return InitiateResult{}, fmt.Errorf("%w: unknown provider %q", domain.ErrProviderError, providerName)
	}

	var tenantID string
	if tenantSubdomain != "" {
		t, err := e.directory.Resolve(ctx, tenantSubdomain)
		if err != nil {
			return InitiateResult{}, err
		}
		if !t.Status.Servable() {
			return InitiateResult{}, domain.ErrTenantSuspended
		}
		tenantID = t.ID
	}

	state, err := secureRandomString(32)
	if err != nil {
		return InitiateResult{}, fmt.Errorf("generate state: %w", err)
	}

	if err := e.states.Save(ctx, State{
		Value:       state,
		Provider:    provider.Name(),
		TenantID:    tenantID,
		RedirectURI: redirectURI,
		CreatedAt:   time.Now().UTC(),
	}, e.stateTTL); err != nil {
		return InitiateResult{}, fmt.Errorf("persist state: %w", err)
	}

	return InitiateResult{
		RedirectURL: provider.AuthCodeURL(state, redirectURI),
		State:       state,
	}, nil
}

// Session is the outcome of a completed login.
type Session struct {
	Token  string
	User   domain.User
	Tenant domain.Tenant
}

// CompleteCallback finishes the handshake. The state must exactly match one
// generated at Initiate; anything else aborts the flow before any token is
// issued.
func (e *Exchange) CompleteCallback(ctx context.Context, code, state string) (Session, error) {
	if strings.TrimSpace(code) == "" {
		return Session{}, domain.ErrProviderError
	}
	if strings.TrimSpace(state) == "" {
		return Session{}, domain.ErrStateMismatch
	}

	stored, err := e.states.Consume(ctx, state)
	if err != nil {
		return Session{}, fmt.Errorf("load state: %w", err)
	}
	if stored == nil {
		return Session{}, domain.ErrStateMismatch
	}

	provider, ok := e.providers[stored.Provider]
	if !ok {
		return Session{}, domain.ErrStateMismatch
	}

	tokens, err := provider.ExchangeCode(ctx, code, stored.RedirectURI)
	if err != nil {
		zap.L().Warn("oauth code exchange failed",
			zap.String("provider", stored.Provider),
			zap.Error(err),
		)
		return Session{}, domain.ErrProviderError
	}

	identity, err := provider.FetchIdentity(ctx, tokens)
	if err != nil {
		zap.L().Warn("oauth identity fetch failed",
			zap.String("provider", stored.Provider),
			zap.Error(err),
		)
		return Session{}, domain.ErrProviderError
	}

	user, err := e.matchOrCreateUser(ctx, provider.Name(), stored.TenantID, identity)
	if err != nil {
		return Session{}, err
	}

	t, err := e.directory.ResolveByID(ctx, user.TenantID)
	if err != nil {
		return Session{}, err
	}
	if !t.Status.Servable() {
		return Session{}, domain.ErrTenantSuspended
	}

	sessionToken, err := e.tokens.Issue(ctx, user)
	if err != nil {
		return Session{}, fmt.Errorf("issue session token: %w", err)
	}

	zap.L().Info("oauth login completed",
		zap.String("provider", provider.Name()),
		zap.String("tenant_id", user.TenantID),
		zap.String("user_id", user.ID),
	)
	return Session{Token: sessionToken, User: user, Tenant: t}, nil
}

// matchOrCreateUser enforces the identity invariants: a (provider, subject)
// pair belongs to exactly one tenant forever, and a flow started on tenant A
// cannot attach to a user of tenant B.
func (e *Exchange) matchOrCreateUser(ctx context.Context, providerName, flowTenantID string, identity ProviderIdentity) (domain.User, error) {
	existing, err := e.users.GetByProviderSubject(ctx, providerName, identity.Subject)
	if err == nil {
		if flowTenantID != "" && existing.TenantID != flowTenantID {
			return domain.User{}, domain.ErrTenantMismatch
		}
		if existing.Status != domain.UserActive {
			return domain.User{}, domain.ErrTokenInvalid
		}
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, fmt.Errorf("lookup identity: %w", err)
	}

	// New identity: it can only be claimed inside an explicit tenant context.
	if flowTenantID == "" {
		return domain.User{}, domain.ErrTenantUnresolved
	}
	if identity.Email == "" {
		return domain.User{}, domain.ErrProviderError
	}

	if byEmail, err := e.users.GetByEmail(ctx, flowTenantID, identity.Email); err == nil {
		if byEmail.Status != domain.UserActive {
			return domain.User{}, domain.ErrTokenInvalid
		}
		return byEmail, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, fmt.Errorf("lookup user by email: %w", err)
	}

	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = identity.Email
	}
	created, err := e.users.Create(ctx, domain.User{
		TenantID:        flowTenantID,
		Email:           identity.Email,
		Name:            name,
		Provider:        providerName,
		ProviderSubject: identity.Subject,
		Role:            domain.RoleUser,
		Status:          domain.UserActive,
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func secureRandomString(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
