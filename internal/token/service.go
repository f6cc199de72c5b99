package token

import (
	"context"
	"fmt"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/base2ML/baby-raffle-platform-sub000/internal/domain"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/repository"
)

// Identity is the verified (user, tenant) pair carried by a session token.
type Identity struct {
	UserID   string
	TenantID string
	Tenant   domain.Tenant
	Role     domain.Role
}

type sessionClaims struct {
	TenantID     string `json:"tenant_id"`
	TokenVersion int64  `json:"token_version"`
}

// Service issues and verifies signed, stateless session tokens binding a user
// to exactly one tenant. Revocation works without a blacklist: tokens embed
// the user's token version, and a bumped version rejects everything issued
// before the bump.
type Service struct {
	signer    jose.Signer
	secret    []byte
	ttl       time.Duration
	directory TenantStatusResolver
	users     repository.UserRepository
	now       func() time.Time
}

// TenantStatusResolver is the directory dependency used for live status
// checks during verification.
type TenantStatusResolver interface {
	ResolveByID(ctx context.Context, tenantID string) (domain.Tenant, error)
}

// NewService creates a token service signing with HS256.
func NewService(secret []byte, ttl time.Duration, directory TenantStatusResolver, users repository.UserRepository) (*Service, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: secret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}
	return &Service{
		signer:    signer,
		secret:    secret,
		ttl:       ttl,
		directory: directory,
		users:     users,
		now:       time.Now,
	}, nil
}

// Issue signs a time-boxed session token for the user, copying the user's
// current token version into the claims.
func (s *Service) Issue(ctx context.Context, user domain.User) (string, error) {
	now := s.now().UTC()
	std := jwt.Claims{
		Subject:  user.ID,
		ID:       uuid.NewString(),
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(s.ttl)),
	}
	custom := sessionClaims{
		TenantID:     user.TenantID,
		TokenVersion: user.TokenVersion,
	}

	raw, err := jwt.Signed(s.signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return raw, nil
}

// Verify checks signature and expiry, then the live tenant status and the
// user's current token version. Signature, expiry, and stale-version failures
// all return domain.ErrTokenInvalid so callers cannot tell which check
// failed; a suspended tenant returns domain.ErrTenantSuspended so clients can
// distinguish "log in again" from "contact support".
func (s *Service) Verify(ctx context.Context, raw string) (Identity, error) {
	parsed, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return Identity{}, domain.ErrTokenInvalid
	}

	var std jwt.Claims
	var custom sessionClaims
	if err := parsed.Claims(s.secret, &std, &custom); err != nil {
		return Identity{}, domain.ErrTokenInvalid
	}
	if err := std.Validate(jwt.Expected{Time: s.now()}); err != nil {
		return Identity{}, domain.ErrTokenInvalid
	}
	if std.Subject == "" || custom.TenantID == "" {
		return Identity{}, domain.ErrTokenInvalid
	}

	// Live status check; a token whose tenant no longer resolves is invalid,
	// not tenant-less.
	t, err := s.directory.ResolveByID(ctx, custom.TenantID)
	if err != nil {
		return Identity{}, domain.ErrTokenInvalid
	}
	if !t.Status.Servable() {
		return Identity{}, domain.ErrTenantSuspended
	}

	user, err := s.users.GetByID(ctx, custom.TenantID, std.Subject)
	if err != nil {
		zap.L().Debug("token verify: user lookup failed",
			zap.String("tenant_id", custom.TenantID),
			zap.Error(err),
		)
		return Identity{}, domain.ErrTokenInvalid
	}
	if user.Status != domain.UserActive {
		return Identity{}, domain.ErrTokenInvalid
	}
	if user.TokenVersion != custom.TokenVersion {
		return Identity{}, domain.ErrTokenInvalid
	}

	return Identity{
		UserID:   user.ID,
		TenantID: t.ID,
		Tenant:   t,
		Role:     user.Role,
	}, nil
}
