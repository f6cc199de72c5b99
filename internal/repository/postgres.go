package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/base2ML/baby-raffle-platform-sub000/internal/domain"
)

// Compile-time interface assertions.
var (
	_ TenantRepository = (*PostgresTenantRepo)(nil)
	_ UserRepository   = (*PostgresUserRepo)(nil)
)

// PostgresTenantRepo implements TenantRepository on pgx.
type PostgresTenantRepo struct {
	db *pgxpool.Pool
}

func NewPostgresTenantRepo(pool *pgxpool.Pool) *PostgresTenantRepo {
	return &PostgresTenantRepo{db: pool}
}

const selectTenantSQL = `SELECT id, subdomain, name, status, plan, created_at, updated_at FROM tenants`

func (r *PostgresTenantRepo) GetBySubdomain(ctx context.Context, subdomain string) (domain.Tenant, error) {
	var t domain.Tenant
	row := r.db.QueryRow(ctx, selectTenantSQL+` WHERE subdomain = $1`, strings.ToLower(subdomain))
	if err := row.Scan(&t.ID, &t.Subdomain, &t.Name, &t.Status, &t.Plan, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return domain.Tenant{}, fmt.Errorf("get tenant by subdomain: %w", err)
	}
	return t, nil
}

func (r *PostgresTenantRepo) GetByID(ctx context.Context, tenantID string) (domain.Tenant, error) {
	var t domain.Tenant
	row := r.db.QueryRow(ctx, selectTenantSQL+` WHERE id = $1`, tenantID)
	if err := row.Scan(&t.ID, &t.Subdomain, &t.Name, &t.Status, &t.Plan, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return domain.Tenant{}, fmt.Errorf("get tenant by id: %w", err)
	}
	return t, nil
}

const insertTenantSQL = `INSERT INTO tenants (id, subdomain, name, status, plan)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, subdomain, name, status, plan, created_at, updated_at`

func (r *PostgresTenantRepo) Create(ctx context.Context, tenant domain.Tenant) (domain.Tenant, error) {
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}
	if tenant.Status == "" {
		tenant.Status = domain.TenantTrial
	}
	if tenant.Plan == "" {
		tenant.Plan = domain.PlanFree
	}

	var created domain.Tenant
	row := r.db.QueryRow(ctx, insertTenantSQL,
		tenant.ID,
		strings.ToLower(tenant.Subdomain),
		tenant.Name,
		tenant.Status,
		tenant.Plan,
	)
	if err := row.Scan(&created.ID, &created.Subdomain, &created.Name, &created.Status, &created.Plan, &created.CreatedAt, &created.UpdatedAt); err != nil {
		return domain.Tenant{}, fmt.Errorf("create tenant: %w", err)
	}
	return created, nil
}

func (r *PostgresTenantRepo) UpdateStatus(ctx context.Context, tenantID string, status domain.TenantStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE tenants SET status = $2, updated_at = now() WHERE id = $1`,
		tenantID, status,
	)
	if err != nil {
		return fmt.Errorf("update tenant status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update tenant status: tenant %s not found", tenantID)
	}
	return nil
}

// PostgresUserRepo implements UserRepository on pgx.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const selectUserSQL = `SELECT id, tenant_id, email, name, oauth_provider, oauth_subject, role, status, token_version, created_at, updated_at FROM users`

func (r *PostgresUserRepo) GetByID(ctx context.Context, tenantID, userID string) (domain.User, error) {
	row := r.db.QueryRow(ctx, selectUserSQL+` WHERE tenant_id = $1 AND id = $2`, tenantID, userID)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, tenantID, email string) (domain.User, error) {
	row := r.db.QueryRow(ctx, selectUserSQL+` WHERE tenant_id = $1 AND email = $2`, tenantID, strings.ToLower(email))
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepo) GetByProviderSubject(ctx context.Context, provider, subject string) (domain.User, error) {
	row := r.db.QueryRow(ctx, selectUserSQL+` WHERE oauth_provider = $1 AND oauth_subject = $2`, provider, subject)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by provider subject: %w", err)
	}
	return u, nil
}

const insertUserSQL = `INSERT INTO users (id, tenant_id, email, name, oauth_provider, oauth_subject, role, status, token_version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
RETURNING id, tenant_id, email, name, oauth_provider, oauth_subject, role, status, token_version, created_at, updated_at`

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	if user.Status == "" {
		user.Status = domain.UserActive
	}

	row := r.db.QueryRow(ctx, insertUserSQL,
		user.ID,
		user.TenantID,
		strings.ToLower(user.Email),
		user.Name,
		user.Provider,
		user.ProviderSubject,
		user.Role,
		user.Status,
	)
	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *PostgresUserRepo) BumpTokenVersion(ctx context.Context, tenantID, userID string) (int64, error) {
	var version int64
	row := r.db.QueryRow(ctx,
		`UPDATE users SET token_version = token_version + 1, updated_at = now()
		 WHERE tenant_id = $1 AND id = $2
		 RETURNING token_version`,
		tenantID, userID,
	)
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("bump token version: %w", err)
	}
	return version, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.TenantID,
		&u.Email,
		&u.Name,
		&u.Provider,
		&u.ProviderSubject,
		&u.Role,
		&u.Status,
		&u.TokenVersion,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}
