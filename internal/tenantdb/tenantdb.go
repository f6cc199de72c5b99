package tenantdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/base2ML/baby-raffle-platform-sub000/internal/domain"
)

// tenantGUC is the session setting read by the row-level security policies
// (see internal/database/migrations/0002_rls.sql).
const tenantGUC = "app.current_tenant_id"

// conn is the slice of a pooled connection WithTenant needs: run statements,
// open a transaction, and either return to the pool or be thrown away.
type conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Release()
	// Discard closes the underlying connection instead of returning it to
	// the pool. Used when the tenant binding could not be reset.
	Discard(ctx context.Context)
}

type poolConn struct {
	*pgxpool.Conn
}

func (c poolConn) Discard(ctx context.Context) {
	c.Conn.Conn().Close(ctx)
}

// DB hands out tenant-scoped database access. Business handlers never see a
// raw pool; every query they issue runs inside WithTenant, where the storage
// engine itself filters rows by the bound tenant id. An unset binding denies
// rows rather than returning all of them (the RLS policies treat the empty
// setting as no tenant).
type DB struct {
	acquire func(ctx context.Context) (conn, error)
}

func New(pool *pgxpool.Pool) *DB {
	return &DB{acquire: func(ctx context.Context) (conn, error) {
		c, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return poolConn{c}, nil
	}}
}

// WithTenant binds tenantID to one pooled connection for the duration of fn
// and runs fn inside a transaction. The binding is transaction-local
// (set_config with is_local=true), so it cannot outlive the transaction even
// if fn panics; the connection-level setting is additionally cleared before
// the connection returns to the pool on every exit path, so the next
// checkout starts from a deny-all context.
func (d *DB) WithTenant(ctx context.Context, tenantID string, fn func(tx pgx.Tx) error) error {
	if tenantID == "" {
		return domain.ErrNoTenant
	}

	c, err := d.acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() {
		// Reset must run even when ctx is already canceled.
		resetCtx := context.WithoutCancel(ctx)
		if _, err := c.Exec(resetCtx, `SELECT set_config('`+tenantGUC+`', '', false)`); err != nil {
			zap.L().Error("failed to reset tenant binding, discarding connection", zap.Error(err))
			c.Discard(resetCtx)
		}
		c.Release()
	}()

	tx, err := c.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			zap.L().Warn("rollback failed", zap.Error(err))
		}
	}()

	if _, err := tx.Exec(ctx, `SELECT set_config('`+tenantGUC+`', $1, true)`, tenantID); err != nil {
		return fmt.Errorf("bind tenant: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AssertTenant is the defense-in-depth check applied to rows after they come
// back from the storage layer. RLS misconfiguration is a single point of
// failure; a row carrying the wrong tenant id means queries are leaking
// across tenants and the request must die with a server error.
func AssertTenant(rowTenantID, want string) error {
	if rowTenantID == want {
		return nil
	}
	zap.L().Error("row escaped tenant scoping",
		zap.String("row_tenant_id", rowTenantID),
		zap.String("bound_tenant_id", want),
	)
	return fmt.Errorf("%w: row belongs to %s, bound tenant is %s", domain.ErrIsolationBreach, rowTenantID, want)
}
