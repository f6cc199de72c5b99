package tenantdb

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/base2ML/baby-raffle-platform-sub000/internal/domain"
)

type fakeTx struct {
	pgx.Tx
	execs      []string
	args       [][]any
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, sql)
	t.args = append(t.args, args)
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

type fakeConn struct {
	tx        *fakeTx
	execs     []string
	resetCtx  context.Context
	failReset bool
	released  bool
	discarded bool
}

func (c *fakeConn) Exec(ctx context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	c.execs = append(c.execs, sql)
	c.resetCtx = ctx
	if c.failReset {
		return pgconn.CommandTag{}, fmt.Errorf("connection gone")
	}
	return pgconn.CommandTag{}, nil
}

func (c *fakeConn) Begin(context.Context) (pgx.Tx, error) { return c.tx, nil }

func (c *fakeConn) Release() { c.released = true }

func (c *fakeConn) Discard(context.Context) { c.discarded = true }

func newFakeDB() (*DB, *fakeConn) {
	fc := &fakeConn{tx: &fakeTx{}}
	db := &DB{acquire: func(context.Context) (conn, error) { return fc, nil }}
	return db, fc
}

func TestWithTenantRejectsEmptyTenant(t *testing.T) {
	db := New(nil)

	err := db.WithTenant(context.Background(), "", func(pgx.Tx) error {
		t.Fatal("fn must not run without a tenant binding")
		return nil
	})
	require.ErrorIs(t, err, domain.ErrNoTenant)
}

func TestWithTenantBindsAndResets(t *testing.T) {
	db, fc := newFakeDB()

	err := db.WithTenant(context.Background(), "t1", func(pgx.Tx) error { return nil })
	require.NoError(t, err)

	// Transaction-local binding carried the tenant id.
	require.Len(t, fc.tx.execs, 1)
	require.Contains(t, fc.tx.execs[0], "set_config")
	require.Equal(t, []any{"t1"}, fc.tx.args[0])
	require.True(t, fc.tx.committed)

	// Connection-level reset ran before the pool got the connection back.
	require.Len(t, fc.execs, 1)
	require.Contains(t, fc.execs[0], `set_config('app.current_tenant_id', '', false)`)
	require.True(t, fc.released)
	require.False(t, fc.discarded)
}

func TestWithTenantResetsOnFnError(t *testing.T) {
	db, fc := newFakeDB()

	boom := fmt.Errorf("handler blew up")
	err := db.WithTenant(context.Background(), "t1", func(pgx.Tx) error { return boom })
	require.ErrorIs(t, err, boom)

	require.True(t, fc.tx.rolledBack)
	require.False(t, fc.tx.committed)
	require.Len(t, fc.execs, 1, "reset must run on the error path")
	require.True(t, fc.released)
}

func TestWithTenantResetsAfterCancellation(t *testing.T) {
	db, fc := newFakeDB()

	ctx, cancel := context.WithCancel(context.Background())
	err := db.WithTenant(ctx, "t1", func(pgx.Tx) error {
		cancel()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)

	// The reset still ran, and on a context that outlives the cancellation.
	require.Len(t, fc.execs, 1)
	require.NoError(t, fc.resetCtx.Err())
	require.True(t, fc.released)
}

func TestWithTenantDiscardsOnFailedReset(t *testing.T) {
	db, fc := newFakeDB()
	fc.failReset = true

	err := db.WithTenant(context.Background(), "t1", func(pgx.Tx) error { return nil })
	require.NoError(t, err)

	// A connection whose binding could not be cleared never goes back to
	// the pool intact.
	require.True(t, fc.discarded)
	require.True(t, fc.released)
}

func TestWithTenantAcquireFailure(t *testing.T) {
	db := &DB{acquire: func(context.Context) (conn, error) {
		return nil, fmt.Errorf("pool exhausted")
	}}

	err := db.WithTenant(context.Background(), "t1", func(pgx.Tx) error {
		t.Fatal("fn must not run without a connection")
		return nil
	})
	require.ErrorContains(t, err, "acquire connection")
}

func TestAssertTenant(t *testing.T) {
	require.NoError(t, AssertTenant("t1", "t1"))

	err := AssertTenant("t2", "t1")
	require.ErrorIs(t, err, domain.ErrIsolationBreach)

	err = AssertTenant("", "t1")
	require.ErrorIs(t, err, domain.ErrIsolationBreach)
}
