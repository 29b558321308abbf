package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	execs      []string
	committed  bool
	rolledBack bool
	failOn     string
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, sql)
	if t.failOn != "" && strings.Contains(sql, t.failOn) {
		return pgconn.CommandTag{}, errors.New("boom")
	}
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeBeginner struct {
	tx   *fakeTx
	opts pgx.TxOptions
}

func (b *fakeBeginner) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	b.opts = opts
	return b.tx, nil
}

func TestEnsureSchemaLocksThenApplies(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	require.NoError(t, EnsureSchema(context.Background(), b))

	require.Equal(t, pgx.ReadCommitted, b.opts.IsoLevel)
	require.Len(t, b.tx.execs, 2)
	require.Contains(t, b.tx.execs[0], "pg_advisory_xact_lock")
	require.Contains(t, b.tx.execs[1], "CREATE TABLE IF NOT EXISTS guard_audit_logs")
	require.Contains(t, b.tx.execs[1], "CREATE TABLE IF NOT EXISTS gateway_sessions")
	require.True(t, b.tx.committed)
}

func TestEnsureSchemaRollsBackOnFailure(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{failOn: "CREATE TABLE"}}
	err := EnsureSchema(context.Background(), b)
	require.ErrorContains(t, err, "apply schema")
	require.False(t, b.tx.committed)
	require.True(t, b.tx.rolledBack)
}

func TestNewRejectsBadDSN(t *testing.T) {
	_, err := New(context.Background(), "postgres://%zz", Options{})
	require.ErrorContains(t, err, "parse config")
}
