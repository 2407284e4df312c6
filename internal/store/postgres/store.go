// Package postgres implements the ledger, order and revision repositories on
// PostgreSQL. Ledger writes for an account are serialized with a transaction
// scoped advisory lock; order and revision status writes are compare-and-swap
// updates guarded by the expected status.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/order"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/revision"
)

const uniqueViolation = "23505"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Credits() credit.Repository { return creditRepo{s} }
func (s *Store) Orders() order.Repository { return orderRepo{s} }
func (s *Store) Revisions() revision.Repository { return revisionRepo{s} }

func (s *Store) begin(ctx context.Context) (*Tx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	return &Tx{tx: dbTx}, nil
}

// Tx satisfies credit.Tx, order.Tx and revision.Tx. Row reads inside it take
// FOR UPDATE locks.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback is safe to call after Commit.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}

	return nil
}

// LockAccount takes the account's advisory lock until the transaction ends.
func (t *Tx) LockAccount(ctx context.Context, accountID uuid.UUID) error {
	if _, err := t.tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", accountLockKey(accountID)); err != nil {
		return fmt.Errorf("acquiring account lock: %w", err)
	}

	return nil
}

func accountLockKey(accountID uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write([]byte("credit_batches"))
	h.Write([]byte{0})
	h.Write(accountID[:])

	return int64(h.Sum64())
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func lockClause(forUpdate bool) string {
	if forUpdate {
		return " FOR UPDATE"
	}

	return ""
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type creditRepo struct{ s *Store }

func (r creditRepo) Begin(ctx context.Context) (credit.Tx, error) { return r.s.begin(ctx) }

func (r creditRepo) GetBatch(ctx context.Context, id uuid.UUID) (*credit.Batch, error) {
	return getBatch(ctx, r.s.db, id, false)
}

func (r creditRepo) ListBatches(ctx context.Context, accountID uuid.UUID) ([]*credit.Batch, error) {
	return listBatches(ctx, r.s.db, accountID, false)
}

type orderRepo struct{ s *Store }

func (r orderRepo) Begin(ctx context.Context) (order.Tx, error) { return r.s.begin(ctx) }

func (r orderRepo) GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return getOrder(ctx, r.s.db, id, false)
}

func (r orderRepo) ListOrders(ctx context.Context, filter order.ListFilter) ([]*order.Order, error) {
	return listOrders(ctx, r.s.db, filter)
}

type revisionRepo struct{ s *Store }

func (r revisionRepo) Begin(ctx context.Context) (revision.Tx, error) { return r.s.begin(ctx) }

func (r revisionRepo) GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return getOrder(ctx, r.s.db, id, false)
}

func (r revisionRepo) GetRevision(ctx context.Context, id uuid.UUID) (*revision.Request, error) {
	rev, err := getRevision(ctx, r.s.db, id, false)
	if err != nil {
		return nil, err
	}

	rev.Versions, err = listVersions(ctx, r.s.db, []uuid.UUID{rev.ID})
	if err != nil {
		return nil, err
	}

	return rev, nil
}

func (r revisionRepo) ListRevisions(ctx context.Context, orderID uuid.UUID) ([]*revision.Request, error) {
	return listRevisions(ctx, r.s.db, orderID)
}
