package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/apperr"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
)

const batchColumns = `
	id, account_id, source, status, recording_added, recording_used, ai_added, ai_used,
	added_at, expires_at, reference, observation, amount_paid_cents, order_id
`

// scanBatch expects the column order of batchColumns.
func scanBatch(s scanner) (*credit.Batch, error) {
	var (
		b              credit.Batch
		source, status string
		expiresAt      sql.NullTime
		reference      sql.NullString
		orderID        *uuid.UUID
	)

	if err := s.Scan(
		&b.ID, &b.AccountID, &source, &status,
		&b.RecordingAdded, &b.RecordingUsed, &b.AIAdded, &b.AIUsed,
		&b.AddedAt, &expiresAt, &reference, &b.Observation, &b.AmountPaidCents, &orderID,
	); err != nil {
		return nil, err
	}

	b.Source = credit.Source(source)
	b.Status = credit.Status(status)
	b.Reference = reference.String
	b.OrderID = orderID

	if expiresAt.Valid {
		b.ExpiresAt = &expiresAt.Time
	}

	return &b, nil
}

func collectBatches(rows *sql.Rows) ([]*credit.Batch, error) {
	defer rows.Close()

	var batches []*credit.Batch

	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}

		batches = append(batches, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating batch rows: %w", err)
	}

	return batches, nil
}

// listBatches returns the account's batches in FIFO order.
func listBatches(ctx context.Context, q querier, accountID uuid.UUID, forUpdate bool) ([]*credit.Batch, error) {
	query := `SELECT ` + batchColumns + `
		FROM credit_batches
		WHERE account_id = $1
		ORDER BY added_at ASC, seq ASC` + lockClause(forUpdate)

	rows, err := q.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}

	return collectBatches(rows)
}

func (t *Tx) ListBatches(ctx context.Context, accountID uuid.UUID) ([]*credit.Batch, error) {
	return listBatches(ctx, t.tx, accountID, true)
}

func (t *Tx) GetBatch(ctx context.Context, id uuid.UUID) (*credit.Batch, error) {
	return getBatch(ctx, t.tx, id, true)
}

func getBatch(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*credit.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM credit_batches WHERE id = $1` + lockClause(forUpdate)

	b, err := scanBatch(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("batch %s: %w", id, apperr.ErrNotFound)
		}

		return nil, fmt.Errorf("getting batch: %w", err)
	}

	return b, nil
}

func (t *Tx) FindBatchesByReference(ctx context.Context, refs []string) ([]*credit.Batch, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + batchColumns + `
		FROM credit_batches
		WHERE reference = ANY($1::text[])
		ORDER BY added_at ASC, seq ASC`

	rows, err := t.tx.QueryContext(ctx, query, refs)
	if err != nil {
		return nil, fmt.Errorf("finding batches by reference: %w", err)
	}

	return collectBatches(rows)
}

func (t *Tx) CreateBatch(ctx context.Context, b *credit.Batch) error {
	query := `
		INSERT INTO credit_batches (
			account_id, source, status, recording_added, recording_used, ai_added, ai_used,
			added_at, expires_at, reference, observation, amount_paid_cents, order_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	err := t.tx.QueryRowContext(ctx, query,
		b.AccountID,
		b.Source,
		b.Status,
		b.RecordingAdded,
		b.RecordingUsed,
		b.AIAdded,
		b.AIUsed,
		b.AddedAt,
		b.ExpiresAt,
		nullString(b.Reference),
		b.Observation,
		b.AmountPaidCents,
		b.OrderID,
	).Scan(&b.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("batch reference %q: %w", b.Reference, apperr.ErrAlreadyExists)
		}

		return fmt.Errorf("creating batch: %w", err)
	}

	return nil
}

// UpdateBatch writes the mutable columns: consumption counters, status and
// observation.
func (t *Tx) UpdateBatch(ctx context.Context, b *credit.Batch) error {
	query := `
		UPDATE credit_batches
		SET recording_used = $1, ai_used = $2, status = $3, observation = $4
		WHERE id = $5
	`

	res, err := t.tx.ExecContext(ctx, query, b.RecordingUsed, b.AIUsed, b.Status, b.Observation, b.ID)
	if err != nil {
		return fmt.Errorf("updating batch: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("batch %s: %w", b.ID, apperr.ErrNotFound)
	}

	return nil
}
