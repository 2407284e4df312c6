package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/order"
)

// eligibleBatch is the SQL form of credit.Batch.Eligible.
const eligibleBatch = `status = 'active' AND (expires_at IS NULL OR expires_at > $1)`

func (s *Store) OutstandingBalances(ctx context.Context, now time.Time) (map[uuid.UUID]credit.Balance, error) {
	query := `
		SELECT account_id,
			COALESCE(SUM(recording_added - recording_used), 0),
			COALESCE(SUM(ai_added - ai_used), 0)
		FROM credit_batches
		WHERE ` + eligibleBatch + `
		GROUP BY account_id`

	rows, err := s.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("summing balances: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]credit.Balance)

	for rows.Next() {
		var (
			id  uuid.UUID
			bal credit.Balance
		)

		if err := rows.Scan(&id, &bal.Recording, &bal.AI); err != nil {
			return nil, fmt.Errorf("scanning balance: %w", err)
		}

		out[id] = bal
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating balance rows: %w", err)
	}

	return out, nil
}

func (s *Store) CountOrdersByStatus(ctx context.Context) (map[order.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting orders: %w", err)
	}
	defer rows.Close()

	out := make(map[order.Status]int)

	for rows.Next() {
		var (
			st string
			n  int
		)

		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("scanning order count: %w", err)
		}

		out[order.Status(st)] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order counts: %w", err)
	}

	return out, nil
}

func (s *Store) CountOpenRevisions(ctx context.Context) (int, error) {
	var n int

	query := `SELECT COUNT(*) FROM revision_requests WHERE ` + openRevisionFilter
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting open revisions: %w", err)
	}

	return n, nil
}
