package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/apperr"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/order"
)

const orderColumns = `
	id, serial_number, account_id, speaker_id, script_text, title, style, guidance,
	audio_kind, credit_kind, status, credits_debited, credits_reversed_at,
	final_audio_url, client_notified_at, admin_cancel_reason, admin_message,
	client_response_text, client_response_audio_url, created_at, updated_at
`

// scanOrder expects the column order of orderColumns.
func scanOrder(s scanner) (*order.Order, error) {
	var (
		o                            order.Order
		audioKind, creditKind, state string
		reversedAt, notifiedAt       sql.NullTime
		finalURL, cancelReason       sql.NullString
		adminMessage                 sql.NullString
		responseText, responseAudio  sql.NullString
	)

	if err := s.Scan(
		&o.ID, &o.SerialNumber, &o.AccountID, &o.SpeakerID, &o.ScriptText, &o.Title, &o.Style, &o.Guidance,
		&audioKind, &creditKind, &state, &o.CreditsDebited, &reversedAt,
		&finalURL, &notifiedAt, &cancelReason, &adminMessage,
		&responseText, &responseAudio, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}

	o.AudioKind = order.AudioKind(audioKind)
	o.CreditKind = credit.Kind(creditKind)
	o.Status = order.Status(state)
	o.CreditsReversedAt = nullTime(reversedAt)
	o.ClientNotifiedAt = nullTime(notifiedAt)
	o.FinalAudioURL = nullStringPtr(finalURL)
	o.AdminCancelReason = nullStringPtr(cancelReason)
	o.AdminMessage = nullStringPtr(adminMessage)
	o.ClientResponseText = nullStringPtr(responseText)
	o.ClientResponseAudioURL = nullStringPtr(responseAudio)

	return &o, nil
}

func getOrder(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1` + lockClause(forUpdate)

	o, err := scanOrder(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
		}

		return nil, fmt.Errorf("getting order: %w", err)
	}

	return o, nil
}

// listOrders returns matching orders, newest first.
func listOrders(ctx context.Context, q querier, filter order.ListFilter) ([]*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1 = 1`

	var args []any

	argIdx := 1

	if filter.AccountID != nil {
		query += fmt.Sprintf(" AND account_id = $%d", argIdx)

		args = append(args, *filter.AccountID)
		argIdx++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)

		args = append(args, *filter.Status)
	}

	query += " ORDER BY serial_number DESC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var orders []*order.Order

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}

		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order rows: %w", err)
	}

	return orders, nil
}

func (t *Tx) GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return getOrder(ctx, t.tx, id, true)
}

func (t *Tx) CreateOrder(ctx context.Context, o *order.Order) error {
	query := `
		INSERT INTO orders (
			account_id, speaker_id, script_text, title, style, guidance,
			audio_kind, credit_kind, status, credits_debited, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING id, serial_number
	`

	err := t.tx.QueryRowContext(ctx, query,
		o.AccountID,
		o.SpeakerID,
		o.ScriptText,
		o.Title,
		o.Style,
		o.Guidance,
		o.AudioKind,
		o.CreditKind,
		o.Status,
		o.CreditsDebited,
		o.CreatedAt,
	).Scan(&o.ID, &o.SerialNumber)
	if err != nil {
		return fmt.Errorf("creating order: %w", err)
	}

	return nil
}

// UpdateOrder is a compare-and-swap on status. Zero affected rows means the
// order moved on or is gone.
func (t *Tx) UpdateOrder(ctx context.Context, o *order.Order, expected order.Status) error {
	query := `
		UPDATE orders
		SET status = $1, credits_reversed_at = $2, final_audio_url = $3, client_notified_at = $4,
			admin_cancel_reason = $5, admin_message = $6, client_response_text = $7,
			client_response_audio_url = $8, updated_at = $9
		WHERE id = $10 AND status = $11
	`

	res, err := t.tx.ExecContext(ctx, query,
		o.Status,
		o.CreditsReversedAt,
		o.FinalAudioURL,
		o.ClientNotifiedAt,
		o.AdminCancelReason,
		o.AdminMessage,
		o.ClientResponseText,
		o.ClientResponseAudioURL,
		o.UpdatedAt,
		o.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("updating order: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating order: %w", err)
	}

	if n > 0 {
		return nil
	}

	var current order.Status
	if err := t.tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, o.ID).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("order %s: %w", o.ID, apperr.ErrNotFound)
		}

		return fmt.Errorf("reading order status: %w", err)
	}

	return fmt.Errorf("%w: order is %s, expected %s", apperr.ErrStaleState, current, expected)
}

// DeleteOrder removes the order; revisions and versions go with it through
// ON DELETE CASCADE.
func (t *Tx) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting order: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}

	return nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}

	return &t.Time
}

func nullStringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}

	return &s.String
}
