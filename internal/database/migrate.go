package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the four ledger/lifecycle tables. Statements are idempotent so
// Migrate can run on every start.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE TABLE IF NOT EXISTS credit_batches (
		seq BIGSERIAL UNIQUE,
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		account_id UUID NOT NULL,
		source TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		recording_added BIGINT NOT NULL DEFAULT 0 CHECK (recording_added >= 0),
		recording_used BIGINT NOT NULL DEFAULT 0 CHECK (recording_used >= 0),
		ai_added BIGINT NOT NULL DEFAULT 0 CHECK (ai_added >= 0),
		ai_used BIGINT NOT NULL DEFAULT 0 CHECK (ai_used >= 0),
		added_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NULL,
		reference TEXT NULL,
		observation TEXT NOT NULL DEFAULT '',
		amount_paid_cents BIGINT NOT NULL DEFAULT 0,
		order_id UUID NULL,
		CONSTRAINT credit_batches_used_within_added CHECK (
			source = 'overdraft' OR (recording_used <= recording_added AND ai_used <= ai_added)
		)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_credit_batches_reference
		ON credit_batches(reference) WHERE reference IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_credit_batches_account
		ON credit_batches(account_id, added_at, seq)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		serial_number BIGSERIAL UNIQUE,
		account_id UUID NOT NULL,
		speaker_id UUID NOT NULL,
		script_text TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		style TEXT NOT NULL DEFAULT '',
		guidance TEXT NOT NULL DEFAULT '',
		audio_kind TEXT NOT NULL,
		credit_kind TEXT NOT NULL,
		status TEXT NOT NULL,
		credits_debited BIGINT NOT NULL CHECK (credits_debited > 0),
		credits_reversed_at TIMESTAMPTZ NULL,
		final_audio_url TEXT NULL,
		client_notified_at TIMESTAMPTZ NULL,
		admin_cancel_reason TEXT NULL,
		admin_message TEXT NULL,
		client_response_text TEXT NULL,
		client_response_audio_url TEXT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_account ON orders(account_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
	`CREATE TABLE IF NOT EXISTS revision_requests (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		account_id UUID NOT NULL,
		status TEXT NOT NULL,
		client_description TEXT NOT NULL,
		guidance_audio_url TEXT NULL,
		admin_feedback TEXT NULL,
		client_response_text TEXT NULL,
		client_response_audio_url TEXT NULL,
		client_responded_at TIMESTAMPTZ NULL,
		requested_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_revision_requests_one_open
		ON revision_requests(order_id) WHERE status NOT IN ('denied', 'finalized')`,
	`CREATE TABLE IF NOT EXISTS audio_versions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		revision_id UUID NOT NULL REFERENCES revision_requests(id) ON DELETE CASCADE,
		order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		version_number INT NOT NULL,
		audio_url TEXT NOT NULL,
		admin_comment TEXT NOT NULL DEFAULT '',
		sent_at TIMESTAMPTZ NOT NULL,
		UNIQUE (order_id, version_number)
	)`,
}

// Migrate applies the schema. It is safe to call on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema statement %d: %w", i, err)
		}
	}

	return nil
}
