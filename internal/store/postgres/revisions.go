package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/apperr"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/revision"
)

const revisionColumns = `
	id, order_id, account_id, status, client_description, guidance_audio_url, admin_feedback,
	client_response_text, client_response_audio_url, client_responded_at,
	requested_at, completed_at, updated_at
`

// openRevisionFilter matches non-terminal requests. It must agree with
// idx_revision_requests_one_open.
const openRevisionFilter = `status NOT IN ('denied', 'finalized')`

func scanRevision(s scanner) (*revision.Request, error) {
	var (
		r                           revision.Request
		state                       string
		guidance, feedback          sql.NullString
		responseText, responseAudio sql.NullString
		respondedAt, completedAt    sql.NullTime
	)

	if err := s.Scan(
		&r.ID, &r.OrderID, &r.AccountID, &state, &r.ClientDescription, &guidance, &feedback,
		&responseText, &responseAudio, &respondedAt,
		&r.RequestedAt, &completedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}

	r.Status = revision.Status(state)
	r.GuidanceAudioURL = nullStringPtr(guidance)
	r.AdminFeedback = nullStringPtr(feedback)
	r.ClientResponseText = nullStringPtr(responseText)
	r.ClientResponseAudioURL = nullStringPtr(responseAudio)
	r.ClientRespondedAt = nullTime(respondedAt)
	r.CompletedAt = nullTime(completedAt)

	return &r, nil
}

func getRevision(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*revision.Request, error) {
	query := `SELECT ` + revisionColumns + ` FROM revision_requests WHERE id = $1` + lockClause(forUpdate)

	r, err := scanRevision(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("revision %s: %w", id, apperr.ErrNotFound)
		}

		return nil, fmt.Errorf("getting revision: %w", err)
	}

	return r, nil
}

// listRevisions returns the order's requests oldest first with their versions.
func listRevisions(ctx context.Context, q querier, orderID uuid.UUID) ([]*revision.Request, error) {
	query := `SELECT ` + revisionColumns + `
		FROM revision_requests
		WHERE order_id = $1
		ORDER BY requested_at ASC, id ASC`

	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing revisions: %w", err)
	}
	defer rows.Close()

	var (
		revs []*revision.Request
		ids  []uuid.UUID
	)

	for rows.Next() {
		r, err := scanRevision(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning revision: %w", err)
		}

		revs = append(revs, r)
		ids = append(ids, r.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating revision rows: %w", err)
	}

	versions, err := listVersions(ctx, q, ids)
	if err != nil {
		return nil, err
	}

	byRevision := make(map[uuid.UUID][]*revision.AudioVersion, len(revs))
	for _, v := range versions {
		byRevision[v.RevisionID] = append(byRevision[v.RevisionID], v)
	}

	for _, r := range revs {
		r.Versions = byRevision[r.ID]
	}

	return revs, nil
}

func listVersions(ctx context.Context, q querier, revisionIDs []uuid.UUID) ([]*revision.AudioVersion, error) {
	if len(revisionIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, revision_id, order_id, version_number, audio_url, admin_comment, sent_at
		FROM audio_versions
		WHERE revision_id = ANY($1::uuid[])
		ORDER BY version_number ASC`

	ids := make([]string, len(revisionIDs))
	for i, id := range revisionIDs {
		ids[i] = id.String()
	}

	rows, err := q.QueryContext(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("listing audio versions: %w", err)
	}
	defer rows.Close()

	var versions []*revision.AudioVersion

	for rows.Next() {
		var v revision.AudioVersion
		if err := rows.Scan(&v.ID, &v.RevisionID, &v.OrderID, &v.VersionNumber, &v.AudioURL, &v.AdminComment, &v.SentAt); err != nil {
			return nil, fmt.Errorf("scanning audio version: %w", err)
		}

		versions = append(versions, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audio version rows: %w", err)
	}

	return versions, nil
}

func (t *Tx) GetRevision(ctx context.Context, id uuid.UUID) (*revision.Request, error) {
	return getRevision(ctx, t.tx, id, true)
}

func (t *Tx) OpenRevision(ctx context.Context, orderID uuid.UUID) (*revision.Request, error) {
	query := `SELECT ` + revisionColumns + `
		FROM revision_requests
		WHERE order_id = $1 AND ` + openRevisionFilter + `
		FOR UPDATE`

	r, err := scanRevision(t.tx.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("open revision for order %s: %w", orderID, apperr.ErrNotFound)
		}

		return nil, fmt.Errorf("getting open revision: %w", err)
	}

	return r, nil
}

func (t *Tx) CreateRevision(ctx context.Context, r *revision.Request) error {
	query := `
		INSERT INTO revision_requests (
			order_id, account_id, status, client_description, guidance_audio_url,
			requested_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := t.tx.QueryRowContext(ctx, query,
		r.OrderID,
		r.AccountID,
		r.Status,
		r.ClientDescription,
		r.GuidanceAudioURL,
		r.RequestedAt,
		r.UpdatedAt,
	).Scan(&r.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("order %s: %w", r.OrderID, apperr.ErrRevisionAlreadyPending)
		}

		return fmt.Errorf("creating revision: %w", err)
	}

	return nil
}

// UpdateRevision is a compare-and-swap on status, like UpdateOrder.
func (t *Tx) UpdateRevision(ctx context.Context, r *revision.Request, expected revision.Status) error {
	query := `
		UPDATE revision_requests
		SET status = $1, admin_feedback = $2, client_response_text = $3,
			client_response_audio_url = $4, client_responded_at = $5,
			completed_at = $6, updated_at = $7
		WHERE id = $8 AND status = $9
	`

	res, err := t.tx.ExecContext(ctx, query,
		r.Status,
		r.AdminFeedback,
		r.ClientResponseText,
		r.ClientResponseAudioURL,
		r.ClientRespondedAt,
		r.CompletedAt,
		r.UpdatedAt,
		r.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("updating revision: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating revision: %w", err)
	}

	if n > 0 {
		return nil
	}

	if _, err := getRevision(ctx, t.tx, r.ID, false); err != nil {
		return err
	}

	return fmt.Errorf("%w: revision %s is no longer %s", apperr.ErrStaleState, r.ID, expected)
}

func (t *Tx) MaxVersionNumber(ctx context.Context, orderID uuid.UUID) (int, error) {
	var highest int

	query := `SELECT COALESCE(MAX(version_number), 0) FROM audio_versions WHERE order_id = $1`
	if err := t.tx.QueryRowContext(ctx, query, orderID).Scan(&highest); err != nil {
		return 0, fmt.Errorf("reading max version number: %w", err)
	}

	return highest, nil
}

func (t *Tx) CreateVersion(ctx context.Context, v *revision.AudioVersion) error {
	query := `
		INSERT INTO audio_versions (revision_id, order_id, version_number, audio_url, admin_comment, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := t.tx.QueryRowContext(ctx, query,
		v.RevisionID,
		v.OrderID,
		v.VersionNumber,
		v.AudioURL,
		v.AdminComment,
		v.SentAt,
	).Scan(&v.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("version %d of order %s: %w", v.VersionNumber, v.OrderID, apperr.ErrAlreadyExists)
		}

		return fmt.Errorf("creating audio version: %w", err)
	}

	return nil
}
