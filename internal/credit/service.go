package credit

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/apperr"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/events"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=credit

// Batches is the transactional view of an account's credit batches.
// ListBatches must return batches in FIFO order: addedAt, then insertion order.
type Batches interface {
	// LockAccount serializes ledger writes for the account until the
	// surrounding transaction ends.
	LockAccount(ctx context.Context, accountID uuid.UUID) error
	ListBatches(ctx context.Context, accountID uuid.UUID) ([]*Batch, error)
	CreateBatch(ctx context.Context, b *Batch) error
	UpdateBatch(ctx context.Context, b *Batch) error
}

type Tx interface {
	Batches
	GetBatch(ctx context.Context, id uuid.UUID) (*Batch, error)
	FindBatchesByReference(ctx context.Context, refs []string) ([]*Batch, error)
	Commit() error
	Rollback() error
}

type Repository interface {
	Begin(ctx context.Context) (Tx, error)
	// GetBatch reads a committed batch without locking it.
	GetBatch(ctx context.Context, id uuid.UUID) (*Batch, error)
	ListBatches(ctx context.Context, accountID uuid.UUID) ([]*Batch, error)
}

type Service struct {
	repo            Repository
	ledger          *Ledger
	events          events.Publisher
	now             func() time.Time
	defaultValidity time.Duration
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithDefaultValidity sets the expiry window for grants that carry none.
func WithDefaultValidity(d time.Duration) Option {
	return func(s *Service) { s.defaultValidity = d }
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		events: events.Nop{},
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.ledger = NewLedger(s.now)

	return s
}

// Ledger exposes the transactional ledger so other components can move credits
// inside their own transactions.
func (s *Service) Ledger() *Ledger {
	return s.ledger
}

// Balance recomputes the account balance from its batches on every call.
func (s *Service) Balance(ctx context.Context, accountID uuid.UUID) (Balance, error) {
	batches, err := s.repo.ListBatches(ctx, accountID)
	if err != nil {
		return Balance{}, fmt.Errorf("listing batches: %w", err)
	}

	return Compute(batches, s.now()), nil
}

// History returns the account's audit trail in FIFO order.
func (s *Service) History(ctx context.Context, accountID uuid.UUID) ([]Entry, error) {
	batches, err := s.repo.ListBatches(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}

	now := s.now()
	entries := make([]Entry, len(batches))

	for i, b := range batches {
		entries[i] = entryFor(b, now)
	}

	return entries, nil
}

func (s *Service) Debit(ctx context.Context, accountID uuid.UUID, kind Kind, amount int64) error {
	err := s.inTx(ctx, func(tx Tx) error {
		return s.ledger.Debit(ctx, tx, accountID, kind, amount)
	})
	if err != nil {
		return err
	}

	s.changed(ctx, accountID)

	return nil
}

func (s *Service) Reverse(ctx context.Context, p ReverseParams) (*Batch, error) {
	var batch *Batch

	err := s.inTx(ctx, func(tx Tx) error {
		var err error
		batch, err = s.ledger.Reverse(ctx, tx, p)

		return err
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, p.AccountID)

	return batch, nil
}

// AdminAdjust applies an administrative correction. Negative deltas may take
// the balance below zero.
func (s *Service) AdminAdjust(ctx context.Context, p AdjustParams) ([]*Batch, error) {
	var created []*Batch

	err := s.inTx(ctx, func(tx Tx) error {
		var err error
		created, err = s.ledger.Adjust(ctx, tx, p)

		return err
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "credits adjusted",
		"account_id", p.AccountID,
		"recording_delta", p.RecordingDelta,
		"ai_delta", p.AIDelta,
		"observation", p.Observation,
	)

	s.changed(ctx, p.AccountID)

	return created, nil
}

// Grant records an approved purchase. A reference that was already granted
// fails with ErrAlreadyExists, so replaying a gateway approval is harmless.
func (s *Service) Grant(ctx context.Context, p GrantParams) (*Batch, error) {
	var batch *Batch

	err := s.inTx(ctx, func(tx Tx) error {
		if ref := strings.TrimSpace(p.Reference); ref != "" {
			existing, err := tx.FindBatchesByReference(ctx, []string{ref})
			if err != nil {
				return fmt.Errorf("finding reference: %w", err)
			}

			if len(existing) > 0 {
				return fmt.Errorf("%w: payment reference %q", apperr.ErrAlreadyExists, ref)
			}
		}

		var err error
		batch, err = s.ledger.Grant(ctx, tx, s.withDefaults(p))

		return err
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, p.AccountID)

	return batch, nil
}

type ImportResult struct {
	Granted   []*Batch
	New       []GrantParams
	Conflicts []Conflict
}

// Conflict is an incoming grant whose payment reference already has a batch.
type Conflict struct {
	Incoming GrantParams
	Existing *Batch
}

// ImportGrants creates batches for a set of approved purchases in one
// transaction. When any reference was already granted nothing is written and
// the result lists the conflicts next to the grants that would be new.
func (s *Service) ImportGrants(ctx context.Context, params []GrantParams) (*ImportResult, error) {
	if len(params) == 0 {
		return &ImportResult{}, nil
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	existing, err := tx.FindBatchesByReference(ctx, references(params))
	if err != nil {
		return nil, fmt.Errorf("find references: %w", err)
	}

	lookup := make(map[string]*Batch, len(existing))
	for _, b := range existing {
		lookup[b.Reference] = b
	}

	var (
		newParams []GrantParams
		conflicts []Conflict
	)

	for _, p := range params {
		if found, ok := lookup[strings.TrimSpace(p.Reference)]; ok {
			conflicts = append(conflicts, Conflict{Incoming: p, Existing: found})
			continue
		}

		newParams = append(newParams, p)
	}

	if len(conflicts) > 0 {
		return &ImportResult{New: newParams, Conflicts: conflicts}, nil
	}

	granted, err := s.grantAll(ctx, tx, newParams)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}

	s.changedAll(ctx, granted)

	return &ImportResult{Granted: granted}, nil
}

// CreateGrants writes grants without conflict detection. It backs the confirm
// step after an import reported conflicts.
func (s *Service) CreateGrants(ctx context.Context, params []GrantParams) ([]*Batch, error) {
	if len(params) == 0 {
		return nil, nil
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	granted, err := s.grantAll(ctx, tx, params)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}

	s.changedAll(ctx, granted)

	return granted, nil
}

// VoidBatch takes a batch out of the balance for good. Whatever it still held
// is forfeited.
func (s *Service) VoidBatch(ctx context.Context, batchID uuid.UUID, observation string) (*Batch, error) {
	observation = strings.TrimSpace(observation)
	if observation == "" {
		return nil, apperr.Missing("observation")
	}

	// The account lock is taken before the batch row, as every debit does.
	current, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	var batch *Batch

	err = s.inTx(ctx, func(tx Tx) error {
		if err := tx.LockAccount(ctx, current.AccountID); err != nil {
			return fmt.Errorf("locking account: %w", err)
		}

		b, err := tx.GetBatch(ctx, batchID)
		if err != nil {
			return err
		}

		if b.Status == StatusVoid {
			batch = b
			return nil
		}

		b.Status = StatusVoid
		b.Observation = strings.TrimSpace(b.Observation + "\n" + observation)

		if err := tx.UpdateBatch(ctx, b); err != nil {
			return fmt.Errorf("voiding batch: %w", err)
		}

		batch = b

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, batch.AccountID)

	return batch, nil
}

func (s *Service) grantAll(ctx context.Context, tx Tx, params []GrantParams) ([]*Batch, error) {
	// Lock every account up front in a fixed order so concurrent imports
	// touching the same accounts cannot deadlock.
	for _, id := range accountIDs(params) {
		if err := tx.LockAccount(ctx, id); err != nil {
			return nil, fmt.Errorf("locking account: %w", err)
		}
	}

	granted := make([]*Batch, 0, len(params))

	for _, p := range params {
		b, err := s.ledger.Grant(ctx, tx, s.withDefaults(p))
		if err != nil {
			return nil, fmt.Errorf("granting %q: %w", p.Reference, err)
		}

		granted = append(granted, b)
	}

	return granted, nil
}

func (s *Service) withDefaults(p GrantParams) GrantParams {
	if p.ExpiresAt != nil {
		return p
	}

	validFor := p.ValidFor
	if validFor <= 0 {
		validFor = s.defaultValidity
	}

	if validFor <= 0 {
		return p
	}

	from := s.now()
	if p.AddedAt != nil {
		from = *p.AddedAt
	}

	p.ExpiresAt = new(from.Add(validFor))

	return p
}

func (s *Service) inTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Service) changed(ctx context.Context, accountID uuid.UUID) {
	events.Emit(ctx, s.events, events.Event{
		Kind:       events.KindCreditsChanged,
		AccountID:  accountID,
		OccurredAt: s.now(),
	})
}

func (s *Service) changedAll(ctx context.Context, batches []*Batch) {
	seen := make(map[uuid.UUID]struct{}, len(batches))

	for _, b := range batches {
		if _, ok := seen[b.AccountID]; ok {
			continue
		}

		seen[b.AccountID] = struct{}{}
		s.changed(ctx, b.AccountID)
	}
}

func references(params []GrantParams) []string {
	refs := make([]string, 0, len(params))

	for _, p := range params {
		if ref := strings.TrimSpace(p.Reference); ref != "" {
			refs = append(refs, ref)
		}
	}

	return refs
}

func accountIDs(params []GrantParams) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(params))

	for _, p := range params {
		if !slices.Contains(ids, p.AccountID) {
			ids = append(ids, p.AccountID)
		}
	}

	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return strings.Compare(a.String(), b.String())
	})

	return ids
}
