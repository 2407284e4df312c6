package credit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/apperr"
)

// Ledger applies credit movements through a transactional Batches view. It
// never commits: callers own the transaction, which lets order creation debit
// and persist the order atomically.
type Ledger struct {
	now func() time.Time
}

func NewLedger(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}

	return &Ledger{now: now}
}

type ReverseParams struct {
	AccountID uuid.UUID
	Kind      Kind
	Amount    int64
	Reason    string
	OrderID   *uuid.UUID
}

type AdjustParams struct {
	AccountID      uuid.UUID
	RecordingDelta int64
	AIDelta        int64
	Observation    string
}

type GrantParams struct {
	AccountID       uuid.UUID
	Recording       int64
	AI              int64
	AddedAt         *time.Time // defaults to now
	ExpiresAt       *time.Time // nil never expires
	// ValidFor sets ExpiresAt relative to AddedAt when ExpiresAt is nil.
	ValidFor        time.Duration
	Reference       string
	AmountPaidCents int64
	Observation     string
}

// Debit consumes amount credits of kind, oldest batch first, and fails with
// ErrInsufficientCredits when the balance cannot cover it.
func (l *Ledger) Debit(ctx context.Context, b Batches, accountID uuid.UUID, kind Kind, amount int64) error {
	if err := validateMovement(kind, amount); err != nil {
		return err
	}

	if err := b.LockAccount(ctx, accountID); err != nil {
		return fmt.Errorf("locking account: %w", err)
	}

	batches, err := b.ListBatches(ctx, accountID)
	if err != nil {
		return fmt.Errorf("listing batches: %w", err)
	}

	now := l.now()
	if available := Compute(batches, now).Of(kind); available < amount {
		return fmt.Errorf("%w: %s balance %d, requested %d", apperr.ErrInsufficientCredits, kind, available, amount)
	}

	shortfall, err := consume(ctx, b, batches, kind, amount, now)
	if err != nil {
		return err
	}

	if shortfall > 0 {
		// Balance covered the amount, so FIFO must have too.
		return fmt.Errorf("consuming %s credits: %d left unconsumed", kind, shortfall)
	}

	return nil
}

// Reverse re-credits amount in a new non-expiring batch. Historical batches are
// left as they were so the trail shows what was consumed when.
func (l *Ledger) Reverse(ctx context.Context, b Batches, p ReverseParams) (*Batch, error) {
	if err := validateMovement(p.Kind, p.Amount); err != nil {
		return nil, err
	}

	if err := b.LockAccount(ctx, p.AccountID); err != nil {
		return nil, fmt.Errorf("locking account: %w", err)
	}

	reason := strings.TrimSpace(p.Reason)
	if reason == "" {
		reason = "reversal"
	}

	batch := &Batch{
		AccountID:   p.AccountID,
		Source:      SourceReversal,
		Status:      StatusActive,
		AddedAt:     l.now(),
		Observation: reason,
		OrderID:     p.OrderID,
	}

	if p.Kind == KindAI {
		batch.AIAdded = p.Amount
	} else {
		batch.RecordingAdded = p.Amount
	}

	if err := b.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("creating reversal batch: %w", err)
	}

	return batch, nil
}

// Adjust applies a signed administrative correction. Positive deltas land in a
// new non-expiring batch; negative deltas are consumed FIFO without the balance
// check, and whatever the balance cannot cover goes into an overdraft batch.
// It returns the batches it created.
func (l *Ledger) Adjust(ctx context.Context, b Batches, p AdjustParams) ([]*Batch, error) {
	observation := strings.TrimSpace(p.Observation)
	if observation == "" {
		return nil, apperr.Missing("observation")
	}

	if p.RecordingDelta == 0 && p.AIDelta == 0 {
		return nil, fmt.Errorf("%w: adjustment has no effect", apperr.ErrInvalidAmount)
	}

	if err := b.LockAccount(ctx, p.AccountID); err != nil {
		return nil, fmt.Errorf("locking account: %w", err)
	}

	now := l.now()

	var created []*Batch

	if p.RecordingDelta > 0 || p.AIDelta > 0 {
		batch := &Batch{
			AccountID:      p.AccountID,
			Source:         SourceAdjustment,
			Status:         StatusActive,
			RecordingAdded: max(p.RecordingDelta, 0),
			AIAdded:        max(p.AIDelta, 0),
			AddedAt:        now,
			Observation:    observation,
		}
		if err := b.CreateBatch(ctx, batch); err != nil {
			return nil, fmt.Errorf("creating adjustment batch: %w", err)
		}

		created = append(created, batch)
	}

	if p.RecordingDelta >= 0 && p.AIDelta >= 0 {
		return created, nil
	}

	batches, err := b.ListBatches(ctx, p.AccountID)
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}

	overdraft := &Batch{
		AccountID:   p.AccountID,
		Source:      SourceOverdraft,
		Status:      StatusActive,
		AddedAt:     now,
		Observation: observation,
	}

	if p.RecordingDelta < 0 {
		shortfall, err := consume(ctx, b, batches, KindRecording, -p.RecordingDelta, now)
		if err != nil {
			return nil, err
		}

		overdraft.RecordingUsed = shortfall
	}

	if p.AIDelta < 0 {
		shortfall, err := consume(ctx, b, batches, KindAI, -p.AIDelta, now)
		if err != nil {
			return nil, err
		}

		overdraft.AIUsed = shortfall
	}

	if overdraft.RecordingUsed > 0 || overdraft.AIUsed > 0 {
		if err := b.CreateBatch(ctx, overdraft); err != nil {
			return nil, fmt.Errorf("creating overdraft batch: %w", err)
		}

		created = append(created, overdraft)
	}

	return created, nil
}

// Grant records purchased credits.
func (l *Ledger) Grant(ctx context.Context, b Batches, p GrantParams) (*Batch, error) {
	if p.AccountID == uuid.Nil {
		return nil, apperr.Missing("account_id")
	}

	if p.Recording < 0 || p.AI < 0 || p.Recording+p.AI == 0 {
		return nil, fmt.Errorf("%w: grant must add a positive amount", apperr.ErrInvalidAmount)
	}

	if err := b.LockAccount(ctx, p.AccountID); err != nil {
		return nil, fmt.Errorf("locking account: %w", err)
	}

	addedAt := l.now()
	if p.AddedAt != nil {
		addedAt = *p.AddedAt
	}

	batch := &Batch{
		AccountID:       p.AccountID,
		Source:          SourcePurchase,
		Status:          StatusActive,
		RecordingAdded:  p.Recording,
		AIAdded:         p.AI,
		AddedAt:         addedAt,
		ExpiresAt:       p.ExpiresAt,
		Reference:       strings.TrimSpace(p.Reference),
		AmountPaidCents: p.AmountPaidCents,
		Observation:     strings.TrimSpace(p.Observation),
	}

	if err := b.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("creating purchase batch: %w", err)
	}

	return batch, nil
}

// consume takes up to amount credits from eligible batches in the order they
// were listed and returns what could not be covered.
func consume(ctx context.Context, b Batches, batches []*Batch, kind Kind, amount int64, now time.Time) (int64, error) {
	left := amount

	for _, batch := range batches {
		if left == 0 {
			break
		}

		if !batch.Eligible(now) {
			continue
		}

		available := batch.Remaining(kind)
		if available <= 0 {
			continue
		}

		take := min(available, left)
		batch.use(kind, take)

		if err := b.UpdateBatch(ctx, batch); err != nil {
			return 0, fmt.Errorf("updating batch %s: %w", batch.ID, err)
		}

		left -= take
	}

	return left, nil
}

func validateMovement(kind Kind, amount int64) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown credit kind %q", apperr.ErrInvalidAmount, kind)
	}

	if amount <= 0 {
		return fmt.Errorf("%w: %d", apperr.ErrInvalidAmount, amount)
	}

	return nil
}
