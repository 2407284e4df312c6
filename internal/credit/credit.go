package credit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind is the type of credit a batch carries. Kinds are never fungible.
type Kind string

const (
	KindRecording Kind = "recording"
	KindAI        Kind = "ai"
)

func (k Kind) Valid() bool {
	return k == KindRecording || k == KindAI
}

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown credit kind %q", s)
	}

	return k, nil
}

// Status of a batch. A void batch is invisible to the balance.
type Status string

const (
	StatusActive Status = "active"
	StatusVoid   Status = "void"
)

// Source records why a batch exists.
type Source string

const (
	SourcePurchase   Source = "purchase"
	SourceAdjustment Source = "adjustment"
	SourceReversal   Source = "reversal"
	// SourceOverdraft batches hold the part of an admin debit the balance could
	// not cover: nothing added, the shortfall recorded as used.
	SourceOverdraft Source = "overdraft"
)

// Batch is one lot of credits. Batches are never deleted; consumption only
// increments the used counters.
type Batch struct {
	ID              uuid.UUID
	AccountID       uuid.UUID
	Source          Source
	Status          Status
	RecordingAdded  int64
	RecordingUsed   int64
	AIAdded         int64
	AIUsed          int64
	AddedAt         time.Time
	ExpiresAt       *time.Time // nil never expires
	Reference       string     // payment reference, unique when set
	Observation     string
	AmountPaidCents int64
	OrderID         *uuid.UUID // order a reversal refunds
}

func (b *Batch) Added(kind Kind) int64 {
	if kind == KindAI {
		return b.AIAdded
	}

	return b.RecordingAdded
}

func (b *Batch) Used(kind Kind) int64 {
	if kind == KindAI {
		return b.AIUsed
	}

	return b.RecordingUsed
}

// Remaining is added minus used. It is negative only for overdraft batches.
func (b *Batch) Remaining(kind Kind) int64 {
	return b.Added(kind) - b.Used(kind)
}

// Expired reports whether the batch passed its expiry at now.
func (b *Batch) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && !b.ExpiresAt.After(now)
}

// Eligible reports whether the batch counts toward the balance at now.
// Expiry is a hard forfeiture: an expired or void batch contributes nothing.
func (b *Batch) Eligible(now time.Time) bool {
	return b.Status == StatusActive && !b.Expired(now)
}

func (b *Batch) use(kind Kind, n int64) {
	if kind == KindAI {
		b.AIUsed += n
		return
	}

	b.RecordingUsed += n
}

// Balance is the spendable amount per kind.
type Balance struct {
	Recording int64
	AI        int64
}

func (b Balance) Of(kind Kind) int64 {
	if kind == KindAI {
		return b.AI
	}

	return b.Recording
}

// Compute derives the balance from batches at now. It is the only definition
// of balance in the system; nothing stores a running total.
func Compute(batches []*Batch, now time.Time) Balance {
	var bal Balance

	for _, b := range batches {
		if !b.Eligible(now) {
			continue
		}

		bal.Recording += b.Remaining(KindRecording)
		bal.AI += b.Remaining(KindAI)
	}

	return bal
}

// Entry is one line of an account's audit trail.
type Entry struct {
	Batch              *Batch
	RecordingRemaining int64
	AIRemaining        int64
	Expired            bool
	// Forfeited is what the batch still held when it stopped counting.
	RecordingForfeited int64
	AIForfeited        int64
}

func entryFor(b *Batch, now time.Time) Entry {
	e := Entry{Batch: b, Expired: b.Expired(now)}

	if b.Eligible(now) {
		e.RecordingRemaining = b.Remaining(KindRecording)
		e.AIRemaining = b.Remaining(KindAI)

		return e
	}

	e.RecordingForfeited = max(b.Remaining(KindRecording), 0)
	e.AIForfeited = max(b.Remaining(KindAI), 0)

	return e
}
