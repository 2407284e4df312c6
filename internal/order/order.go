package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
)

// Status represents the lifecycle state of an order.
type Status string

const (
	StatusPending        Status = "pending"
	StatusInReview       Status = "in_review"
	StatusInProduction   Status = "in_production"
	StatusAwaitingClient Status = "awaiting_client"
	StatusCompleted      Status = "completed"
	StatusInRevision     Status = "in_revision"
	StatusCanceled       Status = "canceled"
)

// Statuses lists every order status.
var Statuses = []Status{
	StatusPending,
	StatusInReview,
	StatusInProduction,
	StatusAwaitingClient,
	StatusCompleted,
	StatusInRevision,
	StatusCanceled,
}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}

	return false
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown order status %q", s)
	}

	return st, nil
}

// AudioKind is the production style of the delivered audio.
type AudioKind string

const (
	AudioOff      AudioKind = "off"
	AudioProduced AudioKind = "produced"
)

func (k AudioKind) Valid() bool {
	return k == AudioOff || k == AudioProduced
}

// Order is a recording request paid for with credits at creation.
type Order struct {
	ID           uuid.UUID
	SerialNumber int64
	AccountID    uuid.UUID
	SpeakerID    uuid.UUID
	ScriptText   string
	Title        string
	Style        string
	Guidance     string
	AudioKind    AudioKind
	CreditKind   credit.Kind
	Status       Status

	// CreditsDebited is fixed at creation. CreditsReversedAt is set in the same
	// transaction that refunds them, so a refund can only happen once.
	CreditsDebited    int64
	CreditsReversedAt *time.Time

	FinalAudioURL          *string
	ClientNotifiedAt       *time.Time
	AdminCancelReason      *string
	AdminMessage           *string
	ClientResponseText     *string
	ClientResponseAudioURL *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reversed reports whether the order's credits were already refunded.
func (o *Order) Reversed() bool {
	return o.CreditsReversedAt != nil
}

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	c := *o
	c.CreditsReversedAt = clonePtr(o.CreditsReversedAt)
	c.FinalAudioURL = clonePtr(o.FinalAudioURL)
	c.ClientNotifiedAt = clonePtr(o.ClientNotifiedAt)
	c.AdminCancelReason = clonePtr(o.AdminCancelReason)
	c.AdminMessage = clonePtr(o.AdminMessage)
	c.ClientResponseText = clonePtr(o.ClientResponseText)
	c.ClientResponseAudioURL = clonePtr(o.ClientResponseAudioURL)

	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}

	v := *p

	return &v
}
