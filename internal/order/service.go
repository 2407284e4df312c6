package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/account"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/apperr"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/events"
)

// Orders is the transactional view of the orders table.
type Orders interface {
	// GetOrder loads an order and locks its row until the transaction ends.
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	CreateOrder(ctx context.Context, o *Order) error
	// UpdateOrder writes o only if the stored status still equals expected,
	// and fails with apperr.ErrStaleState otherwise.
	UpdateOrder(ctx context.Context, o *Order, expected Status) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

type Tx interface {
	credit.Batches
	Orders
	Commit() error
	Rollback() error
}

type Repository interface {
	Begin(ctx context.Context) (Tx, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]*Order, error)
}

type ListFilter struct {
	AccountID *uuid.UUID
	Status    *Status
}

type Service struct {
	repo   Repository
	ledger *credit.Ledger
	events events.Publisher
	now    func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func NewService(repo Repository, ledger *credit.Ledger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		ledger: ledger,
		events: events.Nop{},
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type CreateParams struct {
	AccountID        uuid.UUID
	SpeakerID        uuid.UUID
	ScriptText       string
	Title            string
	Style            string
	Guidance         string
	AudioKind        AudioKind
	CreditKind       credit.Kind
	EstimatedCredits int64
}

func (p CreateParams) validate() error {
	switch {
	case p.AccountID == uuid.Nil:
		return apperr.Missing("account_id")
	case p.SpeakerID == uuid.Nil:
		return apperr.Missing("speaker_id")
	case strings.TrimSpace(p.ScriptText) == "":
		return apperr.Missing("script")
	case !p.AudioKind.Valid():
		return apperr.Missing("audio_kind")
	case !p.CreditKind.Valid():
		return apperr.Missing("credit_kind")
	case p.EstimatedCredits <= 0:
		return fmt.Errorf("%w: estimated credits must be positive", apperr.ErrInvalidAmount)
	}

	return nil
}

// Create debits the estimated credits and persists the order in one
// transaction. If the debit fails no order exists.
func (s *Service) Create(ctx context.Context, actor account.Actor, p CreateParams) (*Order, error) {
	if actor.IsClient() && p.AccountID != actor.AccountID {
		return nil, fmt.Errorf("%w: cannot order for another account", apperr.ErrForbidden)
	}

	if err := p.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	o := &Order{
		AccountID:      p.AccountID,
		SpeakerID:      p.SpeakerID,
		ScriptText:     strings.TrimSpace(p.ScriptText),
		Title:          strings.TrimSpace(p.Title),
		Style:          strings.TrimSpace(p.Style),
		Guidance:       strings.TrimSpace(p.Guidance),
		AudioKind:      p.AudioKind,
		CreditKind:     p.CreditKind,
		Status:         StatusPending,
		CreditsDebited: p.EstimatedCredits,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.inTx(ctx, func(tx Tx) error {
		if err := s.ledger.Debit(ctx, tx, p.AccountID, p.CreditKind, p.EstimatedCredits); err != nil {
			return err
		}

		if err := tx.CreateOrder(ctx, o); err != nil {
			return fmt.Errorf("creating order: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "order created",
		"order_id", o.ID,
		"serial_number", o.SerialNumber,
		"account_id", o.AccountID,
		"credits", o.CreditsDebited,
		"credit_kind", o.CreditKind,
	)

	s.emit(ctx, events.KindOrderCreated, o)
	s.emitCredits(ctx, o.AccountID)

	return o, nil
}

type TransitionParams struct {
	OrderID  uuid.UUID
	Expected Status
	To       Status
	Payload  Payload
}

// Transition moves an order from Expected to To. It fails with ErrStaleState
// when the stored status is no longer Expected.
func (s *Service) Transition(ctx context.Context, actor account.Actor, p TransitionParams) (*Order, error) {
	if !p.To.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrInvalidTransition, p.To)
	}

	var (
		o        *Order
		reversed bool
	)

	err := s.inTx(ctx, func(tx Tx) error {
		var err error

		o, err = tx.GetOrder(ctx, p.OrderID)
		if err != nil {
			return err
		}

		if o.Status != p.Expected {
			return fmt.Errorf("%w: order is %s, expected %s", apperr.ErrStaleState, o.Status, p.Expected)
		}

		if e, ok := transitions[o.Status][p.To]; ok && e.effect == EffectOpenRevision {
			return fmt.Errorf("%w: revisions are opened by requesting a revision", apperr.ErrInvalidTransition)
		}

		reversed, err = s.advance(ctx, tx, o, p.To, actor, p.Payload)

		return err
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "order status changed",
		"order_id", o.ID,
		"from", p.Expected,
		"to", o.Status,
		"actor_role", actor.Role,
	)

	s.emit(ctx, events.KindOrderStatusChanged, o)

	if reversed {
		s.emitCredits(ctx, o.AccountID)
	}

	return o, nil
}

// Reopen puts a completed or canceled order back to pending. It is a data
// correction: nothing is debited or refunded.
func (s *Service) Reopen(ctx context.Context, actor account.Actor, orderID uuid.UUID) (*Order, error) {
	var o *Order

	err := s.inTx(ctx, func(tx Tx) error {
		var err error

		o, err = tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}

		expected := o.Status
		if _, err := Apply(o, StatusPending, actor, Payload{}, s.now()); err != nil {
			return err
		}

		return tx.UpdateOrder(ctx, o, expected)
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.KindOrderStatusChanged, o)

	return o, nil
}

// Delete removes an order for good, refunding its credits unless they were
// already refunded by a cancellation.
func (s *Service) Delete(ctx context.Context, actor account.Actor, orderID uuid.UUID) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: only admins delete orders", apperr.ErrForbidden)
	}

	var (
		o        *Order
		reversed bool
	)

	err := s.inTx(ctx, func(tx Tx) error {
		var err error

		o, err = tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}

		if !o.Reversed() {
			if err := s.reverse(ctx, tx, o, "order deleted"); err != nil {
				return err
			}

			reversed = true
		}

		if err := tx.DeleteOrder(ctx, o.ID); err != nil {
			return fmt.Errorf("deleting order: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "order deleted", "order_id", o.ID, "credits_reversed", reversed)

	s.emit(ctx, events.KindOrderDeleted, o)

	if reversed {
		s.emitCredits(ctx, o.AccountID)
	}

	return nil
}

// MarkClientNotified records that the client was told about the delivery.
func (s *Service) MarkClientNotified(ctx context.Context, actor account.Actor, orderID uuid.UUID) (*Order, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins mark notifications", apperr.ErrForbidden)
	}

	var o *Order

	err := s.inTx(ctx, func(tx Tx) error {
		var err error

		o, err = tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}

		now := s.now()
		o.ClientNotifiedAt = &now
		o.UpdatedAt = now

		return tx.UpdateOrder(ctx, o, o.Status)
	})
	if err != nil {
		return nil, err
	}

	return o, nil
}

// Get returns an order the actor may see. Orders of other accounts look
// missing to clients.
func (s *Service) Get(ctx context.Context, actor account.Actor, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if !actor.CanRead(o.AccountID) {
		return nil, fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}

	return o, nil
}

// List returns orders matching filter. Clients only ever see their own.
func (s *Service) List(ctx context.Context, actor account.Actor, filter ListFilter) ([]*Order, error) {
	if !actor.IsAdmin() {
		filter.AccountID = &actor.AccountID
	}

	return s.repo.ListOrders(ctx, filter)
}

// Advance applies a transition inside tx on behalf of another component and
// carries out its ledger effect. The revision workflow uses it to move the
// order in and out of in_revision atomically with the revision itself.
func (s *Service) Advance(ctx context.Context, tx Tx, o *Order, to Status, actor account.Actor, p Payload) error {
	_, err := s.advance(ctx, tx, o, to, actor, p)
	return err
}

func (s *Service) advance(ctx context.Context, tx Tx, o *Order, to Status, actor account.Actor, p Payload) (bool, error) {
	expected := o.Status

	effect, err := Apply(o, to, actor, p, s.now())
	if err != nil {
		return false, err
	}

	reversed := false

	if effect == EffectReverseCredits {
		if err := s.reverse(ctx, tx, o, "order canceled"); err != nil {
			return false, err
		}

		reversed = true
	}

	if err := tx.UpdateOrder(ctx, o, expected); err != nil {
		return false, err
	}

	return reversed, nil
}

func (s *Service) reverse(ctx context.Context, tx Tx, o *Order, reason string) error {
	_, err := s.ledger.Reverse(ctx, tx, credit.ReverseParams{
		AccountID: o.AccountID,
		Kind:      o.CreditKind,
		Amount:    o.CreditsDebited,
		Reason:    fmt.Sprintf("%s #%d", reason, o.SerialNumber),
		OrderID:   &o.ID,
	})
	if err != nil {
		return fmt.Errorf("reversing credits: %w", err)
	}

	now := s.now()
	o.CreditsReversedAt = &now

	return nil
}

func (s *Service) inTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		if !apperr.IsDomain(err) && !errors.Is(err, context.Canceled) {
			slog.ErrorContext(ctx, "order transaction failed", "error", err)
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Service) emit(ctx context.Context, kind events.Kind, o *Order) {
	events.Emit(ctx, s.events, events.Event{
		Kind:       kind,
		AccountID:  o.AccountID,
		OrderID:    &o.ID,
		Status:     string(o.Status),
		OccurredAt: s.now(),
	})
}

func (s *Service) emitCredits(ctx context.Context, accountID uuid.UUID) {
	events.Emit(ctx, s.events, events.Event{
		Kind:       events.KindCreditsChanged,
		AccountID:  accountID,
		OccurredAt: s.now(),
	})
}
