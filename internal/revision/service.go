package revision

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
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/events"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/order"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=revision

// Revisions is the transactional view of revision requests and audio versions.
type Revisions interface {
	// GetRevision loads a request and locks it until the transaction ends.
	GetRevision(ctx context.Context, id uuid.UUID) (*Request, error)
	// OpenRevision returns the order's non-terminal request, or
	// apperr.ErrNotFound when there is none.
	OpenRevision(ctx context.Context, orderID uuid.UUID) (*Request, error)
	CreateRevision(ctx context.Context, r *Request) error
	// UpdateRevision writes r only if its stored status still equals expected.
	UpdateRevision(ctx context.Context, r *Request, expected Status) error
	// MaxVersionNumber returns the highest version number used for the order,
	// or 0 when it has none.
	MaxVersionNumber(ctx context.Context, orderID uuid.UUID) (int, error)
	CreateVersion(ctx context.Context, v *AudioVersion) error
}

type Tx interface {
	order.Tx
	Revisions
}

type Repository interface {
	Begin(ctx context.Context) (Tx, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error)
	GetRevision(ctx context.Context, id uuid.UUID) (*Request, error)
	// ListRevisions returns the order's requests oldest first with their
	// versions attached.
	ListRevisions(ctx context.Context, orderID uuid.UUID) ([]*Request, error)
}

type Service struct {
	repo   Repository
	orders *order.Service
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

func NewService(repo Repository, orders *order.Service, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		orders: orders,
		events: events.Nop{},
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type RequestParams struct {
	OrderID          uuid.UUID
	Description      string
	GuidanceAudioURL string
}

// Request opens a revision on a completed order and moves the order to
// in_revision in the same transaction.
func (s *Service) Request(ctx context.Context, actor account.Actor, p RequestParams) (*Request, error) {
	description := strings.TrimSpace(p.Description)
	if description == "" {
		return nil, apperr.Missing("description")
	}

	var (
		r *Request
		o *order.Order
	)

	err := s.inTx(ctx, func(tx Tx) error {
		var err error

		o, err = tx.GetOrder(ctx, p.OrderID)
		if err != nil {
			return err
		}

		if !actor.Owns(o.AccountID) {
			return fmt.Errorf("%w: only the order's client may request a revision", apperr.ErrForbidden)
		}

		open, err := tx.OpenRevision(ctx, o.ID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("checking open revision: %w", err)
		}

		if open != nil {
			return fmt.Errorf("%w: revision %s is %s", apperr.ErrRevisionAlreadyPending, open.ID, open.Status)
		}

		if err := s.orders.Advance(ctx, tx, o, order.StatusInRevision, actor, order.Payload{}); err != nil {
			return err
		}

		now := s.now()
		r = &Request{
			OrderID:           o.ID,
			AccountID:         o.AccountID,
			RequestedAt:       now,
			ClientDescription: description,
			GuidanceAudioURL:  optional(strings.TrimSpace(p.GuidanceAudioURL)),
			Status:            StatusRequested,
			UpdatedAt:         now,
		}

		if err := tx.CreateRevision(ctx, r); err != nil {
			return fmt.Errorf("creating revision: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "revision requested", "revision_id", r.ID, "order_id", r.OrderID, "account_id", r.AccountID)

	s.emit(ctx, events.KindRevisionRequested, r)
	s.emitOrder(ctx, o)

	return r, nil
}

type ProcessParams struct {
	RevisionID    uuid.UUID
	To            Status
	AdminFeedback string
	AudioURL      string
	AdminComment  string
}

// Process is the admin side of the workflow. Finalizing attaches the next
// audio version; any terminal status returns the order to completed.
func (s *Service) Process(ctx context.Context, actor account.Actor, p ProcessParams) (*Request, error) {
	return s.move(ctx, actor, p.RevisionID, p.To, Input{
		AdminFeedback: p.AdminFeedback,
		AudioURL:      p.AudioURL,
		AdminComment:  p.AdminComment,
	})
}

type RespondParams struct {
	RevisionID       uuid.UUID
	ResponseText     string
	ResponseAudioURL string
}

// Respond records the client's answer to an information request.
func (s *Service) Respond(ctx context.Context, actor account.Actor, p RespondParams) (*Request, error) {
	return s.move(ctx, actor, p.RevisionID, StatusClientResponded, Input{
		ResponseText:     p.ResponseText,
		ResponseAudioURL: p.ResponseAudioURL,
	})
}

// Get returns a request with its versions. Requests of other accounts look
// missing to clients.
func (s *Service) Get(ctx context.Context, actor account.Actor, id uuid.UUID) (*Request, error) {
	r, err := s.repo.GetRevision(ctx, id)
	if err != nil {
		return nil, err
	}

	if !actor.CanRead(r.AccountID) {
		return nil, fmt.Errorf("revision %s: %w", id, apperr.ErrNotFound)
	}

	return r, nil
}

func (s *Service) ListForOrder(ctx context.Context, actor account.Actor, orderID uuid.UUID) ([]*Request, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !actor.CanRead(o.AccountID) {
		return nil, fmt.Errorf("order %s: %w", orderID, apperr.ErrNotFound)
	}

	return s.repo.ListRevisions(ctx, orderID)
}

func (s *Service) move(ctx context.Context, actor account.Actor, id uuid.UUID, to Status, in Input) (*Request, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown revision status %q", apperr.ErrInvalidTransition, to)
	}

	// Rows are locked order first, then revision, the same order Request and
	// order deletion use.
	current, err := s.repo.GetRevision(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		r         *Request
		o         *order.Order
		from      Status
		completed bool
	)

	err = s.inTx(ctx, func(tx Tx) error {
		var err error

		o, err = tx.GetOrder(ctx, current.OrderID)
		if err != nil {
			return err
		}

		r, err = tx.GetRevision(ctx, id)
		if err != nil {
			return err
		}

		from = r.Status
		now := s.now()

		if err := Apply(r, to, actor, in, now); err != nil {
			return err
		}

		var version *AudioVersion

		if to == StatusFinalized {
			version, err = s.attachVersion(ctx, tx, r, in, now)
			if err != nil {
				return err
			}
		}

		if err := tx.UpdateRevision(ctx, r, from); err != nil {
			return err
		}

		if !to.Terminal() {
			return nil
		}

		var payload order.Payload
		if version != nil {
			payload.FinalAudioURL = version.AudioURL
		}

		completed = true

		return s.orders.Advance(ctx, tx, o, order.StatusCompleted, account.System, payload)
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "revision status changed",
		"revision_id", r.ID,
		"order_id", r.OrderID,
		"from", from,
		"to", r.Status,
	)

	s.emit(ctx, events.KindRevisionStatusChanged, r)

	if completed {
		s.emitOrder(ctx, o)
	}

	return r, nil
}

func (s *Service) attachVersion(ctx context.Context, tx Tx, r *Request, in Input, now time.Time) (*AudioVersion, error) {
	last, err := tx.MaxVersionNumber(ctx, r.OrderID)
	if err != nil {
		return nil, fmt.Errorf("reading version number: %w", err)
	}

	v := &AudioVersion{
		RevisionID:    r.ID,
		OrderID:       r.OrderID,
		VersionNumber: last + 1,
		AudioURL:      strings.TrimSpace(in.AudioURL),
		AdminComment:  strings.TrimSpace(in.AdminComment),
		SentAt:        now,
	}

	if err := tx.CreateVersion(ctx, v); err != nil {
		return nil, fmt.Errorf("creating audio version: %w", err)
	}

	r.Versions = append(r.Versions, v)

	return v, nil
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

func (s *Service) emit(ctx context.Context, kind events.Kind, r *Request) {
	events.Emit(ctx, s.events, events.Event{
		Kind:       kind,
		AccountID:  r.AccountID,
		OrderID:    &r.OrderID,
		RevisionID: &r.ID,
		Status:     string(r.Status),
		OccurredAt: s.now(),
	})
}

func (s *Service) emitOrder(ctx context.Context, o *order.Order) {
	events.Emit(ctx, s.events, events.Event{
		Kind:       events.KindOrderStatusChanged,
		AccountID:  o.AccountID,
		OrderID:    &o.ID,
		Status:     string(o.Status),
		OccurredAt: s.now(),
	})
}
