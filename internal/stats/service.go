// Package stats computes the admin dashboard snapshot. It keeps no state:
// every figure is read from the ledger and order tables when asked for.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/account"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/apperr"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/order"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=stats

type Repository interface {
	// OutstandingBalances returns the balance of every account holding at
	// least one batch eligible at now.
	OutstandingBalances(ctx context.Context, now time.Time) (map[uuid.UUID]credit.Balance, error)
	CountOrdersByStatus(ctx context.Context) (map[order.Status]int, error)
	CountOpenRevisions(ctx context.Context) (int, error)
}

type Snapshot struct {
	// ActiveClients counts accounts with a positive balance of either kind.
	ActiveClients    int
	Outstanding      credit.Balance
	PendingOrders    int
	OrdersByStatus   map[order.Status]int
	PendingRevisions int
	TakenAt          time.Time
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}

	return &Service{repo: repo, now: now}
}

func (s *Service) Snapshot(ctx context.Context, actor account.Actor) (*Snapshot, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: stats are admin only", apperr.ErrForbidden)
	}

	now := s.now()

	balances, err := s.repo.OutstandingBalances(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("reading balances: %w", err)
	}

	byStatus, err := s.repo.CountOrdersByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting orders: %w", err)
	}

	openRevisions, err := s.repo.CountOpenRevisions(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting revisions: %w", err)
	}

	snap := &Snapshot{
		OrdersByStatus:   make(map[order.Status]int, len(order.Statuses)),
		PendingRevisions: openRevisions,
		TakenAt:          now,
	}

	for _, st := range order.Statuses {
		snap.OrdersByStatus[st] = byStatus[st]
	}

	snap.PendingOrders = snap.OrdersByStatus[order.StatusPending]

	for _, bal := range balances {
		snap.Outstanding.Recording += bal.Recording
		snap.Outstanding.AI += bal.AI

		if bal.Recording > 0 || bal.AI > 0 {
			snap.ActiveClients++
		}
	}

	return snap, nil
}
