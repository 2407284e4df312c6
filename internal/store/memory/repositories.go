package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/apperr"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/order"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/revision"
)

type creditRepo struct{ s *Store }

func (r creditRepo) Begin(ctx context.Context) (credit.Tx, error) {
	return r.s.begin(ctx)
}

func (r creditRepo) GetBatch(_ context.Context, id uuid.UUID) (*credit.Batch, error) {
	var (
		b     *credit.Batch
		found bool
	)

	r.s.read(func(d *data) {
		if i := d.batchIndex(id); i >= 0 {
			b, found = cloneBatch(d.batches[i]), true
		}
	})

	if !found {
		return nil, fmt.Errorf("batch %s: %w", id, apperr.ErrNotFound)
	}

	return b, nil
}

func (r creditRepo) ListBatches(_ context.Context, accountID uuid.UUID) ([]*credit.Batch, error) {
	var out []*credit.Batch

	r.s.read(func(d *data) { out = accountBatches(d, accountID) })

	return out, nil
}

type orderRepo struct{ s *Store }

func (r orderRepo) Begin(ctx context.Context) (order.Tx, error) {
	return r.s.begin(ctx)
}

func (r orderRepo) GetOrder(_ context.Context, id uuid.UUID) (*order.Order, error) {
	return r.s.committedOrder(id)
}

// ListOrders returns matching orders, newest first.
func (r orderRepo) ListOrders(_ context.Context, filter order.ListFilter) ([]*order.Order, error) {
	var out []*order.Order

	r.s.read(func(d *data) {
		for _, o := range d.orders {
			if filter.AccountID != nil && o.AccountID != *filter.AccountID {
				continue
			}

			if filter.Status != nil && o.Status != *filter.Status {
				continue
			}

			out = append(out, o.Clone())
		}
	})

	slices.SortFunc(out, func(a, b *order.Order) int {
		return cmp.Compare(b.SerialNumber, a.SerialNumber)
	})

	return out, nil
}

type revisionRepo struct{ s *Store }

func (r revisionRepo) Begin(ctx context.Context) (revision.Tx, error) {
	return r.s.begin(ctx)
}

func (r revisionRepo) GetOrder(_ context.Context, id uuid.UUID) (*order.Order, error) {
	return r.s.committedOrder(id)
}

func (r revisionRepo) GetRevision(_ context.Context, id uuid.UUID) (*revision.Request, error) {
	var (
		rev *revision.Request
		err error
	)

	r.s.read(func(d *data) { rev, err = getRevision(d, id) })

	return rev, err
}

// ListRevisions returns the order's requests oldest first.
func (r revisionRepo) ListRevisions(_ context.Context, orderID uuid.UUID) ([]*revision.Request, error) {
	var out []*revision.Request

	r.s.read(func(d *data) {
		for _, rev := range d.revisions {
			if rev.OrderID != orderID {
				continue
			}

			c := rev.Clone()
			c.Versions = versionsOf(d, rev.ID)
			out = append(out, c)
		}
	})

	slices.SortStableFunc(out, func(a, b *revision.Request) int {
		return a.RequestedAt.Compare(b.RequestedAt)
	})

	return out, nil
}

func (s *Store) committedOrder(id uuid.UUID) (*order.Order, error) {
	var (
		o   *order.Order
		err error
	)

	s.read(func(d *data) { o, err = getOrder(d, id) })

	return o, err
}

// OutstandingBalances computes every account's balance with credit.Compute.
func (s *Store) OutstandingBalances(_ context.Context, now time.Time) (map[uuid.UUID]credit.Balance, error) {
	out := make(map[uuid.UUID]credit.Balance)

	s.read(func(d *data) {
		byAccount := make(map[uuid.UUID][]*credit.Batch)

		for _, b := range d.batches {
			if b.Eligible(now) {
				byAccount[b.AccountID] = append(byAccount[b.AccountID], b)
			}
		}

		for id, batches := range byAccount {
			out[id] = credit.Compute(batches, now)
		}
	})

	return out, nil
}

func (s *Store) CountOrdersByStatus(context.Context) (map[order.Status]int, error) {
	out := make(map[order.Status]int)

	s.read(func(d *data) {
		for _, o := range d.orders {
			out[o.Status]++
		}
	})

	return out, nil
}

func (s *Store) CountOpenRevisions(context.Context) (int, error) {
	n := 0

	s.read(func(d *data) {
		for _, r := range d.revisions {
			if !r.Status.Terminal() {
				n++
			}
		}
	})

	return n, nil
}
