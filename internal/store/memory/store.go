// Package memory is an in-process store for tests and local runs. Every
// transaction works on a private copy of the data and holds one store-wide
// lock until it commits or rolls back, so transactions never interleave.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/apperr"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/order"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/revision"
)

type data struct {
	batches   []*credit.Batch
	orders    map[uuid.UUID]*order.Order
	revisions []*revision.Request
	versions  []*revision.AudioVersion
	serial    int64
}

func (d *data) clone() *data {
	c := &data{
		batches:   make([]*credit.Batch, len(d.batches)),
		orders:    make(map[uuid.UUID]*order.Order, len(d.orders)),
		revisions: make([]*revision.Request, len(d.revisions)),
		versions:  make([]*revision.AudioVersion, len(d.versions)),
		serial:    d.serial,
	}

	for i, b := range d.batches {
		c.batches[i] = cloneBatch(b)
	}

	for id, o := range d.orders {
		c.orders[id] = o.Clone()
	}

	for i, r := range d.revisions {
		c.revisions[i] = r.Clone()
	}

	for i, v := range d.versions {
		vc := *v
		c.versions[i] = &vc
	}

	return c
}

type Store struct {
	txMu sync.Mutex

	mu   sync.RWMutex
	data *data
}

func New() *Store {
	return &Store{data: &data{orders: make(map[uuid.UUID]*order.Order)}}
}

// Credits returns the store as a credit.Repository.
func (s *Store) Credits() credit.Repository { return creditRepo{s} }

// Orders returns the store as an order.Repository.
func (s *Store) Orders() order.Repository { return orderRepo{s} }

// Revisions returns the store as a revision.Repository.
func (s *Store) Revisions() revision.Repository { return revisionRepo{s} }

func (s *Store) begin(ctx context.Context) (*Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.txMu.Lock()

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	return &Tx{store: s, data: work}, nil
}

// read runs fn against the committed data.
func (s *Store) read(fn func(d *data)) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fn(s.data)
}

// Tx is a store transaction. It satisfies credit.Tx, order.Tx and
// revision.Tx.
type Tx struct {
	store *Store
	data  *data
	done  bool
}

func (tx *Tx) Commit() error {
	if tx.done {
		return fmt.Errorf("transaction already finished")
	}

	tx.store.mu.Lock()
	tx.store.data = tx.data
	tx.store.mu.Unlock()

	tx.finish()

	return nil
}

// Rollback discards the transaction. It is a no-op after Commit.
func (tx *Tx) Rollback() error {
	if tx.done {
		return nil
	}

	tx.finish()

	return nil
}

func (tx *Tx) finish() {
	tx.done = true
	tx.data = nil
	tx.store.txMu.Unlock()
}

// LockAccount is a no-op: the transaction already holds the store lock.
func (tx *Tx) LockAccount(context.Context, uuid.UUID) error { return nil }

func (tx *Tx) ListBatches(_ context.Context, accountID uuid.UUID) ([]*credit.Batch, error) {
	return accountBatches(tx.data, accountID), nil
}

func (tx *Tx) GetBatch(_ context.Context, id uuid.UUID) (*credit.Batch, error) {
	i := tx.data.batchIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("batch %s: %w", id, apperr.ErrNotFound)
	}

	return cloneBatch(tx.data.batches[i]), nil
}

func (tx *Tx) FindBatchesByReference(_ context.Context, refs []string) ([]*credit.Batch, error) {
	var out []*credit.Batch

	for _, b := range tx.data.batches {
		if b.Reference != "" && slices.Contains(refs, b.Reference) {
			out = append(out, cloneBatch(b))
		}
	}

	return out, nil
}

func (tx *Tx) CreateBatch(_ context.Context, b *credit.Batch) error {
	if b.Reference != "" {
		for _, existing := range tx.data.batches {
			if existing.Reference == b.Reference {
				return fmt.Errorf("batch reference %q: %w", b.Reference, apperr.ErrAlreadyExists)
			}
		}
	}

	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}

	tx.data.batches = append(tx.data.batches, cloneBatch(b))

	return nil
}

func (tx *Tx) UpdateBatch(_ context.Context, b *credit.Batch) error {
	i := tx.data.batchIndex(b.ID)
	if i < 0 {
		return fmt.Errorf("batch %s: %w", b.ID, apperr.ErrNotFound)
	}

	tx.data.batches[i] = cloneBatch(b)

	return nil
}

func (tx *Tx) GetOrder(_ context.Context, id uuid.UUID) (*order.Order, error) {
	return getOrder(tx.data, id)
}

func (tx *Tx) CreateOrder(_ context.Context, o *order.Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	tx.data.serial++
	o.SerialNumber = tx.data.serial

	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}

	tx.data.orders[o.ID] = o.Clone()

	return nil
}

func (tx *Tx) UpdateOrder(_ context.Context, o *order.Order, expected order.Status) error {
	stored, ok := tx.data.orders[o.ID]
	if !ok {
		return fmt.Errorf("order %s: %w", o.ID, apperr.ErrNotFound)
	}

	if stored.Status != expected {
		return fmt.Errorf("%w: order is %s, expected %s", apperr.ErrStaleState, stored.Status, expected)
	}

	tx.data.orders[o.ID] = o.Clone()

	return nil
}

// DeleteOrder removes the order with its revisions and versions. Ledger
// batches stay.
func (tx *Tx) DeleteOrder(_ context.Context, id uuid.UUID) error {
	if _, ok := tx.data.orders[id]; !ok {
		return fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}

	delete(tx.data.orders, id)

	tx.data.revisions = slices.DeleteFunc(tx.data.revisions, func(r *revision.Request) bool {
		return r.OrderID == id
	})
	tx.data.versions = slices.DeleteFunc(tx.data.versions, func(v *revision.AudioVersion) bool {
		return v.OrderID == id
	})

	return nil
}

func (tx *Tx) GetRevision(_ context.Context, id uuid.UUID) (*revision.Request, error) {
	return getRevision(tx.data, id)
}

func (tx *Tx) OpenRevision(_ context.Context, orderID uuid.UUID) (*revision.Request, error) {
	if r := tx.data.openRevision(orderID); r != nil {
		return r.Clone(), nil
	}

	return nil, fmt.Errorf("open revision for order %s: %w", orderID, apperr.ErrNotFound)
}

func (tx *Tx) CreateRevision(_ context.Context, r *revision.Request) error {
	if !r.Status.Terminal() && tx.data.openRevision(r.OrderID) != nil {
		return fmt.Errorf("order %s: %w", r.OrderID, apperr.ErrRevisionAlreadyPending)
	}

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	tx.data.revisions = append(tx.data.revisions, stripVersions(r))

	return nil
}

func (tx *Tx) UpdateRevision(_ context.Context, r *revision.Request, expected revision.Status) error {
	for i, stored := range tx.data.revisions {
		if stored.ID != r.ID {
			continue
		}

		if stored.Status != expected {
			return fmt.Errorf("%w: revision is %s, expected %s", apperr.ErrStaleState, stored.Status, expected)
		}

		tx.data.revisions[i] = stripVersions(r)

		return nil
	}

	return fmt.Errorf("revision %s: %w", r.ID, apperr.ErrNotFound)
}

func (tx *Tx) MaxVersionNumber(_ context.Context, orderID uuid.UUID) (int, error) {
	highest := 0

	for _, v := range tx.data.versions {
		if v.OrderID == orderID {
			highest = max(highest, v.VersionNumber)
		}
	}

	return highest, nil
}

func (tx *Tx) CreateVersion(_ context.Context, v *revision.AudioVersion) error {
	for _, existing := range tx.data.versions {
		if existing.OrderID == v.OrderID && existing.VersionNumber == v.VersionNumber {
			return fmt.Errorf("version %d of order %s: %w", v.VersionNumber, v.OrderID, apperr.ErrAlreadyExists)
		}
	}

	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}

	vc := *v
	tx.data.versions = append(tx.data.versions, &vc)

	return nil
}

func (d *data) batchIndex(id uuid.UUID) int {
	return slices.IndexFunc(d.batches, func(b *credit.Batch) bool { return b.ID == id })
}

func (d *data) openRevision(orderID uuid.UUID) *revision.Request {
	for _, r := range d.revisions {
		if r.OrderID == orderID && !r.Status.Terminal() {
			return r
		}
	}

	return nil
}

// accountBatches lists batches FIFO: addedAt, then insertion order.
func accountBatches(d *data, accountID uuid.UUID) []*credit.Batch {
	var out []*credit.Batch

	for _, b := range d.batches {
		if b.AccountID == accountID {
			out = append(out, cloneBatch(b))
		}
	}

	slices.SortStableFunc(out, func(a, b *credit.Batch) int {
		return a.AddedAt.Compare(b.AddedAt)
	})

	return out
}

func getOrder(d *data, id uuid.UUID) (*order.Order, error) {
	o, ok := d.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}

	return o.Clone(), nil
}

func getRevision(d *data, id uuid.UUID) (*revision.Request, error) {
	for _, r := range d.revisions {
		if r.ID == id {
			c := r.Clone()
			c.Versions = versionsOf(d, r.ID)

			return c, nil
		}
	}

	return nil, fmt.Errorf("revision %s: %w", id, apperr.ErrNotFound)
}

func versionsOf(d *data, revisionID uuid.UUID) []*revision.AudioVersion {
	var out []*revision.AudioVersion

	for _, v := range d.versions {
		if v.RevisionID == revisionID {
			vc := *v
			out = append(out, &vc)
		}
	}

	return out
}

func stripVersions(r *revision.Request) *revision.Request {
	c := r.Clone()
	c.Versions = nil

	return c
}

func cloneBatch(b *credit.Batch) *credit.Batch {
	c := *b
	if b.ExpiresAt != nil {
		c.ExpiresAt = new(*b.ExpiresAt)
	}

	if b.OrderID != nil {
		c.OrderID = new(*b.OrderID)
	}

	return &c
}
