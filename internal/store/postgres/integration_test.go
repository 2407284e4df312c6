//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/account"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/app"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/apperr"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/database"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/order"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/revision"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/store/postgres"
)

// Run with: DATABASE_URL=postgres://... go test -tags integration ./internal/store/postgres/
func openDB(t *testing.T) *sql.DB {
	t.Helper()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	db, err := database.New(url, 20)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db))

	return db
}

type pgEnv struct {
	svc    *app.Services
	admin  account.Actor
	client account.Actor
}

func newPGEnv(t *testing.T) *pgEnv {
	t.Helper()

	return &pgEnv{
		svc:    app.NewServices(postgres.New(openDB(t)), app.Options{}),
		admin:  account.Actor{AccountID: uuid.New(), Role: account.RoleAdmin},
		client: account.Actor{AccountID: uuid.New(), Role: account.RoleClient},
	}
}

func (e *pgEnv) grant(t *testing.T, recording int64, addedAt *time.Time) *credit.Batch {
	t.Helper()

	b, err := e.svc.Credits.Grant(context.Background(), credit.GrantParams{
		AccountID: e.client.AccountID,
		Recording: recording,
		AddedAt:   addedAt,
	})
	require.NoError(t, err)

	return b
}

func (e *pgEnv) createOrder(credits int64) (*order.Order, error) {
	return e.svc.Orders.Create(context.Background(), e.client, order.CreateParams{
		AccountID:        e.client.AccountID,
		SpeakerID:        uuid.New(),
		ScriptText:       "Promoção de fim de semana",
		AudioKind:        order.AudioOff,
		CreditKind:       credit.KindRecording,
		EstimatedCredits: credits,
	})
}

func (e *pgEnv) balance(t *testing.T) int64 {
	t.Helper()

	bal, err := e.svc.Credits.Balance(context.Background(), e.client.AccountID)
	require.NoError(t, err)

	return bal.Recording
}

func (e *pgEnv) transition(o *order.Order, to order.Status, p order.Payload) (*order.Order, error) {
	return e.svc.Orders.Transition(context.Background(), e.admin, order.TransitionParams{
		OrderID:  o.ID,
		Expected: o.Status,
		To:       to,
		Payload:  p,
	})
}

// completedWithRevision returns an order with a revision in admin_in_progress.
func (e *pgEnv) completedWithRevision(t *testing.T) (*order.Order, *revision.Request) {
	t.Helper()

	ctx := context.Background()

	o, err := e.createOrder(1)
	require.NoError(t, err)

	for _, to := range []order.Status{order.StatusInReview, order.StatusInProduction, order.StatusCompleted} {
		o, err = e.transition(o, to, order.Payload{})
		require.NoError(t, err)
	}

	r, err := e.svc.Revisions.Request(ctx, e.client, revision.RequestParams{OrderID: o.ID, Description: "Trocar a trilha"})
	require.NoError(t, err)

	r, err = e.svc.Revisions.Process(ctx, e.admin, revision.ProcessParams{RevisionID: r.ID, To: revision.StatusInProgress})
	require.NoError(t, err)

	return o, r
}

// race runs fns concurrently and returns their errors in order.
func race(fns ...func() error) []error {
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, len(fns))
	)

	for i, fn := range fns {
		wg.Add(1)

		go func() {
			defer wg.Done()
			<-start
			errs[i] = fn()
		}()
	}

	close(start)
	wg.Wait()

	return errs
}

func requireOnly(t *testing.T, err error, allowed ...error) {
	t.Helper()

	if err == nil {
		return
	}

	for _, want := range allowed {
		if errors.Is(err, want) {
			return
		}
	}

	t.Fatalf("unexpected error: %v", err)
}

func TestPostgres_ConcurrentDebit(t *testing.T) {
	e := newPGEnv(t)
	e.grant(t, 10, nil)

	errs := race(
		func() error { _, err := e.createOrder(6); return err },
		func() error { _, err := e.createOrder(6); return err },
	)

	succeeded := 0

	for _, err := range errs {
		requireOnly(t, err, apperr.ErrInsufficientCredits)

		if err == nil {
			succeeded++
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(4), e.balance(t))
}

func TestPostgres_ManyConcurrentDebits(t *testing.T) {
	e := newPGEnv(t)
	e.grant(t, 10, nil)

	fns := make([]func() error, 25)
	for i := range fns {
		fns[i] = func() error { _, err := e.createOrder(1); return err }
	}

	succeeded := 0

	for _, err := range race(fns...) {
		requireOnly(t, err, apperr.ErrInsufficientCredits)

		if err == nil {
			succeeded++
		}
	}

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, int64(0), e.balance(t))
}

func TestPostgres_FIFOTieBreaksOnInsertion(t *testing.T) {
	ctx := context.Background()
	e := newPGEnv(t)

	at := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	first := e.grant(t, 5, &at)
	second := e.grant(t, 5, &at)

	require.NoError(t, e.svc.Credits.Debit(ctx, e.client.AccountID, credit.KindRecording, 7))

	history, err := e.svc.Credits.History(ctx, e.client.AccountID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, first.ID, history[0].Batch.ID)
	assert.Equal(t, int64(5), history[0].Batch.RecordingUsed)
	assert.Equal(t, second.ID, history[1].Batch.ID)
	assert.Equal(t, int64(2), history[1].Batch.RecordingUsed)
}

func TestPostgres_CompareAndSwapTransition(t *testing.T) {
	e := newPGEnv(t)
	e.grant(t, 5, nil)

	o, err := e.createOrder(2)
	require.NoError(t, err)

	o, err = e.transition(o, order.StatusInReview, order.Payload{})
	require.NoError(t, err)
	o, err = e.transition(o, order.StatusInProduction, order.Payload{})
	require.NoError(t, err)

	errs := race(
		func() error { _, err := e.transition(o, order.StatusCompleted, order.Payload{}); return err },
		func() error { _, err := e.transition(o, order.StatusCanceled, order.Payload{}); return err },
	)

	stale := 0

	for _, err := range errs {
		requireOnly(t, err, apperr.ErrStaleState)

		if err != nil {
			stale++
		}
	}

	assert.Equal(t, 1, stale)

	got, err := e.svc.Orders.Get(context.Background(), e.admin, o.ID)
	require.NoError(t, err)

	if got.Status == order.StatusCanceled {
		assert.Equal(t, int64(5), e.balance(t))
	} else {
		assert.Equal(t, int64(3), e.balance(t))
	}
}

func TestPostgres_VoidRacesDebit(t *testing.T) {
	ctx := context.Background()

	for range 10 {
		e := newPGEnv(t)
		b := e.grant(t, 3, nil)
		e.grant(t, 3, nil)

		errs := race(
			func() error { _, err := e.svc.Credits.VoidBatch(ctx, b.ID, "chargeback"); return err },
			func() error { _, err := e.createOrder(4); return err },
		)

		require.NoError(t, errs[0])
		requireOnly(t, errs[1], apperr.ErrInsufficientCredits)
	}
}

func TestPostgres_FinalizeRacesDelete(t *testing.T) {
	ctx := context.Background()

	for range 10 {
		e := newPGEnv(t)
		e.grant(t, 5, nil)

		o, r := e.completedWithRevision(t)

		errs := race(
			func() error {
				_, err := e.svc.Revisions.Process(ctx, e.admin, revision.ProcessParams{
					RevisionID: r.ID,
					To:         revision.StatusFinalized,
					AudioURL:   "https://cdn.example.com/v1.mp3",
				})
				return err
			},
			func() error { return e.svc.Orders.Delete(ctx, e.admin, o.ID) },
		)

		requireOnly(t, errs[0], apperr.ErrNotFound)
		require.NoError(t, errs[1])
		assert.Equal(t, int64(5), e.balance(t))
	}
}

func TestPostgres_RequestRacesRequest(t *testing.T) {
	ctx := context.Background()
	e := newPGEnv(t)
	e.grant(t, 5, nil)

	o, r := e.completedWithRevision(t)

	_, err := e.svc.Revisions.Process(ctx, e.admin, revision.ProcessParams{
		RevisionID:    r.ID,
		To:            revision.StatusDenied,
		AdminFeedback: "Fora do escopo",
	})
	require.NoError(t, err)

	request := func() error {
		_, err := e.svc.Revisions.Request(ctx, e.client, revision.RequestParams{OrderID: o.ID, Description: "Mais grave"})
		return err
	}

	pending := 0

	for _, err := range race(request, request) {
		requireOnly(t, err, apperr.ErrRevisionAlreadyPending)

		if err != nil {
			pending++
		}
	}

	assert.Equal(t, 1, pending)
}
