package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/account"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/apperr"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/events"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/order"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/revision"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/stats"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/store/memory"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type env struct {
	store     *memory.Store
	clock     *clock
	events    *events.Recorder
	credits   *credit.Service
	orders    *order.Service
	revisions *revision.Service
	stats     *stats.Service

	admin  account.Actor
	client account.Actor
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		store:  memory.New(),
		clock:  &clock{now: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)},
		events: &events.Recorder{},
		admin:  account.Actor{AccountID: uuid.New(), Role: account.RoleAdmin},
		client: account.Actor{AccountID: uuid.New(), Role: account.RoleClient},
	}

	e.credits = credit.NewService(e.store.Credits(),
		credit.WithClock(e.clock.Now),
		credit.WithPublisher(e.events),
	)
	e.orders = order.NewService(e.store.Orders(), e.credits.Ledger(),
		order.WithClock(e.clock.Now),
		order.WithPublisher(e.events),
	)
	e.revisions = revision.NewService(e.store.Revisions(), e.orders,
		revision.WithClock(e.clock.Now),
		revision.WithPublisher(e.events),
	)
	e.stats = stats.NewService(e.store, e.clock.Now)

	return e
}

func (e *env) grant(t *testing.T, recording, ai int64, expiresAt *time.Time) *credit.Batch {
	t.Helper()

	b, err := e.credits.Grant(context.Background(), credit.GrantParams{
		AccountID: e.client.AccountID,
		Recording: recording,
		AI:        ai,
		ExpiresAt: expiresAt,
	})
	require.NoError(t, err)

	return b
}

func (e *env) balance(t *testing.T) credit.Balance {
	t.Helper()

	bal, err := e.credits.Balance(context.Background(), e.client.AccountID)
	require.NoError(t, err)

	return bal
}

func (e *env) createOrder(t *testing.T, credits int64) *order.Order {
	t.Helper()

	o, err := e.orders.Create(context.Background(), e.client, order.CreateParams{
		AccountID:        e.client.AccountID,
		SpeakerID:        uuid.New(),
		ScriptText:       "Chegou a liquidação de inverno",
		AudioKind:        order.AudioOff,
		CreditKind:       credit.KindRecording,
		EstimatedCredits: credits,
	})
	require.NoError(t, err)

	return o
}

func (e *env) move(t *testing.T, o *order.Order, actor account.Actor, to order.Status, p order.Payload) *order.Order {
	t.Helper()

	got, err := e.orders.Transition(context.Background(), actor, order.TransitionParams{
		OrderID:  o.ID,
		Expected: o.Status,
		To:       to,
		Payload:  p,
	})
	require.NoError(t, err)

	return got
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	e.grant(t, 10, 0, nil)
	assert.Equal(t, int64(10), e.balance(t).Recording)

	o := e.createOrder(t, 4)
	assert.Equal(t, int64(6), e.balance(t).Recording)

	o = e.move(t, o, e.admin, order.StatusInReview, order.Payload{})
	o = e.move(t, o, e.admin, order.StatusInProduction, order.Payload{})
	o = e.move(t, o, e.admin, order.StatusCompleted, order.Payload{FinalAudioURL: "https://cdn/v0.mp3"})
	assert.Equal(t, int64(6), e.balance(t).Recording)

	rev, err := e.revisions.Request(ctx, e.client, revision.RequestParams{
		OrderID:     o.ID,
		Description: "slower on the phone number",
	})
	require.NoError(t, err)
	assert.Equal(t, revision.StatusRequested, rev.Status)
	assert.Equal(t, int64(6), e.balance(t).Recording)

	got, err := e.orders.Get(ctx, e.client, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusInRevision, got.Status)

	_, err = e.revisions.Process(ctx, e.admin, revision.ProcessParams{RevisionID: rev.ID, To: revision.StatusInProgress})
	require.NoError(t, err)

	rev, err = e.revisions.Process(ctx, e.admin, revision.ProcessParams{
		RevisionID:   rev.ID,
		To:           revision.StatusFinalized,
		AudioURL:     "https://cdn/v1.mp3",
		AdminComment: "slowed down",
	})
	require.NoError(t, err)
	require.Len(t, rev.Versions, 1)
	assert.Equal(t, 1, rev.Versions[0].VersionNumber)
	assert.NotNil(t, rev.CompletedAt)

	got, err = e.orders.Get(ctx, e.admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, got.Status)
	assert.Equal(t, "https://cdn/v1.mp3", *got.FinalAudioURL)
	assert.Equal(t, int64(6), e.balance(t).Recording)

	require.NoError(t, e.orders.Delete(ctx, e.admin, o.ID))
	assert.Equal(t, int64(10), e.balance(t).Recording)

	_, err = e.orders.Get(ctx, e.admin, o.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestConcurrentDebit(t *testing.T) {
	e := newEnv(t)
	e.grant(t, 10, 0, nil)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)

	for i := range errs {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, errs[i] = e.orders.Create(context.Background(), e.client, order.CreateParams{
				AccountID:        e.client.AccountID,
				SpeakerID:        uuid.New(),
				ScriptText:       "spot",
				AudioKind:        order.AudioOff,
				CreditKind:       credit.KindRecording,
				EstimatedCredits: 6,
			})
		}()
	}

	wg.Wait()

	succeeded := 0

	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}

		require.ErrorIs(t, err, apperr.ErrInsufficientCredits)
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(4), e.balance(t).Recording)

	orders, err := e.orders.List(context.Background(), e.admin, order.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestFIFOConsumption(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	older := e.grant(t, 5, 0, nil)
	e.clock.Advance(time.Hour)
	newer := e.grant(t, 5, 0, nil)

	require.NoError(t, e.credits.Debit(ctx, e.client.AccountID, credit.KindRecording, 7))

	history, err := e.credits.History(ctx, e.client.AccountID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, older.ID, history[0].Batch.ID)
	assert.Equal(t, int64(5), history[0].Batch.RecordingUsed)
	assert.Equal(t, newer.ID, history[1].Batch.ID)
	assert.Equal(t, int64(2), history[1].Batch.RecordingUsed)
	assert.Equal(t, int64(3), e.balance(t).Recording)
}

func TestFIFOSkipsExpiredBatches(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	expiring := e.grant(t, 5, 0, new(e.clock.Now().Add(time.Hour)))
	e.grant(t, 5, 0, nil)

	e.clock.Advance(2 * time.Hour)

	require.NoError(t, e.credits.Debit(ctx, e.client.AccountID, credit.KindRecording, 3))

	history, err := e.credits.History(ctx, e.client.AccountID)
	require.NoError(t, err)

	assert.Equal(t, expiring.ID, history[0].Batch.ID)
	assert.Equal(t, int64(0), history[0].Batch.RecordingUsed)
	assert.True(t, history[0].Expired)
	assert.Equal(t, int64(5), history[0].RecordingForfeited)
	assert.Equal(t, int64(3), history[1].Batch.RecordingUsed)
}

func TestExpiryForfeiture(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	e.grant(t, 5, 2, new(e.clock.Now().Add(24*time.Hour)))
	assert.Equal(t, credit.Balance{Recording: 5, AI: 2}, e.balance(t))

	e.clock.Advance(24 * time.Hour)
	assert.Equal(t, credit.Balance{}, e.balance(t))

	err := e.credits.Debit(ctx, e.client.AccountID, credit.KindRecording, 1)
	require.ErrorIs(t, err, apperr.ErrInsufficientCredits)
}

func TestKindsAreNotFungible(t *testing.T) {
	e := newEnv(t)
	e.grant(t, 0, 5, nil)

	_, err := e.orders.Create(context.Background(), e.client, order.CreateParams{
		AccountID:        e.client.AccountID,
		SpeakerID:        uuid.New(),
		ScriptText:       "spot",
		AudioKind:        order.AudioOff,
		CreditKind:       credit.KindRecording,
		EstimatedCredits: 1,
	})
	require.ErrorIs(t, err, apperr.ErrInsufficientCredits)
	assert.Equal(t, int64(5), e.balance(t).AI)
}

func TestNoDoubleReversal(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.grant(t, 10, 0, nil)

	o := e.createOrder(t, 4)
	o = e.move(t, o, e.admin, order.StatusInReview, order.Payload{})
	o = e.move(t, o, e.admin, order.StatusCanceled, order.Payload{CancelReason: "duplicate"})
	assert.Equal(t, int64(10), e.balance(t).Recording)
	require.True(t, o.Reversed())

	o, err := e.orders.Reopen(ctx, e.admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, int64(10), e.balance(t).Recording)

	o = e.move(t, o, e.admin, order.StatusInReview, order.Payload{})
	e.move(t, o, e.admin, order.StatusCanceled, order.Payload{})
	assert.Equal(t, int64(10), e.balance(t).Recording)

	require.NoError(t, e.orders.Delete(ctx, e.admin, o.ID))
	assert.Equal(t, int64(10), e.balance(t).Recording)

	history, err := e.credits.History(ctx, e.client.AccountID)
	require.NoError(t, err)

	reversals := 0

	for _, h := range history {
		if h.Batch.Source == credit.SourceReversal {
			reversals++
		}
	}

	assert.Equal(t, 1, reversals)
}

func TestStaleTransition(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.grant(t, 10, 0, nil)

	o := e.createOrder(t, 2)
	o = e.move(t, o, e.admin, order.StatusInReview, order.Payload{})
	o = e.move(t, o, e.admin, order.StatusInProduction, order.Payload{})

	e.move(t, o, e.admin, order.StatusCompleted, order.Payload{})

	_, err := e.orders.Transition(ctx, e.admin, order.TransitionParams{
		OrderID:  o.ID,
		Expected: order.StatusInProduction,
		To:       order.StatusCanceled,
	})
	require.ErrorIs(t, err, apperr.ErrStaleState)
	assert.Equal(t, int64(8), e.balance(t).Recording)
}

func TestAwaitingClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.grant(t, 10, 0, nil)

	o := e.createOrder(t, 2)
	o = e.move(t, o, e.admin, order.StatusInReview, order.Payload{})
	o = e.move(t, o, e.admin, order.StatusInProduction, order.Payload{})

	_, err := e.orders.Transition(ctx, e.admin, order.TransitionParams{
		OrderID:  o.ID,
		Expected: order.StatusInProduction,
		To:       order.StatusAwaitingClient,
	})
	require.ErrorIs(t, err, apperr.ErrMissingRequiredField)

	o = e.move(t, o, e.admin, order.StatusAwaitingClient, order.Payload{AdminMessage: "male or female voice?"})
	o = e.move(t, o, e.client, order.StatusInReview, order.Payload{ResponseText: "female"})
	assert.Equal(t, "female", *o.ClientResponseText)
	assert.Equal(t, "male or female voice?", *o.AdminMessage)
}

func TestSinglePendingRevision(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.grant(t, 10, 0, nil)

	o := e.createOrder(t, 2)
	o = e.move(t, o, e.admin, order.StatusInReview, order.Payload{})
	o = e.move(t, o, e.admin, order.StatusInProduction, order.Payload{})
	o = e.move(t, o, e.admin, order.StatusCompleted, order.Payload{})

	first, err := e.revisions.Request(ctx, e.client, revision.RequestParams{OrderID: o.ID, Description: "louder"})
	require.NoError(t, err)

	_, err = e.revisions.Request(ctx, e.client, revision.RequestParams{OrderID: o.ID, Description: "again"})
	require.ErrorIs(t, err, apperr.ErrRevisionAlreadyPending)

	_, err = e.revisions.Process(ctx, e.admin, revision.ProcessParams{RevisionID: first.ID, To: revision.StatusInProgress})
	require.NoError(t, err)

	_, err = e.revisions.Process(ctx, e.admin, revision.ProcessParams{
		RevisionID: first.ID,
		To:         revision.StatusFinalized,
		AudioURL:   "https://cdn/v1.mp3",
	})
	require.NoError(t, err)

	second, err := e.revisions.Request(ctx, e.client, revision.RequestParams{OrderID: o.ID, Description: "softer"})
	require.NoError(t, err)

	_, err = e.revisions.Process(ctx, e.admin, revision.ProcessParams{RevisionID: second.ID, To: revision.StatusInProgress})
	require.NoError(t, err)

	_, err = e.revisions.Process(ctx, e.admin, revision.ProcessParams{RevisionID: second.ID, To: revision.StatusDenied})
	require.ErrorIs(t, err, apperr.ErrMissingRequiredField)

	_, err = e.revisions.Process(ctx, e.admin, revision.ProcessParams{
		RevisionID:    second.ID,
		To:            revision.StatusDenied,
		AdminFeedback: "matches the approved script",
	})
	require.NoError(t, err)

	third, err := e.revisions.Request(ctx, e.client, revision.RequestParams{OrderID: o.ID, Description: "one more"})
	require.NoError(t, err)

	_, err = e.revisions.Process(ctx, e.admin, revision.ProcessParams{
		RevisionID:    third.ID,
		To:            revision.StatusInfoRequested,
		AdminFeedback: "which word?",
	})
	require.NoError(t, err)

	_, err = e.revisions.Respond(ctx, e.client, revision.RespondParams{RevisionID: third.ID})
	require.ErrorIs(t, err, apperr.ErrMissingRequiredField)

	_, err = e.revisions.Respond(ctx, e.client, revision.RespondParams{RevisionID: third.ID, ResponseText: "the brand name"})
	require.NoError(t, err)

	third, err = e.revisions.Process(ctx, e.admin, revision.ProcessParams{
		RevisionID: third.ID,
		To:         revision.StatusFinalized,
		AudioURL:   "https://cdn/v2.mp3",
	})
	require.NoError(t, err)
	require.Len(t, third.Versions, 1)
	assert.Equal(t, 2, third.Versions[0].VersionNumber)

	revs, err := e.revisions.ListForOrder(ctx, e.client, o.ID)
	require.NoError(t, err)
	require.Len(t, revs, 3)
	assert.Equal(t, revision.StatusFinalized, revs[0].Status)
	assert.Len(t, revs[0].Versions, 1)
	assert.Equal(t, revision.StatusDenied, revs[1].Status)
	assert.Empty(t, revs[1].Versions)

	assert.Equal(t, int64(8), e.balance(t).Recording)
}

func TestRevisionRequiresCompletedOrder(t *testing.T) {
	e := newEnv(t)
	e.grant(t, 10, 0, nil)

	o := e.createOrder(t, 2)

	_, err := e.revisions.Request(context.Background(), e.client, revision.RequestParams{OrderID: o.ID, Description: "x"})
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)

	revs, err := e.revisions.ListForOrder(context.Background(), e.admin, o.ID)
	require.NoError(t, err)
	assert.Empty(t, revs)
}

func TestAdminAdjustOverdraft(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.grant(t, 3, 0, nil)

	_, err := e.credits.AdminAdjust(ctx, credit.AdjustParams{AccountID: e.client.AccountID, RecordingDelta: -5})
	require.ErrorIs(t, err, apperr.ErrMissingRequiredField)

	created, err := e.credits.AdminAdjust(ctx, credit.AdjustParams{
		AccountID:      e.client.AccountID,
		RecordingDelta: -5,
		Observation:    "chargeback",
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, credit.SourceOverdraft, created[0].Source)
	assert.Equal(t, int64(-2), e.balance(t).Recording)

	_, err = e.credits.AdminAdjust(ctx, credit.AdjustParams{
		AccountID:      e.client.AccountID,
		RecordingDelta: 4,
		AIDelta:        1,
		Observation:    "courtesy",
	})
	require.NoError(t, err)
	assert.Equal(t, credit.Balance{Recording: 2, AI: 1}, e.balance(t))
}

func TestFailedCreateLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.grant(t, 3, 0, nil)

	_, err := e.orders.Create(ctx, e.client, order.CreateParams{
		AccountID:        e.client.AccountID,
		SpeakerID:        uuid.New(),
		ScriptText:       "spot",
		AudioKind:        order.AudioOff,
		CreditKind:       credit.KindRecording,
		EstimatedCredits: 4,
	})
	require.ErrorIs(t, err, apperr.ErrInsufficientCredits)

	orders, err := e.orders.List(ctx, e.admin, order.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Equal(t, int64(3), e.balance(t).Recording)
}

func TestGrantImportConflicts(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.credits.Grant(ctx, credit.GrantParams{AccountID: e.client.AccountID, Recording: 5, Reference: "PAY-1"})
	require.NoError(t, err)

	_, err = e.credits.Grant(ctx, credit.GrantParams{AccountID: e.client.AccountID, Recording: 5, Reference: "PAY-1"})
	require.ErrorIs(t, err, apperr.ErrAlreadyExists)

	params := []credit.GrantParams{
		{AccountID: e.client.AccountID, Recording: 5, Reference: "PAY-1"},
		{AccountID: e.client.AccountID, AI: 3, Reference: "PAY-2"},
	}

	res, err := e.credits.ImportGrants(ctx, params)
	require.NoError(t, err)
	assert.Empty(t, res.Granted)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "PAY-1", res.Conflicts[0].Existing.Reference)
	require.Len(t, res.New, 1)
	assert.Equal(t, credit.Balance{Recording: 5}, e.balance(t))

	granted, err := e.credits.CreateGrants(ctx, res.New)
	require.NoError(t, err)
	assert.Len(t, granted, 1)
	assert.Equal(t, credit.Balance{Recording: 5, AI: 3}, e.balance(t))
}

func TestVoidBatch(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	b := e.grant(t, 5, 0, nil)
	require.NoError(t, e.credits.Debit(ctx, e.client.AccountID, credit.KindRecording, 2))

	_, err := e.credits.VoidBatch(ctx, b.ID, "")
	require.ErrorIs(t, err, apperr.ErrMissingRequiredField)

	voided, err := e.credits.VoidBatch(ctx, b.ID, "refunded at the gateway")
	require.NoError(t, err)
	assert.Equal(t, credit.StatusVoid, voided.Status)
	assert.Equal(t, credit.Balance{}, e.balance(t))

	history, err := e.credits.History(ctx, e.client.AccountID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), history[0].RecordingForfeited)

	_, err = e.credits.VoidBatch(ctx, uuid.New(), "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStatsSnapshot(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.grant(t, 10, 0, nil)

	o := e.createOrder(t, 2)
	e.createOrder(t, 3)
	o = e.move(t, o, e.admin, order.StatusInReview, order.Payload{})
	o = e.move(t, o, e.admin, order.StatusInProduction, order.Payload{})
	o = e.move(t, o, e.admin, order.StatusCompleted, order.Payload{})

	_, err := e.revisions.Request(ctx, e.client, revision.RequestParams{OrderID: o.ID, Description: "faster"})
	require.NoError(t, err)

	snap, err := e.stats.Snapshot(ctx, e.admin)
	require.NoError(t, err)

	assert.Equal(t, 1, snap.ActiveClients)
	assert.Equal(t, int64(5), snap.Outstanding.Recording)
	assert.Equal(t, 1, snap.PendingOrders)
	assert.Equal(t, 1, snap.OrdersByStatus[order.StatusInRevision])
	assert.Equal(t, 1, snap.PendingRevisions)

	_, err = e.stats.Snapshot(ctx, e.client)
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestEventsFollowCommits(t *testing.T) {
	e := newEnv(t)
	e.grant(t, 1, 0, nil)

	_, err := e.orders.Create(context.Background(), e.client, order.CreateParams{
		AccountID:        e.client.AccountID,
		SpeakerID:        uuid.New(),
		ScriptText:       "spot",
		AudioKind:        order.AudioOff,
		CreditKind:       credit.KindRecording,
		EstimatedCredits: 2,
	})
	require.Error(t, err)

	assert.Equal(t, []events.Kind{events.KindCreditsChanged}, e.events.Kinds())
}

func TestTxRollbackAfterCommit(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	tx, err := s.Credits().Begin(ctx)
	require.NoError(t, err)

	b := &credit.Batch{AccountID: uuid.New(), Status: credit.StatusActive, RecordingAdded: 1, AddedAt: time.Now()}
	require.NoError(t, tx.CreateBatch(ctx, b))
	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback())

	batches, err := s.Credits().ListBatches(ctx, b.AccountID)
	require.NoError(t, err)
	assert.Len(t, batches, 1)

	tx, err = s.Credits().Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateBatch(ctx, &credit.Batch{AccountID: b.AccountID, AddedAt: time.Now()}))
	require.NoError(t, tx.Rollback())

	batches, err = s.Credits().ListBatches(ctx, b.AccountID)
	require.NoError(t, err)
	assert.Len(t, batches, 1)

	canceled, cancel := context.WithCancel(ctx)
	cancel()

	_, err = s.Credits().Begin(canceled)
	require.True(t, errors.Is(err, context.Canceled))
}
