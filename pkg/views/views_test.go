package views_test

import (
	"context"
	"testing"

	"github.com/lumenly/eventcore/pkg/domain"
	"github.com/lumenly/eventcore/pkg/eventstore"
	"github.com/lumenly/eventcore/pkg/fixtures"
	"github.com/lumenly/eventcore/pkg/memstore"
	"github.com/lumenly/eventcore/pkg/memview"
	"github.com/lumenly/eventcore/pkg/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// accountSummary is a denormalized read model for fixtures.Account: the
// owner and balance, keyed by the account id.
type accountSummary struct {
	AccountID string
	Owner     string
	Balance   int64
}

func (s accountSummary) ViewID() string { return s.AccountID }

func (s accountSummary) Update(envelope domain.Envelope) (accountSummary, bool) {
	switch e := envelope.Event.(type) {
	case fixtures.AccountOpened:
		s.AccountID = e.AccountID
		s.Owner = e.Owner
		return s, true
	case fixtures.FundsDeposited:
		s.Balance += e.Amount
		return s, true
	case fixtures.FundsWithdrawn:
		s.Balance -= e.Amount
		return s, true
	default:
		return s, false
	}
}

func TestViewDispatcherProjectsEventsIntoSummary(t *testing.T) {
	ctx := context.Background()
	cctx := domain.NewContext("tester")

	storage := memstore.New[*fixtures.Account]()
	store := eventstore.New[*fixtures.Account](storage, func() *fixtures.Account { return &fixtures.Account{} })

	readStorage := memview.New[accountSummary]("accountSummary")
	dispatcher := views.NewViewDispatcher[*fixtures.Account, accountSummary](
		readStorage,
		func(e domain.Envelope) string { return e.AggregateID },
		func(id string) accountSummary { return accountSummary{AccountID: id} },
	)

	acc := &fixtures.Account{ID: "acc-1"}
	events, err := acc.HandleCreate(fixtures.OpenAccount{Owner: "alice"}, nil)
	require.NoError(t, err)
	for _, e := range events {
		acc.Apply(e)
	}
	envelopes, err := store.Commit(ctx, cctx, acc.ID, acc, 0, events, nil)
	require.NoError(t, err)
	require.NoError(t, dispatcher.Dispatch(ctx, acc.ID, envelopes))

	deposit := int64(50)
	more, err := acc.HandleUpdate(fixtures.UpdateAccount{Deposit: &deposit}, nil)
	require.NoError(t, err)
	for _, e := range more {
		acc.Apply(e)
	}
	envelopes, err = store.Commit(ctx, cctx, acc.ID, acc, 1, more, nil)
	require.NoError(t, err)
	require.NoError(t, dispatcher.Dispatch(ctx, acc.ID, envelopes))

	view, err := readStorage.FindByID(ctx, nil, "acc-1")
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, "alice", view.Owner)
	assert.Equal(t, int64(50), view.Balance)
}

func TestSnapshotViewFindByIDReadsThroughToLatestState(t *testing.T) {
	ctx := context.Background()
	cctx := domain.NewContext("tester")

	storage := memstore.New[*fixtures.Account]()
	store := eventstore.New[*fixtures.Account](storage, func() *fixtures.Account { return &fixtures.Account{} })

	acc := &fixtures.Account{ID: "acc-1"}
	events, err := acc.HandleCreate(fixtures.OpenAccount{Owner: "bob"}, nil)
	require.NoError(t, err)
	for _, e := range events {
		acc.Apply(e)
	}
	_, err = store.Commit(ctx, cctx, acc.ID, acc, 0, events, nil)
	require.NoError(t, err)

	sv := views.NewSnapshotView[*fixtures.Account](store, cctx)
	assert.Equal(t, "account", sv.TypeName())

	view, err := sv.FindByID(ctx, nil, "acc-1")
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, "bob", view.State.Owner)

	err = sv.Save(ctx, *view)
	assert.ErrorIs(t, err, views.ErrSnapshotViewReadOnly)
}

func TestSnapshotViewFindByIDReturnsNilForMissingAggregate(t *testing.T) {
	ctx := context.Background()
	cctx := domain.NewContext("tester")

	storage := memstore.New[*fixtures.Account]()
	store := eventstore.New[*fixtures.Account](storage, func() *fixtures.Account { return &fixtures.Account{} })
	sv := views.NewSnapshotView[*fixtures.Account](store, cctx)

	view, err := sv.FindByID(ctx, nil, "missing")
	require.NoError(t, err)
	assert.Nil(t, view)
}
