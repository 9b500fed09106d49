package engine_test

import (
	"context"
	"sync"
	"testing"

	"github.com/lumenly/eventcore/pkg/domain"
	"github.com/lumenly/eventcore/pkg/engine"
	"github.com/lumenly/eventcore/pkg/eventstore"
	"github.com/lumenly/eventcore/pkg/fixtures"
	"github.com/lumenly/eventcore/pkg/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccountEngine() (*engine.Engine[*fixtures.Account, fixtures.OpenAccount, fixtures.UpdateAccount], *eventstore.EventStore[*fixtures.Account]) {
	storage := memstore.New[*fixtures.Account]()
	store := eventstore.New[*fixtures.Account](storage, func() *fixtures.Account { return &fixtures.Account{} })
	e := engine.New[*fixtures.Account, fixtures.OpenAccount, fixtures.UpdateAccount](store, nil, nil)
	return e, store
}

func TestEngineExecuteCreateAssignsIDAndPersistsOneEvent(t *testing.T) {
	ctx := context.Background()
	cctx := domain.NewContext("tester")
	e, store := newAccountEngine()

	id, err := e.ExecuteCreate(ctx, cctx, fixtures.OpenAccount{Owner: "alice"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	loaded, version, err := store.LoadAggregate(ctx, cctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.Equal(t, "alice", loaded.Owner)
}

func TestEngineExecuteCreateRejectsInvalidCommand(t *testing.T) {
	ctx := context.Background()
	cctx := domain.NewContext("tester")
	e, _ := newAccountEngine()

	_, err := e.ExecuteCreate(ctx, cctx, fixtures.OpenAccount{Owner: ""})
	require.Error(t, err)

	coreErr, ok := err.(*domain.Error)
	require.True(t, ok)
	assert.Equal(t, "USER_ERROR", coreErr.Code)
	assert.Equal(t, cctx.RequestID(), coreErr.RequestID)
}

func TestEngineExecuteUpdateAppliesMultipleCommandsInSequence(t *testing.T) {
	ctx := context.Background()
	cctx := domain.NewContext("tester")
	e, store := newAccountEngine()

	id, err := e.ExecuteCreate(ctx, cctx, fixtures.OpenAccount{Owner: "bob"})
	require.NoError(t, err)

	deposit := int64(100)
	require.NoError(t, e.ExecuteUpdate(ctx, cctx, id, fixtures.UpdateAccount{Deposit: &deposit}))

	withdraw := int64(30)
	require.NoError(t, e.ExecuteUpdate(ctx, cctx, id, fixtures.UpdateAccount{Withdraw: &withdraw}))

	loaded, version, err := store.LoadAggregate(ctx, cctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, version)
	assert.Equal(t, int64(70), loaded.Balance)
}

func TestEngineExecuteUpdateWithNoEventsDoesNotDispatch(t *testing.T) {
	ctx := context.Background()
	cctx := domain.NewContext("tester")
	e, _ := newAccountEngine()

	id, err := e.ExecuteCreate(ctx, cctx, fixtures.OpenAccount{Owner: "carol"})
	require.NoError(t, err)

	calls := 0
	e.AppendDispatcher("counter", dispatcherFunc(func(context.Context, string, []domain.Envelope) error {
		calls++
		return nil
	}))

	// An UpdateAccount with no fields set produces no events.
	require.NoError(t, e.ExecuteUpdate(ctx, cctx, id, fixtures.UpdateAccount{}))
	assert.Equal(t, 0, calls)
}

func TestEngineDispatchersRunSequentiallyInRegistrationOrder(t *testing.T) {
	ctx := context.Background()
	cctx := domain.NewContext("tester")
	e, _ := newAccountEngine()

	var mu sync.Mutex
	var order []string
	e.AppendDispatcher("first", dispatcherFunc(func(context.Context, string, []domain.Envelope) error {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
		return nil
	}))
	e.AppendDispatcher("second", dispatcherFunc(func(context.Context, string, []domain.Envelope) error {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
		return nil
	}))

	_, err := e.ExecuteCreate(ctx, cctx, fixtures.OpenAccount{Owner: "dave"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestEngineDispatcherErrorDoesNotFailCommit(t *testing.T) {
	ctx := context.Background()
	cctx := domain.NewContext("tester")
	_, store := newAccountEngine()

	var reported string
	e := engine.New[*fixtures.Account, fixtures.OpenAccount, fixtures.UpdateAccount](
		store, nil,
		func(name string, err error) { reported = name },
	)
	e.AppendDispatcher("flaky", dispatcherFunc(func(context.Context, string, []domain.Envelope) error {
		return assert.AnError
	}))

	id, err := e.ExecuteCreate(ctx, cctx, fixtures.OpenAccount{Owner: "erin"})
	require.NoError(t, err)
	assert.Equal(t, "flaky", reported)

	_, version, err := store.LoadAggregate(ctx, cctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestEngineExecuteUpdateOnMissingAggregateIsNotFound(t *testing.T) {
	ctx := context.Background()
	cctx := domain.NewContext("tester")
	e, _ := newAccountEngine()

	deposit := int64(10)
	err := e.ExecuteUpdate(ctx, cctx, "missing", fixtures.UpdateAccount{Deposit: &deposit})
	require.Error(t, err)

	coreErr, ok := err.(*domain.Error)
	require.True(t, ok)
	assert.Equal(t, "AGGREGATE_NOT_FOUND", coreErr.Code)
}

func TestEngineExecuteCreateWithMetadataMergesCallerKeysOverDefaults(t *testing.T) {
	ctx := context.Background()
	cctx := domain.NewContext("tester")
	e, _ := newAccountEngine()

	var captured []domain.Envelope
	e.AppendDispatcher("capture", dispatcherFunc(func(_ context.Context, _ string, envelopes []domain.Envelope) error {
		captured = envelopes
		return nil
	}))

	_, err := e.ExecuteCreateWithMetadata(ctx, cctx, fixtures.OpenAccount{Owner: "frank"}, map[string]any{"user_id": "override"})
	require.NoError(t, err)
	require.Len(t, captured, 1)
	assert.Equal(t, "override", captured[0].Metadata["user_id"])
	assert.Equal(t, cctx.RequestID(), captured[0].Metadata["request_id"])
}

// TestEngineExecuteCreateOnCollidingIDIsAggregateAlreadyExists covers
// scenario S4: calling create for an id whose journal already has an
// envelope returns aggregate_already_exists rather than silently
// overwriting it. A fixed rand source forces both calls to draw the same
// id from cctx.NextUUID.
func TestEngineExecuteCreateOnCollidingIDIsAggregateAlreadyExists(t *testing.T) {
	ctx := context.Background()
	cctx := domain.NewContext("tester").WithRandBytes([16]byte{})
	e, _ := newAccountEngine()

	firstID, err := e.ExecuteCreate(ctx, cctx, fixtures.OpenAccount{Owner: "alice"})
	require.NoError(t, err)

	secondID, err := e.ExecuteCreate(ctx, cctx, fixtures.OpenAccount{Owner: "mallory"})
	require.Empty(t, secondID)
	require.Error(t, err)

	coreErr, ok := err.(*domain.Error)
	require.True(t, ok)
	assert.Equal(t, "AGGREGATE_ALREADY_EXISTS", coreErr.Code)
	assert.Equal(t, firstID, cctx.NextUUID())
}

type dispatcherFunc func(ctx context.Context, aggregateID string, envelopes []domain.Envelope) error

func (f dispatcherFunc) Dispatch(ctx context.Context, aggregateID string, envelopes []domain.Envelope) error {
	return f(ctx, aggregateID, envelopes)
}
