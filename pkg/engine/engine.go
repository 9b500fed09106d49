// Package engine drives command execution against a single aggregate
// type: it validates a command through the aggregate's CommandHandler,
// commits the resulting events through an eventstore.EventStore, and fans
// the committed envelopes out to dispatchers.
package engine

import (
	"context"

	"github.com/lumenly/eventcore/pkg/domain"
	"github.com/lumenly/eventcore/pkg/eventstore"
)

// Dispatcher receives the envelopes committed by one call to ExecuteCreate
// or ExecuteUpdate. Dispatchers run sequentially in registration order; a
// dispatcher's error never unwinds the commit that already succeeded, it
// is only reported to the engine's error handler.
type Dispatcher[A domain.Aggregate] interface {
	Dispatch(ctx context.Context, aggregateID string, envelopes []domain.Envelope) error
}

// ErrorHandler is invoked, synchronously and non-blocking, whenever a
// dispatcher returns an error. It is the only error class an engine
// swallows — dispatch failures are handled on a best-effort,
// eventually-consistent basis rather than rolled back, since the events
// they operate on are already durably committed.
type ErrorHandler func(dispatcherName string, err error)

// Engine executes create and update commands against a single aggregate
// type A, whose creation and update commands are C and U respectively.
type Engine[A domain.CommandHandler[C, U], C any, U any] struct {
	store        *eventstore.EventStore[A]
	services     any
	dispatchers  []namedDispatcher[A]
	errorHandler ErrorHandler
}

type namedDispatcher[A domain.Aggregate] struct {
	name string
	d    Dispatcher[A]
}

// idSetter is implemented by aggregates that need the engine to assign
// their id before HandleCreate runs, since a brand-new aggregate has
// nowhere else to learn it from.
type idSetter interface {
	SetID(string)
}

// New builds an Engine over store, with services made available to every
// command handler call and errorHandler invoked for dispatcher failures.
// A nil errorHandler silently discards dispatcher errors.
func New[A domain.CommandHandler[C, U], C any, U any](
	store *eventstore.EventStore[A],
	services any,
	errorHandler ErrorHandler,
) *Engine[A, C, U] {
	if errorHandler == nil {
		errorHandler = func(string, error) {}
	}
	return &Engine[A, C, U]{store: store, services: services, errorHandler: errorHandler}
}

// AppendDispatcher registers a dispatcher to run, after construction, in
// addition to any already registered. Dispatchers run in the order they
// were appended.
func (e *Engine[A, C, U]) AppendDispatcher(name string, d Dispatcher[A]) {
	e.dispatchers = append(e.dispatchers, namedDispatcher[A]{name: name, d: d})
}

// ExecuteCreate brings a new aggregate into existence: it assigns the
// aggregate id from the context's UUID source, runs the create command
// through the aggregate's HandleCreate, commits the resulting events at
// expected version 0, and dispatches them. It is equivalent to calling
// ExecuteCreateWithMetadata with an empty metadata map.
func (e *Engine[A, C, U]) ExecuteCreate(ctx context.Context, cctx domain.Context, cmd C) (string, error) {
	return e.ExecuteCreateWithMetadata(ctx, cctx, cmd, nil)
}

// ExecuteCreateWithMetadata is ExecuteCreate with caller-supplied metadata
// merged into the committed envelopes' metadata. Engine-injected entries
// (user_id, request_id) are defaults: a caller-supplied key of the same
// name wins.
func (e *Engine[A, C, U]) ExecuteCreateWithMetadata(ctx context.Context, cctx domain.Context, cmd C, metadata map[string]any) (string, error) {
	aggregateID := cctx.NextUUID()

	state, err := e.store.InitializeAggregate(ctx, cctx, aggregateID)
	if err != nil {
		return "", err
	}
	if setter, ok := any(state).(idSetter); ok {
		setter.SetID(aggregateID)
	}

	events, err := state.HandleCreate(cmd, e.services)
	if err != nil {
		return "", stampRequestID(err, cctx.RequestID())
	}

	for _, ev := range events {
		state.Apply(ev)
	}

	merged := mergeMetadata(cctx, metadata)

	envelopes, err := e.store.Commit(ctx, cctx, aggregateID, state, 0, events, merged)
	if err != nil {
		if coreErr, ok := err.(*domain.Error); ok && coreErr.Code == "CONCURRENCY_ERROR" {
			return "", domain.NewAggregateAlreadyExists(state.AggregateType(), aggregateID, cctx.RequestID())
		}
		return "", err
	}

	if len(envelopes) == 0 {
		return aggregateID, nil
	}

	e.dispatch(ctx, aggregateID, envelopes)
	return aggregateID, nil
}

// ExecuteUpdate loads the aggregate, runs cmd through HandleUpdate,
// commits the resulting events at the version the aggregate was loaded
// at, and dispatches them. A command that produces no events commits and
// dispatches nothing — HandleUpdate's no-op case never touches storage.
func (e *Engine[A, C, U]) ExecuteUpdate(ctx context.Context, cctx domain.Context, aggregateID string, cmd U) error {
	return e.ExecuteUpdateWithMetadata(ctx, cctx, aggregateID, cmd, nil)
}

// ExecuteUpdateWithMetadata is ExecuteUpdate with caller-supplied metadata
// merged the same way ExecuteCreateWithMetadata merges it.
func (e *Engine[A, C, U]) ExecuteUpdateWithMetadata(ctx context.Context, cctx domain.Context, aggregateID string, cmd U, metadata map[string]any) error {
	state, version, err := e.store.LoadAggregate(ctx, cctx, aggregateID)
	if err != nil {
		return err
	}

	events, err := state.HandleUpdate(cmd, e.services)
	if err != nil {
		return stampRequestID(err, cctx.RequestID())
	}
	if len(events) == 0 {
		return nil
	}

	for _, ev := range events {
		state.Apply(ev)
	}

	merged := mergeMetadata(cctx, metadata)

	envelopes, err := e.store.Commit(ctx, cctx, aggregateID, state, version, events, merged)
	if err != nil {
		return err
	}
	if len(envelopes) == 0 {
		return nil
	}

	e.dispatch(ctx, aggregateID, envelopes)
	return nil
}

func (e *Engine[A, C, U]) dispatch(ctx context.Context, aggregateID string, envelopes []domain.Envelope) {
	for _, nd := range e.dispatchers {
		if err := nd.d.Dispatch(ctx, aggregateID, envelopes); err != nil {
			e.errorHandler(nd.name, err)
		}
	}
}

// stampRequestID wraps a command handler's error as a USER_ERROR unless it
// is already a structured *domain.Error, in which case it is returned with
// its request id filled in rather than re-wrapped, preserving its Code and
// Details.
func stampRequestID(err error, requestID string) error {
	if coreErr, ok := err.(*domain.Error); ok {
		if coreErr.RequestID == "" {
			coreErr.RequestID = requestID
		}
		return coreErr
	}
	return domain.NewUserError(err.Error(), requestID, nil)
}

// mergeMetadata layers caller-supplied metadata over the engine's own
// defaults (user_id, request_id): caller keys win on collision.
func mergeMetadata(cctx domain.Context, metadata map[string]any) map[string]any {
	merged := map[string]any{
		"user_id":    cctx.Actor(),
		"request_id": cctx.RequestID(),
	}
	for k, v := range metadata {
		merged[k] = v
	}
	return merged
}
