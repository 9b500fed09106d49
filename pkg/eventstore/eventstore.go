package eventstore

import (
	"context"

	"github.com/lumenly/eventcore/pkg/domain"
)

// EventStore wraps a Storage port with the commit protocol and aggregate
// replay logic that every backend shares. NewState builds a zero-valued
// aggregate instance — used both as the starting point for replay when no
// snapshot exists and as the state a brand-new aggregate folds into.
type EventStore[A domain.Aggregate] struct {
	storage  Storage[A]
	newState func() A
}

// New wraps storage with the shared commit and replay logic.
func New[A domain.Aggregate](storage Storage[A], newState func() A) *EventStore[A] {
	return &EventStore[A]{storage: storage, newState: newState}
}

// AggregateType returns the aggregate type name A reports, without
// requiring a live instance — used where only the type name is needed
// (e.g. a read-side adapter's TypeName).
func (es *EventStore[A]) AggregateType() string {
	return es.newState().AggregateType()
}

// InitializeAggregate is the starting point for a create command: it
// checks aggregateID has no existing snapshot or journal and, if so,
// returns a fresh, unversioned aggregate instance. An id that already has
// a snapshot or any committed events returns AggregateAlreadyExists,
// satisfying the one-shot create contract without relying on a
// version-0 commit race to surface the conflict.
func (es *EventStore[A]) InitializeAggregate(ctx context.Context, cctx domain.Context, aggregateID string) (A, error) {
	var zero A

	snapshot, err := es.storage.FetchSnapshot(ctx, aggregateID)
	if err != nil {
		return zero, domain.NewDatabaseError(err, cctx.RequestID())
	}
	if snapshot != nil {
		return zero, domain.NewAggregateAlreadyExists(es.AggregateType(), aggregateID, cctx.RequestID())
	}

	page, err := es.storage.FetchEventsPaged(ctx, aggregateID, 1, 1)
	if err != nil {
		return zero, domain.NewDatabaseError(err, cctx.RequestID())
	}
	if page.Total > 0 {
		return zero, domain.NewAggregateAlreadyExists(es.AggregateType(), aggregateID, cctx.RequestID())
	}

	return es.newState(), nil
}

// LoadAggregate reconstructs an aggregate by fetching its latest snapshot
// (if any) and folding every event committed after it. It returns
// AggregateNotFound when neither a snapshot nor any events exist.
func (es *EventStore[A]) LoadAggregate(ctx context.Context, cctx domain.Context, aggregateID string) (A, int, error) {
	var zero A

	snapshot, err := es.storage.FetchSnapshot(ctx, aggregateID)
	if err != nil {
		return zero, 0, domain.NewDatabaseError(err, cctx.RequestID())
	}

	state := es.newState()
	version := 0
	if snapshot != nil {
		state = snapshot.State
		version = snapshot.Version
	}

	seen := false
	for item := range es.storage.FetchEventsFromVersion(ctx, aggregateID, version+1) {
		if item.Err != nil {
			return zero, 0, domain.NewDatabaseError(item.Err, cctx.RequestID())
		}
		state.Apply(item.Envelope.Event)
		version = item.Envelope.Version
		seen = true
	}

	if snapshot == nil && !seen {
		return zero, 0, domain.NewAggregateNotFound(state.AggregateType(), aggregateID, cctx.RequestID())
	}

	return state, version, nil
}

// LoadEventsFromVersion exposes the raw replay stream for callers (e.g.
// ViewDispatcher backfills) that need envelopes rather than folded state.
func (es *EventStore[A]) LoadEventsFromVersion(ctx context.Context, aggregateID string, fromVersion int) EventStream {
	return es.storage.FetchEventsFromVersion(ctx, aggregateID, fromVersion)
}

// Commit runs the nine-step optimistic-concurrency commit protocol: start a
// session, fetch the latest event to discover (and lock) the current
// version, compare it against expectedVersion, stamp and persist the new
// events, persist a snapshot of state at the resulting version, and close
// the session. Any failure along the way aborts the session and returns an
// error without partial effects.
//
// state must already reflect newEvents applied on top of the aggregate as
// observed at expectedVersion — Commit does not call Apply itself, it only
// persists.
func (es *EventStore[A]) Commit(
	ctx context.Context,
	cctx domain.Context,
	aggregateID string,
	state A,
	expectedVersion int,
	newEvents []domain.Event,
	metadata map[string]any,
) ([]domain.Envelope, error) {
	session, err := es.storage.StartSession(ctx, aggregateID)
	if err != nil {
		return nil, domain.NewDatabaseError(err, cctx.RequestID())
	}

	latest, err := es.storage.FetchLatestEvent(ctx, aggregateID, session)
	if err != nil {
		_ = es.storage.AbortSession(ctx, session)
		return nil, domain.NewDatabaseError(err, cctx.RequestID())
	}

	actualVersion := 0
	if latest != nil {
		actualVersion = latest.Version
	}
	if actualVersion != expectedVersion {
		_ = es.storage.AbortSession(ctx, session)
		return nil, domain.NewConcurrencyError(aggregateID, expectedVersion, actualVersion, cctx.RequestID())
	}

	if len(newEvents) == 0 {
		if err := es.storage.CloseSession(ctx, session); err != nil {
			return nil, domain.NewDatabaseError(err, cctx.RequestID())
		}
		return nil, nil
	}

	at := cctx.Now()
	envelopes := make([]domain.Envelope, len(newEvents))
	for i, event := range newEvents {
		envelopes[i] = domain.Envelope{
			EventID:     cctx.NextUUID(),
			AggregateID: aggregateID,
			Version:     expectedVersion + i + 1,
			Event:       event,
			Metadata:    metadata,
			At:          at,
		}
	}

	if err := es.storage.SaveEvents(ctx, envelopes, session); err != nil {
		_ = es.storage.AbortSession(ctx, session)
		return nil, domain.NewDatabaseError(err, cctx.RequestID())
	}

	snapshot := domain.Snapshot[A]{
		AggregateID: aggregateID,
		Version:     expectedVersion + len(newEvents),
		State:       state,
	}
	if err := es.storage.SaveSnapshot(ctx, snapshot, session); err != nil {
		_ = es.storage.AbortSession(ctx, session)
		return nil, domain.NewDatabaseError(err, cctx.RequestID())
	}

	if err := es.storage.CloseSession(ctx, session); err != nil {
		return nil, domain.NewDatabaseError(err, cctx.RequestID())
	}

	return envelopes, nil
}
