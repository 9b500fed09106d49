// Package domain provides the core vocabulary shared by every event-sourced
// aggregate: events, envelopes, snapshots, the aggregate/command-handler
// contracts, the ambient request Context, the structured Error model, and
// the Logger interface implementations are written against.
//
// The package has no dependency on any concrete storage, transport, or
// logging backend; those live in eventstore, memstore, gormstore, dispatch,
// and infrastructure.
package domain

import "time"

// Event is an immutable fact about something that already happened to an
// aggregate. Applications declare their own closed set of event types per
// aggregate and recover the concrete type with a type switch inside
// Aggregate.Apply — there is deliberately no generic Event[T] parameter,
// since the event types for a single aggregate form a small closed sum that
// a switch expresses more plainly than a type hierarchy would.
//
// Event names are past tense: AccountOpened, FundsDeposited, ItemCompleted.
type Event interface {
	// EventType is a stable identifier used for serialization and for
	// routing in dispatchers, e.g. "account.deposited".
	EventType() string
}

// Envelope frames an Event with the bookkeeping a journal needs: identity,
// the aggregate it belongs to, the version it landed at, and when the
// engine stamped it during commit.
type Envelope struct {
	EventID     string
	AggregateID string
	Version     int
	Event       Event
	Metadata    map[string]any
	At          time.Time
}

// Snapshot is a versioned checkpoint of an aggregate's folded state, used
// to bound replay cost: loading an aggregate means fetching its latest
// snapshot and folding only the events committed after it.
type Snapshot[A any] struct {
	AggregateID string
	Version     int
	State       A
}
