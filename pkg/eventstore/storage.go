// Package eventstore defines the storage port every backend implements
// (memstore, gormstore, ...) and the commit protocol that turns a batch of
// domain events into durably persisted, versioned envelopes.
package eventstore

import (
	"context"

	"github.com/lumenly/eventcore/pkg/domain"
)

// Session is an opaque handle a Storage implementation hands back from
// StartSession and expects back on every subsequent call in the same
// unit of work. Storage implementations type-assert it to their own
// concrete session type (a held mutex pair for memstore, a *gorm.DB
// transaction for gormstore); callers outside the storage package never
// look inside it.
type Session interface{}

// EventStreamItem is one element of an EventStream: either an envelope or
// the error that ended the stream. A consumer stops reading on the first
// non-nil Err.
type EventStreamItem struct {
	Envelope domain.Envelope
	Err      error
}

// EventStream is a lazy, single-pass, forward-only replay of an
// aggregate's journal. It is a plain receive-only channel rather than a
// cursor/Next() type so a Storage implementation can stream straight from
// a database cursor or an in-memory slice without the caller driving
// pagination by hand.
type EventStream <-chan EventStreamItem

// Sort names a field to order a paged read by and its direction.
type Sort struct {
	Field      string
	Descending bool
}

// Paged wraps a page of results together with the paging state the caller
// used to request it and the total row count across all pages.
type Paged[T any] struct {
	Items    []T
	Page     int
	PageSize int
	Total    int64
}

// Storage is the port every event-sourced aggregate type is persisted
// through. Session-scoped methods (everything taking a Session) must see a
// consistent, exclusively-locked view of one aggregate's journal for the
// session's lifetime; FetchLatestEvent is expected to take whatever lock
// the backend uses to serialize concurrent commits to the same aggregate
// (a held mutex in memstore, a row lock in gormstore).
type Storage[A domain.Aggregate] interface {
	// StartSession begins a unit of work scoped to aggregateID.
	StartSession(ctx context.Context, aggregateID string) (Session, error)
	// CloseSession commits the unit of work.
	CloseSession(ctx context.Context, session Session) error
	// AbortSession discards the unit of work without persisting changes.
	AbortSession(ctx context.Context, session Session) error

	// FetchSnapshot returns the latest snapshot for aggregateID, or nil if
	// none exists yet.
	FetchSnapshot(ctx context.Context, aggregateID string) (*domain.Snapshot[A], error)
	// FetchLatestEvent returns the highest-versioned envelope for
	// aggregateID within session, or nil if the journal is empty. Callers
	// use this to discover the current version before committing.
	FetchLatestEvent(ctx context.Context, aggregateID string, session Session) (*domain.Envelope, error)

	// FetchEventsFromVersion streams every envelope with Version >=
	// fromVersion, in ascending version order.
	FetchEventsFromVersion(ctx context.Context, aggregateID string, fromVersion int) EventStream
	// FetchAllEvents streams the complete journal in ascending version
	// order.
	FetchAllEvents(ctx context.Context, aggregateID string) EventStream
	// FetchEventsPaged returns one page of the journal, for audit/replay
	// tooling that needs total counts rather than a live stream.
	FetchEventsPaged(ctx context.Context, aggregateID string, page, pageSize int) (Paged[domain.Envelope], error)

	// SaveEvents appends envelopes to the journal within session. The
	// caller has already assigned contiguous versions.
	SaveEvents(ctx context.Context, events []domain.Envelope, session Session) error
	// SaveSnapshot replaces the stored snapshot for snapshot.AggregateID
	// within session.
	SaveSnapshot(ctx context.Context, snapshot domain.Snapshot[A], session Session) error
}
