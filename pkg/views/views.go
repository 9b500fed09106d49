// Package views projects committed events into read models, independent
// of the write-side storage a command engine uses. A Dispatcher is driven
// by an engine after every successful commit; a ReadStorage serves query
// traffic against whatever a Dispatcher has projected.
package views

import (
	"context"
	"errors"

	"github.com/lumenly/eventcore/pkg/domain"
)

// ErrParentIDRequired is returned by Filter when queried against a
// parent-scoped view type without a parentID to scope the query to —
// the missing-parent-id validation error spec for child views.
var ErrParentIDRequired = errors.New("parentID is required to filter a parent-scoped view")

// Dispatcher receives the envelopes committed by one engine operation. It
// is the same shape as engine.Dispatcher — views is kept independent of
// the engine package so a read model can be built and tested without
// importing command-side types.
type Dispatcher[A domain.Aggregate] interface {
	Dispatch(ctx context.Context, aggregateID string, envelopes []domain.Envelope) error
}

// Identified is implemented by a read-model type that carries its own
// storage key, independent of the aggregate id the events that built it
// came from — a view can be parented under an aggregate (an order line
// item) or scoped to the aggregate itself (a denormalized summary).
type Identified interface {
	ViewID() string
}

// ParentScoped is implemented by a view type that wants a ReadStorage to
// index it under the aggregate that produced it (a TodoItem view scoped
// under its TodoList), so Filter's parentID argument can narrow a query
// without the storage needing a bespoke schema per view type.
type ParentScoped interface {
	ParentID() *string
}

// View is implemented by a read-model type V that knows how to fold one
// envelope into itself. Update returns the updated value and whether
// anything changed; ViewDispatcher skips the Save call when changed is
// false, the same way the Rust dispatcher this is grounded on skips
// persisting a no-op update.
type View[V any] interface {
	Identified
	Update(envelope domain.Envelope) (V, bool)
}

// Sort names a field to order a paged read by and its direction.
type Sort struct {
	Field      string
	Descending bool
}

// Query is an opaque, application-defined filter; ReadStorage
// implementations interpret it however their backing store requires
// (a WHERE clause for a SQL-backed one; memview ignores it). The core
// never inspects a Query's contents.
type Query any

// Paged wraps one page of read-model results together with the paging
// state used to request it and the total row count across all pages.
type Paged[V any] struct {
	Items    []V
	Page     int
	PageSize int
	Total    int64
}

// ReadStorage is the port a projection writes through and a query reads
// through. ParentID scopes a lookup to views built from one aggregate's
// events (TodoItem views scoped under their TodoList); it is nil for
// views that aren't parent-scoped.
type ReadStorage[V Identified] interface {
	// TypeName identifies the view type this storage holds, for registries
	// and diagnostics.
	TypeName() string
	// Filter returns one page of views matching query, scoped to parentID,
	// ordered by sorts in the order given. A nil parentID is valid only for
	// a view type that doesn't implement ParentScoped; querying a
	// parent-scoped view type without one returns ErrParentIDRequired.
	Filter(ctx context.Context, parentID *string, query Query, sorts []Sort, page, pageSize int) (Paged[V], error)
	// FindByID returns the view with the given id, or nil if none exists.
	FindByID(ctx context.Context, parentID *string, id string) (*V, error)
	// Save upserts view, keyed by view.ViewID().
	Save(ctx context.Context, view V) error
}

// ViewDispatcher is the reference Dispatcher: for each envelope, it loads
// the view the envelope belongs to (or starts from zero), folds the
// envelope in, and saves the result if anything changed. viewID maps an
// envelope to the id of the view it updates — callers supply it because a
// view's id is often the aggregate id itself, but for parent-scoped views
// (TodoItem under a TodoList) it must be read out of the event payload.
type ViewDispatcher[A domain.Aggregate, V View[V]] struct {
	storage ReadStorage[V]
	viewID  func(domain.Envelope) string
	zero    func(id string) V
}

// NewViewDispatcher builds a ViewDispatcher writing through storage. zero
// constructs the default value a view with the given id starts from
// before any event has been folded into it.
func NewViewDispatcher[A domain.Aggregate, V View[V]](
	storage ReadStorage[V],
	viewID func(domain.Envelope) string,
	zero func(id string) V,
) *ViewDispatcher[A, V] {
	return &ViewDispatcher[A, V]{storage: storage, viewID: viewID, zero: zero}
}

// Dispatch folds every envelope into its view and saves the ones that
// changed. The aggregateID parameter is passed as the parent id of each
// FindByID lookup; Save is keyed by the view's own ViewID.
func (d *ViewDispatcher[A, V]) Dispatch(ctx context.Context, aggregateID string, envelopes []domain.Envelope) error {
	for _, envelope := range envelopes {
		id := d.viewID(envelope)

		prev, err := d.storage.FindByID(ctx, &aggregateID, id)
		if err != nil {
			return err
		}

		var current V
		if prev != nil {
			current = *prev
		} else {
			current = d.zero(id)
		}

		next, changed := current.Update(envelope)
		if !changed {
			continue
		}
		if err := d.storage.Save(ctx, next); err != nil {
			return err
		}
	}
	return nil
}
