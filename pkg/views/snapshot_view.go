package views

import (
	"context"
	"errors"

	"github.com/lumenly/eventcore/pkg/domain"
	"github.com/lumenly/eventcore/pkg/eventstore"
)

// ErrSnapshotViewReadOnly is returned by SnapshotView.Save: a snapshot
// view only ever reflects what EventStore.Commit has already persisted,
// it is never written to directly.
var ErrSnapshotViewReadOnly = errors.New("snapshot view is read-only")

// snapshotIdentified wraps an aggregate so it satisfies Identified for use
// as a ReadStorage's V, without requiring every Aggregate implementation
// to carry a ViewID method of its own.
type snapshotIdentified[A domain.Aggregate] struct {
	ID    string
	State A
}

func (s snapshotIdentified[A]) ViewID() string { return s.ID }

// SnapshotView adapts an EventStore's snapshots to the ReadStorage
// interface, letting "latest state" queries reuse the write-side storage
// instead of requiring a dedicated projection for the common case of
// wanting an aggregate's current fields.
type SnapshotView[A domain.Aggregate] struct {
	store    *eventstore.EventStore[A]
	cctx     domain.Context
	typeName string
}

// NewSnapshotView builds a SnapshotView reading through store.
func NewSnapshotView[A domain.Aggregate](store *eventstore.EventStore[A], cctx domain.Context) *SnapshotView[A] {
	return &SnapshotView[A]{
		store:    store,
		cctx:     cctx,
		typeName: store.AggregateType(),
	}
}

func (s *SnapshotView[A]) TypeName() string { return s.typeName }

// Filter is not supported: a snapshot view only knows how to load one
// aggregate at a time by id, it has no secondary index to filter against.
func (s *SnapshotView[A]) Filter(context.Context, *string, Query, []Sort, int, int) (Paged[snapshotIdentified[A]], error) {
	return Paged[snapshotIdentified[A]]{}, errors.New("snapshot view does not support Filter, use FindByID")
}

func (s *SnapshotView[A]) FindByID(ctx context.Context, _ *string, id string) (*snapshotIdentified[A], error) {
	state, _, err := s.store.LoadAggregate(ctx, s.cctx, id)
	if err != nil {
		if domain.IsCode(err, "AGGREGATE_NOT_FOUND") {
			return nil, nil
		}
		return nil, err
	}
	view := snapshotIdentified[A]{ID: id, State: state}
	return &view, nil
}

func (s *SnapshotView[A]) Save(context.Context, snapshotIdentified[A]) error {
	return ErrSnapshotViewReadOnly
}
