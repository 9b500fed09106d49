// Package memview is an in-memory reference implementation of
// views.ReadStorage, suitable for tests and small single-process
// applications that don't need a persistent read side.
package memview

import (
	"context"
	"sort"
	"sync"

	"github.com/lumenly/eventcore/pkg/views"
)

// Storage is a map-backed views.ReadStorage[V], guarded by a single
// RWMutex. Filter is a linear scan — fine for tests and small datasets,
// not meant to scale the way a SQL-backed ReadStorage would.
type Storage[V views.Identified] struct {
	mu           sync.RWMutex
	typeName     string
	parent       map[string]string // view id -> parent id, "" if unscoped
	byID         map[string]V
	parentScoped bool
}

// New builds an empty Storage identifying itself as typeName. Whether V is
// parent-scoped is determined once, from V's zero value, since Go generics
// give no way to ask a type parameter this at the call site.
func New[V views.Identified](typeName string) *Storage[V] {
	var zero V
	_, parentScoped := any(zero).(views.ParentScoped)

	return &Storage[V]{
		typeName:     typeName,
		parent:       make(map[string]string),
		byID:         make(map[string]V),
		parentScoped: parentScoped,
	}
}

func (s *Storage[V]) TypeName() string { return s.typeName }

// FindByID returns a copy of the stored view, or nil if none is saved
// under id. parentID is accepted for interface conformance but ignored
// here: the id itself is already the full lookup key.
func (s *Storage[V]) FindByID(_ context.Context, _ *string, id string) (*V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// Save upserts view under view.ViewID(). When view implements
// views.ParentScoped, its parent id is recorded so Filter can narrow a
// later query to it.
func (s *Storage[V]) Save(_ context.Context, view V) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := view.ViewID()
	s.byID[id] = view
	if scoped, ok := any(view).(views.ParentScoped); ok {
		if parentID := scoped.ParentID(); parentID != nil {
			s.parent[id] = *parentID
		} else {
			delete(s.parent, id)
		}
	}
	return nil
}

// Filter returns every stored view whose recorded parent matches
// parentID, sorted by sorts and paged starting at page (1-indexed).
// query is ignored: memview has no secondary index and ReadStorage leaves
// query interpretation to the backend, so a memview-backed application
// that needs filtering should filter the returned page itself or use a
// richer backend. A nil parentID against a ParentScoped view type is
// rejected with ErrParentIDRequired rather than treated as "match
// everything" — an unscoped query would otherwise leak views across
// parents that have nothing to do with each other.
func (s *Storage[V]) Filter(_ context.Context, parentID *string, _ views.Query, sorts []views.Sort, page, pageSize int) (views.Paged[V], error) {
	if s.parentScoped && parentID == nil {
		return views.Paged[V]{}, views.ErrParentIDRequired
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]V, 0, len(s.byID))
	for id, v := range s.byID {
		if parentID != nil && s.parent[id] != *parentID {
			continue
		}
		matched = append(matched, v)
	}

	sortViews(matched, sorts)

	total := int64(len(matched))
	if pageSize <= 0 {
		pageSize = len(matched)
	}
	start := (page - 1) * pageSize
	if start < 0 {
		start = 0
	}
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	return views.Paged[V]{
		Items:    matched[start:end],
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

// sortViews orders items by id. memview has no reflection-free way to sort
// on an arbitrary named field, so it honors only the first Sort's
// direction and always orders by ViewID; a backend that needs to sort on
// view contents should implement its own ReadStorage.
func sortViews[V views.Identified](items []V, sorts []views.Sort) {
	if len(sorts) == 0 {
		return
	}
	descending := sorts[0].Descending
	sort.SliceStable(items, func(i, j int) bool {
		if descending {
			return items[i].ViewID() > items[j].ViewID()
		}
		return items[i].ViewID() < items[j].ViewID()
	})
}
