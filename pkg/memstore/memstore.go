// Package memstore is the in-process reference implementation of
// eventstore.Storage, suitable for tests and for single-process
// deployments that don't need durability across restarts.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/lumenly/eventcore/pkg/domain"
	"github.com/lumenly/eventcore/pkg/eventstore"
)

type journal[A any] struct {
	mu       sync.Mutex
	events   []domain.Envelope
	snapshot *domain.Snapshot[A]
}

// Storage is a map-of-journals guarded by a per-aggregate mutex. A session
// is the held lock on one aggregate's journal for the session's lifetime,
// which is what serializes concurrent commits to the same aggregate —
// the in-memory analogue of the row lock gormstore takes with
// FetchLatestEvent.
type Storage[A domain.Aggregate] struct {
	mu    sync.RWMutex
	byID  map[string]*journal[A]
}

// New returns an empty in-memory Storage.
func New[A domain.Aggregate]() *Storage[A] {
	return &Storage[A]{byID: make(map[string]*journal[A])}
}

func (s *Storage[A]) journalFor(aggregateID string) *journal[A] {
	s.mu.RLock()
	j, ok := s.byID[aggregateID]
	s.mu.RUnlock()
	if ok {
		return j
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.byID[aggregateID]; ok {
		return j
	}
	j = &journal[A]{}
	s.byID[aggregateID] = j
	return j
}

type session[A any] struct {
	journal *journal[A]
}

func (s *Storage[A]) StartSession(_ context.Context, aggregateID string) (eventstore.Session, error) {
	j := s.journalFor(aggregateID)
	j.mu.Lock()
	return &session[A]{journal: j}, nil
}

func (s *Storage[A]) CloseSession(_ context.Context, sess eventstore.Session) error {
	sess.(*session[A]).journal.mu.Unlock()
	return nil
}

func (s *Storage[A]) AbortSession(_ context.Context, sess eventstore.Session) error {
	sess.(*session[A]).journal.mu.Unlock()
	return nil
}

func (s *Storage[A]) FetchSnapshot(_ context.Context, aggregateID string) (*domain.Snapshot[A], error) {
	j := s.journalFor(aggregateID)
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshot, nil
}

func (s *Storage[A]) FetchLatestEvent(_ context.Context, _ string, sess eventstore.Session) (*domain.Envelope, error) {
	j := sess.(*session[A]).journal
	if len(j.events) == 0 {
		return nil, nil
	}
	latest := j.events[len(j.events)-1]
	return &latest, nil
}

func (s *Storage[A]) FetchEventsFromVersion(_ context.Context, aggregateID string, fromVersion int) eventstore.EventStream {
	j := s.journalFor(aggregateID)
	ch := make(chan eventstore.EventStreamItem)

	go func() {
		defer close(ch)
		j.mu.Lock()
		events := append([]domain.Envelope(nil), j.events...)
		j.mu.Unlock()

		for _, e := range events {
			if e.Version < fromVersion {
				continue
			}
			ch <- eventstore.EventStreamItem{Envelope: e}
		}
	}()

	return ch
}

func (s *Storage[A]) FetchAllEvents(ctx context.Context, aggregateID string) eventstore.EventStream {
	return s.FetchEventsFromVersion(ctx, aggregateID, 0)
}

func (s *Storage[A]) FetchEventsPaged(_ context.Context, aggregateID string, page, pageSize int) (eventstore.Paged[domain.Envelope], error) {
	j := s.journalFor(aggregateID)
	j.mu.Lock()
	events := append([]domain.Envelope(nil), j.events...)
	j.mu.Unlock()

	sort.Slice(events, func(i, k int) bool { return events[i].Version < events[k].Version })

	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize
	total := int64(len(events))

	if offset >= len(events) {
		return eventstore.Paged[domain.Envelope]{Items: nil, Page: page, PageSize: pageSize, Total: total}, nil
	}
	end := offset + pageSize
	if end > len(events) {
		end = len(events)
	}

	return eventstore.Paged[domain.Envelope]{
		Items:    events[offset:end],
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

func (s *Storage[A]) SaveEvents(_ context.Context, events []domain.Envelope, sess eventstore.Session) error {
	j := sess.(*session[A]).journal
	j.events = append(j.events, events...)
	return nil
}

func (s *Storage[A]) SaveSnapshot(_ context.Context, snapshot domain.Snapshot[A], sess eventstore.Session) error {
	j := sess.(*session[A]).journal
	snap := snapshot
	j.snapshot = &snap
	return nil
}
