// Package gormstore is a SQL-backed eventstore.Storage, using GORM so the
// same code runs against SQLite (tests, single-node deployments) and
// PostgreSQL (production) without a dialect-specific rewrite.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/lumenly/eventcore/pkg/domain"
	"github.com/lumenly/eventcore/pkg/eventstore"
	"github.com/segmentio/ksuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// eventRecord is the events table row.
type eventRecord struct {
	ID          string `gorm:"primaryKey"`
	AggregateID string `gorm:"uniqueIndex:idx_aggregate_version"`
	Version     int    `gorm:"uniqueIndex:idx_aggregate_version"`
	EventType   string `gorm:"index"`
	Data        string `gorm:"type:text"`
	Metadata    string `gorm:"type:text"`
	At          time.Time
}

func (eventRecord) TableName() string { return "events" }

// snapshotRecord is the snapshots table row: one row per aggregate id,
// upserted on every commit.
type snapshotRecord struct {
	AggregateID string `gorm:"primaryKey"`
	Version     int
	Data        string `gorm:"type:text"`
}

func (snapshotRecord) TableName() string { return "snapshots" }

// EventFactory returns a zero-valued instance of one concrete event type,
// used as a template for decoding that type's JSON payload back out of
// storage. Event is a closed sum over plain structs (see domain.Event),
// so there is no way to decode a stored event without knowing which Go
// type its event_type string maps to.
type EventFactory func() domain.Event

// Storage is a GORM-backed eventstore.Storage[A]. newState builds a fresh
// aggregate instance to unmarshal a stored snapshot into; factories maps
// every event type this aggregate emits to an EventFactory — an event
// type with no registered factory fails to decode with a clear error
// rather than silently losing data.
type Storage[A domain.Aggregate] struct {
	db        *gorm.DB
	newState  func() A
	factories map[string]EventFactory
}

// New opens Storage over db, migrating the events and snapshots tables.
func New[A domain.Aggregate](db *gorm.DB, newState func() A, factories map[string]EventFactory) (*Storage[A], error) {
	if err := db.AutoMigrate(&eventRecord{}, &snapshotRecord{}); err != nil {
		return nil, fmt.Errorf("gormstore: migrate: %w", err)
	}
	return &Storage[A]{db: db, newState: newState, factories: factories}, nil
}

type txSession struct {
	tx *gorm.DB
}

func txFrom(session eventstore.Session) (*gorm.DB, error) {
	s, ok := session.(*txSession)
	if !ok || s.tx == nil {
		return nil, errors.New("gormstore: session is not a gormstore transaction")
	}
	return s.tx, nil
}

func (s *Storage[A]) StartSession(ctx context.Context, aggregateID string) (eventstore.Session, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &txSession{tx: tx}, nil
}

func (s *Storage[A]) CloseSession(ctx context.Context, session eventstore.Session) error {
	tx, err := txFrom(session)
	if err != nil {
		return err
	}
	return tx.Commit().Error
}

func (s *Storage[A]) AbortSession(ctx context.Context, session eventstore.Session) error {
	tx, err := txFrom(session)
	if err != nil {
		return err
	}
	return tx.Rollback().Error
}

func (s *Storage[A]) FetchSnapshot(ctx context.Context, aggregateID string) (*domain.Snapshot[A], error) {
	var rec snapshotRecord
	err := s.db.WithContext(ctx).Where("aggregate_id = ?", aggregateID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := s.newState()
	if err := json.Unmarshal([]byte(rec.Data), state); err != nil {
		return nil, fmt.Errorf("gormstore: decode snapshot for %q: %w", aggregateID, err)
	}
	return &domain.Snapshot[A]{AggregateID: aggregateID, Version: rec.Version, State: state}, nil
}

// FetchLatestEvent takes the row lock the commit protocol relies on to
// serialize concurrent commits to the same aggregate: SELECT ... FOR
// UPDATE on the highest-versioned row, inside session's transaction.
func (s *Storage[A]) FetchLatestEvent(ctx context.Context, aggregateID string, session eventstore.Session) (*domain.Envelope, error) {
	tx, err := txFrom(session)
	if err != nil {
		return nil, err
	}

	query := tx.WithContext(ctx)
	// SQLite has no row-level locking, so FOR UPDATE is only added for
	// other dialects. Under SQLite the session is an ordinary (deferred)
	// transaction: a losing concurrent commit fails on SQLite's
	// single-writer lock or on the unique (aggregate_id, version) index,
	// and surfaces as a database error rather than a concurrency error.
	if tx.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var rec eventRecord
	err = query.
		Where("aggregate_id = ?", aggregateID).
		Order("version DESC").
		Limit(1).
		Find(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == "" {
		return nil, nil
	}

	envelope, err := s.toEnvelope(rec)
	if err != nil {
		return nil, err
	}
	return &envelope, nil
}

func (s *Storage[A]) FetchEventsFromVersion(ctx context.Context, aggregateID string, fromVersion int) eventstore.EventStream {
	return s.stream(ctx, aggregateID, fromVersion)
}

func (s *Storage[A]) FetchAllEvents(ctx context.Context, aggregateID string) eventstore.EventStream {
	return s.stream(ctx, aggregateID, 0)
}

func (s *Storage[A]) stream(ctx context.Context, aggregateID string, fromVersion int) eventstore.EventStream {
	out := make(chan eventstore.EventStreamItem)

	go func() {
		defer close(out)

		rows, err := s.db.WithContext(ctx).Model(&eventRecord{}).
			Where("aggregate_id = ? AND version >= ?", aggregateID, fromVersion).
			Order("version ASC").
			Rows()
		if err != nil {
			out <- eventstore.EventStreamItem{Err: err}
			return
		}
		defer rows.Close()

		for rows.Next() {
			var rec eventRecord
			if err := s.db.ScanRows(rows, &rec); err != nil {
				out <- eventstore.EventStreamItem{Err: err}
				return
			}
			envelope, err := s.toEnvelope(rec)
			if err != nil {
				out <- eventstore.EventStreamItem{Err: err}
				return
			}
			select {
			case out <- eventstore.EventStreamItem{Envelope: envelope}:
			case <-ctx.Done():
				return
			}
		}
		if err := rows.Err(); err != nil {
			out <- eventstore.EventStreamItem{Err: err}
		}
	}()

	return out
}

func (s *Storage[A]) FetchEventsPaged(ctx context.Context, aggregateID string, page, pageSize int) (eventstore.Paged[domain.Envelope], error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&eventRecord{}).
		Where("aggregate_id = ?", aggregateID).
		Count(&total).Error; err != nil {
		return eventstore.Paged[domain.Envelope]{}, err
	}

	offset := (page - 1) * pageSize
	if offset < 0 {
		offset = 0
	}

	var records []eventRecord
	if err := s.db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("version ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&records).Error; err != nil {
		return eventstore.Paged[domain.Envelope]{}, err
	}

	items := make([]domain.Envelope, len(records))
	for i, rec := range records {
		envelope, err := s.toEnvelope(rec)
		if err != nil {
			return eventstore.Paged[domain.Envelope]{}, err
		}
		items[i] = envelope
	}

	return eventstore.Paged[domain.Envelope]{Items: items, Page: page, PageSize: pageSize, Total: total}, nil
}

func (s *Storage[A]) SaveEvents(ctx context.Context, events []domain.Envelope, session eventstore.Session) error {
	tx, err := txFrom(session)
	if err != nil {
		return err
	}

	records := make([]eventRecord, len(events))
	for i, e := range events {
		data, err := json.Marshal(e.Event)
		if err != nil {
			return fmt.Errorf("gormstore: encode event %s: %w", e.Event.EventType(), err)
		}
		metadata, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("gormstore: encode metadata for event %s: %w", e.EventID, err)
		}

		eventID := e.EventID
		if eventID == "" {
			eventID = ksuid.New().String()
		}

		records[i] = eventRecord{
			ID:          eventID,
			AggregateID: e.AggregateID,
			Version:     e.Version,
			EventType:   e.Event.EventType(),
			Data:        string(data),
			Metadata:    string(metadata),
			At:          e.At,
		}
	}

	return tx.WithContext(ctx).Create(&records).Error
}

func (s *Storage[A]) SaveSnapshot(ctx context.Context, snapshot domain.Snapshot[A], session eventstore.Session) error {
	tx, err := txFrom(session)
	if err != nil {
		return err
	}

	data, err := json.Marshal(snapshot.State)
	if err != nil {
		return fmt.Errorf("gormstore: encode snapshot for %q: %w", snapshot.AggregateID, err)
	}

	rec := snapshotRecord{AggregateID: snapshot.AggregateID, Version: snapshot.Version, Data: string(data)}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "aggregate_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"version", "data"}),
	}).Create(&rec).Error
}

func (s *Storage[A]) toEnvelope(rec eventRecord) (domain.Envelope, error) {
	event, err := s.decodeEvent(rec.EventType, rec.Data)
	if err != nil {
		return domain.Envelope{}, err
	}

	var metadata map[string]any
	if rec.Metadata != "" && rec.Metadata != "null" {
		if err := json.Unmarshal([]byte(rec.Metadata), &metadata); err != nil {
			return domain.Envelope{}, fmt.Errorf("gormstore: decode metadata for event %s: %w", rec.ID, err)
		}
	}

	return domain.Envelope{
		EventID:     rec.ID,
		AggregateID: rec.AggregateID,
		Version:     rec.Version,
		Event:       event,
		Metadata:    metadata,
		At:          rec.At,
	}, nil
}

func (s *Storage[A]) decodeEvent(eventType, data string) (domain.Event, error) {
	factory, ok := s.factories[eventType]
	if !ok {
		return nil, fmt.Errorf("gormstore: no event factory registered for %q", eventType)
	}

	zero := factory()
	ptr := reflect.New(reflect.TypeOf(zero))
	if err := json.Unmarshal([]byte(data), ptr.Interface()); err != nil {
		return nil, fmt.Errorf("gormstore: decode event %q: %w", eventType, err)
	}
	return ptr.Elem().Interface().(domain.Event), nil
}
