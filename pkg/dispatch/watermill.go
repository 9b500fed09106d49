// Package dispatch provides a transport-backed Dispatcher that publishes
// committed envelopes onto a message bus, for the "integration bridges,
// audit channels" consumers a projection dispatcher doesn't serve.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/lumenly/eventcore/pkg/domain"
)

// WireEnvelope is the JSON shape a WatermillDispatcher publishes and a
// subscriber receives. EventType and EventData are carried separately
// from the rest of the envelope so a subscriber that only cares about
// routing (metrics, audit logging) never needs to know the concrete event
// types an aggregate emits.
type WireEnvelope struct {
	EventID     string          `json:"eventId"`
	EventType   string          `json:"eventType"`
	AggregateID string          `json:"aggregateId"`
	Version     int             `json:"version"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	At          string          `json:"at"`
	EventData   json.RawMessage `json:"eventData"`
}

// Handler processes one published envelope. A non-nil error is logged and
// nacks the underlying message, causing Watermill's gochannel transport to
// redeliver it.
type Handler func(ctx context.Context, envelope WireEnvelope) error

// WatermillDispatcher publishes every envelope committed for aggregates of
// one type onto a single topic, backed by an in-process Watermill
// gochannel pub/sub. It satisfies both engine.Dispatcher[A] and
// views.Dispatcher[A].
type WatermillDispatcher[A domain.Aggregate] struct {
	topic  string
	pubSub *gochannel.GoChannel
	logger watermill.LoggerAdapter
	router *message.Router
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	handlers int
}

// New builds a WatermillDispatcher publishing to "<aggregateType>.events"
// and starts its router. Call Close when the dispatcher is no longer
// needed to stop the router goroutine.
func New[A domain.Aggregate](aggregateType string, logger watermill.LoggerAdapter) (*WatermillDispatcher[A], error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64, Persistent: false},
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("dispatch: failed to create router: %w", err)
	}

	d := &WatermillDispatcher[A]{
		topic:  aggregateType + ".events",
		pubSub: pubSub,
		logger: logger,
		router: router,
		ctx:    ctx,
		cancel: cancel,
	}

	go func() {
		if err := router.Run(ctx); err != nil {
			logger.Error("dispatch router stopped with error", err, nil)
		}
	}()

	return d, nil
}

// Dispatch publishes every envelope to the dispatcher's topic. It satisfies
// engine.Dispatcher[A]/views.Dispatcher[A] without importing either
// package, avoiding a dependency cycle between engine/views and dispatch.
func (d *WatermillDispatcher[A]) Dispatch(ctx context.Context, aggregateID string, envelopes []domain.Envelope) error {
	for _, envelope := range envelopes {
		if err := d.publish(aggregateID, envelope); err != nil {
			return fmt.Errorf("dispatch: failed to publish event %s: %w", envelope.EventID, err)
		}
	}
	return nil
}

func (d *WatermillDispatcher[A]) publish(aggregateID string, envelope domain.Envelope) error {
	eventData, err := json.Marshal(envelope.Event)
	if err != nil {
		return fmt.Errorf("serialize event payload: %w", err)
	}

	wire := WireEnvelope{
		EventID:     envelope.EventID,
		EventType:   envelope.Event.EventType(),
		AggregateID: aggregateID,
		Version:     envelope.Version,
		Metadata:    envelope.Metadata,
		At:          envelope.At.Format(`2006-01-02T15:04:05.000000000Z07:00`),
		EventData:   eventData,
	}

	payload, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("serialize envelope: %w", err)
	}

	msg := message.NewMessage(envelope.EventID, payload)
	msg.Metadata.Set("event_type", wire.EventType)
	msg.Metadata.Set("aggregate_id", aggregateID)

	return d.pubSub.Publish(d.topic, msg)
}

// Subscribe registers handler to receive every envelope published on this
// dispatcher's topic, through a uniquely named no-publisher router handler
// so multiple subscribers each see every message independently.
func (d *WatermillDispatcher[A]) Subscribe(name string, handler Handler) error {
	d.mu.Lock()
	d.handlers++
	handlerName := fmt.Sprintf("%s_%s_%d", d.topic, name, d.handlers)
	d.mu.Unlock()

	d.router.AddNoPublisherHandler(handlerName, d.topic, d.pubSub, func(msg *message.Message) error {
		var wire WireEnvelope
		if err := json.Unmarshal(msg.Payload, &wire); err != nil {
			return fmt.Errorf("deserialize envelope: %w", err)
		}
		return handler(msg.Context(), wire)
	})

	d.logger.Info("dispatch subscriber registered", watermill.LogFields{
		"topic":   d.topic,
		"handler": handlerName,
	})
	return nil
}

// Close stops the router and releases the underlying pub/sub.
func (d *WatermillDispatcher[A]) Close() error {
	d.cancel()
	if err := d.router.Close(); err != nil {
		return err
	}
	return d.pubSub.Close()
}
