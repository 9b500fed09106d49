package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/lumenly/eventcore/pkg/dispatch"
	"github.com/lumenly/eventcore/pkg/domain"
	"github.com/lumenly/eventcore/pkg/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillDispatcherPublishesEnvelopesToSubscriber(t *testing.T) {
	d, err := dispatch.New[*fixtures.Account]("account", nil)
	require.NoError(t, err)
	defer d.Close()

	received := make(chan dispatch.WireEnvelope, 1)
	require.NoError(t, d.Subscribe("test", func(_ context.Context, envelope dispatch.WireEnvelope) error {
		received <- envelope
		return nil
	}))

	envelope := domain.Envelope{
		EventID:     "evt-1",
		AggregateID: "acc-1",
		Version:     1,
		Event:       fixtures.AccountOpened{AccountID: "acc-1", Owner: "alice"},
		At:          time.Now(),
	}

	require.NoError(t, d.Dispatch(context.Background(), "acc-1", []domain.Envelope{envelope}))

	select {
	case got := <-received:
		assert.Equal(t, "evt-1", got.EventID)
		assert.Equal(t, "account.opened", got.EventType)
		assert.Equal(t, "acc-1", got.AggregateID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published envelope")
	}
}
