package app

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/tunevault-go/internal/domain"
)

func TestEventBus_DeliversToAllSubscribers(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	defer bus.Close()

	first, stopFirst := bus.Subscribe()
	defer stopFirst()
	second, stopSecond := bus.Subscribe()
	defer stopSecond()

	bus.Publish(domain.StartedEvent("j1", "T"))

	for _, ch := range []<-chan domain.Event{first, second} {
		select {
		case e := <-ch:
			assert.Equal(t, domain.EventStarted, e.Kind)
			assert.Equal(t, "j1", e.JobID)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestEventBus_PerJobOrderPreserved(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	defer bus.Close()

	events, stop := bus.Subscribe()
	defer stop()

	bus.Publish(domain.StartedEvent("j1", "T"))
	bus.Publish(domain.ProgressEvent("j1", 40, "1 MiB/s", "00:30"))
	bus.Publish(domain.CompletedEvent("j1", "m1"))

	var kinds []domain.EventKind
	for i := 0; i < 3; i++ {
		kinds = append(kinds, (<-events).Kind)
	}
	assert.Equal(t, []domain.EventKind{domain.EventStarted, domain.EventProgress, domain.EventCompleted}, kinds)
}

func TestEventBus_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	defer bus.Close()

	events, stop := bus.Subscribe()
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// overflow the subscriber buffer without draining it
		for i := 0; i < subscriberBuffer*2; i++ {
			bus.Publish(domain.ProgressEvent("j1", i, "", ""))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// the buffered prefix is still there
	e := <-events
	assert.Equal(t, domain.EventProgress, e.Kind)
}

func TestEventBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	defer bus.Close()

	events, stop := bus.Subscribe()
	require.Equal(t, 1, bus.SubscriberCount())

	stop()
	stop() // idempotent

	_, open := <-events
	assert.False(t, open)
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestEventBus_CloseStopsEverything(t *testing.T) {
	bus := NewEventBus(zap.NewNop())

	events, _ := bus.Subscribe()
	bus.Close()

	_, open := <-events
	assert.False(t, open)

	// publishing after close is a no-op
	bus.Publish(domain.StartedEvent("j1", "T"))

	late, stopLate := bus.Subscribe()
	defer stopLate()
	_, open = <-late
	assert.False(t, open, "subscriptions after close are closed immediately")
}

func TestEventBus_ManySubscribersChurn(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	defer bus.Close()

	for i := 0; i < 10; i++ {
		events, stop := bus.Subscribe()
		bus.Publish(domain.ProgressEvent(fmt.Sprintf("j%d", i), i*10, "", ""))
		<-events
		stop()
	}
	assert.Equal(t, 0, bus.SubscriberCount())
}
