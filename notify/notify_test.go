package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftwatch/rating-engine/notify"
)

func event(name string) notify.Event {
	return notify.Event{
		Name:      name,
		CompanyID: "acme",
		At:        time.Date(2026, time.August, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestBroker_DeliversToSubscribers(t *testing.T) {
	b := notify.NewBroker(4)
	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel1()
	defer cancel2()

	require.NoError(t, b.Publish(context.Background(), event(notify.EventViolationDetected)))

	for _, ch := range []<-chan notify.Event{ch1, ch2} {
		select {
		case e := <-ch:
			assert.Equal(t, notify.EventViolationDetected, e.Name)
			assert.Equal(t, "acme", e.CompanyID)
		default:
			t.Fatal("expected buffered event")
		}
	}
}

func TestBroker_FullBuffer_DropsNeverBlocks(t *testing.T) {
	// GIVEN: A subscriber with a buffer of 1 that never drains
	// WHEN: Publishing twice
	// THEN: The second publish returns immediately; the drop is silent

	b := notify.NewBroker(1)
	ch, cancel := b.Subscribe()
	defer cancel()

	require.NoError(t, b.Publish(context.Background(), event(notify.EventRatingUpdated)))

	done := make(chan struct{})
	go func() {
		b.Publish(context.Background(), event(notify.EventRatingUpdated))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}

	assert.Len(t, ch, 1)
}

func TestBroker_Cancel_ClosesChannelAndStopsDelivery(t *testing.T) {
	b := notify.NewBroker(4)
	ch, cancel := b.Subscribe()

	cancel()
	// Double cancel is safe.
	cancel()

	_, open := <-ch
	assert.False(t, open, "channel should be closed after cancel")

	// Publishing after cancel must not panic on the closed channel.
	assert.NoError(t, b.Publish(context.Background(), event(notify.EventRatingUpdated)))
}

func TestLogNotifier_NeverFails(t *testing.T) {
	assert.NoError(t, notify.LogNotifier{}.Publish(context.Background(), event(notify.EventViolationDetected)))
}
