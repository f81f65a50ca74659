package broadcast

import (
	"testing"

	"memedex/internal/catalog"
)

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	hub := NewHub()
	first := hub.Subscribe(4)
	second := hub.Subscribe(4)
	defer hub.Unsubscribe(first)
	defer hub.Unsubscribe(second)

	hub.Publish(StatusEvent(7, catalog.StatusProcessing))

	for i, sub := range []*Subscriber{first, second} {
		select {
		case event := <-sub.C:
			if event.ItemID != 7 || event.Kind != KindStatus {
				t.Fatalf("subscriber %d got %+v", i, event)
			}
			if event.Status == nil || *event.Status != int(catalog.StatusProcessing) {
				t.Fatalf("subscriber %d status = %v", i, event.Status)
			}
		default:
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	hub := NewHub()
	slow := hub.Subscribe(1)
	fast := hub.Subscribe(16)
	defer hub.Unsubscribe(slow)
	defer hub.Unsubscribe(fast)

	// Fill the slow subscriber's buffer, then keep publishing. The publisher
	// must drop for the slow consumer and still deliver to the fast one.
	for i := 0; i < 5; i++ {
		hub.Publish(DescriptionEvent(int64(i), "caption"))
	}

	if got := len(fast.C); got != 5 {
		t.Fatalf("fast subscriber buffered %d events, want 5", got)
	}
	if got := len(slow.C); got != 1 {
		t.Fatalf("slow subscriber buffered %d events, want its capacity of 1", got)
	}
	if dropped := slow.Dropped(); dropped != 4 {
		t.Fatalf("dropped = %d, want 4", dropped)
	}
	if dropped := fast.Dropped(); dropped != 0 {
		t.Fatalf("fast subscriber dropped = %d, want 0", dropped)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(1)
	hub.Unsubscribe(sub)

	if _, open := <-sub.C; open {
		t.Fatal("channel should be closed after unsubscribe")
	}
	if hub.SubscriberCount() != 0 {
		t.Fatalf("subscriber count = %d, want 0", hub.SubscriberCount())
	}

	// Double unsubscribe must not panic.
	hub.Unsubscribe(sub)
	hub.Publish(StatusEvent(1, catalog.StatusDone))
}

func TestCloseDetachesEveryone(t *testing.T) {
	hub := NewHub()
	first := hub.Subscribe(1)
	second := hub.Subscribe(1)

	hub.Close()

	for i, sub := range []*Subscriber{first, second} {
		if _, open := <-sub.C; open {
			t.Fatalf("subscriber %d channel still open after Close", i)
		}
	}
	if hub.SubscriberCount() != 0 {
		t.Fatalf("subscriber count = %d, want 0", hub.SubscriberCount())
	}
}
