package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Micos01/dir-analysis/internal/entry"
)

func TestBroadcasterSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	ch1 := b.Subscribe()
	ch2 := b.Subscribe()

	if b.Count() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", b.Count())
	}

	b.Unsubscribe(ch1)
	if b.Count() != 1 {
		t.Fatalf("expected 1 subscriber after unsubscribe, got %d", b.Count())
	}

	b.Unsubscribe(ch2)
	b.Unsubscribe(ch2)
	if b.Count() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", b.Count())
	}
}

func TestBroadcasterProgressReachesAllSubscribers(t *testing.T) {
	b := NewBroadcaster()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	defer b.Unsubscribe(ch1)
	defer b.Unsubscribe(ch2)

	b.Progress(entry.ProgressIndexing, "Building indexes")

	for i, ch := range []chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			if received.Type != EventProgress || received.Count != -1 {
				t.Errorf("subscriber %d: unexpected event %+v", i, received)
			}
			if received.Timestamp == 0 {
				t.Errorf("subscriber %d: expected non-zero timestamp", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}
}

func TestBroadcasterDropsForSlowConsumer(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < 100; i++ {
		b.Progress(int64(i), "working")
	}

	count := 0
	for {
		select {
		case <-ch:
			count++
		default:
			if count != subscriberBuffer {
				t.Errorf("expected %d buffered events, got %d", subscriberBuffer, count)
			}
			return
		}
	}
}

func TestMarshalEvent(t *testing.T) {
	data, err := MarshalEvent(Event{Type: EventComplete, Count: 7, Status: "done", Timestamp: 1})
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["count"].(float64) != 7 || decoded["status"] != "done" {
		t.Errorf("unexpected payload %s", data)
	}
}
