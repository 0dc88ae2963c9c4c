package comms

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func makeEvent(t *testing.T, topic Topic, subject string) *Event {
	t.Helper()
	ev, err := NewEvent(topic, subject, map[string]string{"subject": subject})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	return ev
}

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent(TopicTaskCreated, "task-1", map[string]int{"hours": 3})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if ev.ID == "" {
		t.Error("expected ID to be set")
	}
	if ev.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
	var payload map[string]int
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["hours"] != 3 {
		t.Errorf("payload hours = %d, want 3", payload["hours"])
	}

	if _, err := NewEvent(TopicTaskCreated, "x", func() {}); err == nil {
		t.Error("expected error for unencodable payload")
	}
}

func TestInMemoryBus_Subscribe_Unsubscribe(t *testing.T) {
	bus := NewInMemoryBus(0)
	ctx := context.Background()

	var received int32
	unsub := bus.Subscribe(TopicTaskCreated, func(_ context.Context, _ *Event) error {
		atomic.AddInt32(&received, 1)
		return nil
	})

	ev := makeEvent(t, TopicTaskCreated, "task-1")
	if err := bus.Publish(ctx, ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if atomic.LoadInt32(&received) != 1 {
		t.Errorf("received = %d, want 1", received)
	}

	unsub()
	unsub()
	if err := bus.Publish(ctx, ev); err != nil {
		t.Fatalf("Publish after unsub: %v", err)
	}
	if atomic.LoadInt32(&received) != 1 {
		t.Errorf("received after unsub = %d, want 1", received)
	}
}

func TestInMemoryBus_TopicRouting(t *testing.T) {
	bus := NewInMemoryBus(0)
	ctx := context.Background()

	var created, completed, all int32
	bus.Subscribe(TopicTaskCreated, func(_ context.Context, _ *Event) error {
		atomic.AddInt32(&created, 1)
		return nil
	})
	bus.Subscribe(TopicTaskCompleted, func(_ context.Context, _ *Event) error {
		atomic.AddInt32(&completed, 1)
		return nil
	})
	bus.Subscribe(TopicAll, func(_ context.Context, _ *Event) error {
		atomic.AddInt32(&all, 1)
		return nil
	})

	for _, topic := range []Topic{TopicTaskCreated, TopicTaskCreated, TopicTaskCompleted, TopicRecommendationComputed} {
		if err := bus.Publish(ctx, makeEvent(t, topic, "s")); err != nil {
			t.Fatalf("Publish %s: %v", topic, err)
		}
	}

	if created != 2 {
		t.Errorf("created = %d, want 2", created)
	}
	if completed != 1 {
		t.Errorf("completed = %d, want 1", completed)
	}
	if all != 4 {
		t.Errorf("all = %d, want 4", all)
	}
}

func TestInMemoryBus_PublishInvalidTopic(t *testing.T) {
	bus := NewInMemoryBus(0)
	if err := bus.Publish(context.Background(), &Event{Topic: TopicAll}); err == nil {
		t.Error("expected error publishing to wildcard topic")
	}
	if err := bus.Publish(context.Background(), &Event{}); err == nil {
		t.Error("expected error publishing without topic")
	}
}

func TestInMemoryBus_HandlerError(t *testing.T) {
	bus := NewInMemoryBus(0)
	boom := errors.New("boom")

	var delivered int32
	bus.Subscribe(TopicTaskUpdated, func(_ context.Context, _ *Event) error { return boom })
	bus.Subscribe(TopicTaskUpdated, func(_ context.Context, _ *Event) error {
		atomic.AddInt32(&delivered, 1)
		return nil
	})

	err := bus.Publish(context.Background(), makeEvent(t, TopicTaskUpdated, "t"))
	if !errors.Is(err, boom) {
		t.Errorf("Publish error = %v, want wrapped boom", err)
	}
	if delivered != 1 {
		t.Errorf("second handler delivered = %d, want 1", delivered)
	}
}

func TestInMemoryBus_History(t *testing.T) {
	bus := NewInMemoryBus(0)
	ctx := context.Background()

	events := []*Event{
		makeEvent(t, TopicTaskCreated, "a"),
		makeEvent(t, TopicTaskUpdated, "a"),
		makeEvent(t, TopicTaskCreated, "b"),
		makeEvent(t, TopicTaskCompleted, "a"),
	}
	for _, ev := range events {
		if err := bus.Publish(ctx, ev); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	hist, err := bus.History(TopicTaskCreated, 100)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("History len = %d, want 2", len(hist))
	}
	if hist[0].Subject != "a" || hist[1].Subject != "b" {
		t.Errorf("History order = %s,%s, want a,b", hist[0].Subject, hist[1].Subject)
	}

	all, _ := bus.History(TopicAll, 0)
	if len(all) != 4 {
		t.Errorf("History(all) len = %d, want 4", len(all))
	}
}

func TestInMemoryBus_History_Limit(t *testing.T) {
	bus := NewInMemoryBus(0)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		bus.Publish(ctx, makeEvent(t, TopicTaskUpdated, "t"))
	}

	hist, err := bus.History(TopicTaskUpdated, 5)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 5 {
		t.Errorf("History with limit 5 returned %d events", len(hist))
	}
}

func TestInMemoryBus_HistoryCap(t *testing.T) {
	bus := NewInMemoryBus(3)
	ctx := context.Background()

	subjects := []string{"1", "2", "3", "4", "5"}
	for _, s := range subjects {
		bus.Publish(ctx, makeEvent(t, TopicTaskCreated, s))
	}

	hist, _ := bus.History(TopicAll, 0)
	if len(hist) != 3 {
		t.Fatalf("History len = %d, want 3", len(hist))
	}
	if hist[0].Subject != "3" || hist[2].Subject != "5" {
		t.Errorf("History kept %s..%s, want 3..5", hist[0].Subject, hist[2].Subject)
	}
}

func TestInMemoryBus_ConcurrentPublish(t *testing.T) {
	bus := NewInMemoryBus(1000)
	ctx := context.Background()

	var count int32
	bus.Subscribe(TopicAll, func(_ context.Context, _ *Event) error {
		atomic.AddInt32(&count, 1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				ev := &Event{ID: "x", Topic: TopicTaskUpdated, Timestamp: time.Now()}
				_ = bus.Publish(ctx, ev)
			}
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&count) != 200 {
		t.Errorf("count = %d, want 200", count)
	}
	hist, _ := bus.History(TopicTaskUpdated, 0)
	if len(hist) != 200 {
		t.Errorf("History len = %d, want 200", len(hist))
	}
}
