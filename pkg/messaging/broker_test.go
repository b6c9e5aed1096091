package messaging

import (
	"testing"
	"time"
)

func TestBroker(t *testing.T) {
	t.Run("test direct event", func(t *testing.T) {
		broker := NewBroker()
		t.Cleanup(func() {
			broker.Reset()
		})
		ch1 := make(chan Event, 1)
		ch2 := make(chan Event, 1)

		if err := broker.Subscribe("progress", ch1); err != nil {
			t.Fatalf("Failed to subscribe progress: %v", err)
		}
		if err := broker.Subscribe("recorder", ch2); err != nil {
			t.Fatalf("Failed to subscribe recorder: %v", err)
		}

		ev := Event{
			Source:    "run-1",
			To:        []string{"recorder"},
			Kind:      KindEpisodeSummary,
			Payload:   EpisodeSummary{Episode: 2, Cumulative: 10, Mean: 2, Steps: 5},
			Timestamp: time.Now(),
		}

		if err := broker.Publish(ev); err != nil {
			t.Fatalf("Failed to publish event: %v", err)
		}

		select {
		case received := <-ch2:
			summary, ok := received.Payload.(EpisodeSummary)
			if !ok || received.Kind != KindEpisodeSummary || summary.Episode != 2 {
				t.Errorf("Unexpected event received: %+v", received)
			}
		case <-time.After(time.Second):
			t.Error("Timeout waiting for event")
		}

		select {
		case ev := <-ch1:
			t.Errorf("progress should not receive event but got: %+v", ev)
		default:
		}
	})

	t.Run("test broadcast skips source", func(t *testing.T) {
		broker := NewBroker()
		t.Cleanup(func() {
			broker.Reset()
		})
		subs := map[string]chan Event{
			"run-1":    make(chan Event, 1),
			"progress": make(chan Event, 1),
			"recorder": make(chan Event, 1),
		}
		for id, ch := range subs {
			if err := broker.Subscribe(id, ch); err != nil {
				t.Fatalf("Failed to subscribe %s: %v", id, err)
			}
		}

		if err := broker.Publish(Event{Source: "run-1", Kind: KindRunFinished, Timestamp: time.Now()}); err != nil {
			t.Fatalf("Failed to publish broadcast: %v", err)
		}

		for id, ch := range subs {
			select {
			case ev := <-ch:
				if id == "run-1" {
					t.Errorf("Source received its own broadcast: %+v", ev)
				} else if ev.Kind != KindRunFinished {
					t.Errorf("Unexpected event for %s: %+v", id, ev)
				}
			default:
				if id != "run-1" {
					t.Errorf("%s did not receive broadcast", id)
				}
			}
		}
	})

	t.Run("test subscription management", func(t *testing.T) {
		broker := NewBroker()
		ch := make(chan Event, 1)

		if err := broker.Subscribe("progress", ch); err != nil {
			t.Fatalf("Failed to subscribe: %v", err)
		}
		if err := broker.Subscribe("progress", ch); err == nil {
			t.Error("Expected error for duplicate subscription, got nil")
		}
		if err := broker.Unsubscribe("progress"); err != nil {
			t.Fatalf("Failed to unsubscribe: %v", err)
		}
		if err := broker.Unsubscribe("progress"); err == nil {
			t.Error("Expected error for unsubscribing unknown subscriber, got nil")
		}
	})

	t.Run("test channel full behavior", func(t *testing.T) {
		broker := NewBroker()
		full := make(chan Event, 1)
		roomy := make(chan Event, 2)

		if err := broker.Subscribe("full", full); err != nil {
			t.Fatalf("Failed to subscribe: %v", err)
		}
		if err := broker.Subscribe("roomy", roomy); err != nil {
			t.Fatalf("Failed to subscribe: %v", err)
		}

		ev := Event{Source: "run-1", Kind: KindCheckpoint, Payload: Checkpoint{Episode: 5}}
		if err := broker.Publish(ev); err != nil {
			t.Fatalf("Failed to publish first event: %v", err)
		}
		if err := broker.Publish(ev); err == nil {
			t.Error("Expected error when publishing to full channel, got nil")
		}
		if len(roomy) != 2 {
			t.Errorf("roomy subscriber got %d events, want 2", len(roomy))
		}
	})
}
