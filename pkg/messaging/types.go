package messaging

import (
	"time"
)

// Kind tags what an event reports
type Kind string

const (
	KindEpisodeSummary Kind = "episode_summary"
	KindCheckpoint     Kind = "checkpoint"
	KindRunFinished    Kind = "run_finished"
)

// Event is something that happened during a run
type Event struct {
	Source    string    // ID of the run that emitted the event
	To        []string  // subscriber IDs (empty means broadcast)
	Kind      Kind      // what happened
	Payload   any       // event-specific value, e.g. an EpisodeSummary
	Timestamp time.Time // when it happened
}

// EpisodeSummary is the payload of KindEpisodeSummary events
type EpisodeSummary struct {
	Episode    int
	Cumulative float64
	Mean       float64
	Steps      int
	Epsilon    float64
}

// Checkpoint is the payload of KindCheckpoint events
type Checkpoint struct {
	Episode  int
	Timestep int
}

// Publisher emits events
type Publisher interface {
	Publish(ev Event) error
}

// Broker routes events to subscribers
type Broker interface {
	Publisher
	// Subscribe registers a subscriber to receive events
	Subscribe(id string, ch chan<- Event) error
	// Unsubscribe removes a subscription
	Unsubscribe(id string) error
}
