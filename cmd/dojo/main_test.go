package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boristopalov/dojo/pkg/logging"
	"github.com/boristopalov/dojo/pkg/messaging"
)

func TestWatchCheckpoints(t *testing.T) {
	var logs bytes.Buffer
	log := logging.New(logging.Config{Level: logging.LevelDebug, Output: &logs})
	broker := messaging.NewBroker()

	stop, err := watchCheckpoints(log, broker)
	require.NoError(t, err)

	require.NoError(t, broker.Publish(messaging.Event{
		Source:  "run-1",
		Kind:    messaging.KindCheckpoint,
		Payload: messaging.Checkpoint{Episode: 5, Timestep: 42},
	}))
	require.NoError(t, broker.Publish(messaging.Event{
		Source: "run-1",
		Kind:   messaging.KindRunFinished,
	}))

	// stop returns only once the logging goroutine has exited.
	stop()
	assert.Contains(t, logs.String(), "checkpoint saved")
	assert.Contains(t, logs.String(), "timestep=42")
	assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("checkpoint saved")))

	// Nothing is delivered after stop, and the id can be reused.
	assert.NoError(t, broker.Publish(messaging.Event{Source: "run-1", Kind: messaging.KindCheckpoint}))
	stop, err = watchCheckpoints(log, broker)
	require.NoError(t, err)
	stop()
}
