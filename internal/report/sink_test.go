package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/firstrun/internal/events"
	"github.com/mattjoyce/firstrun/internal/protocol"
)

func TestMultiPreservesOrder(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	s := Multi(a, nil, b)

	s.Progress(Progress{App: "Chrome"})
	s.Progress(Progress{App: "Maps"})
	s.Complete(Completion{Status: StatusSucceeded, Completed: []string{"Chrome", "Maps"}})

	for _, r := range []*Recorder{a, b} {
		assert.Equal(t, []string{"Chrome", "Maps"}, r.ProgressApps())
		require.Len(t, r.Completions(), 1)
		assert.True(t, r.Completions()[0].Succeeded())
		assert.Len(t, r.Signals(), 3)
	}
}

func TestStatusWriterStream(t *testing.T) {
	var buf bytes.Buffer
	w := NewStatusWriter(&buf, nil)

	w.Progress(Progress{App: "Chrome", At: time.Now()})
	w.Complete(Completion{
		Status:    StatusFailed,
		Completed: []string{"Chrome"},
		Kind:      "lifecycle_phase_failed",
		App:       "Maps",
		Phase:     "exit",
		Err:       errors.New("force-stop failed"),
	})

	lines, err := protocol.DecodeStream(&buf)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, protocol.TypeStatus, lines[0].Type)
	assert.Equal(t, "Chrome", lines[0].Bundle[protocol.KeyDismissedApp])

	res := lines[1]
	assert.False(t, res.OK())
	assert.Equal(t, protocol.ResultCanceled, res.Code)
	assert.Equal(t, "lifecycle_phase_failed", res.Bundle[protocol.KeyErrorKind])
	assert.Equal(t, "Maps", res.Bundle[protocol.KeyApp])
	assert.Equal(t, "exit", res.Bundle[protocol.KeyPhase])
	assert.Equal(t, "force-stop failed", res.Bundle[protocol.KeyError])
	assert.Equal(t, "Chrome", res.Bundle[protocol.KeyCompleted])
	assert.False(t, res.At.IsZero())
}

func TestStatusWriterSuccess(t *testing.T) {
	var buf bytes.Buffer
	w := NewStatusWriter(&buf, nil)
	w.Complete(Completion{Status: StatusSucceeded, Completed: []string{"YouTube"}})

	lines, err := protocol.DecodeStream(&buf)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].OK())
	assert.NotContains(t, lines[0].Bundle, protocol.KeyErrorKind)
}

func TestHubSink(t *testing.T) {
	hub := events.NewHub(8)
	s := NewHubSink(hub, "b-1")

	s.Progress(Progress{App: "Gmail"})
	s.Complete(Completion{Status: StatusFailed, Kind: "unrecognized_application", App: "Bogus", Completed: []string{"Gmail"}})

	snap := hub.SnapshotSince(0)
	require.Len(t, snap, 2)
	assert.Equal(t, events.TypeAppDismissed, snap[0].Type)
	assert.Equal(t, events.TypeBatchFailed, snap[1].Type)

	var fin events.BatchFinished
	require.NoError(t, json.Unmarshal(snap[1].Data, &fin))
	assert.Equal(t, "b-1", fin.BatchID)
	assert.Equal(t, "Bogus", fin.App)
	assert.Equal(t, []string{"Gmail"}, fin.Completed)
}
