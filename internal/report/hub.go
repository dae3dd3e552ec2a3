package report

import (
	"github.com/mattjoyce/firstrun/internal/events"
)

// HubSink publishes signals on an events hub.
type HubSink struct {
	hub     *events.Hub
	batchID string
}

func NewHubSink(hub *events.Hub, batchID string) *HubSink {
	return &HubSink{hub: hub, batchID: batchID}
}

func (h *HubSink) Progress(p Progress) {
	h.hub.Publish(events.TypeAppDismissed, events.AppDismissed{BatchID: h.batchID, App: p.App})
}

func (h *HubSink) Complete(c Completion) {
	payload := events.BatchFinished{
		BatchID:    h.batchID,
		Completed:  append([]string{}, c.Completed...),
		DurationMS: c.Duration.Milliseconds(),
	}
	if c.Succeeded() {
		h.hub.Publish(events.TypeBatchCompleted, payload)
		return
	}
	payload.Kind = c.Kind
	payload.App = c.App
	payload.Phase = c.Phase
	if c.Err != nil {
		payload.Error = c.Err.Error()
	}
	h.hub.Publish(events.TypeBatchFailed, payload)
}
