package bus

import (
	"log/slog"

	"github.com/mtzanidakis/taskhive/internal/orchestrator"
)

// EventForwarder returns a listener that republishes every orchestrator
// event on the bus, so external subscribers see the same lifecycle stream
// as in-process ones. Publish failures are logged and dropped; event
// delivery is best-effort.
func EventForwarder(c *Client) orchestrator.Listener {
	return func(ev orchestrator.Event) {
		topic := TopicEvent(ev.Type)
		if err := c.PublishJSON(topic, ev); err != nil {
			slog.Warn("failed to forward event", "topic", topic, "error", err)
		}
	}
}
