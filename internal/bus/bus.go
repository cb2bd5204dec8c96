package bus

import (
	"fmt"
	"log/slog"

	"github.com/riskgraph/addrrisk/internal/domain"
)

// New creates a new event bus based on configuration.
// For Community tier: returns ChannelBus, where TopicAnalysisRequested
// is delivered round-robin to mimic a single-consumer queue.
// For Pro tier: returns NATSBus, where TopicAnalysisRequested is a real
// NATS queue-group subscription shared across every connected instance.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		slog.Info("event bus selected", "type", "channel", "buffer_size", cfg.ChannelBufferSize)
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		slog.Info("event bus selected", "type", "nats", "url", cfg.NATSUrl)
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
