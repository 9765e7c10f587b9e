package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dennisdiepolder/callcrm/backend/internal/metrics"
	"github.com/dennisdiepolder/callcrm/backend/internal/performance"
	"github.com/rs/zerolog"
)

// SnapshotMessage wraps a team snapshot for the dashboard
type SnapshotMessage struct {
	Type     string                              `json:"type"`
	Snapshot performance.TeamPerformanceSnapshot `json:"snapshot"`
}

// Broadcaster periodically pushes team performance snapshots to the hub
type Broadcaster struct {
	hub        *Hub
	aggregator *performance.Aggregator
	interval   time.Duration
	logger     zerolog.Logger
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hub *Hub, aggregator *performance.Aggregator, interval time.Duration, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		hub:        hub,
		aggregator: aggregator,
		interval:   interval,
		logger:     logger.With().Str("component", "broadcaster").Logger(),
	}
}

// Start begins broadcasting snapshots until ctx is cancelled
func (b *Broadcaster) Start(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.logger.Info().Dur("interval", b.interval).Msg("broadcaster started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("broadcaster stopped")
			return

		case <-ticker.C:
			// Nobody listening, skip the roll-up
			if b.hub.ClientCount() == 0 {
				continue
			}

			message := SnapshotMessage{
				Type:     "team_snapshot",
				Snapshot: b.aggregator.TeamSnapshot(),
			}

			data, err := json.Marshal(message)
			if err != nil {
				metrics.Get().RecordBroadcastError()
				b.logger.Error().Err(err).Msg("failed to marshal team snapshot")
				continue
			}

			b.hub.Broadcast(data)
			metrics.Get().RecordSnapshotBroadcast()
			b.logger.Debug().
				Int("clients", b.hub.ClientCount()).
				Msg("broadcasted team snapshot")
		}
	}
}
