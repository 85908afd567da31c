// Package engine provides the playback backends that drive the media device.
// Both backends only issue requests: the device answers asynchronously and the
// answers come back through HandleMessage.
package engine

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/spinbox/internal/app/playback"
	"github.com/osa030/spinbox/internal/infra/bridge"
)

const eventBuffer = 16

// Device delivers commands to the page hosting the media element and the iframe.
type Device interface {
	Send(ctx context.Context, msg bridge.Message) error
}

// Backend is an engine that also consumes the device's reports.
type Backend interface {
	playback.Engine
	// HandleMessage consumes msg if it is addressed to this backend.
	HandleMessage(msg bridge.Message) bool
}

// emit sends an event without blocking.
func emit(events chan playback.EngineEvent, name string, ev playback.EngineEvent) {
	select {
	case events <- ev:
	default:
		zlog.Warn().Msgf("engine: %s event channel full, dropping %s seq=%d", name, ev.Type, ev.Seq)
	}
}
