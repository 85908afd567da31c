package playback

import (
	"context"

	"github.com/osa030/spinbox/internal/domain/song"
)

// Cue identifies one play cycle on an engine. Seq grows with every load so that
// events belonging to an earlier song can be told apart.
type Cue struct {
	Seq  uint64
	Song song.Song
}

// EngineEventType represents an event reported by an engine.
type EngineEventType int

const (
	EngineEnded  EngineEventType = iota // Natural end of media
	EngineFailed                        // A play request was rejected
)

// String returns the string representation of the engine event type.
func (t EngineEventType) String() string {
	switch t {
	case EngineEnded:
		return "ended"
	case EngineFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EngineEvent is reported asynchronously by an engine.
type EngineEvent struct {
	Type EngineEventType
	Seq  uint64 // Seq of the cue the event belongs to
	Err  error  // Set for EngineFailed
}

// Engine is a playback backend. Commands are requests: they may be delivered late
// or fail later through an EngineFailed event.
type Engine interface {
	// Name returns the engine name (used in config and logs).
	Name() string
	// Kinds returns the song kinds this engine plays.
	Kinds() []song.Kind
	// Load prepares the engine for the cue's song.
	Load(ctx context.Context, cue Cue) error
	// Play starts or resumes the loaded song.
	Play(ctx context.Context) error
	// Pause pauses the loaded song.
	Pause(ctx context.Context) error
	// Stop stops playback. Stopping an idle engine is a no-op.
	Stop(ctx context.Context) error
	// Events returns the engine's event channel.
	Events() <-chan EngineEvent
}

// Rotator is the cosmetic animation driven in lockstep with play/pause.
type Rotator interface {
	Start()
	Stop()
}
