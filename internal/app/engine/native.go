package engine

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/spinbox/internal/app/playback"
	"github.com/osa030/spinbox/internal/domain/song"
	"github.com/osa030/spinbox/internal/infra/bridge"
)

// NativeName is the backend type name of the native engine.
const NativeName = "native"

// ErrPlayRejected is reported when the device rejects a play request.
var ErrPlayRejected = errors.New("device rejected play request")

// NativeConfig holds the native engine settings.
type NativeConfig struct {
	Preload string `yaml:"preload" mapstructure:"preload" default:"auto" validate:"oneof=none metadata auto"`
}

// Native plays audio and video files on the device's single media element.
type Native struct {
	device Device
	config NativeConfig
	events chan playback.EngineEvent

	mu     sync.Mutex
	seq    uint64
	loaded bool
}

// NewNative creates a native engine from its settings.
func NewNative(device Device, settings map[string]any) (*Native, error) {
	var config NativeConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("native engine config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &Native{
		device: device,
		config: config,
		events: make(chan playback.EngineEvent, eventBuffer),
	}, nil
}

// Name returns the engine name.
func (n *Native) Name() string {
	return NativeName
}

// Kinds returns the kinds played on the media element.
func (n *Native) Kinds() []song.Kind {
	return []song.Kind{song.KindAudio, song.KindVideo}
}

// Events returns the engine's event channel.
func (n *Native) Events() <-chan playback.EngineEvent {
	return n.events
}

// Load points the media element at the cue's URL.
func (n *Native) Load(ctx context.Context, cue playback.Cue) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.seq = cue.Seq
	n.loaded = true
	return n.device.Send(ctx, bridge.Message{
		Type:    bridge.TypeMediaLoad,
		Seq:     cue.Seq,
		URL:     cue.Song.URL,
		Kind:    string(cue.Song.Kind),
		Preload: n.config.Preload,
	})
}

// Play starts or resumes the media element.
func (n *Native) Play(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.loaded {
		return playback.ErrNoSong
	}
	return n.device.Send(ctx, bridge.Message{Type: bridge.TypeMediaPlay, Seq: n.seq})
}

// Pause pauses the media element.
func (n *Native) Pause(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.loaded {
		return nil
	}
	return n.device.Send(ctx, bridge.Message{Type: bridge.TypeMediaPause, Seq: n.seq})
}

// Stop pauses the media element and rewinds it. Stopping an idle engine sends nothing.
func (n *Native) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.loaded {
		return nil
	}
	n.loaded = false
	return n.device.Send(ctx, bridge.Message{Type: bridge.TypeMediaStop, Seq: n.seq})
}

// HandleMessage turns media.ended and media.error reports into engine events.
func (n *Native) HandleMessage(msg bridge.Message) bool {
	switch msg.Type {
	case bridge.TypeMediaEnded:
		emit(n.events, NativeName, playback.EngineEvent{Type: playback.EngineEnded, Seq: msg.Seq})
	case bridge.TypeMediaError:
		err := ErrPlayRejected
		if msg.Message != "" {
			err = errors.Wrap(ErrPlayRejected, msg.Message)
		}
		emit(n.events, NativeName, playback.EngineEvent{Type: playback.EngineFailed, Seq: msg.Seq, Err: err})
	default:
		return false
	}
	return true
}
