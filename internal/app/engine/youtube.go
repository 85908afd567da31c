package engine

import (
	"context"
	"encoding/json"
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

// YouTubeName is the backend type name of the YouTube engine.
const YouTubeName = "youtube"

// Player API commands understood by the iframe.
const (
	CommandPlay  = `{"event":"command","func":"playVideo","args":""}`
	CommandPause = `{"event":"command","func":"pauseVideo","args":""}`
	CommandStop  = `{"event":"command","func":"stopVideo","args":""}`
)

const (
	eventReady       = "onReady"
	eventStateChange = "onStateChange"
	stateEnded       = 0
)

// ErrNoVideoID is returned when a song without a video ID is loaded.
var ErrNoVideoID = errors.New("song has no video id")

// YouTubeConfig holds the YouTube engine settings.
type YouTubeConfig struct {
	Origin         string `yaml:"origin" mapstructure:"origin" validate:"omitempty,url"`
	HideRelated    bool   `yaml:"hide_related" mapstructure:"hide_related" default:"true"`
	HideInfo       bool   `yaml:"hide_info" mapstructure:"hide_info" default:"true"`
	ModestBranding bool   `yaml:"modest_branding" mapstructure:"modest_branding" default:"true"`
}

type iframeMessage struct {
	Event string          `json:"event"`
	Info  json.RawMessage `json:"info"`
}

// YouTube plays videos in the device's hidden iframe. Commands issued before
// the iframe reports onReady are queued and flushed in order once it does.
type YouTube struct {
	device Device
	config YouTubeConfig
	events chan playback.EngineEvent

	mu              sync.Mutex
	seq             uint64
	loaded          bool
	ready           bool
	autoplayPending bool
	queue           []string
}

// NewYouTube creates a YouTube engine from its settings.
func NewYouTube(device Device, settings map[string]any) (*YouTube, error) {
	var config YouTubeConfig
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	zlog.Debug().Msgf("youtube engine config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &YouTube{
		device: device,
		config: config,
		events: make(chan playback.EngineEvent, eventBuffer),
	}, nil
}

// Name returns the engine name.
func (y *YouTube) Name() string {
	return YouTubeName
}

// Kinds returns the kinds played in the iframe.
func (y *YouTube) Kinds() []song.Kind {
	return []song.Kind{song.KindYouTube}
}

// Events returns the engine's event channel.
func (y *YouTube) Events() <-chan playback.EngineEvent {
	return y.events
}

// EmbedURL returns the iframe URL for a video ID with the configured options.
func (y *YouTube) EmbedURL(videoID string) string {
	return song.EmbedURL(videoID, song.EmbedOptions{
		Origin:         y.config.Origin,
		HideRelated:    y.config.HideRelated,
		HideInfo:       y.config.HideInfo,
		ModestBranding: y.config.ModestBranding,
	})
}

// Load (re)creates the iframe for the cue's video. Commands still queued for
// the previous iframe are discarded.
func (y *YouTube) Load(ctx context.Context, cue playback.Cue) error {
	if cue.Song.VideoID == "" {
		return errors.Wrapf(ErrNoVideoID, "load %s", cue.Song.URL)
	}

	y.mu.Lock()
	defer y.mu.Unlock()

	y.seq = cue.Seq
	y.loaded = true
	y.ready = false
	y.autoplayPending = true
	y.queue = nil
	return y.device.Send(ctx, bridge.Message{
		Type:     bridge.TypeYouTubeLoad,
		Seq:      cue.Seq,
		EmbedURL: y.EmbedURL(cue.Song.VideoID),
	})
}

// Play starts or resumes the video. The first Play after a load is covered by
// the embed's autoplay and sends nothing.
func (y *YouTube) Play(ctx context.Context) error {
	y.mu.Lock()
	defer y.mu.Unlock()

	if !y.loaded {
		return playback.ErrNoSong
	}
	if y.autoplayPending {
		y.autoplayPending = false
		return nil
	}
	return y.commandLocked(ctx, CommandPlay)
}

// Pause pauses the video.
func (y *YouTube) Pause(ctx context.Context) error {
	y.mu.Lock()
	defer y.mu.Unlock()

	if !y.loaded {
		return nil
	}
	y.autoplayPending = false
	return y.commandLocked(ctx, CommandPause)
}

// Stop stops the video and tears the iframe down. Stopping an idle engine sends nothing.
func (y *YouTube) Stop(ctx context.Context) error {
	y.mu.Lock()
	defer y.mu.Unlock()

	if !y.loaded {
		return nil
	}

	var errs error
	if y.ready {
		errs = errors.CombineErrors(errs, y.sendLocked(ctx, CommandStop))
	}
	y.loaded = false
	y.ready = false
	y.autoplayPending = false
	y.queue = nil
	errs = errors.CombineErrors(errs, y.device.Send(ctx, bridge.Message{Type: bridge.TypeYouTubeUnload, Seq: y.seq}))
	return errs
}

// Ready reports whether the current iframe has signalled onReady.
func (y *YouTube) Ready() bool {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.ready
}

// HandleMessage consumes the iframe's messages relayed by the device.
// Unparseable data and messages from an earlier iframe are ignored.
func (y *YouTube) HandleMessage(msg bridge.Message) bool {
	if msg.Type != bridge.TypeYouTubeMessage {
		return false
	}

	var m iframeMessage
	if err := json.Unmarshal([]byte(msg.Data), &m); err != nil {
		zlog.Debug().Msgf("engine: youtube: ignoring malformed iframe message: seq=%d err=%v", msg.Seq, err)
		return true
	}

	y.mu.Lock()
	defer y.mu.Unlock()

	if !y.loaded || msg.Seq != y.seq {
		zlog.Debug().Msgf("engine: youtube: ignoring message for stale iframe: seq=%d current=%d event=%s", msg.Seq, y.seq, m.Event)
		return true
	}

	switch m.Event {
	case eventReady:
		y.ready = true
		y.flushLocked()
	case eventStateChange:
		var info int
		if err := json.Unmarshal(m.Info, &info); err != nil {
			zlog.Debug().Msgf("engine: youtube: ignoring state change without numeric info: %s", string(m.Info))
			return true
		}
		if info == stateEnded {
			emit(y.events, YouTubeName, playback.EngineEvent{Type: playback.EngineEnded, Seq: y.seq})
		}
	}
	return true
}

// commandLocked sends cmd now if the iframe is ready, or queues it otherwise.
func (y *YouTube) commandLocked(ctx context.Context, cmd string) error {
	if !y.ready {
		y.queue = append(y.queue, cmd)
		return nil
	}
	return y.sendLocked(ctx, cmd)
}

func (y *YouTube) sendLocked(ctx context.Context, cmd string) error {
	return y.device.Send(ctx, bridge.Message{Type: bridge.TypeYouTubeCommand, Seq: y.seq, Data: cmd})
}

func (y *YouTube) flushLocked() {
	queue := y.queue
	y.queue = nil
	for _, cmd := range queue {
		if err := y.sendLocked(context.Background(), cmd); err != nil {
			zlog.Warn().Msgf("engine: youtube: failed to flush command: seq=%d err=%v", y.seq, err)
		}
	}
}
