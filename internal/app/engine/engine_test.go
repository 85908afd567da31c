package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/spinbox/internal/app/playback"
	"github.com/osa030/spinbox/internal/domain/song"
	"github.com/osa030/spinbox/internal/infra/bridge"
	"github.com/osa030/spinbox/internal/infra/config"
)

type fakeDevice struct {
	mu   sync.Mutex
	sent []bridge.Message
	err  error
}

func (d *fakeDevice) Send(ctx context.Context, msg bridge.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, msg)
	return nil
}

func (d *fakeDevice) messages() []bridge.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	result := make([]bridge.Message, len(d.sent))
	copy(result, d.sent)
	return result
}

func (d *fakeDevice) types() []string {
	var types []string
	for _, m := range d.messages() {
		if m.Type == bridge.TypeYouTubeCommand {
			types = append(types, m.Data)
			continue
		}
		types = append(types, m.Type)
	}
	return types
}

func receive(t *testing.T, events <-chan playback.EngineEvent) playback.EngineEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no engine event")
		return playback.EngineEvent{}
	}
}

func assertNoEvent(t *testing.T, events <-chan playback.EngineEvent) {
	t.Helper()
	select {
	case ev := <-events:
		t.Fatalf("unexpected engine event: %s seq=%d", ev.Type, ev.Seq)
	case <-time.After(20 * time.Millisecond):
	}
}

func mustSong(t *testing.T, raw string) song.Song {
	t.Helper()
	s, err := song.New(raw)
	require.NoError(t, err)
	return s
}

func TestNative_Commands(t *testing.T) {
	ctx := context.Background()
	device := &fakeDevice{}
	n, err := NewNative(device, nil)
	require.NoError(t, err)

	// Idle stop sends nothing
	require.NoError(t, n.Stop(ctx))
	assert.Empty(t, device.messages())

	video := mustSong(t, "https://example.com/clip.webm")
	require.NoError(t, n.Load(ctx, playback.Cue{Seq: 4, Song: video}))
	require.NoError(t, n.Play(ctx))
	require.NoError(t, n.Pause(ctx))
	require.NoError(t, n.Stop(ctx))
	require.NoError(t, n.Stop(ctx))

	msgs := device.messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, bridge.Message{
		Type:    bridge.TypeMediaLoad,
		Seq:     4,
		URL:     "https://example.com/clip.webm",
		Kind:    "video",
		Preload: "auto",
	}, msgs[0])
	assert.Equal(t, []string{bridge.TypeMediaLoad, bridge.TypeMediaPlay, bridge.TypeMediaPause, bridge.TypeMediaStop}, device.types())
	for _, m := range msgs {
		assert.Equal(t, uint64(4), m.Seq)
	}
}

func TestNative_PlayWithoutLoad(t *testing.T) {
	n, err := NewNative(&fakeDevice{}, nil)
	require.NoError(t, err)
	assert.True(t, errors.Is(n.Play(context.Background()), playback.ErrNoSong))
}

func TestNative_Settings(t *testing.T) {
	n, err := NewNative(&fakeDevice{}, map[string]any{"preload": "metadata"})
	require.NoError(t, err)
	assert.Equal(t, "metadata", n.config.Preload)

	_, err = NewNative(&fakeDevice{}, map[string]any{"preload": "everything"})
	assert.Error(t, err)
}

func TestNative_DeviceReports(t *testing.T) {
	n, err := NewNative(&fakeDevice{}, nil)
	require.NoError(t, err)

	assert.True(t, n.HandleMessage(bridge.Message{Type: bridge.TypeMediaEnded, Seq: 2}))
	ev := receive(t, n.Events())
	assert.Equal(t, playback.EngineEnded, ev.Type)
	assert.Equal(t, uint64(2), ev.Seq)

	assert.True(t, n.HandleMessage(bridge.Message{Type: bridge.TypeMediaError, Seq: 3, Message: "NotAllowedError"}))
	ev = receive(t, n.Events())
	assert.Equal(t, playback.EngineFailed, ev.Type)
	assert.True(t, errors.Is(ev.Err, ErrPlayRejected))
	assert.Contains(t, ev.Err.Error(), "NotAllowedError")

	assert.False(t, n.HandleMessage(bridge.Message{Type: bridge.TypeYouTubeMessage}))
}

func TestNative_DeviceMissing(t *testing.T) {
	n, err := NewNative(&fakeDevice{err: bridge.ErrNoDevice}, nil)
	require.NoError(t, err)

	err = n.Load(context.Background(), playback.Cue{Seq: 1, Song: mustSong(t, "https://example.com/a.mp3")})
	assert.True(t, errors.Is(err, bridge.ErrNoDevice))
}

func ready(seq uint64) bridge.Message {
	return bridge.Message{Type: bridge.TypeYouTubeMessage, Seq: seq, Data: `{"event":"onReady"}`}
}

func TestYouTube_LoadUsesEmbedURL(t *testing.T) {
	device := &fakeDevice{}
	y, err := NewYouTube(device, map[string]any{"origin": "http://localhost:8080", "hide_info": false})
	require.NoError(t, err)

	cue := playback.Cue{Seq: 1, Song: mustSong(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ")}
	require.NoError(t, y.Load(context.Background(), cue))

	msgs := device.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, bridge.TypeYouTubeLoad, msgs[0].Type)
	assert.Equal(t, uint64(1), msgs[0].Seq)
	assert.Equal(t,
		"https://www.youtube.com/embed/dQw4w9WgXcQ?enablejsapi=1&controls=0&autoplay=1&playsinline=1"+
			"&origin=http%3A%2F%2Flocalhost%3A8080&rel=0&modestbranding=1",
		msgs[0].EmbedURL)
}

func TestYouTube_LoadWithoutVideoID(t *testing.T) {
	y, err := NewYouTube(&fakeDevice{}, nil)
	require.NoError(t, err)

	err = y.Load(context.Background(), playback.Cue{Seq: 1, Song: song.Song{URL: "https://youtu.be/", Kind: song.KindYouTube}})
	assert.True(t, errors.Is(err, ErrNoVideoID))
}

func TestYouTube_CommandsQueuedUntilReady(t *testing.T) {
	ctx := context.Background()
	device := &fakeDevice{}
	y, err := NewYouTube(device, nil)
	require.NoError(t, err)

	cue := playback.Cue{Seq: 1, Song: mustSong(t, "https://youtu.be/dQw4w9WgXcQ")}
	require.NoError(t, y.Load(ctx, cue))
	require.NoError(t, y.Play(ctx)) // covered by autoplay
	require.NoError(t, y.Pause(ctx))
	require.NoError(t, y.Play(ctx))
	assert.Equal(t, []string{bridge.TypeYouTubeLoad}, device.types())
	assert.False(t, y.Ready())

	assert.True(t, y.HandleMessage(ready(1)))
	assert.True(t, y.Ready())
	assert.Equal(t, []string{bridge.TypeYouTubeLoad, CommandPause, CommandPlay}, device.types())

	// Once ready, commands go out directly
	require.NoError(t, y.Pause(ctx))
	assert.Equal(t, []string{bridge.TypeYouTubeLoad, CommandPause, CommandPlay, CommandPause}, device.types())
}

func TestYouTube_NewLoadDiscardsQueue(t *testing.T) {
	ctx := context.Background()
	device := &fakeDevice{}
	y, err := NewYouTube(device, nil)
	require.NoError(t, err)

	require.NoError(t, y.Load(ctx, playback.Cue{Seq: 1, Song: mustSong(t, "https://youtu.be/dQw4w9WgXcQ")}))
	require.NoError(t, y.Pause(ctx))
	require.NoError(t, y.Load(ctx, playback.Cue{Seq: 2, Song: mustSong(t, "https://youtu.be/9bZkp7q19f0")}))

	// onReady from the first iframe is stale
	y.HandleMessage(ready(1))
	assert.False(t, y.Ready())

	y.HandleMessage(ready(2))
	assert.Equal(t, []string{bridge.TypeYouTubeLoad, bridge.TypeYouTubeLoad}, device.types())
}

func TestYouTube_Stop(t *testing.T) {
	ctx := context.Background()
	device := &fakeDevice{}
	y, err := NewYouTube(device, nil)
	require.NoError(t, err)

	require.NoError(t, y.Stop(ctx))
	assert.Empty(t, device.messages())

	require.NoError(t, y.Load(ctx, playback.Cue{Seq: 1, Song: mustSong(t, "https://youtu.be/dQw4w9WgXcQ")}))
	y.HandleMessage(ready(1))
	require.NoError(t, y.Stop(ctx))

	assert.Equal(t, []string{bridge.TypeYouTubeLoad, CommandStop, bridge.TypeYouTubeUnload}, device.types())
	assert.True(t, errors.Is(y.Play(ctx), playback.ErrNoSong))
}

func TestYouTube_StateChanges(t *testing.T) {
	ctx := context.Background()
	y, err := NewYouTube(&fakeDevice{}, nil)
	require.NoError(t, err)
	require.NoError(t, y.Load(ctx, playback.Cue{Seq: 5, Song: mustSong(t, "https://youtu.be/dQw4w9WgXcQ")}))
	y.HandleMessage(ready(5))

	tests := []struct {
		name  string
		msg   bridge.Message
		ended bool
	}{
		{"playing", bridge.Message{Type: bridge.TypeYouTubeMessage, Seq: 5, Data: `{"event":"onStateChange","info":1}`}, false},
		{"buffering", bridge.Message{Type: bridge.TypeYouTubeMessage, Seq: 5, Data: `{"event":"onStateChange","info":3}`}, false},
		{"not json", bridge.Message{Type: bridge.TypeYouTubeMessage, Seq: 5, Data: `hello`}, false},
		{"info missing", bridge.Message{Type: bridge.TypeYouTubeMessage, Seq: 5, Data: `{"event":"onStateChange"}`}, false},
		{"other event", bridge.Message{Type: bridge.TypeYouTubeMessage, Seq: 5, Data: `{"event":"infoDelivery","info":0}`}, false},
		{"ended for older iframe", bridge.Message{Type: bridge.TypeYouTubeMessage, Seq: 4, Data: `{"event":"onStateChange","info":0}`}, false},
		{"ended", bridge.Message{Type: bridge.TypeYouTubeMessage, Seq: 5, Data: `{"event":"onStateChange","info":0}`}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, y.HandleMessage(tt.msg))
			if !tt.ended {
				assertNoEvent(t, y.Events())
				return
			}
			ev := receive(t, y.Events())
			assert.Equal(t, playback.EngineEnded, ev.Type)
			assert.Equal(t, uint64(5), ev.Seq)
		})
	}

	assert.False(t, y.HandleMessage(bridge.Message{Type: bridge.TypeMediaEnded}))
}

func TestNewSetFromConfig(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)

	set, err := NewSetFromConfig(cfg, &fakeDevice{})
	require.NoError(t, err)

	engines := set.Engines()
	require.Len(t, engines, 2)
	assert.Equal(t, NativeName, engines[0].Name())
	assert.Equal(t, YouTubeName, engines[1].Name())

	assert.True(t, set.Dispatch(bridge.Message{Type: bridge.TypeMediaEnded, Seq: 1}))
	assert.True(t, set.Dispatch(bridge.Message{Type: bridge.TypeYouTubeMessage, Data: "x"}))
	assert.False(t, set.Dispatch(bridge.Message{Type: bridge.TypeUIToggle}))
}

func TestNewSetFromConfig_Errors(t *testing.T) {
	cfg := &config.Config{}
	_, err := NewSetFromConfig(cfg, &fakeDevice{})
	assert.Error(t, err)

	cfg.Backends = []config.BackendConfig{{Type: "cassette"}}
	_, err = NewSetFromConfig(cfg, &fakeDevice{})
	assert.ErrorContains(t, err, "unsupported backend type")

	cfg.Backends = []config.BackendConfig{{Type: NativeName, Settings: map[string]any{"preload": "sometimes"}}}
	_, err = NewSetFromConfig(cfg, &fakeDevice{})
	assert.ErrorContains(t, err, "failed to create backend")
}
