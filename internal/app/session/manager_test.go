package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/spinbox/internal/app/notification"
	"github.com/osa030/spinbox/internal/app/playback"
	"github.com/osa030/spinbox/internal/domain/playlist"
	"github.com/osa030/spinbox/internal/domain/song"
	"github.com/osa030/spinbox/internal/infra/bridge"
	"github.com/osa030/spinbox/internal/infra/config"
)

const primaryID = "device-1"

type fakeHub struct {
	mu        sync.Mutex
	commands  []bridge.Message
	broadcast []bridge.Message
	direct    map[string][]bridge.Message
}

func newFakeHub() *fakeHub {
	return &fakeHub{direct: make(map[string][]bridge.Message)}
}

func (h *fakeHub) Send(ctx context.Context, msg bridge.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, msg)
	return nil
}

func (h *fakeHub) Broadcast(msg bridge.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcast = append(h.broadcast, msg)
}

func (h *fakeHub) SendTo(clientID string, msg bridge.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.direct[clientID] = append(h.direct[clientID], msg)
	return nil
}

func (h *fakeHub) Primary() (string, bool) {
	return primaryID, true
}

func (h *fakeHub) ClientCount() int {
	return 1
}

func (h *fakeHub) commandTypes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	types := make([]string, len(h.commands))
	for i, m := range h.commands {
		types[i] = m.Type
	}
	return types
}

func (h *fakeHub) lastCommand(msgType string) (bridge.Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.commands) - 1; i >= 0; i-- {
		if h.commands[i].Type == msgType {
			return h.commands[i], true
		}
	}
	return bridge.Message{}, false
}

func (h *fakeHub) noticeCodes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var codes []string
	for _, m := range h.broadcast {
		if m.Type != bridge.TypeNotice {
			continue
		}
		if n, ok := m.Notice.(*notification.Notice); ok {
			codes = append(codes, n.Code)
		}
	}
	return codes
}

func (h *fakeHub) hasBroadcast(msgType string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.broadcast {
		if m.Type == msgType {
			return true
		}
	}
	return false
}

func newTestManager(t *testing.T, playlistURLs ...string) (*Manager, *fakeHub) {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	zero := 0
	cfg.Player.AdvanceDelayMs = &zero
	cfg.Player.Playlist = playlistURLs

	hub := newFakeHub()
	m, err := NewManager(cfg, hub)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, hub
}

func waitCurrent(t *testing.T, m *Manager, url string) {
	t.Helper()
	require.Eventually(t, func() bool {
		st := m.Status()
		return st.Current != nil && st.Current.URL == url
	}, time.Second, 5*time.Millisecond)
}

func waitState(t *testing.T, m *Manager, state string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.Status().State == state
	}, time.Second, 5*time.Millisecond)
}

const (
	songA = "https://example.com/music/a.mp3"
	songB = "https://example.com/music/b.mp4"
	songC = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
)

func TestNewManager_SeedsPlaylist(t *testing.T) {
	m, _ := newTestManager(t, songA, "not a url", "https://youtu.be/short", songB)

	st := m.Status()
	require.Len(t, st.Playlist, 2)
	assert.Equal(t, songA, st.Playlist[0].URL)
	assert.Equal(t, songB, st.Playlist[1].URL)
	assert.Equal(t, "idle", st.State)
}

func TestManager_AddSong(t *testing.T) {
	m, hub := newTestManager(t)

	s, err := m.AddSong("  " + songC + " ")
	require.NoError(t, err)
	assert.Equal(t, song.KindYouTube, s.Kind)
	assert.Equal(t, "dQw4w9WgXcQ", s.VideoID)

	_, err = m.AddSong("")
	assert.True(t, errors.Is(err, song.ErrInvalidURL))

	_, err = m.AddSong("https://www.youtube.com/watch?v=short")
	assert.True(t, errors.Is(err, song.ErrInvalidYouTubeURL))

	assert.Equal(t, []string{
		notification.CodeSongAdded,
		notification.CodeInvalidURL,
		notification.CodeInvalidYouTubeURL,
	}, hub.noticeCodes())
	assert.Len(t, m.Status().Playlist, 1)
	assert.True(t, hub.hasBroadcast(bridge.TypeState))
}

type fakeTitles struct {
	titles map[string]string
	calls  []string
}

func (f *fakeTitles) Title(ctx context.Context, videoURL string) (string, error) {
	f.calls = append(f.calls, videoURL)
	if title, ok := f.titles[videoURL]; ok {
		return title, nil
	}
	return "", errors.New("not found")
}

func TestManager_AddSong_ResolvesTitles(t *testing.T) {
	m, _ := newTestManager(t)
	titles := &fakeTitles{titles: map[string]string{songC: "Never Gonna Give You Up"}}
	m.titles = titles

	s, err := m.AddSong(songC)
	require.NoError(t, err)
	assert.Equal(t, "Never Gonna Give You Up", s.Title)

	s, err = m.AddSong("https://youtu.be/aaaaaaaaaaa")
	require.NoError(t, err)
	assert.Equal(t, song.YouTubeTitle, s.Title)

	_, err = m.AddSong(songA)
	require.NoError(t, err)

	assert.Equal(t, []string{songC, "https://youtu.be/aaaaaaaaaaa"}, titles.calls)
	assert.Equal(t, "Never Gonna Give You Up", m.Status().Playlist[0].Title)
}

func TestManager_TogglePlayPause(t *testing.T) {
	t.Run("empty playlist", func(t *testing.T) {
		m, hub := newTestManager(t)

		err := m.TogglePlayPause(context.Background())
		assert.True(t, errors.Is(err, playback.ErrPlaylistEmpty))
		assert.Equal(t, []string{notification.CodePlaylistEmpty}, hub.noticeCodes())
		assert.Equal(t, "idle", m.Status().State)
	})

	t.Run("play pause resume", func(t *testing.T) {
		m, hub := newTestManager(t, songA, songB)
		ctx := context.Background()

		require.NoError(t, m.TogglePlayPause(ctx))
		assert.Equal(t, "playing", m.Status().State)
		assert.Equal(t, songA, m.Status().Current.URL)

		require.NoError(t, m.TogglePlayPause(ctx))
		assert.Equal(t, "paused", m.Status().State)

		require.NoError(t, m.TogglePlayPause(ctx))
		assert.Equal(t, "playing", m.Status().State)

		assert.Equal(t, []string{
			bridge.TypeMediaLoad, bridge.TypeMediaPlay,
			bridge.TypeMediaPause,
			bridge.TypeMediaPlay,
		}, hub.commandTypes())
	})
}

func TestManager_AdvanceOnEnd(t *testing.T) {
	m, hub := newTestManager(t, songA, songB)
	ctx := context.Background()

	require.NoError(t, m.PlaySong(ctx, 0))
	load, ok := hub.lastCommand(bridge.TypeMediaLoad)
	require.True(t, ok)

	// Reports from other pages are ignored
	m.HandleMessage("mirror", bridge.Message{Type: bridge.TypeMediaEnded, Seq: load.Seq})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, songA, m.Status().Current.URL)

	m.HandleMessage(primaryID, bridge.Message{Type: bridge.TypeMediaEnded, Seq: load.Seq})
	waitCurrent(t, m, songB)

	next, ok := hub.lastCommand(bridge.TypeMediaLoad)
	require.True(t, ok)
	assert.Greater(t, next.Seq, load.Seq)
	assert.Equal(t, "video", next.Kind)

	// Last song without loop goes idle
	m.HandleMessage(primaryID, bridge.Message{Type: bridge.TypeMediaEnded, Seq: next.Seq})
	waitState(t, m, "idle")
}

func TestManager_AdvanceAcrossEngines(t *testing.T) {
	m, hub := newTestManager(t, songC, songA)
	ctx := context.Background()

	require.NoError(t, m.PlaySong(ctx, 0))
	load, ok := hub.lastCommand(bridge.TypeYouTubeLoad)
	require.True(t, ok)
	assert.Contains(t, load.EmbedURL, "dQw4w9WgXcQ")

	m.HandleMessage(primaryID, bridge.Message{Type: bridge.TypeYouTubeMessage, Seq: load.Seq, Data: `{"event":"onReady"}`})
	m.HandleMessage(primaryID, bridge.Message{Type: bridge.TypeYouTubeMessage, Seq: load.Seq, Data: `{"event":"onStateChange","info":0}`})
	waitCurrent(t, m, songA)

	types := hub.commandTypes()
	require.GreaterOrEqual(t, len(types), 3)
	assert.Equal(t, []string{bridge.TypeYouTubeLoad, bridge.TypeYouTubeCommand, bridge.TypeYouTubeUnload}, types[:3])
}

func TestManager_RemoveSong(t *testing.T) {
	t.Run("out of range", func(t *testing.T) {
		m, hub := newTestManager(t, songA)

		_, err := m.RemoveSong(context.Background(), 3)
		assert.True(t, errors.Is(err, playlist.ErrIndexOutOfRange))
		assert.Empty(t, hub.noticeCodes())
		assert.Len(t, m.Status().Playlist, 1)
	})

	t.Run("current song", func(t *testing.T) {
		m, hub := newTestManager(t, songA, songB)
		ctx := context.Background()
		require.NoError(t, m.PlaySong(ctx, 0))

		removed, err := m.RemoveSong(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, songA, removed.URL)

		st := m.Status()
		assert.Equal(t, "idle", st.State)
		assert.Nil(t, st.Current)
		require.Len(t, st.Playlist, 1)
		assert.Equal(t, songB, st.Playlist[0].URL)
		assert.Contains(t, hub.commandTypes(), bridge.TypeMediaStop)
		assert.Equal(t, []string{notification.CodeSongRemoved}, hub.noticeCodes())
	})

	t.Run("other song keeps playing", func(t *testing.T) {
		m, _ := newTestManager(t, songA, songB)
		ctx := context.Background()
		require.NoError(t, m.PlaySong(ctx, 0))

		_, err := m.RemoveSong(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "playing", m.Status().State)
		assert.Equal(t, songA, m.Status().Current.URL)
	})
}

func TestManager_Modes(t *testing.T) {
	m, hub := newTestManager(t)

	assert.True(t, m.ToggleShuffle())
	assert.True(t, m.ToggleLoop())
	assert.False(t, m.ToggleShuffle())
	assert.False(t, m.ToggleLoop())

	assert.Equal(t, []string{
		notification.CodeShuffleEnabled,
		notification.CodeLoopEnabled,
		notification.CodeShuffleDisabled,
		notification.CodeLoopDisabled,
	}, hub.noticeCodes())
}

func TestManager_PlaybackFailure(t *testing.T) {
	m, hub := newTestManager(t, songA)
	ctx := context.Background()
	require.NoError(t, m.PlaySong(ctx, 0))
	load, _ := hub.lastCommand(bridge.TypeMediaLoad)

	m.HandleMessage(primaryID, bridge.Message{Type: bridge.TypeMediaError, Seq: load.Seq, Message: "NotAllowedError"})

	require.Eventually(t, func() bool {
		for _, c := range hub.noticeCodes() {
			if c == notification.CodePlaybackFailed {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "playing", m.Status().State)
}

func TestManager_UIMessages(t *testing.T) {
	m, _ := newTestManager(t)

	m.HandleMessage("mirror", bridge.Message{Type: bridge.TypeUIAdd, URL: songA})
	m.HandleMessage("mirror", bridge.Message{Type: bridge.TypeUIAdd, URL: songB})
	require.Len(t, m.Status().Playlist, 2)

	m.HandleMessage("mirror", bridge.Message{Type: bridge.TypeUIPlay, Index: bridge.Int(1)})
	assert.Equal(t, songB, m.Status().Current.URL)

	m.HandleMessage("mirror", bridge.Message{Type: bridge.TypeUIToggle})
	assert.Equal(t, "paused", m.Status().State)

	m.HandleMessage("mirror", bridge.Message{Type: bridge.TypeUIShuffle})
	m.HandleMessage("mirror", bridge.Message{Type: bridge.TypeUILoop})
	assert.True(t, m.Status().Shuffle)
	assert.True(t, m.Status().Loop)

	// Missing index is ignored
	m.HandleMessage("mirror", bridge.Message{Type: bridge.TypeUIRemove})
	require.Len(t, m.Status().Playlist, 2)

	m.HandleMessage("mirror", bridge.Message{Type: bridge.TypeUIRemove, Index: bridge.Int(0)})
	require.Len(t, m.Status().Playlist, 1)

	m.HandleMessage("mirror", bridge.Message{Type: "ui.unknown"})
}

func TestManager_ClientConnected(t *testing.T) {
	m, hub := newTestManager(t, songA)

	m.ClientConnected("new-page")

	hub.mu.Lock()
	defer hub.mu.Unlock()
	msgs := hub.direct["new-page"]
	require.Len(t, msgs, 1)
	assert.Equal(t, bridge.TypeState, msgs[0].Type)
	st, ok := msgs[0].State.(Status)
	require.True(t, ok)
	assert.Len(t, st.Playlist, 1)
}

func TestManager_PrimaryLost(t *testing.T) {
	m, _ := newTestManager(t, songA)
	require.NoError(t, m.PlaySong(context.Background(), 0))

	m.PrimaryLost(primaryID)

	assert.Equal(t, "idle", m.Status().State)
	assert.Nil(t, m.Status().Current)
}

func TestManager_Close(t *testing.T) {
	m, _ := newTestManager(t, songA)
	require.NoError(t, m.PlaySong(context.Background(), 0))

	m.Close()
	m.Close()

	assert.True(t, errors.Is(m.PlaySong(context.Background(), 0), ErrClosed))
	_, err := m.AddSong(songB)
	assert.True(t, errors.Is(err, ErrClosed))
	assert.Equal(t, "idle", m.Status().State)
}
