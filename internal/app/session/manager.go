// Package session provides the widget session manager. It owns the player
// state for the lifetime of the server and wires the coordinator, the engines,
// the animator and the notices to the connected pages.
package session

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/spinbox/internal/app/animator"
	"github.com/osa030/spinbox/internal/app/engine"
	"github.com/osa030/spinbox/internal/app/notification"
	"github.com/osa030/spinbox/internal/app/playback"
	"github.com/osa030/spinbox/internal/domain/playlist"
	"github.com/osa030/spinbox/internal/domain/song"
	"github.com/osa030/spinbox/internal/infra/bridge"
	"github.com/osa030/spinbox/internal/infra/config"
	"github.com/osa030/spinbox/internal/infra/oembed"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

// Hub is the connection to the pages.
type Hub interface {
	engine.Device
	Broadcast(msg bridge.Message)
	SendTo(clientID string, msg bridge.Message) error
	Primary() (string, bool)
	ClientCount() int
}

// TitleResolver looks up the display title of a YouTube video.
type TitleResolver interface {
	Title(ctx context.Context, videoURL string) (string, error)
}

// Status represents the current widget state.
type Status struct {
	State    string      `json:"state"`
	Current  *song.Song  `json:"current,omitempty"`
	Shuffle  bool        `json:"shuffle"`
	Loop     bool        `json:"loop"`
	Angle    int         `json:"angle"`
	Playlist []song.Song `json:"playlist"`
	Clients  int         `json:"clients"`
}

// Manager manages the widget session.
type Manager struct {
	mu sync.Mutex

	// Configuration
	config *config.Config

	// Components
	playlist     *playlist.Playlist
	playback     *playback.Controller
	engines      *engine.Set
	animator     *animator.Animator
	notification *notification.Manager
	hub          Hub
	titles       TitleResolver

	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a new session manager and starts forwarding playback events.
func NewManager(cfg *config.Config, hub Hub) (*Manager, error) {
	engines, err := engine.NewSetFromConfig(cfg, hub)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create backends")
	}
	m, err := newManager(cfg, hub, engines)
	if err != nil {
		return nil, err
	}
	if cfg.Metadata.Enabled {
		m.titles = oembed.New(oembed.Config{
			Endpoint: cfg.Metadata.Endpoint,
			Timeout:  cfg.MetadataTimeout(),
		})
	}
	return m, nil
}

func newManager(cfg *config.Config, hub Hub, engines *engine.Set) (*Manager, error) {
	pl := playlist.New()
	for i, raw := range cfg.Player.Playlist {
		s, err := song.New(raw)
		if err != nil {
			zlog.Warn().Msgf("skipping playlist entry: index=%d url=%q err=%v", i, raw, err)
			continue
		}
		pl.Append(s)
	}

	anim := animator.New(animator.Config{
		Period: cfg.AnimatorPeriod(),
		Step:   cfg.Animator.StepDegrees,
	})

	ctrl, err := playback.NewController(playback.Config{
		AdvanceDelay:   cfg.AdvanceDelay(),
		PauseOnFailure: cfg.Player.PauseOnFailure,
		Shuffle:        cfg.Player.Shuffle,
		Loop:           cfg.Player.Loop,
	}, pl, anim, engines.Engines()...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create playback controller")
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:       cfg,
		playlist:     pl,
		playback:     ctrl,
		engines:      engines,
		animator:     anim,
		notification: notification.NewManager(cfg.GetMessage),
		hub:          hub,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	anim.OnTick(func(angle int) {
		hub.Broadcast(bridge.Message{Type: bridge.TypeRotation, Angle: bridge.Int(angle)})
	})
	m.notification.Subscribe(noticeStream{hub: hub})

	zlog.Info().Msgf("session created: songs=%d shuffle=%t loop=%t", pl.Len(), cfg.Player.Shuffle, cfg.Player.Loop)

	go m.playbackLoop()
	return m, nil
}

// AddSong classifies raw and appends it to the playlist.
func (m *Manager) AddSong(raw string) (song.Song, error) {
	s, err := song.New(raw)
	if err != nil {
		code := notification.CodeInvalidURL
		if errors.Is(err, song.ErrInvalidYouTubeURL) {
			code = notification.CodeInvalidYouTubeURL
		}
		zlog.Debug().Msgf("session: rejected url: %v", err)
		m.notification.Notify(code)
		return song.Song{}, err
	}
	m.resolveTitle(&s)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return song.Song{}, ErrClosed
	}
	index := m.playlist.Append(s)
	m.mu.Unlock()

	zlog.Info().Msgf("song added: index=%d kind=%s url=%s", index, s.Kind, s.URL)
	m.notification.Notify(notification.CodeSongAdded)
	m.broadcastState()
	return s, nil
}

// resolveTitle replaces the generic YouTube title when a resolver is set.
// Lookup failures keep the generic title.
func (m *Manager) resolveTitle(s *song.Song) {
	if m.titles == nil || s.Kind != song.KindYouTube {
		return
	}
	ctx, cancel := context.WithTimeout(m.ctx, m.config.MetadataTimeout())
	defer cancel()
	title, err := m.titles.Title(ctx, s.URL)
	if err != nil {
		zlog.Warn().Msgf("session: title lookup failed: url=%s err=%v", s.URL, err)
		return
	}
	s.Title = title
}

// RemoveSong removes the entry at index. Removing the current song stops playback first.
func (m *Manager) RemoveSong(ctx context.Context, index int) (song.Song, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return song.Song{}, ErrClosed
	}
	s, err := m.playlist.At(index)
	if err != nil {
		m.mu.Unlock()
		return song.Song{}, err
	}
	if m.playback.Release(ctx, s.URL) {
		zlog.Info().Msgf("released current song: url=%s", s.URL)
	}
	if _, err := m.playlist.Remove(index); err != nil {
		m.mu.Unlock()
		return song.Song{}, err
	}
	m.mu.Unlock()

	zlog.Info().Msgf("song removed: index=%d url=%s", index, s.URL)
	m.notification.Notify(notification.CodeSongRemoved)
	m.broadcastState()
	return s, nil
}

// PlaySong plays the entry at index.
func (m *Manager) PlaySong(ctx context.Context, index int) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	return m.playback.PlayAt(ctx, index)
}

// TogglePlayPause is the single button: play the first song when idle, pause
// while playing and resume while paused.
func (m *Manager) TogglePlayPause(ctx context.Context) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	err := m.playback.Toggle(ctx)
	if errors.Is(err, playback.ErrPlaylistEmpty) {
		m.notification.Notify(notification.CodePlaylistEmpty)
	}
	return err
}

// ToggleShuffle flips shuffle mode and returns the new value.
func (m *Manager) ToggleShuffle() bool {
	enabled := m.playback.ToggleShuffle()
	if enabled {
		m.notification.Notify(notification.CodeShuffleEnabled)
	} else {
		m.notification.Notify(notification.CodeShuffleDisabled)
	}
	return enabled
}

// ToggleLoop flips loop mode and returns the new value.
func (m *Manager) ToggleLoop() bool {
	enabled := m.playback.ToggleLoop()
	if enabled {
		m.notification.Notify(notification.CodeLoopEnabled)
	} else {
		m.notification.Notify(notification.CodeLoopDisabled)
	}
	return enabled
}

// Status returns the current widget state.
func (m *Manager) Status() Status {
	st := m.playback.Status()
	return Status{
		State:    st.State.String(),
		Current:  st.Current,
		Shuffle:  st.Shuffle,
		Loop:     st.Loop,
		Angle:    m.animator.Angle(),
		Playlist: m.playlist.Songs(),
		Clients:  m.hub.ClientCount(),
	}
}

// Done returns a channel closed once the session has shut down.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// GetNotificationManager returns the notification manager.
func (m *Manager) GetNotificationManager() *notification.Manager {
	return m.notification
}

// ClientConnected sends the current state to a newly connected page.
func (m *Manager) ClientConnected(clientID string) {
	st := m.Status()
	if err := m.hub.SendTo(clientID, bridge.Message{Type: bridge.TypeState, State: st}); err != nil {
		zlog.Debug().Msgf("session: failed to send initial state: client=%s err=%v", clientID, err)
	}
}

// HandleMessage dispatches a page's message. Media reports are only accepted
// from the primary device.
func (m *Manager) HandleMessage(clientID string, msg bridge.Message) {
	switch msg.Type {
	case bridge.TypeMediaEnded, bridge.TypeMediaError, bridge.TypeYouTubeMessage:
		if primary, ok := m.hub.Primary(); !ok || primary != clientID {
			zlog.Debug().Msgf("session: ignoring %s from non-primary client %s", msg.Type, clientID)
			return
		}
		m.engines.Dispatch(msg)
		return
	}

	ctx := m.ctx
	var err error
	switch msg.Type {
	case bridge.TypeUIToggle:
		err = m.TogglePlayPause(ctx)
	case bridge.TypeUIAdd:
		_, err = m.AddSong(msg.URL)
	case bridge.TypeUIRemove:
		if msg.Index == nil {
			err = errors.New("ui.remove without index")
			break
		}
		_, err = m.RemoveSong(ctx, *msg.Index)
	case bridge.TypeUIPlay:
		if msg.Index == nil {
			err = errors.New("ui.play without index")
			break
		}
		err = m.PlaySong(ctx, *msg.Index)
	case bridge.TypeUIShuffle:
		m.ToggleShuffle()
	case bridge.TypeUILoop:
		m.ToggleLoop()
	default:
		zlog.Debug().Msgf("session: ignoring unknown message type %q from %s", msg.Type, clientID)
	}
	if err != nil {
		zlog.Debug().Msgf("session: %s from %s failed: %v", msg.Type, clientID, err)
	}
}

// PrimaryLost stops playback when the page hosting the media goes away.
func (m *Manager) PrimaryLost(clientID string) {
	if m.checkOpen() != nil {
		return
	}
	zlog.Info().Msgf("primary device left, stopping playback: client=%s", clientID)
	m.playback.Stop(m.ctx)
}

// Close stops playback and releases the session's resources.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.playback.Close()
	<-m.done
	m.animator.Stop()
	m.cancel()
	m.notification.Close()
	zlog.Info().Msg("session closed")
}

func (m *Manager) checkOpen() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// playbackLoop forwards playback events until the controller closes.
func (m *Manager) playbackLoop() {
	defer close(m.done)

	for event := range m.playback.Events() {
		m.handlePlaybackEvent(event)
	}
}

func (m *Manager) handlePlaybackEvent(event playback.Event) {
	url := ""
	if event.Song != nil {
		url = event.Song.URL
	}
	zlog.Info().Msgf("playback event: type=%s state=%s url=%s", event.Type, event.State, url)

	if event.Type == playback.EventPlaybackFailed {
		zlog.Warn().Msgf("playback failed: url=%s err=%v", url, event.Err)
		m.notification.Notify(notification.CodePlaybackFailed)
	}
	m.broadcastState()
}

func (m *Manager) broadcastState() {
	m.hub.Broadcast(bridge.Message{Type: bridge.TypeState, State: m.Status()})
}

// noticeStream relays notices to every page.
type noticeStream struct {
	hub Hub
}

func (s noticeStream) Send(n *notification.Notice) error {
	s.hub.Broadcast(bridge.Message{Type: bridge.TypeNotice, Notice: n})
	return nil
}
