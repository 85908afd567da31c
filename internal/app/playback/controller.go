package playback

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/spinbox/internal/domain/playlist"
	"github.com/osa030/spinbox/internal/domain/song"
)

// Errors
var (
	ErrNoSong        = errors.New("no song loaded")
	ErrPlaylistEmpty = errors.New("playlist is empty")
	ErrNotPlaying    = errors.New("not playing")
	ErrNotPaused     = errors.New("not paused")
	ErrNoEngine      = errors.New("no engine for song kind")
	ErrClosed        = errors.New("controller closed")
)

// Config holds controller configuration.
type Config struct {
	AdvanceDelay   time.Duration // Wait between a natural end and the next song
	PauseOnFailure bool          // Move to paused when an engine rejects a play request
	Shuffle        bool          // Initial shuffle mode
	Loop           bool          // Initial loop mode
}

// Status is a snapshot of the controller state.
type Status struct {
	State   State
	Current *song.Song
	Shuffle bool
	Loop    bool
}

// Controller coordinates the engines, the rotator and the playlist.
// Exactly one engine is active while a song is current.
type Controller struct {
	mu sync.Mutex

	playlist *playlist.Playlist
	engines  map[song.Kind]Engine
	rotator  Rotator

	// Current song state
	current  *song.Song
	active   Engine
	state    State
	seq      uint64 // Seq of the current cue
	endedSeq uint64 // Last seq whose end was handled
	shuffle  bool
	loop     bool

	advanceCancel func()
	pick          func(n int) int

	config Config

	eventCh chan Event
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a controller and starts listening to the engines' events.
func NewController(config Config, pl *playlist.Playlist, rotator Rotator, engines ...Engine) (*Controller, error) {
	byKind := make(map[song.Kind]Engine)
	for _, e := range engines {
		for _, k := range e.Kinds() {
			if existing, ok := byKind[k]; ok {
				return nil, errors.Newf("engines %s and %s both handle kind %s", existing.Name(), e.Name(), k)
			}
			byKind[k] = e
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		playlist: pl,
		engines:  byKind,
		rotator:  rotator,
		state:    StateIdle,
		shuffle:  config.Shuffle,
		loop:     config.Loop,
		pick:     rand.Intn,
		config:   config,
		eventCh:  make(chan Event, 64),
		ctx:      ctx,
		cancel:   cancel,
	}

	for _, e := range engines {
		c.wg.Add(1)
		go c.watch(e)
	}

	return c, nil
}

// Events returns the event channel.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Play stops whatever is playing and starts s. The result is always playing,
// whatever the previous state was.
func (c *Controller) Play(ctx context.Context, s song.Song) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	return c.playLocked(ctx, s)
}

// PlayAt plays the playlist entry at index.
func (c *Controller) PlayAt(ctx context.Context, index int) error {
	s, err := c.playlist.At(index)
	if err != nil {
		return err
	}
	return c.Play(ctx, s)
}

// Toggle flips between playing and paused. When idle it starts the first
// playlist entry.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	switch c.state {
	case StatePlaying:
		return c.pauseLocked(ctx)
	case StatePaused:
		return c.resumeLocked(ctx)
	default:
		first, err := c.playlist.At(0)
		if err != nil {
			return ErrPlaylistEmpty
		}
		return c.playLocked(ctx, first)
	}
}

// Pause pauses the current song.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pauseLocked(ctx)
}

// Resume resumes the current song on the engine that was playing it.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resumeLocked(ctx)
}

// Release stops playback and clears the current song if its URL is url.
// Reports whether the current song was released.
func (c *Controller) Release(ctx context.Context, url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.current.URL != url {
		return false
	}

	released := *c.current
	c.stopLocked(ctx)
	c.sendEventLocked(Event{
		Type:  EventStateChanged,
		Song:  &released,
		State: c.state,
	})
	return true
}

// Stop stops playback completely.
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return
	}
	stopped := *c.current
	c.stopLocked(ctx)
	c.sendEventLocked(Event{
		Type:  EventStateChanged,
		Song:  &stopped,
		State: c.state,
	})
}

// ToggleShuffle flips shuffle mode and returns the new value.
func (c *Controller) ToggleShuffle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.shuffle = !c.shuffle
	c.sendEventLocked(Event{Type: EventModesChanged, Song: c.current, State: c.state})
	return c.shuffle
}

// ToggleLoop flips loop mode and returns the new value.
func (c *Controller) ToggleLoop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loop = !c.loop
	c.sendEventLocked(Event{Type: EventModesChanged, Song: c.current, State: c.state})
	return c.loop
}

// SetModes sets shuffle and loop at once.
func (c *Controller) SetModes(shuffle, loop bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shuffle == shuffle && c.loop == loop {
		return
	}
	c.shuffle = shuffle
	c.loop = loop
	c.sendEventLocked(Event{Type: EventModesChanged, Song: c.current, State: c.state})
}

// Status returns a snapshot of the playback state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:   c.state,
		Shuffle: c.shuffle,
		Loop:    c.loop,
	}
	if c.current != nil {
		cur := *c.current
		st.Current = &cur
	}
	return st
}

// GetState returns the current playback state.
func (c *Controller) GetState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// GetCurrentSong returns the current song.
func (c *Controller) GetCurrentSong() (song.Song, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return song.Song{}, false
	}
	return *c.current, true
}

// Close stops playback, detaches from the engines and closes the event channel.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stopLocked(c.ctx)
	c.closed = true
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()
	close(c.eventCh)
}

// playLocked performs the stop-then-start transition for s.
// Must be called with lock held.
func (c *Controller) playLocked(ctx context.Context, s song.Song) error {
	engine, ok := c.engines[s.Kind]
	if !ok {
		return errors.Wrapf(ErrNoEngine, "kind %s", s.Kind)
	}

	c.cancelAdvanceLocked()
	c.stopActiveLocked(ctx)

	c.seq++
	cur := s
	c.current = &cur
	c.active = engine
	c.state = StatePlaying
	c.rotator.Start()

	zlog.Debug().Msgf("playback: starting song: seq=%d kind=%s engine=%s url=%s", c.seq, s.Kind, engine.Name(), s.URL)

	c.sendEventLocked(Event{
		Type:  EventSongStarted,
		Song:  c.current,
		State: c.state,
	})

	cue := Cue{Seq: c.seq, Song: s}
	if err := engine.Load(ctx, cue); err != nil {
		c.failLocked(errors.Wrapf(err, "load %s", s.URL))
		return nil
	}
	if err := engine.Play(ctx); err != nil {
		c.failLocked(errors.Wrapf(err, "play %s", s.URL))
	}
	return nil
}

func (c *Controller) pauseLocked(ctx context.Context) error {
	if c.current == nil {
		return ErrNoSong
	}
	if c.state != StatePlaying {
		return ErrNotPlaying
	}

	c.cancelAdvanceLocked()
	if err := c.active.Pause(ctx); err != nil {
		zlog.Warn().Msgf("playback: pause request failed: engine=%s err=%v", c.active.Name(), err)
	}
	c.rotator.Stop()
	c.state = StatePaused

	c.sendEventLocked(Event{
		Type:  EventStateChanged,
		Song:  c.current,
		State: c.state,
	})
	return nil
}

func (c *Controller) resumeLocked(ctx context.Context) error {
	if c.current == nil {
		return ErrNoSong
	}
	if c.state != StatePaused {
		return ErrNotPaused
	}

	c.state = StatePlaying
	c.rotator.Start()
	c.sendEventLocked(Event{
		Type:  EventStateChanged,
		Song:  c.current,
		State: c.state,
	})

	if err := c.active.Play(ctx); err != nil {
		c.failLocked(errors.Wrapf(err, "resume %s", c.current.URL))
	}
	return nil
}

// stopLocked stops the active engine and returns to idle.
// Must be called with lock held.
func (c *Controller) stopLocked(ctx context.Context) {
	c.cancelAdvanceLocked()
	c.stopActiveLocked(ctx)
	c.current = nil
	c.state = StateIdle
	c.rotator.Stop()
}

func (c *Controller) stopActiveLocked(ctx context.Context) {
	if c.active == nil {
		return
	}
	if err := c.active.Stop(ctx); err != nil {
		zlog.Warn().Msgf("playback: stop request failed: engine=%s err=%v", c.active.Name(), err)
	}
	c.active = nil
}

// failLocked reports a rejected play request. The state is left as it was
// unless PauseOnFailure is set.
func (c *Controller) failLocked(err error) {
	zlog.Warn().Msgf("playback: playback failed: seq=%d err=%v", c.seq, err)

	c.sendEventLocked(Event{
		Type:  EventPlaybackFailed,
		Song:  c.current,
		State: c.state,
		Err:   err,
	})

	if c.config.PauseOnFailure && c.state == StatePlaying {
		c.rotator.Stop()
		c.state = StatePaused
		c.sendEventLocked(Event{
			Type:  EventStateChanged,
			Song:  c.current,
			State: c.state,
		})
	}
}

// watch forwards one engine's events until the controller closes.
func (c *Controller) watch(e Engine) {
	defer c.wg.Done()

	events := e.Events()
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handleEngineEvent(e, ev)
		}
	}
}

func (c *Controller) handleEngineEvent(e Engine, ev EngineEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || e != c.active || c.current == nil || ev.Seq != c.seq {
		zlog.Debug().Msgf("playback: ignoring stale engine event: engine=%s type=%s seq=%d current_seq=%d",
			e.Name(), ev.Type, ev.Seq, c.seq)
		return
	}

	switch ev.Type {
	case EngineEnded:
		if c.state != StatePlaying || c.endedSeq == ev.Seq {
			return
		}
		c.endedSeq = ev.Seq
		c.onSongEndLocked()
	case EngineFailed:
		c.failLocked(ev.Err)
	}
}

// onSongEndLocked applies the advance-on-end policy.
func (c *Controller) onSongEndLocked() {
	ended := *c.current
	zlog.Debug().Msgf("playback: song ended: seq=%d url=%s", c.seq, ended.URL)

	c.sendEventLocked(Event{
		Type:  EventSongEnded,
		Song:  &ended,
		State: c.state,
	})

	if _, ok := c.nextLocked(ended); !ok || c.config.AdvanceDelay <= 0 {
		c.advanceLocked(ended)
		return
	}

	seq := c.seq
	timer := time.AfterFunc(c.config.AdvanceDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		// Any transition since the end bumps seq or leaves playing.
		if c.closed || c.seq != seq || c.state != StatePlaying {
			return
		}
		c.advanceCancel = nil
		c.advanceLocked(ended)
	})
	c.advanceCancel = func() { timer.Stop() }
}

// advanceLocked picks the song after ended from the playlist as it is now
// and plays it, or stops when there is none.
func (c *Controller) advanceLocked(ended song.Song) {
	next, ok := c.nextLocked(ended)
	if !ok {
		c.stopLocked(c.ctx)
		c.sendEventLocked(Event{
			Type:  EventPlaylistEnded,
			Song:  &ended,
			State: c.state,
		})
		return
	}
	if err := c.playLocked(c.ctx, next); err != nil {
		zlog.Error().Msgf("playback: failed to advance: %v", err)
		c.stopLocked(c.ctx)
	}
}

func (c *Controller) nextLocked(ended song.Song) (song.Song, bool) {
	return NextSong(c.playlist.Songs(), ended, Mode{Shuffle: c.shuffle, Loop: c.loop}, c.pick)
}

func (c *Controller) cancelAdvanceLocked() {
	if c.advanceCancel != nil {
		c.advanceCancel()
		c.advanceCancel = nil
	}
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (c *Controller) sendEventLocked(e Event) {
	if c.closed {
		return
	}
	if e.Song != nil {
		s := *e.Song
		e.Song = &s
	}
	select {
	case c.eventCh <- e:
	default:
		zlog.Warn().Msgf("playback: event channel full, dropping %s", e.Type)
	}
}
