// Package animator provides the cosmetic rotation ticker of the play button.
package animator

import (
	"context"
	"sync"
	"time"
)

// Default tick settings.
const (
	DefaultPeriod = 50 * time.Millisecond
	DefaultStep   = 1
)

// Config holds animator configuration.
type Config struct {
	Period time.Duration // Tick period
	Step   int           // Degrees added per tick
}

// Animator advances a rotation angle while started. The angle is never reset and
// says nothing about playback progress.
type Animator struct {
	mu      sync.Mutex
	angle   int
	running bool
	gen     uint64
	cancel  context.CancelFunc
	config  Config
	onTick  func(angle int)
}

// New creates a stopped animator at angle 0.
func New(config Config) *Animator {
	if config.Period <= 0 {
		config.Period = DefaultPeriod
	}
	if config.Step <= 0 {
		config.Step = DefaultStep
	}
	return &Animator{config: config}
}

// OnTick registers a callback invoked with the new angle after every tick.
// The callback runs on the ticker goroutine without the animator lock held.
func (a *Animator) OnTick(fn func(angle int)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onTick = fn
}

// Start begins ticking. Calling Start while running restarts the ticker;
// at most one ticker is ever active.
func (a *Animator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	a.gen++
	a.cancel = cancel
	a.running = true
	go a.run(ctx, a.gen)
}

// Stop cancels the ticker. The angle keeps its current value.
func (a *Animator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

// Angle returns the current rotation angle in [0, 360).
func (a *Animator) Angle() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.angle
}

// Running reports whether a ticker is active.
func (a *Animator) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func (a *Animator) stopLocked() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.running = false
}

func (a *Animator) run(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(a.config.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			angle, fn, ok := a.advance(gen)
			if !ok {
				return
			}
			if fn != nil {
				fn(angle)
			}
		}
	}
}

// advance applies one tick unless the ticker identified by gen has been superseded.
func (a *Animator) advance(gen uint64) (int, func(int), bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running || gen != a.gen {
		return a.angle, nil, false
	}
	a.angle = (a.angle + a.config.Step) % 360
	return a.angle, a.onTick, true
}
