package animator

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnimator_AdvanceWraps(t *testing.T) {
	a := New(Config{Period: time.Hour, Step: 7})
	a.running = true
	a.gen = 1
	a.angle = 355

	angle, _, ok := a.advance(1)
	require.True(t, ok)
	assert.Equal(t, 2, angle)
	assert.Equal(t, 2, a.Angle())
}

func TestAnimator_AdvanceIgnoresStaleTicker(t *testing.T) {
	a := New(Config{Period: time.Hour})
	a.running = true
	a.gen = 2

	_, _, ok := a.advance(1)
	assert.False(t, ok)
	assert.Equal(t, 0, a.Angle())
}

func TestAnimator_Defaults(t *testing.T) {
	a := New(Config{})
	assert.Equal(t, DefaultPeriod, a.config.Period)
	assert.Equal(t, DefaultStep, a.config.Step)
	assert.False(t, a.Running())
	assert.Equal(t, 0, a.Angle())
}

func TestAnimator_StartStop(t *testing.T) {
	a := New(Config{Period: time.Millisecond})

	a.Start()
	require.True(t, a.Running())
	require.Eventually(t, func() bool { return a.Angle() >= 3 }, time.Second, time.Millisecond)

	a.Stop()
	assert.False(t, a.Running())
	frozen := a.Angle()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, frozen, a.Angle(), "angle must stay constant after Stop")

	a.Start()
	require.Eventually(t, func() bool { return a.Angle() != frozen }, time.Second, time.Millisecond)
	a.Stop()
}

func TestAnimator_RestartDoesNotOverlap(t *testing.T) {
	a := New(Config{Period: 5 * time.Millisecond})
	var ticks atomic.Int64
	a.OnTick(func(int) { ticks.Add(1) })

	for i := 0; i < 10; i++ {
		a.Start()
	}
	time.Sleep(100 * time.Millisecond)
	a.Stop()

	// A single 5ms ticker yields roughly 20 ticks in 100ms; ten overlapping ones would
	// produce close to 200.
	assert.Less(t, ticks.Load(), int64(60))
	assert.Positive(t, ticks.Load())
}

func TestAnimator_OnTickReceivesAngle(t *testing.T) {
	a := New(Config{Period: time.Millisecond})
	got := make(chan int, 1)
	a.OnTick(func(angle int) {
		select {
		case got <- angle:
		default:
		}
	})

	a.Start()
	defer a.Stop()

	select {
	case angle := <-got:
		assert.Equal(t, 1, angle)
	case <-time.After(time.Second):
		t.Fatal("no tick received")
	}
}
