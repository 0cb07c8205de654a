package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	clk    Clock
	events []string
	pulses []int64
	times  []time.Duration
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnStart: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, "start")
		},
		OnTick: func(pulse int64) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, "tick")
			r.pulses = append(r.pulses, pulse)
			r.times = append(r.times, r.clk.Now())
		},
		OnStop: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, "stop")
		},
	}
}

func newManualScheduler(t *testing.T, opts ...Option) (*Scheduler, *Manual, *recorder) {
	t.Helper()
	clk := NewManual()
	rec := &recorder{clk: clk}
	s, err := New(clk, rec.callbacks(), opts...)
	require.NoError(t, err)
	return s, clk, rec
}

func advance(clk *Manual, total, step time.Duration) {
	for elapsed := time.Duration(0); elapsed < total; elapsed += step {
		clk.Advance(step)
	}
}

func TestNewRequiresClock(t *testing.T) {
	_, err := New(nil, Callbacks{})
	require.ErrorIs(t, err, ErrNoClock)
}

func TestPulseInterval(t *testing.T) {
	require.InDelta(t, 20833333, float64(PulseInterval(120)), 1)
	require.InDelta(t, 62500000, float64(PulseInterval(40)), 1)
}

func TestPulsesAreMonotonicWithoutGaps(t *testing.T) {
	s, clk, rec := newManualScheduler(t)
	s.Start()
	advance(clk, 2*time.Second, time.Millisecond)
	require.NoError(t, s.SetTempo(180))
	advance(clk, time.Second, 3*time.Millisecond)
	require.NoError(t, s.SetTempo(60))
	advance(clk, time.Second, 7*time.Millisecond)
	s.Stop()

	require.NotEmpty(t, rec.pulses)
	for i, p := range rec.pulses {
		require.Equal(t, int64(i), p)
	}
	require.Equal(t, "start", rec.events[0])
	require.Equal(t, "stop", rec.events[len(rec.events)-1])
}

func TestPulseSpacingAt120(t *testing.T) {
	s, clk, rec := newManualScheduler(t)
	s.Start()
	advance(clk, time.Second, time.Millisecond)
	s.Stop()

	require.Greater(t, len(rec.times), 40)
	for i := 1; i < len(rec.times); i++ {
		gap := rec.times[i] - rec.times[i-1]
		require.InDelta(t, float64(PulseInterval(120)), float64(gap), float64(2*time.Millisecond))
	}
}

func TestStartIsIdempotent(t *testing.T) {
	s, clk, rec := newManualScheduler(t)
	s.Start()
	s.Start()
	advance(clk, 50*time.Millisecond, time.Millisecond)
	s.Start()
	s.Stop()

	starts := 0
	for _, e := range rec.events {
		if e == "start" {
			starts++
		}
	}
	require.Equal(t, 1, starts)
}

func TestStopCancelsPendingPulses(t *testing.T) {
	s, clk, rec := newManualScheduler(t)
	s.Start()
	advance(clk, 30*time.Millisecond, time.Millisecond)
	s.Stop()
	delivered := len(rec.pulses)

	require.Zero(t, clk.Pending())
	advance(clk, time.Second, time.Millisecond)
	require.Len(t, rec.pulses, delivered)

	s.Stop()
	stops := 0
	for _, e := range rec.events {
		if e == "stop" {
			stops++
		}
	}
	require.Equal(t, 1, stops)
}

func TestRestartResetsPulseCounter(t *testing.T) {
	s, clk, rec := newManualScheduler(t)
	s.Start()
	advance(clk, 200*time.Millisecond, time.Millisecond)
	s.Stop()
	require.Greater(t, s.Pulse(), int64(0))

	rec.pulses = nil
	s.Start()
	require.Equal(t, int64(-1), s.Pulse())
	advance(clk, 100*time.Millisecond, time.Millisecond)
	s.Stop()
	require.Equal(t, int64(0), rec.pulses[0])
}

func TestTempoChangeKeepsArmedPulses(t *testing.T) {
	s, clk, rec := newManualScheduler(t)
	s.Start()
	// Pulses 0..4 are armed immediately at 120 bpm (lookahead 100ms).
	require.NoError(t, s.SetTempo(60))
	advance(clk, 200*time.Millisecond, time.Millisecond)
	s.Stop()

	interval := PulseInterval(120)
	for i := 1; i <= 4; i++ {
		require.InDelta(t, float64(time.Duration(i)*interval), float64(rec.times[i]), float64(time.Millisecond))
	}
	require.Greater(t, rec.times[6]-rec.times[5], PulseInterval(90))
}

func TestSetTempoRejectsInvalid(t *testing.T) {
	s, _, _ := newManualScheduler(t)
	require.ErrorIs(t, s.SetTempo(0), ErrInvalidTempo)
	require.ErrorIs(t, s.SetTempo(-10), ErrInvalidTempo)
	require.Equal(t, DefaultTempo, s.Tempo())
}

func TestLateTimerDoesNotRedeliver(t *testing.T) {
	var got []int64
	clk := NewManual()
	s, err := New(clk, Callbacks{OnTick: func(p int64) { got = append(got, p) }})
	require.NoError(t, err)
	s.Start()
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	// A later pulse firing first delivers everything before it.
	s.fire(gen, 3)
	s.fire(gen, 1)
	s.fire(gen, 2)
	require.Equal(t, []int64{0, 1, 2, 3}, got)
	s.Stop()
}

func TestSystemClockSpacing(t *testing.T) {
	if testing.Short() {
		t.Skip("real-time test")
	}
	rec := &recorder{clk: NewSystemClock()}
	s, err := New(rec.clk, rec.callbacks())
	require.NoError(t, err)
	s.Start()
	time.Sleep(600 * time.Millisecond)
	s.Stop()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Greater(t, len(rec.pulses), 10)
	for i, p := range rec.pulses {
		require.Equal(t, int64(i), p)
	}
	n := len(rec.times)
	mean := (rec.times[n-1] - rec.times[0]) / time.Duration(n-1)
	require.InDelta(t, float64(PulseInterval(120)), float64(mean), float64(2*time.Millisecond))
}
