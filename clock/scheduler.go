// Package clock turns a tempo into a steady 24 PPQN pulse stream.
//
// Pulses are computed ahead of time inside a short lookahead window and each
// one gets its own one-shot timer, so callback jitter on the coarse re-arm
// loop never shifts when a pulse fires.
package clock

import (
	"errors"
	"math"
	"sync"
	"time"

	"chordclock/debug"
)

const (
	PPQN             = 24
	DefaultTempo     = 120.0
	DefaultLookahead = 100 * time.Millisecond
	DefaultInterval  = 25 * time.Millisecond
)

var (
	ErrNoClock      = errors.New("clock: no timing reference")
	ErrInvalidTempo = errors.New("clock: tempo must be a positive number")
)

// Callbacks receive transport events. They run one at a time, never
// concurrently, and must not call Start or Stop on the same Scheduler.
type Callbacks struct {
	OnStart func()
	OnTick  func(pulse int64)
	OnStop  func()
}

type Option func(*Scheduler)

func WithTempo(bpm float64) Option {
	return func(s *Scheduler) {
		if validTempo(bpm) {
			s.bpm = bpm
		}
	}
}

func WithLookahead(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.lookahead = d
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

type pendingPulse struct {
	pulse int64
	timer Timer
}

// Scheduler emits start, tick and stop events for one transport.
type Scheduler struct {
	clk       Clock
	cb        Callbacks
	lookahead time.Duration
	interval  time.Duration

	// deliverMu serializes every callback; always taken before mu.
	deliverMu sync.Mutex

	mu        sync.Mutex
	bpm       float64
	running   bool
	gen       uint64  // bumped on every start/stop, stale timers compare against it
	pulse     int64   // next pulse number to arm
	next      float64 // due time of the next pulse, in nanoseconds of clk
	delivered int64
	queue     []*pendingPulse
	rearm     Timer
}

// New creates a stopped Scheduler. The timing reference must exist up front.
func New(clk Clock, cb Callbacks, opts ...Option) (*Scheduler, error) {
	if clk == nil {
		return nil, ErrNoClock
	}
	s := &Scheduler{
		clk:       clk,
		cb:        cb,
		bpm:       DefaultTempo,
		lookahead: DefaultLookahead,
		interval:  DefaultInterval,
		delivered: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// PulseInterval is the time between two pulses at the given tempo.
func PulseInterval(bpm float64) time.Duration {
	return time.Duration(pulseNanos(bpm))
}

func pulseNanos(bpm float64) float64 {
	return float64(time.Second) * 60 / bpm / PPQN
}

func validTempo(bpm float64) bool {
	return bpm > 0 && !math.IsInf(bpm, 0) && !math.IsNaN(bpm)
}

// SetTempo changes the tempo for pulses computed from now on. Pulses already
// armed inside the lookahead window keep their times.
func (s *Scheduler) SetTempo(bpm float64) error {
	if !validTempo(bpm) {
		return ErrInvalidTempo
	}
	s.mu.Lock()
	s.bpm = bpm
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) Tempo() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bpm
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Pulse returns the last delivered pulse, -1 before the first tick.
func (s *Scheduler) Pulse() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered
}

// Start resets the pulse counter and begins scheduling. OnStart fires before
// the first tick. No-op when already running.
func (s *Scheduler) Start() {
	s.deliverMu.Lock()
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.deliverMu.Unlock()
		return
	}
	s.running = true
	s.gen++
	gen := s.gen
	s.pulse = 0
	s.delivered = -1
	s.next = float64(s.clk.Now())
	bpm := s.bpm
	s.mu.Unlock()

	debug.Log("clock", "start bpm=%.1f", bpm)
	if s.cb.OnStart != nil {
		s.cb.OnStart()
	}
	s.deliverMu.Unlock()

	s.schedule(gen)
}

// Stop cancels every armed pulse and fires OnStop. Once Stop returns no
// further tick is delivered. No-op when already stopped.
func (s *Scheduler) Stop() {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.gen++
	if s.rearm != nil {
		s.rearm.Stop()
		s.rearm = nil
	}
	for _, p := range s.queue {
		p.timer.Stop()
	}
	dropped := len(s.queue)
	s.queue = nil
	last := s.delivered
	s.mu.Unlock()

	debug.Log("clock", "stop last=%d dropped=%d", last, dropped)
	if s.cb.OnStop != nil {
		s.cb.OnStop()
	}
}

// schedule arms every pulse that falls inside the lookahead window, then
// re-arms itself after the coarse interval.
func (s *Scheduler) schedule(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.gen != gen {
		return
	}

	now := s.clk.Now()
	horizon := float64(now + s.lookahead)
	for s.next < horizon {
		s.arm(gen, s.pulse, time.Duration(s.next)-now)
		s.next += pulseNanos(s.bpm)
		s.pulse++
	}
	s.rearm = s.clk.AfterFunc(s.interval, func() { s.schedule(gen) })
}

// arm is called with mu held.
func (s *Scheduler) arm(gen uint64, pulse int64, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	p := &pendingPulse{pulse: pulse}
	s.queue = append(s.queue, p)
	p.timer = s.clk.AfterFunc(delay, func() { s.fire(gen, pulse) })
}

// fire delivers every queued pulse up to and including upTo, in order. A
// timer that fires late finds its pulse already delivered and does nothing.
func (s *Scheduler) fire(gen uint64, upTo int64) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	for {
		s.mu.Lock()
		if !s.running || s.gen != gen || len(s.queue) == 0 || s.queue[0].pulse > upTo {
			s.mu.Unlock()
			return
		}
		p := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.delivered = p.pulse
		s.mu.Unlock()

		if s.cb.OnTick != nil {
			s.cb.OnTick(p.pulse)
		}
	}
}
