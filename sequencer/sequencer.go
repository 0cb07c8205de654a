package sequencer

import (
	"math/rand/v2"
	"sync/atomic"

	"chordclock/clock"
	"chordclock/debug"
	"chordclock/midi"
	"chordclock/theory"
)

// PPQN is the pulse resolution steps are measured in.
const PPQN = clock.PPQN

// Sequencer decides, pulse by pulse, which notes start and stop. Tick is
// called from one flow at a time (the scheduler serializes it); the
// accessors are safe from any goroutine.
type Sequencer struct {
	state  *State
	intN   func(int) int
	onStep func(index int)

	pos  atomic.Int64
	step atomic.Int64

	// sounding mirrors whether our last decision left notes on.
	sounding bool
}

type Option func(*Sequencer)

// WithRand makes the RANDOM pattern draw from r.
func WithRand(r *rand.Rand) Option {
	return func(q *Sequencer) {
		if r != nil {
			q.intN = r.IntN
		}
	}
}

// WithStepListener is called with the step index at every step boundary.
func WithStepListener(fn func(index int)) Option {
	return func(q *Sequencer) { q.onStep = fn }
}

func New(state *State, opts ...Option) *Sequencer {
	q := &Sequencer{
		state: state,
		intN:  rand.IntN,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.step.Store(-1)
	return q
}

// Reset rewinds the loop. Called on transport start.
func (q *Sequencer) Reset() {
	q.pos.Store(0)
	q.step.Store(-1)
	q.sounding = false
}

// Position is the raw loop tick count since Reset.
func (q *Sequencer) Position() int64 {
	return q.pos.Load()
}

// CurrentStep is the index of the step last entered, -1 when stopped.
func (q *Sequencer) CurrentStep() int {
	return int(q.step.Load())
}

// Stopped marks the transport as stopped for CurrentStep.
func (q *Sequencer) Stopped() {
	q.step.Store(-1)
	q.sounding = false
}

// Tick processes one pulse and returns the actions for it.
//
// The loop position is a raw tick count that is reduced modulo the current
// loop length on every pulse. Editing the progression while playing can
// therefore land the position inside a different step; whatever is sounding
// is released at that step's next gate.
func (q *Sequencer) Tick(pulse int64) []midi.Action {
	snap := q.state.Snapshot()
	if !snap.Enabled {
		return q.release()
	}

	loopLen := loopLength(snap.Steps)
	if loopLen == 0 {
		return q.release()
	}

	pos := q.pos.Load()
	idx, rel := locate(snap.Steps, pos%loopLen)
	actions := q.render(snap, snap.Steps[idx], rel)
	q.pos.Store(pos + 1)

	if rel == 0 {
		q.step.Store(int64(idx))
		debug.LogEvery(16, "seq", "pulse %d: step %d (degree %d)", pulse, idx, snap.Steps[idx].Degree)
		if q.onStep != nil {
			q.onStep(idx)
		}
	}
	return actions
}

func (q *Sequencer) render(snap Snapshot, step ChordStep, rel int64) []midi.Action {
	g := snap.Gates
	if g.Validate() != nil {
		g = DefaultGates()
	}

	switch snap.Pattern {
	case Block:
		if rel == 0 {
			return q.chord(snap, step)
		}
	case Pulse:
		switch rel % PPQN {
		case 0:
			return q.chord(snap, step)
		case int64(g.PulseCut):
			return q.release()
		}
	case ArpUp, ArpDown, Random:
		rate := int64(g.ArpRate)
		switch rel % rate {
		case 0:
			return q.arp(snap, step, int(rel/rate))
		case int64(g.ArpCut):
			return q.release()
		}
	}
	return nil
}

// chord releases what is sounding and starts the step's triad.
func (q *Sequencer) chord(snap Snapshot, step ChordStep) []midi.Action {
	actions := []midi.Action{midi.Silence()}
	q.sounding = false
	if !step.Active {
		return actions
	}
	notes := theory.ChordNotes(snap.Root, snap.Scale, step.Degree)
	if len(notes) == 0 {
		return actions
	}
	q.sounding = true
	return append(actions, midi.Sound(notes))
}

// arp releases what is sounding and starts one triad note for slot.
func (q *Sequencer) arp(snap Snapshot, step ChordStep, slot int) []midi.Action {
	actions := []midi.Action{midi.Silence()}
	q.sounding = false
	if !step.Active {
		return actions
	}
	notes := theory.ChordNotes(snap.Root, snap.Scale, step.Degree)
	n := len(notes)
	if n == 0 {
		return actions
	}

	var note uint8
	switch snap.Pattern {
	case ArpUp:
		note = notes[slot%n]
	case ArpDown:
		note = notes[n-1-slot%n]
	case Random:
		note = notes[q.intN(n)]
	}
	q.sounding = true
	return append(actions, midi.Sound([]uint8{note}))
}

func (q *Sequencer) release() []midi.Action {
	if !q.sounding {
		return nil
	}
	q.sounding = false
	return []midi.Action{midi.Silence()}
}

// loopLength is the progression length in pulses. Steps with a
// non-positive duration take no time.
func loopLength(steps []ChordStep) int64 {
	var total int64
	for _, s := range steps {
		if s.Duration > 0 {
			total += int64(s.Duration) * PPQN
		}
	}
	return total
}

// locate finds the step containing tick and the offset into it. tick must
// be below loopLength(steps).
func locate(steps []ChordStep, tick int64) (index int, rel int64) {
	var start int64
	for i, s := range steps {
		if s.Duration <= 0 {
			continue
		}
		end := start + int64(s.Duration)*PPQN
		if tick < end {
			return i, tick - start
		}
		start = end
	}
	return len(steps) - 1, 0
}
