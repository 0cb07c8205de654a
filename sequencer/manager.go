package sequencer

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"chordclock/clock"
	"chordclock/debug"
	"chordclock/midi"
	"chordclock/theory"
)

// Tempo limits applied by the editor controls.
const (
	MinTempo = 40.0
	MaxTempo = 240.0
)

// ManagerConfig wires a Manager. Only Bridge is required.
type ManagerConfig struct {
	Bridge    *midi.Bridge
	Clock     clock.Clock // system clock when nil
	Tempo     float64
	Lookahead time.Duration
	Interval  time.Duration
	State     *State
	Generator Generator
	Rand      *rand.Rand // RANDOM pattern source
}

// Status is a point-in-time view for the UI and the API
type Status struct {
	Playing bool        `json:"playing"`
	Tempo   float64     `json:"tempo"`
	Beat    int         `json:"beat"` // 1..4, 0 when stopped
	Pulse   int64       `json:"pulse"`
	Step    int         `json:"step"` // -1 when stopped
	Pattern Pattern     `json:"pattern"`
	Root    string      `json:"root"`
	Scale   string      `json:"scale"`
	Enabled bool        `json:"enabled"`
	Gates   Gates       `json:"gates"`
	Outputs []string    `json:"outputs"`
	Active  []int       `json:"active"` // sounding pitches
	Stats   midi.Stats  `json:"stats"`
	Steps   []ChordStep `json:"steps"`
}

// Manager orchestrates the clock, the sequencer and the MIDI bridge
type Manager struct {
	state  *State
	seq    *Sequencer
	sched  *clock.Scheduler
	bridge *midi.Bridge
	gen    Generator

	beat  atomic.Int32
	pulse atomic.Int64

	// Notify TUI of updates
	UpdateChan chan struct{}
}

// NewManager creates a new sequencer manager
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Bridge == nil {
		return nil, fault.New("manager needs a midi bridge")
	}
	if cfg.State == nil {
		cfg.State = NewState()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystemClock()
	}
	if cfg.Generator == nil {
		cfg.Generator = NewTemplateGenerator(nil)
	}
	if cfg.Tempo == 0 {
		cfg.Tempo = clock.DefaultTempo
	}

	m := &Manager{
		state:      cfg.State,
		bridge:     cfg.Bridge,
		gen:        cfg.Generator,
		UpdateChan: make(chan struct{}, 1),
	}
	m.pulse.Store(-1)
	m.seq = New(cfg.State, WithRand(cfg.Rand), WithStepListener(func(int) { m.notifyUpdate() }))

	opts := []clock.Option{clock.WithTempo(clampTempo(cfg.Tempo))}
	if cfg.Lookahead > 0 {
		opts = append(opts, clock.WithLookahead(cfg.Lookahead))
	}
	if cfg.Interval > 0 {
		opts = append(opts, clock.WithInterval(cfg.Interval))
	}
	sched, err := clock.New(cfg.Clock, clock.Callbacks{
		OnStart: m.onStart,
		OnTick:  m.onTick,
		OnStop:  m.onStop,
	}, opts...)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("create scheduler"))
	}
	m.sched = sched
	return m, nil
}

func (m *Manager) onStart() {
	m.seq.Reset()
	m.beat.Store(0)
	m.bridge.Start()
}

func (m *Manager) onTick(pulse int64) {
	m.pulse.Store(pulse)
	if pulse%PPQN == 0 {
		m.beat.Store(int32(pulse/PPQN%4) + 1)
		m.notifyUpdate()
	}
	m.bridge.Apply(m.seq.Tick(pulse))
	m.bridge.Clock()
}

func (m *Manager) onStop() {
	m.bridge.Stop()
	m.seq.Stopped()
	m.beat.Store(0)
	m.pulse.Store(-1)
}

// State exposes the shared musical context for editors.
func (m *Manager) State() *State {
	return m.state
}

func (m *Manager) Bridge() *midi.Bridge {
	return m.bridge
}

// Sequencer exposes the tick logic (read-only use).
func (m *Manager) Sequencer() *Sequencer {
	return m.seq
}

// Play starts playback
func (m *Manager) Play() {
	m.sched.Start()
	m.notifyUpdate()
}

// Stop stops playback. When it returns every sounding note has been
// released and 0xFC sent.
func (m *Manager) Stop() {
	m.sched.Stop()
	m.notifyUpdate()
}

func (m *Manager) Toggle() {
	if m.sched.Running() {
		m.Stop()
	} else {
		m.Play()
	}
}

func (m *Manager) Playing() bool {
	return m.sched.Running()
}

// SetTempo sets the BPM, clamped to MinTempo..MaxTempo
func (m *Manager) SetTempo(bpm float64) error {
	if math.IsNaN(bpm) || math.IsInf(bpm, 0) || bpm <= 0 {
		return fault.Wrap(clock.ErrInvalidTempo,
			fmsg.WithDesc(fmt.Sprintf("set tempo %v", bpm), "Tempo must be a positive number"),
			ftag.With(ftag.InvalidArgument))
	}
	if err := m.sched.SetTempo(clampTempo(bpm)); err != nil {
		return fault.Wrap(err, fmsg.With("set tempo"), ftag.With(ftag.InvalidArgument))
	}
	m.notifyUpdate()
	return nil
}

func (m *Manager) Tempo() float64 {
	return m.sched.Tempo()
}

func clampTempo(bpm float64) float64 {
	return math.Min(math.Max(bpm, MinTempo), MaxTempo)
}

func (m *Manager) SetPattern(p Pattern) error {
	if err := m.state.SetPattern(p); err != nil {
		return err
	}
	m.notifyUpdate()
	return nil
}

func (m *Manager) SetRoot(root int) error {
	if err := m.state.SetRoot(root); err != nil {
		return err
	}
	m.notifyUpdate()
	return nil
}

func (m *Manager) SetScale(s theory.Scale) error {
	if err := m.state.SetScale(s); err != nil {
		return err
	}
	m.notifyUpdate()
	return nil
}

// SetKey parses a root name and a scale name and applies both, or neither.
func (m *Manager) SetKey(rootName, scaleName string) error {
	root, err := theory.ParseRoot(rootName)
	if err != nil {
		return err
	}
	scale, err := theory.ScaleByName(scaleName)
	if err != nil {
		return err
	}
	m.state.SetRoot(root)
	m.state.SetScale(scale)
	m.notifyUpdate()
	return nil
}

func (m *Manager) SetEnabled(on bool) {
	m.state.SetEnabled(on)
	m.notifyUpdate()
}

func (m *Manager) SetGates(g Gates) error {
	if err := m.state.SetGates(g); err != nil {
		return err
	}
	m.notifyUpdate()
	return nil
}

// Progression edits. Steps are clamped to the editor limits; the sequencer
// picks changes up on the next pulse.

func (m *Manager) Steps() []ChordStep {
	return m.state.Progression().Steps()
}

func (m *Manager) ReplaceSteps(steps []ChordStep) []ChordStep {
	clamped := make([]ChordStep, len(steps))
	for i, s := range steps {
		clamped[i] = ClampStep(s)
	}
	m.state.Progression().Replace(clamped)
	m.notifyUpdate()
	return m.Steps()
}

func (m *Manager) AddStep(s ChordStep) ChordStep {
	s = m.state.Progression().Add(ClampStep(s))
	m.notifyUpdate()
	return s
}

func (m *Manager) InsertStep(index int, s ChordStep) ChordStep {
	s = m.state.Progression().Insert(index, ClampStep(s))
	m.notifyUpdate()
	return s
}

// UpdateStep applies fn to the step with id. Returns a NotFound error when
// the id is unknown.
func (m *Manager) UpdateStep(id string, fn func(*ChordStep)) (ChordStep, error) {
	var out ChordStep
	ok := m.state.Progression().Update(id, func(s *ChordStep) {
		fn(s)
		*s = ClampStep(*s)
		out = *s
	})
	if !ok {
		return ChordStep{}, stepNotFound(id)
	}
	m.notifyUpdate()
	return out, nil
}

func (m *Manager) RemoveStep(id string) error {
	if !m.state.Progression().Remove(id) {
		return stepNotFound(id)
	}
	m.notifyUpdate()
	return nil
}

func stepNotFound(id string) error {
	return fault.New(fmt.Sprintf("step %q not found", id),
		fmsg.WithDesc("step not found", fmt.Sprintf("No step with id %s", id)),
		ftag.With(ftag.NotFound))
}

// Generate asks the generator for a progression in the current key and
// replaces the progression with it.
func (m *Manager) Generate(ctx context.Context, genre string) ([]ChordStep, error) {
	snap := m.state.Snapshot()
	steps, err := m.gen.Generate(ctx, GenerateRequest{Genre: genre, Root: snap.Root, Scale: snap.Scale})
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("generate progression"))
	}
	if len(steps) == 0 {
		return nil, fault.New("generator returned no steps",
			fmsg.WithDesc("empty progression", fmt.Sprintf("Nothing generated for %s", genre)))
	}
	debug.Log("manager", "generated %d steps for %s", len(steps), genre)
	return m.ReplaceSteps(steps), nil
}

// Snapshot captures the current context as a preset
func (m *Manager) Snapshot(name string) Preset {
	return NewPreset(name, m.state, m.Tempo())
}

// ApplyPreset loads p. Transport keeps running.
func (m *Manager) ApplyPreset(p *Preset) error {
	if err := p.ApplyTo(m.state); err != nil {
		return fault.Wrap(err, fmsg.With("apply preset"))
	}
	if p.Tempo > 0 {
		if err := m.SetTempo(p.Tempo); err != nil {
			return err
		}
	}
	m.notifyUpdate()
	return nil
}

func (m *Manager) Status() Status {
	snap := m.state.Snapshot()
	playing := m.sched.Running()
	st := Status{
		Playing: playing,
		Tempo:   m.sched.Tempo(),
		Beat:    int(m.beat.Load()),
		Pulse:   m.pulse.Load(),
		Step:    m.seq.CurrentStep(),
		Pattern: snap.Pattern,
		Root:    theory.RootName(snap.Root),
		Scale:   snap.Scale.Name,
		Enabled: snap.Enabled,
		Gates:   snap.Gates,
		Outputs: m.bridge.Outputs(),
		Active:  pitches(m.bridge.Active()),
		Stats:   m.bridge.Stats(),
		Steps:   snap.Steps,
	}
	if !playing {
		st.Step = -1
		st.Beat = 0
	}
	return st
}

func pitches(notes []uint8) []int {
	out := make([]int, len(notes))
	for i, n := range notes {
		out[i] = int(n)
	}
	return out
}

// Close stops transport so nothing is left sounding
func (m *Manager) Close() {
	m.sched.Stop()
}

// notifyUpdate wakes the TUI without blocking
func (m *Manager) notifyUpdate() {
	select {
	case m.UpdateChan <- struct{}{}:
	default:
	}
}
