package sequencer

import (
	"fmt"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"chordclock/theory"
)

// State is the single source of truth for the musical context. Editors
// mutate it, the sequencer reads one Snapshot per pulse.
type State struct {
	mu      sync.RWMutex
	root    int
	scale   theory.Scale
	pattern Pattern
	enabled bool
	gates   Gates

	progression *Progression
}

// Snapshot is a consistent copy of State.
type Snapshot struct {
	Root    int          `json:"root"`
	Scale   theory.Scale `json:"scale"`
	Pattern Pattern      `json:"pattern"`
	Enabled bool         `json:"enabled"`
	Gates   Gates        `json:"gates"`
	Steps   []ChordStep  `json:"steps"`
}

// NewState creates a new state with defaults: C major, BLOCK, enabled,
// the I V vi IV progression.
func NewState() *State {
	return &State{
		scale:       theory.Major,
		pattern:     Block,
		enabled:     true,
		gates:       DefaultGates(),
		progression: NewProgression(DefaultProgression()),
	}
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Root:    s.root,
		Scale:   s.scale,
		Pattern: s.pattern,
		Enabled: s.enabled,
		Gates:   s.gates,
		Steps:   s.progression.Snapshot(),
	}
}

func (s *State) Progression() *Progression {
	return s.progression
}

func (s *State) Root() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

func (s *State) SetRoot(root int) error {
	if root < 0 || root > 11 {
		return fault.New(fmt.Sprintf("root %d out of range", root),
			fmsg.WithDesc("invalid root", "root must be a pitch class between 0 and 11"),
			ftag.With(ftag.InvalidArgument))
	}
	s.mu.Lock()
	s.root = root
	s.mu.Unlock()
	return nil
}

func (s *State) Scale() theory.Scale {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scale
}

func (s *State) SetScale(sc theory.Scale) error {
	if len(sc.Intervals) == 0 {
		return fault.New("empty scale", fmsg.WithDesc("invalid scale", "scale has no intervals"),
			ftag.With(ftag.InvalidArgument))
	}
	s.mu.Lock()
	s.scale = sc
	s.mu.Unlock()
	return nil
}

func (s *State) Pattern() Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pattern
}

func (s *State) SetPattern(p Pattern) error {
	if !p.Valid() {
		return fault.New(fmt.Sprintf("invalid pattern %d", int(p)),
			fmsg.WithDesc("invalid pattern", p.String()),
			ftag.With(ftag.InvalidArgument))
	}
	s.mu.Lock()
	s.pattern = p
	s.mu.Unlock()
	return nil
}

func (s *State) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

func (s *State) SetEnabled(on bool) {
	s.mu.Lock()
	s.enabled = on
	s.mu.Unlock()
}

func (s *State) Gates() Gates {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gates
}

func (s *State) SetGates(g Gates) error {
	if err := g.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.gates = g
	s.mu.Unlock()
	return nil
}
