package sequencer

import (
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	MinDegree   = 0
	MaxDegree   = 6
	MinDuration = 1
	MaxDuration = 8
)

// ChordStep is one entry of the progression. Duration is in beats.
type ChordStep struct {
	ID       string `json:"id"`
	Degree   int    `json:"degree"`
	Duration int    `json:"duration"`
	Active   bool   `json:"active"`
}

var stepCounter atomic.Uint64

// NewStepID returns a process-unique step identifier
func NewStepID() string {
	return fmt.Sprintf("s%s-%d", strconv.FormatInt(time.Now().UnixMilli(), 36), stepCounter.Add(1))
}

// ClampStep applies the editor limits: degree 0..6, duration 1..8.
func ClampStep(s ChordStep) ChordStep {
	s.Degree = min(max(s.Degree, MinDegree), MaxDegree)
	s.Duration = min(max(s.Duration, MinDuration), MaxDuration)
	return s
}

// DefaultProgression is I V vi IV, four beats each.
func DefaultProgression() []ChordStep {
	steps := []ChordStep{
		{Degree: 0, Duration: 4, Active: true},
		{Degree: 4, Duration: 4, Active: true},
		{Degree: 5, Duration: 4, Active: true},
		{Degree: 3, Duration: 4, Active: true},
	}
	for i := range steps {
		steps[i].ID = NewStepID()
	}
	return steps
}

// Progression is the ordered, shared list of chord steps. Edits replace the
// backing slice so a Snapshot taken by the sequencer is never mutated.
type Progression struct {
	mu    sync.RWMutex
	steps []ChordStep
}

func NewProgression(steps []ChordStep) *Progression {
	p := &Progression{}
	p.Replace(steps)
	return p
}

// Snapshot returns the current steps. The slice must not be modified.
func (p *Progression) Snapshot() []ChordStep {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.steps
}

// Steps returns a copy callers may modify.
func (p *Progression) Steps() []ChordStep {
	return slices.Clone(p.Snapshot())
}

// Replace swaps in a whole new list. Missing IDs are assigned.
func (p *Progression) Replace(steps []ChordStep) {
	next := slices.Clone(steps)
	for i := range next {
		if next[i].ID == "" {
			next[i].ID = NewStepID()
		}
	}
	p.mu.Lock()
	p.steps = next
	p.mu.Unlock()
}

// Add appends a step and returns it with its ID.
func (p *Progression) Add(s ChordStep) ChordStep {
	if s.ID == "" {
		s.ID = NewStepID()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	next := make([]ChordStep, len(p.steps), len(p.steps)+1)
	copy(next, p.steps)
	p.steps = append(next, s)
	return s
}

// Insert places s at index, clamped to the list bounds.
func (p *Progression) Insert(index int, s ChordStep) ChordStep {
	if s.ID == "" {
		s.ID = NewStepID()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	index = min(max(index, 0), len(p.steps))
	p.steps = slices.Insert(slices.Clone(p.steps), index, s)
	return s
}

func (p *Progression) Remove(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.index(id)
	if i < 0 {
		return false
	}
	p.steps = slices.Delete(slices.Clone(p.steps), i, i+1)
	return true
}

func (p *Progression) RemoveAt(index int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.steps) {
		return false
	}
	p.steps = slices.Delete(slices.Clone(p.steps), index, index+1)
	return true
}

// Update applies fn to a copy of the step with id and stores the result.
// The ID cannot be changed.
func (p *Progression) Update(id string, fn func(*ChordStep)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.index(id)
	if i < 0 {
		return false
	}
	next := slices.Clone(p.steps)
	fn(&next[i])
	next[i].ID = id
	p.steps = next
	return true
}

func (p *Progression) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.steps)
}

// Index returns the position of id, -1 when absent.
func (p *Progression) Index(id string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.index(id)
}

func (p *Progression) index(id string) int {
	return slices.IndexFunc(p.steps, func(s ChordStep) bool { return s.ID == id })
}

// TotalBeats sums step durations.
func TotalBeats(steps []ChordStep) int {
	total := 0
	for _, s := range steps {
		total += s.Duration
	}
	return total
}
