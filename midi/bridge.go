package midi

import (
	"slices"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"

	"chordclock/debug"
)

// Sender is one connected output, as returned by gomidi.SendTo
type Sender func(gomidi.Message) error

// Stats counts messages per send round. A chord of three pitches sounded to
// any number of outputs counts as three note-ons.
type Stats struct {
	NoteOns  int `json:"noteOns"`
	NoteOffs int `json:"noteOffs"`
	Clocks   int `json:"clocks"`
	Starts   int `json:"starts"`
	Stops    int `json:"stops"`
	Errors   int `json:"errors"`
}

type output struct {
	name string
	send Sender
}

// Bridge turns sequencer actions into MIDI messages on every connected
// output and tracks which pitches are currently sounding.
type Bridge struct {
	mu       sync.Mutex
	channel  uint8
	velocity uint8
	outputs  []output
	active   []uint8
	stats    Stats
}

type BridgeOption func(*Bridge)

func WithChannel(ch uint8) BridgeOption {
	return func(b *Bridge) { b.channel = ch & 0x0F }
}

func WithVelocity(v uint8) BridgeOption {
	return func(b *Bridge) {
		if v > 0 && v < 128 {
			b.velocity = v
		}
	}
}

func NewBridge(opts ...BridgeOption) *Bridge {
	b := &Bridge{velocity: DefaultVelocity}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddOutput registers an output; an existing one with the same name is
// replaced.
func (b *Bridge) AddOutput(name string, send Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.outputs {
		if b.outputs[i].name == name {
			b.outputs[i].send = send
			return
		}
	}
	b.outputs = append(b.outputs, output{name: name, send: send})
	debug.Log("bridge", "output added: %s (%d total)", name, len(b.outputs))
}

func (b *Bridge) RemoveOutput(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.outputs {
		if b.outputs[i].name == name {
			b.outputs = slices.Delete(b.outputs, i, i+1)
			debug.Log("bridge", "output removed: %s", name)
			return true
		}
	}
	return false
}

func (b *Bridge) Outputs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, len(b.outputs))
	for i, o := range b.outputs {
		names[i] = o.name
	}
	return names
}

// Clock sends one timing clock pulse (0xF8).
func (b *Bridge) Clock() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broadcast(gomidi.TimingClock())
	b.stats.Clocks++
}

// Start sends 0xFA.
func (b *Bridge) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broadcast(gomidi.Start())
	b.stats.Starts++
}

// Stop releases every sounding note, then sends 0xFC.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.silence()
	b.broadcast(gomidi.Stop())
	b.stats.Stops++
}

// Sound starts notes, which become the active set. Anything still sounding
// is released first so no note is left without its note-off.
func (b *Bridge) Sound(notes []uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sound(notes)
}

func (b *Bridge) Silence() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.silence()
}

// Apply executes actions in order.
func (b *Bridge) Apply(actions []Action) {
	if len(actions) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range actions {
		switch a.Kind {
		case ActionSilence:
			b.silence()
		case ActionSound:
			b.sound(a.Notes)
		}
	}
}

func (b *Bridge) Active() []uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.active)
}

func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *Bridge) sound(notes []uint8) {
	if len(b.active) > 0 {
		b.silence()
	}
	if len(notes) == 0 {
		return
	}
	for _, n := range notes {
		b.broadcast(gomidi.NoteOn(b.channel, n, b.velocity))
		b.stats.NoteOns++
	}
	b.active = slices.Clone(notes)
}

func (b *Bridge) silence() {
	for _, n := range b.active {
		b.broadcast(gomidi.NoteOff(b.channel, n))
		b.stats.NoteOffs++
	}
	b.active = b.active[:0]
}

// broadcast sends msg to every output. A failing output is logged and the
// round continues with the rest.
func (b *Bridge) broadcast(msg gomidi.Message) {
	for _, o := range b.outputs {
		if err := o.send(msg); err != nil {
			b.stats.Errors++
			debug.LogEvery(100, "bridge", "send to %s failed: %v", o.name, err)
		}
	}
}
