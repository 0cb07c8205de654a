package midi

// MIDI status bytes
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
	CC      uint8 = 0xB0
	Clock   uint8 = 0xF8
	Start   uint8 = 0xFA
	Stop    uint8 = 0xFC
)

// DefaultVelocity is used for every sequenced note-on.
const DefaultVelocity uint8 = 100

// ActionKind selects what the Bridge does with an Action
type ActionKind int

const (
	ActionSilence ActionKind = iota // note-off for every active note
	ActionSound                     // note-on for Notes, which become the active set
)

// Action is one sequencer decision for a pulse
type Action struct {
	Kind  ActionKind
	Notes []uint8
}

func Silence() Action {
	return Action{Kind: ActionSilence}
}

func Sound(notes []uint8) Action {
	return Action{Kind: ActionSound, Notes: notes}
}

func (k ActionKind) String() string {
	switch k {
	case ActionSilence:
		return "silence"
	case ActionSound:
		return "sound"
	}
	return "unknown"
}
