package midi

import (
	"errors"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
	"github.com/stretchr/testify/require"
)

type capture struct {
	msgs [][]byte
	err  error
}

func (c *capture) send(msg gomidi.Message) error {
	c.msgs = append(c.msgs, append([]byte(nil), msg...))
	return c.err
}

// sounding replays the captured stream and returns pitches with a note-on
// and no matching note-off.
func (c *capture) sounding() map[uint8]int {
	held := map[uint8]int{}
	for _, m := range c.msgs {
		switch {
		case len(m) == 3 && m[0]&0xF0 == NoteOn && m[2] > 0:
			held[m[1]]++
		case len(m) == 3 && (m[0]&0xF0 == NoteOff || m[0]&0xF0 == NoteOn):
			held[m[1]]--
			if held[m[1]] == 0 {
				delete(held, m[1])
			}
		}
	}
	return held
}

func (c *capture) count(status uint8) int {
	n := 0
	for _, m := range c.msgs {
		if len(m) > 0 && m[0]&0xF0 == status&0xF0 && (status < 0xF0 || m[0] == status) {
			n++
		}
	}
	return n
}

func TestBridgeSoundAndSilence(t *testing.T) {
	out := &capture{}
	b := NewBridge()
	b.AddOutput("synth", out.send)

	b.Sound([]uint8{48, 52, 55})
	require.Equal(t, []uint8{48, 52, 55}, b.Active())
	require.Len(t, out.sounding(), 3)
	require.Equal(t, []byte{0x90, 48, 100}, out.msgs[0])

	b.Silence()
	require.Empty(t, b.Active())
	require.Empty(t, out.sounding())

	st := b.Stats()
	require.Equal(t, 3, st.NoteOns)
	require.Equal(t, 3, st.NoteOffs)
}

func TestBridgeSoundReleasesPreviousNotes(t *testing.T) {
	out := &capture{}
	b := NewBridge()
	b.AddOutput("synth", out.send)

	b.Sound([]uint8{48, 52, 55})
	b.Sound([]uint8{55, 59, 62})
	require.Equal(t, []uint8{55, 59, 62}, b.Active())

	held := out.sounding()
	require.Equal(t, map[uint8]int{55: 1, 59: 1, 62: 1}, held)
}

func TestBridgeStopSilencesAndSendsStop(t *testing.T) {
	out := &capture{}
	b := NewBridge(WithChannel(2), WithVelocity(90))
	b.AddOutput("synth", out.send)

	b.Start()
	b.Sound([]uint8{60})
	b.Clock()
	b.Stop()

	require.Equal(t, []byte{0xFA}, out.msgs[0])
	require.Equal(t, []byte{0x92, 60, 90}, out.msgs[1])
	require.Equal(t, []byte{0xF8}, out.msgs[2])
	require.Equal(t, []byte{0x82, 60, 0}, out.msgs[3])
	require.Equal(t, []byte{0xFC}, out.msgs[4])
	require.Empty(t, out.sounding())
	require.Empty(t, b.Active())
}

func TestBridgeApply(t *testing.T) {
	out := &capture{}
	b := NewBridge()
	b.AddOutput("synth", out.send)

	b.Apply([]Action{Sound([]uint8{48, 52, 55})})
	b.Apply([]Action{Silence(), Sound([]uint8{50})})
	require.Equal(t, []uint8{50}, b.Active())
	b.Apply(nil)
	require.Equal(t, []uint8{50}, b.Active())
	b.Apply([]Action{Silence()})
	require.Empty(t, out.sounding())
}

func TestBridgeWithoutOutputsTracksActive(t *testing.T) {
	b := NewBridge()
	b.Sound([]uint8{48, 52})
	require.Equal(t, []uint8{48, 52}, b.Active())
	b.Clock()
	b.Stop()
	require.Empty(t, b.Active())

	st := b.Stats()
	require.Equal(t, st.NoteOns, st.NoteOffs)
	require.Equal(t, 1, st.Clocks)
}

func TestBridgeBroadcastsToEveryOutput(t *testing.T) {
	a, c := &capture{}, &capture{}
	b := NewBridge()
	b.AddOutput("a", a.send)
	b.AddOutput("c", c.send)
	require.Equal(t, []string{"a", "c"}, b.Outputs())

	b.Sound([]uint8{60, 64})
	require.Equal(t, a.msgs, c.msgs)
	require.Equal(t, 2, b.Stats().NoteOns)

	require.True(t, b.RemoveOutput("a"))
	require.False(t, b.RemoveOutput("a"))
	b.Silence()
	require.Len(t, a.sounding(), 2)
	require.Empty(t, c.sounding())
}

func TestBridgeFailingOutputDoesNotAbortRound(t *testing.T) {
	bad := &capture{err: errors.New("port gone")}
	good := &capture{}
	b := NewBridge()
	b.AddOutput("bad", bad.send)
	b.AddOutput("good", good.send)

	b.Sound([]uint8{48, 52, 55})
	require.Len(t, good.sounding(), 3)
	require.Equal(t, 3, b.Stats().Errors)
	require.Equal(t, 3, good.count(NoteOn))
}

func TestAddOutputReplacesSameName(t *testing.T) {
	first, second := &capture{}, &capture{}
	b := NewBridge()
	b.AddOutput("synth", first.send)
	b.AddOutput("synth", second.send)
	require.Equal(t, []string{"synth"}, b.Outputs())

	b.Clock()
	require.Empty(t, first.msgs)
	require.Len(t, second.msgs, 1)
}
