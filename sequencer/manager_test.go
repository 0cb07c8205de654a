package sequencer

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/Southclaws/fault/ftag"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"

	"chordclock/clock"
	"chordclock/midi"
)

type wire struct {
	msgs [][]byte
}

func (w *wire) send(msg gomidi.Message) error {
	w.msgs = append(w.msgs, append([]byte(nil), msg...))
	return nil
}

func (w *wire) count(match func([]byte) bool) int {
	n := 0
	for _, m := range w.msgs {
		if match(m) {
			n++
		}
	}
	return n
}

func isNoteOn(m []byte) bool  { return len(m) == 3 && m[0]&0xF0 == midi.NoteOn && m[2] > 0 }
func isNoteOff(m []byte) bool { return len(m) == 3 && m[0]&0xF0 == midi.NoteOff }
func isClock(m []byte) bool   { return len(m) == 1 && m[0] == midi.Clock }

func newTestManager(t *testing.T) (*Manager, *clock.Manual, *wire) {
	t.Helper()
	clk := clock.NewManual()
	out := &wire{}
	bridge := midi.NewBridge()
	bridge.AddOutput("test", out.send)
	m, err := NewManager(ManagerConfig{
		Bridge: bridge,
		Clock:  clk,
		Rand:   rand.New(rand.NewPCG(3, 4)),
	})
	require.NoError(t, err)
	return m, clk, out
}

func TestNewManagerRequiresBridge(t *testing.T) {
	_, err := NewManager(ManagerConfig{})
	require.Error(t, err)
}

func TestManagerTransportMessages(t *testing.T) {
	m, clk, out := newTestManager(t)

	m.Play()
	require.True(t, m.Playing())
	clk.Advance(time.Second)
	m.Stop()
	require.False(t, m.Playing())

	require.Equal(t, []byte{midi.Start}, out.msgs[0])
	require.Equal(t, []byte{midi.Stop}, out.msgs[len(out.msgs)-1])
	require.Equal(t, 1, out.count(func(b []byte) bool { return len(b) == 1 && b[0] == midi.Start }))

	clocks := out.count(isClock)
	require.Greater(t, clocks, 40)
	require.Equal(t, clocks, m.Bridge().Stats().Clocks)

	// first tick: chord before its clock byte
	require.True(t, isNoteOn(out.msgs[1]))
	require.Equal(t, out.count(isNoteOn), out.count(isNoteOff))

	st := m.Status()
	require.Equal(t, -1, st.Step)
	require.Zero(t, st.Beat)
	require.Empty(t, st.Active)
}

func TestManagerNoStuckNotes(t *testing.T) {
	for _, pattern := range Patterns() {
		t.Run(pattern.String(), func(t *testing.T) {
			m, clk, out := newTestManager(t)
			require.NoError(t, m.SetPattern(pattern))
			require.NoError(t, m.SetTempo(180))

			m.Play()
			for i := 0; i < 7; i++ {
				clk.Advance(137 * time.Millisecond)
			}
			m.RemoveStep(m.Steps()[0].ID)
			clk.Advance(333 * time.Millisecond)
			m.Stop()

			require.Positive(t, out.count(isNoteOn))
			require.Equal(t, out.count(isNoteOn), out.count(isNoteOff))
			require.Empty(t, m.Bridge().Active())
		})
	}
}

func TestManagerStopMidChord(t *testing.T) {
	m, clk, out := newTestManager(t)
	m.Play()
	clk.Advance(50 * time.Millisecond)
	require.Len(t, m.Bridge().Active(), 3)

	m.Close()
	require.Empty(t, m.Bridge().Active())
	require.Equal(t, 3, out.count(isNoteOff))
}

func TestManagerStatusWhilePlaying(t *testing.T) {
	m, clk, _ := newTestManager(t)
	m.Play()
	clk.Advance(2100 * time.Millisecond) // beat 5 at 120 bpm
	st := m.Status()
	require.True(t, st.Playing)
	require.Equal(t, 1, st.Beat)
	require.Equal(t, 1, st.Step)
	require.Equal(t, "C", st.Root)
	require.Equal(t, "Major", st.Scale)
	require.Equal(t, []string{"test"}, st.Outputs)
	m.Stop()
}

func TestManagerSetTempo(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.NoError(t, m.SetTempo(300))
	require.Equal(t, MaxTempo, m.Tempo())
	require.NoError(t, m.SetTempo(10))
	require.Equal(t, MinTempo, m.Tempo())

	err := m.SetTempo(-1)
	require.ErrorIs(t, err, clock.ErrInvalidTempo)
	require.Equal(t, ftag.InvalidArgument, ftag.Get(err))
}

func TestManagerSetKey(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.NoError(t, m.SetKey("F#", "lydian"))
	require.Equal(t, 6, m.State().Root())
	require.Equal(t, "Lydian", m.State().Scale().Name)

	require.Error(t, m.SetKey("C", "nope"))
	require.Equal(t, 6, m.State().Root())
}

func TestManagerStepEdits(t *testing.T) {
	m, _, _ := newTestManager(t)

	s := m.AddStep(ChordStep{Degree: 8, Duration: 12, Active: true})
	require.Equal(t, 6, s.Degree)
	require.Equal(t, 8, s.Duration)
	require.Len(t, m.Steps(), 5)

	updated, err := m.UpdateStep(s.ID, func(c *ChordStep) { c.Duration = 0 })
	require.NoError(t, err)
	require.Equal(t, 1, updated.Duration)

	_, err = m.UpdateStep("missing", func(*ChordStep) {})
	require.Equal(t, ftag.NotFound, ftag.Get(err))
	require.Equal(t, ftag.NotFound, ftag.Get(m.RemoveStep("missing")))

	require.NoError(t, m.RemoveStep(s.ID))
	require.Len(t, m.Steps(), 4)

	steps := m.ReplaceSteps([]ChordStep{{Degree: -1, Duration: 3}})
	require.Len(t, steps, 1)
	require.Zero(t, steps[0].Degree)
	require.NotEmpty(t, steps[0].ID)
}

func TestManagerGenerate(t *testing.T) {
	m, _, _ := newTestManager(t)
	steps, err := m.Generate(context.Background(), "Jazz")
	require.NoError(t, err)
	require.Len(t, steps, 4)
	require.Equal(t, steps, m.Steps())

	_, err = m.Generate(context.Background(), "polka")
	require.Equal(t, ftag.InvalidArgument, ftag.Get(err))
	require.Equal(t, steps, m.Steps())
}

func TestManagerPresetRoundTrip(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.NoError(t, m.SetTempo(88))
	require.NoError(t, m.SetPattern(Random))
	p := m.Snapshot("demo")

	other, _, _ := newTestManager(t)
	require.NoError(t, other.ApplyPreset(&p))
	require.Equal(t, 88.0, other.Tempo())
	require.Equal(t, Random, other.State().Pattern())
	require.Equal(t, m.Steps(), other.Steps())
}

func TestManagerNotifies(t *testing.T) {
	m, _, _ := newTestManager(t)
	m.SetEnabled(false)
	select {
	case <-m.UpdateChan:
	default:
		t.Fatal("expected update")
	}
	require.False(t, m.State().Enabled())
}
