package sequencer

import (
	"bytes"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"chordclock/clock"
	"chordclock/midi"
)

// exportSeed keeps RANDOM exports reproducible.
const exportSeed = 0x43484f5244

// RenderTrack plays p through the same tick logic used live and records
// the note messages with their pulse deltas.
func RenderTrack(p Preset, loops int) (smf.Track, error) {
	if loops < 1 {
		loops = 1
	}
	state := NewState()
	if err := p.ApplyTo(state); err != nil {
		return nil, err
	}
	length := loopLength(state.Progression().Snapshot())
	if length == 0 {
		return nil, fault.New("empty progression",
			fmsg.WithDesc("nothing to export", "The progression has no steps"),
			ftag.With(ftag.InvalidArgument))
	}

	var (
		track smf.Track
		delta uint32
	)
	bridge := midi.NewBridge()
	bridge.AddOutput("smf", func(msg gomidi.Message) error {
		track.Add(delta, msg)
		delta = 0
		return nil
	})

	seq := New(state, WithRand(rand.New(rand.NewPCG(exportSeed, exportSeed))))
	total := length * int64(loops)
	for pulse := int64(0); pulse < total; pulse++ {
		bridge.Apply(seq.Tick(pulse))
		delta++
	}
	bridge.Silence()
	track.Close(delta)
	return track, nil
}

// ExportSMF writes p as a standard MIDI file at 24 ticks per quarter note:
// a tempo track and one note track.
func ExportSMF(w io.Writer, p Preset, loops int) error {
	notes, err := RenderTrack(p, loops)
	if err != nil {
		return err
	}

	tempo := p.Tempo
	if tempo <= 0 {
		tempo = clock.DefaultTempo
	}

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(PPQN)

	var meta smf.Track
	meta.Add(0, smf.MetaMeter(4, 4))
	meta.Add(0, smf.MetaTempo(tempo))
	meta.Close(0)
	if err := sm.Add(meta); err != nil {
		return fault.Wrap(err, fmsg.With("add tempo track"))
	}
	if err := sm.Add(notes); err != nil {
		return fault.Wrap(err, fmsg.With("add note track"))
	}

	if _, err := sm.WriteTo(w); err != nil {
		return fault.Wrap(err, fmsg.With("write midi file"))
	}
	return nil
}

// WriteSMFFile exports p to path, creating parent directories.
func WriteSMFFile(path string, p Preset, loops int) error {
	var buf bytes.Buffer
	if err := ExportSMF(&buf, p, loops); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fault.Wrap(err, fmsg.With("create export directory"))
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fault.Wrap(err, fmsg.WithDesc("write midi file", "Could not write "+path))
	}
	return nil
}
