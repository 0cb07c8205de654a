package sequencer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Southclaws/fault/ftag"
	"github.com/stretchr/testify/require"

	"chordclock/theory"
)

func fixedNow(ts ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		t := ts[min(i, len(ts)-1)]
		i++
		return t
	}
}

func TestStoreSaveListLoad(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)
	store := &Store{Dir: t.TempDir(), Now: fixedNow(base, base.Add(time.Minute))}

	state := NewState()
	require.NoError(t, state.SetRoot(9))
	minor, err := theory.ScaleByName("Minor")
	require.NoError(t, err)
	require.NoError(t, state.SetScale(minor))
	require.NoError(t, state.SetPattern(ArpDown))

	first, err := store.Save(NewPreset("night drive", state, 92))
	require.NoError(t, err)
	require.Equal(t, "2024-03-01_10-00-00_night-drive.json", first)

	second, err := store.Save(NewPreset("", state, 100))
	require.NoError(t, err)
	require.Equal(t, "2024-03-01_10-01-00.json", second)

	require.NoError(t, os.WriteFile(filepath.Join(store.Dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir, "junk.json"), []byte("{}"), 0644))

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second, list[0].Filename)
	require.Equal(t, "night-drive", list[1].Name)

	p, err := store.Load(first)
	require.NoError(t, err)
	require.Equal(t, "A", p.Root)
	require.Equal(t, "Minor", p.Scale)
	require.Equal(t, ArpDown, p.Pattern)
	require.Equal(t, 92.0, p.Tempo)
	require.Len(t, p.Steps, 4)

	latest, err := store.Latest()
	require.NoError(t, err)
	require.Equal(t, 100.0, latest.Tempo)
}

func TestStoreMissingAndInvalid(t *testing.T) {
	store := &Store{Dir: filepath.Join(t.TempDir(), "none")}

	list, err := store.List()
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = store.Latest()
	require.Equal(t, ftag.NotFound, ftag.Get(err))

	_, err = store.Load("2024-01-01_00-00-00.json")
	require.Equal(t, ftag.NotFound, ftag.Get(err))

	_, err = store.Load("../config.json")
	require.Equal(t, ftag.InvalidArgument, ftag.Get(err))

	require.Equal(t, ftag.NotFound, ftag.Get(store.Delete("2024-01-01_00-00-00.json")))
}

func TestStoreDeleteAndRename(t *testing.T) {
	store := &Store{Dir: t.TempDir(), Now: fixedNow(time.Date(2024, 5, 5, 5, 5, 5, 0, time.Local))}
	name, err := store.Save(NewPreset("a", NewState(), 120))
	require.NoError(t, err)

	renamed, err := store.Rename(name, "b side")
	require.NoError(t, err)
	require.Equal(t, "2024-05-05_05-05-05_b-side.json", renamed)

	require.NoError(t, store.Delete(renamed))
	list, err := store.List()
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestPresetApplyTo(t *testing.T) {
	p := Preset{
		Root:    "Eb",
		Scale:   "dorian",
		Pattern: Pulse,
		Steps:   []ChordStep{{Degree: 9, Duration: 0, Active: true}},
	}
	s := NewState()
	require.NoError(t, p.ApplyTo(s))

	snap := s.Snapshot()
	require.Equal(t, 3, snap.Root)
	require.Equal(t, "Dorian", snap.Scale.Name)
	require.Equal(t, Pulse, snap.Pattern)
	require.Equal(t, DefaultGates(), snap.Gates)
	require.Equal(t, 6, snap.Steps[0].Degree)
	require.Equal(t, 1, snap.Steps[0].Duration)

	bad := Preset{Root: "X", Scale: "Major"}
	require.Error(t, bad.ApplyTo(s))
	require.Equal(t, 3, s.Root())
}
