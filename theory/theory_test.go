package theory

import (
	"testing"

	"github.com/Southclaws/fault/ftag"
	"github.com/stretchr/testify/require"
)

func TestPitchLadder(t *testing.T) {
	ladder := PitchLadder(0, Major)
	require.Equal(t, []uint8{48, 50, 52, 53, 55, 57, 59, 60, 62, 64, 65, 67, 69, 71}, ladder)

	a := PitchLadder(9, Scales[1])
	require.Len(t, a, 14)
	require.Equal(t, uint8(57), a[0])
	require.Equal(t, uint8(69), a[7])

	require.Nil(t, PitchLadder(12, Major))
	require.Nil(t, PitchLadder(-1, Major))
}

func TestChordNotes(t *testing.T) {
	minor, err := ScaleByName("minor")
	require.NoError(t, err)

	tests := []struct {
		name   string
		root   int
		scale  Scale
		degree int
		want   []uint8
	}{
		{"C major I", 0, Major, 0, []uint8{48, 52, 55}},
		{"C major V", 0, Major, 4, []uint8{55, 59, 62}},
		{"C major vi", 0, Major, 5, []uint8{57, 60, 64}},
		{"C major vii", 0, Major, 6, []uint8{59, 62, 65}},
		{"A minor i", 9, minor, 0, []uint8{57, 60, 64}},
		{"G major IV", 7, Major, 3, []uint8{60, 64, 67}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ChordNotes(tt.root, tt.scale, tt.degree))
		})
	}
}

func TestTriadBounds(t *testing.T) {
	ladder := PitchLadder(0, Major)
	require.NotNil(t, Triad(ladder, 9))
	for _, degree := range []int{10, 11, 13, 14, 100, -1} {
		require.Empty(t, Triad(ladder, degree), "degree %d", degree)
	}
	require.Empty(t, Triad(nil, 0))
	require.Empty(t, Triad([]uint8{60, 62, 64, 65}, 0))
}

func TestParseRoot(t *testing.T) {
	for name, want := range map[string]int{"C": 0, "c#": 1, "Bb": 10, " g ": 7, "B": 11} {
		got, err := ParseRoot(name)
		require.NoError(t, err)
		require.Equal(t, want, got, name)
	}
	_, err := ParseRoot("H")
	require.Error(t, err)
	require.Equal(t, ftag.InvalidArgument, ftag.Get(err))
}

func TestScaleByName(t *testing.T) {
	s, err := ScaleByName("MIXOLYDIAN")
	require.NoError(t, err)
	require.Equal(t, "Mixolydian", s.Name)

	_, err = ScaleByName("bebop")
	require.Error(t, err)
}

func TestScaleHelpers(t *testing.T) {
	require.Equal(t, []string{"D", "E", "F#", "G", "A", "B", "C#"}, ScaleNoteNames(2, Major))
	require.True(t, InScale(64, 0, Major))
	require.False(t, InScale(61, 0, Major))
	require.True(t, InScale(21, 9, Scales[1]))
	require.Equal(t, "IV", RomanNumeral(3))
	require.Equal(t, "?", RomanNumeral(7))
	require.Equal(t, "C4", PitchName(60))
	require.Equal(t, "C3", PitchName(48))
	require.Equal(t, "A#2", PitchName(46))
}
