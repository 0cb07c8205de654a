// Package theory maps a root, a scale and a scale degree to concrete MIDI
// pitches. Everything here is pure and safe for concurrent use.
package theory

import (
	"fmt"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

var NoteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var flatNames = map[string]string{
	"DB": "C#", "EB": "D#", "GB": "F#", "AB": "G#", "BB": "A#",
}

// ReferenceOctaveBase anchors the root pitch class: C maps to 48 (C3).
const ReferenceOctaveBase = 48

// ladderOctaves is how many octaves PitchLadder spans.
const ladderOctaves = 2

type Scale struct {
	Name      string `json:"name"`
	Intervals []int  `json:"intervals"`
}

var Scales = []Scale{
	{Name: "Major", Intervals: []int{0, 2, 4, 5, 7, 9, 11}},
	{Name: "Minor", Intervals: []int{0, 2, 3, 5, 7, 8, 10}},
	{Name: "Dorian", Intervals: []int{0, 2, 3, 5, 7, 9, 10}},
	{Name: "Phrygian", Intervals: []int{0, 1, 3, 5, 7, 8, 10}},
	{Name: "Lydian", Intervals: []int{0, 2, 4, 6, 7, 9, 11}},
	{Name: "Mixolydian", Intervals: []int{0, 2, 4, 5, 7, 9, 10}},
	{Name: "Locrian", Intervals: []int{0, 1, 3, 5, 6, 8, 10}},
}

// Major is the default scale.
var Major = Scales[0]

// ParseRoot resolves a pitch-class name ("C", "f#", "Bb") to 0-11.
func ParseRoot(name string) (int, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if sharp, ok := flatNames[n]; ok {
		n = sharp
	}
	for i, nn := range NoteNames {
		if nn == n {
			return i, nil
		}
	}
	return 0, fault.New(fmt.Sprintf("unknown root note %q", name),
		fmsg.WithDesc("unknown root", fmt.Sprintf("%q is not a note name", name)),
		ftag.With(ftag.InvalidArgument))
}

// ScaleByName looks a scale up in the catalog, ignoring case.
func ScaleByName(name string) (Scale, error) {
	for _, s := range Scales {
		if strings.EqualFold(s.Name, strings.TrimSpace(name)) {
			return s, nil
		}
	}
	return Scale{}, fault.New(fmt.Sprintf("unknown scale %q", name),
		fmsg.WithDesc("unknown scale", fmt.Sprintf("%q is not a known scale", name)),
		ftag.With(ftag.InvalidArgument))
}

// RootName returns the name of pitch class root, "?" when out of range.
func RootName(root int) string {
	if root < 0 || root >= len(NoteNames) {
		return "?"
	}
	return NoteNames[root]
}

// PitchLadder returns two ascending octaves of the scale starting at the
// root in the reference octave.
func PitchLadder(root int, s Scale) []uint8 {
	if root < 0 || root >= len(NoteNames) {
		return nil
	}
	base := ReferenceOctaveBase + root
	ladder := make([]uint8, 0, ladderOctaves*len(s.Intervals))
	for oct := 0; oct < ladderOctaves; oct++ {
		for _, iv := range s.Intervals {
			ladder = append(ladder, uint8(base+oct*12+iv))
		}
	}
	return ladder
}

// Triad stacks thirds on degree: ladder indices d, d+2 and d+4. Returns nil
// when any of them falls outside the ladder.
func Triad(ladder []uint8, degree int) []uint8 {
	if degree < 0 || degree+4 >= len(ladder) {
		return nil
	}
	return []uint8{ladder[degree], ladder[degree+2], ladder[degree+4]}
}

// ChordNotes is Triad over the ladder of root and s.
func ChordNotes(root int, s Scale, degree int) []uint8 {
	return Triad(PitchLadder(root, s), degree)
}

// ScaleNoteNames lists the pitch-class names of the scale from root.
func ScaleNoteNames(root int, s Scale) []string {
	names := make([]string, 0, len(s.Intervals))
	for _, iv := range s.Intervals {
		names = append(names, NoteNames[(root+iv)%12])
	}
	return names
}

// InScale reports whether pitch belongs to the scale on root, in any octave.
func InScale(pitch uint8, root int, s Scale) bool {
	pc := (int(pitch) - root + 120) % 12
	for _, iv := range s.Intervals {
		if iv == pc {
			return true
		}
	}
	return false
}

var numerals = []string{"I", "II", "III", "IV", "V", "VI", "VII"}

func RomanNumeral(degree int) string {
	if degree < 0 || degree >= len(numerals) {
		return "?"
	}
	return numerals[degree]
}

// PitchName formats a MIDI pitch as name+octave with C4 = 60.
func PitchName(p uint8) string {
	return fmt.Sprintf("%s%d", NoteNames[p%12], int(p)/12-1)
}
