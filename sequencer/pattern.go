package sequencer

import (
	"fmt"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// Pattern is the rhythmic rendering applied to every chord step
type Pattern int

const (
	Block Pattern = iota
	Pulse
	ArpUp
	ArpDown
	Random
)

var patternNames = [...]string{"BLOCK", "PULSE", "ARP_UP", "ARP_DOWN", "RANDOM"}

func (p Pattern) String() string {
	if p < 0 || int(p) >= len(patternNames) {
		return fmt.Sprintf("Pattern(%d)", int(p))
	}
	return patternNames[p]
}

func (p Pattern) Valid() bool {
	return p >= Block && p <= Random
}

// Next cycles to the following pattern
func (p Pattern) Next() Pattern {
	return (p + 1) % Pattern(len(patternNames))
}

func Patterns() []Pattern {
	return []Pattern{Block, Pulse, ArpUp, ArpDown, Random}
}

// ParsePattern accepts the canonical names, case-insensitive, with '-' or
// ' ' in place of '_'.
func ParsePattern(s string) (Pattern, error) {
	n := strings.ToUpper(strings.TrimSpace(s))
	n = strings.NewReplacer("-", "_", " ", "_").Replace(n)
	for i, name := range patternNames {
		if name == n {
			return Pattern(i), nil
		}
	}
	return Block, fault.New(fmt.Sprintf("unknown pattern %q", s),
		fmsg.WithDesc("unknown pattern", fmt.Sprintf("%q is not one of %s", s, strings.Join(patternNames[:], ", "))),
		ftag.With(ftag.InvalidArgument))
}

func (p Pattern) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Pattern) UnmarshalText(b []byte) error {
	v, err := ParsePattern(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Gates are the sub-beat timings, in pulses, used by PULSE and the arps.
type Gates struct {
	PulseCut int `json:"pulseCut"`
	ArpRate  int `json:"arpRate"`
	ArpCut   int `json:"arpCut"`
}

func DefaultGates() Gates {
	return Gates{PulseCut: 20, ArpRate: 6, ArpCut: 4}
}

func (g Gates) Validate() error {
	switch {
	case g.PulseCut <= 0 || g.PulseCut >= PPQN:
		return invalidGates("pulse cut must be between 1 and %d, got %d", PPQN-1, g.PulseCut)
	case g.ArpRate <= 0:
		return invalidGates("arp rate must be positive, got %d", g.ArpRate)
	case g.ArpCut <= 0 || g.ArpCut >= g.ArpRate:
		return invalidGates("arp cut must be between 1 and %d, got %d", g.ArpRate-1, g.ArpCut)
	}
	return nil
}

func invalidGates(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fault.New(msg, fmsg.WithDesc("invalid gates", msg), ftag.With(ftag.InvalidArgument))
}
