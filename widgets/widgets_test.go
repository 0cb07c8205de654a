package widgets

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/require"
)

func TestBeatDots(t *testing.T) {
	plain := lipgloss.NewStyle()
	require.Equal(t, "○ ● ○ ○", BeatDots(2, 4, '●', '○', plain, plain))
	require.Equal(t, "○ ○ ○ ○", BeatDots(0, 4, '●', '○', plain, plain))
}

func TestDurationBar(t *testing.T) {
	plain := lipgloss.NewStyle()
	require.Equal(t, "███░░░░░", DurationBar(3, 8, '█', '░', plain))
	require.Equal(t, "████", DurationBar(9, 4, '█', '░', plain))
	require.Equal(t, "░░", DurationBar(-1, 2, '█', '░', plain))
}

func TestRenderKeyHelp(t *testing.T) {
	out := RenderKeyHelp([]KeySection{{
		Title: "Transport",
		Keys:  []KeyBinding{{Key: "space", Desc: "play/stop"}},
	}})
	require.Equal(t, "Transport\n  space        play/stop", out)
}

func TestRgbToHex(t *testing.T) {
	require.Equal(t, "#ff0a00", rgbToHex([3]uint8{255, 10, 0}))
}
