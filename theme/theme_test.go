package theme

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/require"
)

const gpl = `GIMP Palette
Name: Test
Columns: 2
#
  0   0   0	black
255 255 255	white
300  10  10	out of range
`

func TestLoadGPL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.gpl")
	require.NoError(t, os.WriteFile(path, []byte(gpl), 0644))

	p, err := LoadGPL(path)
	require.NoError(t, err)
	require.Equal(t, "Test", p.Name)
	require.Equal(t, []RGB{{0, 0, 0}, {255, 255, 255}}, p.Colors)
	require.Equal(t, RGB{127, 127, 127}, p.Lookup(0.5))
	require.Equal(t, RGB{0, 0, 0}, p.Lookup(-1))
	require.Equal(t, RGB{255, 255, 255}, p.Lookup(2))
}

func TestLoadPalette(t *testing.T) {
	p, err := LoadPalette("")
	require.NoError(t, err)
	require.Equal(t, "Dusk", p.Name)

	empty := filepath.Join(t.TempDir(), "empty.gpl")
	require.NoError(t, os.WriteFile(empty, []byte("GIMP Palette\n"), 0644))
	_, err = LoadPalette(empty)
	require.Error(t, err)

	_, err = LoadPalette(filepath.Join(t.TempDir(), "missing.gpl"))
	require.Error(t, err)
}

func TestThemeColors(t *testing.T) {
	th := New(nil)
	require.Equal(t, lipgloss.Color("#1a102e"), th.BG())
	require.Equal(t, lipgloss.Color("#fcf05a"), th.Success())
	require.Equal(t, th.Color(0.4), th.Degree(0))
	require.Equal(t, th.Degree(6), th.Degree(42))
}

func TestParseGPLSingleColor(t *testing.T) {
	p, err := ParseGPL(strings.NewReader("GIMP Palette\n12 34 56 only\n"))
	require.NoError(t, err)
	require.Empty(t, p.Name)
	require.Equal(t, RGB{12, 34, 56}, p.Lookup(0.7))
}
