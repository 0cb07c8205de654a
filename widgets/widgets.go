package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// BeatDots renders one glyph per beat of the bar, lighting the current one
// (1-based). beat 0 lights nothing.
func BeatDots(beat, beats int, on, off rune, lit, dim lipgloss.Style) string {
	parts := make([]string, beats)
	for i := range parts {
		if i+1 == beat {
			parts[i] = lit.Render(string(on))
		} else {
			parts[i] = dim.Render(string(off))
		}
	}
	return strings.Join(parts, " ")
}

// DurationBar draws value filled cells out of max.
func DurationBar(value, max int, full, empty rune, style lipgloss.Style) string {
	value = min(value, max)
	if value < 0 {
		value = 0
	}
	return style.Render(strings.Repeat(string(full), value)) + strings.Repeat(string(empty), max-value)
}

// Chip renders a short label with a colored background
func Chip(label string, fg, bg lipgloss.Color) string {
	return lipgloss.NewStyle().Foreground(fg).Background(bg).Padding(0, 1).Render(label)
}

// RenderSwatch renders a single colored block
func RenderSwatch(color [3]uint8) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color)))
	return style.Render("■")
}

// RenderSwatchRow renders a row of colored blocks with spacing
func RenderSwatchRow(colors [][3]uint8) string {
	var out strings.Builder
	for i, c := range colors {
		if i > 0 {
			out.WriteString(" ")
		}
		out.WriteString(RenderSwatch(c))
	}
	return out.String()
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
