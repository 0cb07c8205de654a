package theme

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

type RGB [3]uint8

type Palette struct {
	Name   string
	Colors []RGB
}

// DefaultPalette runs from deep purple through magenta to yellow.
func DefaultPalette() *Palette {
	return &Palette{
		Name: "Dusk",
		Colors: []RGB{
			{0x1a, 0x10, 0x2e},
			{0x2d, 0x1b, 0x4e},
			{0x5c, 0x2a, 0x7e},
			{0x8e, 0x3c, 0x9e},
			{0xc0, 0x5a, 0xb4},
			{0xe0, 0x3c, 0xa0},
			{0xf2, 0x6b, 0x8a},
			{0xf2, 0x5a, 0x50},
			{0xf7, 0x93, 0x3a},
			{0xfa, 0xc4, 0x3c},
			{0xfc, 0xf0, 0x5a},
		},
	}
}

// LoadPalette returns the palette at path, or the default when path is empty.
func LoadPalette(path string) (*Palette, error) {
	if path == "" {
		return DefaultPalette(), nil
	}
	return LoadGPL(path)
}

// LoadGPL reads a GIMP .gpl palette file.
func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("open palette"))
	}
	defer f.Close()

	p, err := ParseGPL(f)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With(fmt.Sprintf("palette %s", path)))
	}
	return p, nil
}

// ParseGPL decodes GIMP palette text. Rows that are not three 0-255 values
// are skipped; a palette without any color is an error.
func ParseGPL(r io.Reader) (*Palette, error) {
	p := &Palette{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if name, ok := strings.CutPrefix(line, "Name:"); ok {
			p.Name = strings.TrimSpace(name)
			continue
		}
		if c, ok := parseColorRow(line); ok {
			p.Colors = append(p.Colors, c)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fault.Wrap(err, fmsg.With("read palette"))
	}
	if len(p.Colors) == 0 {
		return nil, fault.New("palette has no colors", ftag.With(ftag.InvalidArgument))
	}
	return p, nil
}

// parseColorRow reads "R G B [label]"; headers and comments fail the parse.
func parseColorRow(line string) (RGB, bool) {
	if line == "" || line[0] == '#' {
		return RGB{}, false
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return RGB{}, false
	}
	var c RGB
	for i := range c {
		v, err := strconv.ParseUint(fields[i], 10, 8)
		if err != nil {
			return RGB{}, false
		}
		c[i] = uint8(v)
	}
	return c, true
}

// Lookup returns interpolated color for normalized value 0-1
func (p *Palette) Lookup(norm float64) RGB {
	last := len(p.Colors) - 1
	switch {
	case norm <= 0 || last == 0:
		return p.Colors[0]
	case norm >= 1:
		return p.Colors[last]
	}

	pos := norm * float64(last)
	i := int(pos)
	t := pos - float64(i)
	a, b := p.Colors[i], p.Colors[i+1]

	var out RGB
	for ch := range out {
		out[ch] = uint8(float64(a[ch])*(1-t) + float64(b[ch])*t)
	}
	return out
}
