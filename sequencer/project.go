package sequencer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"chordclock/theory"
)

const timestampLayout = "2006-01-02_15-04-05"

// Preset is a saved musical context: tempo, key, pattern and progression.
type Preset struct {
	Name      string      `json:"name"`
	Timestamp time.Time   `json:"timestamp"`
	Tempo     float64     `json:"tempo"`
	Root      string      `json:"root"`
	Scale     string      `json:"scale"`
	Pattern   Pattern     `json:"pattern"`
	Gates     Gates       `json:"gates"`
	Steps     []ChordStep `json:"steps"`
}

// NewPreset captures the current context of s.
func NewPreset(name string, s *State, tempo float64) Preset {
	snap := s.Snapshot()
	steps := make([]ChordStep, len(snap.Steps))
	copy(steps, snap.Steps)
	return Preset{
		Name:    name,
		Tempo:   tempo,
		Root:    theory.RootName(snap.Root),
		Scale:   snap.Scale.Name,
		Pattern: snap.Pattern,
		Gates:   snap.Gates,
		Steps:   steps,
	}
}

// ApplyTo validates p and loads it into s. Nothing is changed when p is
// invalid. Zero gates mean the defaults; steps are clamped like editor
// input.
func (p *Preset) ApplyTo(s *State) error {
	root, err := theory.ParseRoot(p.Root)
	if err != nil {
		return err
	}
	scale, err := theory.ScaleByName(p.Scale)
	if err != nil {
		return err
	}
	if !p.Pattern.Valid() {
		return fault.New(fmt.Sprintf("invalid pattern %d", int(p.Pattern)), ftag.With(ftag.InvalidArgument))
	}
	gates := p.Gates
	if gates == (Gates{}) {
		gates = DefaultGates()
	}
	if err := gates.Validate(); err != nil {
		return err
	}

	steps := make([]ChordStep, len(p.Steps))
	for i, st := range p.Steps {
		steps[i] = ClampStep(st)
	}

	s.SetRoot(root)
	s.SetScale(scale)
	s.SetPattern(p.Pattern)
	s.SetGates(gates)
	s.Progression().Replace(steps)
	return nil
}

// PresetInfo represents a saved preset file (for listing)
type PresetInfo struct {
	Filename  string    `json:"filename"`
	Name      string    `json:"name"` // parsed from filename (empty if unnamed)
	Timestamp time.Time `json:"timestamp"`
}

// Store keeps presets as timestamped JSON files in Dir.
type Store struct {
	Dir string
	Now func() time.Time
}

// PresetsDir returns the presets directory path
func PresetsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fault.Wrap(err, fmsg.With("locate home directory"))
	}
	return filepath.Join(home, ".config", "chordclock", "presets"), nil
}

func DefaultStore() (*Store, error) {
	dir, err := PresetsDir()
	if err != nil {
		return nil, err
	}
	return &Store{Dir: dir}, nil
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Save writes p as <timestamp>[_name].json and returns the filename.
func (s *Store) Save(p Preset) (string, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", fault.Wrap(err, fmsg.With("create presets directory"))
	}

	ts := s.now()
	p.Timestamp = ts
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fault.Wrap(err, fmsg.With("encode preset"))
	}

	filename := ts.Format(timestampLayout)
	if name := sanitizeFilename(p.Name); name != "" {
		filename += "_" + name
	}
	filename += ".json"

	if err := os.WriteFile(filepath.Join(s.Dir, filename), data, 0644); err != nil {
		return "", fault.Wrap(err, fmsg.WithDesc("write preset", "Could not save the preset"))
	}
	return filename, nil
}

// List returns saved presets, newest first
func (s *Store) List() ([]PresetInfo, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []PresetInfo{}, nil
		}
		return nil, fault.Wrap(err, fmsg.With("read presets directory"))
	}

	var presets []PresetInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}

		// Parse filename: 2024-01-15_14-30-00.json or 2024-01-15_14-30-00_name.json
		baseName := strings.TrimSuffix(name, ".json")
		if len(baseName) < len(timestampLayout) {
			continue
		}
		ts, err := time.ParseInLocation(timestampLayout, baseName[:len(timestampLayout)], time.Local)
		if err != nil {
			continue
		}

		presetName := ""
		if rest := baseName[len(timestampLayout):]; len(rest) > 1 && rest[0] == '_' {
			presetName = rest[1:]
		}

		presets = append(presets, PresetInfo{
			Filename:  name,
			Name:      presetName,
			Timestamp: ts,
		})
	}

	sort.SliceStable(presets, func(i, j int) bool {
		if presets[i].Timestamp.Equal(presets[j].Timestamp) {
			return presets[i].Filename > presets[j].Filename
		}
		return presets[i].Timestamp.After(presets[j].Timestamp)
	})
	return presets, nil
}

// Load reads one preset file
func (s *Store) Load(filename string) (*Preset, error) {
	path, err := s.path(filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fault.Wrap(err, fmsg.WithDesc("load preset", fmt.Sprintf("No preset named %s", filename)),
				ftag.With(ftag.NotFound))
		}
		return nil, fault.Wrap(err, fmsg.With("read preset"))
	}

	var p Preset
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fault.Wrap(err, fmsg.WithDesc("decode preset", fmt.Sprintf("%s is not a valid preset", filename)),
			ftag.With(ftag.InvalidArgument))
	}
	return &p, nil
}

// Latest loads the most recent preset
func (s *Store) Latest() (*Preset, error) {
	presets, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(presets) == 0 {
		return nil, fault.New("no presets saved",
			fmsg.WithDesc("no presets", fmt.Sprintf("Nothing saved in %s yet", s.Dir)),
			ftag.With(ftag.NotFound))
	}
	return s.Load(presets[0].Filename)
}

// Delete removes a preset file
func (s *Store) Delete(filename string) error {
	path, err := s.path(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fault.Wrap(err, fmsg.With("delete preset"), ftag.With(ftag.NotFound))
		}
		return fault.Wrap(err, fmsg.With("delete preset"))
	}
	return nil
}

// Rename changes the name part of a preset file, keeping its timestamp
func (s *Store) Rename(oldFilename, newName string) (string, error) {
	oldPath, err := s.path(oldFilename)
	if err != nil {
		return "", err
	}
	baseName := strings.TrimSuffix(oldFilename, ".json")
	if len(baseName) < len(timestampLayout) {
		return "", fault.New("invalid preset filename", ftag.With(ftag.InvalidArgument))
	}

	newFilename := baseName[:len(timestampLayout)]
	if safe := sanitizeFilename(newName); safe != "" {
		newFilename += "_" + safe
	}
	newFilename += ".json"

	if err := os.Rename(oldPath, filepath.Join(s.Dir, newFilename)); err != nil {
		return "", fault.Wrap(err, fmsg.With("rename preset"))
	}
	return newFilename, nil
}

// path resolves filename inside Dir, refusing anything that escapes it.
func (s *Store) path(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", fault.New(fmt.Sprintf("invalid preset filename %q", filename), ftag.With(ftag.InvalidArgument))
	}
	return filepath.Join(s.Dir, filename), nil
}

// sanitizeFilename removes/replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer(
		" ", "-", "/", "-", "\\", "-", ":", "-",
		"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
	).Replace(name)
	return name
}
