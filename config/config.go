package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"chordclock/midi"
	"chordclock/sequencer"
	"chordclock/theory"
)

// OutputConfig selects and shapes the MIDI outputs
type OutputConfig struct {
	Ports    []string `json:"ports,omitempty"`   // allow-list, empty means every port
	Exclude  []string `json:"exclude,omitempty"` // substrings never opened
	Channel  uint8    `json:"channel"`           // 0-15
	Velocity uint8    `json:"velocity"`
}

// ClockConfig tunes the lookahead scheduler
type ClockConfig struct {
	LookaheadMS int `json:"lookaheadMs"`
	IntervalMS  int `json:"intervalMs"`
}

func (c ClockConfig) Lookahead() time.Duration {
	return time.Duration(c.LookaheadMS) * time.Millisecond
}

func (c ClockConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// UIConfig stores UI preferences
type UIConfig struct {
	LastTempo   float64 `json:"lastTempo,omitempty"`
	LastRoot    string  `json:"lastRoot,omitempty"`
	LastScale   string  `json:"lastScale,omitempty"`
	LastPattern string  `json:"lastPattern,omitempty"`
	Theme       string  `json:"theme,omitempty"` // path to a .gpl palette
}

// APIConfig enables the HTTP control surface when Listen is set
type APIConfig struct {
	Listen string `json:"listen,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Output OutputConfig    `json:"output"`
	Clock  ClockConfig     `json:"clock"`
	Gates  sequencer.Gates `json:"gates"`
	UI     UIConfig        `json:"ui,omitempty"`
	API    APIConfig       `json:"api,omitempty"`

	path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Exclude:  append([]string(nil), midi.DefaultExclude...),
			Channel:  0,
			Velocity: midi.DefaultVelocity,
		},
		Clock: ClockConfig{
			LookaheadMS: 100,
			IntervalMS:  25,
		},
		Gates: sequencer.DefaultGates(),
		UI: UIConfig{
			LastTempo:   120,
			LastRoot:    "C",
			LastScale:   "Major",
			LastPattern: sequencer.Block.String(),
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fault.Wrap(err, fmsg.With("locate home directory"))
	}
	return filepath.Join(home, ".config", "chordclock"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from the default path, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path. Missing fields keep their defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fault.Wrap(err, fmsg.With("read config"))
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fault.Wrap(err,
			fmsg.WithDesc("parse config", fmt.Sprintf("%s is not valid JSON", path)),
			ftag.With(ftag.InvalidArgument))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fault.Wrap(err, fmsg.With(fmt.Sprintf("invalid config %s", path)))
	}
	return cfg, nil
}

// Path is where Save writes
func (c *Config) Path() string {
	return c.path
}

// Save writes the config to disk
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fault.Wrap(err, fmsg.With("create config directory"))
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fault.Wrap(err, fmsg.With("encode config"))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fault.Wrap(err, fmsg.With("write config"))
	}
	c.path = path
	return nil
}

// Validate checks every section
func (c *Config) Validate() error {
	switch {
	case c.Output.Channel > 15:
		return invalid("output channel must be 0-15, got %d", c.Output.Channel)
	case c.Output.Velocity == 0 || c.Output.Velocity > 127:
		return invalid("output velocity must be 1-127, got %d", c.Output.Velocity)
	case c.Clock.IntervalMS <= 0:
		return invalid("clock interval must be positive, got %dms", c.Clock.IntervalMS)
	case c.Clock.LookaheadMS <= c.Clock.IntervalMS:
		return invalid("clock lookahead (%dms) must exceed the interval (%dms)", c.Clock.LookaheadMS, c.Clock.IntervalMS)
	}
	if err := c.Gates.Validate(); err != nil {
		return err
	}
	if c.UI.LastRoot != "" {
		if _, err := theory.ParseRoot(c.UI.LastRoot); err != nil {
			return err
		}
	}
	if c.UI.LastScale != "" {
		if _, err := theory.ScaleByName(c.UI.LastScale); err != nil {
			return err
		}
	}
	if c.UI.LastPattern != "" {
		if _, err := sequencer.ParsePattern(c.UI.LastPattern); err != nil {
			return err
		}
	}
	return nil
}

// PortFilter builds the device filter from the output section
func (c *Config) PortFilter() midi.PortFilter {
	return midi.PortFilter{Exclude: c.Output.Exclude, Outputs: c.Output.Ports}
}

func invalid(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fault.New(msg, fmsg.WithDesc("invalid config", msg), ftag.With(ftag.InvalidArgument))
}
