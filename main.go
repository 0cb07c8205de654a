package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	arg "github.com/alexflint/go-arg"
	tea "github.com/charmbracelet/bubbletea"

	"chordclock/api"
	"chordclock/config"
	"chordclock/debug"
	"chordclock/midi"
	"chordclock/sequencer"
	"chordclock/theme"
	"chordclock/theory"
	"chordclock/tui"
)

type cliArgs struct {
	BPM      float64  `arg:"--bpm" help:"tempo in beats per minute (40-240)"`
	Root     string   `arg:"--root" help:"key root, e.g. C, F#, Bb"`
	Scale    string   `arg:"--scale" help:"scale name, e.g. Major, Dorian"`
	Pattern  string   `arg:"--pattern" help:"BLOCK, PULSE, ARP_UP, ARP_DOWN or RANDOM"`
	Port     []string `arg:"--port,separate" help:"only open outputs whose name contains this (repeatable)"`
	Select   bool     `arg:"--select" help:"pick the output port interactively"`
	Listen   string   `arg:"--listen" help:"serve the HTTP control API on this address"`
	Headless bool     `arg:"--headless" help:"no TUI; play until interrupted"`
	Debug    bool     `arg:"--debug" help:"write a debug log to ~/.config/chordclock/debug.log (stderr when headless)"`
	Config   string   `arg:"--config" help:"config file (default ~/.config/chordclock/config.json)"`
}

func (cliArgs) Description() string {
	return "chordclock - MIDI clock and chord progression sequencer"
}

func main() {
	var args cliArgs
	arg.MustParse(&args)

	if err := run(args); err != nil {
		msg := fmsg.GetIssue(err)
		if msg == "" {
			msg = err.Error()
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
		debug.Error("main", "exit", "err", err)
		os.Exit(1)
	}
}

func run(args cliArgs) error {
	switch {
	case args.Debug && args.Headless:
		debug.EnableWriter(os.Stderr)
		defer debug.Disable()
	case args.Debug:
		if err := debug.Enable(""); err != nil {
			return fault.Wrap(err, fmsg.With("enable debug log"))
		}
		defer debug.Disable()
	}

	cfg, err := loadConfig(args.Config)
	if err != nil {
		return err
	}

	state, tempo, err := initialState(cfg, args)
	if err != nil {
		return err
	}

	palette, err := theme.LoadPalette(cfg.UI.Theme)
	if err != nil {
		return fault.Wrap(err, fmsg.With("load theme"))
	}
	th := theme.New(palette)

	filter := cfg.PortFilter()
	filter.Outputs = append(filter.Outputs, args.Port...)
	if args.Select {
		name, err := midi.SelectOutPort(midi.OutPortNames(filter))
		if err != nil {
			return err
		}
		filter.Outputs = []string{name}
	}

	bridge := midi.NewBridge(midi.WithChannel(cfg.Output.Channel), midi.WithVelocity(cfg.Output.Velocity))
	monitor := midi.NewMonitor()

	manager, err := sequencer.NewManager(sequencer.ManagerConfig{
		Bridge:    bridge,
		Tempo:     tempo,
		Lookahead: cfg.Clock.Lookahead(),
		Interval:  cfg.Clock.Interval(),
		State:     state,
	})
	if err != nil {
		return err
	}
	defer manager.Close()

	store, err := sequencer.DefaultStore()
	if err != nil {
		debug.Warn("main", "presets disabled", "err", err)
		store = nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Create MIDI device manager (handles hot-plug)
	deviceMgr := midi.NewDeviceManager(bridge, monitor, filter)
	go deviceMgr.Run(ctx)

	if args.Listen != "" {
		srv := &http.Server{Addr: args.Listen, Handler: api.NewHandler(manager, monitor)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				debug.Error("api", "server stopped", "err", err)
				fmt.Fprintf(os.Stderr, "api: %v\n", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if args.Headless {
		err = runHeadless(ctx, manager, args.Listen)
	} else {
		m := tui.NewModel(manager, deviceMgr, monitor, store, th)
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err = p.Run(); errors.Is(err, tea.ErrProgramKilled) {
			err = nil
		}
	}
	manager.Stop()

	rememberSettings(cfg, manager)
	return err
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// initialState applies the last-used settings, then any flags on top.
func initialState(cfg *config.Config, args cliArgs) (*sequencer.State, float64, error) {
	root, scale, pattern := cfg.UI.LastRoot, cfg.UI.LastScale, cfg.UI.LastPattern
	if args.Root != "" {
		root = args.Root
	}
	if args.Scale != "" {
		scale = args.Scale
	}
	if args.Pattern != "" {
		pattern = args.Pattern
	}
	tempo := cfg.UI.LastTempo
	if args.BPM != 0 {
		tempo = args.BPM
	}

	s := sequencer.NewState()
	if root != "" {
		r, err := theory.ParseRoot(root)
		if err != nil {
			return nil, 0, err
		}
		s.SetRoot(r)
	}
	if scale != "" {
		sc, err := theory.ScaleByName(scale)
		if err != nil {
			return nil, 0, err
		}
		s.SetScale(sc)
	}
	if pattern != "" {
		p, err := sequencer.ParsePattern(pattern)
		if err != nil {
			return nil, 0, err
		}
		s.SetPattern(p)
	}
	if err := s.SetGates(cfg.Gates); err != nil {
		return nil, 0, err
	}
	if tempo < 0 {
		return nil, 0, fault.New(fmt.Sprintf("invalid tempo %v", tempo),
			fmsg.WithDesc("invalid tempo", "Tempo must be a positive number"))
	}
	return s, tempo, nil
}

func runHeadless(ctx context.Context, manager *sequencer.Manager, listen string) error {
	st := manager.Status()
	fmt.Printf("chordclock  %.0fbpm  %s %s  %s\n", st.Tempo, st.Root, st.Scale, st.Pattern)
	if listen != "" {
		fmt.Printf("API listening on %s\n", listen)
	}
	fmt.Println("Playing. Ctrl+C to stop.")

	manager.Play()
	<-ctx.Done()
	return nil
}

func rememberSettings(cfg *config.Config, manager *sequencer.Manager) {
	st := manager.Status()
	cfg.UI.LastTempo = st.Tempo
	cfg.UI.LastRoot = st.Root
	cfg.UI.LastScale = st.Scale
	cfg.UI.LastPattern = st.Pattern.String()
	if err := cfg.Save(); err != nil {
		debug.Warn("main", "could not save config", "err", err)
	}
}
