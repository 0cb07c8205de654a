package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chordclock/debug"
	"chordclock/midi"
	"chordclock/sequencer"
	"chordclock/theme"
	"chordclock/theory"
	"chordclock/widgets"
)

const (
	monitorRows = 8
	exportLoops = 4
)

type Model struct {
	Manager   *sequencer.Manager
	DeviceMgr *midi.DeviceManager // nil when no hardware scan runs
	Monitor   *midi.Monitor
	Store     *sequencer.Store
	Theme     *theme.Theme

	// ExportDir receives .mid files written by the export key
	ExportDir string

	keys     keyMap
	help     help.Model
	cursor   int
	genre    int
	flash    string
	flashErr bool
	quitting bool
}

type UpdateMsg struct{}

type DeviceEventMsg midi.DeviceEvent

type MonitorMsg struct{}

func NewModel(manager *sequencer.Manager, deviceMgr *midi.DeviceManager, monitor *midi.Monitor, store *sequencer.Store, th *theme.Theme) Model {
	if th == nil {
		th = theme.New(nil)
	}
	h := help.New()
	h.Styles.ShortKey = lipgloss.NewStyle().Foreground(th.Accent())
	h.Styles.ShortDesc = lipgloss.NewStyle().Foreground(th.Muted())
	h.Styles.FullKey = h.Styles.ShortKey
	h.Styles.FullDesc = h.Styles.ShortDesc
	return Model{
		Manager:   manager,
		DeviceMgr: deviceMgr,
		Monitor:   monitor,
		Store:     store,
		Theme:     th,
		ExportDir: ".",
		keys:      defaultKeys(),
		help:      h,
	}
}

func ListenForUpdates(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		<-manager.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	if deviceMgr == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func ListenForMonitor(monitor *midi.Monitor) tea.Cmd {
	if monitor == nil {
		return nil
	}
	return func() tea.Msg {
		<-monitor.Updates()
		return MonitorMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForUpdates(m.Manager),
		ListenForDevices(m.DeviceMgr),
		ListenForMonitor(m.Monitor),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case UpdateMsg:
		return m, ListenForUpdates(m.Manager)

	case MonitorMsg:
		return m, ListenForMonitor(m.Monitor)

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		m.setFlash(fmt.Sprintf("%s %s %s", event.Dir, event.Name, event.Type), false)
		return m, ListenForDevices(m.DeviceMgr)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		m.quitting = true
		m.Manager.Stop()
		return m, tea.Quit

	case key.Matches(msg, k.Play):
		m.Manager.Toggle()

	case key.Matches(msg, k.TempoUp):
		m.check(m.Manager.SetTempo(m.Manager.Tempo() + 1))
	case key.Matches(msg, k.TempoDown):
		m.check(m.Manager.SetTempo(m.Manager.Tempo() - 1))
	case key.Matches(msg, k.TempoJump):
		m.check(m.Manager.SetTempo(m.Manager.Tempo() + 10))
	case key.Matches(msg, k.TempoDrop):
		m.check(m.Manager.SetTempo(m.Manager.Tempo() - 10))

	case key.Matches(msg, k.Up):
		m.moveCursor(-1)
	case key.Matches(msg, k.Down):
		m.moveCursor(1)
	case key.Matches(msg, k.DegreeDown):
		m.editStep(func(s *sequencer.ChordStep) { s.Degree-- })
	case key.Matches(msg, k.DegreeUp):
		m.editStep(func(s *sequencer.ChordStep) { s.Degree++ })
	case key.Matches(msg, k.Shorter):
		m.editStep(func(s *sequencer.ChordStep) { s.Duration-- })
	case key.Matches(msg, k.Longer):
		m.editStep(func(s *sequencer.ChordStep) { s.Duration++ })
	case key.Matches(msg, k.Mute):
		m.editStep(func(s *sequencer.ChordStep) { s.Active = !s.Active })

	case key.Matches(msg, k.Add):
		step := sequencer.ChordStep{Degree: 0, Duration: 4, Active: true}
		if cur, ok := m.selected(); ok {
			step.Degree = cur.Degree
		}
		m.Manager.InsertStep(m.cursor+1, step)
		m.moveCursor(1)

	case key.Matches(msg, k.Delete):
		if cur, ok := m.selected(); ok {
			m.check(m.Manager.RemoveStep(cur.ID))
			m.moveCursor(0)
		}

	case key.Matches(msg, k.Pattern):
		m.check(m.Manager.SetPattern(m.Manager.State().Pattern().Next()))

	case key.Matches(msg, k.Root):
		m.check(m.Manager.SetRoot((m.Manager.State().Root() + 1) % 12))

	case key.Matches(msg, k.Scale):
		m.check(m.Manager.SetScale(nextScale(m.Manager.State().Scale())))

	case key.Matches(msg, k.Enable):
		m.Manager.SetEnabled(!m.Manager.State().Enabled())

	case key.Matches(msg, k.Generate):
		m.generate()

	case key.Matches(msg, k.Save):
		m.savePreset()
	case key.Matches(msg, k.Load):
		m.loadPreset()
	case key.Matches(msg, k.Export):
		m.export()

	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m *Model) selected() (sequencer.ChordStep, bool) {
	steps := m.Manager.Steps()
	if m.cursor < 0 || m.cursor >= len(steps) {
		return sequencer.ChordStep{}, false
	}
	return steps[m.cursor], true
}

// moveCursor shifts the selection by delta and keeps it inside the list.
func (m *Model) moveCursor(delta int) {
	n := len(m.Manager.Steps())
	m.cursor += delta
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) editStep(fn func(*sequencer.ChordStep)) {
	cur, ok := m.selected()
	if !ok {
		return
	}
	_, err := m.Manager.UpdateStep(cur.ID, fn)
	m.check(err)
}

func (m *Model) generate() {
	genres := sequencer.Genres()
	genre := genres[m.genre%len(genres)]
	m.genre = (m.genre + 1) % len(genres)

	steps, err := m.Manager.Generate(context.Background(), genre)
	if m.check(err) {
		m.cursor = 0
		m.setFlash(fmt.Sprintf("generated %s (%d chords)", genre, len(steps)), false)
	}
}

func (m *Model) savePreset() {
	if m.Store == nil {
		m.setFlash("no preset directory", true)
		return
	}
	name, err := m.Store.Save(m.Manager.Snapshot(""))
	if m.check(err) {
		m.setFlash("saved "+name, false)
	}
}

func (m *Model) loadPreset() {
	if m.Store == nil {
		m.setFlash("no preset directory", true)
		return
	}
	p, err := m.Store.Latest()
	if !m.check(err) {
		return
	}
	if m.check(m.Manager.ApplyPreset(p)) {
		m.moveCursor(0)
		m.setFlash("loaded "+p.Timestamp.Format(time.DateTime), false)
	}
}

func (m *Model) export() {
	path := filepath.Join(m.ExportDir, "chordclock-"+time.Now().Format("2006-01-02_15-04-05")+".mid")
	if m.check(sequencer.WriteSMFFile(path, m.Manager.Snapshot("export"), exportLoops)) {
		m.setFlash("exported "+path, false)
	}
}

// check surfaces err in the status line. It reports whether err was nil.
func (m *Model) check(err error) bool {
	if err == nil {
		return true
	}
	debug.Warn("tui", "action failed", "err", err)
	m.setFlash(err.Error(), true)
	return false
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = text
	m.flashErr = isErr
}

func nextScale(cur theory.Scale) theory.Scale {
	for i, s := range theory.Scales {
		if s.Name == cur.Name {
			return theory.Scales[(i+1)%len(theory.Scales)]
		}
	}
	return theory.Scales[0]
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	st := m.Manager.Status()
	scale := m.Manager.State().Scale()
	root := m.Manager.State().Root()
	th := m.Theme

	headerStyle := lipgloss.NewStyle().Foreground(th.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	activeStyle := lipgloss.NewStyle().Foreground(th.Active())
	titleStyle := lipgloss.NewStyle().Foreground(th.FG()).Bold(true)

	// Header
	playState := "STOP"
	if st.Playing {
		playState = "PLAY"
	}
	seqState := ""
	if !st.Enabled {
		seqState = "  " + lipgloss.NewStyle().Foreground(th.Warning()).Render("SEQ OFF")
	}
	header := headerStyle.Render(fmt.Sprintf("chordclock  %s  %3.0fbpm", playState, st.Tempo)) +
		"  " + widgets.BeatDots(st.Beat, 4, th.Symbols.BeatOn, th.Symbols.BeatOff, activeStyle, dimStyle) +
		"  " + widgets.Chip(st.Pattern.String(), th.BG(), th.Accent()) +
		"  " + fmt.Sprintf("%s %s", st.Root, st.Scale) +
		dimStyle.Render(fmt.Sprintf("  %d out", len(st.Outputs))) +
		seqState

	keyLine := dimStyle.Render(strings.Join(theory.ScaleNoteNames(root, scale), " "))

	// Progression
	var prog strings.Builder
	prog.WriteString(titleStyle.Render("Progression"))
	prog.WriteString(dimStyle.Render(fmt.Sprintf("  %d beats", sequencer.TotalBeats(st.Steps))))
	prog.WriteString("\n")
	if len(st.Steps) == 0 {
		prog.WriteString(dimStyle.Render("  (empty, press a to add a chord)"))
		prog.WriteString("\n")
	}
	for i, s := range st.Steps {
		prog.WriteString(m.stepLine(i, s, st.Step, root, scale))
		prog.WriteString("\n")
	}

	// Inbound monitor
	var mon strings.Builder
	mon.WriteString(titleStyle.Render("Inbound"))
	mon.WriteString("\n")
	var records []midi.Record
	if m.Monitor != nil {
		records = m.Monitor.Records()
	}
	if len(records) == 0 {
		mon.WriteString(dimStyle.Render("  nothing yet"))
		mon.WriteString("\n")
	}
	for i, r := range records {
		if i == monitorRows {
			break
		}
		mon.WriteString(m.recordLine(r, root, scale))
		mon.WriteString("\n")
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n")
	out.WriteString(keyLine)
	out.WriteString("\n\n")
	out.WriteString(prog.String())
	out.WriteString("\n")
	out.WriteString(mon.String())

	if m.flash != "" {
		style := dimStyle
		if m.flashErr {
			style = lipgloss.NewStyle().Foreground(th.Warning())
		}
		out.WriteString("\n")
		out.WriteString(style.Render(m.flash))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(m.help.View(m.keys))

	return out.String()
}

func (m Model) stepLine(i int, s sequencer.ChordStep, playing, root int, scale theory.Scale) string {
	th := m.Theme
	sym := th.Symbols

	cursor := " "
	if i == m.cursor {
		cursor = lipgloss.NewStyle().Foreground(th.Cursor()).Render(string(sym.Cursor))
	}
	head := " "
	if i == playing {
		head = lipgloss.NewStyle().Foreground(th.Active()).Render(string(sym.Playhead))
	}

	notes := theory.ChordNotes(root, scale, s.Degree)
	names := make([]string, len(notes))
	for j, n := range notes {
		names[j] = theory.PitchName(n)
	}

	color := th.Degree(s.Degree)
	mark := " "
	if !s.Active {
		color = th.Muted()
		mark = string(sym.Inactive)
	}
	style := lipgloss.NewStyle().Foreground(color)
	bar := widgets.DurationBar(s.Duration, sequencer.MaxDuration, sym.BarFull, sym.BarEmpty, style)

	return fmt.Sprintf("%s%s %s %-4s %-12s %s %d%s", cursor, head, mark,
		style.Render(theory.RomanNumeral(s.Degree)), strings.Join(names, " "), bar, s.Duration,
		lipgloss.NewStyle().Foreground(th.Muted()).Render(" "+s.ID))
}

func (m Model) recordLine(r midi.Record, root int, scale theory.Scale) string {
	th := m.Theme
	dim := lipgloss.NewStyle().Foreground(th.Muted())
	switch r.Type {
	case midi.TypeNoteOn, midi.TypeNoteOff:
		mark := lipgloss.NewStyle().Foreground(th.Success()).Render(string(th.Symbols.InScale))
		if !theory.InScale(r.Note, root, scale) {
			mark = lipgloss.NewStyle().Foreground(th.Warning()).Render(string(th.Symbols.OutOfScale))
		}
		return fmt.Sprintf("  %s %-7s %-4s v%-3d ch%-2d %s", mark, r.Type, theory.PitchName(r.Note), r.Velocity, r.Channel+1, dim.Render(r.Port))
	case midi.TypeCC:
		return fmt.Sprintf("    %-7s #%-3d =%-3d ch%-2d %s", r.Type, r.Note, r.Velocity, r.Channel+1, dim.Render(r.Port))
	default:
		return dim.Render(fmt.Sprintf("    %-7s 0x%02X %s", r.Type, r.Command, r.Port))
	}
}
