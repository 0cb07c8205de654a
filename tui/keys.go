package tui

import "github.com/charmbracelet/bubbles/key"

func binding(help string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
}

type keyMap struct {
	Play      key.Binding
	TempoUp   key.Binding
	TempoDown key.Binding
	TempoJump key.Binding
	TempoDrop key.Binding

	Up         key.Binding
	Down       key.Binding
	DegreeDown key.Binding
	DegreeUp   key.Binding
	Shorter    key.Binding
	Longer     key.Binding
	Mute       key.Binding
	Add        key.Binding
	Delete     key.Binding

	Pattern  key.Binding
	Root     key.Binding
	Scale    key.Binding
	Enable   key.Binding
	Generate key.Binding

	Save   key.Binding
	Load   key.Binding
	Export key.Binding

	Help key.Binding
	Quit key.Binding
}

func defaultKeys() keyMap {
	k := keyMap{
		Play:      binding("play/stop", " ", "space", "p"),
		TempoUp:   binding("tempo +1", "+", "="),
		TempoDown: binding("tempo -1", "-", "_"),
		TempoJump: binding("tempo +10", ">", "."),
		TempoDrop: binding("tempo -10", "<", ","),

		Up:         binding("prev step", "k", "up"),
		Down:       binding("next step", "j", "down"),
		DegreeDown: binding("degree -", "h", "left"),
		DegreeUp:   binding("degree +", "l", "right"),
		Shorter:    binding("shorter", "["),
		Longer:     binding("longer", "]"),
		Mute:       binding("mute step", "x"),
		Add:        binding("add step", "a"),
		Delete:     binding("delete step", "d"),

		Pattern:  binding("pattern", "t"),
		Root:     binding("root", "r"),
		Scale:    binding("scale", "s"),
		Enable:   binding("sequencer on/off", "e"),
		Generate: binding("generate", "g"),

		Save:   binding("save preset", "w"),
		Load:   binding("load latest", "o"),
		Export: binding("export .mid", "m"),

		Help: binding("more keys", "?"),
		Quit: binding("quit", "q", "ctrl+c"),
	}
	k.Play.SetHelp("space", "play/stop")
	return k
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.TempoUp, k.TempoDown, k.Up, k.Down, k.Generate, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Play, k.TempoUp, k.TempoDown, k.TempoJump, k.TempoDrop},
		{k.Up, k.Down, k.DegreeDown, k.DegreeUp, k.Shorter, k.Longer},
		{k.Mute, k.Add, k.Delete, k.Generate},
		{k.Pattern, k.Root, k.Scale, k.Enable},
		{k.Save, k.Load, k.Export, k.Help, k.Quit},
	}
}
