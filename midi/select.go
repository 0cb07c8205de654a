package midi

import (
	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/manifoldco/promptui"
)

var ErrNoOutputs = fault.New("no output MIDI devices found", ftag.With(ftag.NotFound))

// OutPortNames lists output ports that pass the filter.
func OutPortNames(filter PortFilter) []string {
	_, outs, ok := ListPorts(defaultListTimeout)
	if !ok {
		return nil
	}
	var names []string
	for _, o := range outs {
		if filter.AllowOut(o.String()) {
			names = append(names, o.String())
		}
	}
	return names
}

// SelectOutPort asks the user to pick one of names. With a single
// candidate no prompt is shown.
func SelectOutPort(names []string) (string, error) {
	if len(names) == 0 {
		return "", ErrNoOutputs
	}
	if len(names) == 1 {
		return names[0], nil
	}
	prompt := promptui.Select{
		Label: "Output Device",
		Items: names,
	}
	_, name, err := prompt.Run()
	if err != nil {
		return "", fault.Wrap(err, fmsg.With("select output"))
	}
	return name, nil
}
