package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"chordclock/debug"
)

// DeviceEvent is emitted when ports appear or vanish
type DeviceEvent struct {
	Type DeviceEventType
	Dir  PortDir
	Name string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

func (t DeviceEventType) String() string {
	if t == DeviceDisconnected {
		return "disconnected"
	}
	return "connected"
}

type PortDir int

const (
	PortIn PortDir = iota
	PortOut
)

func (d PortDir) String() string {
	if d == PortOut {
		return "out"
	}
	return "in"
}

const defaultListTimeout = 3 * time.Second

// DefaultExclude skips loopback ports that would echo our own clock back.
var DefaultExclude = []string{"Midi Through", "Through Port"}

// PortFilter decides which ports the DeviceManager opens. Matching is a
// case-insensitive substring test.
type PortFilter struct {
	Exclude []string
	Outputs []string // allow-list for outputs, empty means all
}

func (f PortFilter) AllowIn(name string) bool {
	return !containsAny(name, f.Exclude)
}

func (f PortFilter) AllowOut(name string) bool {
	if containsAny(name, f.Exclude) {
		return false
	}
	return len(f.Outputs) == 0 || containsAny(name, f.Outputs)
}

func containsAny(name string, subs []string) bool {
	lower := strings.ToLower(name)
	for _, s := range subs {
		if s != "" && strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

type openOut struct {
	port drivers.Out
}

type openIn struct {
	port drivers.In
	stop func()
}

// DeviceManager handles hot-plug detection: outputs are registered with the
// Bridge, inputs feed the Monitor.
type DeviceManager struct {
	bridge  *Bridge
	monitor *Monitor
	filter  PortFilter

	mu       sync.RWMutex
	outs     map[string]openOut
	ins      map[string]openIn
	events   chan DeviceEvent
	pollRate time.Duration
	timeout  time.Duration
}

// NewDeviceManager creates a device manager. monitor may be nil.
func NewDeviceManager(bridge *Bridge, monitor *Monitor, filter PortFilter) *DeviceManager {
	return &DeviceManager{
		bridge:   bridge,
		monitor:  monitor,
		filter:   filter,
		outs:     make(map[string]openOut),
		ins:      make(map[string]openIn),
		events:   make(chan DeviceEvent, 16),
		pollRate: time.Second,
		timeout:  defaultListTimeout,
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Ports returns the names of the ports currently open
func (dm *DeviceManager) Ports() (ins, outs []string) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	for name := range dm.ins {
		ins = append(ins, name)
	}
	for name := range dm.outs {
		outs = append(outs, name)
	}
	return ins, outs
}

// Scan runs a single poll. Run calls it on every tick.
func (dm *DeviceManager) Scan() {
	dm.scan()
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

// ListPorts enumerates ports with a hang guard (CoreMIDI can block forever).
func ListPorts(timeout time.Duration) ([]drivers.In, []drivers.Out, bool) {
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{inPorts: gomidi.GetInPorts(), outPorts: gomidi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		return r.inPorts, r.outPorts, true
	case <-time.After(timeout):
		return nil, nil, false
	}
}

func (dm *DeviceManager) scan() {
	inPorts, outPorts, ok := ListPorts(dm.timeout)
	if !ok {
		// User needs to run: sudo killall coreaudiod midiserver
		debug.Warn("devices", "port enumeration timed out", "timeout", dm.timeout)
		return
	}

	seenOut := make(map[string]bool)
	for _, out := range outPorts {
		name := out.String()
		if !dm.filter.AllowOut(name) {
			continue
		}
		seenOut[name] = true

		dm.mu.RLock()
		_, exists := dm.outs[name]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		send, err := gomidi.SendTo(out)
		if err != nil {
			debug.Warn("devices", "open output failed", "port", name, "err", err)
			continue
		}
		dm.mu.Lock()
		dm.outs[name] = openOut{port: out}
		dm.mu.Unlock()
		dm.bridge.AddOutput(name, send)
		dm.emit(DeviceEvent{Type: DeviceConnected, Dir: PortOut, Name: name})
	}

	seenIn := make(map[string]bool)
	if dm.monitor != nil {
		for _, in := range inPorts {
			name := in.String()
			if !dm.filter.AllowIn(name) {
				continue
			}
			seenIn[name] = true

			dm.mu.RLock()
			_, exists := dm.ins[name]
			dm.mu.RUnlock()
			if exists {
				continue
			}

			stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
				dm.monitor.Record(name, []byte(msg))
			}, gomidi.HandleError(func(err error) {
				debug.LogEvery(50, "devices", "listen %s: %v", name, err)
			}))
			if err != nil {
				debug.Warn("devices", "open input failed", "port", name, "err", err)
				continue
			}
			dm.mu.Lock()
			dm.ins[name] = openIn{port: in, stop: stop}
			dm.mu.Unlock()
			dm.emit(DeviceEvent{Type: DeviceConnected, Dir: PortIn, Name: name})
		}
	}

	// Check for disconnects
	var gone []DeviceEvent
	dm.mu.Lock()
	for name, o := range dm.outs {
		if !seenOut[name] {
			o.port.Close()
			delete(dm.outs, name)
			gone = append(gone, DeviceEvent{Type: DeviceDisconnected, Dir: PortOut, Name: name})
		}
	}
	for name, i := range dm.ins {
		if !seenIn[name] {
			i.stop()
			delete(dm.ins, name)
			gone = append(gone, DeviceEvent{Type: DeviceDisconnected, Dir: PortIn, Name: name})
		}
	}
	dm.mu.Unlock()

	for _, ev := range gone {
		if ev.Dir == PortOut {
			dm.bridge.RemoveOutput(ev.Name)
		}
		dm.emit(ev)
	}
}

func (dm *DeviceManager) emit(ev DeviceEvent) {
	debug.Log("devices", "%s %s: %s", ev.Dir, ev.Type, ev.Name)
	select {
	case dm.events <- ev:
	default:
	}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for name, o := range dm.outs {
		dm.bridge.RemoveOutput(name)
		o.port.Close()
	}
	for _, i := range dm.ins {
		i.stop()
	}
	dm.outs = make(map[string]openOut)
	dm.ins = make(map[string]openIn)
}
