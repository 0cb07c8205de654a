package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"chordclock/clock"
	chmidi "chordclock/midi"
)

const listTimeout = 3 * time.Second

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "poll":
		pollDevices()
	case "monitor":
		monitorInputs()
	case "clock":
		sendClock(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                 - List all MIDI ports")
	fmt.Println("  poll                 - Poll for device changes")
	fmt.Println("  monitor              - Print decoded messages from every input")
	fmt.Println("  clock <bpm> <secs>   - Send start/clock/stop to the first output")
}

func ports() ([]drivers.In, []drivers.Out, bool) {
	ins, outs, ok := chmidi.ListPorts(listTimeout)
	if !ok {
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}
	return ins, outs, ok
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	ins, outs, ok := ports()
	if !ok {
		return
	}
	for i, p := range ins {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, p := range outs {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
}

func pollDevices() {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect a device to test. Ctrl+C to exit.")

	lastIn := ""
	lastOut := ""

	for {
		ins, outs, ok := ports()
		if !ok {
			return
		}

		var inNames, outNames []string
		for _, p := range ins {
			inNames = append(inNames, p.String())
		}
		for _, p := range outs {
			outNames = append(outNames, p.String())
		}

		currentIn := strings.Join(inNames, ",")
		currentOut := strings.Join(outNames, ",")

		if currentIn != lastIn || currentOut != lastOut {
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", inNames)
			fmt.Printf("  Outputs: %v\n", outNames)
			lastIn = currentIn
			lastOut = currentOut
		}

		time.Sleep(2 * time.Second)
	}
}

func monitorInputs() {
	ins, _, ok := ports()
	if !ok {
		return
	}
	if len(ins) == 0 {
		fmt.Println("No input ports")
		return
	}

	filter := chmidi.PortFilter{Exclude: chmidi.DefaultExclude}
	for _, in := range ins {
		name := in.String()
		if !filter.AllowIn(name) {
			continue
		}
		stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
			rec, ok := chmidi.Decode([]byte(msg), time.Now())
			if !ok {
				return
			}
			fmt.Printf("[%s] %-16s %-7s cmd=0x%02X note=%-3d vel=%-3d ch=%d\n",
				rec.Timestamp.Format("15:04:05.000"), name, rec.Type, rec.Command, rec.Note, rec.Velocity, rec.Channel+1)
		})
		if err != nil {
			fmt.Printf("Error opening %s: %v\n", name, err)
			continue
		}
		defer stop()
		fmt.Printf("Listening on %s\n", name)
	}

	fmt.Println("Ctrl+C to exit.")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
}

func sendClock(args []string) {
	if len(args) < 2 {
		usage()
		return
	}
	bpm, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Printf("Bad bpm %q: %v\n", args[0], err)
		return
	}
	secs, err := strconv.ParseFloat(args[1], 64)
	if err != nil || secs <= 0 {
		fmt.Printf("Bad duration %q\n", args[1])
		return
	}

	_, outs, ok := ports()
	if !ok {
		return
	}
	filter := chmidi.PortFilter{Exclude: chmidi.DefaultExclude}
	var outPort drivers.Out
	for _, p := range outs {
		if filter.AllowOut(p.String()) {
			outPort = p
			break
		}
	}
	if outPort == nil {
		fmt.Println("No output port found")
		return
	}

	send, err := midi.SendTo(outPort)
	if err != nil {
		fmt.Printf("Error opening port: %v\n", err)
		return
	}
	bridge := chmidi.NewBridge()
	bridge.AddOutput(outPort.String(), send)

	sched, err := clock.New(clock.NewSystemClock(), clock.Callbacks{
		OnStart: bridge.Start,
		OnTick:  func(int64) { bridge.Clock() },
		OnStop:  bridge.Stop,
	}, clock.WithTempo(bpm))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Sending clock at %.1f bpm to %s for %.1fs (pulse every %v)\n",
		bpm, outPort.String(), secs, clock.PulseInterval(bpm))
	sched.Start()
	time.Sleep(time.Duration(secs * float64(time.Second)))
	sched.Stop()

	st := bridge.Stats()
	fmt.Printf("Done: %d clocks, %d start, %d stop, %d errors\n", st.Clocks, st.Starts, st.Stops, st.Errors)
}
