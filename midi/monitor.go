package midi

import (
	"sync"
	"time"
)

// MessageType classifies an inbound message by its status nibble
type MessageType string

const (
	TypeNoteOn  MessageType = "noteon"
	TypeNoteOff MessageType = "noteoff"
	TypeCC      MessageType = "cc"
	TypeOther   MessageType = "other"
)

// Record is one decoded inbound message
type Record struct {
	Command   uint8       `json:"command"`
	Note      uint8       `json:"note"`
	Velocity  uint8       `json:"velocity"`
	Channel   uint8       `json:"channel"`
	Timestamp time.Time   `json:"timestamp"`
	Type      MessageType `json:"type"`
	Port      string      `json:"port,omitempty"`
}

// Decode turns raw bytes into a Record. Clock bytes and empty buffers are
// rejected so they never reach the log.
func Decode(data []byte, ts time.Time) (Record, bool) {
	if len(data) == 0 || data[0] == Clock {
		return Record{}, false
	}
	r := Record{
		Command:   data[0],
		Channel:   data[0] & 0x0F,
		Timestamp: ts,
	}
	if len(data) > 1 {
		r.Note = data[1]
	}
	if len(data) > 2 {
		r.Velocity = data[2]
	}
	switch data[0] & 0xF0 {
	case NoteOn:
		r.Type = TypeNoteOn
	case NoteOff:
		r.Type = TypeNoteOff
	case CC:
		r.Type = TypeCC
	default:
		r.Type = TypeOther
	}
	return r, true
}

// MonitorSize is how many records the monitor keeps
const MonitorSize = 20

// Monitor keeps the newest inbound records for display
type Monitor struct {
	mu      sync.RWMutex
	records []Record // newest first
	now     func() time.Time
	updates chan struct{}
}

func NewMonitor() *Monitor {
	return &Monitor{
		now:     time.Now,
		updates: make(chan struct{}, 1),
	}
}

// Record decodes data from port and stores it. Returns false when the
// message was filtered.
func (m *Monitor) Record(port string, data []byte) bool {
	rec, ok := Decode(data, m.now())
	if !ok {
		return false
	}
	rec.Port = port

	m.mu.Lock()
	m.records = append([]Record{rec}, m.records...)
	if len(m.records) > MonitorSize {
		m.records = m.records[:MonitorSize]
	}
	m.mu.Unlock()

	select {
	case m.updates <- struct{}{}:
	default:
	}
	return true
}

// Records returns a copy of the log, newest first
func (m *Monitor) Records() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// Last returns the newest record
func (m *Monitor) Last() (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.records) == 0 {
		return Record{}, false
	}
	return m.records[0], true
}

// Updates signals (coalesced) whenever a record is stored
func (m *Monitor) Updates() <-chan struct{} {
	return m.updates
}
