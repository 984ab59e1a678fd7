package transport

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Packet is a single write recorded by the Sim transport.
type Packet struct {
	Handle string
	Data   []byte
	Time   time.Time
}

// Sim is an in-memory Transport. It records every packet and can
// notify an observer, which is how the terminal monitor and the tests
// see what would have gone over the air.
type Sim struct {
	mu        sync.Mutex
	connected map[string]bool
	packets   []Packet
	keep      int // 0 keeps every packet
	observer  func(Packet)
}

// NewSim creates a Sim with the given handles already connected.
func NewSim(handles ...string) *Sim {
	inst := &Sim{connected: make(map[string]bool)}
	for _, h := range handles {
		inst.connected[h] = true
	}
	return inst
}

// Connect marks handle as connected.
func (s *Sim) Connect(handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected[handle] = true
}

// Disconnect marks handle as disconnected. Subsequent writes fail.
func (s *Sim) Disconnect(handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected[handle] = false
}

func (s *Sim) IsConnected(handle string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected[handle]
}

// SetObserver registers fn to be called after every successful write.
// fn is called outside the transport's lock.
func (s *Sim) SetObserver(fn func(Packet)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

// Keep limits the recording to the n most recent packets, 0 keeps all.
func (s *Sim) Keep(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keep = n
}

func (s *Sim) Write(handle string, packet []byte) error {
	s.mu.Lock()
	if !s.connected[handle] {
		s.mu.Unlock()
		return fmt.Errorf("sim write to %s: %w", handle, ErrTransportUnavailable)
	}
	data := make([]byte, len(packet))
	copy(data, packet)
	p := Packet{Handle: handle, Data: data, Time: time.Now()}
	s.packets = append(s.packets, p)
	if s.keep > 0 && len(s.packets) > s.keep {
		s.packets = append(s.packets[:0], s.packets[len(s.packets)-s.keep:]...)
	}
	observer := s.observer
	s.mu.Unlock()

	slog.Debug("Sim: packet", "fixture", handle, "data", data)
	if observer != nil {
		observer(p)
	}
	return nil
}

// Packets returns a copy of all recorded packets in write order.
func (s *Sim) Packets() []Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]Packet, len(s.packets))
	copy(ret, s.packets)
	return ret
}

// PacketsFor returns the payloads written to handle in write order.
func (s *Sim) PacketsFor(handle string) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ret [][]byte
	for _, p := range s.packets {
		if p.Handle == handle {
			ret = append(ret, p.Data)
		}
	}
	return ret
}

// Reset forgets all recorded packets.
func (s *Sim) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packets = nil
}
