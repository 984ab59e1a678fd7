package transport

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
)

const (
	artNetPort     = 6454
	artNetOpOutput = 0x5000
	// SlotWidth is the number of DMX slots reserved per fixture.
	SlotWidth = 10
)

// ArtNet maps every fixture onto a block of SlotWidth channels of one
// Art-Net universe and sends an ArtDMX frame per packet. This lets a
// show be run against wired DMX gear through any Art-Net node.
type ArtNet struct {
	mu       sync.Mutex
	conn     net.Conn
	universe uint16
	slots    map[string]int
	frame    [512]byte
	length   int
	sequence byte
}

// DialArtNet opens a UDP socket to target ("host" or "host:port") and
// assigns each handle its slot block in the given order.
func DialArtNet(target string, universe uint16, handles []string) (*ArtNet, error) {
	if len(handles)*SlotWidth > 512 {
		return nil, fmt.Errorf("too many fixtures for one universe: %d", len(handles))
	}
	if _, _, err := net.SplitHostPort(target); err != nil {
		target = net.JoinHostPort(target, fmt.Sprint(artNetPort))
	}
	conn, err := net.Dial("udp", target)
	if err != nil {
		return nil, fmt.Errorf("failed to open art-net socket: %w", err)
	}
	inst := &ArtNet{
		conn:     conn,
		universe: universe,
		slots:    make(map[string]int, len(handles)),
	}
	for i, h := range handles {
		inst.slots[h] = i
	}
	// ArtDMX requires an even length between 2 and 512
	inst.length = len(handles) * SlotWidth
	if inst.length < 2 {
		inst.length = 2
	}
	slog.Info("ArtNet: opened", "target", target, "universe", universe, "fixtures", len(handles))
	return inst, nil
}

func (a *ArtNet) IsConnected(handle string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, known := a.slots[handle]
	return a.conn != nil && known
}

func (a *ArtNet) Write(handle string, packet []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	slot, known := a.slots[handle]
	if a.conn == nil || !known {
		return fmt.Errorf("art-net write to %s: %w", handle, ErrTransportUnavailable)
	}
	if len(packet) > SlotWidth {
		return fmt.Errorf("art-net packet for %s too long: %d bytes", handle, len(packet))
	}
	copy(a.frame[slot*SlotWidth:], packet)
	a.sequence++
	if a.sequence == 0 {
		// 0 disables sequencing on the receiver
		a.sequence = 1
	}
	if _, err := a.conn.Write(a.artDMX()); err != nil {
		return fmt.Errorf("art-net write to %s: %w", handle, err)
	}
	return nil
}

// artDMX builds an ArtDMX datagram from the current frame. Must be
// called with a.mu held.
func (a *ArtNet) artDMX() []byte {
	pkt := make([]byte, 18+a.length)
	copy(pkt[0:], "Art-Net\x00")
	pkt[8] = byte(artNetOpOutput & 0xff) // OpCode, little endian
	pkt[9] = byte(artNetOpOutput >> 8)
	pkt[10], pkt[11] = 0x00, 14 // ProtVerHi, ProtVerLo
	pkt[12] = a.sequence
	pkt[13] = 0x00 // Physical
	pkt[14] = byte(a.universe & 0xff)
	pkt[15] = byte(a.universe>>8) & 0x7f
	pkt[16] = byte(a.length >> 8)
	pkt[17] = byte(a.length & 0xff)
	copy(pkt[18:], a.frame[:a.length])
	return pkt
}

// Close closes the socket. Further writes fail with ErrTransportUnavailable.
func (a *ArtNet) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	return err
}
