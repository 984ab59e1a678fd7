// Package fixture holds the channel state of the connected fixtures
// and the scheduler that coalesces channel updates into packets.
package fixture

import (
	"errors"
	"fmt"
	"sync"
)

const (
	// ChannelCount is the number of DMX channels a fixture exposes.
	ChannelCount = 10
	// HalfWidth is the number of channels of one logical device.
	HalfWidth = 5
)

var (
	ErrInvalidChannelIndex = errors.New("invalid channel index")
	ErrInvalidChannelValue = errors.New("invalid channel value")
	ErrUnknownFixture      = errors.New("unknown fixture")
	ErrSchedulerClosed     = errors.New("scheduler closed")
)

// Fixture is the channel vector of one physical device together with
// the bookkeeping of what has not been transmitted yet. All access is
// guarded by mu; the owning scheduler is the only writer.
type Fixture struct {
	mu             sync.Mutex
	address        string
	channels       [ChannelCount]byte
	highestChanged int
	dirty          bool
	// bumped on every change, lets a transmit tell whether the state it
	// sent is still the latest one
	generation uint64
}

func newFixture(address string) *Fixture {
	return &Fixture{
		address:        address,
		highestChanged: -1,
	}
}

// Address returns the transport handle of the fixture.
func (f *Fixture) Address() string {
	return f.address
}

func checkIndex(index int) error {
	if index < 0 || index >= ChannelCount {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidChannelIndex, index, ChannelCount)
	}
	return nil
}

func checkValue(value int) error {
	if value < 0 || value > 255 {
		return fmt.Errorf("%w: %d not in [0,255]", ErrInvalidChannelValue, value)
	}
	return nil
}

// set stores value at index. It reports whether the channel actually
// changed; setting a channel to its current value is a no-op.
func (f *Fixture) set(index, value int) (bool, error) {
	if err := checkIndex(index); err != nil {
		return false, err
	}
	if err := checkValue(value); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.channels[index] == byte(value) {
		return false, nil
	}
	f.channels[index] = byte(value)
	f.highestChanged = max(f.highestChanged, index)
	f.dirty = true
	f.generation++
	return true, nil
}

// Channel returns the current, possibly not yet transmitted, value of
// a single channel.
func (f *Fixture) Channel(index int) (byte, error) {
	if err := checkIndex(index); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[index], nil
}

// Channels returns a copy of the current channel vector.
func (f *Fixture) Channels() [ChannelCount]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels
}

// HighestChanged returns the highest channel index changed since the
// last successful transmit, or -1.
func (f *Fixture) HighestChanged() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.highestChanged
}

// Dirty reports whether there are changes not transmitted yet.
func (f *Fixture) Dirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty
}

// pending builds the outbound packet: the channel vector from offset 0
// up to and including the highest changed index.
func (f *Fixture) pending() ([]byte, uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dirty || f.highestChanged < 0 {
		return nil, 0, false
	}
	packet := make([]byte, f.highestChanged+1)
	copy(packet, f.channels[:f.highestChanged+1])
	return packet, f.generation, true
}

// sent clears the dirty state after a successful transmit, unless the
// fixture changed again while the packet was on its way.
func (f *Fixture) sent(generation uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generation != generation {
		return
	}
	f.highestChanged = -1
	f.dirty = false
}
