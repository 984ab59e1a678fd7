package fixture

import (
	"fmt"
)

// Channel offsets inside a logical device block.
const (
	Red = iota
	Green
	Blue
	Dim
	Strobe
)

// Light is the state of one logical device.
type Light struct {
	R, G, B, Dim, Strobe byte
}

// LogicalDevice is a single RGB light with dimmer and strobe. All
// setters validate their value and go through the scheduler.
type LogicalDevice interface {
	Name() string
	SetR(value int) error
	SetG(value int) error
	SetB(value int) error
	SetDim(value int) error
	SetStrobe(value int) error
	SetRGB(r, g, b int) error
	State() (Light, error)
}

// Half is the logical device living in one 5-channel half of a
// fixture: half 0 uses channels 0-4, half 1 channels 5-9. It does not
// own the fixture.
type Half struct {
	scheduler Scheduler
	address   string
	offset    int
}

// NewHalf returns the logical device for half (0 or 1) of the fixture
// at address.
func NewHalf(s Scheduler, address string, half int) (*Half, error) {
	if half != 0 && half != 1 {
		return nil, fmt.Errorf("half must be 0 or 1, got %d", half)
	}
	return &Half{scheduler: s, address: address, offset: half * HalfWidth}, nil
}

// Devices returns both halves of every address, in order. Logical
// device n (1-based, as referenced by playlists) is element n-1.
func Devices(s Scheduler, addresses []string) []LogicalDevice {
	ret := make([]LogicalDevice, 0, 2*len(addresses))
	for _, address := range addresses {
		for half := range 2 {
			d, _ := NewHalf(s, address, half)
			ret = append(ret, d)
		}
	}
	return ret
}

func (h *Half) Name() string {
	return fmt.Sprintf("%s/CH%d", h.address, h.offset/HalfWidth+1)
}

func (h *Half) set(channel, value int) error {
	return h.scheduler.SetChannel(h.address, h.offset+channel, value)
}

func (h *Half) SetR(value int) error      { return h.set(Red, value) }
func (h *Half) SetG(value int) error      { return h.set(Green, value) }
func (h *Half) SetB(value int) error      { return h.set(Blue, value) }
func (h *Half) SetDim(value int) error    { return h.set(Dim, value) }
func (h *Half) SetStrobe(value int) error { return h.set(Strobe, value) }

// SetRGB sets all three colour channels. The values are checked up
// front so an invalid one leaves the device untouched.
func (h *Half) SetRGB(r, g, b int) error {
	for _, v := range []int{r, g, b} {
		if err := checkValue(v); err != nil {
			return err
		}
	}
	if err := h.SetR(r); err != nil {
		return err
	}
	if err := h.SetG(g); err != nil {
		return err
	}
	return h.SetB(b)
}

func (h *Half) State() (Light, error) {
	channels, err := h.scheduler.Channels(h.address)
	if err != nil {
		return Light{}, err
	}
	block := channels[h.offset : h.offset+HalfWidth]
	return Light{R: block[Red], G: block[Green], B: block[Blue], Dim: block[Dim], Strobe: block[Strobe]}, nil
}
