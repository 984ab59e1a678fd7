// Package transport defines the write capability used to push channel
// packets to fixtures, plus the implementations used by ble2led.
package transport

import (
	"errors"
	"strings"
)

// Identifiers of the fixture's DMX GATT service and the characteristic
// that receives unacknowledged channel writes.
const (
	DMXServiceUUID = "0000C001-0000-1000-8000-00805F9B34FB"
	DMXRxCharUUID  = "0000C002-0000-1000-8000-00805F9B34FB"
)

// DeviceFilter lists the advertised name fragments of supported fixtures.
var DeviceFilter = []string{"b2l", "b2s"}

// ErrTransportUnavailable is returned when a packet is written to a
// fixture that is not connected.
var ErrTransportUnavailable = errors.New("transport unavailable")

// Transport is the narrow link capability the scheduler needs. Write is
// fire-and-forget: no acknowledgement is awaited.
type Transport interface {
	Write(handle string, packet []byte) error
	IsConnected(handle string) bool
}

// MatchesDeviceFilter reports whether an advertised device name belongs
// to a supported fixture.
func MatchesDeviceFilter(name string) bool {
	for _, f := range DeviceFilter {
		if strings.Contains(name, f) {
			return true
		}
	}
	return false
}
