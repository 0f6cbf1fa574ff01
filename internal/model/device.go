// internal/model/device.go
package model

import (
	"fmt"
	"time"

	"greymatter/internal/protocol"
	"greymatter/pkg/transport"
)

// NamePrefix is the stem of every logical board name.
const NamePrefix = "pico_"

// LogicalName returns the name assigned to the index-th discovered board.
func LogicalName(index int) string {
	return fmt.Sprintf("%s%d", NamePrefix, index)
}

// Device is one discovered board: its logical name, the serial address it
// was found on, the identification it answered with and the link that
// talks to it. The link is owned by the Device.
type Device struct {
	Name         string              `json:"name"`
	Port         string              `json:"port"`
	IDN          string              `json:"idn"`
	DiscoveredAt time.Time           `json:"discovered_at"`
	Link         transport.Transport `json:"-"`
}

// Info returns the registry view of the device.
func (d *Device) Info() protocol.DeviceInfo {
	return protocol.DeviceInfo{Name: d.Name, Port: d.Port, IDN: d.IDN}
}
