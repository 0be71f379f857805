// internal/model/device.go
package model

import (
	"fmt"
	"strings"
)

// ConnectionType represents how the headset is reached
type ConnectionType string

const (
	ConnectionTypeRFCOMM ConnectionType = "RFCOMM"
	ConnectionTypeSerial ConnectionType = "SERIAL"
	ConnectionTypeTCP    ConnectionType = "TCP"
)

// ConnectionTypes lists the supported connection types
var ConnectionTypes = []ConnectionType{
	ConnectionTypeRFCOMM,
	ConnectionTypeSerial,
	ConnectionTypeTCP,
}

// ParseConnectionType accepts a connection type name in any case
func ParseConnectionType(value string) (ConnectionType, error) {
	upper := ConnectionType(strings.ToUpper(strings.TrimSpace(value)))
	for _, ct := range ConnectionTypes {
		if ct == upper {
			return ct, nil
		}
	}
	return "", fmt.Errorf("unsupported connection type: %s", value)
}

// DeviceBrand represents supported headset brands
type DeviceBrand string

const (
	BrandBose DeviceBrand = "BOSE"
)

// Device identifies the headset targeted by one invocation
type Device struct {
	Address        string         `json:"address"`
	Brand          DeviceBrand    `json:"brand"`
	ConnectionType ConnectionType `json:"connection_type"`
}

func (d *Device) String() string {
	return fmt.Sprintf("%s %s via %s", d.Brand, d.Address, strings.ToLower(string(d.ConnectionType)))
}
