// internal/protocol/bdaddr.go
package protocol

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// BDAddr is a Bluetooth device address in display order (most significant byte first)
type BDAddr [6]byte

// ParseBDAddr parses "XX:XX:XX:XX:XX:XX"; '-' is accepted as separator too
func ParseBDAddr(s string) (BDAddr, error) {
	var addr BDAddr

	parts := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool {
		return r == ':' || r == '-'
	})
	if len(parts) != len(addr) {
		return addr, fmt.Errorf("invalid Bluetooth address %q: expected 6 octets", s)
	}

	for i, part := range parts {
		if len(part) != 2 {
			return addr, fmt.Errorf("invalid Bluetooth address %q: octet %q", s, part)
		}
		b, err := hex.DecodeString(part)
		if err != nil {
			return addr, fmt.Errorf("invalid Bluetooth address %q: %w", s, err)
		}
		addr[i] = b[0]
	}

	return addr, nil
}

// String formats the address as upper-case colon separated octets
func (a BDAddr) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

// wireOrder returns the address as the kernel's bdaddr_t expects it (least significant byte first)
func (a BDAddr) wireOrder() [6]byte {
	var out [6]byte
	for i := range a {
		out[i] = a[len(a)-1-i]
	}
	return out
}
