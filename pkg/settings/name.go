// pkg/settings/name.go
package settings

import "unicode/utf8"

// MaxNameLen is the size of the headset's name buffer, in bytes
const MaxNameLen = 31

// DeviceName is a headset name already cut to MaxNameLen bytes
type DeviceName struct {
	value     string
	truncated bool
	original  int
}

// NewDeviceName builds a DeviceName, truncating instead of rejecting long input
func NewDeviceName(name string) DeviceName {
	return DeviceName{
		value:     TruncateName(name),
		truncated: len(name) > MaxNameLen,
		original:  len(name),
	}
}

// TruncateName returns the longest prefix of name that fits in MaxNameLen bytes
// without splitting a UTF-8 sequence
func TruncateName(name string) string {
	if len(name) <= MaxNameLen {
		return name
	}
	cut := MaxNameLen
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}

// String returns the effective name
func (n DeviceName) String() string { return n.value }

// Truncated reports whether the requested name was longer than MaxNameLen bytes
func (n DeviceName) Truncated() bool { return n.truncated }

// Len returns the effective length in bytes
func (n DeviceName) Len() int { return len(n.value) }

// RequestedLen returns the length of the requested name in bytes
func (n DeviceName) RequestedLen() int { return n.original }

// Bytes returns the name as sent on the wire
func (n DeviceName) Bytes() []byte { return []byte(n.value) }
