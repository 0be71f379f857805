// internal/protocol/connection.go
package protocol

import "time"

// Default I/O bounds for a headset session.
const (
	DefaultSendTimeout    = 5 * time.Second
	DefaultReceiveTimeout = 1 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

// Timeouts bounds every send and receive on a connection.
// They are fixed when the connection is built.
type Timeouts struct {
	Send    time.Duration `json:"send"`
	Receive time.Duration `json:"receive"`
}

// DefaultTimeouts returns the 5s send / 1s receive policy
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Send:    DefaultSendTimeout,
		Receive: DefaultReceiveTimeout,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Send <= 0 {
		t.Send = DefaultSendTimeout
	}
	if t.Receive <= 0 {
		t.Receive = DefaultReceiveTimeout
	}
	return t
}

// RFCOMMConfig represents RFCOMM socket configuration
type RFCOMMConfig struct {
	Address        string        `json:"address"`
	Channel        uint8         `json:"channel"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	Timeouts       Timeouts      `json:"timeouts"`
}

// SerialConfig represents a serial TTY bound to an RFCOMM channel, e.g. /dev/rfcomm0
type SerialConfig struct {
	Port     string   `json:"port"`
	BaudRate int      `json:"baud_rate"`
	DataBits int      `json:"data_bits"`
	StopBits int      `json:"stop_bits"`
	Parity   string   `json:"parity"`
	Timeouts Timeouts `json:"timeouts"`
}

// TCPConfig represents TCP connection configuration
type TCPConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	KeepAlive      bool          `json:"keep_alive"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	Timeouts       Timeouts      `json:"timeouts"`
}
