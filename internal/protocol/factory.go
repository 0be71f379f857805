// internal/protocol/factory.go
package protocol

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"based-connect/internal/model"
)

// DefaultRFCOMMChannel is the channel the headset exposes its control service on
const DefaultRFCOMMChannel uint8 = 8

// DefaultBaudRate for RFCOMM-bound TTYs; the rate is not meaningful on a virtual port
const DefaultBaudRate = 115200

// Target describes the headset endpoint for one invocation
type Target struct {
	Type           model.ConnectionType `json:"type"`
	Address        string               `json:"address"`
	Channel        uint8                `json:"channel"`
	BaudRate       int                  `json:"baud_rate"`
	DataBits       int                  `json:"data_bits"`
	StopBits       int                  `json:"stop_bits"`
	Parity         string               `json:"parity"`
	KeepAlive      bool                 `json:"keep_alive"`
	ConnectTimeout time.Duration        `json:"connect_timeout"`
	Timeouts       Timeouts             `json:"timeouts"`
}

// CreateProtocol creates a protocol based on the target's connection type
func CreateProtocol(target Target, logger *zap.Logger) (DeviceProtocol, error) {
	if err := ValidateTarget(target); err != nil {
		return nil, err
	}

	switch target.Type {
	case model.ConnectionTypeRFCOMM:
		return createRFCOMMProtocol(target, logger)
	case model.ConnectionTypeSerial:
		return createSerialProtocol(target, logger), nil
	case model.ConnectionTypeTCP:
		return createTCPProtocol(target, logger)
	default:
		return nil, fmt.Errorf("unsupported protocol type: %s", target.Type)
	}
}

func createRFCOMMProtocol(target Target, logger *zap.Logger) (DeviceProtocol, error) {
	channel := target.Channel
	if channel == 0 {
		channel = DefaultRFCOMMChannel
	}

	logger.Debug("Creating RFCOMM protocol",
		zap.String("address", target.Address),
		zap.Uint8("channel", channel),
	)

	return NewRFCOMMConnection(&RFCOMMConfig{
		Address:        target.Address,
		Channel:        channel,
		ConnectTimeout: target.ConnectTimeout,
		Timeouts:       target.Timeouts,
	}, logger)
}

func createSerialProtocol(target Target, logger *zap.Logger) DeviceProtocol {
	serialConfig := &SerialConfig{
		Port:     target.Address,
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "none",
		Timeouts: target.Timeouts,
	}
	if target.BaudRate > 0 {
		serialConfig.BaudRate = target.BaudRate
	}
	if target.DataBits > 0 {
		serialConfig.DataBits = target.DataBits
	}
	if target.StopBits > 0 {
		serialConfig.StopBits = target.StopBits
	}
	if target.Parity != "" {
		serialConfig.Parity = target.Parity
	}

	logger.Debug("Creating serial protocol",
		zap.String("port", serialConfig.Port),
		zap.Int("baud_rate", serialConfig.BaudRate),
	)

	return NewSerialConnection(serialConfig, logger)
}

func createTCPProtocol(target Target, logger *zap.Logger) (DeviceProtocol, error) {
	host, portStr, err := net.SplitHostPort(target.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid TCP address %q: %w", target.Address, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid TCP port %q: %w", portStr, err)
	}

	logger.Debug("Creating TCP protocol",
		zap.String("host", host),
		zap.Int("port", port),
	)

	return NewTCPConnection(&TCPConfig{
		Host:           host,
		Port:           port,
		KeepAlive:      target.KeepAlive,
		ConnectTimeout: target.ConnectTimeout,
		Timeouts:       target.Timeouts,
	}, logger), nil
}

// ValidateTarget checks the address format for the selected connection type
func ValidateTarget(target Target) error {
	if strings.TrimSpace(target.Address) == "" {
		return fmt.Errorf("address is required")
	}

	switch target.Type {
	case model.ConnectionTypeRFCOMM:
		return validateRFCOMMTarget(target)
	case model.ConnectionTypeSerial:
		return validateSerialTarget(target)
	case model.ConnectionTypeTCP:
		return validateTCPTarget(target)
	default:
		return fmt.Errorf("unsupported connection type: %s", target.Type)
	}
}

func validateRFCOMMTarget(target Target) error {
	if _, err := ParseBDAddr(target.Address); err != nil {
		return err
	}
	if target.Channel > 30 {
		return fmt.Errorf("invalid RFCOMM channel: %d (must be 1-30)", target.Channel)
	}
	return nil
}

func validateSerialTarget(target Target) error {
	if target.BaudRate == 0 {
		return nil
	}

	validRates := []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600}
	for _, validRate := range validRates {
		if target.BaudRate == validRate {
			return nil
		}
	}
	return fmt.Errorf("invalid baud rate: %d", target.BaudRate)
}

func validateTCPTarget(target Target) error {
	host, portStr, err := net.SplitHostPort(target.Address)
	if err != nil {
		return fmt.Errorf("invalid TCP address %q: %w", target.Address, err)
	}
	if host == "" {
		return fmt.Errorf("TCP host is required")
	}

	portNum, err := strconv.Atoi(portStr)
	if err != nil || portNum < 1 || portNum > 65535 {
		return fmt.Errorf("invalid port number: %s", portStr)
	}
	return nil
}
