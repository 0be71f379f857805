// internal/protocol/rfcomm_connection.go
package protocol

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"based-connect/internal/model"
)

// RFCOMMConnection implements DeviceProtocol over a Bluetooth RFCOMM socket
type RFCOMMConnection struct {
	*streamConnection
	config  *RFCOMMConfig
	address BDAddr
}

// NewRFCOMMConnection creates a new RFCOMM connection
func NewRFCOMMConnection(config *RFCOMMConfig, logger *zap.Logger) (*RFCOMMConnection, error) {
	address, err := ParseBDAddr(config.Address)
	if err != nil {
		return nil, err
	}
	if config.Channel == 0 || config.Channel > 30 {
		return nil, fmt.Errorf("invalid RFCOMM channel: %d", config.Channel)
	}

	return &RFCOMMConnection{
		streamConnection: newStreamConnection(config.Timeouts, logger.With(
			zap.String("protocol", "rfcomm"),
			zap.String("address", address.String()),
			zap.Uint8("channel", config.Channel),
		)),
		config:  config,
		address: address,
	}, nil
}

// Open connects the RFCOMM socket
func (rc *RFCOMMConnection) Open(ctx context.Context) error {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if rc.isOpen {
		return nil
	}

	rc.logger.Info("Opening RFCOMM connection")

	connectTimeout := rc.config.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}

	stream, err := dialRFCOMM(ctx, rc.address, rc.config.Channel, connectTimeout)
	if err != nil {
		rc.logger.Error("Failed to open RFCOMM connection", zap.Error(err))
		return fmt.Errorf("failed to connect to %s channel %d: %w", rc.address, rc.config.Channel, err)
	}

	rc.attach(stream)
	rc.logger.Info("RFCOMM connection opened successfully")
	return nil
}

// GetProtocolType returns the protocol type
func (rc *RFCOMMConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeRFCOMM
}
