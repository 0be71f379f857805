// internal/driver/registry_init.go
package driver

import (
	"time"

	"go.uber.org/zap"

	"based-connect/internal/driver/bose"
	"based-connect/internal/model"
	"based-connect/internal/protocol"
	"based-connect/pkg/driver"
)

// RegisterDefaultDrivers registers all default headset drivers
func RegisterDefaultDrivers(registry *Registry) {
	registry.Register(model.BrandBose, newBoseDriver)
}

func newBoseDriver(conn protocol.DeviceProtocol, logger *zap.Logger) driver.HeadsetDriver {
	logger = logger.With(zap.String("driver", "bose"))
	return bose.NewSession(conn,
		bose.WithLogger(logger),
		bose.WithCommandHook(commandTimer(logger)),
	)
}

// commandTimer logs the round trip time of every command exchange
func commandTimer(logger *zap.Logger) bose.CommandHook {
	return func(opcode bose.Opcode, duration time.Duration, err error) {
		logger.Debug("Command exchanged",
			zap.Stringer("opcode", opcode),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.Error(err),
		)
	}
}
