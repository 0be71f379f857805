// pkg/driver/interfaces.go
package driver

import (
	"context"

	"based-connect/pkg/settings"
)

// HeadsetDriver is the command interface every headset driver must implement.
// A driver works over a connection that is already open and is used by one
// caller at a time.
type HeadsetDriver interface {
	// Connection handshake; must succeed before any setter
	InitConnection(ctx context.Context) error

	// Single setting changes. Each sends one request and waits for its acknowledgement.
	SetName(ctx context.Context, name settings.DeviceName) error
	SetNoiseCancelling(ctx context.Context, level settings.NoiseCancelling) error
	SetAutoOff(ctx context.Context, timeout settings.AutoOff) error
	SetPromptLanguage(ctx context.Context, language settings.PromptLanguage) error

	// Apply sends the settings in order, stops at the first failure and
	// reports how many were acknowledged
	Apply(ctx context.Context, list []settings.Setting) (int, error)
}
