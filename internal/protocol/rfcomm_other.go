//go:build !linux

// internal/protocol/rfcomm_other.go
package protocol

import (
	"context"
	"time"
)

func dialRFCOMM(_ context.Context, _ BDAddr, _ uint8, _ time.Duration) (deadlineStream, error) {
	return nil, ErrUnsupported
}
