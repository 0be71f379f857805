// internal/driver/bose/errors.go
package bose

import (
	"errors"
	"fmt"
)

// Encode errors
var (
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Decode errors. None of them ever yields a usable Response.
var (
	ErrTruncated          = errors.New("truncated frame")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrMalformedFrame     = errors.New("malformed frame")
	ErrUnexpectedOpcode   = errors.New("unexpected opcode")
	ErrUnexpectedOperator = errors.New("unexpected operator")
)

// Session errors
var (
	ErrNotReady      = errors.New("session not ready")
	ErrSessionFailed = errors.New("session failed")
)

// DeviceRejectedError is returned when the headset acknowledges a frame with an error status
type DeviceRejectedError struct {
	Opcode Opcode
	Code   byte
}

func (e *DeviceRejectedError) Error() string {
	return fmt.Sprintf("%s rejected by device: %s (0x%02X)", e.Opcode, deviceErrorName(e.Code), e.Code)
}

// IsDecodeError reports whether err is a frame decoding failure
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrUnexpectedOpcode) ||
		errors.Is(err, ErrUnexpectedOperator) ||
		errors.Is(err, ErrMalformedFrame) ||
		errors.Is(err, ErrTruncated)
}
