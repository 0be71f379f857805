// internal/utils/errors.go
package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"go.bug.st/serial"

	"based-connect/internal/driver/bose"
	"based-connect/internal/protocol"
	"based-connect/pkg/settings"
)

// ErrorKind groups failures by what the user can do about them
type ErrorKind string

const (
	ErrorKindUsage      ErrorKind = "usage"
	ErrorKindValidation ErrorKind = "invalid value"
	ErrorKindConnect    ErrorKind = "connection"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindProtocol   ErrorKind = "protocol"
	ErrorKindDevice     ErrorKind = "device"
	ErrorKindInternal   ErrorKind = "error"
)

// UserFriendlyError provides a user-facing error message with context and hints
type UserFriendlyError struct {
	Kind    ErrorKind
	Message string
	Reason  string
	Hint    string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(string(e.Kind))
	buf.WriteString(": ")
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// DescribeError maps a failure from any layer to a report for the terminal.
// address is the headset address the command was run against.
func DescribeError(err error, address string) UserFriendlyError {
	var friendly UserFriendlyError
	if errors.As(err, &friendly) {
		return friendly
	}

	var validation *settings.ValidationError
	var rejected *bose.DeviceRejectedError

	switch {
	case errors.As(err, &validation):
		return UserFriendlyError{
			Kind:    ErrorKindValidation,
			Message: validation.Error(),
			Hint:    "Run 'based --help' for the accepted values",
			Err:     err,
		}

	case errors.As(err, &rejected):
		return UserFriendlyError{
			Kind:    ErrorKindDevice,
			Message: fmt.Sprintf("The headset refused the %s change", rejected.Opcode),
			Reason:  rejected.Error(),
			Hint:    "The model may not support this setting or value",
			Err:     err,
		}

	case errors.Is(err, protocol.ErrSendTimeout), errors.Is(err, protocol.ErrReceiveTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return UserFriendlyError{
			Kind:    ErrorKindTimeout,
			Message: fmt.Sprintf("%s did not answer in time", address),
			Reason:  err.Error(),
			Hint:    "Make sure the headset is powered on, paired and within range",
			Err:     err,
		}

	case errors.Is(err, protocol.ErrConnectionClosed):
		return UserFriendlyError{
			Kind:    ErrorKindConnect,
			Message: fmt.Sprintf("%s closed the connection", address),
			Reason:  err.Error(),
			Hint:    "Another application may be holding the headset's control channel",
			Err:     err,
		}

	case errors.Is(err, protocol.ErrUnsupported):
		return UserFriendlyError{
			Kind:    ErrorKindConnect,
			Message: "RFCOMM sockets are not available on this platform",
			Hint:    "Bind the headset to a TTY and use --transport serial",
			Err:     err,
		}

	case bose.IsDecodeError(err), errors.Is(err, bose.ErrPayloadTooLarge):
		return UserFriendlyError{
			Kind:    ErrorKindProtocol,
			Message: "Received an invalid response from the headset",
			Reason:  err.Error(),
			Hint:    "The device may not be a supported headset, or the channel may be wrong",
			Err:     err,
		}

	case errors.Is(err, protocol.ErrNotOpen), isDialError(err):
		return UserFriendlyError{
			Kind:    ErrorKindConnect,
			Message: fmt.Sprintf("Could not connect to %s", address),
			Reason:  err.Error(),
			Hint:    "Check that the headset is paired and the address and channel are correct",
			Err:     err,
		}

	default:
		return UserFriendlyError{
			Kind:    ErrorKindInternal,
			Message: err.Error(),
			Err:     err,
		}
	}
}

// UsageError reports a command line mistake
func UsageError(message string) UserFriendlyError {
	return UserFriendlyError{
		Kind:    ErrorKindUsage,
		Message: message,
		Hint:    "Run 'based --help' for usage",
	}
}

// isDialError reports whether err means the headset could not be reached at all
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortBusy, serial.PortNotFound, serial.InvalidSerialPort, serial.PermissionDenied:
			return true
		}
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTDOWN) ||
		errors.Is(err, syscall.EHOSTUNREACH)
}
