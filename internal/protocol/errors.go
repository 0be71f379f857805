// internal/protocol/errors.go
package protocol

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

// Transport errors
var (
	ErrSendTimeout      = errors.New("send timeout")
	ErrReceiveTimeout   = errors.New("receive timeout")
	ErrConnectionClosed = errors.New("connection closed")
	ErrNotOpen          = errors.New("connection not open")
	ErrUnsupported      = errors.New("transport not supported on this platform")
)

// IsTransportError reports whether err is a send/receive failure of the stream
func IsTransportError(err error) bool {
	return errors.Is(err, ErrSendTimeout) ||
		errors.Is(err, ErrReceiveTimeout) ||
		errors.Is(err, ErrConnectionClosed) ||
		errors.Is(err, ErrNotOpen)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ENOTCONN)
}
