// internal/protocol/stream.go
package protocol

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// deadlineStream is a byte stream whose blocking calls can be bounded by deadlines.
// net.Conn and pollable *os.File both satisfy it.
type deadlineStream interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// streamConnection implements the I/O half of DeviceProtocol over a deadlineStream.
// RFCOMM and TCP connections embed it and only differ in how the stream is opened.
type streamConnection struct {
	stream   deadlineStream
	timeouts Timeouts
	logger   *zap.Logger
	mutex    sync.RWMutex
	isOpen   bool
	stats    ProtocolStats
}

func newStreamConnection(timeouts Timeouts, logger *zap.Logger) *streamConnection {
	return &streamConnection{
		timeouts: timeouts.withDefaults(),
		logger:   logger,
	}
}

// attach installs an opened stream. Caller holds the mutex.
func (sc *streamConnection) attach(stream deadlineStream) {
	sc.stream = stream
	sc.isOpen = true
	sc.stats.IsConnected = true
	sc.stats.LastActivity = time.Now()
}

// Close closes the stream
func (sc *streamConnection) Close() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.stream == nil {
		return nil
	}

	err := sc.stream.Close()
	sc.stream = nil
	sc.isOpen = false
	sc.stats.IsConnected = false

	if err != nil {
		sc.logger.Error("Failed to close connection", zap.Error(err))
		return fmt.Errorf("failed to close connection: %w", err)
	}

	sc.logger.Info("Connection closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (sc *streamConnection) IsOpen() bool {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.isOpen && sc.stream != nil
}

// Stats returns a snapshot of the connection statistics
func (sc *streamConnection) Stats() ProtocolStats {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.stats
}

// Send writes data, retrying short writes until all bytes are out or the send timeout passes
func (sc *streamConnection) Send(ctx context.Context, data []byte) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.stream == nil {
		return ErrNotOpen
	}

	startTime := time.Now()
	deadline := boundedDeadline(ctx, startTime.Add(sc.timeouts.Send))
	if err := sc.stream.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = sc.stream.SetWriteDeadline(time.Now())
	})
	defer stop()

	written := 0
	for written < len(data) {
		n, err := sc.stream.Write(data[written:])
		written += n
		if err != nil {
			sc.stats.ErrorCount++
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return sc.classifyWriteError(err, written, len(data))
		}
		if written < len(data) && !time.Now().Before(deadline) {
			sc.stats.ErrorCount++
			return fmt.Errorf("%w: wrote %d of %d bytes", ErrSendTimeout, written, len(data))
		}
	}

	sc.stats.BytesWritten += int64(written)
	sc.stats.OperationCount++
	sc.stats.LastActivity = time.Now()
	sc.stats.updateAverageLatency(time.Since(startTime))

	sc.logger.Debug("Send completed", zap.Int("bytes", written), zap.Binary("data", data))
	return nil
}

// Receive waits up to the receive timeout for at least one byte and returns what arrived
func (sc *streamConnection) Receive(ctx context.Context, maxBytes int) ([]byte, error) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.stream == nil {
		return nil, ErrNotOpen
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("invalid receive size: %d", maxBytes)
	}

	deadline := boundedDeadline(ctx, time.Now().Add(sc.timeouts.Receive))
	if err := sc.stream.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("failed to set read deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = sc.stream.SetReadDeadline(time.Now())
	})
	defer stop()

	buffer := make([]byte, maxBytes)
	for {
		n, err := sc.stream.Read(buffer)
		if n > 0 {
			sc.stats.BytesRead += int64(n)
			sc.stats.OperationCount++
			sc.stats.LastActivity = time.Now()

			result := make([]byte, n)
			copy(result, buffer[:n])
			sc.logger.Debug("Receive completed", zap.Int("bytes", n), zap.Binary("data", result))
			return result, nil
		}
		if err != nil {
			sc.stats.ErrorCount++
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, sc.classifyReadError(err)
		}
		if !time.Now().Before(deadline) {
			sc.stats.ErrorCount++
			return nil, fmt.Errorf("%w: no data within %s", ErrReceiveTimeout, sc.timeouts.Receive)
		}
	}
}

func (sc *streamConnection) classifyWriteError(err error, written, total int) error {
	switch {
	case isTimeout(err):
		return fmt.Errorf("%w: wrote %d of %d bytes within %s", ErrSendTimeout, written, total, sc.timeouts.Send)
	case isClosed(err):
		return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	default:
		sc.logger.Error("Write failed", zap.Error(err))
		return fmt.Errorf("failed to write: %w", err)
	}
}

func (sc *streamConnection) classifyReadError(err error) error {
	switch {
	case isTimeout(err):
		return fmt.Errorf("%w: no data within %s", ErrReceiveTimeout, sc.timeouts.Receive)
	case isClosed(err):
		return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	default:
		sc.logger.Error("Read failed", zap.Error(err))
		return fmt.Errorf("failed to read: %w", err)
	}
}

// boundedDeadline returns the earlier of the context deadline and limit
func boundedDeadline(ctx context.Context, limit time.Time) time.Time {
	if d, ok := ctx.Deadline(); ok && d.Before(limit) {
		return d
	}
	return limit
}
