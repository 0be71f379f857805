// internal/protocol/serial_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"based-connect/internal/model"
)

// serialPollInterval bounds a single blocking read so context cancellation is noticed
const serialPollInterval = 100 * time.Millisecond

// SerialConnection implements DeviceProtocol over a TTY bound to the headset's
// RFCOMM channel (rfcomm bind / rfcomm connect)
type SerialConnection struct {
	config   *SerialConfig
	timeouts Timeouts
	port     serial.Port
	logger   *zap.Logger
	mutex    sync.RWMutex
	isOpen   bool
	stats    ProtocolStats
}

// NewSerialConnection creates a new serial connection
func NewSerialConnection(config *SerialConfig, logger *zap.Logger) *SerialConnection {
	return &SerialConnection{
		config:   config,
		timeouts: config.Timeouts.withDefaults(),
		logger: logger.With(
			zap.String("protocol", "serial"),
			zap.String("port", config.Port),
		),
	}
}

// serialMode maps the configuration onto a serial.Mode
func serialMode(config *SerialConfig) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: config.DataBits,
	}

	switch config.StopBits {
	case 0, 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("invalid stop bits: %d", config.StopBits)
	}

	switch strings.ToLower(config.Parity) {
	case "", "none":
		mode.Parity = serial.NoParity
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	case "mark":
		mode.Parity = serial.MarkParity
	case "space":
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("invalid parity: %s", config.Parity)
	}

	return mode, nil
}

// Open opens the serial port
func (sc *SerialConnection) Open(ctx context.Context) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.isOpen {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sc.logger.Info("Opening serial port", zap.Int("baud_rate", sc.config.BaudRate))

	mode, err := serialMode(sc.config)
	if err != nil {
		return err
	}

	port, err := serial.Open(sc.config.Port, mode)
	if err != nil {
		sc.logger.Error("Failed to open serial port", zap.Error(err))
		return fmt.Errorf("failed to open serial port %s: %w", sc.config.Port, err)
	}

	sc.port = port
	sc.isOpen = true
	sc.stats.IsConnected = true
	sc.stats.LastActivity = time.Now()

	sc.logger.Info("Serial port opened successfully")
	return nil
}

// Close closes the serial port
func (sc *SerialConnection) Close() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil
	}

	err := sc.port.Close()
	sc.port = nil
	sc.isOpen = false
	sc.stats.IsConnected = false

	if err != nil {
		sc.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	sc.logger.Info("Serial port closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (sc *SerialConnection) IsOpen() bool {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.isOpen && sc.port != nil
}

// Stats returns a snapshot of the connection statistics
func (sc *SerialConnection) Stats() ProtocolStats {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.stats
}

// Send writes data to the serial port. The port has no write deadline, so the
// write runs in its own goroutine and is abandoned once the send timeout passes.
func (sc *SerialConnection) Send(ctx context.Context, data []byte) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return ErrNotOpen
	}

	startTime := time.Now()
	port := sc.port

	done := make(chan error, 1)
	go func() {
		written := 0
		for written < len(data) {
			n, err := port.Write(data[written:])
			written += n
			if err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	timer := time.NewTimer(sc.timeouts.Send)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			sc.stats.ErrorCount++
			return sc.classifyError(err, "write")
		}
	case <-timer.C:
		sc.stats.ErrorCount++
		return fmt.Errorf("%w: %d bytes not written within %s", ErrSendTimeout, len(data), sc.timeouts.Send)
	case <-ctx.Done():
		sc.stats.ErrorCount++
		return ctx.Err()
	}

	sc.stats.BytesWritten += int64(len(data))
	sc.stats.OperationCount++
	sc.stats.LastActivity = time.Now()
	sc.stats.updateAverageLatency(time.Since(startTime))

	sc.logger.Debug("Serial write completed", zap.Int("bytes", len(data)), zap.Binary("data", data))
	return nil
}

// Receive reads up to maxBytes, waiting at most the receive timeout for the first byte
func (sc *SerialConnection) Receive(ctx context.Context, maxBytes int) ([]byte, error) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil, ErrNotOpen
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("invalid receive size: %d", maxBytes)
	}

	deadline := boundedDeadline(ctx, time.Now().Add(sc.timeouts.Receive))
	buffer := make([]byte, maxBytes)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			sc.stats.ErrorCount++
			return nil, fmt.Errorf("%w: no data within %s", ErrReceiveTimeout, sc.timeouts.Receive)
		}
		if remaining > serialPollInterval {
			remaining = serialPollInterval
		}
		if err := sc.port.SetReadTimeout(remaining); err != nil {
			return nil, fmt.Errorf("failed to set read timeout: %w", err)
		}

		n, err := sc.port.Read(buffer)
		if n > 0 {
			sc.stats.BytesRead += int64(n)
			sc.stats.OperationCount++
			sc.stats.LastActivity = time.Now()

			result := make([]byte, n)
			copy(result, buffer[:n])
			sc.logger.Debug("Serial read completed", zap.Int("bytes", n), zap.Binary("data", result))
			return result, nil
		}
		if err != nil {
			sc.stats.ErrorCount++
			return nil, sc.classifyError(err, "read")
		}
	}
}

func (sc *SerialConnection) classifyError(err error, op string) error {
	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
		return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	if isClosed(err) {
		return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	sc.logger.Error("Serial "+op+" failed", zap.Error(err))
	return fmt.Errorf("failed to %s serial port: %w", op, err)
}

// GetProtocolType returns the protocol type
func (sc *SerialConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeSerial
}
