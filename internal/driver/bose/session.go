// internal/driver/bose/session.go
package bose

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"based-connect/internal/protocol"
	"based-connect/pkg/settings"
)

// State is the lifecycle position of a Session
type State int

const (
	StateDisconnected State = iota
	StateInitializing
	StateReady
	StateApplying
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateApplying:
		return "applying"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CommandHook observes every request/response exchange of a session
type CommandHook func(opcode Opcode, duration time.Duration, err error)

// Option is a functional option for configuring a Session.
type Option func(*Session)

// WithLogger sets the logger for session operations.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithCommandHook registers a callback invoked after each exchange.
//
// Example:
//
//	session := bose.NewSession(conn, bose.WithCommandHook(func(op bose.Opcode, d time.Duration, err error) {
//	    fmt.Printf("%s took %s\n", op, d)
//	}))
func WithCommandHook(hook CommandHook) Option {
	return func(s *Session) {
		s.hook = hook
	}
}

// Session drives the command protocol over one open connection.
//
// Only one request is ever outstanding. The first failure moves the session to
// StateFailed for good; every later call returns ErrSessionFailed without
// touching the connection.
type Session struct {
	conn   protocol.DeviceProtocol
	logger *zap.Logger
	hook   CommandHook

	mutex   sync.Mutex
	state   State
	failure error
}

// NewSession creates a session over an already opened connection
func NewSession(conn protocol.DeviceProtocol, opts ...Option) *Session {
	s := &Session{
		conn:   conn,
		logger: zap.NewNop(),
		state:  StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current session state
func (s *Session) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// Err returns the error that failed the session, if any
func (s *Session) Err() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.failure
}

// InitConnection performs the connect handshake. Calling it on a Ready session
// is a no-op.
func (s *Session) InitConnection(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	switch s.state {
	case StateReady:
		return nil
	case StateFailed:
		return s.failedError()
	case StateDisconnected:
	default:
		return fmt.Errorf("%w: session is %s", ErrNotReady, s.state)
	}

	s.state = StateInitializing
	s.logger.Debug("Starting handshake")

	frame, err := BuildConnectCmd()
	if err != nil {
		return s.fail(err)
	}

	resp, err := s.exchange(ctx, OpConnect, frame)
	if err != nil {
		return s.fail(fmt.Errorf("handshake failed: %w", err))
	}

	s.state = StateReady
	s.logger.Info("Headset connection initialized", zap.Int("info_bytes", len(resp.Payload)))
	return nil
}

// SetName renames the headset. Names longer than settings.MaxNameLen are truncated.
func (s *Session) SetName(ctx context.Context, name settings.DeviceName) error {
	return s.apply(ctx, settings.NameSetting(name))
}

// SetNoiseCancelling sets the noise-cancelling level
func (s *Session) SetNoiseCancelling(ctx context.Context, level settings.NoiseCancelling) error {
	return s.apply(ctx, settings.NoiseCancellingSetting(level))
}

// SetAutoOff sets the auto-power-off timeout
func (s *Session) SetAutoOff(ctx context.Context, timeout settings.AutoOff) error {
	return s.apply(ctx, settings.AutoOffSetting(timeout))
}

// SetPromptLanguage sets the voice-prompt language
func (s *Session) SetPromptLanguage(ctx context.Context, language settings.PromptLanguage) error {
	return s.apply(ctx, settings.PromptLanguageSetting(language))
}

// Apply sends each setting in order and stops at the first failure.
// It returns how many settings the headset acknowledged.
func (s *Session) Apply(ctx context.Context, list []settings.Setting) (int, error) {
	for i, setting := range list {
		if err := s.apply(ctx, setting); err != nil {
			return i, err
		}
	}
	return len(list), nil
}

func (s *Session) apply(ctx context.Context, setting settings.Setting) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	switch s.state {
	case StateReady:
	case StateFailed:
		return s.failedError()
	default:
		return fmt.Errorf("%w: session is %s", ErrNotReady, s.state)
	}

	op, err := OpcodeFor(setting.Kind)
	if err != nil {
		return err
	}
	frame, err := BuildSettingCmd(setting)
	if err != nil {
		// nothing was sent, the session stays usable
		return err
	}

	s.state = StateApplying
	s.logger.Debug("Applying setting",
		zap.String("setting", string(setting.Kind)),
		zap.String("value", setting.Value()),
	)

	if _, err := s.exchange(ctx, op, frame); err != nil {
		return s.fail(fmt.Errorf("set %s: %w", setting.Kind, err))
	}

	s.state = StateReady
	s.logger.Info("Setting applied",
		zap.String("setting", string(setting.Kind)),
		zap.String("value", setting.Value()),
	)
	return nil
}

// exchange sends one request frame and reads exactly one response for opcode.
// A device-error response is returned as *DeviceRejectedError.
func (s *Session) exchange(ctx context.Context, opcode Opcode, frame []byte) (resp *Response, err error) {
	start := time.Now()
	if s.hook != nil {
		defer func() {
			s.hook(opcode, time.Since(start), err)
		}()
	}

	if err := s.conn.Send(ctx, frame); err != nil {
		return nil, err
	}

	var buf []byte
	for {
		want := MaxFrameSize - len(buf)
		if n, lerr := FrameLength(buf); lerr == nil {
			want = n - len(buf)
		}

		chunk, err := s.conn.Receive(ctx, want)
		if err != nil {
			return nil, err
		}
		buf = append(buf, chunk...)

		resp, n, err := DecodeResponse(buf, opcode)
		if errors.Is(err, ErrTruncated) {
			continue
		}
		if err != nil {
			s.logger.Debug("Invalid response", zap.Binary("data", buf), zap.Error(err))
			return nil, err
		}
		if n < len(buf) {
			s.logger.Debug("Ignoring trailing bytes", zap.Int("bytes", len(buf)-n))
		}

		if resp.Status == StatusDeviceError {
			return nil, &DeviceRejectedError{Opcode: opcode, Code: resp.ErrorCode()}
		}
		return resp, nil
	}
}

// fail moves the session to StateFailed. Caller holds the mutex. The caller
// reports err, so it is only traced here.
func (s *Session) fail(err error) error {
	s.state = StateFailed
	s.failure = err
	s.logger.Debug("Session failed", zap.Error(err))
	return err
}

func (s *Session) failedError() error {
	return fmt.Errorf("%w: %v", ErrSessionFailed, s.failure)
}
