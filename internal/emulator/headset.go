// internal/emulator/headset.go
package emulator

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"based-connect/internal/config"
	"based-connect/internal/driver/bose"
	"based-connect/pkg/settings"
)

// FirmwareVersion is reported in the handshake reply
const FirmwareVersion = "1.3.9"

// State is the configurable part of the emulated headset
type State struct {
	Name            string                   `json:"name" yaml:"name"`
	NoiseCancelling settings.NoiseCancelling `json:"noise_cancelling" yaml:"noise_cancelling"`
	AutoOff         settings.AutoOff         `json:"auto_off" yaml:"auto_off"`
	PromptLanguage  settings.PromptLanguage  `json:"prompt_language" yaml:"prompt_language"`
}

// StateFromConfig validates the emulator's initial settings
func StateFromConfig(cfg config.EmulatorConfig) (State, error) {
	nc, err := settings.ParseNoiseCancelling(cfg.NoiseCancelling)
	if err != nil {
		return State{}, err
	}
	autoOff, err := settings.ParseAutoOff(cfg.AutoOff)
	if err != nil {
		return State{}, err
	}
	language, err := settings.ParsePromptLanguage(cfg.PromptLanguage)
	if err != nil {
		return State{}, err
	}

	return State{
		Name:            settings.TruncateName(cfg.Name),
		NoiseCancelling: nc,
		AutoOff:         autoOff,
		PromptLanguage:  language,
	}, nil
}

// Fault makes the headset misbehave when answering a given opcode
type Fault int

const (
	FaultNone Fault = iota
	// FaultCorruptChecksum answers with a broken checksum
	FaultCorruptChecksum
	// FaultDropResponse never answers
	FaultDropResponse
	// FaultWrongOpcode answers for a different opcode
	FaultWrongOpcode
	// FaultReject answers with a device error
	FaultReject
	// FaultSplitResponse answers correctly, one byte per write
	FaultSplitResponse
)

var faultNames = map[string]Fault{
	"none":     FaultNone,
	"corrupt":  FaultCorruptChecksum,
	"drop":     FaultDropResponse,
	"wrong-op": FaultWrongOpcode,
	"reject":   FaultReject,
	"split":    FaultSplitResponse,
}

// ParseFault accepts "corrupt", "drop", "wrong-op", "reject", "split" or "none"
func ParseFault(name string) (Fault, error) {
	f, ok := faultNames[strings.ToLower(name)]
	if !ok {
		return FaultNone, fmt.Errorf("unknown fault %q", name)
	}
	return f, nil
}

var faultOpcodes = []bose.Opcode{
	bose.OpConnect,
	bose.OpDeviceName,
	bose.OpPromptLanguage,
	bose.OpAutoOff,
	bose.OpNoiseCancelling,
}

// ParseFaultSpec parses "<opcode>=<fault>", e.g. "noise-cancelling=corrupt"
func ParseFaultSpec(spec string) (bose.Opcode, Fault, error) {
	name, faultName, ok := strings.Cut(spec, "=")
	if !ok {
		return 0, FaultNone, fmt.Errorf("fault %q: expected <opcode>=<fault>", spec)
	}

	fault, err := ParseFault(faultName)
	if err != nil {
		return 0, FaultNone, err
	}
	for _, op := range faultOpcodes {
		if op.String() == strings.ToLower(name) {
			return op, fault, nil
		}
	}
	return 0, FaultNone, fmt.Errorf("fault %q: unknown opcode %q", spec, name)
}

func (f Fault) String() string {
	for name, v := range faultNames {
		if v == f {
			return name
		}
	}
	return fmt.Sprintf("fault(%d)", int(f))
}

// Headset emulates the device side of the command protocol. It is shared by
// all connections; each connection runs its own handshake.
type Headset struct {
	mu       sync.Mutex
	state    State
	faults   map[bose.Opcode]Fault
	received []bose.Opcode
	logger   *zap.Logger
}

// NewHeadset creates an emulated headset in the given state
func NewHeadset(state State, logger *zap.Logger) *Headset {
	return &Headset{
		state:  state,
		faults: make(map[bose.Opcode]Fault),
		logger: logger.With(zap.String("component", "emulator")),
	}
}

// InjectFault makes every later request for op misbehave
func (h *Headset) InjectFault(op bose.Opcode, fault Fault) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if fault == FaultNone {
		delete(h.faults, op)
		return
	}
	h.faults[op] = fault
}

// State returns a copy of the current settings
func (h *Headset) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Received returns the opcodes of every request frame decoded so far, in order
func (h *Headset) Received() []bose.Opcode {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]bose.Opcode(nil), h.received...)
}

// exchange is the per-connection side of the conversation
type exchange struct {
	headset   *Headset
	connected bool
}

// reply is what to send back for one request: nil frame means no answer
type reply struct {
	frame []byte
	split bool
}

func (h *Headset) newExchange() *exchange {
	return &exchange{headset: h}
}

// respond computes the reply to a request frame
func (e *exchange) respond(frame *bose.Frame) reply {
	h := e.headset
	h.mu.Lock()
	defer h.mu.Unlock()

	h.received = append(h.received, frame.Opcode)
	fault := h.faults[frame.Opcode]

	h.logger.Debug("Request received",
		zap.Stringer("opcode", frame.Opcode),
		zap.Stringer("operator", frame.Operator),
		zap.Binary("payload", frame.Payload),
	)

	switch fault {
	case FaultDropResponse:
		return reply{}
	case FaultReject:
		return reply{frame: errorFrame(frame.Opcode, bose.DeviceErrRuntime)}
	}

	operator, payload := e.handle(frame)
	data, err := bose.Encode(frame.Opcode, operator, payload)
	if err != nil {
		data = errorFrame(frame.Opcode, bose.DeviceErrLength)
	}

	switch fault {
	case FaultCorruptChecksum:
		data[len(data)-3] ^= 0xFF
	case FaultWrongOpcode:
		other := bose.OpConnect
		if frame.Opcode == bose.OpConnect {
			other = bose.OpDeviceName
		}
		data, _ = bose.Encode(other, operator, payload)
	case FaultSplitResponse:
		return reply{frame: data, split: true}
	}

	return reply{frame: data}
}

// handle applies the request to the headset state. Caller holds the lock.
func (e *exchange) handle(frame *bose.Frame) (bose.Operator, []byte) {
	h := e.headset

	if frame.Operator != bose.OperatorGet && frame.Operator != bose.OperatorSetGet {
		return bose.OperatorError, []byte{bose.DeviceErrOperatorNotSupp}
	}

	if frame.Opcode == bose.OpConnect {
		e.connected = true
		return bose.OperatorStatus, []byte(FirmwareVersion)
	}
	if !e.connected {
		return bose.OperatorError, []byte{bose.DeviceErrInvalidState}
	}

	set := frame.Operator == bose.OperatorSetGet

	switch frame.Opcode {
	case bose.OpDeviceName:
		if set {
			name := string(frame.Payload)
			if !utf8.ValidString(name) || len(name) > settings.MaxNameLen {
				return bose.OperatorError, []byte{bose.DeviceErrInvalidData}
			}
			h.state.Name = name
		}
		return bose.OperatorStatus, []byte(h.state.Name)

	case bose.OpNoiseCancelling:
		if set {
			level, ok := singleByte(frame.Payload, settings.NoiseCancellingFromWire)
			if !ok {
				return bose.OperatorError, []byte{bose.DeviceErrInvalidData}
			}
			h.state.NoiseCancelling = level
		}
		return bose.OperatorStatus, []byte{h.state.NoiseCancelling.WireCode()}

	case bose.OpAutoOff:
		if set {
			timeout, ok := singleByte(frame.Payload, settings.AutoOffFromWire)
			if !ok {
				return bose.OperatorError, []byte{bose.DeviceErrInvalidData}
			}
			h.state.AutoOff = timeout
		}
		return bose.OperatorStatus, []byte{h.state.AutoOff.WireCode()}

	case bose.OpPromptLanguage:
		if set {
			language, ok := singleByte(frame.Payload, settings.PromptLanguageFromWire)
			if !ok {
				return bose.OperatorError, []byte{bose.DeviceErrInvalidData}
			}
			h.state.PromptLanguage = language
		}
		return bose.OperatorStatus, []byte{h.state.PromptLanguage.WireCode()}
	}

	if frame.Opcode.Block() > bose.OpNoiseCancelling.Block() {
		return bose.OperatorError, []byte{bose.DeviceErrBlockNotSupp}
	}
	return bose.OperatorError, []byte{bose.DeviceErrFunctionNotSupp}
}

func singleByte[T any](payload []byte, fromWire func(byte) (T, bool)) (T, bool) {
	if len(payload) != 1 {
		var zero T
		return zero, false
	}
	return fromWire(payload[0])
}

func errorFrame(op bose.Opcode, code byte) []byte {
	data, _ := bose.Encode(op, bose.OperatorError, []byte{code})
	return data
}
