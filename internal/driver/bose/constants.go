// internal/driver/bose/constants.go
package bose

import "fmt"

// Frame structure constants.
const (
	// StartOfFrame is the frame start marker
	StartOfFrame = 0xB5

	// EndOfFrame is the frame end marker
	EndOfFrame = 0x5B

	// HeaderSize covers SOF, BLOCK, FUNCTION, OPERATOR and LEN
	HeaderSize = 5

	// MinFrameSize is SOF(1) + BLOCK(1) + FUNCTION(1) + OPERATOR(1) + LEN(1) + CHECKSUM(2) + EOF(1)
	MinFrameSize = 8

	// MaxPayloadSize is bounded by the one-byte length field
	MaxPayloadSize = 0xFF

	// MaxFrameSize is the largest frame the protocol can carry
	MaxFrameSize = MinFrameSize + MaxPayloadSize
)

// Opcode selects a device operation: function block in the high byte, function in the low byte
type Opcode uint16

const (
	OpConnect         Opcode = 0x0001
	OpDeviceName      Opcode = 0x0102
	OpPromptLanguage  Opcode = 0x0103
	OpAutoOff         Opcode = 0x0104
	OpNoiseCancelling Opcode = 0x0106
)

// Block returns the function block byte
func (o Opcode) Block() byte { return byte(o >> 8) }

// Function returns the function byte
func (o Opcode) Function() byte { return byte(o) }

func (o Opcode) String() string {
	switch o {
	case OpConnect:
		return "connect"
	case OpDeviceName:
		return "device-name"
	case OpPromptLanguage:
		return "prompt-language"
	case OpAutoOff:
		return "auto-off"
	case OpNoiseCancelling:
		return "noise-cancelling"
	default:
		return fmt.Sprintf("opcode(0x%04X)", uint16(o))
	}
}

// MakeOpcode joins a block and function byte
func MakeOpcode(block, function byte) Opcode {
	return Opcode(uint16(block)<<8 | uint16(function))
}

// Operator tells the receiver what to do with a frame
type Operator byte

const (
	OperatorGet    Operator = 0x01
	OperatorSetGet Operator = 0x02
	OperatorStatus Operator = 0x03
	OperatorError  Operator = 0x04
)

func (o Operator) String() string {
	switch o {
	case OperatorGet:
		return "get"
	case OperatorSetGet:
		return "set-get"
	case OperatorStatus:
		return "status"
	case OperatorError:
		return "error"
	default:
		return fmt.Sprintf("operator(0x%02X)", byte(o))
	}
}

// Device error codes carried in the first payload byte of an Error frame.
const (
	DeviceErrLength          = 0x01
	DeviceErrChecksum        = 0x02
	DeviceErrBlockNotSupp    = 0x03
	DeviceErrFunctionNotSupp = 0x04
	DeviceErrOperatorNotSupp = 0x05
	DeviceErrInvalidData     = 0x06
	DeviceErrDataUnavailable = 0x07
	DeviceErrRuntime         = 0x08
	DeviceErrTimeout         = 0x09
	DeviceErrInvalidState    = 0x0A
	DeviceErrBusy            = 0x0C
)

// deviceErrorName returns a human-readable name for a device error code
func deviceErrorName(code byte) string {
	switch code {
	case DeviceErrLength:
		return "invalid length"
	case DeviceErrChecksum:
		return "checksum error"
	case DeviceErrBlockNotSupp:
		return "function block not supported"
	case DeviceErrFunctionNotSupp:
		return "function not supported"
	case DeviceErrOperatorNotSupp:
		return "operator not supported"
	case DeviceErrInvalidData:
		return "invalid data"
	case DeviceErrDataUnavailable:
		return "data unavailable"
	case DeviceErrRuntime:
		return "runtime error"
	case DeviceErrTimeout:
		return "device timeout"
	case DeviceErrInvalidState:
		return "invalid state"
	case DeviceErrBusy:
		return "device busy"
	default:
		return fmt.Sprintf("unknown error code 0x%02X", code)
	}
}
