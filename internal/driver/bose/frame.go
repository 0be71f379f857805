// internal/driver/bose/frame.go
package bose

import (
	"encoding/binary"
	"fmt"
)

// Frame is one decoded protocol message with verified framing and checksum
type Frame struct {
	Opcode   Opcode
	Operator Operator
	Payload  []byte
}

// Status is the outcome a device reports for a request
type Status int

const (
	StatusOK Status = iota
	StatusDeviceError
)

func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	return "device-error"
}

// Response is a verified reply to an outstanding request
type Response struct {
	Status  Status
	Opcode  Opcode
	Payload []byte
}

// ErrorCode returns the device error code of a device-error response
func (r *Response) ErrorCode() byte {
	if r.Status != StatusDeviceError || len(r.Payload) == 0 {
		return 0
	}
	return r.Payload[0]
}

// Encode builds a complete frame.
//
// Frame structure:
//
//	[SOF][BLOCK][FUNCTION][OPERATOR][LEN][PAYLOAD...][CHECKSUM_L][CHECKSUM_H][EOF]
//
// The same opcode, operator and payload always produce the same bytes.
func Encode(opcode Opcode, operator Operator, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds maximum %d", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}

	frame := make([]byte, 0, MinFrameSize+len(payload))
	frame = append(frame, StartOfFrame)
	frame = append(frame, opcode.Block(), opcode.Function(), byte(operator), byte(len(payload)))
	frame = append(frame, payload...)

	checksum := calculateFrameChecksum(frame[1:])
	frame = binary.LittleEndian.AppendUint16(frame, checksum)

	frame = append(frame, EndOfFrame)
	return frame, nil
}

// EncodeRequest builds a request frame: Get when the payload is empty, SetGet otherwise
func EncodeRequest(opcode Opcode, payload []byte) ([]byte, error) {
	operator := OperatorSetGet
	if len(payload) == 0 {
		operator = OperatorGet
	}
	return Encode(opcode, operator, payload)
}

// FrameLength returns the full length of the frame starting at data[0], reading
// only the header. It returns ErrTruncated while the header is incomplete.
func FrameLength(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, ErrTruncated
	}
	if data[0] != StartOfFrame {
		return 0, fmt.Errorf("%w: invalid start of frame 0x%02X", ErrMalformedFrame, data[0])
	}
	if len(data) < HeaderSize {
		return 0, ErrTruncated
	}
	return MinFrameSize + int(data[HeaderSize-1]), nil
}

// DecodeFrame verifies framing and checksum of the frame at the start of data.
// It returns the frame and the number of bytes it occupied; bytes past the
// frame are left to the caller.
func DecodeFrame(data []byte) (*Frame, int, error) {
	frameLen, err := FrameLength(data)
	if err != nil {
		return nil, 0, err
	}
	if len(data) < frameLen {
		return nil, 0, fmt.Errorf("%w: have %d of %d bytes", ErrTruncated, len(data), frameLen)
	}

	frame := data[:frameLen]
	if frame[frameLen-1] != EndOfFrame {
		return nil, 0, fmt.Errorf("%w: invalid end of frame 0x%02X", ErrMalformedFrame, frame[frameLen-1])
	}

	expected := binary.LittleEndian.Uint16(frame[frameLen-3 : frameLen-1])
	actual := calculateFrameChecksum(frame[1 : frameLen-3])
	if expected != actual {
		return nil, 0, fmt.Errorf("%w: frame carries 0x%04X, computed 0x%04X", ErrChecksumMismatch, expected, actual)
	}

	payload := make([]byte, frameLen-MinFrameSize)
	copy(payload, frame[HeaderSize:frameLen-3])

	return &Frame{
		Opcode:   MakeOpcode(frame[1], frame[2]),
		Operator: Operator(frame[3]),
		Payload:  payload,
	}, frameLen, nil
}

// DecodeResponse decodes the reply to a request for the expected opcode
func DecodeResponse(data []byte, expected Opcode) (*Response, int, error) {
	frame, n, err := DecodeFrame(data)
	if err != nil {
		return nil, 0, err
	}

	if frame.Opcode != expected {
		return nil, n, fmt.Errorf("%w: got %s, outstanding request is %s", ErrUnexpectedOpcode, frame.Opcode, expected)
	}

	switch frame.Operator {
	case OperatorStatus:
		return &Response{Status: StatusOK, Opcode: frame.Opcode, Payload: frame.Payload}, n, nil
	case OperatorError:
		return &Response{Status: StatusDeviceError, Opcode: frame.Opcode, Payload: frame.Payload}, n, nil
	default:
		return nil, n, fmt.Errorf("%w: %s in reply to %s", ErrUnexpectedOperator, frame.Operator, expected)
	}
}
