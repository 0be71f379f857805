package bose

import (
	"bytes"
	"errors"
	"testing"

	"based-connect/pkg/settings"
)

func TestEncodeConnect(t *testing.T) {
	frame, err := BuildConnectCmd()
	if err != nil {
		t.Fatalf("BuildConnectCmd: %v", err)
	}

	// sum(0x00, 0x01, 0x01, 0x00) = 0x0002, two's complement 0xFFFE
	want := []byte{StartOfFrame, 0x00, 0x01, byte(OperatorGet), 0x00, 0xFE, 0xFF, EndOfFrame}
	if !bytes.Equal(frame, want) {
		t.Errorf("got % X, want % X", frame, want)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	a, _ := Encode(OpNoiseCancelling, OperatorSetGet, []byte{0x01})
	b, _ := Encode(OpNoiseCancelling, OperatorSetGet, []byte{0x01})
	if !bytes.Equal(a, b) {
		t.Errorf("same input encoded differently: % X vs % X", a, b)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		opcode   Opcode
		operator Operator
		payload  []byte
	}{
		{name: "empty payload", opcode: OpConnect, operator: OperatorGet},
		{name: "one byte", opcode: OpAutoOff, operator: OperatorSetGet, payload: []byte{20}},
		{name: "name", opcode: OpDeviceName, operator: OperatorSetGet, payload: []byte("Living Room Cans")},
		{name: "max payload", opcode: OpDeviceName, operator: OperatorStatus, payload: bytes.Repeat([]byte{0xFF}, MaxPayloadSize)},
		{name: "payload with markers", opcode: OpPromptLanguage, operator: OperatorStatus, payload: []byte{StartOfFrame, EndOfFrame}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.opcode, tt.operator, tt.payload)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if len(data) != MinFrameSize+len(tt.payload) {
				t.Errorf("length: got %d, want %d", len(data), MinFrameSize+len(tt.payload))
			}

			frame, n, err := DecodeFrame(data)
			if err != nil {
				t.Fatalf("DecodeFrame: %v", err)
			}
			if n != len(data) {
				t.Errorf("consumed: got %d, want %d", n, len(data))
			}
			if frame.Opcode != tt.opcode || frame.Operator != tt.operator {
				t.Errorf("header: got %s/%s, want %s/%s", frame.Opcode, frame.Operator, tt.opcode, tt.operator)
			}
			if !bytes.Equal(frame.Payload, tt.payload) && len(tt.payload) > 0 {
				t.Errorf("payload: got % X, want % X", frame.Payload, tt.payload)
			}
		})
	}
}

func TestEncodePayloadTooLarge(t *testing.T) {
	_, err := Encode(OpDeviceName, OperatorSetGet, make([]byte, MaxPayloadSize+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("got %v, want ErrPayloadTooLarge", err)
	}
}

func TestDecodeChecksumMismatch(t *testing.T) {
	data, _ := Encode(OpNoiseCancelling, OperatorStatus, []byte{0x01})
	data[len(data)-2] ^= 0x01

	_, _, err := DecodeFrame(data)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("got %v, want ErrChecksumMismatch", err)
	}
}

func TestDecodeCorruptedPayload(t *testing.T) {
	data, _ := Encode(OpAutoOff, OperatorStatus, []byte{20})
	data[HeaderSize] = 40

	_, _, err := DecodeResponse(data, OpAutoOff)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("got %v, want ErrChecksumMismatch", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	data, _ := Encode(OpDeviceName, OperatorStatus, []byte("QC35"))

	for i := 0; i < len(data); i++ {
		_, _, err := DecodeFrame(data[:i])
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("prefix %d: got %v, want ErrTruncated", i, err)
		}
	}
}

func TestDecodeTrailingBytes(t *testing.T) {
	first, _ := Encode(OpAutoOff, OperatorStatus, []byte{5})
	second, _ := Encode(OpConnect, OperatorStatus, nil)

	frame, n, err := DecodeFrame(append(first, second...))
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if n != len(first) || frame.Opcode != OpAutoOff {
		t.Errorf("got %s consuming %d, want %s consuming %d", frame.Opcode, n, OpAutoOff, len(first))
	}
}

func TestDecodeMalformed(t *testing.T) {
	good, _ := Encode(OpConnect, OperatorStatus, nil)

	badStart := append([]byte{}, good...)
	badStart[0] = 0x00
	if _, _, err := DecodeFrame(badStart); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("bad start: got %v, want ErrMalformedFrame", err)
	}

	badEnd := append([]byte{}, good...)
	badEnd[len(badEnd)-1] = 0x00
	if _, _, err := DecodeFrame(badEnd); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("bad end: got %v, want ErrMalformedFrame", err)
	}
}

func TestDecodeNeverPanics(t *testing.T) {
	inputs := [][]byte{
		nil,
		{StartOfFrame},
		{StartOfFrame, 0xFF, 0xFF, 0xFF, 0xFF},
		{StartOfFrame, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00},
		bytes.Repeat([]byte{StartOfFrame}, 300),
		bytes.Repeat([]byte{0x00}, 16),
	}
	for _, in := range inputs {
		if _, _, err := DecodeResponse(in, OpConnect); err == nil {
			t.Errorf("input % X decoded without error", in)
		}
	}
}

func TestDecodeResponse(t *testing.T) {
	okFrame, _ := Encode(OpNoiseCancelling, OperatorStatus, []byte{0x01})
	errFrame, _ := Encode(OpNoiseCancelling, OperatorError, []byte{DeviceErrInvalidData})
	otherOp, _ := Encode(OpAutoOff, OperatorStatus, []byte{0x05})
	echoed, _ := Encode(OpNoiseCancelling, OperatorSetGet, []byte{0x01})

	resp, _, err := DecodeResponse(okFrame, OpNoiseCancelling)
	if err != nil || resp.Status != StatusOK {
		t.Errorf("ok frame: got %+v, %v", resp, err)
	}

	resp, _, err = DecodeResponse(errFrame, OpNoiseCancelling)
	if err != nil || resp.Status != StatusDeviceError || resp.ErrorCode() != DeviceErrInvalidData {
		t.Errorf("error frame: got %+v, %v", resp, err)
	}

	if _, _, err := DecodeResponse(otherOp, OpNoiseCancelling); !errors.Is(err, ErrUnexpectedOpcode) {
		t.Errorf("other opcode: got %v, want ErrUnexpectedOpcode", err)
	}

	if _, _, err := DecodeResponse(echoed, OpNoiseCancelling); !errors.Is(err, ErrUnexpectedOperator) {
		t.Errorf("echoed request: got %v, want ErrUnexpectedOperator", err)
	}
}

func TestBuildSettingCmd(t *testing.T) {
	tests := []struct {
		setting     settings.Setting
		wantOpcode  Opcode
		wantPayload []byte
	}{
		{setting: settings.NoiseCancellingSetting(settings.NoiseCancellingHigh), wantOpcode: OpNoiseCancelling, wantPayload: []byte{0x01}},
		{setting: settings.AutoOffSetting(settings.AutoOff180Min), wantOpcode: OpAutoOff, wantPayload: []byte{180}},
		{setting: settings.PromptLanguageSetting(settings.PromptLanguageFR), wantOpcode: OpPromptLanguage, wantPayload: []byte{0x22}},
		{setting: settings.NameSetting(settings.NewDeviceName("Cans")), wantOpcode: OpDeviceName, wantPayload: []byte("Cans")},
	}

	for _, tt := range tests {
		t.Run(tt.setting.String(), func(t *testing.T) {
			data, err := BuildSettingCmd(tt.setting)
			if err != nil {
				t.Fatalf("BuildSettingCmd: %v", err)
			}
			frame, _, err := DecodeFrame(data)
			if err != nil {
				t.Fatalf("DecodeFrame: %v", err)
			}
			if frame.Opcode != tt.wantOpcode || frame.Operator != OperatorSetGet {
				t.Errorf("header: got %s/%s", frame.Opcode, frame.Operator)
			}
			if !bytes.Equal(frame.Payload, tt.wantPayload) {
				t.Errorf("payload: got % X, want % X", frame.Payload, tt.wantPayload)
			}
		})
	}
}

func TestChecksum(t *testing.T) {
	data := []byte{0x01, 0x06, 0x02, 0x01, 0x01}
	sum := calculateFrameChecksum(data)

	var total uint16
	for _, b := range data {
		total += uint16(b)
	}
	if total+sum != 0 {
		t.Errorf("checksum 0x%04X does not cancel sum 0x%04X", sum, total)
	}
}
