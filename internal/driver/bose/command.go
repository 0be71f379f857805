// internal/driver/bose/command.go
package bose

import (
	"fmt"

	"based-connect/pkg/settings"
)

// settingOpcodes maps each setting kind to the opcode that updates it
var settingOpcodes = map[settings.Kind]Opcode{
	settings.KindName:            OpDeviceName,
	settings.KindNoiseCancelling: OpNoiseCancelling,
	settings.KindAutoOff:         OpAutoOff,
	settings.KindPromptLanguage:  OpPromptLanguage,
}

// OpcodeFor returns the opcode updating the given setting kind
func OpcodeFor(kind settings.Kind) (Opcode, error) {
	op, ok := settingOpcodes[kind]
	if !ok {
		return 0, fmt.Errorf("no opcode for setting %s", kind)
	}
	return op, nil
}

// BuildConnectCmd constructs the handshake frame.
//
// Frame structure:
//
//	[SOF][0x00][0x01][GET][0x00][CHECKSUM_L][CHECKSUM_H][EOF]
func BuildConnectCmd() ([]byte, error) {
	return EncodeRequest(OpConnect, nil)
}

// BuildSettingCmd constructs the SetGet frame for one setting change.
//
// Frame structure:
//
//	[SOF][BLOCK][FUNCTION][SETGET][LEN][VALUE...][CHECKSUM_L][CHECKSUM_H][EOF]
//
// Names are limited to settings.MaxNameLen bytes; every other setting is a one-byte code.
func BuildSettingCmd(setting settings.Setting) ([]byte, error) {
	op, err := OpcodeFor(setting.Kind)
	if err != nil {
		return nil, err
	}

	payload := setting.Payload()
	if setting.Kind == settings.KindName {
		payload = []byte(settings.TruncateName(setting.Name.String()))
	}

	return Encode(op, OperatorSetGet, payload)
}
