package emulator

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"based-connect/internal/config"
	"based-connect/internal/driver/bose"
	"based-connect/internal/protocol"
	"based-connect/pkg/settings"
)

func defaultState(t *testing.T) State {
	t.Helper()
	state, err := StateFromConfig(config.EmulatorConfig{
		Name:            "Bose QC35",
		NoiseCancelling: "high",
		AutoOff:         "20",
		PromptLanguage:  "en",
	})
	if err != nil {
		t.Fatalf("StateFromConfig: %v", err)
	}
	return state
}

// startServer serves headset on a loopback port until the test ends
func startServer(t *testing.T, headset *Headset) *net.TCPAddr {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewServer(headset, zaptest.NewLogger(t)).Serve(ctx, listener)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})

	return listener.Addr().(*net.TCPAddr)
}

func dialSession(t *testing.T, addr *net.TCPAddr, receive time.Duration) *bose.Session {
	t.Helper()

	logger := zaptest.NewLogger(t)
	conn := protocol.NewTCPConnection(&protocol.TCPConfig{
		Host:           addr.IP.String(),
		Port:           addr.Port,
		ConnectTimeout: time.Second,
		Timeouts:       protocol.Timeouts{Send: time.Second, Receive: receive},
	}, logger)

	if err := conn.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return bose.NewSession(conn, bose.WithLogger(logger))
}

// roundTrip writes a raw frame and decodes the single frame written back
func roundTrip(t *testing.T, conn net.Conn, frame []byte) *bose.Frame {
	t.Helper()

	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var buf []byte
	chunk := make([]byte, bose.MaxFrameSize)
	for {
		n, err := conn.Read(chunk)
		buf = append(buf, chunk[:n]...)
		reply, _, decodeErr := bose.DecodeFrame(buf)
		if decodeErr == nil {
			return reply
		}
		if !errors.Is(decodeErr, bose.ErrTruncated) {
			t.Fatalf("decode reply: %v", decodeErr)
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
	}
}

func mustEncode(t *testing.T, op bose.Opcode, operator bose.Operator, payload []byte) []byte {
	t.Helper()
	frame, err := bose.Encode(op, operator, payload)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return frame
}

func TestStateFromConfig(t *testing.T) {
	state := defaultState(t)
	if state.NoiseCancelling != settings.NoiseCancellingHigh || state.AutoOff != settings.AutoOff20Min ||
		state.PromptLanguage != settings.PromptLanguageEN || state.Name != "Bose QC35" {
		t.Errorf("state: %+v", state)
	}

	if _, err := StateFromConfig(config.EmulatorConfig{NoiseCancelling: "max", AutoOff: "20", PromptLanguage: "en"}); err == nil {
		t.Error("expected error for invalid noise cancelling level")
	}
	if _, err := StateFromConfig(config.EmulatorConfig{NoiseCancelling: "off", AutoOff: "15", PromptLanguage: "en"}); err == nil {
		t.Error("expected error for invalid auto-off")
	}
}

func TestParseFault(t *testing.T) {
	for name, want := range map[string]Fault{
		"corrupt":  FaultCorruptChecksum,
		"DROP":     FaultDropResponse,
		"wrong-op": FaultWrongOpcode,
		"reject":   FaultReject,
		"split":    FaultSplitResponse,
	} {
		got, err := ParseFault(name)
		if err != nil || got != want {
			t.Errorf("ParseFault(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseFault("explode"); err == nil {
		t.Error("expected error for unknown fault")
	}

	op, fault, err := ParseFaultSpec("noise-cancelling=corrupt")
	if err != nil || op != bose.OpNoiseCancelling || fault != FaultCorruptChecksum {
		t.Errorf("ParseFaultSpec = %v, %v, %v", op, fault, err)
	}
	for _, spec := range []string{"noise-cancelling", "volume=drop", "auto-off=explode"} {
		if _, _, err := ParseFaultSpec(spec); err == nil {
			t.Errorf("ParseFaultSpec(%q): expected error", spec)
		}
	}
}

func TestSessionAppliesSettings(t *testing.T) {
	headset := NewHeadset(defaultState(t), zaptest.NewLogger(t))
	addr := startServer(t, headset)
	session := dialSession(t, addr, time.Second)
	ctx := context.Background()

	if err := session.InitConnection(ctx); err != nil {
		t.Fatalf("InitConnection: %v", err)
	}

	list := []settings.Setting{
		settings.NameSetting(settings.NewDeviceName("Kitchen")),
		settings.NoiseCancellingSetting(settings.NoiseCancellingLow),
		settings.AutoOffSetting(settings.AutoOff60Min),
		settings.PromptLanguageSetting(settings.PromptLanguageDE),
	}
	applied, err := session.Apply(ctx, list)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if applied != len(list) {
		t.Errorf("applied: got %d, want %d", applied, len(list))
	}

	want := State{
		Name:            "Kitchen",
		NoiseCancelling: settings.NoiseCancellingLow,
		AutoOff:         settings.AutoOff60Min,
		PromptLanguage:  settings.PromptLanguageDE,
	}
	if got := headset.State(); got != want {
		t.Errorf("state: got %+v, want %+v", got, want)
	}
	if session.State() != bose.StateReady {
		t.Errorf("session state: got %s", session.State())
	}

	received := headset.Received()
	if len(received) != 5 || received[0] != bose.OpConnect || received[4] != bose.OpPromptLanguage {
		t.Errorf("received: %v", received)
	}
}

func TestSettingBeforeHandshakeRejected(t *testing.T) {
	headset := NewHeadset(defaultState(t), zaptest.NewLogger(t))
	addr := startServer(t, headset)

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	reply := roundTrip(t, conn, mustEncode(t, bose.OpAutoOff, bose.OperatorSetGet, []byte{60}))
	if reply.Operator != bose.OperatorError || reply.Payload[0] != bose.DeviceErrInvalidState {
		t.Fatalf("reply: %+v", reply)
	}

	reply = roundTrip(t, conn, mustEncode(t, bose.OpConnect, bose.OperatorGet, nil))
	if reply.Operator != bose.OperatorStatus || string(reply.Payload) != FirmwareVersion {
		t.Fatalf("handshake reply: %+v", reply)
	}

	reply = roundTrip(t, conn, mustEncode(t, bose.OpAutoOff, bose.OperatorSetGet, []byte{60}))
	if reply.Operator != bose.OperatorStatus || reply.Payload[0] != 60 {
		t.Fatalf("reply after handshake: %+v", reply)
	}
	if headset.State().AutoOff != settings.AutoOff60Min {
		t.Errorf("auto-off not updated: %v", headset.State().AutoOff)
	}
}

func TestErrorReplies(t *testing.T) {
	headset := NewHeadset(defaultState(t), zaptest.NewLogger(t))
	addr := startServer(t, headset)

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	roundTrip(t, conn, mustEncode(t, bose.OpConnect, bose.OperatorGet, nil))

	tests := []struct {
		name     string
		op       bose.Opcode
		operator bose.Operator
		payload  []byte
		want     byte
	}{
		{name: "invalid level", op: bose.OpNoiseCancelling, operator: bose.OperatorSetGet, payload: []byte{0x07}, want: bose.DeviceErrInvalidData},
		{name: "invalid auto-off", op: bose.OpAutoOff, operator: bose.OperatorSetGet, payload: []byte{15}, want: bose.DeviceErrInvalidData},
		{name: "name over buffer", op: bose.OpDeviceName, operator: bose.OperatorSetGet, payload: []byte(strings.Repeat("é", 16)), want: bose.DeviceErrInvalidData},
		{name: "two byte language", op: bose.OpPromptLanguage, operator: bose.OperatorSetGet, payload: []byte{0x21, 0x21}, want: bose.DeviceErrInvalidData},
		{name: "status operator", op: bose.OpAutoOff, operator: bose.OperatorStatus, payload: []byte{20}, want: bose.DeviceErrOperatorNotSupp},
		{name: "unknown function", op: bose.MakeOpcode(0x01, 0x7F), operator: bose.OperatorGet, want: bose.DeviceErrFunctionNotSupp},
		{name: "unknown block", op: bose.MakeOpcode(0x09, 0x01), operator: bose.OperatorGet, want: bose.DeviceErrBlockNotSupp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := roundTrip(t, conn, mustEncode(t, tt.op, tt.operator, tt.payload))
			if reply.Opcode != tt.op || reply.Operator != bose.OperatorError {
				t.Fatalf("reply: %+v", reply)
			}
			if reply.Payload[0] != tt.want {
				t.Errorf("error code: got 0x%02X, want 0x%02X", reply.Payload[0], tt.want)
			}
		})
	}

	if state := headset.State(); state != defaultState(t) {
		t.Errorf("rejected requests changed state: %+v", state)
	}
}

func TestCorruptRequestAndResync(t *testing.T) {
	headset := NewHeadset(defaultState(t), zaptest.NewLogger(t))
	addr := startServer(t, headset)

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	corrupt := mustEncode(t, bose.OpConnect, bose.OperatorGet, nil)
	corrupt[len(corrupt)-2] ^= 0x01
	reply := roundTrip(t, conn, corrupt)
	if reply.Operator != bose.OperatorError || reply.Payload[0] != bose.DeviceErrChecksum {
		t.Fatalf("reply to corrupt frame: %+v", reply)
	}

	noisy := append([]byte{0x00, 0x42}, mustEncode(t, bose.OpConnect, bose.OperatorGet, nil)...)
	reply = roundTrip(t, conn, noisy)
	if reply.Opcode != bose.OpConnect || reply.Operator != bose.OperatorStatus {
		t.Fatalf("reply after leading garbage: %+v", reply)
	}
}

func TestFaults(t *testing.T) {
	tests := []struct {
		name    string
		fault   Fault
		wantErr error
	}{
		{name: "corrupt checksum", fault: FaultCorruptChecksum, wantErr: bose.ErrChecksumMismatch},
		{name: "drop response", fault: FaultDropResponse, wantErr: protocol.ErrReceiveTimeout},
		{name: "wrong opcode", fault: FaultWrongOpcode, wantErr: bose.ErrUnexpectedOpcode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headset := NewHeadset(defaultState(t), zaptest.NewLogger(t))
			headset.InjectFault(bose.OpNoiseCancelling, tt.fault)
			addr := startServer(t, headset)
			session := dialSession(t, addr, 200*time.Millisecond)
			ctx := context.Background()

			if err := session.InitConnection(ctx); err != nil {
				t.Fatalf("InitConnection: %v", err)
			}

			applied, err := session.Apply(ctx, []settings.Setting{
				settings.NoiseCancellingSetting(settings.NoiseCancellingOff),
				settings.AutoOffSetting(settings.AutoOffNever),
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Apply error: got %v, want %v", err, tt.wantErr)
			}
			if applied != 0 {
				t.Errorf("applied: got %d, want 0", applied)
			}
			if session.State() != bose.StateFailed {
				t.Errorf("session state: got %s", session.State())
			}

			for _, op := range headset.Received() {
				if op == bose.OpAutoOff {
					t.Error("auto-off reached the headset after a failed exchange")
				}
			}
		})
	}
}

func TestRejectFault(t *testing.T) {
	headset := NewHeadset(defaultState(t), zaptest.NewLogger(t))
	headset.InjectFault(bose.OpDeviceName, FaultReject)
	addr := startServer(t, headset)
	session := dialSession(t, addr, time.Second)
	ctx := context.Background()

	if err := session.InitConnection(ctx); err != nil {
		t.Fatalf("InitConnection: %v", err)
	}

	err := session.SetName(ctx, settings.NewDeviceName("Desk"))
	var rejected *bose.DeviceRejectedError
	if !errors.As(err, &rejected) || rejected.Code != bose.DeviceErrRuntime {
		t.Fatalf("SetName error: %v", err)
	}
	if headset.State().Name != "Bose QC35" {
		t.Errorf("rejected name was stored: %q", headset.State().Name)
	}

	headset.InjectFault(bose.OpDeviceName, FaultNone)
	if err := session.SetName(ctx, settings.NewDeviceName("Desk")); !errors.Is(err, bose.ErrSessionFailed) {
		t.Errorf("failed session accepted another command: %v", err)
	}
}

func TestSplitResponse(t *testing.T) {
	headset := NewHeadset(defaultState(t), zaptest.NewLogger(t))
	headset.InjectFault(bose.OpConnect, FaultSplitResponse)
	addr := startServer(t, headset)
	session := dialSession(t, addr, time.Second)

	if err := session.InitConnection(context.Background()); err != nil {
		t.Fatalf("InitConnection with split response: %v", err)
	}
}

func TestMultibyteNameFillsBuffer(t *testing.T) {
	headset := NewHeadset(defaultState(t), zaptest.NewLogger(t))
	addr := startServer(t, headset)
	session := dialSession(t, addr, time.Second)
	ctx := context.Background()

	if err := session.InitConnection(ctx); err != nil {
		t.Fatalf("InitConnection: %v", err)
	}

	name := settings.NewDeviceName(strings.Repeat("é", 20))
	if err := session.SetName(ctx, name); err != nil {
		t.Fatalf("SetName: %v", err)
	}
	if got := headset.State().Name; got != strings.Repeat("é", 15) {
		t.Errorf("name: got %q (%d bytes)", got, len(got))
	}
}

// lateListener hands out one connection only after the server has begun
// shutting down, then reports itself closed.
type lateListener struct {
	cancel context.CancelFunc
	conn   net.Conn
	closed chan struct{}
	once   sync.Once
	calls  int
}

func (l *lateListener) Accept() (net.Conn, error) {
	l.calls++
	if l.calls > 1 {
		return nil, net.ErrClosed
	}
	l.cancel()
	<-l.closed
	return l.conn, nil
}

func (l *lateListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *lateListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}
}

func TestServeClosesConnectionAcceptedDuringShutdown(t *testing.T) {
	headset := NewHeadset(defaultState(t), zaptest.NewLogger(t))
	server, client := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listener := &lateListener{cancel: cancel, conn: server, closed: make(chan struct{})}

	done := make(chan error, 1)
	go func() {
		done <- NewServer(headset, zaptest.NewLogger(t)).Serve(ctx, listener)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}

	client.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := client.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Errorf("late connection left open: read returned %v", err)
	}
}
