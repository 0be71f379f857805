package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"based-connect/internal/config"
	"based-connect/internal/driver/bose"
	"based-connect/internal/emulator"
	"based-connect/internal/utils"
	"based-connect/pkg/settings"
)

// execute runs the root command with args and returns its error and stderr
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func startEmulator(t *testing.T) (*emulator.Headset, string) {
	t.Helper()

	state, err := emulator.StateFromConfig(config.EmulatorConfig{
		Name:            "Bose QC35",
		NoiseCancelling: "high",
		AutoOff:         "20",
		PromptLanguage:  "en",
	})
	if err != nil {
		t.Fatalf("StateFromConfig: %v", err)
	}
	headset := emulator.NewHeadset(state, zaptest.NewLogger(t))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		emulator.NewServer(headset, zaptest.NewLogger(t)).Serve(ctx, listener)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return headset, listener.Addr().String()
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "no address", args: []string{"-c", "high"}, wantErr: "An address argument must be given."},
		{name: "two addresses", args: []string{"04:52:C7:0A:1B:2C", "04:52:C7:0A:1B:2D"}, wantErr: "Only one address argument may be given."},
		{name: "unknown flag", args: []string{"--volume", "3", "04:52:C7:0A:1B:2C"}, wantErr: "unknown flag: --volume"},
		{name: "missing value", args: []string{"04:52:C7:0A:1B:2C", "-o"}, wantErr: "flag needs an argument"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			var friendly utils.UserFriendlyError
			if !errors.As(err, &friendly) || friendly.Kind != utils.ErrorKindUsage {
				t.Fatalf("error is not a usage error: %#v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error: got %q want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestInvalidValueRejectedBeforeConnecting(t *testing.T) {
	headset, address := startEmulator(t)

	_, _, err := execute(t, "--transport", "tcp", "-c", "high", "-o", "15", address)
	var validation *settings.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if validation.Kind != settings.KindAutoOff || validation.Value != "15" {
		t.Errorf("validation error: %+v", validation)
	}
	if received := headset.Received(); len(received) != 0 {
		t.Errorf("frames sent despite invalid value: %v", received)
	}
}

func TestAppliesSettingsInOrder(t *testing.T) {
	headset, address := startEmulator(t)
	longName := strings.Repeat("x", settings.MaxNameLen+4)

	_, stderr, err := execute(t, "--transport", "tcp",
		"-c", "low",
		"--name", longName,
		"-o", "40",
		"-c", "off",
		"--prompt-language=ja",
		address,
	)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if !strings.Contains(stderr, "Name exceeds 31 character maximum. Truncating.") {
		t.Errorf("missing truncation warning, stderr: %q", stderr)
	}

	state := headset.State()
	if state.Name != longName[:settings.MaxNameLen] {
		t.Errorf("name: got %q", state.Name)
	}
	if state.NoiseCancelling != settings.NoiseCancellingOff {
		t.Errorf("noise cancelling: got %s, want off (last flag wins)", state.NoiseCancelling)
	}
	if state.AutoOff != settings.AutoOff40Min || state.PromptLanguage != settings.PromptLanguageJA {
		t.Errorf("state: %+v", state)
	}

	want := []bose.Opcode{
		bose.OpConnect,
		bose.OpNoiseCancelling,
		bose.OpDeviceName,
		bose.OpAutoOff,
		bose.OpNoiseCancelling,
		bose.OpPromptLanguage,
	}
	received := headset.Received()
	if len(received) != len(want) {
		t.Fatalf("received: got %v, want %v", received, want)
	}
	for i := range want {
		if received[i] != want[i] {
			t.Errorf("frame %d: got %s, want %s", i, received[i], want[i])
		}
	}
}

func TestDeviceFailureReported(t *testing.T) {
	headset, address := startEmulator(t)
	headset.InjectFault(bose.OpNoiseCancelling, emulator.FaultCorruptChecksum)

	_, _, err := execute(t, "--transport", "tcp", "-c", "high", "-o", "20", address)
	if !errors.Is(err, bose.ErrChecksumMismatch) {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
	if report := utils.DescribeError(err, address); report.Kind != utils.ErrorKindProtocol {
		t.Errorf("report kind: got %s", report.Kind)
	}
	for _, op := range headset.Received() {
		if op == bose.OpAutoOff {
			t.Error("auto-off sent after the failed exchange")
		}
	}
}

func TestVersionCmd(t *testing.T) {
	stdout, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(stdout, "based version dev\n") {
		t.Errorf("output: %q", stdout)
	}
}

func TestConfigCmd(t *testing.T) {
	stdout, _, err := execute(t, "config", "--transport", "TCP", "--channel", "3")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	for _, want := range []string{"type: tcp", "channel: 3", "receive_timeout: 1s", "listen: 127.0.0.1:7000", "# supported brands: [BOSE]"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}
}

func TestConfigCmdInvalidChannel(t *testing.T) {
	_, _, err := execute(t, "config", "--channel", "31")
	if err == nil || !strings.Contains(err.Error(), "transport.channel") {
		t.Fatalf("expected channel validation error, got %v", err)
	}
}

func TestParseSettingsKeepsOrder(t *testing.T) {
	parsed, err := parseSettings([]requestedSetting{
		{kind: settings.KindPromptLanguage, value: "sv"},
		{kind: settings.KindAutoOff, value: "never"},
	})
	if err != nil {
		t.Fatalf("parseSettings: %v", err)
	}
	if len(parsed) != 2 || parsed[0].String() != "PROMPT_LANGUAGE=sv" || parsed[1].String() != "AUTO_OFF=never" {
		t.Errorf("parsed: %v", parsed)
	}
}

func TestHelpListsValues(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--help"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, want := range []string{"-c, --noise-cancelling level", "high, low, off", "never, 5, 20, 40, 60, 180"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("help missing %q", want)
		}
	}
}

func TestVerbosePrintsReport(t *testing.T) {
	headset, address := startEmulator(t)
	headset.InjectFault(bose.OpAutoOff, emulator.FaultReject)

	_, stderr, err := execute(t, "-v", "--transport", "tcp", "-l", "nl", "-o", "180", "-c", "low", address)
	var rejected *bose.DeviceRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected device rejection, got %v", err)
	}

	for _, want := range []string{"CONNECT", "SET_PROMPT_LANGUAGE    SUCCESS", "SET_AUTO_OFF           FAILED", "SET_NOISE_CANCELLING   SKIPPED"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("report missing %q:\n%s", want, stderr)
		}
	}
}
