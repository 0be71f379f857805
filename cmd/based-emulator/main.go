// cmd/based-emulator/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"based-connect/internal/config"
	"based-connect/internal/emulator"
	"based-connect/internal/utils"
)

type emulatorFlags struct {
	configPath string
	faults     []string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &emulatorFlags{}
	v := config.New()

	cmd := &cobra.Command{
		Use:   "based-emulator",
		Short: "Emulate a headset's control channel over TCP",
		Long: `based-emulator answers the headset command protocol on a TCP port, so that
'based --transport tcp <host:port>' can be exercised without hardware.

Faults can be injected per opcode to reproduce misbehaving devices.
Press Ctrl+C to stop.`,
		Example: `  # Listen on the default address
  based-emulator

  # Corrupt every noise-cancelling reply
  based-emulator --listen 127.0.0.1:7000 --fault noise-cancelling=corrupt`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.verbose {
				v.Set("logging.level", "debug")
			}
			cfg, err := config.Load(v, flags.configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, flags.faults)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "Config file (default: $HOME/.config/based/based.yaml)")
	cmd.Flags().String("listen", "", "TCP address to listen on (default 127.0.0.1:7000)")
	cmd.Flags().StringArrayVar(&flags.faults, "fault", nil, "Inject a fault as <opcode>=<corrupt|drop|wrong-op|reject|split> (repeatable)")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log every frame")

	if err := v.BindPFlag("emulator.listen", cmd.Flags().Lookup("listen")); err != nil {
		panic(err)
	}

	return cmd
}

func run(ctx context.Context, cfg *config.Config, faults []string) (err error) {
	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return err
	}
	defer func() {
		if syncErr := utils.CloseLogger(logger); err == nil {
			err = syncErr
		}
	}()

	state, err := emulator.StateFromConfig(cfg.Emulator)
	if err != nil {
		return fmt.Errorf("invalid emulator settings: %w", err)
	}

	headset := emulator.NewHeadset(state, logger)
	for _, spec := range faults {
		op, fault, err := emulator.ParseFaultSpec(spec)
		if err != nil {
			return err
		}
		headset.InjectFault(op, fault)
		logger.Info("Fault injected", zap.Stringer("opcode", op), zap.Stringer("fault", fault))
	}

	fmt.Fprintf(os.Stderr, "Emulating %q on %s\n", state.Name, cfg.Emulator.Listen)
	if err := emulator.NewServer(headset, logger).ListenAndServe(ctx, cfg.Emulator.Listen); err != nil {
		utils.LogError(logger, "Emulator failed", err, zap.String("listen", cfg.Emulator.Listen))
		return err
	}
	return nil
}
