// cmd/based/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"based-connect/internal/config"
	"based-connect/internal/driver"
	"based-connect/internal/model"
	"based-connect/internal/service"
	"based-connect/internal/utils"
	"based-connect/pkg/settings"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootFlags holds what the root command's flags write to directly
type rootFlags struct {
	configPath string
	verbose    bool
	settings   []requestedSetting
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		address := ""
		if args := root.Flags().Args(); len(args) == 1 {
			address = args[0]
		}
		fmt.Fprintln(os.Stderr, utils.DescribeError(err, address).Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	v := config.New()

	cmd := &cobra.Command{
		Use:   "based [options] <address>",
		Short: "Configure Bose Bluetooth headphones",
		Long: `based changes the settings of Bose Bluetooth headphones over their control
channel. The headphones must already be paired.

Settings are applied in the order they are given. The first failure stops the
run; later settings are not sent.`,
		Example: `  # Turn noise cancelling down and rename the headphones
  based -c low -n "Office QC35" 04:52:C7:0A:1B:2C

  # Never power off, French voice prompts
  based --auto-off never --prompt-language fr 04:52:C7:0A:1B:2C

  # Talk to the emulator instead of a real headset
  based --transport tcp -l de 127.0.0.1:7000`,
		Args:          addressArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, flags)
			if err != nil {
				return err
			}

			list, err := parseSettings(flags.settings)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd.ErrOrStderr(), cfg, args[0], list)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Config file (default: $HOME/.config/based/based.yaml)")
	pf.String("transport", "", "Transport to the headset: rfcomm, serial or tcp (default rfcomm)")
	pf.Int("channel", 0, "RFCOMM channel of the control service (default 8)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Log protocol traffic to stderr")

	mustBind(v, "transport.type", pf.Lookup("transport"))
	mustBind(v, "transport.channel", pf.Lookup("channel"))

	registerSettingFlags(cmd.Flags(), &flags.settings)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return utils.UsageError(err.Error())
	})

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newConfigCmd(v, flags))

	return cmd
}

// addressArgs requires exactly one headset address
func addressArgs(cmd *cobra.Command, args []string) error {
	switch {
	case len(args) == 0:
		return utils.UsageError("An address argument must be given.")
	case len(args) > 1:
		return utils.UsageError("Only one address argument may be given.")
	}
	return nil
}

func loadConfig(v *viper.Viper, flags *rootFlags) (*config.Config, error) {
	if flags.verbose {
		v.Set("logging.level", "debug")
	}
	return config.Load(v, flags.configPath)
}

func run(ctx context.Context, stderr io.Writer, cfg *config.Config, address string, list []settings.Setting) (err error) {
	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return err
	}
	defer func() {
		if syncErr := utils.CloseLogger(logger); err == nil {
			err = syncErr
		}
	}()

	for _, s := range list {
		if s.Kind == settings.KindName && s.Name.Truncated() {
			fmt.Fprintf(stderr, "Name exceeds %d character maximum. Truncating.\n", settings.MaxNameLen)
			logger.Debug("Name truncated",
				zap.Int("requested_length", s.Name.RequestedLen()),
				zap.String("name", s.Name.String()),
			)
		}
	}

	registry := driver.NewRegistry(logger)
	driver.RegisterDefaultDrivers(registry)
	svc := service.NewSettingsService(cfg, registry, logger)

	report, err := svc.Apply(ctx, service.ApplyRequest{Address: address, Settings: list})
	if report != nil {
		logger.Debug("Run finished",
			zap.String("operation_id", report.OperationID.String()),
			zap.Int("applied", report.Applied),
			zap.Int("requested", len(list)),
		)
		if cfg.IsDebugEnabled() {
			printReport(stderr, report)
		}
	}
	if err != nil && errors.Is(err, context.Canceled) {
		return fmt.Errorf("interrupted: %w", err)
	}
	return err
}

func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

// printReport writes one line per operation of the run
func printReport(w io.Writer, report *service.ApplyReport) {
	ops := append([]*model.SettingOperation{report.Connect}, report.Operations...)
	for _, op := range ops {
		duration := "-"
		if op.DurationMs != nil {
			duration = fmt.Sprintf("%dms", *op.DurationMs)
		}
		fmt.Fprintf(w, "%-22s %-8s %-8s %s\n", op.OperationType, op.Status, duration, op.Value)
	}
}
