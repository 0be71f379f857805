package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"based-connect/internal/driver"
)

func newConfigCmd(v *viper.Viper, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration that a run would use: built-in defaults, overridden
by the config file, BASED_* environment variables and command line flags.
The headset brands with a driver are listed at the end.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, flags)
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			w := cmd.OutOrStdout()
			if _, err := w.Write(out); err != nil {
				return err
			}

			registry := driver.NewRegistry(zap.NewNop())
			driver.RegisterDefaultDrivers(registry)
			_, err = fmt.Fprintf(w, "# supported brands: %v\n", registry.GetSupportedBrands())
			return err
		},
	}
}
