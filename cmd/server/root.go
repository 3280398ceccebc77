package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"batchauction/config"
	"batchauction/infra/log"
)

const (
	homeFlag     = "home"
	logLevelFlag = "log-level"
)

// RootCommand loads the configuration before any subcommand runs and
// replaces *logger with one built from it.
func RootCommand(v *viper.Viper, conf *config.Config, logger *log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "auctiond",
		Short:         "Sealed-order batch auction house",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlag("log_level", cmd.Flags().Lookup(logLevelFlag)); err != nil {
				return err
			}
			home, err := cmd.Flags().GetString(homeFlag)
			if err != nil {
				return err
			}

			pconf, err := config.Load(v, home)
			if err != nil {
				return err
			}
			*conf = *pconf

			l, err := log.NewDefaultLogger(conf.LogFormat, conf.LogLevel)
			if err != nil {
				return err
			}
			*logger = l
			return nil
		},
	}
	cmd.PersistentFlags().String(homeFlag, os.ExpandEnv(filepath.Join("$HOME", config.DefaultHomeDir)), "directory for config and data")
	cmd.PersistentFlags().String(logLevelFlag, conf.LogLevel, "log level")
	return cmd
}
