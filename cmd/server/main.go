package main

import (
	"os"

	"github.com/spf13/viper"

	"batchauction/config"
	"batchauction/infra/log"
)

func main() {
	conf := config.DefaultConfig()
	logger := log.MustNewDefaultLogger(conf.LogFormat, conf.LogLevel)

	cmd := RootCommand(viper.New(), conf, &logger)
	cmd.AddCommand(
		ServeCommand(conf, &logger),
		InspectCommand(conf, &logger),
	)
	if err := cmd.Execute(); err != nil {
		logger.Error("command failed", "err", err)
		os.Exit(1)
	}
}
