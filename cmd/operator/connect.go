package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/goliath-teleop/core/domain/operator"
	"github.com/goliath-teleop/core/pkg/config"
	customlog "github.com/goliath-teleop/core/pkg/log"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to the vehicle and forward controller input",
	RunE:  runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOperatorConfig(configDir)
	if err != nil {
		return err
	}
	if vehicleURL != "" {
		cfg.VehicleURL = vehicleURL
	}
	logger, err := customlog.NewLogrusLogger(cfg.Logging.Level, cfg.Logging.LogPath, "operator")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	input, err := operator.ListenController(cfg.ControllerListenAddress)
	if err != nil {
		return err
	}
	p, err := operator.NewClient(cfg, logger).Connect(ctx)
	if err != nil {
		_ = input.Close()
		return err
	}
	return operator.NewSession(p, input, logger).Run(ctx)
}
