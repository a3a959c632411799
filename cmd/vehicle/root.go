package main

import (
	"github.com/spf13/cobra"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "vehicle",
	Short: "Goliath teleoperated vehicle",
	Long: `Goliath vehicle - serves operator control sessions over WebSocket.

One operator at a time drives the tracks through /ws/control. The vehicle
reports status back over the same connection, mirrors session state on the
SSD1306 status display, streams H.264 over RTP to the operator, and publishes
telemetry on a local ZeroMQ bus.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", "./config", "Directory containing vehicle_config.yaml")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
