package main

import (
	"github.com/spf13/cobra"
)

var (
	configDir  string
	vehicleURL string
)

var rootCmd = &cobra.Command{
	Use:   "operator",
	Short: "Goliath operator station",
	Long: `Goliath operator - drives a vehicle from controller datagrams.

Controller input arrives as JSON datagrams {"thrust": f, "steer": f} on the
configured UDP address and is forwarded to the vehicle as motor commands.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", "./config", "Directory containing operator_config.yaml")
	rootCmd.PersistentFlags().StringVarP(&vehicleURL, "url", "u", "", "Vehicle WebSocket URL, overrides vehicle_url")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
