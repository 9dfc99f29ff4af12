package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "devlink",
		Short: "Talk to smart-home gateways over websocket",
		Long: `devlink connects to a device gateway, lists its devices, sends
device commands and streams sensor readings. It also runs a small
development gateway backed by mock or fixture devices.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./devlink.yaml when present)")

	rootCmd.AddCommand(
		gatewayCmd(&configPath),
		devicesCmd(&configPath),
		sendCmd(&configPath),
		watchCmd(&configPath),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "devlink %s (%s)\n", version, commit)
		},
	}
}
