package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func devicesCmd(configPath *string) *cobra.Command {
	var (
		url     string
		asJSON  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List the devices a gateway reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			client, err := a.connect(ctx, url, timeout)
			if err != nil {
				return err
			}
			defer client.Disconnect()

			list, err := client.Devices()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tONLINE\tBATTERY")
			for _, d := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%.0f%%\n", d.ID, d.Name, d.Type, d.Status.Online, d.Status.BatteryLevel)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "gateway websocket url")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "connect and registry timeout")

	return cmd
}
