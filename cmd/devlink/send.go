package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/saker-ai/devlink/pkg/protocol"
	"github.com/saker-ai/devlink/pkg/session"
)

func sendCmd(configPath *string) *cobra.Command {
	var (
		url     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send <device-id> <command> [key=value...]",
		Short: "Send a command to a device and wait for the acknowledgement",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[2:])
			if err != nil {
				return err
			}
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

			acks := make(chan protocol.Object, 1)
			client.On(protocol.TypeCommand, func(ev session.BusEvent) {
				if obj, ok := ev.Payload.(protocol.Object); ok {
					select {
					case acks <- obj:
					default:
					}
				}
			})

			err = client.SendCommand(ctx, protocol.ControlCommand{
				DeviceID: args[0],
				Command:  args[1],
				Params:   params,
			})
			if err != nil {
				return err
			}
			select {
			case ack := <-acks:
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s (%s)\n", ack.String("device_id"), ack.String("command"), ack.String("state"), ack.String("command_id"))
				return nil
			case <-ctx.Done():
				return fmt.Errorf("waiting for acknowledgement: %w", ctx.Err())
			}
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "gateway websocket url")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "overall timeout")

	return cmd
}

// parseParams turns key=value pairs into command params. Numbers and
// booleans are converted.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q, want key=value", pair)
		}
		params[key] = parseValue(raw)
	}
	return params, nil
}

func parseValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	return raw
}
