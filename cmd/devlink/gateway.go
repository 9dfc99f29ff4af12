package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saker-ai/devlink/internal/gateway"
)

func gatewayCmd(configPath *string) *cobra.Command {
	var advertise bool

	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Run the development gateway",
		Long: `Run a gateway that answers hello, serves the configured devices,
pushes their readings and acknowledges commands.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			source, err := a.deviceSource()
			if err != nil {
				return err
			}
			srv := gateway.New(gateway.Options{
				Addr:      a.cfg.Addr(),
				Path:      a.cfg.Server.Path,
				Dialect:   a.cfg.Gateway.Dialect,
				Advertise: advertise || a.cfg.Server.Advertise,
				Instance:  a.cfg.Server.Instance,
			}, source, a.metrics, a.logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() { errc <- srv.Run() }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("gateway shutdown failed", zap.Error(err))
				return err
			}
			return <-errc
		},
	}

	cmd.Flags().BoolVar(&advertise, "advertise", false, "announce the gateway over mDNS")

	return cmd
}
