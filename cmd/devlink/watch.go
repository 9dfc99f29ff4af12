package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/saker-ai/devlink/pkg/protocol"
	"github.com/saker-ai/devlink/pkg/session"
	"github.com/saker-ai/devlink/pkg/session/reconnect"
)

func watchCmd(configPath *string) *cobra.Command {
	var (
		url       string
		keepAlive bool
	)

	cmd := &cobra.Command{
		Use:   "watch [device-id...]",
		Short: "Stream sensor readings until interrupted",
		Long: `Stream sensor readings of the given devices, or of every device
the gateway reports when none are given. With --reconnect the connection
is re-established after it drops.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, err := a.newClient(ctx, url)
			if err != nil {
				return err
			}
			defer client.Disconnect()

			out := &lockedWriter{w: cmd.OutOrStdout()}
			w := &watcher{client: client, out: out}
			// Subscriptions are dropped on disconnect, so they are made
			// again on every connect.
			if len(args) > 0 {
				client.On(session.EventConnected, func(session.BusEvent) { w.subscribe(args) })
			} else {
				client.On(protocol.TypeDevices, w.subscribeRegistry)
			}

			if keepAlive || a.cfg.Gateway.Reconnect.Enabled {
				sup := reconnect.New(client, reconnect.Options{
					InitialDelay: a.cfg.Gateway.Reconnect.InitialDelay,
					MaxDelay:     a.cfg.Gateway.Reconnect.MaxDelay,
				}, a.logger)
				if err := sup.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			}

			dropped := make(chan struct{})
			var once sync.Once
			client.On(session.EventDisconnected, func(session.BusEvent) {
				once.Do(func() { close(dropped) })
			})
			if err := client.Connect(ctx); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-dropped:
				return fmt.Errorf("gateway closed the connection")
			}
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "gateway websocket url")
	cmd.Flags().BoolVar(&keepAlive, "reconnect", false, "reconnect with backoff when the connection drops")

	return cmd
}

type watcher struct {
	client *session.Client
	out    io.Writer
}

func (w *watcher) subscribe(ids []string) {
	for _, id := range ids {
		w.client.Subscribe(id, printReading(w.out, id))
	}
}

// subscribeRegistry subscribes to every device listed in a devices frame.
func (w *watcher) subscribeRegistry(ev session.BusEvent) {
	obj, ok := ev.Payload.(protocol.Object)
	if !ok {
		return
	}
	list, _ := obj["devices"].([]any)
	ids := make([]string, 0, len(list))
	for _, entry := range list {
		device, _ := entry.(map[string]any)
		if id, _ := device["id"].(string); id != "" {
			ids = append(ids, id)
		}
	}
	w.subscribe(ids)
}

func printReading(out io.Writer, deviceID string) session.DeviceCallback {
	return func(datum protocol.SensorDatum) error {
		_, err := fmt.Fprintf(out, "%s %-16s %-12s %8.1f %s\n",
			datum.Timestamp.Local().Format(time.TimeOnly), deviceID, datum.SensorType, datum.Value, datum.Unit)
		return err
	}
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
