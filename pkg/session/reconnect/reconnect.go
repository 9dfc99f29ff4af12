// Package reconnect keeps a session connected, retrying with exponential
// backoff after failed attempts and lost connections.
//
// Only connections lost on the transport side are retried. After an
// explicit Client.Disconnect the supervisor stays idle until its context
// is cancelled.
package reconnect

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/saker-ai/devlink/pkg/session"
)

const (
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 30 * time.Second
)

// Client is the part of *session.Client the supervisor drives.
type Client interface {
	Connect(ctx context.Context) error
	On(name string, handler session.Handler)
}

// Options tunes the backoff. Zero values use the defaults.
type Options struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Supervisor reconnects a client until its context ends.
type Supervisor struct {
	client  Client
	logger  *zap.Logger
	initial time.Duration
	max     time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
	lost    chan struct{}
}

// New registers a disconnect handler on client and returns the supervisor.
func New(client Client, opts Options, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = DefaultInitialDelay
	}
	if opts.MaxDelay < opts.InitialDelay {
		opts.MaxDelay = max(DefaultMaxDelay, opts.InitialDelay)
	}
	s := &Supervisor{
		client:  client,
		logger:  logger,
		initial: opts.InitialDelay,
		max:     opts.MaxDelay,
		sleep:   sleep,
		lost:    make(chan struct{}, 1),
	}
	client.On(session.EventDisconnected, func(ev session.BusEvent) {
		if err, _ := ev.Payload.(error); errors.Is(err, session.ErrClosed) {
			return
		}
		select {
		case s.lost <- struct{}{}:
		default:
		}
	})
	return s
}

// Run connects and reconnects until ctx is done, then returns ctx.Err().
func (s *Supervisor) Run(ctx context.Context) error {
	delay := s.initial
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.drainLost()
		if err := s.client.Connect(ctx); err != nil {
			s.logger.Warn("session connect failed", zap.Error(err), zap.Duration("retry_in", delay))
			if err := s.sleep(ctx, delay); err != nil {
				return err
			}
			delay = s.next(delay)
			continue
		}
		s.logger.Info("session connected")
		delay = s.initial

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.lost:
		}
		s.logger.Warn("session connection lost", zap.Duration("retry_in", delay))
		if err := s.sleep(ctx, delay); err != nil {
			return err
		}
		delay = s.next(delay)
	}
}

func (s *Supervisor) drainLost() {
	select {
	case <-s.lost:
	default:
	}
}

func (s *Supervisor) next(delay time.Duration) time.Duration {
	if delay*2 >= s.max {
		return s.max
	}
	return delay * 2
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
