package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/health"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/log"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/xerrors"
)

const shutdownTimeout = 10 * time.Second

// drain fails readiness so the load balancer stops routing here, then waits
// out period. A second signal cuts the wait short.
func drain(L log.Logger, gate *health.ShutdownGate, period time.Duration) {
	ctx := context.Background()
	gate.Set("draining")
	L.Info(ctx, "shutdown signal received, draining", "drain_period", period.String())

	force := make(chan os.Signal, 1)
	signal.Notify(force, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(force)

	t := time.NewTimer(period)
	defer t.Stop()
	select {
	case <-t.C:
		L.Info(ctx, "drain period complete")
	case <-force:
		L.Warn(ctx, "second signal received, skipping drain")
	}
}

// shutdown runs every stop func under one deadline and logs failures.
func shutdown(L log.Logger, stops map[string]func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for name, stop := range stops {
		if err := stop(ctx); err != nil {
			L.Error(context.Background(), err, "shutdown failed", "part", name)
		}
	}
	L.Info(context.Background(), "shutdown complete")
}

// notifySystemd sends READY=1 when running as a Type=notify unit.
func notifySystemd() error {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return xerrors.New("NOTIFY_SOCKET not set")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return xerrors.Wrap(err, "dial notify socket")
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		return xerrors.Wrap(err, "write notify socket")
	}
	return nil
}
