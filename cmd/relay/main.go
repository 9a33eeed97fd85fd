// Command relay serves the completion endpoints the widget talks to, for
// local development.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"voicewidget/internal/bootstrap"
	"voicewidget/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "relay:", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "", "listen address (overrides VOICEWIDGET_RELAY_ADDR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Relay.Addr = *addr
	}

	logger := config.NewLogger(cfg.Log, os.Stderr)
	server := bootstrap.BuildRelay(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Listen(cfg.Relay.Addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down relay")
		return server.Shutdown()
	}
}
