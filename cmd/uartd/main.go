package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/uartd/internal/infrastructure/config"
	"github.com/GriffinCanCode/uartd/internal/infrastructure/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "uartd: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := parseFlags(args, cfg); err != nil {
		return err
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				// failures are logged and the current table stays active
				_ = srv.ReloadPolicies()
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			err := srv.Shutdown(ctx)
			cancel()
			return err
		case err := <-errChan:
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			_ = srv.Shutdown(ctx)
			cancel()
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		}
	}
}
