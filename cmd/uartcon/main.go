package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/uartd/internal/api/http"
	"github.com/GriffinCanCode/uartd/internal/console"
	"github.com/GriffinCanCode/uartd/internal/infrastructure/logging"
)

type options struct {
	client   console.ClientConfig
	label    string
	args     map[string]string
	logLevel string
}

func parseFlags(args []string) (*options, error) {
	opts := &options{client: console.DefaultClientConfig()}

	fs := pflag.NewFlagSet("uartcon", pflag.ContinueOnError)
	fs.StringVarP(&opts.client.BaseURL, "server", "s", opts.client.BaseURL, "uartd base URL")
	fs.StringVarP(&opts.label, "label", "l", "", "session label (required)")
	fs.StringToStringVarP(&opts.args, "arg", "a", nil, "session argument key=value (repeatable)")
	fs.DurationVar(&opts.client.Timeout, "timeout", opts.client.Timeout, "per-request timeout")
	fs.IntVar(&opts.client.MaxRetries, "retries", opts.client.MaxRetries, "retries on connection failures")
	fs.Float64Var(&opts.client.RequestsPerSecond, "rps", opts.client.RequestsPerSecond, "client request rate cap (0 = unlimited)")
	fs.StringVar(&opts.logLevel, "log-level", "error", "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.label == "" {
		return nil, errors.New("--label is required")
	}
	return opts, nil
}

func banner(view apihttp.SessionView) string {
	size := "size unknown"
	if view.Size.Known() {
		size = view.Size.String()
	}
	return fmt.Sprintf("connected to %s (%s, uart %d, %s), Ctrl-] to exit\r\n",
		view.ID, view.Label, view.Params.Index, size)
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "uartcon: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	logger, err := logging.FromConfig(opts.logLevel, false)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client, err := console.NewClient(opts.client)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	con, err := console.Open(ctx, client, opts.label, opts.args, logger.Component("console"))
	if err != nil {
		logger.Debug("session open failed",
			zap.Stringer("breaker", client.BreakerState()),
			zap.Error(err))
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := con.Close(closeCtx); err != nil {
			logger.Debug("session close failed", zap.Error(err))
		}
	}()

	fmt.Fprint(os.Stderr, banner(con.Session()))

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("failed to enter raw mode: %w", err)
		}
		defer func() { _ = term.Restore(fd, state) }()
	}

	err = con.Run(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, console.ErrSessionClosed) {
		fmt.Fprint(os.Stderr, "\r\nsession closed by server\r\n")
		return nil
	}
	return err
}
