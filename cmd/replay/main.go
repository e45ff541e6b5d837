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

	"github.com/okian/vigil/internal/replay"
	"github.com/okian/vigil/pkg/logger"
)

const defaultRunTimeout = 10 * time.Minute

const usage = `Vigil Trace Replay
==================

Replays recorded interview traces against a running service: creates a
meeting, joins as candidate, feeds every trace step through the detectors
and checks the final score against the trace's expectations.

Usage:
  replay [options] TRACE...

Options:
%s
Examples:
  # Replay one trace against a local service
  replay internal/replay/testdata/tab_switch.yaml

  # Replay several traces against another host with debug output
  replay --url http://vigil.internal:9080 --log-level debug traces/*.yaml
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		os.Stderr.WriteString("replay failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("replay", pflag.ContinueOnError)
	var (
		baseURL  = flags.String("url", "http://localhost:9080", "Base URL of the service")
		timeout  = flags.Duration("timeout", replay.DefaultTimeout, "HTTP request timeout")
		settle   = flags.Duration("settle", replay.DefaultSettle, "How long to wait for submitted events to be scored")
		runFor   = flags.Duration("deadline", defaultRunTimeout, "Upper bound for the whole run")
		face     = flags.Duration("face-interval", 0, "Face detector sampling interval (0 keeps the default)")
		devtools = flags.Duration("devtools-interval", 0, "Devtools detector sampling interval (0 keeps the default)")
		level    = flags.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flags.Usage = func() {
		fmt.Fprintf(os.Stdout, usage, flags.FlagUsages())
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return errors.New("no trace files given")
	}

	if err := logger.Init(); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	if err := logger.SetLevelString(*level); err != nil {
		return err
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *runFor)
	defer cancel()

	cfg := &replay.Config{
		BaseURL:          *baseURL,
		Timeout:          *timeout,
		Settle:           *settle,
		FaceInterval:     *face,
		DevtoolsInterval: *devtools,
		Logger:           log,
	}

	var errs []error
	for _, path := range flags.Args() {
		t, err := replay.Load(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		report, err := replay.Run(ctx, cfg, t)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		report.Log(ctx, log)
		if err := report.Verify(t.Expect); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}
