// imebar - input-method status blocks for i3bar-compatible bars
//
//	imebar                      Run with the default config
//	imebar -config <path>       Run with an explicit config file (.toml/.yaml)
//	imebar -once                Emit a single status line and exit
//	imebar -log-level debug     Override the configured log level
//
// Status lines go to stdout in the i3bar JSON protocol; logs go to stderr
// (or a file, see the logging config section). Click events are read back
// from stdin when the host bar supports them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imebar/internal/bar"
	"imebar/internal/config"
	"imebar/internal/ibus"
	"imebar/internal/keylight"
	"imebar/internal/logging"
)

var version = "dev"

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to the configuration file")
	logLevel := flag.String("log-level", "", "override the configured log level")
	once := flag.Bool("once", false, "emit a single status line and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("imebar", version)
		return
	}

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "imebar: %v\n", err)
		os.Exit(1)
	}
	defer loader.Close()

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger, err := logging.New(cfg.LoggingSetup())
	if err != nil {
		fmt.Fprintf(os.Stderr, "imebar: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)
	defer logger.Close()

	if err := run(cfg, loader, logger, *once); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bar exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, loader *config.Loader, logger *logging.Logger, once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := bar.NewScheduler(bar.NewWriter(os.Stdout), logger)

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Warn("block close failed", "error", err)
			}
		}
	}()

	if cfg.IBus.Enabled {
		block, err := ibus.New(ibus.Config{
			ReceiveTimeout: time.Duration(cfg.IBus.ReceiveTimeoutMs) * time.Millisecond,
			MaxReconnect:   time.Duration(cfg.IBus.MaxReconnectSec) * time.Second,
			MachineIDPath:  cfg.IBus.MachineIDPath,
		}, sched.Tasks(), logger)
		if err != nil {
			// Fatal to this block only; the bar runs with whatever remains.
			logger.Error("ibus block unavailable", "error", err)
		} else {
			sched.Add(block)
			closers = append(closers, block)
		}
	}

	if cfg.Keylight.Enabled {
		sched.Add(keylight.New(keylight.Config{
			Interval:       time.Duration(cfg.Keylight.IntervalSec) * time.Second,
			BrightnessFile: cfg.Keylight.BrightnessFile,
		}))
	}

	if sched.Len() == 0 {
		return errors.New("no blocks available")
	}

	if once {
		return sched.RunOnce()
	}

	// Block changes need a restart; reloads only retune what is safe live.
	loader.OnChange(func(*config.Config) {
		logger.Info("configuration changed; restart to apply block changes")
	})
	if err := loader.Watch(func(err error) {
		logger.Warn("config watch", "error", err)
	}); err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	}

	go func() {
		if err := bar.ReadClicks(os.Stdin, sched.Clicks()); err != nil {
			logger.Debug("click stream ended", "error", err)
		}
	}()

	logger.Info("bar running", "blocks", sched.Len(), "config", loader.Config().Version)
	return sched.Run(ctx)
}
