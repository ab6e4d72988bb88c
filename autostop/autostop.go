// Command autostop stops the EC2 instance it runs on once nobody has used
// it for a while.
//
// Usage:
//
//	autostop --config-file /etc/autostop.json [--log-file /var/log/autostop.log]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/ericpauley/ec2-autostop/internal/activity"
	"github.com/ericpauley/ec2-autostop/internal/config"
	"github.com/ericpauley/ec2-autostop/internal/instance"
	"github.com/ericpauley/ec2-autostop/internal/logging"
	"github.com/ericpauley/ec2-autostop/internal/metrics"
	"github.com/ericpauley/ec2-autostop/internal/watchdog"
)

// environment holds what run needs from the outside world.
type environment struct {
	stdout        io.Writer
	stderr        io.Writer
	lookPath      func(string) (string, error)
	newController func(ctx context.Context, cfg *config.Config, settings config.AWSSettings, logger *slog.Logger) (instance.Controller, error)
}

func defaultEnvironment() environment {
	return environment{
		stdout:        os.Stdout,
		stderr:        os.Stderr,
		lookPath:      exec.LookPath,
		newController: newController,
	}
}

func newController(ctx context.Context, cfg *config.Config, settings config.AWSSettings, logger *slog.Logger) (instance.Controller, error) {
	if cfg.Backend == config.BackendCLI {
		return instance.NewCLI(cfg.AWSCLIPath, settings, nil, logger), nil
	}
	return instance.LoadSDK(ctx, settings)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], defaultEnvironment())
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, env environment) int {
	flags := pflag.NewFlagSet("autostop", pflag.ContinueOnError)
	flags.SetOutput(env.stderr)
	configFile := flags.String("config-file", "", "Path to the config file (required)")
	logFile := flags.String("log-file", "", "Path to the log file, appended to (default: standard output)")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *configFile == "" {
		fmt.Fprintln(env.stderr, "error: --config-file is required")
		flags.Usage()
		return 2
	}

	sink, closeLog, err := logging.Open(*logFile, env.stdout)
	if err != nil {
		fmt.Fprintf(env.stderr, "error: opening log file: %v\n", err)
		return 1
	}
	defer closeLog()
	logger := logging.New(sink, "info")

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		return 1
	}
	logging.SetLevel(logger, cfg.LogLevel)

	if cfg.Backend == config.BackendCLI {
		if err := instance.CheckTools(env.lookPath, cfg.AWSCLIPath); err != nil {
			logger.Error("Missing required tool", "error", err)
			return 1
		}
	}
	settings, err := cfg.Settings()
	if err != nil {
		logger.Error(`Missing "aws_settings" in config`, "config", *configFile)
		return 1
	}

	controller, err := env.newController(ctx, cfg, settings, logger)
	if err != nil {
		logger.Error("Failed to set up EC2 client", "error", err)
		return 1
	}
	instanceID, err := controller.InstanceID(ctx)
	if err != nil {
		logger.Error("Failed to get instance ID of current machine", "error", err)
		return 1
	}

	if len(cfg.WatchPaths) > 0 {
		logger.Info("Watch paths", "paths", strings.Join(cfg.WatchPaths, ", "))
	}
	if cfg.Hibernate {
		logger.Info("Enable hibernation")
	}
	logger.Info("Max idle time", "minutes", cfg.MaxIdleMinutes, "instance", instanceID, "backend", cfg.Backend)

	prober := activity.New(activity.Options{
		UtmpPath:        cfg.UtmpPath,
		WatchPaths:      cfg.WatchPaths,
		DetectProcesses: cfg.DetectProcesses,
		Logger:          logger,
	})
	dog := watchdog.New(watchdog.Options{
		Controller: controller,
		Prober:     prober,
		InstanceID: instanceID,
		Threshold:  cfg.Threshold(),
		Hibernate:  cfg.Hibernate,
		Logger:     logger,
		Metrics:    metrics.New(cfg.MetricsTextfile),
	})
	if err := dog.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Watchdog stopped", "error", err)
		return 1
	}
	logger.Info("Shutting down")
	return 0
}
