package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"jarvis/internal/bootstrap"
	"jarvis/internal/config"
	"jarvis/internal/domain"
	"jarvis/internal/usecase"
)

const (
	exitStartup   = 1
	exitConnect   = 2
	exitTransport = 3
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Open a live session and talk until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "transport",
				Usage: "Live transport: sdk or websocket",
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "Live model name",
			},
			&cli.BoolFlag{
				Name:  "no-search",
				Usage: "Do not declare the Google Search tool",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address",
			},
		},
		Action: runAction,
	}
}

func runOverrides(c *cli.Context) func(*config.Config) {
	return func(cfg *config.Config) {
		if transport := c.String("transport"); transport != "" {
			cfg.Gemini.Transport = transport
		}
		if model := c.String("model"); model != "" {
			cfg.Gemini.Model = model
		}
		if c.Bool("no-search") {
			cfg.Gemini.EnableSearch = false
		}
		if addr := c.String("metrics-addr"); addr != "" {
			cfg.Metrics.Address = addr
		}
	}
}

func runAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := newTerminalSink(c.App.Writer)
	services, err := bootstrap.Build(sink, runOverrides(c))
	if err != nil {
		return cli.Exit(fmt.Sprintf("startup failed: %v", err), exitStartup)
	}
	defer func() { _ = services.Logger.Sync() }()

	go func() {
		if err := services.ServeMetrics(ctx); err != nil {
			services.Logger.Warn("metrics listener stopped", map[string]any{"error": err.Error()})
		}
	}()

	return converse(ctx, services.Controller, services.Config.Gemini.APIKey, sink)
}

// sessionController is the part of usecase.SessionController a headless
// conversation drives.
type sessionController interface {
	Connect(ctx context.Context, credential string) error
	Close() error
	Status() domain.Status
}

// converse holds a session open until ctx ends or the session closes on its own.
func converse(ctx context.Context, controller sessionController, credential string, sink *terminalSink) error {
	if err := controller.Connect(ctx, credential); err != nil {
		if errors.Is(err, usecase.ErrMissingCredential) {
			return cli.Exit("GEMINI_API_KEY is not configured", exitStartup)
		}
		return cli.Exit(fmt.Sprintf("connect failed: %v", err), exitConnect)
	}

	select {
	case <-ctx.Done():
		_ = controller.Close()
		return nil
	case <-sink.Disconnected():
	}

	if status := controller.Status(); status.Failed {
		return cli.Exit(fmt.Sprintf("session failed: %s", status.LastError), exitTransport)
	}
	return nil
}
