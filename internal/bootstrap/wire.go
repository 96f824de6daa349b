package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"jarvis/internal/audio"
	"jarvis/internal/config"
	"jarvis/internal/log"
	"jarvis/internal/metrics"
	"jarvis/internal/ports"
	"jarvis/internal/providers/gemini"
	"jarvis/internal/rules"
	"jarvis/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Config     config.Config
	Metrics    *metrics.Metrics
	Logger     *log.Logger
}

// Build wires all backend dependencies for the current runtime. Overrides run
// after configuration is loaded and before it is validated again.
func Build(events ports.HudSink, overrides ...func(*config.Config)) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	if len(overrides) > 0 {
		for _, override := range overrides {
			override(&cfg)
		}
		if err := cfg.Validate(); err != nil {
			return Services{}, fmt.Errorf("config validation failed: %w", err)
		}
	}

	logger := log.NewLogger(cfg.Logging.Level)

	rulesEngine, err := rules.LoadFile(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return Services{}, err
	}
	logger.Debug("transcript rules loaded", map[string]any{
		"path":  cfg.Rules.Path,
		"rules": rulesEngine.Len(),
	})

	telemetry := metrics.NewMetrics()

	controller := usecase.NewSessionController(
		usecase.Dependencies{
			Audio:     audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
			Output:    audio.NewFFPlayOutput(cfg.Audio.PlayerCommand, cfg.Audio.PlayerVolume),
			Provider:  newProvider(cfg.Gemini),
			Rules:     rulesEngine,
			Events:    events,
			Telemetry: telemetry,
			Logger:    logger,
		},
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.InputSampleRate,
				Channels:    1,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Output: ports.OutputConfig{
				SampleRate: cfg.Audio.OutputSampleRate,
				Channels:   1,
			},
			ChunkSamples:      cfg.Audio.ChunkSamples,
			Model:             cfg.Gemini.Model,
			SystemInstruction: cfg.Gemini.SystemInstruction,
			EnableSearch:      cfg.Gemini.EnableSearch,
			HandshakeTimeout:  cfg.Session.HandshakeTimeout,
			Diagnostics: usecase.DiagnosticsConfig{
				Full:  cfg.Session.DiagnosticsFull,
				Quick: cfg.Session.DiagnosticsQuick,
			},
		},
	)

	return Services{Controller: controller, Config: cfg, Metrics: telemetry, Logger: logger}, nil
}

func newProvider(cfg config.GeminiConfig) ports.LiveProvider {
	if cfg.Transport == config.TransportWebsocket {
		return gemini.NewWebsocketProvider(cfg.WebsocketURL)
	}
	return gemini.NewSDKProvider()
}

// ServeMetrics exposes the Prometheus registry on the configured address until
// ctx ends. Without an address it returns immediately.
func (s Services) ServeMetrics(ctx context.Context) error {
	if s.Config.Metrics.Address == "" || s.Metrics == nil {
		return nil
	}

	listener, err := net.Listen("tcp", s.Config.Metrics.Address)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics on %s: %w", s.Config.Metrics.Address, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Metrics.Handler())
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	})
	defer stop()

	if s.Logger != nil {
		s.Logger.Info("serving metrics", map[string]any{"address": listener.Addr().String()})
	}
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
