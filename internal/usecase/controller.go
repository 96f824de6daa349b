package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"jarvis/internal/domain"
	"jarvis/internal/log"
	"jarvis/internal/pcm"
	"jarvis/internal/ports"
)

var (
	ErrSessionActive      = errors.New("a live session is already active")
	ErrNoActiveSession    = errors.New("no active live session")
	ErrMissingCredential  = errors.New("missing api credential")
	ErrCaptureUnavailable = errors.New("microphone capture unavailable")
	ErrOutputUnavailable  = errors.New("audio output unavailable")
	ErrHandshakeFailed    = errors.New("live session handshake failed")
	ErrConnectAborted     = errors.New("connect aborted by close")
)

const responseModalityAudio = "AUDIO"

// Config controls the live session.
type Config struct {
	Audio             ports.AudioConfig
	Output            ports.OutputConfig
	ChunkSamples      int
	Model             string
	SystemInstruction string
	EnableSearch      bool
	HandshakeTimeout  time.Duration
	Diagnostics       DiagnosticsConfig
}

// Dependencies are the adapters a SessionController drives.
type Dependencies struct {
	Audio     ports.AudioCapture
	Output    ports.AudioOutput
	Provider  ports.LiveProvider
	Rules     ports.TranscriptRules
	Events    ports.HudSink
	Telemetry ports.Telemetry
	Logger    *log.Logger
}

// SessionController runs at most one live voice session at a time.
type SessionController struct {
	audio     ports.AudioCapture
	output    ports.AudioOutput
	provider  ports.LiveProvider
	rules     ports.TranscriptRules
	events    ports.HudSink
	telemetry ports.Telemetry
	logger    *log.Logger
	hud       *hudStore
	cfg       Config

	mu        sync.Mutex
	state     domain.SessionState
	current   *activeSession
	pending   context.CancelFunc
	closing   bool
	failed    bool
	lastError string
	lastSeq   uint64
}

func NewSessionController(deps Dependencies, cfg Config) *SessionController {
	if cfg.ChunkSamples < 256 {
		cfg.ChunkSamples = 4096
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	// The pump decodes float samples whatever the capture backend.
	cfg.Audio.SampleFormat = pcm.FormatF32LE
	if deps.Telemetry == nil {
		deps.Telemetry = noopTelemetry{}
	}
	if deps.Logger == nil {
		deps.Logger = log.Nop()
	}
	return &SessionController{
		audio:     deps.Audio,
		output:    deps.Output,
		provider:  deps.Provider,
		rules:     deps.Rules,
		events:    deps.Events,
		telemetry: deps.Telemetry,
		logger:    deps.Logger,
		hud:       newHudStore(deps.Events),
		cfg:       cfg,
		state:     domain.SessionStateDisconnected,
	}
}

// Connect opens output, capture and the remote session, in that order. Any
// failure releases what was opened and leaves the controller disconnected.
func (c *SessionController) Connect(ctx context.Context, credential string) error {
	if strings.TrimSpace(credential) == "" {
		return ErrMissingCredential
	}

	sessionCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.state != domain.SessionStateDisconnected {
		c.mu.Unlock()
		cancel()
		return ErrSessionActive
	}
	c.state = domain.SessionStateConnecting
	c.pending = cancel
	c.closing = false
	c.failed = false
	c.lastError = ""
	c.lastSeq = 0
	c.mu.Unlock()

	c.events.SessionStateChanged(domain.SessionStateConnecting, domain.SessionReasonConnecting)

	sink, err := c.output.Open(sessionCtx, c.cfg.Output)
	if err != nil {
		cancel()
		return c.abortConnect(domain.SessionReasonOutputFailed, domain.ErrorCodePlayback, fmt.Errorf("%w: %w", ErrOutputUnavailable, err))
	}

	audioSession, err := c.audio.Start(sessionCtx, c.cfg.Audio)
	if err != nil {
		_ = sink.Close()
		cancel()
		return c.abortConnect(domain.SessionReasonCaptureFailed, domain.ErrorCodeCapture, fmt.Errorf("%w: %w", ErrCaptureUnavailable, err))
	}

	handshakeCtx, handshakeCancel := context.WithTimeout(sessionCtx, c.cfg.HandshakeTimeout)
	conn, err := c.provider.Connect(handshakeCtx, c.setup(credential))
	handshakeCancel()
	if err != nil {
		_ = audioSession.Stop()
		_ = sink.Close()
		cancel()
		return c.abortConnect(domain.SessionReasonHandshakeFailed, domain.ErrorCodeHandshake, fmt.Errorf("%w: %w", ErrHandshakeFailed, err))
	}

	logger := c.logger.With(map[string]any{"model": c.cfg.Model})
	active := &activeSession{
		ctx:         sessionCtx,
		cancel:      cancel,
		audio:       audioSession,
		sink:        sink,
		conn:        conn,
		accumulator: newTranscriptAccumulator(),
		scheduler:   newPlaybackScheduler(sink, c.telemetry),
		finalizer:   newTranscriptFinalizer(c.rules, c.events, logger),
		events:      c.events,
		telemetry:   c.telemetry,
		logger:      logger,
		deferred:    make(chan func(), 8),
		loopDone:    make(chan struct{}),
		audioDone:   make(chan struct{}),
	}
	active.dispatcher = newToolDispatcher(c.hud, active.after, c.cfg.Diagnostics, c.telemetry, logger)

	c.mu.Lock()
	closing := c.closing
	c.current = active
	c.state = domain.SessionStateOpen
	c.pending = nil
	c.mu.Unlock()

	c.hud.SetConnected(true)
	c.events.SessionStateChanged(domain.SessionStateOpen, domain.SessionReasonConnected)
	c.telemetry.SessionOpened()
	logger.Info("live session open", nil)

	go func() {
		defer close(active.audioDone)
		active.audioErr = pumpAudioFrames(
			sessionCtx,
			audioSession,
			conn,
			pumpConfig{chunkSamples: c.cfg.ChunkSamples, sampleRate: c.cfg.Audio.SampleRate},
			c.telemetry,
			logger,
		)
	}()
	go c.supervise(active)

	if closing {
		c.teardown(active, loopExit{local: true})
		return ErrConnectAborted
	}
	return nil
}

// Close ends the session. It is safe to call in any state and more than once.
func (c *SessionController) Close() error {
	c.mu.Lock()
	active := c.current
	if active == nil {
		if c.pending != nil {
			c.closing = true
			c.pending()
		}
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.teardown(active, loopExit{local: true})
	return nil
}

// Status returns the current session status.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := domain.Status{
		State:      c.state,
		InboundSeq: c.lastSeq,
		Failed:     c.failed,
		LastError:  c.lastError,
	}
	if c.current != nil {
		status.InboundSeq = c.current.inboundSeq.Load()
	}
	return status
}

// Hud returns the current HUD state.
func (c *SessionController) Hud() domain.HudState {
	return c.hud.Snapshot()
}

func (c *SessionController) setup(credential string) ports.LiveSetup {
	return ports.LiveSetup{
		Credential:          credential,
		Model:               c.cfg.Model,
		SystemInstruction:   c.cfg.SystemInstruction,
		ResponseModality:    responseModalityAudio,
		InputTranscription:  true,
		OutputTranscription: true,
		EnableSearch:        c.cfg.EnableSearch,
		Tools:               ToolSurface(),
	}
}

func (c *SessionController) abortConnect(reason domain.SessionStateReason, code domain.ErrorCode, err error) error {
	c.mu.Lock()
	closing := c.closing
	c.state = domain.SessionStateDisconnected
	c.pending = nil
	if closing {
		reason = domain.SessionReasonClosedLocal
	} else {
		c.failed = true
		c.lastError = err.Error()
	}
	c.mu.Unlock()

	if closing {
		c.events.SessionStateChanged(domain.SessionStateDisconnected, reason)
		return fmt.Errorf("%w: %w", ErrConnectAborted, err)
	}

	c.logger.Error("live session connect failed", map[string]any{"reason": string(reason), "error": err.Error()})
	c.events.SessionError(code, err.Error())
	c.events.SessionStateChanged(domain.SessionStateDisconnected, reason)
	return err
}

func (c *SessionController) supervise(active *activeSession) {
	exit := active.run()
	switch {
	case exit.local:
	case exit.err != nil:
		active.logger.Error("live session failed", map[string]any{"reason": string(exit.reason), "error": exit.err.Error()})
	default:
		active.logger.Info("live session closed by remote peer", nil)
	}
	c.teardown(active, exit)
}

func (c *SessionController) teardown(active *activeSession, exit loopExit) {
	reason := exit.reason
	if exit.local {
		reason = domain.SessionReasonClosedLocal
	}

	active.closeOnce.Do(func() {
		active.cancel()
		if err := active.audio.Stop(); err != nil {
			active.logger.Warn("audio capture stop failed", map[string]any{"error": err.Error()})
		}
		_ = active.conn.Close()
		<-active.loopDone
		<-active.audioDone

		dropped, err := active.scheduler.Flush()
		if err != nil {
			active.logger.Warn("playback flush failed", map[string]any{"error": err.Error()})
		}
		active.responders.Wait()
		_ = active.sink.Close()

		c.hud.SetConnected(false)

		failed := !exit.local && exit.err != nil
		c.mu.Lock()
		if c.current == active {
			c.current = nil
		}
		c.state = domain.SessionStateDisconnected
		c.lastSeq = active.inboundSeq.Load()
		if failed {
			c.failed = true
			c.lastError = exit.err.Error()
		}
		c.mu.Unlock()

		if failed {
			c.events.SessionError(exit.code, exit.err.Error())
		}
		c.events.SessionStateChanged(domain.SessionStateDisconnected, reason)
		c.telemetry.SessionClosed(reason)
		active.logger.Info("live session closed", map[string]any{"reason": string(reason), "dropped_segments": dropped})
	})
}

type noopTelemetry struct{}

func (noopTelemetry) SessionOpened()                          {}
func (noopTelemetry) SessionClosed(domain.SessionStateReason) {}
func (noopTelemetry) FrameSent(int)                           {}
func (noopTelemetry) InboundMessage()                         {}
func (noopTelemetry) SegmentScheduled(time.Duration)          {}
func (noopTelemetry) PlaybackFlushed(int)                     {}
func (noopTelemetry) ToolCall(string, domain.ToolResult)      {}
