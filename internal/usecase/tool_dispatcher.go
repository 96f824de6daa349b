package usecase

import (
	"fmt"
	"time"

	"jarvis/internal/domain"
	"jarvis/internal/log"
	"jarvis/internal/ports"
)

// hudControls are the HUD mutations reachable from tool calls.
type hudControls interface {
	SetTheme(color domain.ThemeColor)
	SetDiagnosticRunning(running bool)
	SetLocked(locked bool)
}

// DiagnosticsConfig sets how long each diagnostic mode keeps the HUD busy.
type DiagnosticsConfig struct {
	Full  time.Duration
	Quick time.Duration
}

// deferFunc runs fn after delay on the goroutine that owns the dispatcher.
type deferFunc func(delay time.Duration, fn func())

// toolDispatcher applies tool calls to the HUD. It belongs to one session
// loop and is not safe for concurrent use.
type toolDispatcher struct {
	hud         hudControls
	after       deferFunc
	diagnostics DiagnosticsConfig
	telemetry   ports.Telemetry
	logger      *log.Logger

	answered      map[string]domain.ToolCallResponse
	diagnosticRun uint64
}

func newToolDispatcher(hud hudControls, after deferFunc, diagnostics DiagnosticsConfig, telemetry ports.Telemetry, logger *log.Logger) *toolDispatcher {
	if diagnostics.Full <= 0 {
		diagnostics.Full = 5 * time.Second
	}
	if diagnostics.Quick <= 0 {
		diagnostics.Quick = 2 * time.Second
	}
	return &toolDispatcher{
		hud:         hud,
		after:       after,
		diagnostics: diagnostics,
		telemetry:   telemetry,
		logger:      logger,
		answered:    make(map[string]domain.ToolCallResponse),
	}
}

// Handle applies one tool call and returns its response. It never panics.
// A repeated id replays the earlier response without applying the effect
// again.
func (d *toolDispatcher) Handle(req domain.ToolCallRequest) domain.ToolCallResponse {
	if req.ID != "" {
		if previous, ok := d.answered[req.ID]; ok {
			d.logger.Debug("tool call replayed", map[string]any{"id": req.ID, "tool": req.Name})
			return previous
		}
	}

	response := domain.ToolCallResponse{ID: req.ID, Name: req.Name, Result: domain.ToolResultSuccess}
	if err := d.apply(req); err != nil {
		response.Result = domain.ToolResultFailed
		d.logger.Warn("tool call failed", map[string]any{"id": req.ID, "tool": req.Name, "error": err.Error()})
	} else {
		d.logger.Info("tool call applied", map[string]any{"id": req.ID, "tool": req.Name})
	}

	if req.ID != "" {
		d.answered[req.ID] = response
	}
	d.telemetry.ToolCall(req.Name, response.Result)
	return response
}

func (d *toolDispatcher) apply(req domain.ToolCallRequest) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("tool %s panicked: %v", req.Name, recovered)
		}
	}()

	args, err := parseToolArgs(req.Name, req.Args)
	if err != nil {
		return err
	}

	switch typed := args.(type) {
	case setThemeArgs:
		d.hud.SetTheme(typed.Color)
	case diagnosticsArgs:
		d.startDiagnostics(typed.Mode)
	case lockArgs:
		if typed.Reason != "" {
			d.logger.Info("system lock requested", map[string]any{"reason": typed.Reason})
		}
		d.hud.SetLocked(true)
	case unlockArgs:
		d.hud.SetLocked(false)
	default:
		return fmt.Errorf("%w %q", errUnknownTool, req.Name)
	}
	return nil
}

func (d *toolDispatcher) startDiagnostics(mode string) {
	duration := d.diagnostics.Full
	if mode == DiagnosticsQuick {
		duration = d.diagnostics.Quick
	}

	d.diagnosticRun++
	run := d.diagnosticRun
	d.hud.SetDiagnosticRunning(true)

	// Only the most recent run clears the flag.
	d.after(duration, func() {
		if d.diagnosticRun == run {
			d.hud.SetDiagnosticRunning(false)
		}
	})
}
