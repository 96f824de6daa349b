package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"jarvis/internal/bootstrap"
	"jarvis/internal/config"
	"jarvis/internal/domain"
	"jarvis/internal/usecase"
)

const (
	eventSession = "jarvis:session"
	eventHud     = "jarvis:hud"
	eventChat    = "jarvis:chat"
	eventError   = "jarvis:error"
)

// App is the Wails application root. It forwards session output to the
// frontend and keeps the chat log for late subscribers.
type App struct {
	controller *usecase.SessionController
	cfg        config.Config
	bootErr    error
	stopAux    context.CancelFunc

	mu      sync.RWMutex
	ctx     context.Context
	history []domain.ChatMessage
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.controller = services.Controller

	auxCtx, cancel := context.WithCancel(ctx)
	a.stopAux = cancel
	go func() {
		if err := services.ServeMetrics(auxCtx); err != nil {
			services.Logger.Warn("metrics listener stopped", map[string]any{"error": err.Error()})
		}
	}()

	a.SessionStateChanged(domain.SessionStateDisconnected, domain.SessionReasonIdle)
	a.HudChanged(a.controller.Hud())
}

func (a *App) shutdown(_ context.Context) {
	if a.controller != nil {
		_ = a.controller.Close()
	}
	if a.stopAux != nil {
		a.stopAux()
	}
}

// Connect opens a live session with the configured API key.
func (a *App) Connect() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}

	err := a.controller.Connect(a.context(), a.cfg.Gemini.APIKey)
	switch {
	case err == nil:
	case errors.Is(err, usecase.ErrMissingCredential):
		a.SessionError(domain.ErrorCodeStartup, "GEMINI_API_KEY is not configured")
		return a.controller.Status(), err
	case errors.Is(err, usecase.ErrSessionActive):
		return a.controller.Status(), nil
	default:
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// Disconnect ends the live session, if any.
func (a *App) Disconnect() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Close(); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// GetHudState returns the current HUD state.
func (a *App) GetHudState() domain.HudState {
	if a.controller == nil {
		return domain.DefaultHudState()
	}
	return a.controller.Hud()
}

// GetChatHistory returns every committed message in order.
func (a *App) GetChatHistory() []domain.ChatMessage {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]domain.ChatMessage(nil), a.history...)
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		status := domain.Status{State: domain.SessionStateDisconnected}
		if a.bootErr != nil {
			status.Failed = true
			status.LastError = a.bootErr.Error()
		}
		return status
	}
	return a.controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"provider":   "Gemini Live",
		"model":      a.cfg.Gemini.Model,
		"transport":  a.cfg.Gemini.Transport,
		"search":     fmt.Sprintf("%t", a.cfg.Gemini.EnableSearch),
		"rulesFile":  a.cfg.Rules.Path,
		"audioInput": a.cfg.Audio.InputDevice,
		"hasApiKey":  fmt.Sprintf("%t", a.cfg.Gemini.APIKey != ""),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) context() context.Context {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

func (a *App) emit(name string, payload any) {
	a.mu.RLock()
	ctx := a.ctx
	a.mu.RUnlock()
	if ctx == nil {
		return
	}
	runtime.EventsEmit(ctx, name, payload)
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	a.emit(eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// HudChanged emits the HUD state after every change.
func (a *App) HudChanged(state domain.HudState) {
	a.emit(eventHud, state)
}

// ChatAppended records and emits a committed message.
func (a *App) ChatAppended(message domain.ChatMessage) {
	a.mu.Lock()
	a.history = append(a.history, message)
	a.mu.Unlock()
	a.emit(eventChat, message)
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.emit(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonIdle:
		return "Standing by"
	case domain.SessionReasonConnecting:
		return "Establishing uplink..."
	case domain.SessionReasonConnected:
		return "Uplink established"
	case domain.SessionReasonClosedLocal:
		return "Session closed"
	case domain.SessionReasonClosedRemote:
		return "Session ended by remote"
	case domain.SessionReasonTransportError:
		return "Connection lost"
	case domain.SessionReasonCaptureFailed:
		return "Microphone unavailable"
	case domain.SessionReasonHandshakeFailed:
		return "Handshake failed"
	case domain.SessionReasonOutputFailed:
		return "Audio output unavailable"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCapture:
		return "Microphone capture failed"
	case domain.ErrorCodeHandshake:
		return "Session handshake failed"
	case domain.ErrorCodeTransport:
		return "Connection error"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodePlayback:
		return "Playback issue"
	case domain.ErrorCodeTool:
		return "Tool call failed"
	case domain.ErrorCodeRules:
		return "Rules processing failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
