package main

import (
	"fmt"
	"io"
	"sync"

	"jarvis/internal/domain"
)

// terminalSink prints session output as plain lines.
type terminalSink struct {
	mu           sync.Mutex
	out          io.Writer
	last         domain.HudState
	disconnected chan struct{}
}

func newTerminalSink(out io.Writer) *terminalSink {
	return &terminalSink{
		out:          out,
		last:         domain.DefaultHudState(),
		disconnected: make(chan struct{}, 1),
	}
}

// Disconnected fires after a session returns to the disconnected state.
func (s *terminalSink) Disconnected() <-chan struct{} {
	return s.disconnected
}

func (s *terminalSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	s.printf("[session] %s (%s)\n", state, reason)
	if state != domain.SessionStateDisconnected {
		return
	}
	select {
	case s.disconnected <- struct{}{}:
	default:
	}
}

// HudChanged prints only the fields that moved.
func (s *terminalSink) HudChanged(state domain.HudState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.last
	s.last = state
	if state.ThemeColor != previous.ThemeColor {
		fmt.Fprintf(s.out, "[hud] theme %s\n", state.ThemeColor)
	}
	if state.IsDiagnosticRunning != previous.IsDiagnosticRunning {
		fmt.Fprintf(s.out, "[hud] diagnostics %s\n", onOff(state.IsDiagnosticRunning))
	}
	if state.IsSystemLocked != previous.IsSystemLocked {
		fmt.Fprintf(s.out, "[hud] lock %s\n", onOff(state.IsSystemLocked))
	}
	if state.IsListening != previous.IsListening {
		fmt.Fprintf(s.out, "[hud] listening %s\n", onOff(state.IsListening))
	}
}

func (s *terminalSink) ChatAppended(message domain.ChatMessage) {
	prefix := "jarvis>"
	if message.Sender == domain.SenderUser {
		prefix = "you>"
	}
	s.printf("%s %s\n", prefix, message.Text)
}

func (s *terminalSink) SessionError(code domain.ErrorCode, detail string) {
	s.printf("[error] %s: %s\n", code, detail)
}

func (s *terminalSink) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func onOff(value bool) string {
	if value {
		return "on"
	}
	return "off"
}
