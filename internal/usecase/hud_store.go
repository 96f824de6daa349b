package usecase

import (
	"sync"

	"jarvis/internal/domain"
	"jarvis/internal/ports"
)

// hudStore owns the HUD state and publishes a snapshot on every change.
type hudStore struct {
	events ports.HudSink

	mu    sync.Mutex
	state domain.HudState
}

func newHudStore(events ports.HudSink) *hudStore {
	return &hudStore{events: events, state: domain.DefaultHudState()}
}

func (h *hudStore) Snapshot() domain.HudState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *hudStore) SetTheme(color domain.ThemeColor) {
	h.update(func(state *domain.HudState) { state.ThemeColor = color })
}

func (h *hudStore) SetDiagnosticRunning(running bool) {
	h.update(func(state *domain.HudState) { state.IsDiagnosticRunning = running })
}

func (h *hudStore) SetLocked(locked bool) {
	h.update(func(state *domain.HudState) { state.IsSystemLocked = locked })
}

func (h *hudStore) SetConnected(connected bool) {
	h.update(func(state *domain.HudState) {
		state.IsConnected = connected
		state.IsListening = connected
		if !connected {
			state.IsDiagnosticRunning = false
		}
	})
}

func (h *hudStore) update(mutate func(*domain.HudState)) {
	h.mu.Lock()
	previous := h.state
	mutate(&h.state)
	next := h.state
	h.mu.Unlock()

	if next != previous {
		h.events.HudChanged(next)
	}
}
