package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"jarvis/internal/domain"
	"jarvis/internal/usecase"
)

func TestExitErrHandlerNilError(t *testing.T) {
	exitErrHandler(nil, nil)
}

func TestToolsCommandPrintsSurface(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	if err := app.Run([]string{"jarvis", "tools"}); err != nil {
		t.Fatalf("tools failed: %v", err)
	}

	var views []toolView
	if err := json.Unmarshal(out.Bytes(), &views); err != nil {
		t.Fatalf("invalid json %q: %v", out.String(), err)
	}
	if len(views) != len(usecase.ToolSurface()) {
		t.Fatalf("expected %d tools, got %d", len(usecase.ToolSurface()), len(views))
	}
	if views[0].Name != usecase.ToolSetSystemTheme || !views[0].Params[0].Required {
		t.Fatalf("unexpected first tool: %+v", views[0])
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	if err := app.Run([]string{"jarvis", "version"}); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out.String(), `"version":"dev"`) {
		t.Fatalf("unexpected version output: %q", out.String())
	}
}

func TestTerminalSinkOutput(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	sink := newTerminalSink(&out)

	sink.SessionStateChanged(domain.SessionStateOpen, domain.SessionReasonConnected)
	sink.HudChanged(domain.HudState{IsConnected: true, IsListening: true, ThemeColor: domain.ThemeCyan})
	sink.HudChanged(domain.HudState{IsConnected: true, IsListening: true, ThemeColor: domain.ThemeRed, IsSystemLocked: true})
	sink.ChatAppended(domain.ChatMessage{Sender: domain.SenderUser, Text: "lock it"})
	sink.ChatAppended(domain.ChatMessage{Sender: domain.SenderJarvis, Text: "Locked."})
	sink.SessionError(domain.ErrorCodeTool, "bad args")

	want := strings.Join([]string{
		"[session] open (connected)",
		"[hud] listening on",
		"[hud] theme red",
		"[hud] lock on",
		"you> lock it",
		"jarvis> Locked.",
		"[error] tool: bad args",
		"",
	}, "\n")
	if out.String() != want {
		t.Fatalf("unexpected output:\n%s\nwant:\n%s", out.String(), want)
	}

	select {
	case <-sink.Disconnected():
		t.Fatalf("no disconnect expected yet")
	default:
	}
	sink.SessionStateChanged(domain.SessionStateDisconnected, domain.SessionReasonClosedRemote)
	sink.SessionStateChanged(domain.SessionStateDisconnected, domain.SessionReasonClosedRemote)
	select {
	case <-sink.Disconnected():
	default:
		t.Fatalf("expected disconnect notification")
	}
}

type fakeController struct {
	mu         sync.Mutex
	connectErr error
	status     domain.Status
	closes     int
	onConnect  func()
}

func (c *fakeController) Connect(_ context.Context, _ string) error {
	if c.onConnect != nil {
		c.onConnect()
	}
	return c.connectErr
}

func (c *fakeController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *fakeController) Status() domain.Status {
	return c.status
}

func (c *fakeController) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitCoder cli.ExitCoder
	if !errors.As(err, &exitCoder) {
		t.Fatalf("expected cli exit error, got %v", err)
	}
	return exitCoder.ExitCode()
}

func TestConverseExitCodes(t *testing.T) {
	t.Parallel()

	sink := newTerminalSink(&bytes.Buffer{})

	err := converse(context.Background(), &fakeController{connectErr: usecase.ErrMissingCredential}, "", sink)
	if code := exitCode(t, err); code != exitStartup {
		t.Fatalf("missing credential exit = %d", code)
	}

	err = converse(context.Background(), &fakeController{connectErr: usecase.ErrHandshakeFailed}, "k", sink)
	if code := exitCode(t, err); code != exitConnect {
		t.Fatalf("handshake exit = %d", code)
	}
}

func TestConverseClosesOnCancel(t *testing.T) {
	t.Parallel()

	controller := &fakeController{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- converse(ctx, controller, "k", newTerminalSink(&bytes.Buffer{})) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("converse did not return")
	}
	if controller.closeCount() != 1 {
		t.Fatalf("expected one close, got %d", controller.closeCount())
	}
}

func TestConverseReportsTransportFailure(t *testing.T) {
	t.Parallel()

	sink := newTerminalSink(&bytes.Buffer{})
	controller := &fakeController{
		status: domain.Status{State: domain.SessionStateDisconnected, Failed: true, LastError: "reset"},
		onConnect: func() {
			sink.SessionStateChanged(domain.SessionStateDisconnected, domain.SessionReasonTransportError)
		},
	}

	err := converse(context.Background(), controller, "k", sink)
	if code := exitCode(t, err); code != exitTransport {
		t.Fatalf("transport exit = %d", code)
	}
	if controller.closeCount() != 0 {
		t.Fatalf("no local close expected")
	}
}

func TestConverseRemoteCloseIsClean(t *testing.T) {
	t.Parallel()

	sink := newTerminalSink(&bytes.Buffer{})
	controller := &fakeController{onConnect: func() {
		sink.SessionStateChanged(domain.SessionStateDisconnected, domain.SessionReasonClosedRemote)
	}}

	if err := converse(context.Background(), controller, "k", sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
