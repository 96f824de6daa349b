package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"jarvis/internal/pcm"
	"jarvis/internal/ports"
)

// ErrCaptureDenied reports that the recorder could not open the input device.
var ErrCaptureDenied = errors.New("microphone unavailable")

const (
	// captureWarmup is how long the recorder must stay up before the device
	// counts as open.
	captureWarmup = 250 * time.Millisecond
	// stopGrace bounds the wait for ffmpeg to exit after an interrupt.
	stopGrace = 1200 * time.Millisecond
)

// FFMPEGCapture records the microphone by running ffmpeg with raw output on
// stdout.
type FFMPEGCapture struct {
	command string
}

func NewFFMPEGCapture(command string) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{command: command}
}

// captureArgs builds the recorder command line for cfg, filling defaults for
// anything left unset.
func captureArgs(cfg ports.AudioConfig) []string {
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = pcm.CaptureRate
	}
	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}
	format := cfg.SampleFormat
	if format == "" {
		format = pcm.FormatF32LE
	}
	source, device := cfg.InputFormat, cfg.InputDevice
	if source == "" {
		source = "pulse"
	}
	if device == "" {
		device = "default"
	}

	return []string{
		"-nostdin", "-hide_banner", "-loglevel", "warning",
		"-f", source, "-i", device,
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(rate),
		"-f", format, "-",
	}
}

// Start launches the recorder and returns once it has survived the warmup.
// A recorder that exits during warmup is reported as ErrCaptureDenied.
func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cmd := exec.CommandContext(ctx, c.command, captureArgs(cfg)...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open recorder output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start recorder: %w", err)
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
		close(exited)
	}()

	timer := time.NewTimer(captureWarmup)
	defer timer.Stop()
	select {
	case <-timer.C:
	case err := <-exited:
		detail := strings.TrimSpace(stderr.String())
		if err == nil {
			return nil, fmt.Errorf("%w: ffmpeg exited before capture started", ErrCaptureDenied)
		}
		return nil, fmt.Errorf("%w: ffmpeg exited before capture started: %v: %s", ErrCaptureDenied, err, detail)
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		return nil, ctx.Err()
	}

	return &captureSession{
		ReadCloser: stdout,
		stderr:     stderr,
		process:    cmd.Process,
		exited:     exited,
	}, nil
}

// captureSession reads samples from a running recorder. Stop interrupts it
// and waits for exit, killing it past stopGrace.
type captureSession struct {
	io.ReadCloser

	stderr  *bytes.Buffer
	process *os.Process
	exited  <-chan error

	once sync.Once
	err  error
}

func (s *captureSession) Close() error {
	return s.Stop()
}

func (s *captureSession) Stop() error {
	s.once.Do(func() {
		s.err = s.shutdown()
	})
	return s.err
}

func (s *captureSession) shutdown() error {
	_ = s.process.Signal(os.Interrupt)

	timer := time.NewTimer(stopGrace)
	defer timer.Stop()

	var err error
	select {
	case err = <-s.exited:
	case <-timer.C:
		_ = s.process.Kill()
		err = <-s.exited
	}
	err = ignoreExitStatus(err)

	if closeErr := s.ReadCloser.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && err == nil {
		err = closeErr
	}
	if err != nil {
		if detail := strings.TrimSpace(s.stderr.String()); detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
	}
	return err
}

// ignoreExitStatus drops the non-zero status ffmpeg reports when interrupted.
func ignoreExitStatus(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
