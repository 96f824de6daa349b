package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"jarvis/internal/pcm"
	"jarvis/internal/ports"
)

var errSinkClosed = errors.New("output sink is closed")

// FFPlayOutput plays scheduled s16le buffers through an ffplay subprocess.
type FFPlayOutput struct {
	command string
	volume  int
	lead    time.Duration
}

func NewFFPlayOutput(command string, volume int) *FFPlayOutput {
	if command == "" {
		command = "ffplay"
	}
	if volume <= 0 {
		volume = 80
	}
	return &FFPlayOutput{command: command, volume: volume, lead: 200 * time.Millisecond}
}

func (o *FFPlayOutput) Open(ctx context.Context, cfg ports.OutputConfig) (ports.OutputSink, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = pcm.PlaybackRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}

	// ffplay takes a channel layout rather than ffmpeg's -ac.
	layout := "mono"
	if cfg.Channels == 2 {
		layout = "stereo"
	}

	sink := &ffplaySink{
		command: o.command,
		args: []string{
			"-hide_banner",
			"-loglevel", "error",
			"-nostats",
			"-nodisp",
			"-volume", strconv.Itoa(o.volume),
			"-f", "s16le",
			"-ch_layout", layout,
			"-ar", strconv.Itoa(cfg.SampleRate),
			"-i", "-",
		},
		lead:     o.lead,
		origin:   time.Now(),
		rate:     cfg.SampleRate,
		channels: cfg.Channels,
		queue:    make(chan *queuedBuffer, 256),
		done:     make(chan struct{}),
	}

	sink.runningMu.Lock()
	err := sink.startLocked()
	sink.runningMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to start ffplay: %w", err)
	}

	go sink.writeLoop()
	go func() {
		select {
		case <-ctx.Done():
			_ = sink.Close()
		case <-sink.done:
		}
	}()

	return sink, nil
}

type ffplaySink struct {
	command string
	args    []string
	lead    time.Duration
	origin  time.Time

	// rate and channels are the format ffplay was started with.
	rate     int
	channels int

	queue      chan *queuedBuffer
	done       chan struct{}
	generation atomic.Uint64

	runningMu sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser

	closeOnce sync.Once
}

func (s *ffplaySink) Now() time.Duration {
	return time.Since(s.origin)
}

// duration is how long ffplay takes to consume n bytes of interleaved s16le.
func (s *ffplaySink) duration(n int) time.Duration {
	return pcm.Duration(n/s.channels, s.rate)
}

func (s *ffplaySink) Play(buf []byte, startAt time.Duration, onEnded func()) (ports.PlaybackHandle, error) {
	item := &queuedBuffer{
		data:       buf,
		startAt:    startAt,
		endAt:      startAt + s.duration(len(buf)),
		generation: s.generation.Load(),
		onEnded:    onEnded,
	}

	select {
	case <-s.done:
		return nil, errSinkClosed
	default:
	}

	select {
	case s.queue <- item:
		return item, nil
	case <-s.done:
		return nil, errSinkClosed
	}
}

// Reset restarts ffplay so audio already piped to it is dropped.
func (s *ffplaySink) Reset() error {
	s.generation.Add(1)

	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	select {
	case <-s.done:
		return nil
	default:
	}
	s.closeLocked()
	return s.startLocked()
}

func (s *ffplaySink) Close() error {
	s.closeOnce.Do(func() {
		s.generation.Add(1)
		close(s.done)
		s.runningMu.Lock()
		s.closeLocked()
		s.runningMu.Unlock()
	})
	return nil
}

func (s *ffplaySink) startLocked() error {
	cmd := exec.Command(s.command, s.args...)
	if runtime.GOOS == "darwin" && os.Getenv("SDL_AUDIODRIVER") == "" {
		cmd.Env = append(os.Environ(), "SDL_AUDIODRIVER=coreaudio")
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return err
	}
	s.cmd = cmd
	s.stdin = stdin
	go func() { _ = cmd.Wait() }()
	return nil
}

func (s *ffplaySink) closeLocked() {
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	s.cmd = nil
	s.stdin = nil
}

func (s *ffplaySink) write(data []byte) error {
	s.runningMu.Lock()
	stdin := s.stdin
	s.runningMu.Unlock()
	if stdin == nil {
		return errors.New("ffplay is not running")
	}
	_, err := stdin.Write(data)
	return err
}

func (s *ffplaySink) writeLoop() {
	for {
		var item *queuedBuffer
		select {
		case <-s.done:
			return
		case item = <-s.queue:
		}

		if !s.current(item) {
			continue
		}

		// Hand data to ffplay slightly ahead of its slot so the device never starves.
		if wait := item.startAt - s.lead - s.Now(); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-s.done:
				timer.Stop()
				return
			}
		}

		if !s.current(item) {
			continue
		}
		// A dead device still completes buffers on schedule so the live set drains.
		_ = s.write(item.data)
		item.armEnd(item.endAt - s.Now())
	}
}

func (s *ffplaySink) current(item *queuedBuffer) bool {
	return !item.isStopped() && item.generation == s.generation.Load()
}

type queuedBuffer struct {
	data       []byte
	startAt    time.Duration
	endAt      time.Duration
	generation uint64
	onEnded    func()

	mu      sync.Mutex
	stopped bool
	timer   *time.Timer
}

func (b *queuedBuffer) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
	}
}

func (b *queuedBuffer) isStopped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopped
}

func (b *queuedBuffer) armEnd(after time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	if after < 0 {
		after = 0
	}
	b.timer = time.AfterFunc(after, b.fireEnded)
}

func (b *queuedBuffer) fireEnded() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	onEnded := b.onEnded
	b.mu.Unlock()

	if onEnded != nil {
		onEnded()
	}
}
