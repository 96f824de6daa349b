package usecase

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"jarvis/internal/domain"
	"jarvis/internal/pcm"
	"jarvis/internal/ports"
)

var errEmptyAudio = errors.New("empty audio payload")

// playbackScheduler lays synthesized buffers back to back on the sink clock.
// Completion callbacks arrive on sink goroutines, so all state is guarded.
type playbackScheduler struct {
	sink      ports.OutputSink
	telemetry ports.Telemetry

	mu        sync.Mutex
	nextStart time.Duration
	nextID    uint64
	// A nil handle marks a segment whose Play call has not returned yet.
	live map[uint64]ports.PlaybackHandle
}

func newPlaybackScheduler(sink ports.OutputSink, telemetry ports.Telemetry) *playbackScheduler {
	return &playbackScheduler{
		sink:      sink,
		telemetry: telemetry,
		nextStart: sink.Now(),
		live:      make(map[uint64]ports.PlaybackHandle),
	}
}

// Schedule queues an s16le mono buffer directly after the previous one, or
// immediately when playback has drained.
func (s *playbackScheduler) Schedule(buf []byte, sampleRate int) (domain.PlaybackSegment, error) {
	if len(buf)%2 == 1 {
		buf = buf[:len(buf)-1]
	}
	if len(buf) == 0 {
		return domain.PlaybackSegment{}, errEmptyAudio
	}
	if sampleRate <= 0 {
		sampleRate = pcm.PlaybackRate
	}
	duration := pcm.Duration(len(buf), sampleRate)

	s.mu.Lock()
	now := s.sink.Now()
	startAt := s.nextStart
	if now > startAt {
		startAt = now
	}
	s.nextID++
	id := s.nextID
	s.nextStart = startAt + duration
	s.live[id] = nil
	s.mu.Unlock()

	handle, err := s.sink.Play(buf, startAt, func() { s.finish(id) })
	if err != nil {
		s.mu.Lock()
		delete(s.live, id)
		if s.nextStart == startAt+duration {
			s.nextStart = startAt
		}
		s.mu.Unlock()
		return domain.PlaybackSegment{}, fmt.Errorf("failed to schedule playback: %w", err)
	}

	s.mu.Lock()
	_, pending := s.live[id]
	if pending {
		s.live[id] = handle
	}
	s.mu.Unlock()

	if !pending {
		// Flushed (or already finished) while Play was running.
		handle.Stop()
	}

	s.telemetry.SegmentScheduled(startAt - now)
	return domain.PlaybackSegment{ID: id, StartAt: startAt, Duration: duration}, nil
}

// Flush stops every live segment, resets the device and restarts the cursor
// at the current clock. It returns the number of segments dropped; a device
// reset failure is reported but the cursor is reset regardless.
func (s *playbackScheduler) Flush() (int, error) {
	s.mu.Lock()
	dropped := s.live
	s.live = make(map[uint64]ports.PlaybackHandle)
	s.mu.Unlock()

	for _, handle := range dropped {
		if handle != nil {
			handle.Stop()
		}
	}
	resetErr := s.sink.Reset()

	s.mu.Lock()
	s.nextStart = s.sink.Now()
	s.mu.Unlock()

	s.telemetry.PlaybackFlushed(len(dropped))
	if resetErr != nil {
		return len(dropped), fmt.Errorf("failed to reset playback device: %w", resetErr)
	}
	return len(dropped), nil
}

// Live reports how many segments are scheduled or playing.
func (s *playbackScheduler) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

func (s *playbackScheduler) cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

func (s *playbackScheduler) finish(id uint64) {
	s.mu.Lock()
	delete(s.live, id)
	s.mu.Unlock()
}
