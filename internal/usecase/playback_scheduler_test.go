package usecase

import (
	"errors"
	"testing"
	"time"
)

// 2400 bytes of 24kHz s16le mono is 50ms.
const segmentBytes = 2400

func TestPlaybackSchedulerQueuesSegmentsBackToBack(t *testing.T) {
	t.Parallel()

	sink := newFakeSink()
	scheduler := newPlaybackScheduler(sink, noopTelemetry{})

	var previousEnd time.Duration
	for i := 0; i < 5; i++ {
		segment, err := scheduler.Schedule(make([]byte, segmentBytes), 24000)
		if err != nil {
			t.Fatalf("schedule %d failed: %v", i, err)
		}
		if segment.Duration != 50*time.Millisecond {
			t.Fatalf("unexpected duration: %s", segment.Duration)
		}
		if i > 0 && segment.StartAt != previousEnd {
			t.Fatalf("segment %d starts at %s, expected %s", i, segment.StartAt, previousEnd)
		}
		previousEnd = segment.StartAt + segment.Duration
	}
	if scheduler.Live() != 5 {
		t.Fatalf("expected 5 live segments, got %d", scheduler.Live())
	}
}

func TestPlaybackSchedulerStartsAtClockAfterDrain(t *testing.T) {
	t.Parallel()

	sink := newFakeSink()
	scheduler := newPlaybackScheduler(sink, noopTelemetry{})

	if _, err := scheduler.Schedule(make([]byte, segmentBytes), 24000); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	sink.advance(time.Second)
	sink.end(0)

	segment, err := scheduler.Schedule(make([]byte, segmentBytes), 24000)
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if segment.StartAt != time.Second {
		t.Fatalf("expected a late segment to start at the current clock, got %s", segment.StartAt)
	}
	if scheduler.Live() != 1 {
		t.Fatalf("ended segment should leave the live set, got %d", scheduler.Live())
	}
}

func TestPlaybackSchedulerFlushStopsEverything(t *testing.T) {
	t.Parallel()

	sink := newFakeSink()
	scheduler := newPlaybackScheduler(sink, noopTelemetry{})
	for i := 0; i < 3; i++ {
		if _, err := scheduler.Schedule(make([]byte, segmentBytes), 24000); err != nil {
			t.Fatalf("schedule failed: %v", err)
		}
	}

	sink.advance(10 * time.Millisecond)
	dropped, err := scheduler.Flush()
	if err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if dropped != 3 || scheduler.Live() != 0 {
		t.Fatalf("expected 3 dropped and none live, got dropped=%d live=%d", dropped, scheduler.Live())
	}
	for i, handle := range sink.snapshotHandles() {
		if !handle.isStopped() {
			t.Fatalf("handle %d was not stopped", i)
		}
	}
	if sink.resetCount() != 1 {
		t.Fatalf("expected device reset")
	}
	if scheduler.cursor() != 10*time.Millisecond {
		t.Fatalf("expected cursor to restart at the clock, got %s", scheduler.cursor())
	}

	// Completions of flushed segments are ignored.
	sink.end(0)
	if scheduler.Live() != 0 {
		t.Fatalf("flushed completion changed the live set")
	}

	segment, err := scheduler.Schedule(make([]byte, segmentBytes), 24000)
	if err != nil {
		t.Fatalf("schedule after flush failed: %v", err)
	}
	if segment.StartAt != 10*time.Millisecond {
		t.Fatalf("expected fresh schedule after flush, got %s", segment.StartAt)
	}
}

func TestPlaybackSchedulerRejectsEmptyAudio(t *testing.T) {
	t.Parallel()

	scheduler := newPlaybackScheduler(newFakeSink(), noopTelemetry{})
	if _, err := scheduler.Schedule(nil, 24000); !errors.Is(err, errEmptyAudio) {
		t.Fatalf("expected errEmptyAudio, got %v", err)
	}
	if _, err := scheduler.Schedule([]byte{1}, 24000); !errors.Is(err, errEmptyAudio) {
		t.Fatalf("expected a lone byte to be rejected, got %v", err)
	}
}

func TestPlaybackSchedulerPlayFailureKeepsCursor(t *testing.T) {
	t.Parallel()

	sink := newFakeSink()
	scheduler := newPlaybackScheduler(sink, noopTelemetry{})
	if _, err := scheduler.Schedule(make([]byte, segmentBytes), 24000); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	before := scheduler.cursor()

	sink.mu.Lock()
	sink.playErr = errors.New("device gone")
	sink.mu.Unlock()

	if _, err := scheduler.Schedule(make([]byte, segmentBytes), 24000); err == nil {
		t.Fatalf("expected play error")
	}
	if scheduler.cursor() != before || scheduler.Live() != 1 {
		t.Fatalf("failed play changed scheduler state: cursor=%s live=%d", scheduler.cursor(), scheduler.Live())
	}
}

func TestPlaybackSchedulerUsesPayloadRate(t *testing.T) {
	t.Parallel()

	scheduler := newPlaybackScheduler(newFakeSink(), noopTelemetry{})
	segment, err := scheduler.Schedule(make([]byte, 3200), 16000)
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if segment.Duration != 100*time.Millisecond {
		t.Fatalf("unexpected duration for 16kHz payload: %s", segment.Duration)
	}
}
