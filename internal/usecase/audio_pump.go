package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"jarvis/internal/domain"
	"jarvis/internal/log"
	"jarvis/internal/pcm"
	"jarvis/internal/ports"
)

// errCaptureEnded reports that the microphone stopped producing samples while
// the session was still open.
var errCaptureEnded = errors.New("microphone capture ended")

type pumpConfig struct {
	chunkSamples int
	sampleRate   int
}

// pumpAudioFrames reads f32le capture output, frames it in blocks of
// chunkSamples and sends each frame. It checks ctx before every send so no
// frame leaves after the session is cancelled.
//
// It returns nil once ctx is cancelled. Otherwise the error says why audio
// stopped flowing: errCaptureEnded when the capture stream ended or failed,
// or the send failure.
func pumpAudioFrames(
	ctx context.Context,
	audio ports.AudioSession,
	conn ports.LiveConnection,
	cfg pumpConfig,
	telemetry ports.Telemetry,
	logger *log.Logger,
) error {
	if cfg.chunkSamples < 256 {
		cfg.chunkSamples = 4096
	}
	if cfg.sampleRate <= 0 {
		cfg.sampleRate = pcm.CaptureRate
	}
	chunkBytes := cfg.chunkSamples * 4

	send := func(block []byte) error {
		samples, _ := pcm.DecodeF32LE(block)
		if len(samples) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := domain.AudioChunk{Samples: samples, CapturedAt: time.Now()}
		frame := pcm.Frame(chunk.Samples, cfg.sampleRate)
		if err := conn.SendAudio(frame); err != nil {
			return fmt.Errorf("failed to stream audio: %w", err)
		}
		telemetry.FrameSent(len(frame.Data))
		return nil
	}

	buf := make([]byte, chunkBytes)
	pending := make([]byte, 0, chunkBytes*2)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for len(pending) >= chunkBytes {
				if sendErr := send(pending[:chunkBytes]); sendErr != nil {
					return pumpResult(ctx, sendErr)
				}
				pending = append(pending[:0], pending[chunkBytes:]...)
			}
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		if errors.Is(err, io.EOF) {
			if sendErr := send(pending); sendErr != nil {
				return pumpResult(ctx, sendErr)
			}
			logger.Warn("audio capture ended", nil)
			return errCaptureEnded
		}
		logger.Warn("audio capture read failed", map[string]any{"error": err.Error()})
		return fmt.Errorf("%w: %w", errCaptureEnded, err)
	}
}

func pumpResult(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}
