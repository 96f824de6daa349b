package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"jarvis/internal/domain"
	"jarvis/internal/log"
	"jarvis/internal/pcm"
	"jarvis/internal/ports"
)

// activeSession is one open live session. Its loop goroutine owns the
// accumulator, scheduler cursor and dispatcher.
type activeSession struct {
	ctx    context.Context
	cancel context.CancelFunc

	audio ports.AudioSession
	sink  ports.OutputSink
	conn  ports.LiveConnection

	accumulator *transcriptAccumulator
	scheduler   *playbackScheduler
	dispatcher  *toolDispatcher
	finalizer   transcriptFinalizer

	events    ports.HudSink
	telemetry ports.Telemetry
	logger    *log.Logger

	inboundSeq atomic.Uint64
	deferred   chan func()
	responders sync.WaitGroup

	loopDone  chan struct{}
	audioDone chan struct{}
	audioErr  error
	closeOnce sync.Once
}

// loopExit says why the message loop stopped. A failed exit carries the
// reason and error code reported to the frontend.
type loopExit struct {
	local  bool
	reason domain.SessionStateReason
	code   domain.ErrorCode
	err    error
}

// run processes inbound messages and deferred effects until the session is
// cancelled or the message stream ends.
func (s *activeSession) run() loopExit {
	defer close(s.loopDone)

	messages := s.conn.Messages()
	for {
		select {
		case <-s.ctx.Done():
			return loopExit{local: true}
		case fn := <-s.deferred:
			fn()
		case <-s.audioDone:
			if s.ctx.Err() != nil || s.audioErr == nil {
				return loopExit{local: true}
			}
			return captureExit(s.audioErr)
		case message, ok := <-messages:
			if !ok {
				if s.ctx.Err() != nil {
					return loopExit{local: true}
				}
				if err := s.conn.Wait(); err != nil {
					return loopExit{reason: domain.SessionReasonTransportError, code: domain.ErrorCodeTransport, err: err}
				}
				return loopExit{reason: domain.SessionReasonClosedRemote}
			}
			s.handleMessage(message)
		}
	}
}

// captureExit maps the reason the audio pump stopped to a failed exit.
func captureExit(err error) loopExit {
	if errors.Is(err, errCaptureEnded) {
		return loopExit{reason: domain.SessionReasonCaptureFailed, code: domain.ErrorCodeCapture, err: err}
	}
	return loopExit{reason: domain.SessionReasonTransportError, code: domain.ErrorCodeAudioStream, err: err}
}

// post schedules fn on the loop goroutine. It is dropped once the session
// has been cancelled.
func (s *activeSession) post(fn func()) {
	select {
	case s.deferred <- fn:
	case <-s.ctx.Done():
	}
}

func (s *activeSession) after(delay time.Duration, fn func()) {
	time.AfterFunc(delay, func() { s.post(fn) })
}

func (s *activeSession) handleMessage(message domain.InboundMessage) {
	s.inboundSeq.Add(1)
	s.telemetry.InboundMessage()

	if message.InputTranscription != nil {
		s.accumulator.AppendDelta(domain.ChannelLocal, message.InputTranscription.Text)
	}
	if message.OutputTranscription != nil {
		s.accumulator.AppendDelta(domain.ChannelRemote, message.OutputTranscription.Text)
	}
	if message.TurnComplete {
		s.finalizer.Finalize(s.accumulator.CommitTurn())
	}
	if message.Interrupted {
		dropped, err := s.scheduler.Flush()
		if err != nil {
			s.logger.Warn("playback flush failed", map[string]any{"error": err.Error()})
		}
		s.logger.Debug("playback interrupted", map[string]any{"dropped": dropped})
	}
	if message.Audio != nil {
		s.playAudio(*message.Audio)
	}
	if len(message.ToolCalls) > 0 {
		s.dispatchTools(message.ToolCalls)
	}
	if message.GoAway {
		s.logger.Warn("remote peer announced disconnect", nil)
	}
}

func (s *activeSession) playAudio(payload domain.AudioPayload) {
	rate := pcm.RateFromMIME(payload.MIMEType, pcm.PlaybackRate)
	segment, err := s.scheduler.Schedule(payload.Data, rate)
	if err != nil {
		s.logger.Warn("dropping audio segment", map[string]any{"error": err.Error(), "bytes": len(payload.Data)})
		s.events.SessionError(domain.ErrorCodePlayback, err.Error())
		return
	}
	s.logger.Debug("audio segment scheduled", map[string]any{
		"segment":  segment.ID,
		"start_ms": segment.StartAt.Milliseconds(),
		"dur_ms":   segment.Duration.Milliseconds(),
	})
}

func (s *activeSession) dispatchTools(calls []domain.ToolCallRequest) {
	responses := make([]domain.ToolCallResponse, 0, len(calls))
	for _, call := range calls {
		responses = append(responses, s.dispatcher.Handle(call))
	}

	s.responders.Add(1)
	go func() {
		defer s.responders.Done()
		if err := s.conn.SendToolResponses(responses); err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Warn("tool response send failed", map[string]any{"error": err.Error(), "count": len(responses)})
			s.events.SessionError(domain.ErrorCodeTool, fmt.Sprintf("failed to send tool responses: %v", err))
		}
	}()
}
