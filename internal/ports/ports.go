package ports

import (
	"context"
	"io"
	"time"

	"jarvis/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate int
	Channels   int

	// SampleFormat is the raw sample encoding the session must produce.
	SampleFormat string

	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session producing f32le samples.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// OutputConfig describes the playback device format.
type OutputConfig struct {
	SampleRate int
	Channels   int
}

// PlaybackHandle controls one buffer handed to an OutputSink.
type PlaybackHandle interface {
	Stop()
}

// OutputSink plays s16le buffers at absolute positions on its own clock.
type OutputSink interface {
	// Now is the current position of the output clock.
	Now() time.Duration
	// Play queues buf to start at startAt. onEnded fires once playback
	// finishes, unless the handle was stopped first.
	Play(buf []byte, startAt time.Duration, onEnded func()) (PlaybackHandle, error)
	// Reset drops everything queued or already handed to the device.
	Reset() error
	Close() error
}

// AudioOutput opens playback sinks.
type AudioOutput interface {
	Open(ctx context.Context, cfg OutputConfig) (OutputSink, error)
}

// LiveSetup is the handshake declaration sent when a session opens.
type LiveSetup struct {
	Credential          string
	Model               string
	SystemInstruction   string
	ResponseModality    string
	InputTranscription  bool
	OutputTranscription bool
	EnableSearch        bool
	Tools               []domain.ToolDeclaration
}

// LiveConnection is an open duplex channel to the remote conversational peer.
// Send methods are safe for concurrent use.
type LiveConnection interface {
	SendAudio(frame domain.AudioFrame) error
	SendToolResponses(responses []domain.ToolCallResponse) error
	Messages() <-chan domain.InboundMessage
	// Wait blocks until the message stream ends and returns its terminal error.
	Wait() error
	Close() error
}

// LiveProvider performs the remote handshake. ctx bounds the handshake only;
// the returned connection lives until Close.
type LiveProvider interface {
	Connect(ctx context.Context, setup LiveSetup) (LiveConnection, error)
}

// TranscriptRules normalizes committed transcript text.
type TranscriptRules interface {
	Apply(text string) (string, error)
}

// HudSink receives session state and transcript output.
type HudSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	HudChanged(state domain.HudState)
	ChatAppended(message domain.ChatMessage)
	SessionError(code domain.ErrorCode, detail string)
}

// Telemetry records session counters.
type Telemetry interface {
	SessionOpened()
	SessionClosed(reason domain.SessionStateReason)
	FrameSent(bytes int)
	InboundMessage()
	SegmentScheduled(lead time.Duration)
	PlaybackFlushed(dropped int)
	ToolCall(name string, result domain.ToolResult)
}
