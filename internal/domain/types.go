package domain

import "time"

// SessionState models the live session lifecycle.
type SessionState string

const (
	SessionStateDisconnected SessionState = "disconnected"
	SessionStateConnecting   SessionState = "connecting"
	SessionStateOpen         SessionState = "open"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonIdle            SessionStateReason = "idle"
	SessionReasonConnecting      SessionStateReason = "connecting"
	SessionReasonConnected       SessionStateReason = "connected"
	SessionReasonClosedLocal     SessionStateReason = "closed_local"
	SessionReasonClosedRemote    SessionStateReason = "closed_remote"
	SessionReasonTransportError  SessionStateReason = "transport_error"
	SessionReasonCaptureFailed   SessionStateReason = "capture_failed"
	SessionReasonHandshakeFailed SessionStateReason = "handshake_failed"
	SessionReasonOutputFailed    SessionStateReason = "output_failed"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup     ErrorCode = "startup"
	ErrorCodeCapture     ErrorCode = "capture"
	ErrorCodeHandshake   ErrorCode = "handshake"
	ErrorCodeTransport   ErrorCode = "transport"
	ErrorCodeAudioStream ErrorCode = "audio_stream"
	ErrorCodePlayback    ErrorCode = "playback"
	ErrorCodeTool        ErrorCode = "tool"
	ErrorCodeRules       ErrorCode = "rules"
)

// Status summarizes the current session status.
type Status struct {
	State      SessionState `json:"state"`
	InboundSeq uint64       `json:"inboundSeq"`
	Failed     bool         `json:"failed"`
	LastError  string       `json:"lastError,omitempty"`
}

// ThemeColor is the HUD accent color.
type ThemeColor string

const (
	ThemeCyan  ThemeColor = "cyan"
	ThemeAmber ThemeColor = "amber"
	ThemeRed   ThemeColor = "red"
	ThemeGreen ThemeColor = "green"
)

// ThemeColors lists every accepted theme in declaration order.
var ThemeColors = []ThemeColor{ThemeCyan, ThemeAmber, ThemeRed, ThemeGreen}

// Valid reports whether c is one of the known themes.
func (c ThemeColor) Valid() bool {
	for _, known := range ThemeColors {
		if c == known {
			return true
		}
	}
	return false
}

// HudState is the interface state driven by the session and tool calls.
type HudState struct {
	IsListening         bool       `json:"isListening"`
	IsConnected         bool       `json:"isConnected"`
	ThemeColor          ThemeColor `json:"themeColor"`
	IsDiagnosticRunning bool       `json:"isDiagnosticRunning"`
	IsSystemLocked      bool       `json:"isSystemLocked"`
}

// DefaultHudState is the state before any session has run.
func DefaultHudState() HudState {
	return HudState{ThemeColor: ThemeCyan}
}

// Channel identifies a transcript direction.
type Channel string

const (
	ChannelLocal  Channel = "local"
	ChannelRemote Channel = "remote"
)

// Sender identifies who spoke a chat message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderJarvis Sender = "jarvis"
)

// ChatMessage is a committed utterance. It is never mutated after creation.
type ChatMessage struct {
	ID     string `json:"id"`
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
}

// AudioChunk is one block of captured samples in [-1, 1].
type AudioChunk struct {
	Samples    []float32
	CapturedAt time.Time
}

// AudioFrame is a transport-ready encoding of one AudioChunk.
type AudioFrame struct {
	Data     []byte
	Encoding string
	MIMEType string
}

// AudioPayload is synthesized audio received from the remote peer.
type AudioPayload struct {
	Data     []byte
	MIMEType string
}

// PlaybackSegment describes one scheduled unit of output audio.
type PlaybackSegment struct {
	ID       uint64
	StartAt  time.Duration
	Duration time.Duration
}

// TranscriptDelta is an incremental piece of transcript text.
type TranscriptDelta struct {
	Text string
}

// ToolResult is the outcome reported back for a tool call.
type ToolResult string

const (
	ToolResultSuccess ToolResult = "success"
	ToolResultFailed  ToolResult = "failed"
)

// ToolCallRequest is a function call issued by the remote peer.
type ToolCallRequest struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolCallResponse answers exactly one ToolCallRequest.
type ToolCallResponse struct {
	ID     string
	Name   string
	Result ToolResult
}

// ToolParam declares one string argument of a tool.
type ToolParam struct {
	Name        string
	Description string
	Enum        []string
	Required    bool
}

// ToolDeclaration is a tool advertised to the remote peer during the handshake.
type ToolDeclaration struct {
	Name        string
	Description string
	Params      []ToolParam
}

// InboundMessage is one decoded message from the remote peer. Several payload
// kinds may be set at once.
type InboundMessage struct {
	InputTranscription  *TranscriptDelta
	OutputTranscription *TranscriptDelta
	TurnComplete        bool
	Interrupted         bool
	Audio               *AudioPayload
	ToolCalls           []ToolCallRequest
	GoAway              bool
}
