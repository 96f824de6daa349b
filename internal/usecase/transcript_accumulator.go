package usecase

import (
	"strings"

	"jarvis/internal/domain"
)

// TurnCommit is the text released when a turn completes. A side is only
// present when its buffer held non-whitespace text.
type TurnCommit struct {
	Local     string
	Remote    string
	HasLocal  bool
	HasRemote bool
}

// transcriptAccumulator buffers one in-progress turn per channel. It is owned
// by the session loop and is not safe for concurrent use.
type transcriptAccumulator struct {
	local  strings.Builder
	remote strings.Builder
}

func newTranscriptAccumulator() *transcriptAccumulator {
	return &transcriptAccumulator{}
}

// AppendDelta concatenates text onto the channel's buffer as received.
func (a *transcriptAccumulator) AppendDelta(channel domain.Channel, text string) {
	switch channel {
	case domain.ChannelLocal:
		a.local.WriteString(text)
	case domain.ChannelRemote:
		a.remote.WriteString(text)
	}
}

// CommitTurn releases both buffers and resets them. Calling it with nothing
// buffered returns an empty commit.
func (a *transcriptAccumulator) CommitTurn() TurnCommit {
	local := a.local.String()
	remote := a.remote.String()
	a.local.Reset()
	a.remote.Reset()

	commit := TurnCommit{}
	if strings.TrimSpace(local) != "" {
		commit.Local = local
		commit.HasLocal = true
	}
	if strings.TrimSpace(remote) != "" {
		commit.Remote = remote
		commit.HasRemote = true
	}
	return commit
}

// Pending reports whether either buffer holds text.
func (a *transcriptAccumulator) Pending() bool {
	return a.local.Len() > 0 || a.remote.Len() > 0
}
