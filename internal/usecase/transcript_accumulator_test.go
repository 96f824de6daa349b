package usecase

import (
	"testing"

	"jarvis/internal/domain"
)

func TestTranscriptAccumulatorConcatenatesDeltas(t *testing.T) {
	t.Parallel()

	acc := newTranscriptAccumulator()
	acc.AppendDelta(domain.ChannelLocal, "Hel")
	acc.AppendDelta(domain.ChannelLocal, "lo")
	acc.AppendDelta(domain.ChannelRemote, "Hi ")
	acc.AppendDelta(domain.ChannelRemote, "there")

	commit := acc.CommitTurn()
	if !commit.HasLocal || commit.Local != "Hello" {
		t.Fatalf("unexpected local commit: %+v", commit)
	}
	if !commit.HasRemote || commit.Remote != "Hi there" {
		t.Fatalf("unexpected remote commit: %+v", commit)
	}
	if acc.Pending() {
		t.Fatalf("expected buffers to be reset after commit")
	}
}

func TestTranscriptAccumulatorDropsWhitespaceOnlyTurns(t *testing.T) {
	t.Parallel()

	acc := newTranscriptAccumulator()
	acc.AppendDelta(domain.ChannelLocal, "  \n")
	acc.AppendDelta(domain.ChannelRemote, "Done")

	commit := acc.CommitTurn()
	if commit.HasLocal || commit.Local != "" {
		t.Fatalf("whitespace-only local turn should be omitted: %+v", commit)
	}
	if !commit.HasRemote || commit.Remote != "Done" {
		t.Fatalf("unexpected remote commit: %+v", commit)
	}

	if acc.Pending() {
		t.Fatalf("whitespace buffer should be discarded too")
	}
}

func TestTranscriptAccumulatorCommitIsIdempotent(t *testing.T) {
	t.Parallel()

	acc := newTranscriptAccumulator()
	first := acc.CommitTurn()
	second := acc.CommitTurn()
	if first != (TurnCommit{}) || second != (TurnCommit{}) {
		t.Fatalf("expected empty commits, got %+v and %+v", first, second)
	}

	acc.AppendDelta(domain.ChannelLocal, "once")
	if commit := acc.CommitTurn(); commit.Local != "once" {
		t.Fatalf("unexpected commit: %+v", commit)
	}
	if commit := acc.CommitTurn(); commit.HasLocal {
		t.Fatalf("text must not be committed twice: %+v", commit)
	}
}

func TestTranscriptAccumulatorKeepsDeltaSpacing(t *testing.T) {
	t.Parallel()

	acc := newTranscriptAccumulator()
	acc.AppendDelta(domain.ChannelRemote, " Good")
	acc.AppendDelta(domain.ChannelRemote, " evening. ")

	if commit := acc.CommitTurn(); commit.Remote != " Good evening. " {
		t.Fatalf("expected text as accumulated, got %q", commit.Remote)
	}
}
