package usecase

import (
	"strings"

	"github.com/google/uuid"

	"jarvis/internal/domain"
	"jarvis/internal/log"
	"jarvis/internal/ports"
)

// transcriptFinalizer turns a committed turn into chat messages.
type transcriptFinalizer struct {
	rules  ports.TranscriptRules
	events ports.HudSink
	logger *log.Logger
	newID  func() string
}

func newTranscriptFinalizer(rules ports.TranscriptRules, events ports.HudSink, logger *log.Logger) transcriptFinalizer {
	return transcriptFinalizer{rules: rules, events: events, logger: logger, newID: newMessageID}
}

// Finalize emits the user message before the jarvis message. Rule failures
// fall back to the raw text.
func (f transcriptFinalizer) Finalize(commit TurnCommit) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, 2)
	if commit.HasLocal {
		if message, ok := f.message(domain.SenderUser, commit.Local); ok {
			messages = append(messages, message)
		}
	}
	if commit.HasRemote {
		if message, ok := f.message(domain.SenderJarvis, commit.Remote); ok {
			messages = append(messages, message)
		}
	}

	for _, message := range messages {
		f.events.ChatAppended(message)
	}
	return messages
}

func (f transcriptFinalizer) message(sender domain.Sender, raw string) (domain.ChatMessage, bool) {
	text := raw
	if f.rules != nil {
		transformed, err := f.rules.Apply(raw)
		if err != nil {
			f.logger.Warn("transcript rules failed", map[string]any{"sender": string(sender), "error": err.Error()})
			f.events.SessionError(domain.ErrorCodeRules, err.Error())
		} else {
			text = transformed
		}
	}
	if strings.TrimSpace(text) == "" {
		f.logger.Debug("dropping empty transcript after rules", map[string]any{"sender": string(sender)})
		return domain.ChatMessage{}, false
	}
	return domain.ChatMessage{ID: f.newID(), Sender: sender, Text: text}, true
}

func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
