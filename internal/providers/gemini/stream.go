// Package gemini connects live sessions to the Gemini Live API, either through
// the genai SDK or over a raw websocket.
package gemini

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"jarvis/internal/domain"
)

var errConnectionClosed = errors.New("live connection is closed")

// inboundBuffer is the message queue depth past any pre-setup backlog.
const inboundBuffer = 64

// inboundStream hands translated messages from a read loop to the session and
// records the first terminal error.
type inboundStream struct {
	messages chan domain.InboundMessage
	closing  chan struct{}
	done     chan struct{}

	closeOnce sync.Once

	errMu sync.Mutex
	err   error
}

// newInboundStream returns a stream that delivers backlog first. The buffer
// grows with the backlog so queueing it never blocks.
func newInboundStream(backlog []domain.InboundMessage) *inboundStream {
	s := &inboundStream{
		messages: make(chan domain.InboundMessage, inboundBuffer+len(backlog)),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, message := range backlog {
		s.messages <- message
	}
	return s
}

func (s *inboundStream) Messages() <-chan domain.InboundMessage {
	return s.messages
}

// Wait blocks until the read side has stopped.
func (s *inboundStream) Wait() error {
	<-s.done
	return s.waitErr()
}

// emit blocks until the session takes the message or the connection closes.
func (s *inboundStream) emit(message domain.InboundMessage) bool {
	select {
	case s.messages <- message:
		return true
	case <-s.closing:
		return false
	}
}

func (s *inboundStream) isClosing() bool {
	select {
	case <-s.closing:
		return true
	default:
		return false
	}
}

// beginClose marks the connection as locally closed. It reports whether this
// call was the first.
func (s *inboundStream) beginClose() bool {
	first := false
	s.closeOnce.Do(func() {
		close(s.closing)
		first = true
	})
	return first
}

func (s *inboundStream) finish() {
	close(s.messages)
	close(s.done)
}

func (s *inboundStream) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *inboundStream) setErr(err error) {
	if err == nil || isNormalClose(err) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func isNormalClose(err error) bool {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return false
	}
	switch closeErr.Code {
	case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
		return true
	}
	return false
}
