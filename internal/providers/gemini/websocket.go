package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"jarvis/internal/domain"
	"jarvis/internal/ports"
)

// DefaultEndpoint is the public BidiGenerateContent websocket.
const DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// WebsocketProvider speaks the BidiGenerateContent JSON protocol directly.
type WebsocketProvider struct {
	endpoint string
	dialer   *websocket.Dialer
}

func NewWebsocketProvider(endpoint string) *WebsocketProvider {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	return &WebsocketProvider{endpoint: endpoint, dialer: websocket.DefaultDialer}
}

func (p *WebsocketProvider) Connect(ctx context.Context, setup ports.LiveSetup) (ports.LiveConnection, error) {
	if strings.TrimSpace(setup.Credential) == "" {
		return nil, errors.New("gemini api key is not configured")
	}

	wsURL, err := buildLiveURL(p.endpoint, setup.Credential)
	if err != nil {
		return nil, err
	}

	conn, _, err := p.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gemini live websocket: %w", err)
	}

	early, err := handshake(ctx, conn, setup)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	session := &websocketConnection{
		inboundStream: newInboundStream(early),
		conn:          conn,
		outgoing:      make(chan []byte, 32),
		readDone:      make(chan struct{}),
	}

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		session.finish()
		_ = conn.Close()
	}()

	return session, nil
}

// handshake sends the setup message and waits for setupComplete. Messages
// that arrive first are returned so they can be delivered in order.
func handshake(ctx context.Context, conn *websocket.Conn, setup ports.LiveSetup) ([]domain.InboundMessage, error) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		_ = conn.SetReadDeadline(deadline)
	}

	if err := conn.WriteJSON(buildSetupMessage(setup)); err != nil {
		return nil, handshakeErr(ctx, fmt.Errorf("failed to send setup: %w", err))
	}

	var early []domain.InboundMessage
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return nil, handshakeErr(ctx, fmt.Errorf("setup was not acknowledged: %w", err))
		}

		var message serverMessage
		if err := json.Unmarshal(payload, &message); err != nil {
			continue
		}
		if message.Error != nil {
			return nil, fmt.Errorf("setup rejected: %s", describeServerError(message.Error))
		}
		if inbound, ok := translateServerMessage(message); ok {
			early = append(early, inbound)
		}
		if message.SetupComplete != nil {
			break
		}
	}

	if !stop() {
		return nil, handshakeErr(ctx, errors.New("setup was not acknowledged"))
	}
	_ = conn.SetWriteDeadline(time.Time{})
	_ = conn.SetReadDeadline(time.Time{})
	return early, nil
}

func handshakeErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}

type websocketConnection struct {
	*inboundStream

	conn     *websocket.Conn
	outgoing chan []byte
	readDone chan struct{}

	wg sync.WaitGroup
}

func (s *websocketConnection) SendAudio(frame domain.AudioFrame) error {
	if len(frame.Data) == 0 {
		return nil
	}
	return s.sendJSON(buildAudioMessage(frame))
}

func (s *websocketConnection) SendToolResponses(responses []domain.ToolCallResponse) error {
	if len(responses) == 0 {
		return nil
	}
	return s.sendJSON(buildToolResponseMessage(responses))
}

func (s *websocketConnection) sendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := s.sendable(); err != nil {
		return err
	}

	select {
	case s.outgoing <- payload:
		return nil
	case <-s.closing:
		return errConnectionClosed
	case <-s.done:
		return s.sendable()
	}
}

// sendable reports why nothing more can be written, or nil while the
// connection is live.
func (s *websocketConnection) sendable() error {
	select {
	case <-s.closing:
		return errConnectionClosed
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errConnectionClosed
	default:
		return nil
	}
}

func (s *websocketConnection) Close() error {
	if s.beginClose() {
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = s.conn.Close()
	}
	<-s.done
	return nil
}

// writeLoop is the only writer of data frames.
func (s *websocketConnection) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case payload := <-s.outgoing:
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !s.isClosing() {
					s.setErr(fmt.Errorf("failed to send message: %w", err))
				}
				_ = s.conn.Close()
				return
			}
		case <-s.readDone:
			return
		case <-s.closing:
			return
		}
	}
}

func (s *websocketConnection) readLoop() {
	defer s.wg.Done()
	defer close(s.readDone)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !s.isClosing() {
				s.setErr(fmt.Errorf("failed to read live message: %w", err))
			}
			return
		}

		var message serverMessage
		if err := json.Unmarshal(payload, &message); err != nil {
			continue
		}
		if message.Error != nil {
			s.setErr(fmt.Errorf("live session error: %s", describeServerError(message.Error)))
			return
		}

		inbound, ok := translateServerMessage(message)
		if !ok {
			continue
		}
		if !s.emit(inbound) {
			return
		}
	}
}

func describeServerError(payload *serverErrorPayload) string {
	message := strings.TrimSpace(payload.Message)
	if message == "" {
		message = "unknown error"
	}
	if payload.Status != "" {
		return fmt.Sprintf("%s (%s)", message, payload.Status)
	}
	return message
}

func buildLiveURL(endpoint string, apiKey string) (string, error) {
	base := strings.TrimSpace(endpoint)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	liveURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid gemini live url: %w", err)
	}
	if liveURL.Scheme != "ws" && liveURL.Scheme != "wss" {
		return "", fmt.Errorf("invalid gemini live url scheme %q", liveURL.Scheme)
	}

	query := liveURL.Query()
	query.Set("key", apiKey)
	liveURL.RawQuery = query.Encode()
	return liveURL.String(), nil
}
