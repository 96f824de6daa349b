package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"jarvis/internal/domain"
	"jarvis/internal/ports"
)

// liveSession is the subset of *genai.Session the provider drives.
type liveSession interface {
	SendRealtimeInput(input genai.LiveRealtimeInput) error
	SendToolResponse(input genai.LiveToolResponseInput) error
	Receive() (*genai.LiveServerMessage, error)
	Close() error
}

type dialFunc func(ctx context.Context, apiKey string, model string, cfg *genai.LiveConnectConfig) (liveSession, error)

// SDKProvider opens live sessions through the genai client.
type SDKProvider struct {
	dial dialFunc
}

func NewSDKProvider() *SDKProvider {
	return &SDKProvider{dial: dialGenAI}
}

func dialGenAI(ctx context.Context, apiKey string, model string, cfg *genai.LiveConnectConfig) (liveSession, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	session, err := client.Live.Connect(ctx, model, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gemini live: %w", err)
	}
	return session, nil
}

func (p *SDKProvider) Connect(ctx context.Context, setup ports.LiveSetup) (ports.LiveConnection, error) {
	if strings.TrimSpace(setup.Credential) == "" {
		return nil, errors.New("gemini api key is not configured")
	}

	session, err := p.dial(ctx, setup.Credential, setup.Model, liveConnectConfig(setup))
	if err != nil {
		return nil, err
	}

	early, err := awaitSetupComplete(ctx, session)
	if err != nil {
		_ = session.Close()
		return nil, err
	}

	conn := &sdkConnection{
		inboundStream: newInboundStream(early),
		session:       session,
	}
	go conn.readLoop()

	return conn, nil
}

type receiveResult struct {
	message *genai.LiveServerMessage
	err     error
}

// awaitSetupComplete reads until the server acknowledges the setup. Receive
// cannot be interrupted, so a cancelled ctx leaves the caller to close the
// session, which unblocks the pending read.
func awaitSetupComplete(ctx context.Context, session liveSession) ([]domain.InboundMessage, error) {
	var early []domain.InboundMessage
	for {
		results := make(chan receiveResult, 1)
		go func() {
			message, err := session.Receive()
			results <- receiveResult{message: message, err: err}
		}()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("setup was not acknowledged: %w", ctx.Err())
		case result := <-results:
			if result.err != nil {
				return nil, fmt.Errorf("setup was not acknowledged: %w", result.err)
			}
			if result.message == nil {
				continue
			}
			if inbound, ok := fromGenAI(result.message); ok {
				early = append(early, inbound)
			}
			if result.message.SetupComplete != nil {
				return early, nil
			}
		}
	}
}

type sdkConnection struct {
	*inboundStream

	session liveSession
	// genai sessions write to a single websocket; writes must not interleave.
	sendMu sync.Mutex
}

func (c *sdkConnection) SendAudio(frame domain.AudioFrame) error {
	if len(frame.Data) == 0 {
		return nil
	}
	if c.isClosing() {
		return errConnectionClosed
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: frame.Data, MIMEType: frame.MIMEType},
	})
}

func (c *sdkConnection) SendToolResponses(responses []domain.ToolCallResponse) error {
	if len(responses) == 0 {
		return nil
	}
	if c.isClosing() {
		return errConnectionClosed
	}

	input := genai.LiveToolResponseInput{FunctionResponses: make([]*genai.FunctionResponse, 0, len(responses))}
	for _, response := range responses {
		input.FunctionResponses = append(input.FunctionResponses, &genai.FunctionResponse{
			ID:       response.ID,
			Name:     response.Name,
			Response: map[string]any{"result": string(response.Result)},
		})
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.session.SendToolResponse(input)
}

func (c *sdkConnection) Close() error {
	if c.beginClose() {
		_ = c.session.Close()
	}
	<-c.done
	return nil
}

func (c *sdkConnection) readLoop() {
	defer c.finish()

	for {
		message, err := c.session.Receive()
		if err != nil {
			if !c.isClosing() {
				c.setErr(fmt.Errorf("failed to read live message: %w", err))
			}
			return
		}
		if message == nil {
			continue
		}

		inbound, ok := fromGenAI(message)
		if !ok {
			continue
		}
		if !c.emit(inbound) {
			return
		}
	}
}

func liveConnectConfig(setup ports.LiveSetup) *genai.LiveConnectConfig {
	cfg := &genai.LiveConnectConfig{}
	if setup.ResponseModality != "" {
		cfg.ResponseModalities = []genai.Modality{genai.Modality(setup.ResponseModality)}
	}
	if strings.TrimSpace(setup.SystemInstruction) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(setup.SystemInstruction, genai.RoleUser)
	}
	if setup.InputTranscription {
		cfg.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if setup.OutputTranscription {
		cfg.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}

	if len(setup.Tools) > 0 {
		declarations := make([]*genai.FunctionDeclaration, 0, len(setup.Tools))
		for _, tool := range setup.Tools {
			declarations = append(declarations, &genai.FunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  genaiSchema(tool),
			})
		}
		cfg.Tools = append(cfg.Tools, &genai.Tool{FunctionDeclarations: declarations})
	}
	if setup.EnableSearch {
		cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	return cfg
}

func genaiSchema(tool domain.ToolDeclaration) *genai.Schema {
	schema := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
	for _, param := range tool.Params {
		schema.Properties[param.Name] = &genai.Schema{
			Type:        genai.TypeString,
			Description: param.Description,
			Enum:        param.Enum,
		}
		if param.Required {
			schema.Required = append(schema.Required, param.Name)
		}
	}
	return schema
}

// fromGenAI maps an SDK message onto the domain, mirroring translateServerMessage.
func fromGenAI(message *genai.LiveServerMessage) (domain.InboundMessage, bool) {
	var inbound domain.InboundMessage
	useful := false

	if content := message.ServerContent; content != nil {
		if content.InputTranscription != nil {
			inbound.InputTranscription = &domain.TranscriptDelta{Text: content.InputTranscription.Text}
			useful = true
		}
		if content.OutputTranscription != nil {
			inbound.OutputTranscription = &domain.TranscriptDelta{Text: content.OutputTranscription.Text}
			useful = true
		}
		if content.TurnComplete {
			inbound.TurnComplete = true
			useful = true
		}
		if content.Interrupted {
			inbound.Interrupted = true
			useful = true
		}
		if content.ModelTurn != nil {
			var audio *domain.AudioPayload
			for _, part := range content.ModelTurn.Parts {
				if part == nil || part.InlineData == nil {
					continue
				}
				audio = appendAudio(audio, &blobPayload{MIMEType: part.InlineData.MIMEType, Data: part.InlineData.Data})
			}
			if audio != nil {
				inbound.Audio = audio
				useful = true
			}
		}
	}

	if message.ToolCall != nil {
		for _, call := range message.ToolCall.FunctionCalls {
			if call == nil {
				continue
			}
			inbound.ToolCalls = append(inbound.ToolCalls, domain.ToolCallRequest{ID: call.ID, Name: call.Name, Args: call.Args})
		}
		useful = useful || len(inbound.ToolCalls) > 0
	}

	if message.GoAway != nil {
		inbound.GoAway = true
		useful = true
	}
	return inbound, useful
}
