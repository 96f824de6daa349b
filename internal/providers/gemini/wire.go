package gemini

import (
	"strings"

	"jarvis/internal/domain"
	"jarvis/internal/ports"
)

// Client messages of the BidiGenerateContent protocol.

type clientSetupMessage struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model                    string           `json:"model"`
	GenerationConfig         generationConfig `json:"generationConfig"`
	SystemInstruction        *contentPayload  `json:"systemInstruction,omitempty"`
	Tools                    []toolPayload    `json:"tools,omitempty"`
	InputAudioTranscription  *struct{}        `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}        `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type contentPayload struct {
	Role  string        `json:"role,omitempty"`
	Parts []partPayload `json:"parts"`
}

type partPayload struct {
	Text       string       `json:"text,omitempty"`
	InlineData *blobPayload `json:"inlineData,omitempty"`
}

// blobPayload data is base64 on the wire; encoding/json handles []byte that way.
type blobPayload struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type toolPayload struct {
	FunctionDeclarations []functionDeclarationPayload `json:"functionDeclarations,omitempty"`
	GoogleSearch         *struct{}                    `json:"googleSearch,omitempty"`
}

type functionDeclarationPayload struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  *schemaPayload `json:"parameters,omitempty"`
}

type schemaPayload struct {
	Type        string                    `json:"type"`
	Description string                    `json:"description,omitempty"`
	Enum        []string                  `json:"enum,omitempty"`
	Properties  map[string]*schemaPayload `json:"properties,omitempty"`
	Required    []string                  `json:"required,omitempty"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInputPayload `json:"realtimeInput"`
}

type realtimeInputPayload struct {
	Audio *blobPayload `json:"audio,omitempty"`
}

type toolResponseMessage struct {
	ToolResponse toolResponsePayload `json:"toolResponse"`
}

type toolResponsePayload struct {
	FunctionResponses []functionResponsePayload `json:"functionResponses"`
}

type functionResponsePayload struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// Server messages.

type serverMessage struct {
	SetupComplete *struct{}           `json:"setupComplete,omitempty"`
	ServerContent *serverContent      `json:"serverContent,omitempty"`
	ToolCall      *toolCallPayload    `json:"toolCall,omitempty"`
	GoAway        *goAwayPayload      `json:"goAway,omitempty"`
	Error         *serverErrorPayload `json:"error,omitempty"`
}

type serverContent struct {
	ModelTurn           *contentPayload       `json:"modelTurn,omitempty"`
	TurnComplete        bool                  `json:"turnComplete,omitempty"`
	Interrupted         bool                  `json:"interrupted,omitempty"`
	InputTranscription  *transcriptionPayload `json:"inputTranscription,omitempty"`
	OutputTranscription *transcriptionPayload `json:"outputTranscription,omitempty"`
}

type transcriptionPayload struct {
	Text string `json:"text"`
}

type toolCallPayload struct {
	FunctionCalls []functionCallPayload `json:"functionCalls"`
}

type functionCallPayload struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type goAwayPayload struct {
	TimeLeft string `json:"timeLeft"`
}

type serverErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func modelResource(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

func buildSetupMessage(setup ports.LiveSetup) clientSetupMessage {
	payload := setupPayload{
		Model: modelResource(setup.Model),
	}
	if setup.ResponseModality != "" {
		payload.GenerationConfig.ResponseModalities = []string{setup.ResponseModality}
	}
	if strings.TrimSpace(setup.SystemInstruction) != "" {
		payload.SystemInstruction = &contentPayload{Parts: []partPayload{{Text: setup.SystemInstruction}}}
	}
	if setup.InputTranscription {
		payload.InputAudioTranscription = &struct{}{}
	}
	if setup.OutputTranscription {
		payload.OutputAudioTranscription = &struct{}{}
	}

	if len(setup.Tools) > 0 {
		declarations := make([]functionDeclarationPayload, 0, len(setup.Tools))
		for _, tool := range setup.Tools {
			declarations = append(declarations, functionDeclarationPayload{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  toolSchema(tool),
			})
		}
		payload.Tools = append(payload.Tools, toolPayload{FunctionDeclarations: declarations})
	}
	if setup.EnableSearch {
		payload.Tools = append(payload.Tools, toolPayload{GoogleSearch: &struct{}{}})
	}
	return clientSetupMessage{Setup: payload}
}

func toolSchema(tool domain.ToolDeclaration) *schemaPayload {
	schema := &schemaPayload{Type: "OBJECT", Properties: map[string]*schemaPayload{}}
	for _, param := range tool.Params {
		schema.Properties[param.Name] = &schemaPayload{
			Type:        "STRING",
			Description: param.Description,
			Enum:        param.Enum,
		}
		if param.Required {
			schema.Required = append(schema.Required, param.Name)
		}
	}
	return schema
}

func buildAudioMessage(frame domain.AudioFrame) realtimeInputMessage {
	return realtimeInputMessage{RealtimeInput: realtimeInputPayload{
		Audio: &blobPayload{MIMEType: frame.MIMEType, Data: frame.Data},
	}}
}

func buildToolResponseMessage(responses []domain.ToolCallResponse) toolResponseMessage {
	payload := toolResponsePayload{FunctionResponses: make([]functionResponsePayload, 0, len(responses))}
	for _, response := range responses {
		payload.FunctionResponses = append(payload.FunctionResponses, functionResponsePayload{
			ID:       response.ID,
			Name:     response.Name,
			Response: map[string]any{"result": string(response.Result)},
		})
	}
	return toolResponseMessage{ToolResponse: payload}
}

// translateServerMessage maps a decoded server message onto the domain. The
// boolean is false for messages that carry nothing the session acts on.
func translateServerMessage(message serverMessage) (domain.InboundMessage, bool) {
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
				audio = appendAudio(audio, part.InlineData)
			}
			if audio != nil {
				inbound.Audio = audio
				useful = true
			}
		}
	}

	if message.ToolCall != nil {
		for _, call := range message.ToolCall.FunctionCalls {
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

// appendAudio joins consecutive audio parts of one model turn.
func appendAudio(audio *domain.AudioPayload, blob *blobPayload) *domain.AudioPayload {
	if blob == nil || len(blob.Data) == 0 || !strings.HasPrefix(blob.MIMEType, "audio/") {
		return audio
	}
	if audio == nil {
		return &domain.AudioPayload{Data: append([]byte(nil), blob.Data...), MIMEType: blob.MIMEType}
	}
	audio.Data = append(audio.Data, blob.Data...)
	return audio
}
