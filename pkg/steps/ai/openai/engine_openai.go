package openai

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/kraken-agui/pkg/inference/engine"
	"github.com/go-go-golems/kraken-agui/pkg/inference/tools"
)

// OpenAIEngine implements engine.Engine with the chat-completions API.
type OpenAIEngine struct {
	client  *go_openai.Client
	model   string
	toolCfg tools.ToolConfig
}

func NewOpenAIEngine(s Settings, toolCfg tools.ToolConfig) (*OpenAIEngine, error) {
	client, err := MakeClient(s)
	if err != nil {
		return nil, err
	}
	model := s.Model
	if model == "" {
		model = DefaultSettings().Model
	}
	return &OpenAIEngine{client: client, model: model, toolCfg: toolCfg}, nil
}

func (e *OpenAIEngine) Complete(ctx context.Context, messages []engine.Message, defs []tools.ToolDefinition) (*engine.Completion, error) {
	req := go_openai.ChatCompletionRequest{
		Model:    e.model,
		Messages: messagesToOpenAI(messages),
	}

	if len(defs) > 0 {
		req.Tools = toolsToOpenAI(defs)
		switch e.toolCfg.ToolChoice {
		case tools.ToolChoiceNone:
			req.ToolChoice = "none"
		case tools.ToolChoiceRequired:
			req.ToolChoice = "required"
		default:
			req.ToolChoice = "auto"
		}
		if e.toolCfg.MaxParallelTools > 1 {
			req.ParallelToolCalls = true
		}
	}

	log.Debug().
		Str("model", e.model).
		Int("messages", len(messages)).
		Int("tools", len(defs)).
		Msg("OpenAI chat completion request")

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, wrapServiceError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &engine.ServiceError{Service: "openai", Message: "OpenAI returned no choices"}
	}

	choice := resp.Choices[0]
	ret := &engine.Completion{
		Text:         choice.Message.Content,
		ToolCalls:    toolCallsFromOpenAI(choice.Message.ToolCalls),
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
	}

	log.Debug().
		Str("model", resp.Model).
		Str("finish_reason", ret.FinishReason).
		Int("tool_calls", len(ret.ToolCalls)).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("OpenAI chat completion response")

	return ret, nil
}

func wrapServiceError(err error) error {
	var apiErr *go_openai.APIError
	if errors.As(err, &apiErr) {
		return &engine.ServiceError{
			Service:    "openai",
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Cause:      err,
		}
	}
	var reqErr *go_openai.RequestError
	if errors.As(err, &reqErr) {
		return &engine.ServiceError{
			Service:    "openai",
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
			Cause:      err,
		}
	}
	return &engine.ServiceError{Service: "openai", Message: err.Error(), Cause: err}
}

var _ engine.Engine = (*OpenAIEngine)(nil)
