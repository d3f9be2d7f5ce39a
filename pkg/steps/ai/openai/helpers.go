package openai

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/kraken-agui/pkg/conversation"
	"github.com/go-go-golems/kraken-agui/pkg/inference/engine"
	"github.com/go-go-golems/kraken-agui/pkg/inference/tools"
)

// Settings configures the chat-completion client.
type Settings struct {
	APIKey           string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL          string        `mapstructure:"base_url" yaml:"base_url"`
	Model            string        `mapstructure:"model" yaml:"model"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxHistoryTokens int           `mapstructure:"max_history_tokens" yaml:"max_history_tokens"`
}

func DefaultSettings() Settings {
	return Settings{
		BaseURL:          "https://api.openai.com/v1",
		Model:            "gpt-4o",
		Timeout:          60 * time.Second,
		MaxHistoryTokens: 6000,
	}
}

func MakeClient(s Settings) (*go_openai.Client, error) {
	if s.APIKey == "" {
		return nil, errors.New("no API key for openai")
	}
	config := go_openai.DefaultConfig(s.APIKey)
	if s.BaseURL != "" {
		config.BaseURL = s.BaseURL
	}
	if s.Timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: s.Timeout}
	}
	return go_openai.NewClientWithConfig(config), nil
}

func messagesToOpenAI(msgs []engine.Message) []go_openai.ChatCompletionMessage {
	ret := make([]go_openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		msg := go_openai.ChatCompletionMessage{
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		switch m.Role {
		case conversation.RoleSystem:
			msg.Role = go_openai.ChatMessageRoleSystem
		case conversation.RoleAssistant:
			msg.Role = go_openai.ChatMessageRoleAssistant
		case conversation.RoleTool:
			msg.Role = go_openai.ChatMessageRoleTool
		default:
			msg.Role = go_openai.ChatMessageRoleUser
		}
		for _, c := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, go_openai.ToolCall{
				ID:   c.ID,
				Type: go_openai.ToolTypeFunction,
				Function: go_openai.FunctionCall{
					Name:      c.Name,
					Arguments: string(c.Arguments),
				},
			})
		}
		ret = append(ret, msg)
	}
	return ret
}

func toolsToOpenAI(defs []tools.ToolDefinition) []go_openai.Tool {
	ret := make([]go_openai.Tool, 0, len(defs))
	for _, d := range defs {
		ret = append(ret, go_openai.Tool{
			Type: go_openai.ToolTypeFunction,
			Function: &go_openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return ret
}

func toolCallsFromOpenAI(calls []go_openai.ToolCall) []tools.ToolCall {
	ret := make([]tools.ToolCall, 0, len(calls))
	for _, c := range calls {
		ret = append(ret, tools.ToolCall{
			ID:        c.ID,
			Name:      c.Function.Name,
			Arguments: []byte(c.Function.Arguments),
		})
	}
	return ret
}
