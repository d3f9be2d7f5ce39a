package tools

import (
	"time"

	"github.com/mb0/glob"
	"github.com/rs/zerolog/log"
)

// ToolConfig specifies how tools are offered and executed.
type ToolConfig struct {
	ToolChoice        ToolChoice        `json:"tool_choice" mapstructure:"tool_choice"`
	ExecutionTimeout  time.Duration     `json:"execution_timeout" mapstructure:"timeout"`
	MaxParallelTools  int               `json:"max_parallel_tools" mapstructure:"max_parallel"`
	AllowedTools      []string          `json:"allowed_tools" mapstructure:"allowed"`
	ToolErrorHandling ToolErrorHandling `json:"tool_error_handling" mapstructure:"error_handling"`
}

func DefaultToolConfig() ToolConfig {
	return ToolConfig{
		ToolChoice:        ToolChoiceAuto,
		ExecutionTimeout:  30 * time.Second,
		MaxParallelTools:  1,
		AllowedTools:      nil, // nil means all tools are allowed
		ToolErrorHandling: ToolErrorAbort,
	}
}

func (tc ToolConfig) WithToolChoice(choice ToolChoice) ToolConfig {
	tc.ToolChoice = choice
	return tc
}

func (tc ToolConfig) WithExecutionTimeout(timeout time.Duration) ToolConfig {
	tc.ExecutionTimeout = timeout
	return tc
}

func (tc ToolConfig) WithMaxParallelTools(maxParallel int) ToolConfig {
	tc.MaxParallelTools = maxParallel
	return tc
}

func (tc ToolConfig) WithAllowedTools(patterns []string) ToolConfig {
	tc.AllowedTools = patterns
	return tc
}

func (tc ToolConfig) WithToolErrorHandling(handling ToolErrorHandling) ToolConfig {
	tc.ToolErrorHandling = handling
	return tc
}

// ToolChoice defines how the model should choose tools
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceRequired ToolChoice = "required"
)

// ToolErrorHandling defines what a batch does after a failed invocation.
type ToolErrorHandling string

const (
	// ToolErrorContinue runs the remaining calls and reports every failure.
	ToolErrorContinue ToolErrorHandling = "continue"
	// ToolErrorAbort stops the batch at the first failure.
	ToolErrorAbort ToolErrorHandling = "abort"
)

// IsToolAllowed matches the name against the AllowedTools glob patterns.
func (tc *ToolConfig) IsToolAllowed(toolName string) bool {
	if len(tc.AllowedTools) == 0 {
		return true
	}

	for _, pattern := range tc.AllowedTools {
		ok, err := glob.Match(pattern, toolName)
		if err != nil {
			log.Warn().Err(err).Str("pattern", pattern).Msg("invalid tool glob pattern")
			continue
		}
		if ok {
			return true
		}
	}

	return false
}

// FilterTools returns only the tools that are allowed by this configuration
func (tc *ToolConfig) FilterTools(tools []ToolDefinition) []ToolDefinition {
	if len(tc.AllowedTools) == 0 {
		return tools
	}

	filtered := make([]ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		if tc.IsToolAllowed(tool.Name) {
			filtered = append(filtered, tool)
		}
	}

	return filtered
}
