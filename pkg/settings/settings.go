package settings

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/go-go-golems/kraken-agui/pkg/compose"
	"github.com/go-go-golems/kraken-agui/pkg/inference/tools"
	"github.com/go-go-golems/kraken-agui/pkg/provider/kraken"
	"github.com/go-go-golems/kraken-agui/pkg/run"
	"github.com/go-go-golems/kraken-agui/pkg/selector"
	"github.com/go-go-golems/kraken-agui/pkg/steps/ai/openai"
)

const EnvPrefix = "KRAKEN_AGUI"

type ServerSettings struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type SelectorSettings struct {
	Strategy    string `mapstructure:"strategy"`
	DefaultTool string `mapstructure:"default_tool"`
	RulesFile   string `mapstructure:"rules_file"`
}

type ComposeSettings struct {
	Output     string `mapstructure:"output"`
	Narrator   string `mapstructure:"narrator"`
	SecondPass bool   `mapstructure:"second_pass"`
	ChunkSize  int    `mapstructure:"chunk_size"`
}

type RunSettings struct {
	ErrorStyle string `mapstructure:"error_style"`
}

type StreamSettings struct {
	Tagged   bool `mapstructure:"tagged"`
	Validate bool `mapstructure:"validate"`
	Buffer   int  `mapstructure:"buffer"`
}

type EventsSettings struct {
	// Tap mirrors every protocol event onto the in-process event bus.
	Tap bool `mapstructure:"tap"`
}

type KrakenSettings struct {
	BaseURL      string   `mapstructure:"base_url"`
	AccountFile  string   `mapstructure:"account_file"`
	DefaultPairs []string `mapstructure:"default_pairs"`
	RateLimit    float64  `mapstructure:"rate_limit"`
}

type Settings struct {
	Server   ServerSettings   `mapstructure:"server"`
	OpenAI   openai.Settings  `mapstructure:"openai"`
	Selector SelectorSettings `mapstructure:"selector"`
	Compose  ComposeSettings  `mapstructure:"compose"`
	Run      RunSettings      `mapstructure:"run"`
	Tools    tools.ToolConfig `mapstructure:"tools"`
	Stream   StreamSettings   `mapstructure:"stream"`
	Events   EventsSettings   `mapstructure:"events"`
	Kraken   KrakenSettings   `mapstructure:"kraken"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	mode := run.DefaultMode()
	oai := openai.DefaultSettings()
	tc := tools.DefaultToolConfig()

	v.SetDefault("server.addr", ":3001")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", oai.BaseURL)
	v.SetDefault("openai.model", oai.Model)
	v.SetDefault("openai.timeout", oai.Timeout)
	v.SetDefault("openai.max_history_tokens", oai.MaxHistoryTokens)

	v.SetDefault("selector.strategy", mode.Strategy)
	v.SetDefault("selector.default_tool", selector.DefaultTool)
	v.SetDefault("selector.rules_file", "")

	v.SetDefault("compose.output", mode.Output)
	v.SetDefault("compose.narrator", mode.Narrator)
	v.SetDefault("compose.second_pass", mode.SecondPass)
	v.SetDefault("compose.chunk_size", compose.DefaultChunkSize)

	v.SetDefault("run.error_style", mode.ErrorStyle)

	v.SetDefault("tools.tool_choice", string(tc.ToolChoice))
	v.SetDefault("tools.max_parallel", tc.MaxParallelTools)
	v.SetDefault("tools.timeout", tc.ExecutionTimeout)
	v.SetDefault("tools.allowed", []string{})
	v.SetDefault("tools.error_handling", string(tc.ToolErrorHandling))

	v.SetDefault("stream.tagged", false)
	v.SetDefault("stream.validate", true)
	v.SetDefault("stream.buffer", 64)

	v.SetDefault("events.tap", false)

	v.SetDefault("kraken.base_url", kraken.DefaultBaseURL)
	v.SetDefault("kraken.account_file", "")
	v.SetDefault("kraken.default_pairs", kraken.DefaultPairs)
	v.SetDefault("kraken.rate_limit", 1.0)
}

// Load decodes the settings from v. OPENAI_API_KEY is used when no key is
// configured under openai.api_key.
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "could not decode settings")
	}
	if s.OpenAI.APIKey == "" {
		s.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Mode is the deployment mode selected by the settings.
func (s *Settings) Mode() run.Mode {
	return run.Mode{
		Strategy:   s.Selector.Strategy,
		Output:     s.Compose.Output,
		Narrator:   s.Compose.Narrator,
		SecondPass: s.Compose.SecondPass,
		ErrorStyle: s.Run.ErrorStyle,
		ChunkSize:  s.Compose.ChunkSize,
	}
}

func (s *Settings) Validate() error {
	if err := s.Mode().Validate(); err != nil {
		return err
	}
	switch s.Tools.ToolChoice {
	case tools.ToolChoiceAuto, tools.ToolChoiceNone, tools.ToolChoiceRequired:
	default:
		return errors.Errorf("unknown tool choice %q", s.Tools.ToolChoice)
	}
	switch s.Tools.ToolErrorHandling {
	case tools.ToolErrorAbort, tools.ToolErrorContinue:
	default:
		return errors.Errorf("unknown tool error handling %q", s.Tools.ToolErrorHandling)
	}
	if s.Stream.Buffer < 0 {
		return errors.Errorf("stream buffer must not be negative, got %d", s.Stream.Buffer)
	}
	if s.Server.Addr == "" {
		return errors.New("server address must be set")
	}
	return nil
}

// NeedsModel reports whether the settings call the reasoning service.
func (s *Settings) NeedsModel() bool {
	m := s.Mode()
	return m.Strategy == selector.StrategyModel ||
		(m.Output == run.OutputText && m.Narrator == compose.NarratorModel) ||
		(m.Output == run.OutputWidget && m.SecondPass)
}
