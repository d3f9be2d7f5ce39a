package settings

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/kraken-agui/pkg/run"
)

func newViper(t *testing.T) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	s, err := Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, ":3001", s.Server.Addr)
	assert.Equal(t, []string{"*"}, s.Server.CORSOrigins)
	assert.Equal(t, "sk-env", s.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o", s.OpenAI.Model)
	assert.Equal(t, 60*time.Second, s.OpenAI.Timeout)
	assert.Equal(t, 40, s.Compose.ChunkSize)
	assert.Equal(t, 1, s.Tools.MaxParallelTools)
	assert.Equal(t, 30*time.Second, s.Tools.ExecutionTimeout)
	assert.True(t, s.Stream.Validate)
	assert.Equal(t, 64, s.Stream.Buffer)
	assert.Equal(t, []string{"LINKUSD", "SOLUSD", "ETHUSD", "XDGUSD"}, s.Kraken.DefaultPairs)
	assert.Equal(t, run.DefaultMode(), s.Mode())
	assert.True(t, s.NeedsModel())
}

func TestConfigFileOverrides(t *testing.T) {
	v := newViper(t)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
openai:
  api_key: sk-file
selector:
  strategy: heuristic
compose:
  output: text
  chunk_size: 12
run:
  error_style: event
tools:
  timeout: 2s
  max_parallel: 4
  allowed: ["get*"]
kraken:
  account_file: account.yaml
`)))

	t.Setenv("OPENAI_API_KEY", "sk-env")
	s, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "sk-file", s.OpenAI.APIKey)
	assert.Equal(t, 2*time.Second, s.Tools.ExecutionTimeout)
	assert.Equal(t, 4, s.Tools.MaxParallelTools)
	assert.Equal(t, []string{"get*"}, s.Tools.AllowedTools)
	assert.Equal(t, "account.yaml", s.Kraken.AccountFile)

	m := s.Mode()
	assert.Equal(t, "heuristic", m.Strategy)
	assert.Equal(t, run.OutputText, m.Output)
	assert.Equal(t, run.ErrorStyleEvent, m.ErrorStyle)
	assert.Equal(t, 12, m.ChunkSize)
	assert.False(t, s.NeedsModel())
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	for key, value := range map[string]interface{}{
		"selector.strategy":    "random",
		"compose.output":       "html",
		"compose.narrator":     "poet",
		"run.error_style":      "silent",
		"tools.tool_choice":    "sometimes",
		"tools.error_handling": "ignore",
		"stream.buffer":        -1,
		"server.addr":          "",
	} {
		v := newViper(t)
		v.Set(key, value)
		_, err := Load(v)
		assert.Error(t, err, key)
	}
}
