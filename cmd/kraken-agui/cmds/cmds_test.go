package cmds

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/kraken-agui/pkg/settings"
)

func resetViper(t *testing.T) {
	viper.Reset()
	settings.SetDefaults(viper.GetViper())
	t.Cleanup(viper.Reset)
}

func TestToolsList(t *testing.T) {
	resetViper(t)

	cmd := NewToolsCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"list"})
	require.NoError(t, cmd.Execute())

	var catalog []map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &catalog))
	require.Len(t, catalog, 5)
	assert.Equal(t, "getPortfolioSummary", catalog[0]["name"])
}

func TestToolsCallFromSnapshot(t *testing.T) {
	resetViper(t)
	path := filepath.Join(t.TempDir(), "account.yaml")
	require.NoError(t, os.WriteFile(path, []byte("balance:\n  XETH: \"1.5\"\n"), 0o600))

	cmd := NewToolsCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"call", "getBalance", "{}", "--account-file", path, "--format", "yaml"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "ETH: \"1.5\"\n", out.String())

	cmd = NewToolsCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"call", "getMoonPrice"})
	assert.EqualError(t, cmd.Execute(), "getMoonPrice failed: Unknown tool: getMoonPrice")
}

func TestBindFlagsOnlyBindsChangedFlags(t *testing.T) {
	resetViper(t)
	viper.Set("selector.strategy", "heuristic")

	cmd := NewRunCommand()
	require.NotNil(t, cmd.Flags().Lookup("output"))
	require.NoError(t, cmd.ParseFlags([]string{"--output", "text"}))
	require.NoError(t, bindFlags(cmd, modeFlags))

	assert.Equal(t, "text", viper.GetString("compose.output"))
	assert.Equal(t, "heuristic", viper.GetString("selector.strategy"))
}
