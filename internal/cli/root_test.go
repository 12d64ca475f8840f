package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRegistration(t *testing.T) {
	expected := []string{
		"store", "get", "recall", "list", "forget",
		"count", "health", "reindex", "status",
		"ingest", "distill", "serve",
	}

	registered := make(map[string]bool)
	for _, cmd := range GetRootCmd().Commands() {
		registered[cmd.Name()] = true
	}

	for _, name := range expected {
		assert.True(t, registered[name], "command %q not registered", name)
	}
}

func TestRootFlags(t *testing.T) {
	root := GetRootCmd()
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("json"))
}

func testConfigFile(t *testing.T) string {
	t.Helper()
	dataDir := t.TempDir()
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"data_dir": "` + dataDir + `", "logging": {"console": false}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestStoreGetCountRoundTrip(t *testing.T) {
	cfgPath := testConfigFile(t)
	root := GetRootCmd()

	root.SetArgs([]string{"--config", cfgPath, "store", "pref", "User likes Rust"})
	require.NoError(t, root.Execute())

	root.SetArgs([]string{"--config", cfgPath, "get", "pref"})
	require.NoError(t, root.Execute())

	root.SetArgs([]string{"--config", cfgPath, "count"})
	require.NoError(t, root.Execute())

	root.SetArgs([]string{"--config", cfgPath, "forget", "pref"})
	require.NoError(t, root.Execute())
}

func TestIngestRequiresDirectory(t *testing.T) {
	cfgPath := testConfigFile(t)
	root := GetRootCmd()

	root.SetArgs([]string{"--config", cfgPath, "ingest"})
	assert.Error(t, root.Execute())
}
