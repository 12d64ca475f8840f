package observability

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitAuditLogger_WritesEventsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, InitAuditLogger(path))

	RecordMemoryAudit(context.Background(), "store:pref", "cli", "success", map[string]interface{}{
		"key": "pref",
	})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"action":"store:pref"`)
	assert.Contains(t, string(data), `"actor":"cli"`)
	assert.Contains(t, string(data), `"type":"memory"`)
}

func TestInitAuditLogger_SurvivesEarlyGet(t *testing.T) {
	// A Get before Init returns the stderr default; Init must still
	// install the file-backed logger rather than keep the default.
	early := GetAuditLogger()
	require.NotNil(t, early)

	path := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, InitAuditLogger(path))

	RecordSecurityAudit(context.Background(), "auth", "ws:abc", "failure", nil)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"action":"auth"`)
	assert.Contains(t, string(data), `"status":"failure"`)
}

func TestInitAuditLogger_ReinitClosesPrevious(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "second.log")

	require.NoError(t, InitAuditLogger(first))
	prev := GetAuditLogger()
	require.NoError(t, InitAuditLogger(second))

	// The re-init already closed the first logger's file; a second Close
	// is a no-op.
	require.NoError(t, prev.Close())

	RecordConfigAudit(context.Background(), "load", "serve", map[string]interface{}{
		"db_path": "/tmp/mem.db",
	})

	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"config"`)
	assert.Contains(t, string(data), `"action":"load"`)
}
