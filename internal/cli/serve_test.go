package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeroclaw-labs/zeroclaw-sub002/internal/config"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/memory"
)

func createWatcherFixture(t *testing.T) (*memory.Engine, *config.Config) {
	t.Helper()

	docs := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(docs, "notes.md"),
		[]byte("# Notes\n\nThe deploy pipeline runs nightly."),
		0644,
	))

	engine, err := memory.NewEngine(memory.Config{
		DBPath: filepath.Join(t.TempDir(), "mem.db"),
		Logger: zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	cfg := config.DefaultConfig()
	cfg.Ingest.Dir = docs
	return engine, cfg
}

func TestStartWatcher_InitialSync(t *testing.T) {
	engine, cfg := createWatcherFixture(t)
	log := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	stop, err := startWatcher(context.Background(), engine, cfg, log)
	require.NoError(t, err)
	defer stop()

	assert.Eventually(t, func() bool {
		n, err := engine.Count(context.Background())
		return err == nil && n > 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestStartWatcher_StopTerminatesSyncLoop(t *testing.T) {
	engine, cfg := createWatcherFixture(t)
	log := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	// The parent context is never cancelled; stop alone must end the loop.
	stop, err := startWatcher(context.Background(), engine, cfg, log)
	require.NoError(t, err)

	stopped := make(chan struct{})
	go func() {
		stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher stop did not return")
	}
}
