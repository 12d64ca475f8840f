package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/memory"
)

func createTestEngine(t *testing.T) *memory.Engine {
	t.Helper()

	engine, err := memory.NewEngine(memory.Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestNew_ValidSchedules(t *testing.T) {
	s, err := New(createTestEngine(t), Config{
		ReindexSchedule: "0 * * * *",
		StatsSchedule:   "*/5 * * * *",
		Logger:          zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Jobs())
}

func TestNew_EmptySchedulesDisableJobs(t *testing.T) {
	s, err := New(createTestEngine(t), Config{
		Logger: zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Jobs())
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(createTestEngine(t), Config{
		ReindexSchedule: "every full moon",
		Logger:          zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	assert.Error(t, err)
}

func TestRunReindex_ManualTrigger(t *testing.T) {
	engine := createTestEngine(t)
	require.NoError(t, engine.Store(context.Background(), "k", "some content", memory.CategoryCore, ""))

	s, err := New(engine, Config{
		Logger: zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	require.NoError(t, err)

	// Runs against a live engine without error even with nothing to re-embed
	s.runReindex()
	s.runStats()

	count, err := engine.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStartStop(t *testing.T) {
	s, err := New(createTestEngine(t), Config{
		ReindexSchedule: "0 * * * *",
		Logger:          zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	require.NoError(t, err)

	s.Start()
	s.Stop()
}
