package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).Level(zerolog.Disabled)
}

func createTestEngine(t *testing.T) *Engine {
	t.Helper()

	e, err := NewEngine(Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: testLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func createTestEngineWithProvider(t *testing.T, provider Provider) *Engine {
	t.Helper()

	e, err := NewEngine(Config{
		DBPath:   filepath.Join(t.TempDir(), "test.db"),
		Logger:   testLogger(),
		Provider: provider,
	})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestNewEngine_RequiresDBPath(t *testing.T) {
	_, err := NewEngine(Config{Logger: testLogger()})
	assert.Error(t, err)
}

func TestStore_IdempotentUpsert(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Store(ctx, "pref", "User likes Rust", CategoryCore, ""))
	require.NoError(t, e.Store(ctx, "pref", "User likes Rust", CategoryCore, ""))

	count, err := e.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	entry, err := e.Get(ctx, "pref")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "User likes Rust", entry.Content)
}

func TestStore_UpsertPreservesID(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Store(ctx, "pref", "original", CategoryCore, ""))
	first, err := e.Get(ctx, "pref")
	require.NoError(t, err)
	require.NotNil(t, first)

	require.NoError(t, e.Store(ctx, "pref", "replaced", CategoryDaily, "s1"))
	second, err := e.Get(ctx, "pref")
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "replaced", second.Content)
	assert.Equal(t, CategoryDaily, second.Category)
	assert.Equal(t, "s1", second.SessionID)
}

func TestStore_RoundTrip(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		content string
	}{
		{"empty content", ""},
		{"unicode", "héllo wörld — 日本語のテキスト 🦀"},
		{"very large", strings.Repeat("large content block ", 6000)}, // >100k chars
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := fmt.Sprintf("roundtrip-%d", i)
			require.NoError(t, e.Store(ctx, key, tt.content, CategoryCore, ""))

			entry, err := e.Get(ctx, key)
			require.NoError(t, err)
			require.NotNil(t, entry)
			assert.Equal(t, tt.content, entry.Content)
		})
	}
}

func TestStore_EmptyKeyAccepted(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Store(ctx, "", "content under empty key", CategoryCore, ""))

	entry, err := e.Get(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "content under empty key", entry.Content)
}

func TestGet_MissingKeyReturnsNil(t *testing.T) {
	e := createTestEngine(t)

	entry, err := e.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestForget(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Store(ctx, "pref", "User likes Rust", CategoryCore, ""))

	removed, err := e.Forget(ctx, "pref")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = e.Forget(ctx, "pref")
	require.NoError(t, err)
	assert.False(t, removed)

	entry, err := e.Get(ctx, "pref")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestForget_RemovesFromRecall(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Store(ctx, "pref", "User likes Rust", CategoryCore, ""))

	entries, err := e.Recall(ctx, "Rust", RecallOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = e.Forget(ctx, "pref")
	require.NoError(t, err)

	entries, err = e.Recall(ctx, "Rust", RecallOptions{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecall_EmptyQuery(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Store(ctx, "pref", "something", CategoryCore, ""))

	for _, query := range []string{"", "   ", "\t\n"} {
		entries, err := e.Recall(ctx, query, RecallOptions{Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
}

func TestRecall_ScenarioA(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Store(ctx, "pref", "User likes Rust", CategoryCore, ""))
	require.NoError(t, e.Store(ctx, "pref2", "User dislikes Python", CategoryCore, ""))

	entries, err := e.Recall(ctx, "Rust", RecallOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "pref", entries[0].Key)
}

func TestRecall_ScenarioB(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("item-%d", i)
		content := fmt.Sprintf("note %d about the widget assembly", i)
		require.NoError(t, e.Store(ctx, key, content, CategoryDaily, ""))
	}

	entries, err := e.Recall(ctx, "widget", RecallOptions{Limit: 5})
	require.NoError(t, err)
	require.Len(t, entries, 5)

	for i := 1; i < len(entries); i++ {
		assert.GreaterOrEqual(t, entries[i-1].Score, entries[i].Score)
	}
}

func TestRecall_ScenarioC_SessionIsolation(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Store(ctx, "a", "secret A", CategoryCore, "s1"))

	entries, err := e.Recall(ctx, "secret", RecallOptions{Limit: 10, SessionID: "s2"})
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = e.Recall(ctx, "secret", RecallOptions{Limit: 10, SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Key)

	// No session filter surfaces everything regardless of tag
	entries, err = e.Recall(ctx, "secret", RecallOptions{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecall_SubstringFallback(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Store(ctx, "infra", "The cluster runs kubernetes v1.29", CategoryCore, ""))

	// "bernet" matches no FTS token, only a substring
	entries, err := e.Recall(ctx, "bernet", RecallOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "infra", entries[0].Key)
	assert.Equal(t, 1.0, entries[0].Score)

	// The fallback is case-insensitive
	entries, err = e.Recall(ctx, "BERNET", RecallOptions{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecall_FallbackRespectsSessionFilter(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Store(ctx, "infra", "The cluster runs kubernetes", CategoryCore, "s1"))

	entries, err := e.Recall(ctx, "bernet", RecallOptions{Limit: 10, SessionID: "s2"})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecall_WithEmbeddings(t *testing.T) {
	provider := newMockProvider(64)
	e := createTestEngineWithProvider(t, provider)
	ctx := context.Background()

	require.NoError(t, e.Store(ctx, "pref", "User likes Rust", CategoryCore, ""))
	require.NoError(t, e.Store(ctx, "pref2", "User dislikes Python", CategoryCore, ""))

	entries, err := e.Recall(ctx, "Rust", RecallOptions{Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	keys := make([]string, len(entries))
	for i, entry := range entries {
		keys[i] = entry.Key
	}
	assert.Contains(t, keys, "pref")
}

func TestStore_SingleEntryWithProviderCompletes(t *testing.T) {
	provider := newMockProvider(64)
	e := createTestEngineWithProvider(t, provider)

	// One isolated store must embed and return without further traffic to
	// nudge the batcher along.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, e.Store(ctx, "pref", "User likes Rust", CategoryCore, ""))
	assert.Equal(t, 1, provider.TimesEmbedded("User likes Rust"))

	// The embedding was persisted with the entry, so reindex finds nothing
	// to backfill
	reembedded, err := e.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, reembedded)
}

func TestStore_ProviderErrorAborts(t *testing.T) {
	provider := newMockProvider(64)
	e := createTestEngineWithProvider(t, provider)
	ctx := context.Background()

	provider.SetError(errors.New("embedding service down"))

	err := e.Store(ctx, "pref", "User likes Rust", CategoryCore, "")
	require.Error(t, err)
	assert.True(t, IsProviderError(err))

	// Nothing was written
	count, err := e.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRecall_ProviderErrorFallsBackToKeyword(t *testing.T) {
	provider := newMockProvider(64)
	e := createTestEngineWithProvider(t, provider)
	ctx := context.Background()

	require.NoError(t, e.Store(ctx, "pref", "User likes Rust", CategoryCore, ""))

	provider.SetError(errors.New("embedding service down"))

	entries, err := e.Recall(ctx, "Rust", RecallOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "pref", entries[0].Key)
}

func TestList(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Store(ctx, "a", "first", CategoryCore, ""))
	require.NoError(t, e.Store(ctx, "b", "second", CategoryDaily, "s1"))
	require.NoError(t, e.Store(ctx, "c", "third", CategoryDaily, "s2"))

	all, err := e.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Most recently updated first
	assert.Equal(t, "c", all[0].Key)
	assert.Equal(t, "a", all[2].Key)

	daily, err := e.List(ctx, ListOptions{Category: CategoryDaily})
	require.NoError(t, err)
	assert.Len(t, daily, 2)

	s1, err := e.List(ctx, ListOptions{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, s1, 1)
	assert.Equal(t, "b", s1[0].Key)

	both, err := e.List(ctx, ListOptions{Category: CategoryDaily, SessionID: "s2"})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "c", both[0].Key)
}

func TestList_RespectsCap(t *testing.T) {
	e, err := NewEngine(Config{
		DBPath:         filepath.Join(t.TempDir(), "test.db"),
		Logger:         testLogger(),
		MaxListResults: 5,
	})
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, e.Store(ctx, fmt.Sprintf("k%d", i), "content", CategoryCore, ""))
	}

	entries, err := e.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestHealthCheck(t *testing.T) {
	e := createTestEngine(t)
	assert.True(t, e.HealthCheck(context.Background()))
}

func TestHealthCheck_FalseOnClosedStore(t *testing.T) {
	e, err := NewEngine(Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: testLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	assert.False(t, e.HealthCheck(context.Background()))
}

func TestReindex_BackfillsMissingEmbeddings(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	// Entries stored without a provider have no embeddings
	e1, err := NewEngine(Config{DBPath: dbPath, Logger: testLogger()})
	require.NoError(t, err)
	require.NoError(t, e1.Store(ctx, "a", "alpha content", CategoryCore, ""))
	require.NoError(t, e1.Store(ctx, "b", "beta content", CategoryCore, ""))
	require.NoError(t, e1.Store(ctx, "empty", "", CategoryCore, ""))
	require.NoError(t, e1.Close())

	// Reopen with a provider and backfill
	e2, err := NewEngine(Config{DBPath: dbPath, Logger: testLogger(), Provider: newMockProvider(64)})
	require.NoError(t, err)
	defer e2.Close()

	reembedded, err := e2.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, reembedded) // the empty entry is skipped

	// Idempotent: a second immediate run re-embeds nothing
	reembedded, err = e2.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, reembedded)

	count, err := e2.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestReindex_RepairsKeywordIndex(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Store(ctx, "pref", "User likes Rust", CategoryCore, ""))

	// Simulate index drift by wiping the FTS projection behind the engine's back
	_, err := e.store.db.Exec("DELETE FROM memories_fts")
	require.NoError(t, err)

	entries, err := e.Recall(ctx, "Rust", RecallOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1) // substring fallback still finds it

	_, err = e.Reindex(ctx)
	require.NoError(t, err)

	hits, err := e.store.searchKeyword(ctx, "Rust", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestStatus(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Store(ctx, "a", "content", CategoryCore, ""))

	status, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Entries)
	assert.Equal(t, "disabled", status.Provider)
	assert.Equal(t, 0, status.Dimensions)
	assert.True(t, status.Healthy)
}

func TestConcurrentStores(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	done := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func(i int) {
			done <- e.Store(ctx, fmt.Sprintf("k%d", i), fmt.Sprintf("content %d", i), CategoryCore, "")
		}(i)
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, <-done)
	}

	count, err := e.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, count)
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		raw  string
		want Category
	}{
		{"core", CategoryCore},
		{"Core", CategoryCore},
		{"DAILY", CategoryDaily},
		{"conversation", CategoryConversation},
		{"", CategoryCore},
		{"project-notes", Category("project-notes")},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseCategory(tt.raw))
	}

	assert.False(t, CategoryCore.IsCustom())
	assert.True(t, Category("project-notes").IsCustom())
}
