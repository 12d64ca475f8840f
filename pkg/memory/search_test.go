package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFTSQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"empty", "", ""},
		{"whitespace only", "  \t ", ""},
		{"single term", "rust", `"rust"`},
		{"multiple terms", "rust memory", `"rust" OR "memory"`},
		{"fts operators neutralized", `NEAR(a b)`, `"NEAR(a" OR "b)"`},
		{"embedded quotes doubled", `say "hi"`, `"say" OR """hi"""`},
		{"column filter neutralized", "content:secret", `"content:secret"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFTSQuery(tt.query))
		})
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "plain", escapeLike("plain"))
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\tmp`, escapeLike(`c:\tmp`))
}

func TestMergeHits_KeywordOnlyPassesThrough(t *testing.T) {
	keyword := []searchHit{
		{id: "a", score: 5.0},
		{id: "b", score: 3.0},
		{id: "c", score: 1.0},
	}

	merged := mergeHits(nil, keyword, 0.7, 0.3, 2)
	require.Len(t, merged, 2)
	assert.Equal(t, "a", merged[0].id)
	assert.Equal(t, 5.0, merged[0].score)
	assert.Equal(t, "b", merged[1].id)
}

func TestMergeHits_WeightedFusion(t *testing.T) {
	vector := []searchHit{
		{id: "a", score: 0.9},
		{id: "b", score: 0.5},
	}
	keyword := []searchHit{
		{id: "b", score: 4.0}, // normalizes to 1.0
		{id: "c", score: 2.0}, // normalizes to 0.5
	}

	merged := mergeHits(vector, keyword, 0.7, 0.3, 10)
	require.Len(t, merged, 3)

	scores := map[string]float64{}
	for _, h := range merged {
		scores[h.id] = h.score
	}
	assert.InDelta(t, 0.7*0.9, scores["a"], 1e-9)
	assert.InDelta(t, 0.7*0.5+0.3*1.0, scores["b"], 1e-9)
	assert.InDelta(t, 0.3*0.5, scores["c"], 1e-9)

	// b carries both signals and ranks first
	assert.Equal(t, "b", merged[0].id)
}

func TestMergeHits_RespectsLimit(t *testing.T) {
	vector := []searchHit{{id: "a", score: 0.9}, {id: "b", score: 0.8}, {id: "c", score: 0.7}}

	merged := mergeHits(vector, nil, 0.7, 0.3, 2)
	assert.Len(t, merged, 2)
}

func TestSearchKeyword(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Store(ctx, "a", "the quick brown fox", CategoryCore, ""))
	require.NoError(t, e.Store(ctx, "b", "lazy dogs sleep all day", CategoryCore, ""))

	hits, err := e.store.searchKeyword(ctx, "fox", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	// Porter stemming matches inflected forms
	hits, err = e.store.searchKeyword(ctx, "sleeping dog", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = e.store.searchKeyword(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchLike(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Store(ctx, "notes", "discount is 50% off", CategoryCore, ""))

	// Literal % must not act as a wildcard
	entries, err := e.store.searchLike(ctx, "50%", "", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1.0, entries[0].Score)

	entries, err = e.store.searchLike(ctx, "60%", "", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Key text is searched too
	entries, err = e.store.searchLike(ctx, "note", "", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
