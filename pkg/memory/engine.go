package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeroclaw-labs/zeroclaw-sub002/internal/observability"
)

const (
	defaultVectorWeight   = 0.7
	defaultKeywordWeight  = 0.3
	defaultCacheCapacity  = 10000
	defaultHotCacheSize   = 2048
	defaultBatchSize      = 16
	defaultMaxListResults = 1000
	defaultRecallLimit    = 10
)

// Config holds memory engine configuration
type Config struct {
	DBPath         string
	Logger         zerolog.Logger
	Provider       Provider // Optional, if nil recall is keyword-only
	VectorWeight   float64
	KeywordWeight  float64
	CacheCapacity  int
	HotCacheSize   int
	BatchSize      int
	MaxListResults int
}

func (cfg *Config) applyDefaults() {
	if cfg.VectorWeight == 0 && cfg.KeywordWeight == 0 {
		cfg.VectorWeight = defaultVectorWeight
		cfg.KeywordWeight = defaultKeywordWeight
	}
	if cfg.CacheCapacity == 0 {
		cfg.CacheCapacity = defaultCacheCapacity
	}
	if cfg.HotCacheSize == 0 {
		cfg.HotCacheSize = defaultHotCacheSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxListResults <= 0 {
		cfg.MaxListResults = defaultMaxListResults
	}
}

// Status reports the engine's current state.
type Status struct {
	Entries      int    `json:"entries"`
	CacheRecords int    `json:"cache_records"`
	CacheHits    int64  `json:"cache_hits"`
	CacheMisses  int64  `json:"cache_misses"`
	Provider     string `json:"provider"`
	Dimensions   int    `json:"dimensions"`
	Healthy      bool   `json:"healthy"`
}

// Engine is the public memory API: durable key-addressed entries with hybrid
// keyword/vector recall. Many callers may use one Engine concurrently; writes
// serialize on the store's single write mutex, reads proceed under WAL.
type Engine struct {
	store    *Store
	cache    *EmbeddingCache
	batcher  *Batcher
	provider Provider
	cfg      Config
	logger   zerolog.Logger
}

// NewEngine opens the store at cfg.DBPath and wires the embedding cache and
// batching pipeline around cfg.Provider.
func NewEngine(cfg Config) (*Engine, error) {
	observability.EnsureRegistered()

	if cfg.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	cfg.applyDefaults()

	store, err := openStore(cfg.DBPath, cfg.Logger)
	if err != nil {
		return nil, err
	}

	cache, err := newEmbeddingCache(store, cfg.Provider, cfg.CacheCapacity, cfg.HotCacheSize, cfg.Logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	e := &Engine{
		store:    store,
		cache:    cache,
		provider: cfg.Provider,
		cfg:      cfg,
		logger:   cfg.Logger,
	}

	if cfg.Provider != nil && cfg.Provider.Dimensions() > 0 {
		e.batcher = newBatcher(cache, cfg.Provider, cfg.BatchSize, cfg.Logger)
	}

	e.logger.Info().Str("db", cfg.DBPath).Str("provider", e.providerName()).Msg("Memory engine initialized")
	return e, nil
}

func (e *Engine) providerName() string {
	if e.provider == nil || e.provider.Dimensions() == 0 {
		return "disabled"
	}
	return e.provider.Name()
}

// embed resolves text to a vector through the batching pipeline when one is
// running, else straight through the cache. Nil means embeddings are off.
func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	if e.batcher != nil {
		return e.batcher.GetOrCompute(ctx, text)
	}
	return e.cache.GetOrCompute(ctx, text)
}

// Store upserts an entry under key. The embedding is resolved before any
// write lock is taken, so a provider failure aborts with nothing written and
// the store mutex is never held across a network call.
func (e *Engine) Store(ctx context.Context, key, content string, category Category, sessionID string) error {
	start := time.Now()
	defer func() { observability.RecordMemoryStore(time.Since(start)) }()

	var embedding []byte
	if content != "" {
		vec, err := e.embed(ctx, content)
		if err != nil {
			return err
		}
		if vec != nil {
			embedding, err = serializeVector(vec)
			if err != nil {
				return storageErr("encode embedding", err)
			}
		}
	}

	return e.store.Upsert(ctx, key, content, category, sessionID, embedding)
}

// Recall answers a relevance query. The query embedding is resolved
// concurrently with the keyword search; a provider failure downgrades to
// keyword-only ranking. The substring tier answers only when the hybrid
// result is empty after session filtering.
func (e *Engine) Recall(ctx context.Context, query string, opts RecallOptions) ([]Entry, error) {
	start := time.Now()
	tier := "hybrid"
	defer func() { observability.RecordMemoryRecall(time.Since(start), tier) }()

	if strings.TrimSpace(query) == "" {
		return []Entry{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultRecallLimit
	}

	var (
		wg       sync.WaitGroup
		queryVec []float32
		embedErr error
		keyword  []searchHit
		kwErr    error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		queryVec, embedErr = e.embed(ctx, query)
	}()
	go func() {
		defer wg.Done()
		keyword, kwErr = e.store.searchKeyword(ctx, query, limit*2)
	}()
	wg.Wait()

	if kwErr != nil {
		return nil, kwErr
	}
	if embedErr != nil {
		if !IsProviderError(embedErr) {
			return nil, embedErr
		}
		e.logger.Warn().Err(embedErr).Msg("Query embedding failed, using keyword only")
		queryVec = nil
	}

	var vector []searchHit
	if queryVec != nil {
		var err error
		vector, err = e.store.searchVector(ctx, queryVec, opts.SessionID, limit)
		if err != nil {
			return nil, err
		}
	}
	if len(vector) == 0 {
		tier = "keyword"
	}

	merged := mergeHits(vector, keyword, e.cfg.VectorWeight, e.cfg.KeywordWeight, limit)

	results := []Entry{}
	if len(merged) > 0 {
		ids := make([]string, len(merged))
		for i, hit := range merged {
			ids[i] = hit.id
		}
		byID, err := e.store.FetchByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, hit := range merged {
			entry, ok := byID[hit.id]
			if !ok {
				continue
			}
			if opts.SessionID != "" && entry.SessionID != opts.SessionID {
				continue
			}
			entry.Score = hit.score
			results = append(results, entry)
		}
	}

	if len(results) == 0 {
		tier = "fallback"
		fallback, err := e.store.searchLike(ctx, query, opts.SessionID, limit)
		if err != nil {
			return nil, err
		}
		if fallback == nil {
			fallback = []Entry{}
		}
		return fallback, nil
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Get returns the entry under key, or nil when absent.
func (e *Engine) Get(ctx context.Context, key string) (*Entry, error) {
	return e.store.Get(ctx, key)
}

// List returns entries most-recently-updated first, optionally filtered by
// category and session.
func (e *Engine) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	return e.store.List(ctx, opts, e.cfg.MaxListResults)
}

// Forget removes the entry under key, reporting whether one existed.
func (e *Engine) Forget(ctx context.Context, key string) (bool, error) {
	return e.store.Forget(ctx, key)
}

// Count returns the number of stored entries.
func (e *Engine) Count(ctx context.Context) (int, error) {
	return e.store.Count(ctx)
}

// HealthCheck reports storage liveness. It never returns an error.
func (e *Engine) HealthCheck(ctx context.Context) bool {
	return e.store.HealthCheck(ctx)
}

// Reindex rebuilds the keyword index from the entry store, then backfills
// embeddings for entries missing one, returning the number re-embedded. A
// second immediate call re-embeds nothing; an interrupted run leaves the
// remainder for next time.
func (e *Engine) Reindex(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { observability.RecordMemoryReindex(time.Since(start)) }()

	if err := e.store.RebuildFTS(ctx); err != nil {
		return 0, err
	}

	reembedded := 0
	if e.provider != nil && e.provider.Dimensions() > 0 {
		pending, err := e.store.missingEmbeddings(ctx)
		if err != nil {
			return 0, err
		}

		for _, p := range pending {
			if err := ctx.Err(); err != nil {
				return reembedded, err
			}
			if p.content == "" {
				continue
			}
			vec, err := e.embed(ctx, p.content)
			if err != nil {
				return reembedded, err
			}
			if vec == nil {
				continue
			}
			blob, err := serializeVector(vec)
			if err != nil {
				return reembedded, storageErr("encode embedding", err)
			}
			updated, err := e.store.SetEmbedding(ctx, p.id, blob)
			if err != nil {
				return reembedded, err
			}
			if updated {
				reembedded++
			}
		}
	}

	if count, err := e.store.Count(ctx); err == nil {
		observability.SetMemoryEntries(count)
	}
	e.logger.Info().Int("reembedded", reembedded).Msg("Reindex completed")
	return reembedded, nil
}

// Status reports entry and cache counts plus provider identity.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	entries, err := e.store.Count(ctx)
	if err != nil {
		return Status{}, err
	}
	cacheRecords, err := e.store.cacheCount(ctx)
	if err != nil {
		return Status{}, err
	}
	hits, misses := e.cache.Stats()

	dims := 0
	if e.provider != nil {
		dims = e.provider.Dimensions()
	}

	observability.SetMemoryEntries(entries)
	observability.SetCacheRecords(cacheRecords)

	return Status{
		Entries:      entries,
		CacheRecords: cacheRecords,
		CacheHits:    hits,
		CacheMisses:  misses,
		Provider:     e.providerName(),
		Dimensions:   dims,
		Healthy:      e.store.HealthCheck(ctx),
	}, nil
}

// Close stops the batching pipeline and closes the store.
func (e *Engine) Close() error {
	if e.batcher != nil {
		e.batcher.Close()
	}
	e.cache.Close()
	return e.store.Close()
}
