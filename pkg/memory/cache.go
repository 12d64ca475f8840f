package memory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/rs/zerolog"
	"github.com/zeroclaw-labs/zeroclaw-sub002/internal/observability"
)

// EmbeddingCache fronts the provider with two cache levels: a ristretto
// in-memory layer for hot hashes and the durable embedding_cache table with
// count-based LRU eviction. The durable table is authoritative; accessed_at
// is bumped on every hit, including hot-layer hits, so eviction order stays
// exact.
type EmbeddingCache struct {
	store    *Store
	provider Provider
	capacity int
	hot      *ristretto.Cache
	logger   zerolog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

func newEmbeddingCache(store *Store, provider Provider, capacity, hotSize int, logger zerolog.Logger) (*EmbeddingCache, error) {
	c := &EmbeddingCache{
		store:    store,
		provider: provider,
		capacity: capacity,
		logger:   logger,
	}

	if hotSize > 0 {
		hot, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: int64(hotSize) * 10,
			MaxCost:     int64(hotSize),
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create hot cache: %w", err)
		}
		c.hot = hot
	}

	return c, nil
}

func (c *EmbeddingCache) disabled() bool {
	return c.provider == nil || c.provider.Dimensions() == 0
}

// GetOrCompute returns the embedding for text, computing it through the
// provider on a cache miss. A nil vector with nil error means embeddings
// are disabled.
func (c *EmbeddingCache) GetOrCompute(ctx context.Context, text string) ([]float32, error) {
	if c.disabled() {
		return nil, nil
	}

	hash := ContentHash(text)
	vec, ok, err := c.lookup(ctx, hash)
	if err != nil {
		return nil, err
	}
	if ok {
		return vec, nil
	}

	c.recordMiss()
	embedStart := time.Now()
	vec, err = c.provider.EmbedOne(ctx, text)
	observability.RecordEmbedding(c.provider.Name(), time.Since(embedStart), err == nil)
	if err != nil {
		return nil, providerErr(err)
	}
	if err := c.put(ctx, hash, vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// lookup consults the hot layer then the durable table, bumping accessed_at
// on any hit.
func (c *EmbeddingCache) lookup(ctx context.Context, hash string) ([]float32, bool, error) {
	if c.hot != nil {
		if v, found := c.hot.Get(hash); found {
			if err := c.store.cacheTouch(ctx, hash); err != nil {
				return nil, false, err
			}
			c.recordHit()
			return v.([]float32), true, nil
		}
	}

	vec, ok, err := c.store.cacheLookup(ctx, hash)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	if c.hot != nil {
		c.hot.Set(hash, vec, 1)
	}
	c.recordHit()
	return vec, true, nil
}

func (c *EmbeddingCache) recordHit() {
	c.hits.Add(1)
	observability.RecordCacheHit()
}

func (c *EmbeddingCache) recordMiss() {
	c.misses.Add(1)
	observability.RecordCacheMiss()
}

// put writes through to the durable table, evicting beyond capacity, and
// mirrors the record into the hot layer. Evicted hashes are dropped from the
// hot layer so it never outlives the durable record.
func (c *EmbeddingCache) put(ctx context.Context, hash string, vec []float32) error {
	evicted, err := c.store.cacheInsert(ctx, hash, vec, c.capacity)
	if err != nil {
		return err
	}
	if c.hot != nil {
		for _, victim := range evicted {
			c.hot.Del(victim)
		}
		c.hot.Set(hash, vec, 1)
	}
	return nil
}

// Stats reports hit/miss counters since startup.
func (c *EmbeddingCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *EmbeddingCache) Close() {
	if c.hot != nil {
		c.hot.Close()
	}
}

func (s *Store) cacheLookup(ctx context.Context, hash string) ([]float32, bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, "SELECT embedding FROM embedding_cache WHERE content_hash = ?", hash).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr("cache lookup", err)
	}

	if err := s.cacheTouch(ctx, hash); err != nil {
		return nil, false, err
	}

	vec, err := deserializeVector(blob)
	if err != nil {
		return nil, false, storageErr("cache lookup", err)
	}
	return vec, true, nil
}

func (s *Store) cacheTouch(ctx context.Context, hash string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, "UPDATE embedding_cache SET accessed_at = ? WHERE content_hash = ?", time.Now().UnixNano(), hash)
	if err != nil {
		return storageErr("cache touch", err)
	}
	return nil
}

// cacheInsert upserts one record and prunes the least-recently-accessed
// records beyond capacity inside the same critical section, so eviction
// never races insertion. Returns the evicted hashes.
func (s *Store) cacheInsert(ctx context.Context, hash string, vec []float32, capacity int) ([]string, error) {
	blob, err := serializeVector(vec)
	if err != nil {
		return nil, storageErr("cache insert", err)
	}
	now := time.Now().UnixNano()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO embedding_cache (content_hash, embedding, dimension, created_at, accessed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(content_hash) DO UPDATE SET
		   embedding = excluded.embedding,
		   dimension = excluded.dimension,
		   accessed_at = excluded.accessed_at`,
		hash, blob, len(vec), now, now)
	if err != nil {
		return nil, storageErr("cache insert", err)
	}

	if capacity <= 0 {
		return nil, nil
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embedding_cache").Scan(&count); err != nil {
		return nil, storageErr("cache prune", err)
	}
	excess := count - capacity
	if excess <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT content_hash FROM embedding_cache ORDER BY accessed_at ASC, rowid ASC LIMIT ?", excess)
	if err != nil {
		return nil, storageErr("cache prune", err)
	}
	victims := make([]string, 0, excess)
	for rows.Next() {
		var victim string
		if err := rows.Scan(&victim); err != nil {
			rows.Close()
			return nil, storageErr("cache prune", err)
		}
		victims = append(victims, victim)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, storageErr("cache prune", err)
	}
	rows.Close()

	if len(victims) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(victims)), ",")
		args := make([]interface{}, len(victims))
		for i, victim := range victims {
			args[i] = victim
		}
		if _, err := s.db.ExecContext(ctx, "DELETE FROM embedding_cache WHERE content_hash IN ("+placeholders+")", args...); err != nil {
			return nil, storageErr("cache prune", err)
		}
	}
	return victims, nil
}

func (s *Store) cacheCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embedding_cache").Scan(&count); err != nil {
		return 0, storageErr("cache count", err)
	}
	return count, nil
}
