package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeroclaw-labs/zeroclaw-sub002/internal/observability"
)

const flushTimeout = 30 * time.Second

type embedResult struct {
	vec []float32
	err error
}

type embedRequest struct {
	hash  string
	text  string
	reply chan embedResult
}

// batchMsg is one message to the batching actor: an enqueue when req is set,
// a flush signal when it is nil. Both variants ride one queue so a flush
// signal can never be consumed ahead of the request it follows.
type batchMsg struct {
	req *embedRequest
}

type batchEntry struct {
	text    string
	waiters []chan embedResult
}

// Batcher coalesces concurrent embedding requests into multi-text provider
// calls. It is a single actor goroutine owning a pending map keyed by
// content hash: concurrent requests for identical content share one entry
// and one provider call, with the result fanned out to every waiter. The
// actor flushes when the pending set reaches batchSize or on an explicit
// signal, and runs at most one flush at a time.
type Batcher struct {
	cache     *EmbeddingCache
	provider  Provider
	batchSize int
	logger    zerolog.Logger

	msgCh     chan batchMsg
	stopCh    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newBatcher(cache *EmbeddingCache, provider Provider, batchSize int, logger zerolog.Logger) *Batcher {
	b := &Batcher{
		cache:     cache,
		provider:  provider,
		batchSize: batchSize,
		logger:    logger,
		msgCh:     make(chan batchMsg, 256),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	go b.run()
	return b
}

// GetOrCompute behaves like EmbeddingCache.GetOrCompute but routes cache
// misses through the batching actor. If the actor drops the request at
// shutdown the caller falls back to computing directly instead of hanging.
func (b *Batcher) GetOrCompute(ctx context.Context, text string) ([]float32, error) {
	if b.cache.disabled() {
		return nil, nil
	}

	hash := ContentHash(text)
	vec, ok, err := b.cache.lookup(ctx, hash)
	if err != nil {
		return nil, err
	}
	if ok {
		return vec, nil
	}
	b.cache.recordMiss()

	reply := make(chan embedResult, 1)
	select {
	case b.msgCh <- batchMsg{req: &embedRequest{hash: hash, text: text, reply: reply}}:
	case <-b.stopCh:
		return b.cache.GetOrCompute(ctx, text)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// The queue is FIFO, so this flush signal lands behind the request just
	// sent and a lone request below the batch threshold still flushes
	// promptly. Under load the request backlog batches ahead of it.
	b.Flush()

	select {
	case result, open := <-reply:
		if !open {
			return b.cache.GetOrCompute(ctx, text)
		}
		if result.err != nil {
			return nil, result.err
		}
		return result.vec, nil
	case <-b.stopCh:
		return b.cache.GetOrCompute(ctx, text)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Flush signals the actor to embed everything pending. With nothing pending
// the signal is a no-op.
func (b *Batcher) Flush() {
	select {
	case b.msgCh <- batchMsg{}:
	case <-b.stopCh:
	}
}

// Close stops the actor. Pending waiters are abandoned, which sends them
// down the direct-compute path.
func (b *Batcher) Close() {
	b.closeOnce.Do(func() {
		close(b.stopCh)
		<-b.done
	})
}

func (b *Batcher) run() {
	defer close(b.done)

	pending := make(map[string]*batchEntry)
	for {
		select {
		case msg := <-b.msgCh:
			if msg.req == nil {
				if len(pending) > 0 {
					b.flush(pending)
					pending = make(map[string]*batchEntry)
				}
				continue
			}
			entry, exists := pending[msg.req.hash]
			if !exists {
				entry = &batchEntry{text: msg.req.text}
				pending[msg.req.hash] = entry
			}
			entry.waiters = append(entry.waiters, msg.req.reply)
			if len(pending) >= b.batchSize {
				b.flush(pending)
				pending = make(map[string]*batchEntry)
			}
		case <-b.stopCh:
			b.abandon(pending)
			return
		}
	}
}

func (b *Batcher) abandon(pending map[string]*batchEntry) {
	for {
		select {
		case msg := <-b.msgCh:
			if msg.req != nil {
				close(msg.req.reply)
			}
		default:
			for _, entry := range pending {
				for _, waiter := range entry.waiters {
					close(waiter)
				}
			}
			return
		}
	}
}

func (b *Batcher) flush(pending map[string]*batchEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	// A previous flush may already have persisted some of these hashes, so
	// serve from the cache first and only embed what is genuinely missing.
	hashes := make([]string, 0, len(pending))
	texts := make([]string, 0, len(pending))
	for hash, entry := range pending {
		vec, ok, err := b.cache.lookup(ctx, hash)
		if err == nil && ok {
			deliver(entry, embedResult{vec: vec})
			continue
		}
		hashes = append(hashes, hash)
		texts = append(texts, entry.text)
	}
	if len(texts) == 0 {
		return
	}

	observability.RecordEmbeddingBatch(len(texts))
	embedStart := time.Now()
	vectors, err := b.provider.Embed(ctx, texts)
	observability.RecordEmbedding(b.provider.Name(), time.Since(embedStart), err == nil)
	if err == nil && len(vectors) != len(texts) {
		err = fmt.Errorf("provider returned %d embeddings for %d texts", len(vectors), len(texts))
	}
	if err != nil {
		result := embedResult{err: providerErr(err)}
		for _, hash := range hashes {
			deliver(pending[hash], result)
		}
		return
	}

	for i, hash := range hashes {
		if err := b.cache.put(ctx, hash, vectors[i]); err != nil {
			b.logger.Warn().Err(err).Msg("Failed to persist batched embedding")
		}
		deliver(pending[hash], embedResult{vec: vectors[i]})
	}
}

func deliver(entry *batchEntry, result embedResult) {
	for _, waiter := range entry.waiters {
		waiter <- result
	}
}
