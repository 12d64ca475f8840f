// Package ingest feeds markdown documents into the memory engine as
// chunked document entries.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeroclaw-labs/zeroclaw-sub002/internal/observability"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/chunker"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/memory"
)

const (
	documentCategory memory.Category = "document"
	keyPrefix                        = "doc:"

	defaultMaxTokens     = 400
	defaultOverlapTokens = 40
)

// Config holds ingestion pipeline configuration
type Config struct {
	Root          string
	StatePath     string // defaults to <Root>/.ingest-state.json
	MaxTokens     int
	OverlapTokens int
	Logger        zerolog.Logger
}

// Result summarizes one sync pass.
type Result struct {
	FilesIndexed int `json:"files_indexed"`
	FilesSkipped int `json:"files_skipped"`
	FilesPruned  int `json:"files_pruned"`
	ChunksStored int `json:"chunks_stored"`
}

type fileState struct {
	Hash   string `json:"hash"`
	Chunks int    `json:"chunks"`
}

// Pipeline walks a document root, chunks changed markdown files and stores
// each chunk as an entry keyed "doc:<relpath>#<index>". A sidecar state file
// records per-file content hashes so unchanged files are skipped and removed
// files have their chunk entries forgotten.
type Pipeline struct {
	engine    *memory.Engine
	root      string
	statePath string
	maxTokens int
	overlap   int
	logger    zerolog.Logger

	syncMu sync.Mutex
	mu     sync.Mutex
	dirty  bool
}

// New creates an ingestion pipeline rooted at cfg.Root.
func New(engine *memory.Engine, cfg Config) (*Pipeline, error) {
	info, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat document root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document root is not a directory: %s", cfg.Root)
	}

	if cfg.StatePath == "" {
		cfg.StatePath = filepath.Join(cfg.Root, ".ingest-state.json")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.OverlapTokens < 0 {
		cfg.OverlapTokens = defaultOverlapTokens
	}

	return &Pipeline{
		engine:    engine,
		root:      cfg.Root,
		statePath: cfg.StatePath,
		maxTokens: cfg.MaxTokens,
		overlap:   cfg.OverlapTokens,
		logger:    cfg.Logger,
		dirty:     true, // Start dirty to trigger initial sync
	}, nil
}

// MarkDirty flags the root as needing a sync.
func (p *Pipeline) MarkDirty() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirty = true
}

// Dirty reports whether a sync is pending.
func (p *Pipeline) Dirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirty
}

// Sync walks the root once: unchanged files are skipped by content hash,
// changed files are re-chunked and stored, and files that disappeared have
// their chunk entries forgotten. Concurrent calls serialize.
func (p *Pipeline) Sync(ctx context.Context) (Result, error) {
	p.syncMu.Lock()
	defer p.syncMu.Unlock()

	p.mu.Lock()
	p.dirty = false
	p.mu.Unlock()

	p.logger.Info().Str("root", p.root).Msg("Starting ingest sync")
	start := time.Now()

	state, err := p.loadState()
	if err != nil {
		return Result{}, err
	}

	var mdFiles []string
	err = filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			relPath, _ := filepath.Rel(p.root, path)
			mdFiles = append(mdFiles, relPath)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to walk document root: %w", err)
	}

	var res Result
	seen := make(map[string]bool, len(mdFiles))
	for _, relPath := range mdFiles {
		seen[relPath] = true
		next, stored, indexed, err := p.ingestFile(ctx, relPath, state[relPath])
		if err != nil {
			p.logger.Warn().Err(err).Str("file", relPath).Msg("Failed to ingest file")
			continue
		}
		state[relPath] = next
		if indexed {
			res.FilesIndexed++
			res.ChunksStored += stored
		} else {
			res.FilesSkipped++
		}
	}

	for relPath, st := range state {
		if seen[relPath] {
			continue
		}
		p.forgetChunks(ctx, relPath, st.Chunks)
		delete(state, relPath)
		res.FilesPruned++
	}

	if err := p.saveState(state); err != nil {
		return res, err
	}

	p.logger.Info().
		Int("files_indexed", res.FilesIndexed).
		Int("files_skipped", res.FilesSkipped).
		Int("files_pruned", res.FilesPruned).
		Int("chunks_stored", res.ChunksStored).
		Dur("duration", time.Since(start)).
		Msg("Ingest sync completed")

	return res, nil
}

// ingestFile chunks and stores one file, pruning leftover chunk entries when
// the file shrank. An unchanged hash skips the file entirely.
func (p *Pipeline) ingestFile(ctx context.Context, relPath string, prev fileState) (fileState, int, bool, error) {
	raw, err := os.ReadFile(filepath.Join(p.root, relPath))
	if err != nil {
		return prev, 0, false, err
	}

	hash := memory.ContentHash(string(raw))
	if prev.Hash == hash {
		return prev, 0, false, nil
	}

	chunks := chunker.SplitWithOverlap(string(raw), p.maxTokens, p.overlap)
	for _, c := range chunks {
		if err := p.engine.Store(ctx, chunkKey(relPath, c.Index), c.Content, documentCategory, ""); err != nil {
			return prev, 0, false, err
		}
	}

	for i := len(chunks); i < prev.Chunks; i++ {
		if _, err := p.engine.Forget(ctx, chunkKey(relPath, i)); err != nil {
			p.logger.Warn().Err(err).Str("file", relPath).Int("chunk", i).Msg("Failed to prune stale chunk")
		}
	}

	observability.RecordIngestFile(len(chunks))
	return fileState{Hash: hash, Chunks: len(chunks)}, len(chunks), true, nil
}

func (p *Pipeline) forgetChunks(ctx context.Context, relPath string, count int) {
	for i := 0; i < count; i++ {
		if _, err := p.engine.Forget(ctx, chunkKey(relPath, i)); err != nil {
			p.logger.Warn().Err(err).Str("file", relPath).Int("chunk", i).Msg("Failed to forget chunk")
		}
	}
}

func chunkKey(relPath string, index int) string {
	return fmt.Sprintf("%s%s#%d", keyPrefix, relPath, index)
}

func (p *Pipeline) loadState() (map[string]fileState, error) {
	raw, err := os.ReadFile(p.statePath)
	if os.IsNotExist(err) {
		return map[string]fileState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ingest state: %w", err)
	}

	state := map[string]fileState{}
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to parse ingest state: %w", err)
	}
	return state, nil
}

func (p *Pipeline) saveState(state map[string]fileState) error {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ingest state: %w", err)
	}
	if err := os.WriteFile(p.statePath, raw, 0644); err != nil {
		return fmt.Errorf("failed to write ingest state: %w", err)
	}
	return nil
}
