package memory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

const entryColumns = "id, key, content, category, session_id, created_at, updated_at"

// Store is the durable entry store: one SQLite database holding the entries
// table, its FTS5 projection and the embedding cache table. Mutations
// serialize on a single write mutex; reads run concurrently under WAL.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
	logger  zerolog.Logger
}

func openStore(dbPath string, logger zerolog.Logger) (*Store, error) {
	// Open database with FTS5 support
	db, err := sql.Open("sqlite3", dbPath+"?_fts5=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			key TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL,
			category TEXT NOT NULL,
			session_id TEXT,
			embedding BLOB,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_memories_category ON memories(category);
		CREATE INDEX IF NOT EXISTS idx_memories_session ON memories(session_id);
		CREATE INDEX IF NOT EXISTS idx_memories_updated ON memories(updated_at);

		CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
			entry_id UNINDEXED,
			key,
			content,
			tokenize='porter unicode61'
		);

		CREATE TABLE IF NOT EXISTS embedding_cache (
			content_hash TEXT PRIMARY KEY,
			embedding BLOB NOT NULL,
			dimension INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			accessed_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cache_accessed ON embedding_cache(accessed_at);

		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Upsert writes an entry and its FTS projection in one transaction. An
// existing key keeps its original id; a new key allocates one.
func (s *Store) Upsert(ctx context.Context, key, content string, category Category, sessionID string, embedding []byte) error {
	now := time.Now().UnixNano()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, "SELECT id FROM memories WHERE key = ?", key).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		id = uuid.NewString()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO memories (id, key, content, category, session_id, embedding, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, key, content, string(category), nullableString(sessionID), embedding, now, now,
		)
		if err != nil {
			return storageErr("insert entry", err)
		}
	case err != nil:
		return storageErr("lookup entry", err)
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE memories SET content = ?, category = ?, session_id = ?, embedding = ?, updated_at = ? WHERE id = ?`,
			content, string(category), nullableString(sessionID), embedding, now, id,
		)
		if err != nil {
			return storageErr("update entry", err)
		}
	}

	// Keep the FTS projection in the same transaction so readers never see
	// the entry store and the index out of sync.
	if _, err := tx.ExecContext(ctx, "DELETE FROM memories_fts WHERE entry_id = ?", id); err != nil {
		return storageErr("delete fts row", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO memories_fts (entry_id, key, content) VALUES (?, ?, ?)", id, key, content); err != nil {
		return storageErr("insert fts row", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

// Get returns the entry stored under key, or nil when absent.
func (s *Store) Get(ctx context.Context, key string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM memories WHERE key = ?", key)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get entry", err)
	}
	return entry, nil
}

// List returns entries most-recently-updated first, optionally filtered by
// category and session tag, capped at limit.
func (s *Store) List(ctx context.Context, opts ListOptions, limit int) ([]Entry, error) {
	query := "SELECT " + entryColumns + " FROM memories"

	var conds []string
	var args []interface{}
	if opts.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, string(opts.Category))
	}
	if opts.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, opts.SessionID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY updated_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list entries", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, storageErr("scan entry", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list entries", err)
	}
	return entries, nil
}

// Forget hard-deletes the entry under key along with its FTS row. Returns
// true iff a row was actually removed.
func (s *Store) Forget(ctx context.Context, key string) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, storageErr("begin", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, "SELECT id FROM memories WHERE key = ?", key).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, storageErr("lookup entry", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", id); err != nil {
		return false, storageErr("delete entry", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM memories_fts WHERE entry_id = ?", id); err != nil {
		return false, storageErr("delete fts row", err)
	}

	if err := tx.Commit(); err != nil {
		return false, storageErr("commit", err)
	}
	return true, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories").Scan(&count); err != nil {
		return 0, storageErr("count entries", err)
	}
	return count, nil
}

// HealthCheck round-trips a metadata write and read. It never returns an
// error, only false on failure.
func (s *Store) HealthCheck(ctx context.Context) bool {
	value := fmt.Sprintf("%d", time.Now().UnixNano())

	s.writeMu.Lock()
	_, err := s.db.ExecContext(ctx, "INSERT OR REPLACE INTO metadata (key, value) VALUES ('health_check', ?)", value)
	s.writeMu.Unlock()
	if err != nil {
		return false
	}

	var got string
	if err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = 'health_check'").Scan(&got); err != nil {
		return false
	}
	return got == value
}

// FetchByIDs loads full entries for a merged candidate set in one batched
// lookup.
func (s *Store) FetchByIDs(ctx context.Context, ids []string) (map[string]Entry, error) {
	if len(ids) == 0 {
		return map[string]Entry{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM memories WHERE id IN (%s)", entryColumns, placeholders), args...)
	if err != nil {
		return nil, storageErr("fetch entries", err)
	}
	defer rows.Close()

	entries := make(map[string]Entry, len(ids))
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, storageErr("scan entry", err)
		}
		entries[entry.ID] = *entry
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("fetch entries", err)
	}
	return entries, nil
}

// RebuildFTS drops and repopulates the FTS projection from the canonical
// entries table.
func (s *Store) RebuildFTS(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM memories_fts"); err != nil {
		return storageErr("clear fts", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO memories_fts (entry_id, key, content) SELECT id, key, content FROM memories"); err != nil {
		return storageErr("rebuild fts", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

type pendingEmbed struct {
	id      string
	content string
}

// missingEmbeddings returns entries that have no stored embedding.
func (s *Store) missingEmbeddings(ctx context.Context) ([]pendingEmbed, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, content FROM memories WHERE embedding IS NULL ORDER BY updated_at DESC")
	if err != nil {
		return nil, storageErr("scan missing embeddings", err)
	}
	defer rows.Close()

	var pending []pendingEmbed
	for rows.Next() {
		var p pendingEmbed
		if err := rows.Scan(&p.id, &p.content); err != nil {
			return nil, storageErr("scan missing embeddings", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("scan missing embeddings", err)
	}
	return pending, nil
}

// SetEmbedding backfills one entry's embedding. The IS NULL guard keeps each
// backfill an independent idempotent update.
func (s *Store) SetEmbedding(ctx context.Context, id string, embedding []byte) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE memories SET embedding = ? WHERE id = ? AND embedding IS NULL", embedding, id)
	if err != nil {
		return false, storageErr("set embedding", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("set embedding", err)
	}
	return n > 0, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var entry Entry
	var category string
	var sessionID sql.NullString
	var createdAt, updatedAt int64

	if err := row.Scan(&entry.ID, &entry.Key, &entry.Content, &category, &sessionID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	entry.Category = Category(category)
	if sessionID.Valid {
		entry.SessionID = sessionID.String
	}
	entry.CreatedAt = time.Unix(0, createdAt)
	entry.UpdatedAt = time.Unix(0, updatedAt)
	return &entry, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
