package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
)

// maxLikeTerms bounds the substring fallback query cost.
const maxLikeTerms = 5

type searchHit struct {
	id    string
	score float64
}

// sanitizeFTSQuery splits the query on whitespace and quotes each term so
// FTS5 operators in user input cannot alter the query, joining terms with OR.
func sanitizeFTSQuery(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return ""
	}

	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ReplaceAll(term, `"`, `""`)
		quoted = append(quoted, `"`+term+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// searchKeyword runs a BM25 full-text search. FTS5's bm25() is
// lower-is-better, so scores are negated to higher-is-better here.
func (s *Store) searchKeyword(ctx context.Context, query string, limit int) ([]searchHit, error) {
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_id, -bm25(memories_fts) AS score
		 FROM memories_fts
		 WHERE memories_fts MATCH ?
		 ORDER BY score DESC, rowid DESC
		 LIMIT ?`,
		sanitized, limit,
	)
	if err != nil {
		return nil, storageErr("keyword search", err)
	}
	defer rows.Close()

	var hits []searchHit
	for rows.Next() {
		var h searchHit
		if err := rows.Scan(&h.id, &h.score); err != nil {
			return nil, storageErr("keyword search", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("keyword search", err)
	}
	return hits, nil
}

// searchVector brute-force scans every stored embedding with cosine
// similarity, keeping strictly positive similarities and oversampling to
// 2*limit candidates for the merge step.
func (s *Store) searchVector(ctx context.Context, queryVec []float32, sessionID string, limit int) ([]searchHit, error) {
	queryJSON, err := json.Marshal(queryVec)
	if err != nil {
		return nil, storageErr("vector search", err)
	}

	query := `SELECT id, vec_distance_cosine(embedding, ?) AS distance
	          FROM memories
	          WHERE embedding IS NOT NULL`
	args := []interface{}{string(queryJSON)}
	if sessionID != "" {
		query += " AND session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY distance ASC, rowid DESC LIMIT ?"
	args = append(args, limit*2)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("vector search", err)
	}
	defer rows.Close()

	var hits []searchHit
	for rows.Next() {
		var id string
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, storageErr("vector search", err)
		}
		similarity := 1 - distance
		if similarity > 0 {
			hits = append(hits, searchHit{id: id, score: similarity})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("vector search", err)
	}
	return hits, nil
}

// mergeHits fuses vector and keyword rankings with the configured weights.
// With no vector hits the keyword list passes through verbatim, in keyword
// order. Keyword scores are max-normalized so both components share a 0..1
// range before weighting.
func mergeHits(vector, keyword []searchHit, vectorWeight, keywordWeight float64, limit int) []searchHit {
	if len(vector) == 0 {
		if len(keyword) > limit {
			keyword = keyword[:limit]
		}
		return keyword
	}

	var maxKeyword float64
	for _, h := range keyword {
		if h.score > maxKeyword {
			maxKeyword = h.score
		}
	}

	scores := make(map[string]float64, len(vector)+len(keyword))
	order := make([]string, 0, len(vector)+len(keyword))
	for _, h := range vector {
		if _, seen := scores[h.id]; !seen {
			order = append(order, h.id)
		}
		scores[h.id] += vectorWeight * h.score
	}
	for _, h := range keyword {
		if _, seen := scores[h.id]; !seen {
			order = append(order, h.id)
		}
		normalized := h.score
		if maxKeyword > 0 {
			normalized = h.score / maxKeyword
		}
		scores[h.id] += keywordWeight * normalized
	}

	merged := make([]searchHit, 0, len(order))
	for _, id := range order {
		merged = append(merged, searchHit{id: id, score: scores[id]})
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].score > merged[j].score
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// searchLike is the last-resort substring tier: case-insensitive LIKE over
// content and key, most recent first, every match scored a flat 1.0.
func (s *Store) searchLike(ctx context.Context, query, sessionID string, limit int) ([]Entry, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if len(terms) > maxLikeTerms {
		terms = terms[:maxLikeTerms]
	}

	var conds []string
	var args []interface{}
	for _, term := range terms {
		pattern := "%" + escapeLike(term) + "%"
		conds = append(conds, `(content LIKE ? ESCAPE '\' OR key LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	q := "SELECT " + entryColumns + " FROM memories WHERE (" + strings.Join(conds, " OR ") + ")"
	if sessionID != "" {
		q += " AND session_id = ?"
		args = append(args, sessionID)
	}
	q += " ORDER BY updated_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr("substring search", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, storageErr("substring search", err)
		}
		entry.Score = 1.0
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("substring search", err)
	}
	return entries, nil
}

func escapeLike(term string) string {
	term = strings.ReplaceAll(term, `\`, `\\`)
	term = strings.ReplaceAll(term, `%`, `\%`)
	term = strings.ReplaceAll(term, `_`, `\_`)
	return term
}
