// Package memory is a persistent knowledge store with hybrid recall.
//
// Invariants:
// - An entry's id is assigned once; re-storing its key upserts in place.
// - The full-text index stays transactionally in sync with the entry store.
// - Recall fuses keyword and vector rankings, degrading to keyword-only when
//   the embedding provider fails and to substring matching when both tiers
//   come up empty.
//
// Usage:
//
//	eng, _ := memory.NewEngine(memory.Config{DBPath: "/data/memory.db"})
//	defer eng.Close()
//	_ = eng.Store(ctx, "pref", "User likes Rust", memory.CategoryCore, "")
//	entries, _ := eng.Recall(ctx, "Rust", memory.RecallOptions{Limit: 10})
//	_ = entries
package memory
