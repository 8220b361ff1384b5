// Package embedcache provides a content-hash-keyed persistent cache of
// computed chunk vectors.
//
// Eviction policy:
//   - hard cap on entry count; at capacity the least-recently-accessed 20%
//     are evicted in one bulk pass
//   - independent TTL (default 7 days from creation) makes older entries a
//     miss, purged lazily on access or eagerly via Cleanup
//   - Optimize removes entries in the bottom access-count quartile untouched
//     for 7+ days, for long-run pruning beyond the capacity trigger
//
// Persistence is dirty-flag triggered: every N writes, on a fixed timer via
// StartAutoFlush, and a final flush on Close. The cache is never
// authoritative for correctness; losing it only adds recomputation cost.
package embedcache
