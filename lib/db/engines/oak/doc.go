// Package oak implements an ordered in-memory key-value database (KVDB) on
// top of github.com/google/btree. Keys are kept in byte order, which makes
// prefix enumeration a range scan.
//
// Key Components:
//
//   - oakImpl: implements db.KVDB. A single RWMutex guards the tree; readers
//     run concurrently, writers are serialized. Values are copied on Put and
//     on Get so callers never share memory with the tree.
//
//   - Persistence: Save writes a snapshot (magic "OAKDB", version, write index,
//     entries in key order, little endian). Load builds a new tree from a
//     snapshot and swaps it in, so a failed load leaves the database intact.
//     Replicated stores use both for raft snapshots.
package oak
