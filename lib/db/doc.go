// Package db provides a standardized interface for the key-value databases
// backing a storage domain. It abstracts the concrete engine so stores can
// switch between an in-memory ordered tree and an encrypted keyring.
//
// Key Components:
//
//   - KVDB Interface: The core interface that all database implementations must satisfy.
//     It provides Put (returning the previous value), Get, ordered prefix
//     enumeration with Keys, and the persistence operations Save and Load used
//     for raft snapshots.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method. The keyring engine, for
//     example, persists by itself and does not support Save and Load.
//
//   - Implementation Identifiers: "oak" (engines/oak) and "ring" (engines/ring).
//
//   - Database Information: The DatabaseInfo structure reports the size,
//     implementation type and implementation-specific metadata of a database.
//
// Note on write indexes:
//   - Every write carries a write index used as a logical timestamp. Replicated
//     stores pass the raft log index, local stores a local counter.
//   - The write index only increases. Attempts to set a write index lower than
//     the current one are ignored.
package db
