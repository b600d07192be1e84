// Package store provides the storage abstraction behind a storage domain.
// It sits on top of the db.KVDB engines and adds write index management and
// unified error reporting.
//
// Key Components:
//
//   - IStore Interface: Put (returning the previous value), Get, ordered
//     prefix enumeration with Keys, and GetDBInfo. Keys are opaque strings at
//     this layer; the rpc server stores canonical key strings so that every
//     caller has its own namespace.
//
//   - Error System: Error carries a RetCode and a message, so callers can tell
//     unsupported operations from internal failures.
//
//   - DBFactory: creates the db.KVDB used by a store.
//
// Implementations:
//
//	- Local Store (lstore): a single node store directly on top of a db.KVDB.
//	  Available in the "github.com/ValentinKolb/secstore/lib/store/lstore" package.
//
//	- Distributed Store (dstore): a store replicated with the Dragonboat RAFT
//	  library. Every node keeps a full copy in its state machine.
//	  Available in the "github.com/ValentinKolb/secstore/lib/store/dstore" package.
package store
