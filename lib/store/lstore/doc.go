// Package lstore implements a single node store based on the store.IStore
// interface. It is a thin wrapper around any db.KVDB implementation that
// assigns write indexes from an atomic counter.
//
// Whether data survives a restart depends on the engine: the oak engine keeps
// everything in memory, the ring engine writes every entry to the keyring.
//
// Unsupported operations are detected with db.KVDB.SupportsFeature and
// reported as store.RetCUnsupportedOperation. Engine errors are reported as
// store.RetCInternalError.
//
// Usage Example:
//
//	factory := func() db.KVDB { return oak.NewOakDB(nil) }
//	s := lstore.NewLocalStore(factory)
//
//	prev, replaced, err := s.Put("v=1,euid=0x3E8/home", profile)
//	value, exists, err := s.Get("v=1,euid=0x3E8/home")
//	keys, err := s.Keys("v=1,euid=0x3E8/")
package lstore
