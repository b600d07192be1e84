// Package dstore implements a replicated store using the Dragonboat RAFT
// consensus library. It provides a linearizable implementation of the
// store.IStore interface for storage domains served by several nodes.
//
// Architecture:
//
//   - Store Client (store.go): implements store.IStore. Writes are serialized
//     into internal.Command values and proposed with SyncPropose, reads are
//     internal.Query values passed to SyncRead.
//
//   - State Machine (statemachine.go): a Dragonboat IConcurrentStateMachine
//     holding the db.KVDB of the domain. Update applies committed commands with
//     the raft log index as write index and returns the previous value of a
//     Put in the result data.
//
// Reads:
//
//	Get and Keys use SyncRead, so a read observes every Put that completed
//	before it started, no matter which node serves it. GetDBInfo uses
//	StaleRead.
//
// Retries:
//
//	When Dragonboat reports ErrSystemBusy, the operation is retried after a
//	tenth of the timeout, up to 5 attempts.
//
// Snapshots:
//
//	Snapshots are fuzzy and use Save and Load of the database, so only
//	engines with db.FeatureSave and db.FeatureLoad (oak) can back a
//	replicated domain.
//
// Example:
//
//	nh, err := dragonboat.NewNodeHost(config.ToNodeHostConfig())
//	dbFactory := func() db.KVDB { return oak.NewOakDB(nil) }
//	err = nh.StartConcurrentReplica(members, false,
//		dstore.CreateStateMaschineFactory(dbFactory), config.ToDragonboatConfig(shardID))
//	s := dstore.NewDistributedStore(nh, shardID, 5*time.Second)
package dstore
