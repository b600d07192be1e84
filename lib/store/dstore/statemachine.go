package dstore

import (
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/secstore/lib/db"
	"github.com/ValentinKolb/secstore/lib/store"
	"github.com/ValentinKolb/secstore/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// KVStateMachine is a state machine implementation for Dragonboat RAFT
type KVStateMachine struct {
	replicaID uint64
	shardID   uint64
	database  db.KVDB
}

// CreateStateMaschineFactory returns a function that can be used by dragonboat to create a new state machine for a node host.
// The database must support snapshots (db.FeatureSave and db.FeatureLoad).
func CreateStateMaschineFactory(dbFactory store.DBFactory) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &KVStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			database:  dbFactory(),
		}
	}
}

// Lookup handles read-only queries by mapping each Query operation to the corresponding KVDB method.
func (fsm *KVStateMachine) Lookup(itf interface{}) (interface{}, error) {
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}

	switch q.Type {
	case internal.QueryTGet:
		if !fsm.database.SupportsFeature(db.FeatureGet) {
			return nil, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
		}
		val, ok, err := fsm.database.Get(q.Key)
		if err != nil {
			return nil, store.NewError(store.RetCInternalError, err.Error())
		}
		return internal.QueryResult{
			Value: val,
			Ok:    ok,
		}, nil
	case internal.QueryTKeys:
		if !fsm.database.SupportsFeature(db.FeatureKeys) {
			return nil, store.NewError(store.RetCUnsupportedOperation, "Keys operation is not supported")
		}
		keys, err := fsm.database.Keys(q.Key)
		if err != nil {
			return nil, store.NewError(store.RetCInternalError, err.Error())
		}
		return keys, nil
	case internal.QueryTGetDBInfo:
		return fsm.database.GetInfo(), nil
	default:
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown Query operation: %d", q.Type))
	}
}

// Update applies the committed commands in entries to the database.
// The raft log index is used as write index.
func (fsm *KVStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {
	if len(entries) == 0 {
		return entries, nil
	}

	start := time.Now()

	for idx, e := range entries {
		entries[idx].Result = fsm.apply(e)
	}

	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("State machine took long to update. Batch updated %d entries, took %.2fms", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

func (fsm *KVStateMachine) apply(e sm.Entry) sm.Result {
	if len(e.Cmd) == 0 {
		return sm.Result{Value: uint64(store.RetCInvalidOperation), Data: []byte("empty command ignored")}
	}

	cmd := internal.Command{}
	if err := cmd.Deserialize(e.Cmd); err != nil {
		return sm.Result{Value: uint64(store.RetCInternalError), Data: []byte(fmt.Sprintf("failed to deserialize command: %v", err))}
	}

	feat, err := cmd.Type.ToDBFeature()
	if err != nil {
		return sm.Result{Value: uint64(store.RetCInvalidOperation), Data: []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type))}
	}
	if !fsm.database.SupportsFeature(feat) {
		return sm.Result{Value: uint64(store.RetCUnsupportedOperation), Data: []byte(fmt.Sprintf("%s operation is not supported", cmd.Type))}
	}

	switch cmd.Type {
	case internal.CommandTPut:
		prev, replaced, err := fsm.database.Put(cmd.Key, cmd.Value, e.Index)
		if err != nil {
			return sm.Result{Value: uint64(store.RetCInternalError), Data: []byte(err.Error())}
		}
		return sm.Result{Value: uint64(store.RetCSuccess), Data: internal.EncodePutResult(prev, replaced)}
	default:
		return sm.Result{Value: uint64(store.RetCInvalidOperation), Data: []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type))}
	}
}

// PrepareSnapshot is not used. We don't need to prepare anything since we use fuzzy snapshotting
func (fsm *KVStateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

// SaveSnapshot saves a fuzzy db snapshot to the writer
func (fsm *KVStateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureSave) {
		return fmt.Errorf("the used KVDB implementation does not support Save() operations")
	}
	return fsm.database.Save(writer)
}

// RecoverFromSnapshot restores the database from a snapshot written by SaveSnapshot.
func (fsm *KVStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureLoad) {
		return fmt.Errorf("the used KVDB implementation does not support Load() operations")
	}
	return fsm.database.Load(r)
}

// Close performs any necessary cleanup.
func (fsm *KVStateMachine) Close() error {
	return fsm.database.Close()
}
