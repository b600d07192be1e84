package lstore

import (
	"sync/atomic"

	"github.com/ValentinKolb/secstore/lib/db"
	"github.com/ValentinKolb/secstore/lib/store"
)

type storeImpl struct {
	db    db.KVDB
	index atomic.Uint64
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
func NewLocalStore(factory store.DBFactory) store.IStore {
	return &storeImpl{
		db: factory(),
	}
}

// incAndGetIndex increments the index and returns the new value.
// It is used to ensure that each write operation has a unique index.
func (s *storeImpl) incAndGetIndex() uint64 {
	return s.index.Add(1)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Put(key string, value []byte) ([]byte, bool, error) {
	if !s.db.SupportsFeature(db.FeaturePut) {
		return nil, false, store.NewError(store.RetCUnsupportedOperation, "Put operation is not supported")
	}
	prev, replaced, err := s.db.Put(key, value, s.incAndGetIndex())
	if err != nil {
		return nil, false, store.NewError(store.RetCInternalError, err.Error())
	}
	return prev, replaced, nil
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	if !s.db.SupportsFeature(db.FeatureGet) {
		return nil, false, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
	}
	val, ok, err := s.db.Get(key)
	if err != nil {
		return nil, false, store.NewError(store.RetCInternalError, err.Error())
	}
	return val, ok, nil
}

func (s *storeImpl) Keys(prefix string) ([]string, error) {
	if !s.db.SupportsFeature(db.FeatureKeys) {
		return nil, store.NewError(store.RetCUnsupportedOperation, "Keys operation is not supported")
	}
	keys, err := s.db.Keys(prefix)
	if err != nil {
		return nil, store.NewError(store.RetCInternalError, err.Error())
	}
	return keys, nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}
