package dstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/secstore/lib/db"
	"github.com/ValentinKolb/secstore/lib/store"
	"github.com/ValentinKolb/secstore/lib/store/dstore/internal"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// storeImpl is the concrete implementation of the distributed store.
// It encapsulates a Dragonboat NodeHost which is used to communicate with the state machine.
type storeImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
}

// NewDistributedStore creates a new distributed store instance which uses raft consensus to ensure strict linearizability
// across multiple nodes.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) store.IStore {
	return &storeImpl{
		nh:      nh,
		shardID: shardID,
		cs:      nh.GetNoOPSession(shardID),
		timeout: timeout,
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// write proposes a Command via SyncPropose and returns the data of the result.
// Busy errors are retried up to 5 times.
func (s *storeImpl) write(cmd internal.Command) ([]byte, error) {
	payload := cmd.Serialize()
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		res, err := s.nh.SyncPropose(ctx, s.cs, payload)
		cancel()

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}

		if err != nil {
			return nil, store.NewError(store.RetCInternalError, err.Error())
		}
		if res.Value != uint64(store.RetCSuccess) {
			return nil, store.NewError(store.RetCode(res.Value), string(res.Data))
		}
		return res.Data, nil
	}
	return nil, store.NewError(store.RetCInternalError, "timeout")
}

// read is a generic helper function that queries the state machine
// and attempts to convert the response into the expected type R.
//
// SyncRead is used by default. If linearizability is not required, the stale
// parameter selects the faster StaleRead. Busy errors are retried up to 5 times.
func read[R any](r *storeImpl, q internal.Query, stale bool) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {

		var res interface{}
		var err error

		if stale {
			res, err = r.nh.StaleRead(r.shardID, q)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			res, err = r.nh.SyncRead(ctx, r.shardID, q)
			cancel()
		}

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(r.timeout / 10)
			continue
		}

		if err != nil {
			var storeErr *store.Error
			if errors.As(err, &storeErr) {
				return zero, storeErr
			}
			return zero, store.NewError(store.RetCInternalError, err.Error())
		}

		casted, ok := res.(R)
		if !ok {
			return zero, store.NewError(store.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, store.NewError(store.RetCInternalError, "timeout")
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Put(key string, value []byte) ([]byte, bool, error) {
	data, err := s.write(internal.Command{
		Type:  internal.CommandTPut,
		Key:   key,
		Value: value,
	})
	if err != nil {
		return nil, false, err
	}
	prev, replaced, err := internal.DecodePutResult(data)
	if err != nil {
		return nil, false, store.NewError(store.RetCInternalError, err.Error())
	}
	return prev, replaced, nil
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	res, err := read[internal.QueryResult](s, internal.Query{
		Type: internal.QueryTGet,
		Key:  key,
	}, false)
	if err != nil {
		return nil, false, err
	}
	return res.Value, res.Ok, nil
}

func (s *storeImpl) Keys(prefix string) ([]string, error) {
	return read[[]string](s, internal.Query{
		Type: internal.QueryTKeys,
		Key:  prefix,
	}, false)
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return read[db.DatabaseInfo](
		s,
		internal.Query{
			Type: internal.QueryTGetDBInfo,
		},
		true, // Note: allow for stale reads
	)
}
