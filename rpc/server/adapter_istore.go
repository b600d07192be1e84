package server

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/secstore/lib/store"
	"github.com/ValentinKolb/secstore/rpc/common"
)

// NewIStoreServerAdapter creates the adapter serving the storage commands.
// Keys are namespaced with the EUID of the caller before they reach the
// store, so callers never see each other's values. version is returned for
// VersionRequest.
func NewIStoreServerAdapter(version string) IRPCServerAdapter {
	return &iStoreServerAdapterImpl{version: version}
}

type iStoreServerAdapterImpl struct {
	version string
}

func (adapter *iStoreServerAdapterImpl) Handle(euid uint32, req common.Request, store store.IStore) (common.Response, error) {
	if store == nil {
		return nil, fmt.Errorf("handler: store is nil")
	}

	switch req := req.(type) {
	case common.PutRequest:
		prev, replaced, err := store.Put(common.Key{EUID: euid, UserKey: req.Key}.String(), req.Val)
		if err != nil {
			return nil, err
		}
		if !replaced {
			prev = nil
		}
		return common.PutResponse{PrevVal: prev, Replaced: replaced}, nil

	case common.GetRequest:
		val, found, err := store.Get(common.Key{EUID: euid, UserKey: req.Key}.String())
		if err != nil {
			return nil, err
		}
		if !found {
			val = nil
		}
		return common.GetResponse{Val: val, Found: found}, nil

	case common.ListRequest:
		keys, err := adapter.list(req, store)
		if err != nil {
			return nil, err
		}
		return common.NewListResponse(keys), nil

	case common.VersionRequest:
		return common.VersionResponse{Version: adapter.version}, nil

	default:
		return nil, fmt.Errorf("RPC IStoreAdapter - unsupported request type: %T", req)
	}
}

// list collects the keys matching the filter of req. With an EUID the store
// is queried with the canonical prefix of that caller, otherwise every key
// of the domain is parsed and filtered by user key.
func (adapter *iStoreServerAdapterImpl) list(req common.ListRequest, store store.IStore) ([]common.Key, error) {
	var storePrefix string
	if req.EUID != nil {
		storePrefix = common.KeyPrefix(*req.EUID, req.Prefix)
	} else {
		storePrefix = fmt.Sprintf("v=%d,", common.KeyVersion)
	}

	stored, err := store.Keys(storePrefix)
	if err != nil {
		return nil, err
	}

	keys := make([]common.Key, 0, len(stored))
	for _, text := range stored {
		key, err := common.ParseKey(text)
		if err != nil {
			Logger.Warningf("Skipping unparsable stored key %q: %v", text, err)
			continue
		}
		if !strings.HasPrefix(key.UserKey, req.Prefix) {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}
