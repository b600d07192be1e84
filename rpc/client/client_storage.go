package client

import (
	"fmt"

	"github.com/ValentinKolb/secstore/rpc/common"
	"github.com/ValentinKolb/secstore/rpc/serializer"
	"github.com/ValentinKolb/secstore/rpc/transport"
)

// NewRPCStorage connects the transport and returns a client of the given
// storage domain. All requests carry config.EUID as caller identity.
func NewRPCStorage(
	domain common.StorageDomain,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*RPCStorage, error) {
	id, err := domain.UUID()
	if err != nil {
		return nil, err
	}

	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &RPCStorage{
		rpcClientAdapter{
			domain:     id,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

// RPCStorage is the untrusted side of a storage domain. It is safe for
// concurrent use.
type RPCStorage struct {
	rpcClientAdapter
}

// Put stores val under key and returns the value it replaced.
func (s *RPCStorage) Put(key string, val []byte) (prev []byte, replaced bool, err error) {
	resp, err := invoke[common.PutResponse](s, common.PutRequest{Key: key, Val: val})
	if err != nil {
		return nil, false, err
	}
	return resp.PrevVal, resp.Replaced, nil
}

// Get returns the value stored under key.
func (s *RPCStorage) Get(key string) (val []byte, found bool, err error) {
	resp, err := invoke[common.GetResponse](s, common.GetRequest{Key: key})
	if err != nil {
		return nil, false, err
	}
	return resp.Val, resp.Found, nil
}

// List returns the stored keys in ascending order. A nil euid lists the keys
// of all callers, an empty prefix does not filter by user key.
func (s *RPCStorage) List(euid *uint32, prefix string) ([]common.Key, error) {
	resp, err := invoke[common.ListResponse](s, common.ListRequest{EUID: euid, Prefix: prefix})
	if err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

// Version returns the version of the storage service.
func (s *RPCStorage) Version() (string, error) {
	resp, err := invoke[common.VersionResponse](s, common.VersionRequest{})
	if err != nil {
		return "", err
	}
	return resp.Version, nil
}

// Invoke sends an arbitrary request and returns the matching response variant.
func (s *RPCStorage) Invoke(req common.Request) (common.Response, error) {
	return s.invokeRPCRequest(req)
}

// Close closes the underlying transport
func (s *RPCStorage) Close() error {
	return s.transport.Close()
}

func invoke[R common.Response](s *RPCStorage, req common.Request) (R, error) {
	var zero R
	resp, err := s.invokeRPCRequest(req)
	if err != nil {
		return zero, err
	}
	typed, ok := resp.(R)
	if !ok {
		return zero, fmt.Errorf("%w: expected %T, got %T", common.ErrCommandMismatch, zero, resp)
	}
	return typed, nil
}
