package server

import (
	"github.com/ValentinKolb/secstore/lib/store"
	"github.com/ValentinKolb/secstore/rpc/common"
)

// IRPCServerAdapter executes typed requests against the store of a domain.
type IRPCServerAdapter interface {
	// Handle executes req on behalf of the caller identified by euid and
	// returns the matching response variant. Failures of the store are
	// returned as error, the dispatcher turns them into error responses.
	Handle(euid uint32, req common.Request, store store.IStore) (common.Response, error)
}
