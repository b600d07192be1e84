// Package rpc is the service boundary of secstore. Callers run untrusted and
// talk to the storage server, which owns the data of every storage domain and
// derives the caller identity from the connection where the medium allows it.
//
// The package is organized into several subpackages:
//
//   - common: command ids, the wire Message, typed requests and responses,
//     the caller scoped Key grammar, storage domains, configuration and
//     logging.
//
//   - transport: moves serialized payloads between caller and server, routed
//     by domain UUID and command id (unix sockets, TCP, HTTP).
//
//   - serializer: Message encoding (JSON, binary, GOB) into bounded,
//     caller-owned buffers.
//
//   - client: RPCStorage, the caller side of one storage domain. It sizes
//     every receive buffer by the maximum response of the command.
//
//   - server: RPCServer and the per-domain Dispatcher that decodes requests,
//     applies them to the domain store and encodes size limited responses.
package rpc
