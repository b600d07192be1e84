// Package tcp implements the TCP socket transport of the storage service on
// top of the base package, which provides framing, connection pooling and
// request correlation.
//
// TCP peers cannot be identified, the caller EUID declared in the frames is
// trusted. Use the unix transport where callers must not be able to claim
// another identity.
//
// The server applies the socket settings of common.ServerTransportConfig
// (no delay, keep alive, linger, buffer sizes) to every accepted connection.
// Pooled request buffers are 512 KB.
package tcp
