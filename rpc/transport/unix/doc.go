// Package unix implements the Unix domain socket transport of the storage
// service on top of the base package. It is the transport for callers on the
// same machine.
//
// On linux the server ignores the caller EUID declared in the frames and uses
// the credentials of the connecting process (SO_PEERCRED) instead, so a
// caller cannot read or write the keys of another user. Other platforms fall
// back to the declared EUID.
//
// The socket file is recreated on startup and made accessible to all local
// users. Pooled request buffers are 64 KB by default.
package unix
