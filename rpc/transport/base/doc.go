// Package base implements the framed request/response transport shared by the
// tcp and unix transports. The medium specific parts (dialing, listening,
// socket options, peer credentials) are injected via IClientConnector and
// IServerConnector.
//
// Every message is one frame: a 36 byte header followed by the payload.
//
//	offset  size  field
//	0       16    storage domain UUID
//	16      8     request ID
//	24      4     command ID
//	28      4     caller EUID
//	32      4     payload length
//
// All integers are big endian. A response echoes the header of its request
// with the payload length replaced. Frames larger than transport.MaxFrameSize
// are rejected and terminate the connection.
//
// Client side, requests are multiplexed over a fixed number of connections per
// endpoint (round-robin). A reader goroutine per connection correlates
// responses via the request ID and reads the payload directly into the buffer
// handed to Send. If the answer does not fit, Send returns
// common.ErrBufferTooSmall and the payload is discarded. Broken connections are
// re-established and their pending requests fail.
//
// Server side, each accepted connection gets its own reader goroutine and a
// bounded pool of workers (ServerTransportConfig.WorkersPerConn). If the
// connector can identify the peer process (unix sockets), its EUID replaces
// the one declared in the frame header.
package base
