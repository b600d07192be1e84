// Package server implements the in-boundary side of secstore: it hosts one
// store instance per configured storage domain and answers the requests the
// transport hands to it.
//
// Every request passes through the Dispatcher of its domain:
//
//  1. DecodeRequest decodes the payload and rejects it if the decoded variant
//     does not match the command id of the frame (common.ErrCommandMismatch).
//  2. Handle executes the request through an IRPCServerAdapter. The storage
//     adapter namespaces every key with the EUID of the caller, so the stored
//     key of user key "home" sent by EUID 1000 is "v=1,euid=0x3E8/home".
//  3. EncodeResponse encodes the response, bounded by the maximum response
//     size of the command.
//
// Failures in any step are answered with an error response (Message.Err set),
// which clients decode as *common.RemoteError. Requests for a domain that is
// not served are rejected the same way.
//
// Domains are backed either by a local store (lstore) over the oak or ring
// engine, or by a raft replicated store (dstore) over oak. Request counts,
// errors, latencies and response sizes are exported per domain and command
// via github.com/VictoriaMetrics/metrics, see ServerConfig.MetricsEndpoint.
//
// Usage:
//
//	s := server.NewRPCServer(config, unix.NewUnixDefaultServerTransport(), serializer.NewJSONSerializer())
//	go func() {
//		<-stop
//		s.Close()
//	}()
//	if err := s.Serve(); err != nil {
//		log.Fatal(err)
//	}
package server
