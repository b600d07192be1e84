// Package common provides the protocol types shared by the storage service
// and its callers: command ids, the wire message, typed requests and
// responses, the caller scoped key grammar and the storage domain registry.
// It also holds the client and server configuration and the logger setup.
//
// Key Components:
//
//   - Key: addresses a value as (euid, user key). The canonical text form
//     "v=1,euid=0x<HEX>/<user_key>" is produced by Key.String and read by
//     ParseKey. Parse failures are *ParseKeyError and match ErrInvalidSyntax
//     or ErrUnsupportedVersion with errors.Is.
//
//   - CommandID: append-only numeric command ids (Put=1, Get=2, Version=3,
//     List=4). Each id knows the maximum size of its serialized response.
//
//   - Request / Response: closed sets of typed requests and responses. They
//     convert to and from Message, the flat structure every serializer
//     encodes. The Cmd field makes each encoded message self-describing.
//
//   - StorageDomain: closed set of isolated namespaces, each identified by
//     a uuid embedded at build time and checked by ValidateDomains.
//
//   - ServerConfig / ClientConfig: configuration including the Dragonboat
//     parameters for replicated domains.
//
//   - Logger: a Dragonboat logger factory writing through logrus so that raft
//     internals and secstore packages share one format.
package common
