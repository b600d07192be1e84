// Package internal contains the messages exchanged between the dstore client
// and its raft state machine.
//
// Commands change the state and go through the raft log, so they have a
// binary encoding:
//
//	- 1 byte: Command type (Put)
//	- 4 bytes: Key length (uint32, big endian)
//	- N bytes: Key data
//	- M bytes: Value data (rest of the entry, may be empty)
//
// The result of a Put carries the previous value in the data of the raft
// result: 1 byte replaced flag followed by the previous value.
//
// Queries are executed locally on the state machine and are passed as Go
// values without serialization.
package internal
