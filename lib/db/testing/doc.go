// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - RunKVDBTests: conformance suite for the KVDB contract (previous values on
//     Put, copy semantics, ordered prefix enumeration, write index rules,
//     snapshots and concurrent use)
//   - RunKVDBBenchmarks: throughput of the common database operations
//
// Tests for features an implementation does not advertise are skipped.
//
// Example usage:
//
//	factory := func() db.KVDB {
//		return NewMyDatabase()
//	}
//
//	dbtesting.RunKVDBTests(t, "MyDatabase", factory)
//	dbtesting.RunKVDBBenchmarks(b, "MyDatabase", factory)
package testing
