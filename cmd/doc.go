// Package cmd implements the command-line interface of secstore.
//
// The package is organized into several subpackages:
//
//   - serve: Starts the server for the configured storage domains
//   - storage: Client commands (put, get, list, version, perf) for one storage domain
//   - util: Shared utilities for flags and configuration (internal use)
//
// Every flag can also be set as environment variable SECSTORE_<FLAG> (dashes
// become underscores), optionally loaded from .env or .env.local.
//
// See secstore --help for a list of all commands.
package cmd
