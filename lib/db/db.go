package db

import "io"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplOak  Implementation = "oak"
	ImplRing Implementation = "ring"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeaturePut  Feature = 1 << iota // Support for Put operations
	FeatureGet                      // Support for Get operations
	FeatureKeys                     // Support for ordered key enumeration
	FeatureSave                     // Support for Save operations
	FeatureLoad                     // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeaturePut:
		return "Put"
	case FeatureGet:
		return "Get"
	case FeatureKeys:
		return "Keys"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for key-value database implementations backing a
// storage domain. Keys are opaque strings to the database; values are copied
// on the way in and on the way out.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Put inserts or replaces the value stored under key and returns the
	// previous value. replaced is false if the key did not exist before.
	// The writeIndex parameter is used as a logical timestamp for the entry.
	Put(key string, value []byte, writeIndex uint64) (prev []byte, replaced bool, err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	Get(key string) (value []byte, loaded bool, err error)

	// Keys returns all keys starting with prefix in ascending byte order.
	Keys(prefix string) (keys []string, err error)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load restores the database state data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// --------------------------------------------------------------------------
	// Write Index Operations
	// --------------------------------------------------------------------------

	// SetWriteIdx sets the current index of the database only if the provided index is greater than the current index.
	SetWriteIdx(index uint64)

	// WriteIdx returns the current index of the database.
	WriteIdx() (index uint64)

	// Close closes the database.
	Close() (err error)
}
