package internal

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTGet       QueryType = iota // Retrieve an entry by key.
	QueryTKeys                       // List keys by prefix.
	QueryTGetDBInfo                  // Retrieve metadata about the database underlying the machine.
)

func (q QueryType) String() string {
	switch q {
	case QueryTGet:
		return "Get"
	case QueryTKeys:
		return "Keys"
	case QueryTGetDBInfo:
		return "GetDBInfo"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via SyncRead or ReadStale
type Query struct {
	Type QueryType // The type of Query to perform.
	Key  string    // The key (Get) or prefix (Keys) of the Query.
}

// QueryResult is the result of a QueryTGet operation.
// Keys returns []string and GetDBInfo a db.DatabaseInfo.
type QueryResult struct {
	Ok    bool
	Value []byte
}
