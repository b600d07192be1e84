package common

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/lni/dragonboat/v4/config"
)

// --------------------------------------------------------------------------
// helper functions for to interface with Dragonboat (for the server util)
// --------------------------------------------------------------------------

// Dragonboat uses RTT (Round Trip Time) to determine the timing of elections and heartbeats.
// These default values are selected according to the RAFT Paper
const (
	electionRTTFactor  = 10
	heartbeatRTTFactor = 1
)

// ToDragonboatConfig converts the ServerConfig to Dragonboat Config
func (c *ServerConfig) ToDragonboatConfig(shardID uint64) config.Config {
	return config.Config{
		ReplicaID:          c.ReplicaID,
		ShardID:            shardID,
		ElectionRTT:        electionRTTFactor,
		HeartbeatRTT:       heartbeatRTTFactor,
		CheckQuorum:        true,
		SnapshotEntries:    c.SnapshotEntries,
		CompactionOverhead: c.CompactionOverhead,
		MaxInMemLogSize:    0,
	}
}

// ToNodeHostConfig creates a NodeHostConfig for Dragonboat
func (c *ServerConfig) ToNodeHostConfig() config.NodeHostConfig {
	return config.NodeHostConfig{
		WALDir:         c.DataDir,
		NodeHostDir:    c.DataDir,
		RTTMillisecond: c.RTTMillisecond,
		RaftAddress:    c.ClusterMembers[c.ReplicaID],
	}
}

// --------------------------------------------------------------------------
// Server configuration
// --------------------------------------------------------------------------

// ServerDomainType selects the store implementation backing a domain
type ServerDomainType string

const (
	DomainTypeLocal      ServerDomainType = "lstore"
	DomainTypeReplicated ServerDomainType = "dstore"
)

// Engines that can back a local store
const (
	EngineOak  = "oak"
	EngineRing = "ring"
)

// ServerDomain configures the store instance of one storage domain
type ServerDomain struct {
	Domain StorageDomain
	Type   ServerDomainType
}

// ShardID returns the raft shard used when the domain is replicated
func (d ServerDomain) ShardID() uint64 {
	return uint64(d.Domain) + 1
}

// ServerTransportConfig holds the listener settings of the server transports
type ServerTransportConfig struct {
	Endpoint string

	// Socket settings (tcp only)
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
	WriteBufferSize int
	ReadBufferSize  int

	// Concurrency per connection (unix and tcp)
	WorkersPerConn int
}

// ServerConfig holds all configuration parameters of a storage server.
type ServerConfig struct {
	// Storage domains served by this process
	Domains []ServerDomain

	// Engine backing local stores
	Engine          string
	KeyringDir      string
	KeyringPassword string

	// Dragonboat parameters (replicated domains only)
	RTTMillisecond     uint64
	SnapshotEntries    uint64
	CompactionOverhead uint64
	DataDir            string
	ReplicaID          uint64
	ClusterMembers     map[uint64]string

	// Timeout for raft operations and connection deadlines
	TimeoutSecond int64

	// Transport settings
	Transport ServerTransportConfig

	// Prometheus endpoint, empty to disable
	MetricsEndpoint string

	// Version reported to clients
	Version string

	// Logging configuration
	LogLevel string
}

// HasReplicatedDomain checks if any domain is backed by a replicated store
func (c *ServerConfig) HasReplicatedDomain() bool {
	for _, d := range c.Domains {
		if d.Type == DomainTypeReplicated {
			return true
		}
	}
	return false
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Workers Per Conn", strconv.Itoa(c.Transport.WorkersPerConn))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Version", c.Version)
	if c.MetricsEndpoint != "" {
		addField("Metrics", c.MetricsEndpoint)
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	addSection("Domains")
	for _, d := range c.Domains {
		addField(d.Domain.String(), fmt.Sprintf("%s (%s)", d.Type, d.Domain.AsUUID()))
	}

	addSection("Storage")
	addField("Engine", c.Engine)
	if c.Engine == EngineRing {
		addField("Keyring Directory", c.KeyringDir)
	}

	if c.HasReplicatedDomain() {
		addSection("Node Identity")
		addField("RAFT Address", c.ClusterMembers[c.ReplicaID])
		addField("Node ID", strconv.FormatUint(c.ReplicaID, 10))

		addSection("RAFT Parameters")
		addField("Round Trip Time (ms)", fmt.Sprintf("%d ms", c.RTTMillisecond))
		addField("Election RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*electionRTTFactor))
		addField("Heartbeat RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*heartbeatRTTFactor))
		addField("Snapshot Entries", fmt.Sprintf("%d", c.SnapshotEntries))
		addField("Compaction Overhead", fmt.Sprintf("%d", c.CompactionOverhead))
		addField("Data Directory", c.DataDir)

		addSection("Cluster")
		var ids []uint64
		for k := range c.ClusterMembers {
			ids = append(ids, k)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			sb.WriteString(fmt.Sprintf("    Node %d: %s\n", id, c.ClusterMembers[id]))
		}
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration
// --------------------------------------------------------------------------

// ClientTransportConfig holds the connection settings of the client transports
type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int
	TCPNoDelay             bool
}

type ClientConfig struct {
	Transport     ClientTransportConfig
	TimeoutSecond int
	// EUID is the caller identity sent with every request. Unix socket
	// servers on linux replace it with the peer credentials of the connection.
	EUID uint32
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.Transport.ConnectionsPerEndpoint)))))
	addField("EUID", fmt.Sprintf("0x%X", c.EUID))

	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
