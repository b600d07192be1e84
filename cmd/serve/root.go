package serve

import (
	"fmt"
	"hash/fnv"
	"os"
	"os/signal"
	"strings"
	"syscall"

	cmdUtil "github.com/ValentinKolb/secstore/cmd/util"
	"github.com/ValentinKolb/secstore/rpc/common"
	"github.com/ValentinKolb/secstore/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the secstore server",
		Long:    `Start the secstore server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is SECSTORE_<flag> (e.g. SECSTORE_KEYRING_DIR=/var/lib/secstore)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)

	key := "domains"
	ServeCmd.PersistentFlags().String(key, common.DomainWifiProfiles.String()+"=lstore", cmdUtil.WrapString("Comma-separated list of storage domains to serve. Format: DOMAIN=TYPE where TYPE is one of: lstore, dstore"))

	key = "engine"
	ServeCmd.PersistentFlags().String(key, common.EngineOak, cmdUtil.WrapString("Engine backing lstore domains: oak (in memory) or ring (encrypted file keyring). dstore domains always use oak"))

	key = "keyring-dir"
	ServeCmd.PersistentFlags().String(key, "keyring", cmdUtil.WrapString("(ring engine) Directory of the file keyrings, one subdirectory per domain"))

	key = "keyring-password"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(ring engine) Password encrypting the file keyrings. Prefer SECSTORE_KEYRING_PASSWORD"))

	key = "rtt-millisecond"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("(dstore) RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two NodeHost instances. Election and heartbeat timing is derived from this value"))

	key = "snapshot-entries"
	ServeCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("(dstore) SnapshotEntries defines how often the state machine should be snapshotted automatically, in applied raft log entries. 0 disables automatic snapshots (not recommended)"))

	key = "compaction-overhead"
	ServeCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("(dstore) CompactionOverhead defines the number of log entries kept after a snapshot. Recommended value is about 1/2 of SnapshotEntries"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("(dstore) DataDir is the directory used for the raft log and snapshots"))

	key = "replica-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(dstore) ReplicaID is the unique name of this NodeHost instance (e.g. 'node-1')"))

	key = "cluster-members"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(dstore) ClusterMembers is a comma-separated list of NodeHost addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for raft operations and connection writes"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, cmdUtil.DefaultSocket, cmdUtil.WrapString("The address on which the API will listen (e.g. /run/secstore.sock, localhost:8080, ...)"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 16, cmdUtil.WrapString("Maximum number of requests processed concurrently per connection (unix and tcp)"))

	key = "transport-tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY (tcp only)"))

	key = "transport-tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval in seconds (tcp only)"))

	key = "transport-tcp-linger"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The linger time in seconds (tcp only)"))

	key = "transport-write-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the socket write buffer in KB (tcp only)"))

	key = "transport-read-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the socket read buffer in KB (tcp only)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the prometheus endpoint (e.g. localhost:9100), disabled if empty. The http transport always serves /metrics"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	domains, err := parseDomains(viper.GetString("domains"))
	if err != nil {
		return err
	}
	serveCmdConfig.Domains = domains

	serveCmdConfig.Engine = viper.GetString("engine")
	serveCmdConfig.KeyringDir = viper.GetString("keyring-dir")
	serveCmdConfig.KeyringPassword = viper.GetString("keyring-password")
	serveCmdConfig.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	serveCmdConfig.SnapshotEntries = viper.GetUint64("snapshot-entries")
	serveCmdConfig.CompactionOverhead = viper.GetUint64("compaction-overhead")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint:        viper.GetString("endpoint"),
		WorkersPerConn:  viper.GetInt("workers-per-conn"),
		TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
		TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
		TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
		WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
		ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
	}

	if serveCmdConfig.Engine == common.EngineRing && serveCmdConfig.KeyringPassword == "" {
		return fmt.Errorf("the ring engine requires a keyring password")
	}

	if !serveCmdConfig.HasReplicatedDomain() {
		return nil
	}

	// raft settings are required only for replicated domains
	id := viper.GetString("replica-id")
	if id == "" {
		return fmt.Errorf("ReplicaID is required for dstore domains")
	}
	serveCmdConfig.ReplicaID = replicaID(id)

	members, err := parseClusterMembers(viper.GetString("cluster-members"))
	if err != nil {
		return err
	}
	if _, ok := members[serveCmdConfig.ReplicaID]; !ok {
		return fmt.Errorf("no address found for replica %s in cluster members", id)
	}
	serveCmdConfig.ClusterMembers = members

	return nil
}

// parseDomains parses the DOMAIN=TYPE list of the domains flag
func parseDomains(value string) ([]common.ServerDomain, error) {
	var domains []common.ServerDomain
	for _, entry := range strings.Split(value, ",") {
		name, domainType, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid domain format: %s (expected DOMAIN=TYPE)", entry)
		}

		domain, err := common.ParseStorageDomain(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}

		serverDomainType := common.ServerDomainType(strings.TrimSpace(domainType))
		switch serverDomainType {
		case common.DomainTypeLocal, common.DomainTypeReplicated:
		default:
			return nil, fmt.Errorf("invalid domain type: %s (expected one of: lstore, dstore)", domainType)
		}

		domains = append(domains, common.ServerDomain{Domain: domain, Type: serverDomainType})
	}
	return domains, nil
}

// parseClusterMembers parses the NAME=ADDRESS list of the cluster-members flag
func parseClusterMembers(value string) (map[uint64]string, error) {
	if value == "" {
		return nil, fmt.Errorf("ClusterMembers is required for dstore domains")
	}

	members := make(map[uint64]string)
	for _, member := range strings.Split(value, ",") {
		name, address, ok := strings.Cut(member, "=")
		if !ok || name == "" || address == "" {
			return nil, fmt.Errorf("invalid cluster member format: %s (expected NAME=ADDRESS)", member)
		}
		id := replicaID(name)
		if _, dup := members[id]; dup {
			return nil, fmt.Errorf("duplicate cluster member %s", name)
		}
		members[id] = address
	}
	return members, nil
}

// replicaID maps a replica name to its numeric raft id (FNV-1a). Raft
// reserves 0, so it is never returned.
func replicaID(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	if id := h.Sum64(); id != 0 {
		return id
	}
	return 1
}

// run starts the secstore server and stops it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(serveCmdConfig.LogLevel); err != nil {
		return err
	}

	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serveCmdConfig.Version = cmdUtil.Version
	serv := server.NewRPCServer(*serveCmdConfig, t, s)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		server.Logger.Infof("Received %s, shutting down", sig)
		if err := serv.Close(); err != nil {
			server.Logger.Errorf("Shutdown failed: %v", err)
		}
	}()

	return serv.Serve()
}
