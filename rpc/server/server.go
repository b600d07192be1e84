package server

import (
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ValentinKolb/secstore/lib/db"
	"github.com/ValentinKolb/secstore/lib/db/engines/oak"
	"github.com/ValentinKolb/secstore/lib/db/engines/ring"
	"github.com/ValentinKolb/secstore/lib/store"
	"github.com/ValentinKolb/secstore/lib/store/dstore"
	"github.com/ValentinKolb/secstore/lib/store/lstore"
	"github.com/ValentinKolb/secstore/rpc/common"
	"github.com/ValentinKolb/secstore/rpc/serializer"
	"github.com/ValentinKolb/secstore/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		unix.NewUnixDefaultServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		domains:    xsync.NewMapOf[uuid.UUID, *Dispatcher](),
	}
}

// RPCServer hosts one store instance per configured storage domain and
// routes requests to them by domain identifier.
type RPCServer struct {
	config        common.ServerConfig
	transport     transport.IRPCServerTransport
	serializer    serializer.IRPCSerializer
	domains       *xsync.MapOf[uuid.UUID, *Dispatcher]
	nodeHost      *dragonboat.NodeHost
	metricsServer *http.Server
}

// Serve initializes the domains and blocks serving the transport until Close is called
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}

	if s.config.MetricsEndpoint != "" {
		s.serveMetrics()
	}

	return s.transport.Listen(s.config)
}

// Close stops the transport, the metrics endpoint and raft
func (s *RPCServer) Close() error {
	var errs []error
	if err := s.transport.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close transport: %w", err))
	}
	if s.metricsServer != nil {
		if err := s.metricsServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close metrics endpoint: %w", err))
		}
	}
	if s.nodeHost != nil {
		s.nodeHost.Close()
	}
	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Setup
// --------------------------------------------------------------------------

func (s *RPCServer) init() error {
	if err := common.ValidateDomains(); err != nil {
		return fmt.Errorf("invalid domain registry: %w", err)
	}
	if len(s.config.Domains) == 0 {
		return fmt.Errorf("no storage domains configured")
	}

	Logger.Infof("Starting secstore %s", s.config.Version)
	Logger.Infof("%s", s.config.String())

	// Only create the NodeHost if there are replicated domains
	if s.config.HasReplicatedDomain() {
		nodeHost, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.nodeHost = nodeHost
	}

	timeout := time.Duration(s.config.TimeoutSecond) * time.Second
	adapter := NewIStoreServerAdapter(s.config.Version)

	for _, domainConfig := range s.config.Domains {
		id, err := domainConfig.Domain.UUID()
		if err != nil {
			return err
		}
		if _, exists := s.domains.Load(id); exists {
			return fmt.Errorf("storage domain %s is configured more than once", domainConfig.Domain)
		}

		var domainStore store.IStore
		switch domainConfig.Type {
		case common.DomainTypeLocal:
			factory, err := s.localDBFactory(domainConfig.Domain)
			if err != nil {
				return err
			}
			domainStore = lstore.NewLocalStore(factory)

		case common.DomainTypeReplicated:
			// raft snapshots need Save/Load, only oak provides them
			factory := func() db.KVDB { return oak.NewOakDB(nil) }
			if err := s.nodeHost.StartConcurrentReplica(
				s.config.ClusterMembers, false,
				dstore.CreateStateMaschineFactory(factory),
				s.config.ToDragonboatConfig(domainConfig.ShardID()),
			); err != nil {
				return fmt.Errorf("failed to start raft shard %d for domain %s: %w", domainConfig.ShardID(), domainConfig.Domain, err)
			}
			domainStore = dstore.NewDistributedStore(s.nodeHost, domainConfig.ShardID(), timeout)

		default:
			return fmt.Errorf("invalid store type %q for domain %s", domainConfig.Type, domainConfig.Domain)
		}

		s.domains.Store(id, NewDispatcher(domainConfig.Domain, domainStore, adapter, s.serializer))
		Logger.Infof("Serving domain %s (%s) from %s store", domainConfig.Domain, id, domainConfig.Type)
	}

	s.registerTransportHandler()
	return nil
}

// localDBFactory returns the factory of the engine backing a local domain.
// Keyrings are opened here, so configuration errors surface on startup.
func (s *RPCServer) localDBFactory(domain common.StorageDomain) (store.DBFactory, error) {
	switch s.config.Engine {
	case common.EngineOak, "":
		return func() db.KVDB { return oak.NewOakDB(nil) }, nil

	case common.EngineRing:
		database, err := ring.NewRingDB(ring.DBOptions{
			ServiceName:  "secstore-" + domain.String(),
			FileDir:      filepath.Join(s.config.KeyringDir, domain.String()),
			FilePassword: s.config.KeyringPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open keyring of domain %s: %w", domain, err)
		}
		return func() db.KVDB { return database }, nil

	default:
		return nil, fmt.Errorf("unknown engine %q", s.config.Engine)
	}
}

func (s *RPCServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(call transport.CallInfo, req []byte, out []byte) int {
		dispatcher, ok := s.domains.Load(call.Domain)
		if !ok {
			return encodeError(s.serializer, call.Command, fmt.Errorf("storage domain %s not served", call.Domain), out)
		}
		return dispatcher.Dispatch(call.EUID, call.Command, req, out)
	})
}

func (s *RPCServer) serveMetrics() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	s.metricsServer = &http.Server{Addr: s.config.MetricsEndpoint, Handler: mux}

	go func() {
		Logger.Infof("Serving metrics on %s/metrics", s.config.MetricsEndpoint)
		if err := s.metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("Metrics endpoint failed: %v", err)
		}
	}()
}
