package util

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ValentinKolb/secstore/rpc/common"
	"github.com/ValentinKolb/secstore/rpc/serializer"
	"github.com/ValentinKolb/secstore/rpc/transport"
	"github.com/ValentinKolb/secstore/rpc/transport/http"
	"github.com/ValentinKolb/secstore/rpc/transport/tcp"
	"github.com/ValentinKolb/secstore/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix prefixes all environment variables (SECSTORE_<FLAG>)
	EnvPrefix = "secstore"

	// DefaultSocket is the default endpoint of the unix transport
	DefaultSocket = "/tmp/secstore.sock"
)

// Version is reported by the version command and the Version request.
// Release builds set it with -ldflags "-X github.com/ValentinKolb/secstore/cmd/util.Version=<version>".
var Version = "0.1.0-dev"

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder

	for _, word := range strings.Fields(text) {
		if currentLine.Len() > 0 && currentLine.Len()+1+len(word) > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
		}
		if currentLine.Len() > 0 {
			currentLine.WriteByte(' ')
		}
		currentLine.WriteString(word)
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and makes viper read SECSTORE_* environment variables
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, DefaultSocket, WrapString("The address of the secstore server. For transports that support load balancing, multiple endpoints can be specified as a comma-separated list"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint - for transports that support this feature"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry the request"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (tcp only)"))

	key = "euid"
	cmd.PersistentFlags().String(key, strconv.Itoa(os.Geteuid()), WrapString("The caller identity sent with every request (decimal or 0x hex). Unix socket servers on linux use the peer credentials instead"))

	key = "domain"
	cmd.PersistentFlags().String(key, common.DomainWifiProfiles.String(), WrapString("The storage domain to address (see 'secstore domains')"))
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() (*common.ClientConfig, error) {
	euid, err := ParseEUID(viper.GetString("euid"))
	if err != nil {
		return nil, err
	}

	return &common.ClientConfig{
		TimeoutSecond: viper.GetInt("timeout"),
		EUID:          euid,
		Transport: common.ClientTransportConfig{
			Endpoints:              strings.Split(viper.GetString("transport-endpoints"), ","),
			RetryCount:             viper.GetInt("transport-retries"),
			ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
			TCPNoDelay:             viper.GetBool("transport-tcp-nodelay"),
		},
	}, nil
}

// GetDomain returns the configured storage domain
func GetDomain() (common.StorageDomain, error) {
	return common.ParseStorageDomain(viper.GetString("domain"))
}

// ParseEUID parses a decimal or 0x prefixed hex user id
func ParseEUID(s string) (uint32, error) {
	euid, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid euid %q: %w", s, err)
	}
	return uint32(euid), nil
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetTransport creates the client transport based on configuration
func GetTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpClientTransport(), nil
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetServerTransport creates the server transport based on configuration
func GetServerTransport() (transport.IRPCServerTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpServerTransport(), nil
	case "tcp":
		return tcp.NewTCPServerTransport(), nil
	case "unix":
		return unix.NewUnixDefaultServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}
