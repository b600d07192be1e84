package storage

import (
	"github.com/ValentinKolb/secstore/cmd/util"
	"github.com/ValentinKolb/secstore/rpc/client"
	"github.com/ValentinKolb/secstore/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rpcStorage *client.RPCStorage

	// StorageCommands represents the storage command group
	StorageCommands = &cobra.Command{
		Use:               "storage",
		Short:             "Perform operations on a storage domain",
		PersistentPreRunE: setupStorageClient,
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	util.SetupRPCClientFlags(StorageCommands)

	StorageCommands.AddCommand(putCmd)
	StorageCommands.AddCommand(getCmd)
	StorageCommands.AddCommand(listCmd)
	StorageCommands.AddCommand(versionCmd)
	StorageCommands.AddCommand(perfTestCmd)
}

// setupStorageClient initializes the RPC storage client
func setupStorageClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}

	domain, err := util.GetDomain()
	if err != nil {
		return err
	}

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	rpcStorage, err = client.NewRPCStorage(domain, *config, t, s)
	return err
}
