package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/secstore/cmd/serve"
	"github.com/ValentinKolb/secstore/cmd/storage"
	"github.com/ValentinKolb/secstore/cmd/util"
	"github.com/ValentinKolb/secstore/rpc/common"
	"github.com/spf13/cobra"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "secstore",
		Short: "caller-scoped secure storage service",
		Long: fmt.Sprintf(`secstore (v%s)

A storage service for secrets of untrusted callers. Every storage domain is
served by its own store instance and every key is namespaced by the
effective user id of the caller that wrote it.`, util.Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of secstore",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("secstore v%s\n", util.Version)
		},
	}
	domainsCmd = &cobra.Command{
		Use:   "domains",
		Short: "List the storage domains and their identifiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := common.ValidateDomains(); err != nil {
				return err
			}
			for _, domain := range common.Domains() {
				fmt.Printf("%-20s%s\n", domain, domain.AsUUID())
			}
			return nil
		},
	}
)

func init() {
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(storage.StorageCommands)
	RootCmd.AddCommand(domainsCmd)
	RootCmd.AddCommand(versionCmd)

	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "unix", util.WrapString("transport to use (unix, tcp, http)"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
