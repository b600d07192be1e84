package storage

import (
	"fmt"

	"github.com/ValentinKolb/secstore/cmd/util"
	"github.com/spf13/cobra"
)

var (
	putCmd = &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Stores the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prev, replaced, err := rpcStorage.Put(args[0], []byte(args[1]))
			if err != nil {
				return err
			}
			if replaced {
				fmt.Printf("replaced previous value: %s\n", prev)
			} else {
				fmt.Println("stored successfully")
			}
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Gets the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, found, err := rpcStorage.Get(args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("key %q not found", args[0])
			}
			fmt.Println(string(value))
			return nil
		},
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists the stored keys in canonical form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, _ := cmd.Flags().GetString("prefix")
			owner, _ := cmd.Flags().GetString("owner")

			var euid *uint32
			if owner != "" {
				parsed, err := util.ParseEUID(owner)
				if err != nil {
					return err
				}
				euid = &parsed
			}

			keys, err := rpcStorage.List(euid, prefix)
			if err != nil {
				return err
			}
			for _, key := range keys {
				fmt.Println(key)
			}
			return nil
		},
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Prints the version of the storage service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := rpcStorage.Version()
			if err != nil {
				return err
			}
			fmt.Println(version)
			return nil
		},
	}
)

func init() {
	listCmd.Flags().String("prefix", "", util.WrapString("Only list keys whose user key starts with prefix"))
	listCmd.Flags().String("owner", "", util.WrapString("Only list keys of this euid (decimal or 0x hex), all callers if empty"))
}
