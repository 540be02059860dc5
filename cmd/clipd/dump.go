package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipd/internal/grpcservice"
	"go.klb.dev/clipd/internal/store"
)

func newDumpCmd() *cobra.Command {
	cmd := clientCommand("dump", "Print server diagnostics",
		`Prints the most recent clipboard operations and/or the current clip of
every user. Only privileged users may dump.

  clipd dump --copy-history 20 --data`,
		cobra.NoArgs, runDump)

	f := cmd.Flags()
	f.Int("copy-history", 0, "number of recent operations to list")
	f.Bool("data", false, "list every user's current clip")
	addClientFlags(cmd)
	return cmd
}

func runDump(cmd *cobra.Command, v *viper.Viper, c *grpcservice.Client, _ []string) error {
	out, err := c.Dump(cmd.Context(), store.DumpOptions{
		CopyHistory: v.GetInt("copy-history"),
		Data:        v.GetBool("data"),
	})
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
