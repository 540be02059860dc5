package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipd/internal/grpcservice"
)

func newClearCmd() *cobra.Command {
	cmd := clientCommand("clear", "Clear the clipboard of --user", "", cobra.NoArgs,
		func(cmd *cobra.Command, _ *viper.Viper, c *grpcservice.Client, _ []string) error {
			return c.Clear(cmd.Context())
		})
	addClientFlags(cmd)
	return cmd
}

func newSyncCmd() *cobra.Command {
	cmd := clientCommand("sync", "Adopt the newest clip from other devices now",
		`Asks the server to reconcile with the distributed transport. Prints
"adopted" when a remote clip replaced the local one. Fails when the server
runs without --distributed.`,
		cobra.NoArgs,
		func(cmd *cobra.Command, _ *viper.Viper, c *grpcservice.Client, _ []string) error {
			adopted, err := c.Sync(cmd.Context())
			if err != nil {
				return err
			}
			if adopted {
				fmt.Println("adopted")
			} else {
				fmt.Println("up to date")
			}
			return nil
		})
	addClientFlags(cmd)
	return cmd
}

func newDismissCmd() *cobra.Command {
	cmd := clientCommand("dismiss", "Cancel the pending paste of --user and --bundle",
		`Closes the "paste is taking longer than expected" prompt of a slow paste.
The waiting paste then fails with not found.`,
		cobra.NoArgs,
		func(cmd *cobra.Command, _ *viper.Viper, c *grpcservice.Client, _ []string) error {
			ok, err := c.Dismiss(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no pending paste")
			}
			return nil
		})
	addClientFlags(cmd)
	return cmd
}
