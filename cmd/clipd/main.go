// clipd: distributed clipboard service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "clipd",
		Short: "Distributed clipboard service",
		Long: `clipd keeps one clipboard per user and shares cross-device clips with the
user's other devices through a pluggable transport (relay, shared directory,
bolt file or S3 bucket).

Run "clipd server" on each device. Use "clipd copy/paste/clear/watch" as CLI
tools; they talk to the local server over its IPC socket.

Config file search order (first found wins):
  /etc/clipd/clipd.toml
  $HOME/.config/clipd/clipd.toml
  path supplied via --config

All flags can be set via CLIPD_<FLAG> env vars or config-file keys.
See "clipd server --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServerCmd(),
		newCopyCmd(),
		newPasteCmd(),
		newClearCmd(),
		newSyncCmd(),
		newDismissCmd(),
		newWatchCmd(),
		newDumpCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("clipd %s\n", Version)
		},
	}
}
