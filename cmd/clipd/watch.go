package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipd/internal/grpcservice"
)

func newWatchCmd() *cobra.Command {
	cmd := clientCommand("watch", "Print clipboard events of --user as they happen",
		`Streams one line per event (changed, read, cleared, remote) until
interrupted. Use "clipd paste" to fetch the content.`,
		cobra.NoArgs, runWatch)
	addClientFlags(cmd)
	return cmd
}

func runWatch(cmd *cobra.Command, _ *viper.Viper, c *grpcservice.Client, _ []string) error {
	return c.Watch(cmd.Context(), func(ev grpcservice.WatchEvent) {
		fmt.Println(formatEvent(ev))
	})
}

func formatEvent(ev grpcservice.WatchEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-7s user=%d bundle=%s",
		ev.Time.Format("15:04:05.000"), ev.Kind, ev.User, ev.Bundle)
	if ev.Scope != "" {
		fmt.Fprintf(&b, " scope=%s remote=%t", ev.Scope, ev.Remote)
	}
	if len(ev.Types) > 0 {
		fmt.Fprintf(&b, " types=%s", strings.Join(ev.Types, ","))
	}
	return b.String()
}
