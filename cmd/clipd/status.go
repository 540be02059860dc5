package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipd/internal/grpcservice"
	"go.klb.dev/clipd/internal/store"
)

func newStatusCmd() *cobra.Command {
	cmd := clientCommand("status", "Show transport state and the current clip",
		`Displays whether the server shares clips with other devices, through which
plugin, and the metadata of the clip of --user. Content is never printed.

If a local server is running, the request is sent over the IPC socket. Pass
--server to target a specific server over TCP.`,
		cobra.NoArgs, runStatus)

	cmd.Flags().Bool("json", false, "output raw JSON")
	addClientFlags(cmd)
	return cmd
}

func runStatus(cmd *cobra.Command, v *viper.Viper, c *grpcservice.Client, _ []string) error {
	st, err := c.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if v.GetBool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	printStatus(os.Stdout, st, c.Target(), time.Now())
	return nil
}

func printStatus(out io.Writer, st store.Status, target string, now time.Time) {
	w := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Server:\t%s\n", target)
	fmt.Fprintf(w, "Device:\t%s\n", st.Device)
	if st.Distributed {
		fmt.Fprintf(w, "Distributed:\tyes (%s)\n", st.Plugin)
	} else {
		fmt.Fprintf(w, "Distributed:\tno\n")
	}
	fmt.Fprintln(w)

	if !st.HasClip {
		fmt.Fprintf(w, "Clipboard:\tempty\n")
		_ = w.Flush()
		return
	}
	origin := "local"
	if st.Remote {
		origin = "remote (" + st.Origin + ")"
	}
	fmt.Fprintf(w, "Owner:\t%s\n", st.Owner)
	fmt.Fprintf(w, "Scope:\t%s\n", st.Scope)
	fmt.Fprintf(w, "Origin:\t%s\n", origin)
	fmt.Fprintf(w, "Types:\t%s\n", strings.Join(st.Types, ", "))
	fmt.Fprintf(w, "Updated:\t%s\n", fmtAge(st.Updated, now))
	_ = w.Flush()
}

func fmtAge(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	age := now.Sub(t).Round(time.Second)
	if age < time.Minute {
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	}
	if age < time.Hour {
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	}
	return t.Format("15:04:05")
}
