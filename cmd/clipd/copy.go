package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipd/internal/clip"
	"go.klb.dev/clipd/internal/grpcservice"
)

func newCopyCmd() *cobra.Command {
	cmd := clientCommand("copy [FILE...]",
		"Copy stdin or files to the clipboard (like pbcopy)",
		`Reads stdin and stores it as the clip of --user. With FILE arguments each
file becomes a file uri record instead; the server receives a handle for it
and exposes it under the share root.`,
		cobra.ArbitraryArgs, runCopy)

	f := cmd.Flags()
	f.String("mime", clip.MimePlain, "MIME type of stdin")
	f.String("scope", clip.ScopeCrossDevice.String(), "who may paste: in-app|local-device|cross-device")
	f.String("tag", "", "free-form tag stored with the clip")
	addClientFlags(cmd)
	return cmd
}

func runCopy(cmd *cobra.Command, v *viper.Viper, c *grpcservice.Client, args []string) error {
	scope, err := clip.ParseScope(v.GetString("scope"))
	if err != nil {
		return err
	}

	var d *clip.Data
	if len(args) > 0 {
		d, err = fileData(args)
	} else {
		d, err = stdinData(v.GetString("mime"))
	}
	if err != nil {
		return err
	}
	if d == nil {
		return nil
	}
	d.Props.Scope = scope
	d.Props.Tag = v.GetString("tag")
	return c.SetClip(cmd.Context(), d)
}

func stdinData(mime string) (*clip.Data, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	r, err := clip.NewRecord(mime, data)
	if err != nil {
		return nil, err
	}
	return clip.NewData(r), nil
}

func fileData(paths []string) (*clip.Data, error) {
	records := make([]*clip.Record, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		records = append(records, clip.NewURI("file://"+filepath.ToSlash(abs)))
	}
	return clip.NewData(records...), nil
}
