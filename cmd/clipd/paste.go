package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipd/internal/clip"
	"go.klb.dev/clipd/internal/grpcservice"
)

func newPasteCmd() *cobra.Command {
	cmd := clientCommand("paste",
		"Print the clipboard to stdout (like pbpaste)",
		`Retrieves the clip of --user and writes the first record matching --mime
to stdout. If no record matches, nothing is printed (exit 0). text/plain
falls back to the text form of html and uri records.

  clipd paste --mime image/png > screenshot.png`,
		cobra.NoArgs, runPaste)

	cmd.Flags().String("mime", clip.MimePlain, "preferred MIME type to output")
	addClientFlags(cmd)
	return cmd
}

func runPaste(cmd *cobra.Command, v *viper.Viper, c *grpcservice.Client, _ []string) error {
	d, err := c.GetClip(cmd.Context())
	if err != nil {
		return fmt.Errorf("paste: %w", err)
	}
	out, ok := render(d, v.GetString("mime"))
	if !ok {
		return nil
	}
	_, err = os.Stdout.Write(out)
	return err
}

// render picks the bytes to print for mime.
func render(d *clip.Data, mime string) ([]byte, bool) {
	for _, r := range d.Records() {
		if r.MimeType() != mime {
			continue
		}
		switch p := r.Payload().(type) {
		case clip.HTML:
			return []byte(p), true
		case clip.PlainText:
			return []byte(p), true
		case clip.URI:
			if conv := r.ConvertedURI(); conv != "" {
				return []byte(conv + "\n"), true
			}
			return []byte(string(p) + "\n"), true
		case *clip.PixelMap:
			return p.Pixels, true
		case clip.CustomData:
			return p.Value, true
		}
	}
	if mime == clip.MimePlain {
		for _, r := range d.Records() {
			if text := r.ConvertToText(); text != "" {
				return []byte(text), true
			}
		}
	}
	return nil, false
}
