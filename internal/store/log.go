package store

import (
	"context"
	"log/slog"

	"go.klb.dev/clipd/internal/clip"
)

// logClip logs a clip event at INFO (user, bundle, scope, mime types) and at
// DEBUG one line per record with a short text preview or a byte count.
func logClip(event string, user int32, bundle string, d *clip.Data) {
	slog.Info(event,
		"user", user,
		"bundle", bundle,
		"scope", d.Props.Scope,
		"types", d.MimeTypes(),
	)

	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	for i, r := range d.Records() {
		if text := r.ConvertToText(); text != "" {
			preview := []rune(text)
			if len(preview) > 120 {
				preview = append(preview[:120], '…')
			}
			slog.Debug("clip record", "index", i, "mime", r.MimeType(), "preview", string(preview))
			continue
		}
		slog.Debug("clip record", "index", i, "mime", r.MimeType(), "size_bytes", r.Count())
	}
}
