//go:build darwin || windows || linux

package sysclip

import (
	"fmt"

	"golang.design/x/clipboard"
)

// readItems and writeItems are shared by the golang.design backends.
func readItems() []Item {
	var items []Item
	if text := clipboard.Read(clipboard.FmtText); text != nil {
		items = append(items, Item{Mime: MimeText, Data: text})
	}
	if img := clipboard.Read(clipboard.FmtImage); img != nil {
		items = append(items, Item{Mime: MimePNG, Data: img})
	}
	return items
}

func writeItems(items []Item) error {
	for _, it := range items {
		switch it.Mime {
		case MimeText:
			clipboard.Write(clipboard.FmtText, it.Data)
		case MimePNG:
			clipboard.Write(clipboard.FmtImage, it.Data)
		default:
			return fmt.Errorf("unsupported MIME type: %s", it.Mime)
		}
	}
	return nil
}

// notify performs a non-blocking send on a 1-slot watch channel.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
