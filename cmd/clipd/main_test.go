package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/clipd/internal/clip"
	"go.klb.dev/clipd/internal/grpcservice"
	"go.klb.dev/clipd/internal/plugin"
	"go.klb.dev/clipd/internal/store"
)

func TestLoadComponents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clipd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
distributed = true
plugin = "team"

[[plugins]]
name = "team"
factory = "s3"
param = "s3://bucket/clips?region=eu-west-1"

[[plugins]]
name = "lan"
factory = "dir"
param = "/mnt/share/clipd"
`), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	comps, err := loadComponents(v)
	require.NoError(t, err)
	assert.Equal(t, []plugin.Component{
		{Name: "team", Factory: "s3", Param: "s3://bucket/clips?region=eu-west-1"},
		{Name: "lan", Factory: "dir", Param: "/mnt/share/clipd"},
	}, comps)
	assert.True(t, v.GetBool("distributed"))
}

func TestRender(t *testing.T) {
	html, err := clip.NewHTML("<b>hi</b>")
	require.NoError(t, err)
	uri := clip.NewURI("file:///tmp/a.txt")
	png := clip.NewKV("image/png", []byte{1, 2, 3})
	d := clip.NewData(html, uri, png)

	out, ok := render(d, "image/png")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, out)

	out, ok = render(d, clip.MimeURI)
	require.True(t, ok)
	assert.Equal(t, "file:///tmp/a.txt\n", string(out))

	out, ok = render(d, clip.MimePlain)
	require.True(t, ok, "text falls back to html")
	assert.Equal(t, "<b>hi</b>", string(out))

	_, ok = render(clip.NewData(png), "application/pdf")
	assert.False(t, ok)
}

func TestFormatEvent(t *testing.T) {
	ev := grpcservice.WatchEvent{
		Kind:   "changed",
		User:   100,
		Bundle: "editor",
		Time:   time.Date(2026, 1, 2, 3, 4, 5, 6e6, time.Local),
		Scope:  "cross-device",
		Types:  []string{"text/plain", "text/html"},
	}
	assert.Equal(t,
		"03:04:05.006 changed user=100 bundle=editor scope=cross-device remote=false types=text/plain,text/html",
		formatEvent(ev))

	assert.Equal(t, "03:04:05.006 cleared user=100 bundle=editor",
		formatEvent(grpcservice.WatchEvent{Kind: "cleared", User: 100, Bundle: "editor", Time: ev.Time}))
}

func TestFileData(t *testing.T) {
	d, err := fileData([]string{"/tmp/a", "/tmp/b"})
	require.NoError(t, err)
	require.Equal(t, 2, d.RecordCount())
	u, ok := d.PrimaryURI()
	require.True(t, ok)
	assert.Equal(t, "file:///tmp/a", u)
}

func TestPrintStatus(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	var b strings.Builder
	printStatus(&b, store.Status{
		Device:      "dev-a",
		Distributed: true,
		Plugin:      "relay",
		HasClip:     true,
		Owner:       "editor",
		Scope:       clip.ScopeCrossDevice,
		Remote:      true,
		Origin:      "dev-b",
		Types:       []string{"text/plain"},
		Updated:     now.Add(-90 * time.Second),
	}, "unix:///run/clipd.sock", now)

	out := b.String()
	assert.Contains(t, out, "Distributed:  yes (relay)")
	assert.Contains(t, out, "Origin:   remote (dev-b)")
	assert.Contains(t, out, "Updated:  1m ago")

	b.Reset()
	printStatus(&b, store.Status{Device: "dev-a"}, "localhost:8752", now)
	assert.Contains(t, b.String(), "Clipboard:  empty")
}

func TestFmtAge(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "-", fmtAge(time.Time{}, now))
	assert.Equal(t, "5s ago", fmtAge(now.Add(-5*time.Second), now))
	assert.Equal(t, "3m ago", fmtAge(now.Add(-3*time.Minute), now))
	assert.Equal(t, "10:00:00", fmtAge(now.Add(-2*time.Hour), now))
}
