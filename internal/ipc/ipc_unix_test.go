//go:build !windows

package ipc

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(ln net.Listener) {
	for {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		c.Close()
	}
}

func TestListen(t *testing.T) {
	// Socket paths are length-limited; keep it short.
	dir, err := os.MkdirTemp("", "ipc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "c.sock")

	require.NoError(t, os.WriteFile(path, nil, 0o600))
	ln, err := Listen(path)
	require.NoError(t, err, "stale file is replaced")
	go serve(ln)

	assert.True(t, IsRunning(path))
	_, err = Listen(path)
	assert.Error(t, err, "live socket is not taken over")

	c, err := Dial(testContext(t), path)
	require.NoError(t, err)
	c.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, ln.Close())
	assert.False(t, IsRunning(path))
}

func TestSocketPath_XDG(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, "/run/user/1000/clipd.sock", socketPath())
}
