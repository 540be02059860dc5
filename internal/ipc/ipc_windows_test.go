//go:build windows

package ipc

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListen_Pipe(t *testing.T) {
	path := fmt.Sprintf(`\\.\pipe\clipd-test-%d`, os.Getpid())

	ln, err := Listen(path)
	require.NoError(t, err)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	assert.True(t, IsRunning(path))
	_, err = Listen(path)
	assert.Error(t, err, "live pipe is not taken over")

	require.NoError(t, ln.Close())
	assert.False(t, IsRunning(path))
}

func TestSocketPath_Pipe(t *testing.T) {
	assert.Equal(t, `\\.\pipe\clipd`, socketPath())
}
