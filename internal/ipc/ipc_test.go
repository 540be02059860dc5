package ipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSocketPath_Env(t *testing.T) {
	t.Setenv("CLIPD_SOCKET", "/run/custom.sock")
	assert.Equal(t, "/run/custom.sock", SocketPath())
	assert.Equal(t, "passthrough:////run/custom.sock", Target(SocketPath()))
}

func TestSocketPath_Default(t *testing.T) {
	t.Setenv("CLIPD_SOCKET", "")
	assert.Equal(t, socketPath(), SocketPath())
}
