// Package ipc locates and serves the local endpoint that CLI commands use to
// reach a running clipd server: a Unix socket restricted to its owner, or a
// named pipe on Windows. The endpoint carries the same gRPC services as the
// TCP port, in plaintext.
package ipc

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"
)

// SocketPath returns the endpoint path: $CLIPD_SOCKET if set, otherwise the
// platform default.
//
//   - Linux / macOS: $XDG_RUNTIME_DIR/clipd.sock, else $TMPDIR/clipd.sock
//   - Windows:       \\.\pipe\clipd
func SocketPath() string {
	if s := os.Getenv("CLIPD_SOCKET"); s != "" {
		return s
	}
	return socketPath()
}

// Target returns the gRPC dial target for path. It must be used together
// with a dialer that calls Dial, since gRPC cannot resolve named pipes.
func Target(path string) string {
	return "passthrough:///" + path
}

// Dial connects to the endpoint at path.
func Dial(ctx context.Context, path string) (net.Conn, error) {
	return dialIPC(ctx, path)
}

// IsRunning reports whether something accepts connections on path. No data
// is exchanged.
func IsRunning(path string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	c, err := dialIPC(ctx, path)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen serves path. It refuses to take over an endpoint that is still
// being served; a stale Unix socket left by a crashed run is replaced.
func Listen(path string) (net.Listener, error) {
	if IsRunning(path) {
		return nil, fmt.Errorf("ipc: %s is already in use", path)
	}
	ln, err := listenIPC(path)
	if err != nil {
		return nil, fmt.Errorf("ipc: listen %s: %w", path, err)
	}
	return ln, nil
}
