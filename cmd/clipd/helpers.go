package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"go.klb.dev/clipd/internal/grpcservice"
	"go.klb.dev/clipd/internal/identity"
	"go.klb.dev/clipd/internal/ipc"
	"go.klb.dev/clipd/internal/tlsconf"
)

// envReplacer maps flag names onto env var names: short-wait → SHORT_WAIT.
var envReplacer = strings.NewReplacer("-", "_")

// currentUser is the default user id of CLI callers. It is -1 on Windows.
func currentUser() int32 { return int32(os.Getuid()) }

// addClientFlags adds the flags shared by every command that talks to a
// running server.
func addClientFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("server", "localhost:8752", "clipd server address (used when no local socket is found)")
	f.String("socket", ipc.SocketPath(), "IPC socket path")
	f.String("token", "", "shared secret")
	f.Int32("user", currentUser(), "user id to act as")
	f.Uint32("token-id", uint32(os.Getpid()), "caller token id (in-app clips are only visible to the same token)")
	f.String("bundle", "clipd-cli", "bundle name to act as")
	addConfigFlag(cmd)
}

// dialClient connects to the local server over IPC when it is running and
// --server was not given explicitly, and over TLS TCP otherwise.
func dialClient(cmd *cobra.Command, v *viper.Viper) (*grpcservice.Client, error) {
	caller := identity.Caller{
		User:    v.GetInt32("user"),
		TokenID: v.GetUint32("token-id"),
		Bundle:  v.GetString("bundle"),
	}

	var (
		conn *grpc.ClientConn
		err  error
	)
	socket := v.GetString("socket")
	if !cmd.Flags().Changed("server") && ipc.IsRunning(socket) {
		opts := append(grpcservice.CallerOptions(caller, "", nil),
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return ipc.Dial(ctx, socket)
			}))
		conn, err = grpc.NewClient(ipc.Target(socket), opts...)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", socket, err)
		}
		return grpcservice.NewClient(conn, caller), nil
	}

	token := v.GetString("token")
	creds, err := tlsconf.ClientCredentials(token)
	if err != nil {
		return nil, fmt.Errorf("tls credentials: %w", err)
	}
	addr := v.GetString("server")
	conn, err = grpc.NewClient(addr, grpcservice.CallerOptions(caller, token, creds)...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return grpcservice.NewClient(conn, caller), nil
}

// clientCommand builds a sub-command that runs fn with a connected client.
func clientCommand(use, short, long string, args cobra.PositionalArgs, fn func(*cobra.Command, *viper.Viper, *grpcservice.Client, []string) error) *cobra.Command {
	v := viper.New()
	return &cobra.Command{
		Use:     use,
		Short:   short,
		Long:    long,
		Args:    args,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dialClient(cmd, v)
			if err != nil {
				return err
			}
			defer c.Close()
			return fn(cmd, v, c, args)
		},
	}
}
