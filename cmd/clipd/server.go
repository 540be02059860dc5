package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/soheilhy/cmux"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"go.klb.dev/clipd/internal/clip"
	"go.klb.dev/clipd/internal/dialog"
	"go.klb.dev/clipd/internal/grpcservice"
	"go.klb.dev/clipd/internal/identity"
	"go.klb.dev/clipd/internal/ipc"
	"go.klb.dev/clipd/internal/plugin"
	"go.klb.dev/clipd/internal/store"
	"go.klb.dev/clipd/internal/sysclip"
	"go.klb.dev/clipd/internal/tlsconf"
)

func newServerCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the clipboard service",
		Long: `Starts the clipboard store and serves it on the IPC socket and on a TLS
TCP port that multiplexes gRPC and an HTTP gateway (/healthz, /v1/dump).

With --distributed, cross-device clips are published through the plugin named
by --plugin: a component from the [[plugins]] load list or a bare factory
(memory, dir, bolt, s3, relay). With --relay the server also offers its memory
board to other devices as the "relay" transport.

Config file search order:
  /etc/clipd/clipd.toml
  $HOME/.config/clipd/clipd.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → CLIPD_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runServer(cmd.Context(), v) },
	}

	f := cmd.Flags()
	f.String("addr", "0.0.0.0:8752", "TCP listen address (empty = IPC only)")
	f.String("socket", ipc.SocketPath(), "IPC socket path")
	f.String("token", "", "shared secret for TCP clients and relays; also derives the TLS key")
	f.Bool("distributed", false, "share cross-device clips with other devices")
	f.String("plugin", "relay", "distributed transport component or factory name")
	f.String("passphrase", "", "seal published payloads with this passphrase (empty = plaintext)")
	f.String("relay-addr", "", "address of the clipd relay used by the relay plugin")
	f.Bool("relay", false, "serve the memory board to other devices")
	f.String("account", "", "account the local users are signed in to")
	f.String("device-id", "", "device identity (default: generated and kept in --device-id-file)")
	f.String("device-id-file", defaultDeviceIDFile(), "file holding the generated device identity")
	f.Duration("short-wait", store.DefaultShortWait, "paste wait before the dialog is shown")
	f.Duration("long-wait", store.DefaultLongWait, "paste wait after the dialog is shown")
	f.Duration("event-ttl", store.DefaultEventTTL, "lifetime of a published event")
	f.Int("history", store.DefaultHistorySize, "operations kept for dump --copy-history")
	f.Bool("system-clipboard", false, "mirror the clip of --user to and from the OS clipboard")
	f.Int32("user", currentUser(), "user whose clip is mirrored to the OS clipboard")
	f.String("system-scope", clip.ScopeCrossDevice.String(), "scope of clips copied from the OS clipboard")
	f.String("ime-bundle", "", "bundle of the default input method")
	f.StringSlice("deny-bundles", nil, "bundles that may not copy")
	f.IntSlice("privileged-users", []int{0}, "users allowed to dump diagnostics")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runServer(ctx context.Context, v *viper.Viper) error {
	setupLogging(v)

	deviceID := v.GetString("device-id")
	if deviceID == "" {
		var err error
		if deviceID, err = identity.LoadDeviceID(v.GetString("device-id-file")); err != nil {
			return err
		}
	}
	policy := &identity.StaticPolicy{
		Device:         deviceID,
		DefaultAccount: v.GetString("account"),
		IMEBundle:      v.GetString("ime-bundle"),
		DenyBundles:    v.GetStringSlice("deny-bundles"),
	}
	for _, u := range v.GetIntSlice("privileged-users") {
		policy.PrivilegedUsers = append(policy.PrivilegedUsers, int32(u))
	}

	token := v.GetString("token")
	creds, err := tlsconf.New(token)
	if err != nil {
		return err
	}

	registry := plugin.NewRegistry()
	registry.Register("relay", grpcservice.RelayFactory(grpcservice.RelayDialOptions(token, creds.Client)...))
	comps, err := loadComponents(v)
	if err != nil {
		return err
	}
	if addr := v.GetString("relay-addr"); addr != "" {
		comps = append(comps, plugin.Component{Name: "relay", Factory: "relay", Param: addr})
	}
	registry.Load(comps)

	dlg := dialog.NewRecorder()
	st := store.New(store.Config{
		ShortWait:   v.GetDuration("short-wait"),
		LongWait:    v.GetDuration("long-wait"),
		EventTTL:    v.GetDuration("event-ttl"),
		PluginName:  v.GetString("plugin"),
		Passphrase:  v.GetString("passphrase"),
		HistorySize: v.GetInt("history"),
	}, policy, dlg, registry)
	defer st.Close()

	slog.Info("clipd server starting",
		"version", Version,
		"device", deviceID,
		"addr", v.GetString("addr"),
		"distributed", v.GetBool("distributed"),
		"plugin", v.GetString("plugin"),
		"factories", registry.Factories(),
	)

	if v.GetBool("distributed") {
		if err := st.SetDistributed(true); err != nil {
			return fmt.Errorf("distributed: %w", err)
		}
	}

	svc := grpcservice.New(st, dlg)

	if v.GetBool("system-clipboard") {
		scope, err := clip.ParseScope(v.GetString("system-scope"))
		if err != nil {
			return err
		}
		backend := sysclip.New()
		defer backend.Close()
		go sysclip.NewBridge(st, backend, v.GetInt32("user"), scope).Run(ctx)
	}

	// IPC socket for the CLI sub-commands. Local callers are trusted.
	ipcSrv := grpc.NewServer()
	grpcservice.RegisterClipboard(ipcSrv, svc)
	socket := v.GetString("socket")
	if ln, err := ipc.Listen(socket); err != nil {
		slog.Warn("IPC socket unavailable", "err", err)
	} else {
		slog.Info("IPC socket listening", "path", socket)
		go func() { _ = ipcSrv.Serve(ln) }()
	}
	defer ipcSrv.Stop()

	addr := v.GetString("addr")
	if addr == "" {
		<-ctx.Done()
		slog.Info("clipd server stopping")
		return nil
	}

	tcpSrv := grpc.NewServer(grpcservice.ServerOptions(token)...)
	grpcservice.RegisterClipboard(tcpSrv, svc)
	if v.GetBool("relay") {
		board := registry.Create("memory")
		defer registry.Destroy("memory", board)
		grpcservice.RegisterRelay(tcpSrv, grpcservice.NewRelay(board))
		slog.Info("relay board enabled")
	}
	defer tcpSrv.Stop()

	gw, err := grpcservice.NewGateway(st, token)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	return serveTCP(ctx, addr, creds.Server, tcpSrv, gw)
}

// serveTCP multiplexes gRPC (HTTP/2) and the HTTP gateway on one TLS
// listener until ctx is done.
func serveTCP(ctx context.Context, addr string, tlsCfg *tls.Config, gs *grpc.Server, gw http.Handler) error {
	raw, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	ln := tls.NewListener(raw, tlsCfg)
	slog.Info("listening", "addr", raw.Addr())

	m := cmux.New(ln)
	m.SetReadTimeout(10 * time.Second)
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.Any())

	errc := make(chan error, 3)
	go func() { errc <- gs.Serve(grpcL) }()
	go func() { errc <- serveHTTPGateway(httpL, gw) }()
	go func() { errc <- m.Serve() }()

	select {
	case <-ctx.Done():
		slog.Info("clipd server stopping")
		_ = ln.Close()
		return nil
	case err := <-errc:
		if errors.Is(err, cmux.ErrListenerClosed) || errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	}
}

func defaultDeviceIDFile() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "clipd", "device-id")
	}
	return filepath.Join(os.TempDir(), "clipd-device-id")
}
