package grpcservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"go.klb.dev/clipd/internal/clip"
	"go.klb.dev/clipd/internal/identity"
	"go.klb.dev/clipd/internal/store"
)

var watchStream = grpc.StreamDesc{StreamName: "Watch", ServerStreams: true}

// CallerOptions returns the dial options that identify every call as c.
// creds nil means plaintext, as on the IPC socket.
func CallerOptions(c identity.Caller, token string, creds credentials.TransportCredentials) []grpc.DialOption {
	secure := creds != nil
	if creds == nil {
		creds = insecure.NewCredentials()
	}
	return []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(&callerCreds{caller: c, token: token, secure: secure}),
	}
}

// Client calls clipd.v1.Clipboard. Errors wrap the errs sentinels.
type Client struct {
	conn   *grpc.ClientConn
	caller identity.Caller
}

// NewClient wraps conn, which must have been dialed with CallerOptions for
// caller.
func NewClient(conn *grpc.ClientConn, caller identity.Caller) *Client {
	return &Client{conn: conn, caller: caller}
}

func (c *Client) Close() error { return c.conn.Close() }

// Target returns the address the client dialed.
func (c *Client) Target() string { return c.conn.Target() }

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	return fromStatus(c.conn.Invoke(ctx, fullMethod(clipboardService, method), req, resp))
}

// SetClip exports the file handles of d and sends it.
func (c *Client) SetClip(ctx context.Context, d *clip.Data) error {
	handles, err := d.WriteURIHandles(clip.FileHandler{User: c.caller.User})
	if err != nil {
		return err
	}
	b, err := clip.MarshalTransfer(d, handles)
	if err != nil {
		return err
	}
	return c.invoke(ctx, "SetClip", wrapperspb.Bytes(b), new(emptypb.Empty))
}

func (c *Client) GetClip(ctx context.Context) (*clip.Data, error) {
	resp := new(wrapperspb.BytesValue)
	if err := c.invoke(ctx, "GetClip", new(emptypb.Empty), resp); err != nil {
		return nil, err
	}
	d, _, err := clip.UnmarshalTransfer(resp.GetValue())
	return d, err
}

func (c *Client) HasClip(ctx context.Context) (bool, error) {
	resp := new(wrapperspb.BoolValue)
	if err := c.invoke(ctx, "HasClip", new(emptypb.Empty), resp); err != nil {
		return false, err
	}
	return resp.GetValue(), nil
}

func (c *Client) Clear(ctx context.Context) error {
	return c.invoke(ctx, "Clear", new(emptypb.Empty), new(emptypb.Empty))
}

func (c *Client) Sync(ctx context.Context) (bool, error) {
	resp := new(wrapperspb.BoolValue)
	if err := c.invoke(ctx, "Sync", new(emptypb.Empty), resp); err != nil {
		return false, err
	}
	return resp.GetValue(), nil
}

func (c *Client) Dismiss(ctx context.Context) (bool, error) {
	resp := new(wrapperspb.BoolValue)
	if err := c.invoke(ctx, "Dismiss", new(emptypb.Empty), resp); err != nil {
		return false, err
	}
	return resp.GetValue(), nil
}

func (c *Client) Dump(ctx context.Context, opts store.DumpOptions) (string, error) {
	req, err := structpb.NewStruct(map[string]any{
		"copy_history": opts.CopyHistory,
		"data":         opts.Data,
	})
	if err != nil {
		return "", err
	}
	resp := new(wrapperspb.StringValue)
	if err := c.invoke(ctx, "Dump", req, resp); err != nil {
		return "", err
	}
	return resp.GetValue(), nil
}

// Status fetches transport state and the caller's clip metadata.
func (c *Client) Status(ctx context.Context) (store.Status, error) {
	resp := new(structpb.Struct)
	if err := c.invoke(ctx, "Status", new(emptypb.Empty), resp); err != nil {
		return store.Status{}, err
	}
	f := resp.GetFields()
	st := store.Status{
		Device:      f["device"].GetStringValue(),
		Distributed: f["distributed"].GetBoolValue(),
		Plugin:      f["plugin"].GetStringValue(),
		HasClip:     f["has_clip"].GetBoolValue(),
	}
	if !st.HasClip {
		return st, nil
	}
	scope, err := clip.ParseScope(f["scope"].GetStringValue())
	if err != nil {
		return store.Status{}, err
	}
	st.Owner = f["owner"].GetStringValue()
	st.Scope = scope
	st.Remote = f["remote"].GetBoolValue()
	st.Origin = f["origin"].GetStringValue()
	st.Updated = time.UnixMilli(int64(f["updated"].GetNumberValue()))
	for _, v := range f["types"].GetListValue().GetValues() {
		st.Types = append(st.Types, v.GetStringValue())
	}
	return st, nil
}

// WatchEvent is one notification received from Watch.
type WatchEvent struct {
	Kind   string
	User   int32
	Bundle string
	Time   time.Time
	Scope  string
	Remote bool
	Types  []string
}

// Watch calls fn for each notification until ctx is done or the stream
// fails. It returns nil when ctx ends the stream.
func (c *Client) Watch(ctx context.Context, fn func(WatchEvent)) error {
	stream, err := c.conn.NewStream(ctx, &watchStream, fullMethod(clipboardService, "Watch"))
	if err != nil {
		return fromStatus(err)
	}
	if err := stream.SendMsg(new(emptypb.Empty)); err != nil {
		return fromStatus(err)
	}
	if err := stream.CloseSend(); err != nil {
		return fromStatus(err)
	}
	for {
		msg := new(structpb.Struct)
		err := stream.RecvMsg(msg)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("server closed watch stream")
			}
			return fromStatus(err)
		}
		fn(decodeNotification(msg))
	}
}

func decodeNotification(msg *structpb.Struct) WatchEvent {
	f := msg.GetFields()
	ev := WatchEvent{
		Kind:   f["kind"].GetStringValue(),
		User:   int32(f["user"].GetNumberValue()),
		Bundle: f["bundle"].GetStringValue(),
		Time:   time.UnixMilli(int64(f["time"].GetNumberValue())),
		Scope:  f["scope"].GetStringValue(),
		Remote: f["remote"].GetBoolValue(),
	}
	for _, v := range f["types"].GetListValue().GetValues() {
		ev.Types = append(ev.Types, v.GetStringValue())
	}
	return ev
}
