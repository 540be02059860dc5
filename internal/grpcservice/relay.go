package grpcservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"go.klb.dev/clipd/internal/plugin"
)

// maxRelayPayload bounds what a single Publish may upload.
const maxRelayPayload = 255 * plugin.FrameSize

// Relay implements clipd.v1.Relay: it lets remote devices use a board
// plugin (normally the in-memory one) as their distributed transport.
type Relay struct {
	board plugin.Plugin
}

// NewRelay serves board.
func NewRelay(board plugin.Plugin) *Relay {
	return &Relay{board: board}
}

// Publish receives an encoded event followed by the payload in frames.
func (r *Relay) Publish(stream grpc.ServerStream) error {
	head := new(wrapperspb.BytesValue)
	if err := stream.RecvMsg(head); err != nil {
		return err
	}
	e, err := plugin.DecodeEvent(head.GetValue())
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "event: %v", err)
	}

	var payload []byte
	for {
		frame := new(wrapperspb.BytesValue)
		err := stream.RecvMsg(frame)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if len(payload)+len(frame.GetValue()) > maxRelayPayload {
			return status.Errorf(codes.InvalidArgument, "payload exceeds %d bytes", maxRelayPayload)
		}
		payload = append(payload, frame.GetValue()...)
	}

	if err := r.board.SetPasteData(stream.Context(), e, payload); err != nil {
		return toStatus(err)
	}
	slog.Debug("relay stored event", "event", e, "bytes", len(payload))
	return stream.SendMsg(&emptypb.Empty{})
}

// TopEvents streams the newest events of a user. The request carries "user"
// and "n".
func (r *Relay) TopEvents(req *structpb.Struct, stream grpc.ServerStream) error {
	fields := req.GetFields()
	user := int32(fields["user"].GetNumberValue())
	n := int(fields["n"].GetNumberValue())

	events, err := r.board.GetTopEvents(stream.Context(), n, user)
	if err != nil {
		return toStatus(err)
	}
	for _, e := range events {
		b, err := plugin.EncodeEvent(e)
		if err != nil {
			return toStatus(err)
		}
		if err := stream.SendMsg(wrapperspb.Bytes(b)); err != nil {
			return err
		}
	}
	return nil
}

// Fetch streams the payload of an event in frames.
func (r *Relay) Fetch(req *wrapperspb.BytesValue, stream grpc.ServerStream) error {
	e, err := plugin.DecodeEvent(req.GetValue())
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "event: %v", err)
	}
	payload, err := r.board.GetPasteData(stream.Context(), e)
	if err != nil {
		return toStatus(err)
	}
	for _, frame := range frames(payload) {
		if err := stream.SendMsg(wrapperspb.Bytes(frame)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Relay) Clear(ctx context.Context, req *wrapperspb.Int32Value) (*emptypb.Empty, error) {
	if err := r.board.Clear(ctx, req.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// frames splits b into chunks of at most plugin.FrameSize. An empty payload
// still yields one empty frame.
func frames(b []byte) [][]byte {
	if len(b) == 0 {
		return [][]byte{{}}
	}
	out := make([][]byte, 0, plugin.Frames(len(b)))
	for len(b) > 0 {
		n := min(len(b), plugin.FrameSize)
		out = append(out, b[:n])
		b = b[n:]
	}
	return out
}

// ── client ───────────────────────────────────────────────────────────────────

var (
	publishStream   = grpc.StreamDesc{StreamName: "Publish", ClientStreams: true}
	topEventsStream = grpc.StreamDesc{StreamName: "TopEvents", ServerStreams: true}
	fetchStream     = grpc.StreamDesc{StreamName: "Fetch", ServerStreams: true}
)

// RelayClient is the "relay" plugin: a distributed transport backed by a
// remote clipd relay.
type RelayClient struct {
	addr string
	conn *grpc.ClientConn
}

// DialRelay connects to the relay at addr. The connection is established
// lazily on first use.
func DialRelay(addr string, opts ...grpc.DialOption) (*RelayClient, error) {
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("relay dial %s: %w", addr, err)
	}
	return &RelayClient{addr: addr, conn: conn}, nil
}

// RelayDialOptions returns the dial options for a relay: token
// authentication and keepalive pings so idle connections survive NAT
// gateways between publishes. creds nil means plaintext.
func RelayDialOptions(token string, creds credentials.TransportCredentials) []grpc.DialOption {
	secure := creds != nil
	if creds == nil {
		creds = insecure.NewCredentials()
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             10 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	if token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(&tokenCreds{token: token, secure: secure}))
	}
	return opts
}

// RelayFactory returns a plugin factory whose param is the relay address.
func RelayFactory(opts ...grpc.DialOption) plugin.Factory {
	return func(addr string) (plugin.Plugin, error) {
		if addr == "" {
			return nil, errors.New("relay: empty address")
		}
		return DialRelay(addr, opts...)
	}
}

func (c *RelayClient) SetPasteData(ctx context.Context, e plugin.Event, payload []byte) error {
	head, err := plugin.EncodeEvent(e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.conn.NewStream(ctx, &publishStream, fullMethod(relayService, "Publish"))
	if err != nil {
		return fromStatus(err)
	}
	if err := stream.SendMsg(wrapperspb.Bytes(head)); err != nil {
		return fromStatus(recvErr(stream, err))
	}
	for _, frame := range frames(payload) {
		if err := stream.SendMsg(wrapperspb.Bytes(frame)); err != nil {
			return fromStatus(recvErr(stream, err))
		}
	}
	if err := stream.CloseSend(); err != nil {
		return fromStatus(err)
	}
	return fromStatus(stream.RecvMsg(new(emptypb.Empty)))
}

// recvErr fetches the real status after SendMsg returned io.EOF.
func recvErr(stream grpc.ClientStream, err error) error {
	if !errors.Is(err, io.EOF) {
		return err
	}
	if rerr := stream.RecvMsg(new(emptypb.Empty)); rerr != nil {
		return rerr
	}
	return err
}

func (c *RelayClient) GetPasteData(ctx context.Context, e plugin.Event) ([]byte, error) {
	head, err := plugin.EncodeEvent(e)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.openServerStream(ctx, &fetchStream, "Fetch", wrapperspb.Bytes(head))
	if err != nil {
		return nil, relayErr(err)
	}
	var payload []byte
	for {
		frame := new(wrapperspb.BytesValue)
		err := stream.RecvMsg(frame)
		if errors.Is(err, io.EOF) {
			return payload, nil
		}
		if err != nil {
			return nil, relayErr(err)
		}
		payload = append(payload, frame.GetValue()...)
	}
}

func (c *RelayClient) GetTopEvents(ctx context.Context, n int, user int32) ([]plugin.Event, error) {
	req, err := structpb.NewStruct(map[string]any{"user": int64(user), "n": int64(n)})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.openServerStream(ctx, &topEventsStream, "TopEvents", req)
	if err != nil {
		return nil, relayErr(err)
	}
	var events []plugin.Event
	for {
		msg := new(wrapperspb.BytesValue)
		err := stream.RecvMsg(msg)
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, relayErr(err)
		}
		e, err := plugin.DecodeEvent(msg.GetValue())
		if err != nil {
			slog.Debug("relay sent undecodable event", "addr", c.addr, "err", err)
			continue
		}
		events = append(events, e)
	}
}

func (c *RelayClient) Clear(ctx context.Context, user int32) error {
	err := c.conn.Invoke(ctx, fullMethod(relayService, "Clear"), wrapperspb.Int32(user), new(emptypb.Empty))
	return relayErr(err)
}

func (c *RelayClient) Close() error {
	return c.conn.Close()
}

func (c *RelayClient) openServerStream(ctx context.Context, desc *grpc.StreamDesc, method string, req any) (grpc.ClientStream, error) {
	stream, err := c.conn.NewStream(ctx, desc, fullMethod(relayService, method))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return stream, nil
}

// relayErr maps a missing payload back to plugin.ErrNoPayload.
func relayErr(err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("relay: %w", plugin.ErrNoPayload)
	}
	return fromStatus(err)
}
