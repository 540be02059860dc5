// Package grpcservice exposes the clipboard store and the relay board over
// gRPC, and provides the matching clients.
package grpcservice

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"go.klb.dev/clipd/internal/clip"
	"go.klb.dev/clipd/internal/dialog"
	"go.klb.dev/clipd/internal/identity"
	"go.klb.dev/clipd/internal/store"
)

// Service implements clipd.v1.Clipboard on top of a store.
type Service struct {
	st  *store.Store
	dlg *dialog.Recorder
}

// New returns a Service backed by st. dlg may be nil, in which case Dismiss
// always reports false.
func New(st *store.Store, dlg *dialog.Recorder) *Service {
	return &Service{st: st, dlg: dlg}
}

// SetClip decodes a transfer payload, imports its file handles under the
// caller's share root and stores the clip.
func (s *Service) SetClip(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	c, err := callerFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	d, handles, err := clip.UnmarshalTransfer(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	if err := d.ReadURIHandles(handles, clip.FileHandler{User: c.User}); err != nil {
		return nil, toStatus(err)
	}
	if err := s.st.SetClip(ctx, c, d); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// GetClip returns the caller's clip with share uris rewritten for the
// caller's user.
func (s *Service) GetClip(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	c, err := callerFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	d, err := s.st.GetClip(ctx, c)
	if err != nil {
		return nil, toStatus(err)
	}
	d.ReplaceShareURI(c.User)
	b, err := clip.MarshalTransfer(d, nil)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Service) HasClip(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	c, err := callerFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bool(s.st.HasClip(ctx, c)), nil
}

func (s *Service) Clear(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	c, err := callerFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.st.Clear(ctx, c); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Sync forces a reconciliation with the distributed transport.
func (s *Service) Sync(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	c, err := callerFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	adopted, err := s.st.Sync(ctx, c)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bool(adopted), nil
}

// Dismiss cancels the caller's pending paste prompt, as if the user had
// closed it. It reports whether a prompt was open.
func (s *Service) Dismiss(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	c, err := callerFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if s.dlg == nil {
		return wrapperspb.Bool(false), nil
	}
	return wrapperspb.Bool(s.dlg.Dismiss(dialog.Prompt{User: c.User, Bundle: c.Bundle})), nil
}

// Dump renders store diagnostics. The request carries "copy_history" (a
// number) and "data" (a bool).
func (s *Service) Dump(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	c, err := callerFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	fields := req.GetFields()
	out, err := s.st.Dump(c, store.DumpOptions{
		CopyHistory: int(fields["copy_history"].GetNumberValue()),
		Data:        fields["data"].GetBoolValue(),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.String(out), nil
}

// Status reports transport state and the caller's clip metadata.
func (s *Service) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	c, err := callerFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	st := s.st.Status(c)
	fields := map[string]any{
		"device":      st.Device,
		"distributed": st.Distributed,
		"plugin":      st.Plugin,
		"has_clip":    st.HasClip,
	}
	if st.HasClip {
		types := make([]any, 0, len(st.Types))
		for _, m := range st.Types {
			types = append(types, m)
		}
		fields["owner"] = st.Owner
		fields["scope"] = st.Scope.String()
		fields["remote"] = st.Remote
		fields["origin"] = st.Origin
		fields["types"] = types
		fields["updated"] = st.Updated.UnixMilli()
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, toStatus(err)
	}
	return out, nil
}

// Watch streams the caller's user notifications until the client goes away.
// Each message describes the event; clients call GetClip for the content.
func (s *Service) Watch(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ctx := stream.Context()
	c, err := callerFromCtx(ctx)
	if err != nil {
		return err
	}

	ch := make(chan store.Notification, 16)
	cancel := s.st.Subscribe(c.User, store.ObserverFunc(func(n store.Notification) {
		select {
		case ch <- n:
		default:
			slog.Warn("watch channel full, dropping", "caller", c, "kind", n.Kind)
		}
	}))
	defer cancel()

	slog.Info("watch started", "caller", c)
	defer slog.Info("watch ended", "caller", c)

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-ch:
			msg, err := encodeNotification(n, c)
			if err != nil {
				return toStatus(err)
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

// encodeNotification renders n for viewer. MIME types of an in-app clip are
// only listed for the token that produced it.
func encodeNotification(n store.Notification, viewer identity.Caller) (*structpb.Struct, error) {
	fields := map[string]any{
		"kind":   n.Kind.String(),
		"user":   int64(n.User),
		"bundle": n.Caller.Bundle,
		"time":   n.Time.UnixMilli(),
	}
	if d := n.Data; d != nil {
		fields["scope"] = d.Props.Scope.String()
		fields["remote"] = d.Props.IsRemote
		if d.Props.Scope != clip.ScopeInApp || d.Props.TokenID == viewer.TokenID {
			types := make([]any, 0, len(d.MimeTypes()))
			for _, m := range d.MimeTypes() {
				types = append(types, m)
			}
			fields["types"] = types
		}
	}
	return structpb.NewStruct(fields)
}
