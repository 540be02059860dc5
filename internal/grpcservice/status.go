package grpcservice

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.klb.dev/clipd/internal/errs"
	"go.klb.dev/clipd/internal/plugin"
)

var codeOf = []struct {
	err  error
	code codes.Code
}{
	{errs.ErrPermissionDenied, codes.PermissionDenied},
	{errs.ErrBusy, codes.ResourceExhausted},
	{errs.ErrInvalidArgument, codes.InvalidArgument},
	{errs.ErrUnavailable, codes.Unavailable},
	{errs.ErrTimeout, codes.DeadlineExceeded},
	{errs.ErrNotFound, codes.NotFound},
	{plugin.ErrNoPayload, codes.NotFound},
}

// toStatus converts a store or plugin error into a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, m := range codeOf {
		if errors.Is(err, m.err) {
			return status.Error(m.code, err.Error())
		}
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// fromStatus turns a status error back into the matching sentinel so
// callers on the client side can use errors.Is.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var sentinel error
	switch st.Code() {
	case codes.PermissionDenied, codes.Unauthenticated:
		sentinel = errs.ErrPermissionDenied
	case codes.ResourceExhausted:
		sentinel = errs.ErrBusy
	case codes.InvalidArgument:
		sentinel = errs.ErrInvalidArgument
	case codes.Unavailable:
		sentinel = errs.ErrUnavailable
	case codes.DeadlineExceeded:
		sentinel = errs.ErrTimeout
	case codes.NotFound:
		sentinel = errs.ErrNotFound
	default:
		return err
	}
	return &remoteError{sentinel: sentinel, msg: st.Message()}
}

type remoteError struct {
	sentinel error
	msg      string
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.sentinel }
