package grpcservice

import (
	"context"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"go.klb.dev/clipd/internal/identity"
)

// Metadata keys carrying the caller identity.
const (
	mdUser   = "x-clipd-user"
	mdToken  = "x-clipd-token"
	mdBundle = "x-clipd-bundle"
	mdAuth   = "authorization"
)

// callerFromCtx reads the caller identity from incoming metadata. A missing
// user is an error; token and bundle default to zero values. The identity is
// not verified; see ServerOptions.
func callerFromCtx(ctx context.Context) (identity.Caller, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	user := first(md, mdUser)
	if user == "" {
		return identity.Caller{}, status.Error(codes.InvalidArgument, "missing "+mdUser)
	}
	u, err := strconv.ParseInt(user, 10, 32)
	if err != nil {
		return identity.Caller{}, status.Errorf(codes.InvalidArgument, "bad %s %q", mdUser, user)
	}
	c := identity.Caller{User: int32(u), Bundle: first(md, mdBundle)}
	if tok := first(md, mdToken); tok != "" {
		t, err := strconv.ParseUint(tok, 10, 32)
		if err != nil {
			return identity.Caller{}, status.Errorf(codes.InvalidArgument, "bad %s %q", mdToken, tok)
		}
		c.TokenID = uint32(t)
	}
	return c, nil
}

func first(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// authorize validates the bearer token in ctx metadata. Skipped when token
// is empty.
func authorize(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	got := first(md, mdAuth)
	if got == "" {
		return status.Error(codes.Unauthenticated, "missing authorization header")
	}
	if strings.TrimPrefix(got, "Bearer ") != token {
		return status.Error(codes.Unauthenticated, "invalid token")
	}
	return nil
}

// ServerOptions returns the interceptors that enforce token on every call,
// plus a keepalive policy that admits the relay clients' idle pings.
//
// The token is the only credential checked. The caller identity in the
// x-clipd-* metadata is asserted by the client, so every holder of the token
// is trusted to name its own user, token id and bundle; user isolation,
// in-app scope and the privileged dump rest on that trust. Share the token
// only with devices of one operator.
func ServerOptions(token string) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             20 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
			if err := authorize(ctx, token); err != nil {
				return nil, err
			}
			return next(ctx, req)
		}),
		grpc.ChainStreamInterceptor(func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, next grpc.StreamHandler) error {
			if err := authorize(ss.Context(), token); err != nil {
				return err
			}
			return next(srv, ss)
		}),
	}
}

// callerCreds attaches the caller identity and the bearer token to every
// outgoing call.
type callerCreds struct {
	caller identity.Caller
	token  string
	secure bool
}

func (c *callerCreds) GetRequestMetadata(_ context.Context, _ ...string) (map[string]string, error) {
	md := map[string]string{
		mdUser:  strconv.FormatInt(int64(c.caller.User), 10),
		mdToken: strconv.FormatUint(uint64(c.caller.TokenID), 10),
	}
	if c.caller.Bundle != "" {
		md[mdBundle] = c.caller.Bundle
	}
	if c.token != "" {
		md[mdAuth] = "Bearer " + c.token
	}
	return md, nil
}

func (c *callerCreds) RequireTransportSecurity() bool { return c.secure }

// tokenCreds attaches only the bearer token; the relay has no caller.
type tokenCreds struct {
	token  string
	secure bool
}

func (c *tokenCreds) GetRequestMetadata(_ context.Context, _ ...string) (map[string]string, error) {
	return map[string]string{mdAuth: "Bearer " + c.token}, nil
}

func (c *tokenCreds) RequireTransportSecurity() bool { return c.secure }
