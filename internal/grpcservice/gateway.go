package grpcservice

import (
	"encoding/json"
	"net/http"
	"strconv"

	gwruntime "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"go.klb.dev/clipd/internal/store"
)

// NewGateway returns the HTTP mux served alongside gRPC on the TCP port:
//
//	GET /healthz                          liveness and transport state
//	GET /v1/dump?copy-history=N&data=true  plain-text diagnostics
//
// Caller identity travels in the same X-Clipd-* headers as the gRPC
// metadata.
func NewGateway(st *store.Store, token string) (*gwruntime.ServeMux, error) {
	mux := gwruntime.NewServeMux()

	err := mux.HandlePath(http.MethodGet, "/healthz", func(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":      "ok",
			"distributed": st.Distributed(),
		})
	})
	if err != nil {
		return nil, err
	}

	err = mux.HandlePath(http.MethodGet, "/v1/dump", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		md := metadata.MD{}
		for _, k := range []string{mdUser, mdToken, mdBundle, mdAuth} {
			if v := r.Header.Get(k); v != "" {
				md.Set(k, v)
			}
		}
		ctx := metadata.NewIncomingContext(r.Context(), md)
		if err := authorize(ctx, token); err != nil {
			httpError(w, err)
			return
		}
		c, err := callerFromCtx(ctx)
		if err != nil {
			httpError(w, err)
			return
		}

		q := r.URL.Query()
		n, _ := strconv.Atoi(q.Get("copy-history"))
		data, _ := strconv.ParseBool(q.Get("data"))
		out, err := st.Dump(c, store.DumpOptions{CopyHistory: n, Data: data})
		if err != nil {
			httpError(w, toStatus(err))
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(out))
	})
	if err != nil {
		return nil, err
	}
	return mux, nil
}

func httpError(w http.ResponseWriter, err error) {
	st := status.Convert(err)
	http.Error(w, st.Message(), gwruntime.HTTPStatusFromCode(st.Code()))
}
