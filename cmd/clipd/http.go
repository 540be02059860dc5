package main

import (
	"net"
	"net/http"
	"time"
)

// serveHTTPGateway runs an HTTP/1.1 server on ln serving the gateway mux.
func serveHTTPGateway(ln net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	return srv.Serve(ln)
}
