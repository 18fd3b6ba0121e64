// Package httpserver provides the HTTP/HTTPS server for CredGate.
//
// It uses the Go standard library net/http for implementation,
// providing RESTful API endpoints for authentication and session
// management.
package httpserver

import (
	"context"
	"crypto/tls"
	"net/http"
)

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
}

// New creates a new HTTP server.
func New(addr string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: handler,
		},
		handler: handler,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// ListenAndServeTLS starts the HTTPS server.
func (s *Server) ListenAndServeTLS(certFile, keyFile string) error {
	return s.httpServer.ListenAndServeTLS(certFile, keyFile)
}

// ListenAndServeTLSConfig starts the HTTPS server with the given TLS
// configuration. Used when certificates come from a reloading source
// rather than fixed files.
func (s *Server) ListenAndServeTLSConfig(cfg *tls.Config) error {
	s.httpServer.TLSConfig = cfg
	return s.httpServer.ListenAndServeTLS("", "")
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// SetKeepAlivesEnabled controls HTTP keep-alives. Disabling them lets a
// load balancer drain the instance before shutdown.
func (s *Server) SetKeepAlivesEnabled(v bool) {
	s.httpServer.SetKeepAlivesEnabled(v)
}
