package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Server serves a handler (the metrics endpoint) until stopped.
type Server struct {
	http *http.Server
	lis  net.Listener
}

// StartServer listens on port; port 0 picks a free one.
func StartServer(port int, h http.Handler) (*Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	return &Server{
		http: &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second},
		lis:  lis,
	}, nil
}

// Port is the bound port.
func (s *Server) Port() int { return s.lis.Addr().(*net.TCPAddr).Port }

// Serve blocks until the server is stopped.
func (s *Server) Serve() error {
	if err := s.http.Serve(s.lis); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
