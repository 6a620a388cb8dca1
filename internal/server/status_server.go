package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// StatusServer serves the local status API on the loopback interface
type StatusServer struct {
	srv    *http.Server
	logger *zap.Logger
}

func NewStatusServer(port int, handler http.Handler, logger *zap.Logger) *StatusServer {
	return &StatusServer{
		srv: &http.Server{
			Addr:              fmt.Sprintf("127.0.0.1:%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start binds the listener and serves in the background. Binding errors
// are returned; serve errors are logged.
func (s *StatusServer) Start() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server failed", zap.Error(err))
		}
	}()

	s.logger.Info("Status server listening", zap.String("addr", ln.Addr().String()))
	return ln.Addr(), nil
}

func (s *StatusServer) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down status server: %w", err)
	}
	s.logger.Info("Status server stopped")
	return nil
}
