// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// MetricsService serves the Prometheus exposition endpoint from inside
// the tree's observability layer. It owns its listener: each Serve call
// binds the address fresh, so a supervisor restart after a crash
// rebinds the port instead of inheriting a dead socket.
type MetricsService struct {
	addr            string
	handler         http.Handler
	shutdownTimeout time.Duration

	mu        sync.Mutex
	boundAddr string
}

// NewMetricsService serves handler at addr. shutdownTimeout bounds how
// long in-flight scrapes get to finish after cancellation.
func NewMetricsService(addr string, handler http.Handler, shutdownTimeout time.Duration) *MetricsService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}
	return &MetricsService{addr: addr, handler: handler, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. A failure to bind returns
// immediately and lets the supervisor's backoff pace the retry.
func (s *MetricsService) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics server: listen %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.boundAddr = ln.Addr().String()
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server: shutdown: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// Addr reports the address the last Serve call actually bound, which
// differs from the configured one when addr requested port 0.
func (s *MetricsService) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundAddr
}

// String names the service in suture's event log.
func (s *MetricsService) String() string {
	return "metrics-server"
}
