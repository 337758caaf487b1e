// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

package supervisor

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestMetricsServiceServesAndShutsDown(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("replication_cycle_duration_seconds_count 1\n"))
	})
	svc := NewMetricsService("127.0.0.1:0", handler, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Serve(ctx)
	}()

	waitFor(t, func() bool { return svc.Addr() != "" })

	resp, err := http.Get("http://" + svc.Addr() + "/")
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if len(body) == 0 {
		t.Error("expected a non-empty exposition body")
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled after shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop after cancel")
	}
}

func TestMetricsServiceReturnsBindError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("setup listener: %v", err)
	}
	defer ln.Close()

	svc := NewMetricsService(ln.Addr().String(), http.NotFoundHandler(), time.Second)
	if err := svc.Serve(context.Background()); err == nil {
		t.Fatal("expected bind error for an already-bound address")
	}
}

func TestMetricsServiceRebindsOnRestart(t *testing.T) {
	svc := NewMetricsService("127.0.0.1:0", http.NotFoundHandler(), time.Second)

	for i := 0; i < 2; i++ {
		svc.mu.Lock()
		svc.boundAddr = ""
		svc.mu.Unlock()

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			errCh <- svc.Serve(ctx)
		}()
		waitFor(t, func() bool { return svc.Addr() != "" })
		cancel()
		if err := <-errCh; !errors.Is(err, context.Canceled) {
			t.Fatalf("run %d: expected clean shutdown, got %v", i, err)
		}
	}
}

func TestMetricsServiceString(t *testing.T) {
	if got := NewMetricsService(":0", nil, 0).String(); got != "metrics-server" {
		t.Errorf("unexpected service name %q", got)
	}
}
