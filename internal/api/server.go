// Package api serves the Hideout HTTP surface: dashboard generate endpoints,
// the plugin HTTP fallback, the plugin WebSocket upgrade, server-sent
// dashboard events, health and metrics.
package api

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// StartOpts holds configuration for the HTTP server.
type StartOpts struct {
	Handler http.Handler
	Port    int
	Out     io.Writer
	// ShutdownTimeout bounds graceful shutdown. Defaults to 10s.
	ShutdownTimeout time.Duration
	// OnShutdown runs when shutdown starts. Long-lived handlers such as
	// event streams use it to return so shutdown does not wait on them.
	OnShutdown func()
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Handler == nil {
		return fmt.Errorf("api: handler is required")
	}
	if opts.Port <= 0 {
		opts.Port = 5000
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           opts.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if opts.OnShutdown != nil {
		srv.RegisterOnShutdown(opts.OnShutdown)
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Printf("api: shutdown: %v", err)
		}
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Hideout listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
