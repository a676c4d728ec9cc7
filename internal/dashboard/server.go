// Package dashboard serves the JSON API and SSE stream the desktop board
// talks to. It is a thin HTTP skin: validation and persistence live in the
// bead and store packages, live updates in stream.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beadboard/beadboard/internal/prcheck"
	"github.com/beadboard/beadboard/internal/staleness"
	"github.com/beadboard/beadboard/internal/store"
	"github.com/beadboard/beadboard/internal/stream"
)

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Store      *store.Store
	Manager    *stream.Manager
	Checker    *prcheck.Checker // optional; nil disables PR lookups
	Thresholds staleness.Thresholds
	Port       int
	RetryMS    int // SSE client reconnect advisory
	Out        io.Writer
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Store == nil {
		return fmt.Errorf("dashboard: store is required")
	}
	if opts.Manager == nil {
		return fmt.Errorf("dashboard: stream manager is required")
	}
	if opts.Port <= 0 {
		opts.Port = 7331
	}
	if opts.Thresholds == (staleness.Thresholds{}) {
		opts.Thresholds = staleness.DefaultThresholds
	}
	if opts.RetryMS <= 0 {
		opts.RetryMS = 3000
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Beadboard API at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
