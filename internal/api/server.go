// Package api is the thin HTTP surface for triggering dispatches: media
// sends against a ticket, flow sends against a bare number, and the
// websocket event stream.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/wadesk/wadesk/internal/dispatch"
	"github.com/wadesk/wadesk/internal/notify"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB         *gorm.DB
	Dispatcher *dispatch.Dispatcher
	Hub        *notify.Hub
	// UploadDir receives multipart uploads before dispatch.
	UploadDir string
	Port      int
	Out       io.Writer
	Logger    zerolog.Logger
}

// Start launches the API HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := newRouter(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

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
		fmt.Fprintf(opts.Out, "API listening at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// newRouter builds the Gin engine with all routes registered.
func newRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("api: db is required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("api: dispatcher is required")
	}
	if opts.Hub == nil {
		return nil, fmt.Errorf("api: hub is required")
	}
	if opts.UploadDir == "" {
		opts.UploadDir = os.TempDir()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, opts)
	return router, nil
}
