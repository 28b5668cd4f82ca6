package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"workbench/internal/controller"
)

const shutdownTimeout = 10 * time.Second

// Router builds the HTTP API over the app's components.
func (a *App) Router() *gin.Engine {
	gin.SetMode(a.cfg.Server.Mode)
	return controller.NewRouter(controller.Deps{
		Registry:  a.Registry,
		Queries:   a.Queries,
		Results:   a.Results,
		History:   a.History,
		Schema:    a.Schema,
		Events:    a.Events,
		Metrics:   a.Metrics,
		AccessLog: a.cfg.Server.Mode != gin.TestMode,
	})
}

// ServeHTTP starts background work and serves the HTTP API until ctx is done,
// then shuts the server down gracefully.
func ServeHTTP(ctx context.Context, a *App) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	// Request contexts derive from baseCtx so open event streams end on shutdown.
	baseCtx, cancelRequests := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRequests()
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[HTTP] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("[HTTP] shutting down")
	cancelRequests()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
