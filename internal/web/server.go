// Package web is the JSON HTTP API over the dossier engine.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/matthewjhunter/dossier"
)

// NewHandler returns the API with request logging and panic recovery.
func NewHandler(engine *dossier.Engine, log logrus.FieldLogger) http.Handler {
	return logging(log)(recovery(log)(newRouter(engine, log)))
}

// Serve runs the API on addr until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func Serve(ctx context.Context, engine *dossier.Engine, addr string, log logrus.FieldLogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHandler(engine, log),
		ReadHeaderTimeout: 15 * time.Second,
		// Generation streams can run for minutes; the AI timeout bounds them.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("stopped")
	return nil
}
