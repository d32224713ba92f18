package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/bluesky-social/kyupikon/bot/consumer"
	"github.com/bluesky-social/kyupikon/bot/engine"

	"github.com/codeGROOVE-dev/retry"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	logger    *slog.Logger
	engine    *engine.Engine
	consumer  *consumer.Consumer
	stores    *Stores
	scheduler *Scheduler
	echo      *echo.Echo
	httpd     *http.Server
}

type Config struct {
	Logger *slog.Logger
	// admin API listen address
	Bind          string
	AdminPassword string

	PostInterval         time.Duration
	FavoriteScanInterval time.Duration
	FavoriteScanQuery    string
	FavoriteScanLimit    int
}

func NewServer(eng *engine.Engine, con *consumer.Consumer, stores *Stores, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	if config.AdminPassword == "" {
		return nil, fmt.Errorf("admin password is required")
	}

	srv := &Server{
		logger:   logger,
		engine:   eng,
		consumer: con,
		stores:   stores,
		scheduler: &Scheduler{
			Engine:               eng,
			Logger:               logger.With("system", "scheduler"),
			PostInterval:         config.PostInterval,
			FavoriteScanInterval: config.FavoriteScanInterval,
			FavoriteScanQuery:    config.FavoriteScanQuery,
			FavoriteScanLimit:    config.FavoriteScanLimit,
		},
	}

	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)
	srv.echo = srv.newAdminAPI(config.AdminPassword)
	srv.httpd = &http.Server{
		Handler:        otelhttp.NewHandler(srv.echo, "admin"),
		Addr:           config.Bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}
	return srv, nil
}

// Runs the stream supervisor, scheduled jobs, and admin API until ctx is cancelled or one of
// them fails.
func (srv *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.RunStream(ctx)
	})
	g.Go(func() error {
		srv.scheduler.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return srv.RunAPI(ctx)
	})
	return g.Wait()
}

// Keeps the stream subscription alive, reconnecting with backoff whenever it ends. Returns
// nil once ctx is cancelled.
func (srv *Server) RunStream(ctx context.Context) error {
	err := retry.Do(
		func() error {
			err := srv.consumer.Run(ctx)
			if ctx.Err() != nil {
				return retry.Unrecoverable(ctx.Err())
			}
			if err == nil {
				err = fmt.Errorf("stream ended")
			}
			return err
		},
		retry.Attempts(0),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(5*time.Second),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			streamRestarts.Inc()
			srv.logger.Warn("stream subscription ended; reconnecting", "attempt", n, "err", err)
			srv.notify(ctx, fmt.Sprintf("stream restarted (attempt %d): %v", n+1, err))
		}),
	)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (srv *Server) notify(ctx context.Context, msg string) {
	if srv.engine.Notifier == nil {
		return
	}
	if err := srv.engine.Notifier.Notify(ctx, msg); err != nil {
		srv.logger.Warn("failed to send notification", "err", err)
	}
}

func (srv *Server) RunAPI(ctx context.Context) error {
	srv.logger.Info("starting admin API", "bind", srv.httpd.Addr)
	errc := make(chan error, 1)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("admin API: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	return srv.Shutdown()
}

func (srv *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

func (srv *Server) Shutdown() error {
	srv.logger.Info("shutting down admin API")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.httpd.Shutdown(ctx)
}
