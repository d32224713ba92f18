package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bluesky-social/kyupikon/bot/engine"
)

// Runs unprompted jobs on independent tickers. Job errors are logged and dropped.
type Scheduler struct {
	Engine *engine.Engine
	Logger *slog.Logger

	// zero disables the job
	PostInterval time.Duration
	// zero disables the job
	FavoriteScanInterval time.Duration
	FavoriteScanQuery    string
	FavoriteScanLimit    int
}

// Blocks until ctx is cancelled and all running jobs have returned.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup

	if s.PostInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.every(ctx, "post", s.PostInterval, func(ctx context.Context) error {
				_, err := s.Engine.PostScheduled(ctx)
				return err
			})
		}()
	}

	if s.FavoriteScanInterval > 0 {
		s.Logger.Warn("favorite-scan job is deprecated; mention keyword favorites are the supported path",
			"interval", s.FavoriteScanInterval, "query", s.FavoriteScanQuery)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.every(ctx, "favorite-scan", s.FavoriteScanInterval, func(ctx context.Context) error {
				_, err := s.Engine.ScanFavorites(ctx, s.FavoriteScanQuery, s.FavoriteScanLimit)
				return err
			})
		}()
	}

	wg.Wait()
}

func (s *Scheduler) every(ctx context.Context, name string, interval time.Duration, job func(ctx context.Context) error) {
	logger := s.Logger.With("job", name)
	logger.Info("scheduled job starting", "interval", interval)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			start := time.Now()
			if err := job(ctx); err != nil {
				logger.Error("scheduled job failed", "err", err)
				continue
			}
			logger.Debug("scheduled job complete", "duration", time.Since(start))
		}
	}
}
