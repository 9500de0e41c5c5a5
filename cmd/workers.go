package cmd

import (
	"context"
	"sync"
	"time"

	"moneywave/service"

	log "github.com/sirupsen/logrus"
)

// startTickerWorker runs fn immediately and then on every tick until ctx is done or the
// returned cleanup function is called. Cleanup waits for an in-flight run to finish.
func startTickerWorker(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) func() {
	ticker := time.NewTicker(interval)
	stopChan := make(chan struct{})
	var wg sync.WaitGroup
	var once sync.Once

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ticker.Stop()
		log.WithField("worker", name).Info("Worker started")

		fn(ctx)
		for {
			select {
			case <-ctx.Done():
				log.WithField("worker", name).Info("Worker shutting down (context cancelled)")
				return
			case <-stopChan:
				log.WithField("worker", name).Info("Worker shutting down (stop requested)")
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()

	return func() {
		once.Do(func() { close(stopChan) })
		wg.Wait()
	}
}

// StartExpiryWorker periodically closes active games whose betting window has passed
func StartExpiryWorker(ctx context.Context, games service.GameService, interval time.Duration) func() {
	return startTickerWorker(ctx, "game-expiry", interval, func(ctx context.Context) {
		closed, err := games.CloseExpiredGames(ctx)
		if err != nil {
			log.WithError(err).Error("Error closing expired games")
		}
		if closed > 0 {
			log.WithField("closed", closed).Info("Closed expired games")
		}
	})
}

// StartOutboxWorker periodically redelivers events left pending by failed dispatches
func StartOutboxWorker(ctx context.Context, games service.GameService, interval time.Duration, batchSize int) func() {
	return startTickerWorker(ctx, "event-outbox", interval, func(ctx context.Context) {
		delivered, err := games.DispatchAllPending(ctx, batchSize)
		if err != nil {
			log.WithError(err).Warn("Error redelivering pending game events")
		}
		if delivered > 0 {
			log.WithField("games", delivered).Info("Redelivered pending game events")
		}
	})
}
