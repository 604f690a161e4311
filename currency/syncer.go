package currency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

const syncActor = "rate feed"

// Syncer refreshes the reference rate of every feed-sourced currency.
// Manual currencies and event snapshots are never touched.
type Syncer struct {
	registry Registry
	feed     Feed
	limiter  *rate.Limiter
	interval time.Duration
}

// NewSyncer allows at most requestsPerSecond feed fetches, with a burst of one.
// Run only reaches that limit when interval is shorter than 1/requestsPerSecond;
// otherwise the limiter caps back-to-back SyncOnce calls.
func NewSyncer(registry Registry, feed Feed, interval time.Duration, requestsPerSecond float64) *Syncer {
	return &Syncer{
		registry: registry,
		feed:     feed,
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		interval: interval,
	}
}

// SyncOnce fetches the feed and writes the new rates. It returns how many
// currencies were updated.
func (s *Syncer) SyncOnce(ctx context.Context) (int, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	rates, err := s.feed.Fetch(ctx)
	if err != nil {
		return 0, err
	}

	currencies, err := s.registry.List(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, c := range currencies {
		if c.Source != SourceFeed {
			continue
		}
		r, ok := rates[c.Code]
		if !ok {
			slog.Warn("currency missing from rate feed", "code", c.Code)
			continue
		}
		if err := s.registry.UpdateRate(ctx, c.Code, r, syncActor); err != nil {
			return updated, fmt.Errorf("updating %s: %w", c.Code, err)
		}
		updated++
	}
	return updated, nil
}

// Run syncs immediately and then every interval until ctx is done.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		n, err := s.SyncOnce(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			slog.Error("failed to sync currency rates", "error", err)
		default:
			slog.Info("currency rates synced", "updated", n)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
