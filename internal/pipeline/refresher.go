package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/mrms-radar-service/internal/domain"
	"github.com/couchcryptid/mrms-radar-service/internal/observability"
)

// Fetcher downloads the latest compressed product from the upstream feed.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Decoder turns compressed product bytes into a rendered RadarProduct.
type Decoder interface {
	Process(ctx context.Context, compressed []byte) (*domain.RadarProduct, error)
}

// Store holds the latest processed product for the serving layer.
type Store interface {
	Put(product *domain.RadarProduct)
}

// Announcer publishes a notification for each refreshed product.
type Announcer interface {
	Announce(ctx context.Context, product *domain.RadarProduct) error
}

// Refresher drives the fetch-decode-store loop on a fixed interval.
type Refresher struct {
	fetcher   Fetcher
	decoder   Decoder
	store     Store
	announcer Announcer // nil when announcements are disabled
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	interval  time.Duration
	ready     atomic.Bool
}

// NewRefresher creates a Refresher. Pass a nil announcer to disable
// announcements.
func NewRefresher(f Fetcher, d Decoder, s Store, a Announcer,
	logger *slog.Logger, metrics *observability.Metrics,
	clock clockwork.Clock, interval time.Duration) *Refresher {
	return &Refresher{
		fetcher:   f,
		decoder:   d,
		store:     s,
		announcer: a,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
		interval:  interval,
	}
}

// CheckReadiness returns nil once at least one product has been processed,
// or an error describing why the service is not yet ready.
func (r *Refresher) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no radar product has been processed yet")
	}
	return nil
}

// Run executes the refresh loop until the context is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.Info("refresher started", "interval", r.interval)
	r.metrics.RefresherRunning.Set(1)
	defer r.metrics.RefresherRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	// Keeps retry storms short while avoiding tight loops during feed outages.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if r.refreshOnce(ctx) {
			backoff = 200 * time.Millisecond
			if !r.sleep(ctx, r.interval) {
				return nil
			}
			continue
		}

		if ctx.Err() != nil {
			return nil
		}
		if !r.sleep(ctx, backoff) {
			return nil
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

// refreshOnce runs one fetch-decode-store-announce cycle. Returns false on
// failure so the caller can back off.
func (r *Refresher) refreshOnce(ctx context.Context) bool {
	fetchStart := time.Now()
	compressed, err := r.fetcher.Fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("fetch failed", "error", err)
			r.metrics.FetchErrors.Inc()
		}
		return false
	}
	r.metrics.FetchDuration.Observe(time.Since(fetchStart).Seconds())
	r.metrics.ProductsFetched.Inc()

	product, err := r.decoder.Process(ctx, compressed)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("decode failed", "error", err, "compressed_bytes", len(compressed))
			r.metrics.DecodeErrors.Inc()
		}
		return false
	}

	r.store.Put(product)
	r.ready.Store(true)
	r.logger.Info("product refreshed",
		"timestamp", product.Metadata.Timestamp,
		"width", product.Metadata.Width,
		"height", product.Metadata.Height,
		"png_bytes", len(product.PNG),
	)

	if r.announcer != nil {
		if err := r.announcer.Announce(ctx, product); err != nil {
			// A missed announcement is not worth refetching the product for.
			r.logger.Warn("announce failed", "error", err)
		} else {
			r.metrics.Announcements.Inc()
		}
	}
	return true
}

// sleep waits for d on the refresher clock. Returns false if the context was
// cancelled first.
func (r *Refresher) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-r.clock.After(d):
		return true
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
