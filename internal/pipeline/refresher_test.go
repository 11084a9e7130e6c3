package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/mrms-radar-service/internal/cache"
	"github.com/couchcryptid/mrms-radar-service/internal/domain"
	"github.com/couchcryptid/mrms-radar-service/internal/gribtest"
	"github.com/couchcryptid/mrms-radar-service/internal/pipeline"
)

// --- mocks ---

type mockFetcher struct {
	payload []byte
	err     error
	calls   atomic.Int64
}

func (m *mockFetcher) Fetch(_ context.Context) ([]byte, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.payload, nil
}

type mockAnnouncer struct {
	mu        sync.Mutex
	announced []*domain.RadarProduct
	err       error
}

func (m *mockAnnouncer) Announce(_ context.Context, product *domain.RadarProduct) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.announced = append(m.announced, product)
	return nil
}

func (m *mockAnnouncer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.announced)
}

func newRefresher(f pipeline.Fetcher, a pipeline.Announcer, store pipeline.Store) *pipeline.Refresher {
	return pipeline.NewRefresher(f, newTestPipeline(), store, a,
		slog.Default(), testMetrics(), clockwork.NewRealClock(), 10*time.Millisecond)
}

func TestRefresherHappyPath(t *testing.T) {
	fetcher := &mockFetcher{payload: gribtest.BuildGzip(singleCellProduct())}
	announcer := &mockAnnouncer{}
	products := cache.New()
	r := newRefresher(fetcher, announcer, products)

	require.Error(t, r.CheckReadiness(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, r.Run(ctx))

	product, ok := products.Get()
	require.True(t, ok)
	assert.Equal(t, "2024-01-15T18:42:00.000Z", product.Metadata.Timestamp)
	assert.NoError(t, r.CheckReadiness(context.Background()))
	assert.GreaterOrEqual(t, announcer.count(), 1)
}

func TestRefresherNilAnnouncer(t *testing.T) {
	fetcher := &mockFetcher{payload: gribtest.BuildGzip(singleCellProduct())}
	products := cache.New()
	r := newRefresher(fetcher, nil, products)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, r.Run(ctx))

	_, ok := products.Get()
	assert.True(t, ok)
}

func TestRefresherFetchFailure(t *testing.T) {
	fetcher := &mockFetcher{err: errors.New("feed unreachable")}
	products := cache.New()
	r := newRefresher(fetcher, nil, products)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, r.Run(ctx))

	_, ok := products.Get()
	assert.False(t, ok)
	assert.Error(t, r.CheckReadiness(context.Background()))
	// The backoff loop keeps retrying instead of giving up after one failure.
	assert.Greater(t, fetcher.calls.Load(), int64(1))
}

func TestRefresherDecodeFailure(t *testing.T) {
	fetcher := &mockFetcher{payload: []byte("definitely not gzip")}
	products := cache.New()
	r := newRefresher(fetcher, nil, products)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, r.Run(ctx))

	_, ok := products.Get()
	assert.False(t, ok)
	assert.Error(t, r.CheckReadiness(context.Background()))
}

func TestRefresherAnnounceFailureKeepsProduct(t *testing.T) {
	fetcher := &mockFetcher{payload: gribtest.BuildGzip(singleCellProduct())}
	announcer := &mockAnnouncer{err: errors.New("broker down")}
	products := cache.New()
	r := newRefresher(fetcher, announcer, products)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, r.Run(ctx))

	// A failed announcement must not discard the decoded product.
	_, ok := products.Get()
	assert.True(t, ok)
	assert.NoError(t, r.CheckReadiness(context.Background()))
}

func TestRefresherStopsOnCancelledContext(t *testing.T) {
	fetcher := &mockFetcher{payload: gribtest.BuildGzip(singleCellProduct())}
	products := cache.New()
	r := newRefresher(fetcher, nil, products)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, r.Run(ctx))
	assert.Zero(t, fetcher.calls.Load())
}
