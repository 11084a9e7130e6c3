// Package cache holds the latest processed radar product for the serving
// layer. The pipeline itself is pure; this single slot is the only state the
// service carries between requests.
package cache

import (
	"sync"

	"github.com/couchcryptid/mrms-radar-service/internal/domain"
)

// ProductCache is a single-entry, concurrency-safe holder of the most recent
// radar product. Reads during a refresh see the previous product.
type ProductCache struct {
	mu      sync.RWMutex
	product *domain.RadarProduct
}

// New creates an empty ProductCache.
func New() *ProductCache {
	return &ProductCache{}
}

// Put replaces the cached product.
func (c *ProductCache) Put(product *domain.RadarProduct) {
	c.mu.Lock()
	c.product = product
	c.mu.Unlock()
}

// Get returns the cached product, or false if no refresh has completed yet.
func (c *ProductCache) Get() (*domain.RadarProduct, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.product, c.product != nil
}
