package preview

import (
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultEntries is the default entry bound of the cache
	DefaultEntries = 16
	// DefaultRowBudget is the default total row footprint of the cache
	DefaultRowBudget = 64 * 1024
)

// Cache memoizes preview results by plan hash. Entries are never stale
// because plan identity fully determines the result; bounds are an entry
// count and a total row footprint. The cache itself is owned by the
// session worker; in-flight execution is deduplicated per hash so
// concurrent requests for the same plan attach to one executor.
type Cache struct {
	entries  *lru.Cache[uint64, *Result]
	group    singleflight.Group
	rowCount int
	rows     int

	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
	inflight  prometheus.Gauge
}

// NewCache creates a Cache bounded by maxEntries and rowBudget rows. reg
// may be nil to skip metric registration.
func NewCache(maxEntries, rowBudget int, reg prometheus.Registerer) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultEntries
	}
	if rowBudget <= 0 {
		rowBudget = DefaultRowBudget
	}
	c := &Cache{rowCount: rowBudget}
	factory := promauto.With(reg)
	c.hits = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "dafr", Subsystem: "preview_cache", Name: "hits_total",
		Help: "Preview requests answered from the cache.",
	})
	c.misses = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "dafr", Subsystem: "preview_cache", Name: "misses_total",
		Help: "Preview requests that scheduled an execution.",
	})
	c.evictions = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "dafr", Subsystem: "preview_cache", Name: "evictions_total",
		Help: "Preview results evicted by entry or row bounds.",
	})
	c.inflight = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "dafr", Subsystem: "preview_cache", Name: "inflight",
		Help: "Preview executions currently running.",
	})
	entries, err := lru.NewWithEvict[uint64, *Result](maxEntries, func(_ uint64, res *Result) {
		c.rows -= res.NumCachedRows()
		c.evictions.Inc()
	})
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

// Get returns the cached result for a plan hash
func (c *Cache) Get(hash uint64) (*Result, bool) {
	res, ok := c.entries.Get(hash)
	if ok {
		c.hits.Inc()
	} else {
		c.misses.Inc()
	}
	return res, ok
}

// Add installs a computed result and enforces the row footprint bound
func (c *Cache) Add(hash uint64, res *Result) {
	if prev, ok := c.entries.Peek(hash); ok {
		c.rows -= prev.NumCachedRows()
	}
	c.entries.Add(hash, res)
	c.rows += res.NumCachedRows()
	for c.rows > c.rowCount && c.entries.Len() > 1 {
		c.entries.RemoveOldest()
	}
}

// Purge drops every entry
func (c *Cache) Purge() {
	c.entries.Purge()
	c.rows = 0
}

// Len returns the number of cached results
func (c *Cache) Len() int { return c.entries.Len() }

// Execute runs compute for a plan hash with single-flight discipline:
// concurrent calls for the same hash share one execution. The returned
// channel yields the shared result.
func (c *Cache) Execute(hash uint64, compute func() (*Result, error)) <-chan singleflight.Result {
	return c.group.DoChan(strconv.FormatUint(hash, 16), func() (interface{}, error) {
		c.inflight.Inc()
		defer c.inflight.Dec()
		return compute()
	})
}
