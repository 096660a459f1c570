// Package cache provides caching for rendered snapshots and derived query results.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	snapshotCache = "snapshot"
	queryCache    = "query"
)

// Config contains cache configuration.
type Config struct {
	SnapshotCacheSizeMB int
	SnapshotTTL         time.Duration
	QueryCacheSize      int
}

// Recorder receives hit/miss events. *metrics.Metrics satisfies it.
type Recorder interface {
	CacheResult(cache string, hit bool)
}

// Manager manages snapshot and query caches.
type Manager struct {
	snapshots *bigcache.BigCache
	queries   *lru.Cache[string, []byte]
	recorder  Recorder
}

// NewManager creates a new cache manager. recorder may be nil.
func NewManager(cfg Config, recorder Recorder) (*Manager, error) {
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = 10 * time.Minute
	}
	if cfg.QueryCacheSize <= 0 {
		cfg.QueryCacheSize = 1000
	}

	snapshotConfig := bigcache.Config{
		Shards:             64,
		LifeWindow:         cfg.SnapshotTTL,
		CleanWindow:        cfg.SnapshotTTL / 2,
		MaxEntriesInWindow: 10000,
		MaxEntrySize:       512 * 1024, // one PNG
		HardMaxCacheSize:   cfg.SnapshotCacheSizeMB,
		Verbose:            false,
	}

	snapshots, err := bigcache.New(context.Background(), snapshotConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot cache: %w", err)
	}

	queries, err := lru.New[string, []byte](cfg.QueryCacheSize)
	if err != nil {
		snapshots.Close()
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}

	return &Manager{
		snapshots: snapshots,
		queries:   queries,
		recorder:  recorder,
	}, nil
}

func (m *Manager) record(cache string, hit bool) {
	if m.recorder != nil {
		m.recorder.CacheResult(cache, hit)
	}
}

// GetSnapshot retrieves a rendered PNG.
func (m *Manager) GetSnapshot(key string) ([]byte, bool) {
	data, err := m.snapshots.Get(key)
	m.record(snapshotCache, err == nil)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetSnapshot stores a rendered PNG.
func (m *Manager) SetSnapshot(key string, data []byte) error {
	return m.snapshots.Set(key, data)
}

// GetQuery retrieves a query result from cache.
func (m *Manager) GetQuery(key string) ([]byte, bool) {
	data, ok := m.queries.Get(key)
	m.record(queryCache, ok)
	return data, ok
}

// SetQuery stores a query result in cache.
func (m *Manager) SetQuery(key string, data []byte) {
	m.queries.Add(key, data)
}

// Purge drops every entry. Keys carry the dataset generation, so this only
// reclaims memory after a reload.
func (m *Manager) Purge() {
	m.queries.Purge()
	m.snapshots.Reset()
}

// QueryKey builds a key for a derived JSON result. Params are sorted so the
// key does not depend on map iteration order.
func QueryKey(kind, plot string, generation uint64, params map[string]string) string {
	base := fmt.Sprintf("%s:%s@%d", kind, plot, generation)
	if len(params) == 0 {
		return base
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + params[k]
	}
	return base + "?" + strings.Join(parts, "&")
}

// SnapshotKey builds a key for a rendered snapshot.
func SnapshotKey(plot string, generation uint64, mode string, lo, hi, hover, width, height int) string {
	base := fmt.Sprintf("png:%s@%d", plot, generation)
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d|%d|%dx%d", mode, lo, hi, hover, width, height)
	return base + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"snapshot_cache_len": m.snapshots.Len(),
		"snapshot_cache_cap": m.snapshots.Capacity(),
		"query_cache_len":    m.queries.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.snapshots.Close()
}
