package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	hits, misses map[string]int
}

func (r *countingRecorder) CacheResult(cache string, hit bool) {
	if hit {
		r.hits[cache]++
		return
	}
	r.misses[cache]++
}

func TestQueryKey(t *testing.T) {
	t.Run("noParams", func(t *testing.T) {
		assert.Equal(t, "groups:breast@3", QueryKey("groups", "breast", 3, nil))
	})

	t.Run("sortedParams", func(t *testing.T) {
		a := QueryKey("groups", "breast", 3, map[string]string{"mode": "years", "lo": "1990", "hi": "2000"})
		assert.Equal(t, "groups:breast@3?hi=2000&lo=1990&mode=years", a)
	})

	t.Run("generationChangesKey", func(t *testing.T) {
		assert.NotEqual(t, QueryKey("sidebar", "breast", 1, nil), QueryKey("sidebar", "breast", 2, nil))
	})
}

func TestSnapshotKey(t *testing.T) {
	k1 := SnapshotKey("breast", 1, "clusters", 1990, 2000, -1, 800, 600)
	k2 := SnapshotKey("breast", 1, "clusters", 1990, 2000, -1, 800, 600)
	k3 := SnapshotKey("breast", 1, "years", 1990, 2000, -1, 800, 600)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Contains(t, k1, "png:breast@1:")
}

func TestManagerRoundTripAndRecorder(t *testing.T) {
	rec := &countingRecorder{hits: map[string]int{}, misses: map[string]int{}}
	m, err := NewManager(Config{SnapshotCacheSizeMB: 8, SnapshotTTL: time.Minute, QueryCacheSize: 4}, rec)
	require.NoError(t, err)
	defer m.Close()

	_, ok := m.GetQuery("q")
	assert.False(t, ok)
	m.SetQuery("q", []byte(`[]`))
	got, ok := m.GetQuery("q")
	require.True(t, ok)
	assert.Equal(t, []byte(`[]`), got)

	_, ok = m.GetSnapshot("s")
	assert.False(t, ok)
	require.NoError(t, m.SetSnapshot("s", []byte{0x89, 'P', 'N', 'G'}))
	_, ok = m.GetSnapshot("s")
	assert.True(t, ok)

	assert.Equal(t, 1, rec.hits["query"])
	assert.Equal(t, 1, rec.misses["query"])
	assert.Equal(t, 1, rec.hits["snapshot"])
	assert.Equal(t, 1, rec.misses["snapshot"])

	m.Purge()
	_, ok = m.GetQuery("q")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Stats()["query_cache_len"])
}
