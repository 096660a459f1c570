package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/criteria-atlas/server/internal/cache"
	"github.com/criteria-atlas/server/internal/data/csvstore"
	"github.com/criteria-atlas/server/internal/metrics"
	"github.com/criteria-atlas/server/internal/plot"
	"github.com/criteria-atlas/server/internal/render"
)

type fakeSource struct {
	mu        sync.Mutex
	points    []plot.DataPoint
	labels    []plot.LabelPoint
	ranks     []plot.RankEntry
	labelsErr error
	calls     atomic.Int32
	delay     time.Duration
}

func (f *fakeSource) Name() string    { return "fake" }
func (f *fakeSource) Paths() []string { return nil }

func (f *fakeSource) Points(ctx context.Context) ([]plot.DataPoint, error) {
	f.calls.Add(1)
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]plot.DataPoint(nil), f.points...), nil
}

func (f *fakeSource) Labels(ctx context.Context) ([]plot.LabelPoint, error) {
	if f.labelsErr != nil {
		return nil, f.labelsErr
	}
	return f.labels, nil
}

func (f *fakeSource) Ranks(ctx context.Context) ([]plot.RankEntry, error) {
	return f.ranks, nil
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		points: []plot.DataPoint{
			{Cluster: 1, Year: 1995, X: 0, Y: 0},
			{Cluster: 2, Year: 2005, X: 2, Y: 2},
			{Cluster: 2, Year: 2015, X: 4, Y: 1},
		},
		labels: []plot.LabelPoint{{Cluster: 2, Text: "ECOG", X: 3, Y: 1}},
		ranks: []plot.RankEntry{
			{Cluster: 1, Text: "Age", Rank: 2},
			{Cluster: 2, Text: "ECOG", Rank: 1},
		},
	}
}

func newTestService(t *testing.T, src Source) *PlotService {
	t.Helper()
	cm, err := cache.NewManager(cache.Config{SnapshotCacheSizeMB: 8, SnapshotTTL: time.Minute, QueryCacheSize: 16}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cm.Close() })
	return NewPlotService(PlotServiceConfig{
		Name:     "test",
		Source:   src,
		Cache:    cm,
		Renderer: render.NewSnapshotRenderer(render.Config{Width: 120, Height: 90}),
		Metrics:  metrics.New(),
		Logger:   zap.NewNop(),
		BinWidth: 1,
	})
}

func TestLazyLoadAndSingleflight(t *testing.T) {
	src := newFakeSource()
	src.delay = 20 * time.Millisecond
	svc := newTestService(t, src)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Snapshot(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, src.calls.Load(), int32(2))

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Dataset.Points, 3)
	assert.NotZero(t, snap.Generation)
}

func TestPartialFailureKeepsOtherResources(t *testing.T) {
	src := newFakeSource()
	src.labelsErr = errors.New("disk on fire")
	svc := newTestService(t, src)
	ctx := context.Background()

	points, err := svc.Points(ctx)
	require.NoError(t, err)
	assert.Len(t, points, 3)

	_, err = svc.Labels(ctx)
	assert.True(t, errors.Is(err, ErrNotLoaded))

	ranks, err := svc.Ranks(ctx)
	require.NoError(t, err)
	assert.Len(t, ranks, 2)
}

func TestAllResourcesFailing(t *testing.T) {
	svc := newTestService(t, csvstore.NewReader("empty", "", "", ""))
	_, err := svc.Snapshot(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, csvstore.ErrNoFile))
}

func TestReloadBumpsGenerationAndInvalidatesDerived(t *testing.T) {
	src := newFakeSource()
	svc := newTestService(t, src)
	ctx := context.Background()
	q := FullQuery(plot.ModeClusters)

	build := func(f plot.Frame) interface{} { return f.Sidebar }
	first, err := svc.DerivedJSON(ctx, "sidebar", q, build)
	require.NoError(t, err)

	src.mu.Lock()
	src.points = append(src.points, plot.DataPoint{Cluster: 1, Year: 2020})
	src.mu.Unlock()

	again, err := svc.DerivedJSON(ctx, "sidebar", q, build)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	snap, err := svc.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Generation)

	after, err := svc.DerivedJSON(ctx, "sidebar", q, build)
	require.NoError(t, err)
	var rows []plot.SidebarRow
	require.NoError(t, json.Unmarshal(after, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].Count)
	assert.Equal(t, 2, rows[1].Count)
}

func TestFrameRespectsQuery(t *testing.T) {
	svc := newTestService(t, newFakeSource())
	f, _, err := svc.Frame(context.Background(), Query{Mode: plot.ModeClusters, Range: plot.Range{Lo: 2000, Hi: 2010}, Hover: 2})
	require.NoError(t, err)

	require.Len(t, f.Filtered, 1)
	assert.Equal(t, 2005, f.Filtered[0].Year)
	require.Len(t, f.Sidebar, 2)
	assert.Equal(t, 2, f.Sidebar[0].Cluster)
	assert.True(t, f.Sidebar[0].Highlighted)
}

func TestFitAndSnapshot(t *testing.T) {
	svc := newTestService(t, newFakeSource())
	ctx := context.Background()

	fit, _, ok, err := svc.Fit(ctx, FullQuery(plot.ModeYears), 800, 600)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Greater(t, fit.Zoom, 0.0)

	png1, err := svc.RenderSnapshot(ctx, FullQuery(plot.ModeClusters), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png1[:4])

	png2, err := svc.RenderSnapshot(ctx, FullQuery(plot.ModeClusters), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, png1, png2)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	points := filepath.Join(dir, "database.csv")
	require.NoError(t, os.WriteFile(points, []byte("CLUSTER,YEAR,X,Y\n1,2000,0,0\n"), 0644))

	svc := newTestService(t, csvstore.NewReader("w", points, "", ""))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := svc.Snapshot(ctx)
	require.NoError(t, err)

	w, err := NewWatcher([]Reloader{svc}, zap.NewNop())
	require.NoError(t, err)
	defer w.Close()
	w.SetDebounce(10 * time.Millisecond)
	reloaded := make(chan error, 4)
	w.OnReload = func(name string, err error) { reloaded <- err }
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(points, []byte("CLUSTER,YEAR,X,Y\n1,2000,0,0\n2,2001,1,1\n"), 0644))

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}
	got, err := svc.Points(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestDebouncerReplacedTimerKeepsNewerEntry(t *testing.T) {
	d := newDebouncer(time.Hour)
	defer d.stop()

	d.trigger("breast", func() {})
	replaced := d.pending["breast"]
	d.trigger("breast", func() {})
	current := d.pending["breast"]
	require.NotSame(t, replaced, current)

	assert.False(t, d.done("breast", replaced))
	assert.Same(t, current, d.pending["breast"])

	assert.True(t, d.done("breast", current))
	assert.Empty(t, d.pending)
}

func TestDebouncerCollapsesBurst(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	defer d.stop()

	var calls atomic.Int32
	for i := 0; i < 5; i++ {
		d.trigger("breast", func() { calls.Add(1) })
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.EqualValues(t, 1, calls.Load())

	d.mu.Lock()
	assert.Empty(t, d.pending)
	d.mu.Unlock()
}
