package view

import (
	"context"
	"time"

	"github.com/criteria-atlas/server/internal/plot"
)

// Fetcher retrieves the collections of a plot. *client.Client implements it.
type Fetcher interface {
	Points(ctx context.Context, name string) ([]plot.DataPoint, error)
	Labels(ctx context.Context, name string) ([]plot.LabelPoint, error)
	Ranks(ctx context.Context, name string) ([]plot.RankEntry, error)
}

// Loader turns a request key into three independent fetches.
type Loader struct {
	fetcher Fetcher
	timeout time.Duration
}

// NewLoader creates a loader. A non-positive timeout disables the per-fetch
// deadline.
func NewLoader(f Fetcher, timeout time.Duration) *Loader {
	return &Loader{fetcher: f, timeout: timeout}
}

// Fetches returns one function per collection. Each runs on its own and
// returns a Result tagged with key, so whichever finishes first can be
// applied first.
func (l *Loader) Fetches(ctx context.Context, key RequestKey) []func() Result {
	return []func() Result{
		func() Result {
			ctx, cancel := l.withTimeout(ctx)
			defer cancel()
			points, err := l.fetcher.Points(ctx, key.Plot)
			return Result{Key: key, Kind: KindPoints, Points: points, Err: err}
		},
		func() Result {
			ctx, cancel := l.withTimeout(ctx)
			defer cancel()
			labels, err := l.fetcher.Labels(ctx, key.Plot)
			return Result{Key: key, Kind: KindLabels, Labels: labels, Err: err}
		},
		func() Result {
			ctx, cancel := l.withTimeout(ctx)
			defer cancel()
			ranks, err := l.fetcher.Ranks(ctx, key.Plot)
			return Result{Key: key, Kind: KindRanks, Ranks: ranks, Err: err}
		},
	}
}

// Start runs the fetches concurrently and sends each result to out as it
// completes. It does not close out.
func (l *Loader) Start(ctx context.Context, key RequestKey, out chan<- Result) {
	for _, fetch := range l.Fetches(ctx, key) {
		go func(fetch func() Result) {
			r := fetch()
			select {
			case out <- r:
			case <-ctx.Done():
			}
		}(fetch)
	}
}

func (l *Loader) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.timeout)
}
