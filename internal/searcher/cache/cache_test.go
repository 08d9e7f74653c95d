package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/metrics"
)

func results(id string) []document.SearchResult {
	return []document.SearchResult{{DocumentID: id, DocumentName: id + ".pdf", FileType: document.FileTypePDF, Occurrences: 2, Excerpts: []string{"growth"}}}
}

func TestGetOrComputeCachesPerVersion(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := New(NewMemoryBackend(16, time.Minute), m)
	ctx := context.Background()
	var calls int

	compute := func(context.Context) ([]document.SearchResult, error) {
		calls++
		return results("doc1"), nil
	}

	got, hit, err := c.GetOrCompute(ctx, "s1.1", "all|first|growth", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, results("doc1"), got)

	got, hit, err = c.GetOrCompute(ctx, "s1.1", "all|first|growth", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, results("doc1"), got)
	assert.Equal(t, 1, calls)

	_, hit, err = c.GetOrCompute(ctx, "s1.2", "all|first|growth", compute)
	require.NoError(t, err)
	assert.False(t, hit, "a new version never reuses old entries")
	assert.Equal(t, 2, calls)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHitsTotal))
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	c := New(NewMemoryBackend(16, 0), nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "s1.1", "k", func(context.Context) ([]document.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	_, hit, err := c.GetOrCompute(context.Background(), "s1.1", "k", func(context.Context) ([]document.SearchResult, error) {
		return results("x"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestGetOrComputeCollapsesConcurrentCalls(t *testing.T) {
	c := New(NewMemoryBackend(16, time.Minute), nil)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), "s1.7", "slow", func(context.Context) ([]document.SearchResult, error) {
				calls.Add(1)
				<-release
				return results("doc1"), nil
			})
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

type failingBackend struct{}

func (failingBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("unreachable")
}
func (failingBackend) Set(context.Context, string, []byte) error { return errors.New("unreachable") }
func (failingBackend) Purge(context.Context) error               { return errors.New("unreachable") }

func TestBackendFailureFallsThrough(t *testing.T) {
	c := New(failingBackend{}, nil)
	got, hit, err := c.GetOrCompute(context.Background(), "s1.1", "k", func(context.Context) ([]document.SearchResult, error) {
		return results("doc1"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, results("doc1"), got)
	assert.Error(t, c.Invalidate(context.Background()))
}

func TestInvalidatePurgesMemory(t *testing.T) {
	backend := NewMemoryBackend(16, 0)
	c := New(backend, nil)
	_, _, err := c.GetOrCompute(context.Background(), "s1.1", "k", func(context.Context) ([]document.SearchResult, error) {
		return results("doc1"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, backend.Len())
	require.NoError(t, c.Invalidate(context.Background()))
	assert.Equal(t, 0, backend.Len())
}

func TestBuildKey(t *testing.T) {
	assert.NotEqual(t, buildKey("s1.1", "a"), buildKey("s1.2", "a"))
	assert.NotEqual(t, buildKey("s1.1", "a"), buildKey("s2.1", "a"))
	assert.NotEqual(t, buildKey("s1.1", "a"), buildKey("s1.1", "b"))
	assert.Equal(t, buildKey("s1.3", "a"), buildKey("s1.3", "a"))
	assert.Contains(t, buildKey("s1.3", "a"), keyPrefix)
}

func TestSharedComputeSurvivesFirstCallerCancel(t *testing.T) {
	c := New(NewMemoryBackend(16, time.Minute), nil)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	compute := func(ctx context.Context) ([]document.SearchResult, error) {
		calls.Add(1)
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return results("doc1"), nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(firstCtx, "s1.1", "k", compute)
		firstErr <- err
	}()
	<-started

	type outcome struct {
		got []document.SearchResult
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		got, _, err := c.GetOrCompute(context.Background(), "s1.1", "k", compute)
		second <- outcome{got, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)

	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, results("doc1"), res.got)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCallerDeadlineStillApplies(t *testing.T) {
	c := New(NewMemoryBackend(16, time.Minute), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err := c.GetOrCompute(ctx, "s1.1", "slow", func(ctx context.Context) ([]document.SearchResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
