package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dusk-indust/toqcheck/internal/qa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCompute_Memoizes(t *testing.T) {
	c := NewMemCache()
	var calls atomic.Int32
	fn := func(ctx context.Context) (qa.Answer, error) {
		calls.Add(1)
		return qa.Answer{Text: "1945"}, nil
	}

	key := Key{Question: "When did WW2 end?"}
	for i := 0; i < 3; i++ {
		ans, err := c.GetOrCompute(context.Background(), key, fn)
		require.NoError(t, err)
		assert.Equal(t, "1945", ans.Text)
	}

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestGetOrCompute_ContextSeparatesKeys(t *testing.T) {
	c := NewMemCache()
	var calls atomic.Int32
	fn := func(ctx context.Context) (qa.Answer, error) {
		calls.Add(1)
		return qa.Answer{Text: "x"}, nil
	}

	_, err := c.GetOrCompute(context.Background(), Key{Question: "Q?"}, fn)
	require.NoError(t, err)
	_, err = c.GetOrCompute(context.Background(), Key{Question: "Q?", Context: "passage"}, fn)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, c.Len())
}

func TestGetOrCompute_CoalescesConcurrentCallers(t *testing.T) {
	c := NewMemCache()
	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(ctx context.Context) (qa.Answer, error) {
		calls.Add(1)
		<-release
		return qa.Answer{Text: "slow"}, nil
	}

	const n = 16
	var wg sync.WaitGroup
	results := make([]qa.Answer, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ans, err := c.GetOrCompute(context.Background(), Key{Question: "dup"}, fn)
			assert.NoError(t, err)
			results[i] = ans
		}()
	}

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent lookups must coalesce")
	for _, ans := range results {
		assert.Equal(t, "slow", ans.Text)
	}
}

func TestGetOrCompute_ErrorNotCached(t *testing.T) {
	c := NewMemCache()
	var calls atomic.Int32
	fail := errors.New("model unavailable")

	fn := func(ctx context.Context) (qa.Answer, error) {
		if calls.Add(1) == 1 {
			return qa.Answer{}, fail
		}
		return qa.Answer{Text: "ok"}, nil
	}

	key := Key{Question: "flaky"}
	_, err := c.GetOrCompute(context.Background(), key, fn)
	require.ErrorIs(t, err, fail)
	assert.Equal(t, 0, c.Len())

	ans, err := c.GetOrCompute(context.Background(), key, fn)
	require.NoError(t, err)
	assert.Equal(t, "ok", ans.Text)
	assert.Equal(t, int32(2), calls.Load())
}
