package matcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DRSN-tech/atlas-backend/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constResult(data string) ComputeFunc {
	return func(context.Context) (*Result, error) {
		return &Result{Data: []byte(data), Ext: "jpg"}, nil
	}
}

func TestGetOrCompute_Memoizes(t *testing.T) {
	c := NewCache(1 << 20)
	var calls atomic.Int32

	compute := func(context.Context) (*Result, error) {
		calls.Add(1)
		return &Result{Data: []byte("v"), Ext: "jpg"}, nil
	}

	for i := 0; i < 3; i++ {
		res, err := c.GetOrCompute(context.Background(), "k", false, compute)
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), res.Data)
	}

	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrCompute_SingleFlight(t *testing.T) {
	c := NewCache(1 << 20)
	var calls atomic.Int32
	release := make(chan struct{})

	compute := func(context.Context) (*Result, error) {
		calls.Add(1)
		<-release
		return &Result{Data: []byte("v")}, nil
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make([]*Result, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := c.GetOrCompute(context.Background(), "k", false, compute)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	// даём всем ожидающим присоединиться к полёту
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "конкурентные запросы должны коалесцироваться")
	for _, res := range results {
		assert.Equal(t, []byte("v"), res.Data)
	}
}

func TestGetOrCompute_CallerCancelDoesNotKillFlight(t *testing.T) {
	c := NewCache(1 << 20)
	release := make(chan struct{})

	compute := func(context.Context) (*Result, error) {
		<-release
		return &Result{Data: []byte("v")}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(ctx, "k", false, compute)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	// полёт завершается и результат оседает в кэше
	close(release)
	require.Eventually(t, func() bool {
		res, ok := c.lookup("k")
		return ok && string(res.Data) == "v"
	}, time.Second, 10*time.Millisecond)
}

func TestLRU_EvictsOldest(t *testing.T) {
	c := NewCache(10)

	_, err := c.GetOrCompute(context.Background(), "a", false, constResult("aaaa"))
	require.NoError(t, err)
	_, err = c.GetOrCompute(context.Background(), "b", false, constResult("bbbb"))
	require.NoError(t, err)

	// обращение к "a" делает его свежим
	_, err = c.GetOrCompute(context.Background(), "a", false, constResult("aaaa"))
	require.NoError(t, err)

	// "c" не помещается, вытесняется давний "b"
	_, err = c.GetOrCompute(context.Background(), "c", false, constResult("cccc"))
	require.NoError(t, err)

	_, okA := c.lookup("a")
	_, okB := c.lookup("b")
	_, okC := c.lookup("c")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
}

func TestLRU_ValueLargerThanCapacity(t *testing.T) {
	c := NewCache(3)

	_, err := c.GetOrCompute(context.Background(), "k", false, constResult("too large"))
	assert.ErrorIs(t, err, e.ErrCapacityExceeded)
}

func TestPinned_NotEvicted(t *testing.T) {
	c := NewCache(4)

	_, err := c.GetOrCompute(context.Background(), "pin", true, constResult("very long pinned value"))
	require.NoError(t, err)

	// закреплённое значение не входит в байтовый бюджет
	assert.Equal(t, int64(0), c.UsedBytes())

	_, err = c.GetOrCompute(context.Background(), "x", false, constResult("xxxx"))
	require.NoError(t, err)

	_, ok := c.lookup("pin")
	assert.True(t, ok)
}

func TestInvalidate(t *testing.T) {
	c := NewCache(1 << 20)

	_, err := c.GetOrCompute(context.Background(), "k", false, constResult("v"))
	require.NoError(t, err)

	c.Invalidate("k")
	_, ok := c.lookup("k")
	assert.False(t, ok)
}

func TestInvalidatePrefix(t *testing.T) {
	c := NewCache(1 << 20)
	ctx := context.Background()

	keys := []string{"deriv/img1/10x10", "deriv/img1/20x20", "deriv/img2/10x10"}
	for _, k := range keys {
		_, err := c.GetOrCompute(ctx, k, false, constResult("v"))
		require.NoError(t, err)
	}
	_, err := c.GetOrCompute(ctx, "embed/coll/1", true, constResult("emb"))
	require.NoError(t, err)

	c.InvalidatePrefix("deriv/img1/")

	_, ok := c.lookup("deriv/img1/10x10")
	assert.False(t, ok)
	_, ok = c.lookup("deriv/img1/20x20")
	assert.False(t, ok)
	_, ok = c.lookup("deriv/img2/10x10")
	assert.True(t, ok)
	_, ok = c.lookup("embed/coll/1")
	assert.True(t, ok)

	c.InvalidatePrefix("embed/")
	_, ok = c.lookup("embed/coll/1")
	assert.False(t, ok)
}
