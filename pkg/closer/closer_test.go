package closer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClose_LIFOOrder(t *testing.T) {
	c := NewCloser(time.Second)

	var order []int
	for i := 0; i < 3; i++ {
		c.Add(func(ctx context.Context) error {
			order = append(order, i)
			return nil
		})
	}

	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, []int{2, 1, 0}, order)
}

func TestClose_CollectsErrors(t *testing.T) {
	c := NewCloser(time.Second)

	c.Add(func(ctx context.Context) error { return errors.New("db close failed") })
	c.Add(func(ctx context.Context) error { return nil })

	err := c.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db close failed")
}

func TestClose_Idempotent(t *testing.T) {
	c := NewCloser(time.Second)

	calls := 0
	c.Add(func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestClose_ForcedAfterContextCancel(t *testing.T) {
	c := NewCloser(time.Second)

	forced := make(chan struct{}, 2)
	// Первая (закроется принудительно) и зависшая вторая
	c.Add(func(ctx context.Context) error {
		forced <- struct{}{}
		return nil
	})
	c.Add(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Close(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutdown interrupted")
	assert.Len(t, forced, 1)
}
