package tsne

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DRSN-tech/atlas-backend/pkg/logger"
)

func TestRunner_RunsJob(t *testing.T) {
	r := NewRunner(2, logger.NewSlogLogger())
	defer r.Close()

	done := make(chan struct{})
	r.Launch("coll-1", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job was not executed")
	}
}

func TestRunner_RelaunchCancelsPrevious(t *testing.T) {
	r := NewRunner(2, logger.NewSlogLogger())
	defer r.Close()

	firstStarted := make(chan struct{})
	firstCancelled := make(chan struct{})
	r.Launch("coll-1", func(ctx context.Context) error {
		close(firstStarted)
		<-ctx.Done()
		close(firstCancelled)
		return ctx.Err()
	})
	<-firstStarted

	second := make(chan struct{})
	r.Launch("coll-1", func(ctx context.Context) error {
		close(second)
		return nil
	})

	select {
	case <-firstCancelled:
	case <-time.After(time.Second):
		t.Fatal("previous run was not cancelled")
	}
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("new run did not start")
	}
}

func TestRunner_Cancel(t *testing.T) {
	r := NewRunner(1, logger.NewSlogLogger())
	defer r.Close()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	r.Launch("coll-1", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})
	<-started

	r.Cancel("coll-1")

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("run was not cancelled")
	}
}

func TestRunner_WorkerLimit(t *testing.T) {
	r := NewRunner(1, logger.NewSlogLogger())
	defer r.Close()

	var concurrent, peak int32
	release := make(chan struct{})
	done := make(chan struct{}, 3)
	for _, id := range []string{"a", "b", "c"} {
		r.Launch(id, func(ctx context.Context) error {
			cur := atomic.AddInt32(&concurrent, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
					break
				}
			}
			<-release
			atomic.AddInt32(&concurrent, -1)
			done <- struct{}{}
			return nil
		})
	}

	time.Sleep(100 * time.Millisecond)
	close(release)
	for i := 0; i < 3; i++ {
		<-done
	}
	require.NoError(t, r.Close())

	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
}

func TestRunner_LaunchAfterCloseRunsJobCancelled(t *testing.T) {
	r := NewRunner(1, logger.NewSlogLogger())
	require.NoError(t, r.Close())

	ran := make(chan error, 1)
	r.Launch("coll-1", func(ctx context.Context) error {
		ran <- ctx.Err()
		return ctx.Err()
	})

	select {
	case err := <-ran:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("job was not invoked after Close")
	}
}

func TestRunner_CancelledQueuedRunStillInvokesJob(t *testing.T) {
	r := NewRunner(1, logger.NewSlogLogger())
	defer r.Close()

	block := make(chan struct{})
	defer close(block)
	started := make(chan struct{})
	r.Launch("busy", func(ctx context.Context) error {
		close(started)
		<-block
		return nil
	})
	<-started

	// второй запуск стоит в очереди за занятым воркером
	ran := make(chan error, 1)
	r.Launch("queued", func(ctx context.Context) error {
		ran <- ctx.Err()
		return ctx.Err()
	})
	r.Cancel("queued")

	select {
	case err := <-ran:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled queued job was never invoked, waiters would hang")
	}
}
