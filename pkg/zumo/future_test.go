package zumo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_ResolvesOnce(t *testing.T) {
	f := newFuture[int]()

	var wins atomic.Int32
	var wg sync.WaitGroup

	for i := range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if f.resolve(i, nil) {
				wins.Add(1)
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	first, err := f.Wait(context.Background())
	require.NoError(t, err)

	assert.False(t, f.resolve(100, errors.New("late")))

	again, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestFuture_WaitContext(t *testing.T) {
	f := newFuture[string]()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Abandoning the wait does not resolve the future.
	select {
	case <-f.Done():
		t.Fatal("future resolved by a canceled wait")
	default:
	}
}

func TestGo(t *testing.T) {
	boom := errors.New("boom")

	ok := Go(context.Background(), func(context.Context) (int, error) { return 7, nil })
	bad := Go(context.Background(), func(context.Context) (int, error) { return 0, boom })

	v, err := waitFuture(t, ok)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = waitFuture(t, bad)
	assert.ErrorIs(t, err, boom)
}

func TestFuture_ThenRunsOnce(t *testing.T) {
	f := newFuture[int]()

	var calls atomic.Int32
	done := make(chan struct{})

	f.Then(func(v int, err error) {
		assert.Equal(t, 3, v)
		assert.NoError(t, err)
		calls.Add(1)
		close(done)
	})

	f.resolve(3, nil)
	f.resolve(4, nil)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Then callback never ran")
	}

	assert.Equal(t, int32(1), calls.Load())
}
