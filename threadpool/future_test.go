package threadpool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPromise_ResolvesOnce(t *testing.T) {
	p := newPromise[int]()
	f := p.future()
	assert.False(t, f.IsDone())

	p.resolve(7, nil)
	p.resolve(8, errors.New("late"))

	assert.True(t, f.IsDone())
	for i := 0; i < 3; i++ {
		v, err := f.Get()
		assert.NoError(t, err)
		assert.Equal(t, 7, v)
	}
}

func TestFuture_WaitHonoursContext(t *testing.T) {
	f := newPromise[string]().future()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	v, err := f.Wait(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, v)
}

func TestFuture_WaitReturnsResult(t *testing.T) {
	p := newPromise[string]()
	p.resolve("done", nil)

	v, err := p.future().Wait(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestFuture_GetWithTimeout(t *testing.T) {
	p := newPromise[int]()

	_, err, ok := p.future().GetWithTimeout(10 * time.Millisecond)
	assert.False(t, ok)
	assert.NoError(t, err)

	failure := errors.New("boom")
	p.resolve(0, failure)

	_, err, ok = p.future().GetWithTimeout(10 * time.Millisecond)
	assert.True(t, ok)
	assert.ErrorIs(t, err, failure)
}

func TestFuture_DoneChannel(t *testing.T) {
	p := newPromise[int]()
	go func() {
		time.Sleep(5 * time.Millisecond)
		p.resolve(1, nil)
	}()

	select {
	case <-p.future().Done():
	case <-time.After(time.Second):
		t.Fatal("future did not resolve")
	}
}

func TestResolvedFuture(t *testing.T) {
	f := resolvedFuture[int](ErrPoolClosed)

	assert.True(t, f.IsDone())
	v, err := f.Get()
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.Zero(t, v)
}
