package eventloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestLoopRunsInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := New(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	var got []int
	var wg sync.WaitGroup
	wg.Add(1)
	for i := 0; i < 10; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	l.Post(wg.Done)
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)

	l.Stop()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestLoopRejectsAfterStop(t *testing.T) {
	l := New(1)
	l.Stop()

	assert.False(t, l.Post(func() {}))
	assert.NoError(t, l.Run(context.Background()))
}

func TestLoopContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, l.Run(ctx), context.Canceled)
	assert.False(t, l.Post(func() {}))
}

func TestPosterFunc(t *testing.T) {
	called := false
	p := PosterFunc(func(fn func()) bool { fn(); return true })

	assert.True(t, p.Post(func() { called = true }))
	assert.True(t, called)
}
