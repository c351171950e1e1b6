package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobweb-crawl/cobweb/internal/message"
)

func TestPutAndGetFIFOOrder(t *testing.T) {
	q := New(8)
	defer q.Close()

	a := message.New("https://example.com/a")
	b := message.New("https://example.com/b")
	q.Put(a)
	q.Put(b)

	ctx := context.Background()
	got1, ok := q.Get(ctx)
	require.True(t, ok)
	got2, ok := q.Get(ctx)
	require.True(t, ok)

	assert.Same(t, a, got1)
	assert.Same(t, b, got2)
}

func TestTryPutFailsWhenFull(t *testing.T) {
	q := New(1)
	defer q.Close()

	q.Put(message.New("https://example.com/a"))
	assert.False(t, q.TryPut(message.New("https://example.com/b")), "TryPut must fail when FIFO is full")
}

func TestPutLaterGraduatesAfterDelay(t *testing.T) {
	q := New(8)
	defer q.Close()

	req := message.New("https://example.com/a")
	q.PutLater(req, 60*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok := q.Get(ctx)
	assert.False(t, ok, "item must not be available before its release time")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel2()
	got, ok := q.Get(ctx2)
	require.True(t, ok)
	assert.Same(t, req, got)
}

func TestGetRespectsContextCancellation(t *testing.T) {
	q := New(8)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, ok := q.Get(ctx)
	assert.False(t, ok)
}
