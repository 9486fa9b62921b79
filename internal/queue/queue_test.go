package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thuongerikdev/FilmZone-sub003/internal/model"
)

func item(jobID string) model.WorkItem {
	return model.NewWorkItem(&model.UploadContext{JobID: jobID})
}

func TestFIFOOrder(t *testing.T) {
	q := New(8)
	require.NoError(t, q.Enqueue(item("a")))
	require.NoError(t, q.Enqueue(item("b")))
	require.NoError(t, q.Enqueue(item("c")))
	assert.Equal(t, 3, q.Len())

	assert.Equal(t, "a", (<-q.Items()).Ctx.JobID)
	assert.Equal(t, "b", (<-q.Items()).Ctx.JobID)
	assert.Equal(t, "c", (<-q.Items()).Ctx.JobID)
}

func TestEnqueueAfterClose(t *testing.T) {
	q := New(4)
	q.Close()
	assert.ErrorIs(t, q.Enqueue(item("late")), ErrClosed)
}

func TestCloseIsIdempotent(t *testing.T) {
	q := New(4)
	q.Close()
	assert.NotPanics(t, func() { q.Close() })
}

func TestCloseDrainsBufferedItems(t *testing.T) {
	q := New(8)
	require.NoError(t, q.Enqueue(item("a")))
	require.NoError(t, q.Enqueue(item("b")))
	q.Close()

	var got []string
	for it := range q.Items() {
		got = append(got, it.Ctx.JobID)
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestDefaultCapacity(t *testing.T) {
	q := New(0)
	for i := 0; i < DefaultCapacity; i++ {
		require.NoError(t, q.Enqueue(item("x")))
	}
	assert.Equal(t, DefaultCapacity, q.Len())
}

// Many producers, one consumer: every item is delivered exactly once.
func TestConcurrentProducersSingleConsumer(t *testing.T) {
	const producers = 8
	const perProducer = 50

	q := New(16)
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, q.Enqueue(item("job")))
			}
		}()
	}

	done := make(chan int)
	go func() {
		count := 0
		for range q.Items() {
			count++
		}
		done <- count
	}()

	wg.Wait()
	q.Close()

	select {
	case count := <-done:
		assert.Equal(t, producers*perProducer, count)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain the queue")
	}
}
