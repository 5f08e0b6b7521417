package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
}

func (r *memReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *memReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	r.committed = append(r.committed, msgs...)
	r.mu.Unlock()
	return nil
}

func (r *memReader) Close() error { return nil }

func (r *memReader) commits() []kafka.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]kafka.Message(nil), r.committed...)
}

func start(t *testing.T, c *Consumer, h Handler) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, h) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("consumer did not stop")
		}
	})
	return cancel
}

func fastConsumer(r reader, workers int) *Consumer {
	c := newConsumer(r, workers, nil)
	c.MinBackoff = time.Millisecond
	c.MaxBackoff = 5 * time.Millisecond
	return c
}

func TestConsumer_FailedMessageRetriedBeforeNextCommit(t *testing.T) {
	r := &memReader{queue: []kafka.Message{{Partition: 0, Offset: 7}, {Partition: 0, Offset: 8}}}

	var (
		mu      sync.Mutex
		handled []int64
		fails   = 2
	)
	start(t, fastConsumer(r, 1), func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, m.Offset)
		if m.Offset == 7 && fails > 0 {
			fails--
			return errors.New("db: connection reset")
		}
		return nil
	})

	require.Eventually(t, func() bool { return len(r.commits()) == 2 }, 2*time.Second, 5*time.Millisecond)
	got := r.commits()
	assert.Equal(t, int64(7), got[0].Offset)
	assert.Equal(t, int64(8), got[1].Offset)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{7, 7, 7, 8}, handled)
}

func TestConsumer_CommitsInOrderPerPartition(t *testing.T) {
	r := &memReader{}
	for off := int64(0); off < 5; off++ {
		for p := 0; p < 3; p++ {
			r.queue = append(r.queue, kafka.Message{Partition: p, Offset: off})
		}
	}

	var once sync.Once
	start(t, fastConsumer(r, 3), func(_ context.Context, m kafka.Message) error {
		var err error
		if m.Partition == 1 && m.Offset == 2 {
			once.Do(func() { err = errors.New("transient") })
		}
		return err
	})

	require.Eventually(t, func() bool { return len(r.commits()) == 15 }, 2*time.Second, 5*time.Millisecond)
	next := map[int]int64{}
	for _, m := range r.commits() {
		assert.Equal(t, next[m.Partition], m.Offset, "partition %d", m.Partition)
		next[m.Partition] = m.Offset + 1
	}
}

func TestConsumer_StopWhileRetryingLeavesUncommitted(t *testing.T) {
	r := &memReader{queue: []kafka.Message{{Partition: 0, Offset: 3}, {Partition: 0, Offset: 4}}}

	attempts := make(chan struct{}, 100)
	cancel := start(t, fastConsumer(r, 1), func(context.Context, kafka.Message) error {
		attempts <- struct{}{}
		return errors.New("still down")
	})

	for range 3 {
		select {
		case <-attempts:
		case <-time.After(2 * time.Second):
			t.Fatal("handler was not retried")
		}
	}
	cancel()
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, r.commits())
}
