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

	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/resilience"
)

func TestDecodeJSON(t *testing.T) {
	type request struct {
		RunID string `json:"run_id"`
	}
	got, err := DecodeJSON[request]([]byte(`{"run_id": "r1"}`))
	require.NoError(t, err)
	assert.Equal(t, "r1", got.RunID)

	_, err = DecodeJSON[request]([]byte(`nope`))
	assert.ErrorContains(t, err, "decoding kafka message")
}

// fakeReader hands out queued messages, then blocks until ctx ends.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	fetched   int
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.fetched++
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func TestRunRetriesBeforeCommitting(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{{Offset: 1, Value: []byte("a")}, {Offset: 2, Value: []byte("b")}}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := map[string]int{}
	var mu sync.Mutex
	handler := func(ctx context.Context, key, value []byte) error {
		mu.Lock()
		defer mu.Unlock()
		calls[string(value)]++
		if string(value) == "a" && calls["a"] < 3 {
			return errors.New("store unavailable")
		}
		if string(value) == "b" {
			cancel()
		}
		return nil
	}

	err := newConsumer(reader, handler, fastRetry(), "requests").Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, calls["a"])
	assert.Equal(t, 1, calls["b"])
	assert.Equal(t, int64(1), reader.committed[0])
	assert.True(t, reader.closed)
}

func TestRunStopsOnPersistentFailure(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{{Offset: 7, Value: []byte("a")}, {Offset: 8, Value: []byte("b")}}}
	handler := func(ctx context.Context, key, value []byte) error {
		return errors.New("store unavailable")
	}

	err := newConsumer(reader, handler, fastRetry(), "requests").Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "offset 7")
	assert.ErrorContains(t, err, "store unavailable")
	assert.Empty(t, reader.committed, "the failed message is not committed")
	assert.Equal(t, 1, reader.fetched, "later messages are not fetched")
	assert.True(t, reader.closed)
}
