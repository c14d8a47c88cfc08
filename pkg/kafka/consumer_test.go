package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type memReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []kafka.Message
}

func newMemReader(values ...string) *memReader {
	r := &memReader{msgs: make(chan kafka.Message, len(values))}
	for i, v := range values {
		r.msgs <- kafka.Message{Offset: int64(i), Value: []byte(v)}
	}
	return r
}

func (r *memReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *memReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *memReader) Close() error { return nil }

func (r *memReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type memWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

type funcHandler struct {
	topic string
	fn    func([]byte) error
}

func (h funcHandler) Topic() string { return h.topic }
func (h funcHandler) Handle(_ context.Context, b []byte) error { return h.fn(b) }

type outcome struct {
	attempts int
	err      error
}

func runConsumer(t *testing.T, reader *memReader, dlq *memWriter, n int, fn func([]byte) error) []outcome {
	t.Helper()
	done := make(chan outcome, n)
	c, err := NewConsumer(nil,
		WithReaderFactory(func(*ConsumerConfig, string) Reader { return reader }),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
		WithConsumerDLQ("dlq", NewProducerWithWriter(dlq, "none")),
		WithHandledCallback(func(_ string, attempts int, err error) { done <- outcome{attempts, err} }),
	)
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	if err := c.RegisterHandler(funcHandler{topic: "jobs", fn: fn}); err != nil {
		t.Fatal(err)
	}
	if err := c.RegisterHandler(funcHandler{topic: "jobs", fn: fn}); err == nil {
		t.Fatal("expected duplicate handler error")
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	var out []outcome
	for i := 0; i < n; i++ {
		select {
		case o := <-done:
			out = append(out, o)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for message")
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	return out
}

func TestConsumerCommitsHandledMessages(t *testing.T) {
	reader, dlq := newMemReader("a", "b"), &memWriter{}
	out := runConsumer(t, reader, dlq, 2, func([]byte) error { return nil })
	for _, o := range out {
		if o.err != nil || o.attempts != 1 {
			t.Fatalf("outcome = %+v", o)
		}
	}
	if reader.commits() != 2 || len(dlq.msgs) != 0 {
		t.Fatalf("commits = %d dlq = %d", reader.commits(), len(dlq.msgs))
	}
}

func TestConsumerRetriesThenDeadLetters(t *testing.T) {
	reader, dlq := newMemReader("boom"), &memWriter{}
	out := runConsumer(t, reader, dlq, 1, func([]byte) error { return errors.New("transient") })
	if out[0].attempts != 3 || out[0].err == nil {
		t.Fatalf("outcome = %+v", out[0])
	}
	if len(dlq.msgs) != 1 || dlq.msgs[0].Topic != "dlq" || string(dlq.msgs[0].Value) != "boom" {
		t.Fatalf("dlq = %+v", dlq.msgs)
	}
	var source string
	for _, h := range dlq.msgs[0].Headers {
		if h.Key == "source_topic" {
			source = string(h.Value)
		}
	}
	if source != "jobs" {
		t.Fatalf("source_topic header = %q", source)
	}
	if reader.commits() != 1 {
		t.Fatalf("dead-lettered message must be committed, commits = %d", reader.commits())
	}
}

func TestConsumerPermanentAndPanicSkipRetries(t *testing.T) {
	reader, dlq := newMemReader("bad", "panic"), &memWriter{}
	out := runConsumer(t, reader, dlq, 2, func(b []byte) error {
		if string(b) == "panic" {
			panic("handler bug")
		}
		return Permanent(errors.New("malformed"))
	})
	for _, o := range out {
		if o.attempts != 1 || !IsPermanent(o.err) {
			t.Fatalf("outcome = %+v", o)
		}
	}
	if len(dlq.msgs) != 2 {
		t.Fatalf("dlq = %d", len(dlq.msgs))
	}
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt < 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 100*time.Millisecond, attempt)
		if d <= 0 || d > 100*time.Millisecond {
			t.Fatalf("attempt %d: %v", attempt, d)
		}
	}
}
