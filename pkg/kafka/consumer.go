package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	applogger "BoostLab/pkg/logger"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Reader is the subset of kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// permanentError marks a failure that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the consumer skips retries and goes straight to the DLQ.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// ConsumerOption configures Consumer.
type ConsumerOption func(*ConsumerConfig)

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	WorkerCount int
	BufferSize  int
	RetryMax    int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	DLQTopic    string
	MinBytes    int
	MaxBytes    int
	NewReader   func(cfg *ConsumerConfig, topic string) Reader
	DLQ         *Producer
	OnHandled   func(topic string, attempts int, err error)
}

func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) { c.Brokers = brokers }
}

func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) { c.GroupID = groupID }
}

// WithConsumerWorkers sets number of worker goroutines.
func WithConsumerWorkers(count int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if count > 0 {
			c.WorkerCount = count
		}
	}
}

// WithConsumerRetry configures retry attempts and backoff range.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}

// WithConsumerDLQ forwards messages that exhausted their retries to topic.
func WithConsumerDLQ(topic string, p *Producer) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.DLQTopic = topic
		c.DLQ = p
	}
}

// WithConsumerFetch sets fetch min/max bytes.
func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.MinBytes = minBytes
		c.MaxBytes = maxBytes
	}
}

// WithConsumerBufferSize sets the internal channel buffer size.
func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

// WithReaderFactory replaces the kafka-go reader, e.g. with an in-memory one.
func WithReaderFactory(fn func(cfg *ConsumerConfig, topic string) Reader) ConsumerOption {
	return func(c *ConsumerConfig) { c.NewReader = fn }
}

// WithHandledCallback observes every finished message.
func WithHandledCallback(fn func(topic string, attempts int, err error)) ConsumerOption {
	return func(c *ConsumerConfig) { c.OnHandled = fn }
}

// Consumer fans messages from one reader per topic into a worker pool.
// Offsets are committed after handling, or after the DLQ write.
type Consumer struct {
	cfg      *ConsumerConfig
	l        *applogger.Logger
	readers  map[string]Reader
	handlers map[string]MessageHandler
	msgChan  chan kafka.Message
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(l *applogger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "boostlab",
		WorkerCount: 1,
		BufferSize:  10,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 && cfg.NewReader == nil {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.NewReader == nil {
		cfg.NewReader = defaultReader
	}
	if l == nil {
		l = applogger.Nop()
	}
	initConsumerMetricsOnce()
	return &Consumer{
		cfg:      cfg,
		l:        l,
		readers:  make(map[string]Reader),
		handlers: make(map[string]MessageHandler),
		msgChan:  make(chan kafka.Message, cfg.BufferSize),
	}, nil
}

func defaultReader(cfg *ConsumerConfig, topic string) Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    topic,
		GroupID:  cfg.GroupID,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})
}

// RegisterHandler registers a message handler for a specific topic.
func (c *Consumer) RegisterHandler(handler MessageHandler) error {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		return fmt.Errorf("handler already registered for topic %s", topic)
	}
	c.handlers[topic] = handler
	return nil
}

// Start launches readers and workers. They run until ctx is done or Stop.
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}
	ctx, c.cancel = context.WithCancel(ctx)
	for topic := range c.handlers {
		c.readers[topic] = c.cfg.NewReader(c.cfg, topic)
		c.l.Info("kafka consumer: registered topic", applogger.String("topic", topic))
	}

	var readersWG sync.WaitGroup
	for topic, reader := range c.readers {
		readersWG.Add(1)
		go func(topic string, r Reader) {
			defer readersWG.Done()
			c.consume(ctx, topic, r)
		}(topic, reader)
	}
	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.wg.Add(1)
		go c.worker(ctx)
	}
	// workers drain the channel once every reader has returned
	go func() {
		readersWG.Wait()
		close(c.msgChan)
	}()
	c.l.Info("kafka consumer: started", applogger.Int("workers", c.cfg.WorkerCount))
	return nil
}

// Stop cancels reading and waits for in-flight messages.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		case <-done:
		}
		for topic, r := range c.readers {
			if err := r.Close(); err != nil {
				c.l.Warn("kafka consumer: close reader", applogger.String("topic", topic), applogger.Error(err))
			}
		}
		if stopErr == nil {
			c.l.Info("kafka consumer: stopped")
		}
	})
	return stopErr
}

func (c *Consumer) consume(ctx context.Context, topic string, r Reader) {
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			if errors.Is(err, io.EOF) {
				return
			}
			c.l.Warn("kafka consumer: fetch", applogger.String("topic", topic), applogger.Error(err))
			select {
			case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, 1)):
			case <-ctx.Done():
				return
			}
			continue
		}
		if msg.Topic == "" {
			msg.Topic = topic
		}
		select {
		case c.msgChan <- msg:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.msgChan)))
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) worker(ctx context.Context) {
	defer c.wg.Done()
	for msg := range c.msgChan {
		if ctx.Err() != nil {
			continue
		}
		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	handler, ok := c.handlers[msg.Topic]
	if !ok {
		return
	}
	start := time.Now()
	var err error
	attempts := 0
	for {
		attempts++
		err = c.safeHandle(ctx, handler, msg.Value)
		if err == nil || IsPermanent(err) || attempts > c.cfg.RetryMax || ctx.Err() != nil {
			break
		}
		c.l.Warn("kafka consumer: handler failed, retrying",
			applogger.String("topic", msg.Topic),
			applogger.Int("attempt", attempts),
			applogger.Error(err),
		)
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)):
		case <-ctx.Done():
		}
	}
	if ctx.Err() != nil && err != nil {
		// shutdown mid-message: leave the offset for redelivery
		return
	}

	commit := err == nil
	if err != nil {
		c.l.Error("kafka consumer: giving up on message",
			applogger.String("topic", msg.Topic),
			applogger.Int("attempts", attempts),
			applogger.Error(err),
		)
		if c.cfg.DLQ != nil && c.cfg.DLQTopic != "" {
			dlqErr := c.cfg.DLQ.Forward(ctx, c.cfg.DLQTopic, msg,
				kafka.Header{Key: "source_topic", Value: []byte(msg.Topic)},
				kafka.Header{Key: "error", Value: []byte(err.Error())},
			)
			if dlqErr != nil {
				c.l.Error("kafka consumer: dlq write", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(dlqErr))
			}
			commit = dlqErr == nil
		}
	}
	if commit {
		if cerr := c.readers[msg.Topic].CommitMessages(ctx, msg); cerr != nil {
			c.l.Error("kafka consumer: commit", applogger.String("topic", msg.Topic), applogger.Error(cerr))
		}
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	consumerHandled.WithLabelValues(msg.Topic, result).Inc()
	consumerHandleLatency.WithLabelValues(msg.Topic).Observe(time.Since(start).Seconds())
	if c.cfg.OnHandled != nil {
		c.cfg.OnHandled(msg.Topic, attempts, err)
	}
}

func (c *Consumer) safeHandle(ctx context.Context, h MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("panic in handler for topic %s: %v", h.Topic(), r))
		}
	}()
	return h.Handle(ctx, data)
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min * time.Duration(1<<uint(attempt-1))
	if exp > max || exp <= 0 {
		exp = max
	}
	// jitter up to 50%
	if half := int64(exp) / 2; half > 0 {
		exp -= time.Duration(rand.Int63n(half))
	}
	return exp
}

var (
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandled       *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerOnce          sync.Once
)

func initConsumerMetricsOnce() {
	consumerOnce.Do(func() {
		consumerQueueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "boostlab_kafka_consumer_queue_depth", Help: "Number of messages waiting in consumer queue"},
			[]string{"topic"},
		)
		consumerHandled = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "boostlab_kafka_consumer_messages_total", Help: "Messages handled by result"},
			[]string{"topic", "result"},
		)
		consumerHandleLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "boostlab_kafka_consumer_handle_seconds",
				Help:    "Handling time per message",
				Buckets: []float64{0.1, 1, 5, 30, 60, 300, 900, 1800, 3600},
			},
			[]string{"topic"},
		)
	})
}
