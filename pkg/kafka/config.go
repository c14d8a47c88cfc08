package kafka

import "time"

type ProducerOption func(*ProducerConfig)

// ProducerConfig controls how events are written. Zero values fall back to
// the defaults in NewProducer.
type ProducerConfig struct {
	Brokers      []string
	RequiredAcks int
	MaxAttempts  int
	Compression  string

	BatchSize    int
	BatchBytes   int
	BatchTimeout time.Duration

	WriteTimeout time.Duration
	ReadTimeout  time.Duration

	Async            bool
	HashByKey        bool
	AutoCreateTopics bool
}

func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) { c.Brokers = brokers }
}

// WithCompression takes none, gzip, snappy, lz4 or zstd.
func WithCompression(codec string) ProducerOption {
	return func(c *ProducerConfig) { c.Compression = codec }
}

// WithDelivery sets acknowledgements (-1 waits for all replicas) and how many
// times the writer retries a batch.
func WithDelivery(acks, attempts int) ProducerOption {
	return func(c *ProducerConfig) {
		c.RequiredAcks = acks
		if attempts > 0 {
			c.MaxAttempts = attempts
		}
	}
}

// WithBatching flushes a batch at size messages, bytes, or after linger,
// whichever comes first.
func WithBatching(size, bytes int, linger time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		if size > 0 {
			c.BatchSize = size
		}
		if bytes > 0 {
			c.BatchBytes = bytes
		}
		if linger > 0 {
			c.BatchTimeout = linger
		}
	}
}

func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.WriteTimeout = write
		c.ReadTimeout = read
	}
}

// WithAsync makes WriteMessages return before the broker acknowledges.
func WithAsync(async bool) ProducerOption {
	return func(c *ProducerConfig) { c.Async = async }
}

// WithKeyOrdering routes messages by key hash so events for one artifact
// stay on one partition.
func WithKeyOrdering() ProducerOption {
	return func(c *ProducerConfig) { c.HashByKey = true }
}

func WithAutoCreateTopics(enabled bool) ProducerOption {
	return func(c *ProducerConfig) { c.AutoCreateTopics = enabled }
}
