package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Client owns the database/sql pool used by the bar repository.
type Client struct {
	db           *sql.DB
	database     string
	writeTimeout time.Duration
}

// NewClient opens the pool and pings the server.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := &ClientConfig{
		Port:            9000,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("clickhouse: host is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	db := clickhouse.OpenDB(options(cfg))
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping %s: %w", cfg.addr(), err)
	}
	return &Client{db: db, database: cfg.Database, writeTimeout: cfg.WriteTimeout}, nil
}

func options(cfg *ClientConfig) *clickhouse.Options {
	o := &clickhouse.Options{
		Addr: []string{cfg.addr()},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Protocol:    clickhouse.Native,
		DialTimeout: cfg.DialTimeout,
		ReadTimeout: cfg.ReadTimeout,
		Settings:    clickhouse.Settings{},
	}
	if cfg.UseHTTP {
		o.Protocol = clickhouse.HTTP
	}
	if cfg.MaxExecTime > 0 {
		o.Settings["max_execution_time"] = int(cfg.MaxExecTime.Seconds())
	}
	if cfg.AsyncInsert {
		o.Settings["async_insert"] = 1
		if cfg.WaitForAsync {
			o.Settings["wait_for_async_insert"] = 1
		}
	}
	return o
}

func (c *Client) DB() *sql.DB { return c.db }

func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// BarsTable is the fully qualified OHLCV table name.
func (c *Client) BarsTable() string {
	return qualified(c.database, "bars")
}

func qualified(database, table string) string {
	if database == "" {
		return table
	}
	return database + "." + table
}

// BarsSchema returns idempotent DDL for the OHLCV table. Re-imported bars
// replace older rows with the same key on merge.
func BarsSchema(database string) []string {
	var stmts []string
	if database != "" {
		stmts = append(stmts, "CREATE DATABASE IF NOT EXISTS "+database)
	}
	return append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	ts        DateTime64(3, 'UTC'),
	symbol    LowCardinality(String),
	timeframe LowCardinality(String),
	open      Float64,
	high      Float64,
	low       Float64,
	close     Float64,
	volume    Float64
)
ENGINE = ReplacingMergeTree
ORDER BY (symbol, timeframe, ts)`, qualified(database, "bars")))
}

// InitSchema runs stmts in order within the write timeout.
func (c *Client) InitSchema(ctx context.Context, stmts []string) error {
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
