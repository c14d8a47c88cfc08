package clickhouse

import (
	"fmt"
	"time"
)

type ClientOption func(*ClientConfig)

// ClientConfig describes the connection to the bar store.
type ClientConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	UseHTTP  bool

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxExecTime  time.Duration

	AsyncInsert  bool
	WaitForAsync bool
}

func (c ClientConfig) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WithServer sets host, port and database. Port 8123 usually pairs with
// WithHTTP(true).
func WithServer(host string, port int, database string) ClientOption {
	return func(c *ClientConfig) {
		c.Host = host
		c.Port = port
		c.Database = database
	}
}

func WithCredentials(user, password string) ClientOption {
	return func(c *ClientConfig) {
		c.User = user
		c.Password = password
	}
}

func WithPool(maxOpen, maxIdle int, lifetime time.Duration) ClientOption {
	return func(c *ClientConfig) {
		if maxOpen > 0 {
			c.MaxOpenConns = maxOpen
		}
		if maxIdle > 0 {
			c.MaxIdleConns = maxIdle
		}
		if lifetime > 0 {
			c.ConnMaxLifetime = lifetime
		}
	}
}

// WithTimeouts sets dial and socket timeouts. maxExec is sent to the server
// as the max_execution_time setting.
func WithTimeouts(dial, read, write, maxExec time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.DialTimeout = dial
		c.ReadTimeout = read
		c.WriteTimeout = write
		c.MaxExecTime = maxExec
	}
}

// WithHTTP switches from the native protocol to HTTP.
func WithHTTP(useHTTP bool) ClientOption {
	return func(c *ClientConfig) {
		c.UseHTTP = useHTTP
	}
}

// WithAsyncInsert lets the server buffer bar imports.
func WithAsyncInsert(enabled, wait bool) ClientOption {
	return func(c *ClientConfig) {
		c.AsyncInsert = enabled
		c.WaitForAsync = wait
	}
}
