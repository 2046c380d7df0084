package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultGatewayHost     = "127.0.0.1"
	DefaultGatewayPort     = 7497
	DefaultEventBuffer     = 100000
	DefaultOrderIDStrategy = "retry"
	DefaultAttemptTimeout  = 500 * time.Millisecond
	DefaultMaxAttempts     = 4
	DefaultResolveTimeout  = 10 * time.Second
	DefaultSinkBackend     = "memory"
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 10
	DefaultMinConns        = 2
	DefaultBatchSize       = 1000
	DefaultFlushInterval   = 1 * time.Second
	DefaultBufferSize      = 10000
)

func (c *AdapterConfig) applyDefaults() {
	// Gateway defaults
	if c.Gateway.Host == "" {
		c.Gateway.Host = DefaultGatewayHost
	}
	if c.Gateway.Port == 0 {
		c.Gateway.Port = DefaultGatewayPort
	}
	if c.Gateway.EventBuffer == 0 {
		c.Gateway.EventBuffer = DefaultEventBuffer
	}

	// Session defaults
	if c.Session.OrderIDStrategy == "" {
		c.Session.OrderIDStrategy = DefaultOrderIDStrategy
	}
	if c.Session.AttemptTimeout == 0 {
		c.Session.AttemptTimeout = DefaultAttemptTimeout
	}
	if c.Session.MaxAttempts == 0 {
		c.Session.MaxAttempts = DefaultMaxAttempts
	}
	if c.Session.ResolveTimeout == 0 {
		c.Session.ResolveTimeout = DefaultResolveTimeout
	}

	// Sink defaults
	if c.Sink.Backend == "" {
		c.Sink.Backend = DefaultSinkBackend
	}
	if c.Sink.BatchSize == 0 {
		c.Sink.BatchSize = DefaultBatchSize
	}
	if c.Sink.FlushInterval == 0 {
		c.Sink.FlushInterval = DefaultFlushInterval
	}
	if c.Sink.BufferSize == 0 {
		c.Sink.BufferSize = DefaultBufferSize
	}
	if c.Sink.Backend == "postgres" {
		applyDBDefaults(&c.Sink.Postgres)
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
