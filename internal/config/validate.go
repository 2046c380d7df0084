package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *AdapterConfig) Validate() error {
	if c.Gateway.Host == "" {
		return errors.New("gateway.host is required")
	}
	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port must be between 1 and 65535, got %d", c.Gateway.Port)
	}
	if c.Gateway.ClientID < 0 {
		return errors.New("gateway.client_id must be >= 0")
	}
	if c.Gateway.EventBuffer < 1 {
		return errors.New("gateway.event_buffer must be >= 1")
	}

	switch c.Session.OrderIDStrategy {
	case "retry", "basic", "increment":
	default:
		return fmt.Errorf("session.order_id_strategy must be retry, basic, or increment, got %q", c.Session.OrderIDStrategy)
	}
	if c.Session.AttemptTimeout <= 0 {
		return errors.New("session.attempt_timeout must be > 0")
	}
	if c.Session.MaxAttempts < 1 {
		return errors.New("session.max_attempts must be >= 1")
	}
	if c.Session.ResolveTimeout <= 0 {
		return errors.New("session.resolve_timeout must be > 0")
	}

	switch c.Sink.Backend {
	case "memory":
	case "postgres":
		if err := c.Sink.Postgres.validate("sink.postgres"); err != nil {
			return err
		}
		if c.Sink.BatchSize < 1 {
			return errors.New("sink.batch_size must be >= 1")
		}
		if c.Sink.BufferSize < 1 {
			return errors.New("sink.buffer_size must be >= 1")
		}
	default:
		return fmt.Errorf("sink.backend must be memory or postgres, got %q", c.Sink.Backend)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns must be <= max_conns", prefix)
	}
	return nil
}
