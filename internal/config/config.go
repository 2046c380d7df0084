package config

import "time"

// AdapterConfig is the root configuration for an adapter instance.
type AdapterConfig struct {
	Gateway Gateway `yaml:"gateway"`
	Session Session `yaml:"session"`
	Sink    Sink    `yaml:"sink"`
}

// Gateway holds broker gateway connection settings.
type Gateway struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	ClientID    int64  `yaml:"client_id"`
	EventBuffer int    `yaml:"event_buffer"`
}

// Session holds session behavior settings.
type Session struct {
	ReadOnly bool `yaml:"read_only"`
	IsFA     bool `yaml:"is_fa"`

	// OrderIDStrategy is one of "retry", "basic", "increment".
	OrderIDStrategy string        `yaml:"order_id_strategy"`
	AttemptTimeout  time.Duration `yaml:"attempt_timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`

	// ResolveTimeout bounds blocking contract registration.
	ResolveTimeout time.Duration `yaml:"resolve_timeout"`
}

// Sink selects and configures the table sink backend.
type Sink struct {
	// Backend is "memory" or "postgres".
	Backend  string   `yaml:"backend"`
	Postgres DBConfig `yaml:"postgres"`

	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}
