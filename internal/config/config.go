// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and CLICKRACE_* environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"net"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// HTTPAddr configures the control API listen address, e.g. ":8080".
	HTTPAddr string `koanf:"http_addr"`

	// TCPAddr is the click ingress address shared by every worker.
	TCPAddr string `koanf:"tcp_addr"`

	// TCPIdleTimeoutMS closes click connections idle for longer than this.
	TCPIdleTimeoutMS int `koanf:"tcp_idle_timeout_ms"`

	// UseCluster runs clicks in supervised worker processes instead of in-process.
	UseCluster bool `koanf:"use_cluster"`

	// WorkerCount sets the number of worker processes in cluster mode.
	WorkerCount int `koanf:"worker_count"`

	// DBDriver is sqlite or postgres.
	DBDriver string `koanf:"db_driver"`

	// DBDSN is the sqlite file path or the postgres connection string.
	DBDSN string `koanf:"db_dsn"`

	// HeartbeatIntervalMS is how often workers report liveness.
	HeartbeatIntervalMS int `koanf:"heartbeat_interval_ms"`

	// EventDurationMS bounds a round; 0 means the round lasts until ended explicitly.
	EventDurationMS int `koanf:"event_duration_ms"`

	// RestartBackoffMS delays respawning a crashed worker; 0 respawns immediately.
	RestartBackoffMS int `koanf:"restart_backoff_ms"`

	// WriteQueueSize bounds the in-memory durable write queue.
	WriteQueueSize int `koanf:"write_queue_size"`

	// WriterCount sets the number of goroutines draining the write queue.
	WriterCount int `koanf:"writer_count"`

	// LeaderboardLimit is the default number of leaderboard rows.
	LeaderboardLimit int `koanf:"leaderboard_limit"`

	// MaxLeaderboardLimit caps GET /event/leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// WorkerMetricsAddr is where worker 0 serves /metrics; worker N uses the
	// port plus N. Empty disables the worker endpoints.
	WorkerMetricsAddr string `koanf:"worker_metrics_addr"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		HTTPAddr:            ":8080",
		TCPAddr:             ":9090",
		TCPIdleTimeoutMS:    30_000,
		UseCluster:          true,
		WorkerCount:         runtime.NumCPU(),
		DBDriver:            DriverSQLite,
		DBDSN:               "clickrace.db",
		HeartbeatIntervalMS: 2_000,
		EventDurationMS:     60_000,
		RestartBackoffMS:    0,
		WriteQueueSize:      10_000,
		WriterCount:         2,
		LeaderboardLimit:    10,
		MaxLeaderboardLimit: 100,
		WorkerMetricsAddr:   ":9100",
	}
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.HTTPAddr == "":
		return fmt.Errorf("%w: http_addr must not be empty", ErrInvalidConfig)
	case c.TCPAddr == "":
		return fmt.Errorf("%w: tcp_addr must not be empty", ErrInvalidConfig)
	case c.UseCluster && c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be at least 1", ErrInvalidConfig)
	case c.HeartbeatIntervalMS <= 0:
		return fmt.Errorf("%w: heartbeat_interval_ms must be positive", ErrInvalidConfig)
	case c.EventDurationMS < 0, c.RestartBackoffMS < 0, c.TCPIdleTimeoutMS < 0:
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	case c.WriteQueueSize < 1 || c.WriterCount < 1:
		return fmt.Errorf("%w: write_queue_size and writer_count must be at least 1", ErrInvalidConfig)
	case c.LeaderboardLimit < 1 || c.MaxLeaderboardLimit < c.LeaderboardLimit:
		return fmt.Errorf("%w: leaderboard limits out of range", ErrInvalidConfig)
	}

	switch strings.ToLower(c.DBDriver) {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("%w: unknown db_driver %q", ErrInvalidConfig, c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("%w: db_dsn must not be empty", ErrInvalidConfig)
	}
	if _, err := c.WorkerMetricsAddress(0); err != nil {
		return err
	}
	return nil
}

// WorkerMetricsAddress returns the /metrics listen address of worker id, or
// "" when worker endpoints are disabled.
func (c *Config) WorkerMetricsAddress(id int) (string, error) {
	if c.WorkerMetricsAddr == "" {
		return "", nil
	}
	host, portStr, err := net.SplitHostPort(c.WorkerMetricsAddr)
	if err != nil {
		return "", fmt.Errorf("%w: worker_metrics_addr: %w", ErrInvalidConfig, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port+id > 65535 {
		return "", fmt.Errorf("%w: worker_metrics_addr port %q out of range", ErrInvalidConfig, portStr)
	}
	if port == 0 {
		return net.JoinHostPort(host, "0"), nil
	}
	return net.JoinHostPort(host, strconv.Itoa(port+id)), nil
}

// HeartbeatInterval returns the heartbeat period as a duration.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMS) * time.Millisecond
}

// EventDuration returns the round length; zero means unbounded.
func (c *Config) EventDuration() time.Duration {
	return time.Duration(c.EventDurationMS) * time.Millisecond
}

// RestartBackoff returns the respawn delay.
func (c *Config) RestartBackoff() time.Duration {
	return time.Duration(c.RestartBackoffMS) * time.Millisecond
}

// TCPIdleTimeout returns the idle read deadline for click connections.
func (c *Config) TCPIdleTimeout() time.Duration {
	return time.Duration(c.TCPIdleTimeoutMS) * time.Millisecond
}
