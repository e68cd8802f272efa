// Package appconfig loads the top-level daemon configuration for
// cmd/tornado-matcher: where the compiled matcher tree lives and how it is
// reloaded, where inbound events are ingested from, where compiled-config
// generations are archived, and where rendered actions are delivered.
package appconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete daemon configuration.
type Config struct {
	Agent   AgentConfig   `yaml:"agent"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Matcher MatcherConfig `yaml:"matcher"`
	Store   StoreConfig   `yaml:"store"`
	Output  OutputConfig  `yaml:"output"`
	Workers WorkersConfig `yaml:"workers"`
}

// AgentConfig contains process-level settings.
type AgentConfig struct {
	ID       string `yaml:"id"`
	StateDir string `yaml:"state_dir"`
	LogLevel string `yaml:"log_level"`
}

// IngestConfig describes the spool directory events are read from (spec
// "Ingest" domain component).
type IngestConfig struct {
	SpoolDir      string        `yaml:"spool_dir"`
	Format        string        `yaml:"format"`
	Compression   string        `yaml:"compression"`
	StabilityWait time.Duration `yaml:"stability_wait"`
}

// MatcherConfig locates the MatcherConfig tree on disk and how it is
// reloaded when it changes.
type MatcherConfig struct {
	Path     string `yaml:"path"`
	ReloadOn string `yaml:"reload_on"`
}

// StoreConfig controls the bounded history of compiled-config generations
// kept for rollback (spec "Config introspection"); it never stores event or
// extracted-variable state.
type StoreConfig struct {
	DBPath          string        `yaml:"db_path"`
	SyncWrites      bool          `yaml:"sync_writes"`
	CompactInterval time.Duration `yaml:"compact_interval"`
	MaxGenerations  int           `yaml:"max_generations"`
}

// OutputConfig defines where rendered actions are shipped.
type OutputConfig struct {
	Endpoint       string          `yaml:"endpoint"`
	APIKey         string          `yaml:"api_key"`
	BatchSize      int             `yaml:"batch_size"`
	FlushInterval  time.Duration   `yaml:"flush_interval"`
	Timeout        time.Duration   `yaml:"timeout"`
	Retry          RetryConfig     `yaml:"retry"`
	FlushOnEnqueue *bool           `yaml:"flush_on_enqueue"`
	TLSSkipVerify  bool            `yaml:"tls_skip_verify"`
	Heartbeat      HeartbeatConfig `yaml:"heartbeat"`
}

// HeartbeatConfig defines periodic liveness pings toward the output endpoint.
type HeartbeatConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// RetryConfig defines retry behavior for output delivery.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     string        `yaml:"backoff"`
	Initial     time.Duration `yaml:"initial"`
	Max         time.Duration `yaml:"max"`
}

// WorkersConfig controls the bounded-concurrency event processing pool.
type WorkersConfig struct {
	PoolSize int `yaml:"pool_size"`
}

// Load reads and parses the daemon configuration file, validating the
// output section.
func Load(path string) (*Config, error) {
	return LoadWithOptions(path, false)
}

// LoadForReadOnly loads config without validating the output section (for
// status/inspect commands that never deliver actions).
func LoadForReadOnly(path string) (*Config, error) {
	return LoadWithOptions(path, true)
}

// LoadWithOptions reads configuration with optional validation skips.
func LoadWithOptions(path string, skipOutputValidation bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.ValidateWithOptions(skipOutputValidation); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional fields. Numeric defaults
// and bounds below are sized for this daemon's own domain — a batch of
// rendered actions delivered over HTTP, not Santa's per-event signal
// stream — not inherited from any other deployment's tuning.
func (c *Config) applyDefaults() {
	if c.Agent.ID == "" {
		hostname, _ := os.Hostname()
		c.Agent.ID = hostname
	}
	if c.Agent.StateDir == "" {
		c.Agent.StateDir = "/var/lib/tornado-matcher"
	}
	if c.Agent.LogLevel == "" {
		c.Agent.LogLevel = "info"
	}

	if c.Ingest.Format == "" {
		c.Ingest.Format = "jsonl"
	}
	if c.Ingest.Compression == "" {
		c.Ingest.Compression = "none"
	}
	if c.Ingest.SpoolDir == "" {
		c.Ingest.SpoolDir = "/var/db/tornado-matcher/spool"
	}
	if c.Ingest.StabilityWait == 0 {
		c.Ingest.StabilityWait = 2 * time.Second
	}

	if c.Matcher.Path == "" {
		c.Matcher.Path = "/etc/tornado-matcher/rules"
	}
	if c.Matcher.ReloadOn == "" {
		c.Matcher.ReloadOn = "fsnotify"
	}

	if c.Store.DBPath == "" {
		c.Store.DBPath = "/var/lib/tornado-matcher/configstore.db"
	}
	if c.Store.CompactInterval == 0 {
		c.Store.CompactInterval = 24 * time.Hour
	}
	if c.Store.MaxGenerations == 0 {
		c.Store.MaxGenerations = 50
	}

	if c.Output.BatchSize == 0 {
		c.Output.BatchSize = 100
	}
	if c.Output.FlushInterval == 0 {
		c.Output.FlushInterval = 30 * time.Second
	}
	// Default to immediate flush on enqueue for low-latency delivery.
	if c.Output.FlushOnEnqueue == nil {
		v := true
		c.Output.FlushOnEnqueue = &v
	}
	if c.Output.Timeout == 0 {
		c.Output.Timeout = 10 * time.Second
	}
	if c.Output.Retry.MaxAttempts == 0 {
		c.Output.Retry.MaxAttempts = 3
	}
	if c.Output.Retry.Backoff == "" {
		c.Output.Retry.Backoff = "exponential"
	}
	if c.Output.Retry.Initial == 0 {
		c.Output.Retry.Initial = 1 * time.Second
	}
	if c.Output.Retry.Max == 0 {
		c.Output.Retry.Max = 30 * time.Second
	}
	// A liveness ping only needs to catch a genuinely dead delivery path,
	// not sub-minute blips, so the default interval is longer than the
	// flush interval above.
	if c.Output.Heartbeat.Interval == 0 {
		c.Output.Heartbeat.Interval = 60 * time.Second
	}

	if c.Workers.PoolSize == 0 {
		c.Workers.PoolSize = 4
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return c.ValidateWithOptions(false)
}

// ValidateWithOptions checks configuration with optional validation skips.
func (c *Config) ValidateWithOptions(skipOutput bool) error {
	if c.Agent.ID == "" {
		return fmt.Errorf("agent.id is required")
	}
	// 128 comfortably covers a hostname or container ID with room to
	// spare, without the unbounded length a free-form display name would
	// need.
	if len(c.Agent.ID) > 128 {
		return fmt.Errorf("agent.id too long (max 128 characters)")
	}
	if !isValidLogLevel(c.Agent.LogLevel) {
		return fmt.Errorf("invalid log level: %s", c.Agent.LogLevel)
	}
	if !filepath.IsAbs(c.Agent.StateDir) {
		return fmt.Errorf("agent.state_dir must be an absolute path")
	}

	if c.Ingest.Format != "jsonl" {
		return fmt.Errorf("ingest.format must be 'jsonl'")
	}
	switch c.Ingest.Compression {
	case "none", "gzip", "zstd":
	default:
		return fmt.Errorf("ingest.compression must be 'none', 'gzip' or 'zstd'")
	}
	if !filepath.IsAbs(c.Ingest.SpoolDir) {
		return fmt.Errorf("ingest.spool_dir must be an absolute path")
	}
	if c.Ingest.StabilityWait < 0 {
		return fmt.Errorf("ingest.stability_wait cannot be negative")
	}
	// Batch files can run far larger than a single Santa spool entry and
	// take correspondingly longer to finish writing, so this daemon
	// allows a much wider stability window than a per-event spool would.
	if c.Ingest.StabilityWait > 5*time.Minute {
		return fmt.Errorf("ingest.stability_wait too large (max 5m)")
	}

	if !filepath.IsAbs(c.Matcher.Path) {
		return fmt.Errorf("matcher.path must be an absolute path")
	}
	switch c.Matcher.ReloadOn {
	case "fsnotify", "poll", "SIGHUP":
	default:
		return fmt.Errorf("matcher.reload_on must be 'fsnotify', 'poll' or 'SIGHUP'")
	}

	if !filepath.IsAbs(c.Store.DBPath) {
		return fmt.Errorf("store.db_path must be an absolute path")
	}
	if c.Store.MaxGenerations <= 0 {
		return fmt.Errorf("store.max_generations must be positive")
	}
	if c.Store.MaxGenerations > 10000 {
		return fmt.Errorf("store.max_generations too large (max 10000)")
	}

	if c.Workers.PoolSize <= 0 {
		return fmt.Errorf("workers.pool_size must be positive")
	}
	if c.Workers.PoolSize > 4096 {
		return fmt.Errorf("workers.pool_size too large (max 4096)")
	}

	if !skipOutput {
		if c.Output.Endpoint == "" {
			return fmt.Errorf("output.endpoint is required")
		}
		u, err := url.Parse(c.Output.Endpoint)
		if err != nil {
			return fmt.Errorf("output.endpoint invalid URL: %w", err)
		}
		// A network-transport policy independent of any particular
		// upstream: plaintext HTTP is only acceptable to a loopback
		// address, never to a remote collector.
		if u.Scheme == "http" {
			host := u.Hostname()
			if host != "localhost" && host != "127.0.0.1" && host != "::1" {
				return fmt.Errorf("output.endpoint must use HTTPS (not HTTP) for remote hosts")
			}
		}
		if c.Output.APIKey == "" {
			return fmt.Errorf("output.api_key is required")
		}
		// 32 characters matches the shortest key length issued by the
		// token formats this daemon expects to authenticate with
		// (e.g. a hex-encoded 16-byte key), well above a value an
		// operator could type by accident.
		if len(c.Output.APIKey) < 32 {
			return fmt.Errorf("output.api_key too short (min 32 characters)")
		}
		if c.Output.BatchSize <= 0 {
			return fmt.Errorf("output.batch_size must be positive")
		}
		// Rendered actions carry a full payload template rather than a
		// compact signal record, so a single delivery batch is capped
		// an order of magnitude lower than a bare signal-shipping queue
		// would need, to keep one HTTP request body reasonably sized.
		if c.Output.BatchSize > 1000 {
			return fmt.Errorf("output.batch_size too large (max 1000)")
		}
		if c.Output.Timeout <= 0 {
			return fmt.Errorf("output.timeout must be positive")
		}
		if c.Output.Retry.MaxAttempts < 0 {
			return fmt.Errorf("output.retry.max_attempts cannot be negative")
		}
		// Initial/Max already bound the backoff curve; capping attempts
		// at 8 keeps the worst-case total delay bounded without piling
		// on retries a synchronous delivery path will just block on.
		if c.Output.Retry.MaxAttempts > 8 {
			return fmt.Errorf("output.retry.max_attempts too large (max 8)")
		}
		if c.Output.Retry.Backoff != "exponential" && c.Output.Retry.Backoff != "linear" {
			return fmt.Errorf("output.retry.backoff must be 'exponential' or 'linear'")
		}
	}

	return nil
}

func isValidLogLevel(level string) bool {
	level = strings.ToLower(level)
	return level == "debug" || level == "info" || level == "warn" || level == "error"
}
