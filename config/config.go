// Package config loads pool and connection settings from YAML: env-var
// substitution, defaulting, validation, and an fsnotify-backed watcher
// for hot reload.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// ConnConfig describes how to reach and authenticate against a single
// MySQL server (spec.md §6's authentication/transport input).
type ConnConfig struct {
	Address         string            `yaml:"address"`
	Username        string            `yaml:"username"`
	Password        string            `yaml:"password"`
	Database        string            `yaml:"database"`
	Collation       uint8             `yaml:"collation"`
	SSLMode         string            `yaml:"ssl_mode"`
	MultiStatements bool              `yaml:"multi_statements"`
	ConnectAttrs    map[string]string `yaml:"connect_attrs,omitempty"`
}

// PoolConfig is spec.md §4.9's pool configuration table.
type PoolConfig struct {
	InitialSize    int           `yaml:"initial_size"`
	MaxSize        int           `yaml:"max_size"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	PingTimeout    time.Duration `yaml:"ping_timeout"`
	RetryInterval  time.Duration `yaml:"retry_interval"`
	ResetOnReturn  bool          `yaml:"reset_on_return"`
	ThreadSafe     bool          `yaml:"thread_safe"`
}

// Config is the top-level document: one connection target plus the
// pool that manages connections to it.
type Config struct {
	Conn ConnConfig `yaml:"conn"`
	Pool PoolConfig `yaml:"pool"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment
// variable values, leaving the placeholder untouched when unset.
func substituteEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		if val, ok := os.LookupEnv(string(varName)); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a YAML config file, substituting ${VAR}
// references against the process environment before defaulting and
// validating the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = substituteEnvVars(data)

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Conn.Collation == 0 {
		cfg.Conn.Collation = 45 // utf8mb4_general_ci
	}
	if cfg.Conn.SSLMode == "" {
		cfg.Conn.SSLMode = "enable"
	}
	if cfg.Pool.InitialSize == 0 {
		cfg.Pool.InitialSize = 2
	}
	if cfg.Pool.MaxSize == 0 {
		cfg.Pool.MaxSize = 10
	}
	if cfg.Pool.ConnectTimeout == 0 {
		cfg.Pool.ConnectTimeout = 10 * time.Second
	}
	if cfg.Pool.PingTimeout == 0 {
		cfg.Pool.PingTimeout = 2 * time.Second
	}
	if cfg.Pool.RetryInterval == 0 {
		cfg.Pool.RetryInterval = time.Second
	}
}

func validate(cfg *Config) error {
	if cfg.Conn.Address == "" {
		return fmt.Errorf("conn.address is required")
	}
	if cfg.Conn.Username == "" {
		return fmt.Errorf("conn.username is required")
	}
	switch cfg.Conn.SSLMode {
	case "disable", "enable", "require":
	default:
		return fmt.Errorf("conn.ssl_mode %q: must be disable, enable, or require", cfg.Conn.SSLMode)
	}
	if cfg.Pool.MaxSize < cfg.Pool.InitialSize {
		return fmt.Errorf("pool.max_size (%d) must be >= pool.initial_size (%d)", cfg.Pool.MaxSize, cfg.Pool.InitialSize)
	}
	return nil
}

// Redacted returns a copy of the Config with the password masked, for
// logging.
func (c Config) Redacted() Config {
	r := c
	if r.Conn.Password != "" {
		r.Conn.Password = "***REDACTED***"
	}
	return r
}

// Watcher watches a config file for changes and calls back with the
// reloaded Config, debounced against editors that emit several write
// events for one save.
type Watcher struct {
	path     string
	callback func(*Config)
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	stopCh   chan struct{}
}

// NewWatcher starts watching path, invoking callback on every
// subsequent successful reload.
func NewWatcher(path string, callback func(*Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching config file: %w", err)
	}

	cw := &Watcher{
		path:     path,
		callback: callback,
		watcher:  w,
		stopCh:   make(chan struct{}),
	}
	go cw.run()
	return cw, nil
}

func (cw *Watcher) run() {
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, cw.reload)
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "err", err)
		case <-cw.stopCh:
			return
		}
	}
}

func (cw *Watcher) reload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cfg, err := Load(cw.path)
	if err != nil {
		slog.Warn("config hot-reload failed", "path", cw.path, "err", err)
		return
	}

	slog.Info("config reloaded", "path", cw.path)
	cw.callback(cfg)
}

// Stop stops the watcher and releases the underlying fsnotify watch.
func (cw *Watcher) Stop() error {
	close(cw.stopCh)
	return cw.watcher.Close()
}
