package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/openmined/solvesync/internal/client/bulkimport"
	"github.com/openmined/solvesync/internal/client/connectivity"
	"github.com/openmined/solvesync/internal/solvesdk"
	"github.com/openmined/solvesync/internal/utils"
)

var (
	home, _              = os.UserHomeDir()
	DefaultConfigPath    = filepath.Join(home, ".solvesync", "config.json")
	DefaultDataDir       = filepath.Join(home, ".solvesync", "data")
	DefaultLogFilePath   = filepath.Join(home, ".solvesync", "logs", "solvesync.log")
	DefaultServerURL     = solvesdk.DefaultBaseURL
	DefaultHTTPAddr      = "127.0.0.1:7940"
	DefaultSettleDelay   = connectivity.DefaultSettleDelay
	DefaultProbeInterval = connectivity.DefaultProbeInterval
	DefaultChunkSize     = bulkimport.DefaultChunkSize
)

var (
	ErrNoDataDir        = errors.New("data dir is required")
	ErrInvalidServerURL = errors.New("invalid server url")
	ErrInvalidHTTPAddr  = errors.New("invalid http addr")
	ErrInvalidDuration  = errors.New("durations must not be negative")
	ErrInvalidChunkSize = errors.New("import chunk size must not be negative")
)

type Config struct {
	DataDir         string        `json:"data_dir"`
	ServerURL       string        `json:"server_url"`
	HTTPAddr        string        `json:"http_addr"`
	HTTPToken       string        `json:"http_token,omitempty"`
	SettleDelay     time.Duration `json:"settle_delay,omitempty"`
	ProbeInterval   time.Duration `json:"probe_interval,omitempty"`
	ImportChunkSize int           `json:"import_chunk_size,omitempty"`
	Path            string        `json:"-"`
}

// Validate checks the config, resolves paths and fills in defaults for zero values.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return ErrNoDataDir
	}
	dataDir, err := utils.ResolvePath(c.DataDir)
	if err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	c.DataDir = dataDir

	if c.Path != "" {
		path, err := utils.ResolvePath(c.Path)
		if err != nil {
			return fmt.Errorf("config path: %w", err)
		}
		c.Path = path
	}

	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	if err := validateServerURL(c.ServerURL); err != nil {
		return err
	}

	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	if _, port, err := net.SplitHostPort(c.HTTPAddr); err != nil || port == "" {
		return fmt.Errorf("%w %q", ErrInvalidHTTPAddr, c.HTTPAddr)
	}

	if c.SettleDelay < 0 || c.ProbeInterval < 0 {
		return ErrInvalidDuration
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.ProbeInterval == 0 {
		c.ProbeInterval = DefaultProbeInterval
	}

	if c.ImportChunkSize < 0 {
		return ErrInvalidChunkSize
	}
	if c.ImportChunkSize == 0 {
		c.ImportChunkSize = DefaultChunkSize
	}

	return nil
}

// OutboxPath is the sqlite database holding the primary outbox.
func (c *Config) OutboxPath() string {
	return filepath.Join(c.DataDir, "outbox.db")
}

// BackupDir holds the outbox mirror.
func (c *Config) BackupDir() string {
	return filepath.Join(c.DataDir, "backup")
}

func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	// the control plane token lives in here
	return utils.WriteFileAtomic(path, data, 0o600)
}

func LoadClientConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateServerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidServerURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrInvalidServerURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidServerURL)
	}
	return nil
}
