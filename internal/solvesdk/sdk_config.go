package solvesdk

import (
	"net/url"
	"time"
)

const (
	DefaultBaseURL = "https://api.solvesync.app"
	DefaultTimeout = 15 * time.Second
)

// Config is the configuration for the SDK
type Config struct {
	BaseURL string        // BaseURL is required
	Timeout time.Duration // Timeout bounds a single request. Defaults to DefaultTimeout
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoServerURL
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidServerURL
	}

	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}

	return nil
}
