// Package solvesdk is the client of the remote solve service: the GraphQL
// mutation endpoint and its health probe.
package solvesdk

import (
	"fmt"
	"strings"

	"github.com/imroc/req/v3"
	"github.com/openmined/solvesync/internal/utils"
	"github.com/openmined/solvesync/internal/version"
)

// SDK is the main client for interacting with the solve API
type SDK struct {
	client  *req.Client
	baseURL string
}

// New creates a new SDK client.
// Mutations are never retried at the transport level, the outbox owns retries.
func New(cfg *Config) (*SDK, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sdk config: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	client := req.C().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetUserAgent(UserAgent).
		SetCommonHeader(HeaderSolveVersion, version.Version).
		SetCommonHeader(HeaderSolveDeviceId, utils.HWID).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	return &SDK{
		client:  client,
		baseURL: baseURL,
	}, nil
}

// BaseURL returns the server url the SDK talks to
func (s *SDK) BaseURL() string {
	return s.baseURL
}

// Close terminates idle connections
func (s *SDK) Close() {
	s.client.GetClient().CloseIdleConnections()
}
