package solvesdk

import (
	"context"
)

// Ping checks that the server is reachable and healthy
func (s *SDK) Ping(ctx context.Context) error {
	res, err := s.client.R().
		SetContext(ctx).
		Get(pathHealth)

	return handleAPIError(res, err, "ping")
}
