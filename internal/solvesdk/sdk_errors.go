package solvesdk

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/imroc/req/v3"
)

var (
	ErrNoServerURL      = errors.New("sdk: server url missing")
	ErrInvalidServerURL = errors.New("sdk: invalid server url")
	ErrInvalidTimeout   = errors.New("sdk: invalid timeout")
	ErrEmptyBatch       = errors.New("sdk: empty batch")
	ErrEmptyResponse    = errors.New("sdk: empty response")
)

const (
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeUnknownError   = "E_UNKNOWN_ERR"     // unknown error
)

type SDKError interface {
	error
	ErrorCode() string
	ErrorMessage() string
}

// BaseError provides common error functionality
type BaseError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *BaseError) ErrorCode() string    { return e.Code }
func (e *BaseError) ErrorMessage() string { return e.Message }

// APIError is a non-2xx reply from the server
type APIError struct {
	BaseError
	StatusCode int `json:"-"`
}

func NewAPIError(status int, code, message string) *APIError {
	return &APIError{
		BaseError: BaseError{
			Code:    code,
			Message: message,
		},
		StatusCode: status,
	}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %d %s - %s", e.StatusCode, e.Code, e.Message)
}

var _ SDKError = (*APIError)(nil)

// GraphQLError is a 2xx reply carrying a non-empty errors list.
// Only the first error is kept in Code and Message; Messages has all of them.
type GraphQLError struct {
	BaseError
	Messages []string
}

func newGraphQLError(items []graphQLErrorItem) *GraphQLError {
	e := &GraphQLError{Messages: make([]string, 0, len(items))}
	for _, item := range items {
		e.Messages = append(e.Messages, item.Message)
	}
	if len(items) > 0 {
		e.Code = items[0].Extensions.Code
		e.Message = items[0].Message
	}
	return e
}

func (e *GraphQLError) Error() string {
	if len(e.Messages) > 1 {
		return fmt.Sprintf("graphql error: %s (and %d more)", e.Message, len(e.Messages)-1)
	}
	return fmt.Sprintf("graphql error: %s", e.Message)
}

var _ SDKError = (*GraphQLError)(nil)

// IsNetworkError reports whether err means the server could not be reached or
// could not serve the request right now: transport failures, timeouts, 5xx and 429.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError || apiErr.StatusCode == http.StatusTooManyRequests
	}

	var gqlErr *GraphQLError
	if errors.As(err, &gqlErr) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// transport errors that are not net.Error, e.g. a connection reset mid-body
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection reset", "no such host", "eof"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// handleAPIError is a helper function that handles the common error pattern
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s %w", operation, requestErr)
	}

	// got a response, but api returned an error
	if resp.IsErrorState() {
		apiErr := NewAPIError(resp.StatusCode, CodeUnknownError, http.StatusText(resp.StatusCode))
		if body := resp.Bytes(); len(body) > 0 {
			var parsed BaseError
			if err := jsonUnmarshal(body, &parsed); err == nil && parsed.Message != "" {
				apiErr.Message = parsed.Message
				if parsed.Code != "" {
					apiErr.Code = parsed.Code
				}
			}
		}
		return fmt.Errorf("%s %w", operation, apiErr)
	}

	return nil
}
