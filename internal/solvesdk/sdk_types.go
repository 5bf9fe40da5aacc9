package solvesdk

import (
	"fmt"
	"runtime"

	"github.com/openmined/solvesync/internal/mutation"
	"github.com/openmined/solvesync/internal/version"
)

const (
	HeaderUserAgent     = "User-Agent"
	HeaderSolveVersion  = "X-Solve-Version"
	HeaderSolveDeviceId = "X-Solve-Device-Id"
)

const (
	pathGraphQL = "/graphql"
	pathHealth  = "/healthz"
)

var UserAgent = fmt.Sprintf("SolveSync/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// graphQLRequest is the body of every POST /graphql call
type graphQLRequest struct {
	Query         string           `json:"query"`
	OperationName string           `json:"operationName"`
	Variables     mutation.RawJSON `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   map[string]mutation.RawJSON `json:"data"`
	Errors []graphQLErrorItem          `json:"errors"`
}

type graphQLErrorItem struct {
	Message    string `json:"message"`
	Path       []any  `json:"path,omitempty"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// BulkResult is the payload of the bulk create mutations
type BulkResult struct {
	Count int `json:"count"`
}
