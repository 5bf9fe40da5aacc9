package solvesdk

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openmined/solvesync/internal/mutation"
)

type document struct {
	operation string
	query     string
}

var (
	docCreateRecord = document{
		operation: "CreateRecord",
		query:     `mutation CreateRecord($input: RecordInput!) { createRecord(input: $input) { id } }`,
	}
	docUpdateRecord = document{
		operation: "UpdateRecord",
		query:     `mutation UpdateRecord($id: ID!, $input: RecordPatch!) { updateRecord(id: $id, input: $input) { id } }`,
	}
	docDeleteRecord = document{
		operation: "DeleteRecord",
		query:     `mutation DeleteRecord($id: ID!) { deleteRecord(id: $id) }`,
	}
	docDeleteRecords = document{
		operation: "DeleteRecords",
		query:     `mutation DeleteRecords($ids: [ID!]!) { deleteRecords(ids: $ids) }`,
	}
	docBulkCreateSessions = document{
		operation: "BulkCreateSessions",
		query:     `mutation BulkCreateSessions($input: [SessionInput!]!) { bulkCreateSessions(input: $input) { count } }`,
	}
	docBulkCreateSolves = document{
		operation: "BulkCreateSolves",
		query:     `mutation BulkCreateSolves($input: [RecordInput!]!) { bulkCreateSolves(input: $input) { count } }`,
	}
)

func documentFor(kind mutation.Kind) (document, error) {
	switch kind {
	case mutation.KindCreateRecord:
		return docCreateRecord, nil
	case mutation.KindUpdateRecord:
		return docUpdateRecord, nil
	case mutation.KindDeleteRecord:
		return docDeleteRecord, nil
	case mutation.KindDeleteRecords:
		return docDeleteRecords, nil
	case mutation.KindBulkCreateSessions:
		return docBulkCreateSessions, nil
	case mutation.KindBulkCreateSolves:
		return docBulkCreateSolves, nil
	default:
		return document{}, fmt.Errorf("%w: %q", mutation.ErrUnknownKind, kind)
	}
}

// Execute sends a stored mutation. Variables are passed through verbatim.
func (s *SDK) Execute(ctx context.Context, kind mutation.Kind, vars mutation.RawJSON) error {
	doc, err := documentFor(kind)
	if err != nil {
		return err
	}

	_, err = s.do(ctx, doc, vars)
	return err
}

// ExecuteMutation encodes m and sends it.
func (s *SDK) ExecuteMutation(ctx context.Context, m mutation.Mutation) error {
	vars, err := mutation.Encode(m)
	if err != nil {
		return err
	}
	return s.Execute(ctx, m.Kind(), vars)
}

// BulkCreateSessions creates sessions in one call and returns how many the server created.
func (s *SDK) BulkCreateSessions(ctx context.Context, sessions []mutation.Session) (int, error) {
	if len(sessions) == 0 {
		return 0, ErrEmptyBatch
	}
	return s.bulk(ctx, docBulkCreateSessions, "bulkCreateSessions", sessions)
}

// BulkCreateSolves creates records in one call and returns how many the server created.
func (s *SDK) BulkCreateSolves(ctx context.Context, records []mutation.Record) (int, error) {
	if len(records) == 0 {
		return 0, ErrEmptyBatch
	}
	return s.bulk(ctx, docBulkCreateSolves, "bulkCreateSolves", records)
}

func (s *SDK) bulk(ctx context.Context, doc document, field string, input any) (int, error) {
	vars, err := jsonMarshal(map[string]any{"input": input})
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", doc.operation, err)
	}

	data, err := s.do(ctx, doc, vars)
	if err != nil {
		return 0, err
	}

	raw, ok := data[field]
	if !ok || len(raw) == 0 {
		return 0, fmt.Errorf("%s: %w", doc.operation, ErrEmptyResponse)
	}

	var res BulkResult
	if err := jsonUnmarshal(raw, &res); err != nil {
		return 0, fmt.Errorf("decode %s: %w", doc.operation, err)
	}
	return res.Count, nil
}

func (s *SDK) do(ctx context.Context, doc document, vars mutation.RawJSON) (map[string]mutation.RawJSON, error) {
	var resp graphQLResponse
	res, err := s.client.R().
		SetContext(ctx).
		SetBody(&graphQLRequest{
			Query:         doc.query,
			OperationName: doc.operation,
			Variables:     vars,
		}).
		SetSuccessResult(&resp).
		Post(pathGraphQL)

	if err := handleAPIError(res, err, doc.operation); err != nil {
		return nil, err
	}

	if len(resp.Errors) > 0 {
		gqlErr := newGraphQLError(resp.Errors)
		slog.Debug("sdk graphql error", "operation", doc.operation, "code", gqlErr.Code, "error", gqlErr.Message)
		return nil, fmt.Errorf("%s %w", doc.operation, gqlErr)
	}

	return resp.Data, nil
}
