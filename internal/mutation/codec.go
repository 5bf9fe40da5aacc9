package mutation

import (
	"fmt"

	"github.com/goccy/go-json"
)

// RawJSON is an opaque, verbatim JSON payload.
type RawJSON = json.RawMessage

// Encode serializes the payload of m as it will be sent to the remote endpoint.
func Encode(m Mutation) (RawJSON, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}
	return data, nil
}

// Decode parses vars into the typed mutation named by kind.
func Decode(kind Kind, vars RawJSON) (Mutation, error) {
	var (
		m   Mutation
		err error
	)

	switch kind {
	case KindCreateRecord:
		var v CreateRecord
		err = json.Unmarshal(vars, &v)
		m = v
	case KindUpdateRecord:
		var v UpdateRecord
		err = json.Unmarshal(vars, &v)
		m = v
	case KindDeleteRecord:
		var v DeleteRecord
		err = json.Unmarshal(vars, &v)
		m = v
	case KindDeleteRecords:
		var v DeleteRecords
		err = json.Unmarshal(vars, &v)
		m = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, kind, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
