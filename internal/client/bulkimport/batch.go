package bulkimport

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/goccy/go-json"
	"github.com/openmined/solvesync/internal/mutation"
	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyBatch        = errors.New("bulkimport: batch is empty")
	ErrUnsupportedFormat = errors.New("bulkimport: unsupported batch format")
	ErrDuplicateID       = errors.New("bulkimport: duplicate id")
)

// Batch is an already parsed export: sessions first, then the solves that reference them.
type Batch struct {
	Sessions []mutation.Session `json:"sessions" yaml:"sessions"`
	Solves   []mutation.Record  `json:"solves" yaml:"solves"`
}

func (b *Batch) Validate() error {
	if len(b.Sessions) == 0 && len(b.Solves) == 0 {
		return ErrEmptyBatch
	}

	sessionIDs := mapset.NewThreadUnsafeSetWithSize[string](len(b.Sessions))
	for i, s := range b.Sessions {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("session %d: %w", i+1, err)
		}
		if !sessionIDs.Add(s.ID) {
			return fmt.Errorf("%w: session %q", ErrDuplicateID, s.ID)
		}
	}

	solveIDs := mapset.NewThreadUnsafeSetWithSize[string](len(b.Solves))
	for i, r := range b.Solves {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("solve %d: %w", i+1, err)
		}
		if !solveIDs.Add(r.ID) {
			return fmt.Errorf("%w: solve %q", ErrDuplicateID, r.ID)
		}
	}
	return nil
}

// LoadBatchFile reads a JSON or YAML batch, chosen by file extension.
func LoadBatchFile(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}

	var batch Batch
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &batch)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &batch)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse batch %s: %w", filepath.Base(path), err)
	}

	if err := batch.Validate(); err != nil {
		return nil, err
	}
	return &batch, nil
}
