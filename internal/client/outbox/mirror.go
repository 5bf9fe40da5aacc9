package outbox

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/openmined/solvesync/internal/mutation"
)

// MirrorKey is the fixed key the whole queue is stored under.
const MirrorKey = "offline_queue_backup"

// Snapshot is the serialized mirror blob.
type Snapshot struct {
	Items []*mutation.Queued `json:"items"`
	// Degraded is set while the mirror holds changes the primary has not seen.
	Degraded bool `json:"degraded"`
	// Dirty ids were added or updated on the mirror alone; their mirror copy wins on recovery.
	Dirty []string `json:"dirty,omitempty"`
	// Removed ids were deleted on the mirror alone and must be deleted from the primary.
	Removed []string `json:"removed,omitempty"`
	SavedAt time.Time `json:"savedAt"`
}

func (s *Snapshot) markDirty(id string) {
	s.Removed = slices.DeleteFunc(s.Removed, func(v string) bool { return v == id })
	if !slices.Contains(s.Dirty, id) {
		s.Dirty = append(s.Dirty, id)
	}
}

func (s *Snapshot) markRemoved(id string) {
	s.Dirty = slices.DeleteFunc(s.Dirty, func(v string) bool { return v == id })
	if !slices.Contains(s.Removed, id) {
		s.Removed = append(s.Removed, id)
	}
}

func (s *Snapshot) item(id string) *mutation.Queued {
	for _, q := range s.Items {
		if q.ID == id {
			return q
		}
	}
	return nil
}

// Mirror is a lower-durability copy of the whole queue, used when the primary store fails.
type Mirror struct {
	blobs BlobStore
	key   string
}

func NewMirror(blobs BlobStore) *Mirror {
	return &Mirror{blobs: blobs, key: MirrorKey}
}

// Load returns the stored snapshot, or an empty one if nothing was saved yet.
// Items are ordered by enqueue timestamp.
func (m *Mirror) Load() (*Snapshot, error) {
	data, err := m.blobs.Get(m.key)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return &Snapshot{}, nil
		}
		return nil, fmt.Errorf("mirror load: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("mirror decode: %w", err)
	}
	sort.SliceStable(snap.Items, func(i, j int) bool {
		return snap.Items[i].Timestamp.Before(snap.Items[j].Timestamp)
	})
	return &snap, nil
}

// Save overwrites the stored snapshot wholesale.
func (m *Mirror) Save(snap *Snapshot) error {
	if snap.Items == nil {
		snap.Items = []*mutation.Queued{}
	}
	snap.SavedAt = time.Now()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("mirror encode: %w", err)
	}
	if err := m.blobs.Set(m.key, data); err != nil {
		return fmt.Errorf("mirror save: %w", err)
	}
	return nil
}

func (m *Mirror) Clear() error {
	if err := m.blobs.Delete(m.key); err != nil {
		return fmt.Errorf("mirror clear: %w", err)
	}
	return nil
}
