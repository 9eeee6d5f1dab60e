package snapshot

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/aukilabs/garth/messages"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
)

// ErrTypeNotFound is the type of errors for snapshots that do not exist.
const ErrTypeNotFound = "snapshot_not_found"

// Snapshot is one saved copy of a scene's object content.
type Snapshot struct {
	ID        string            `json:"id"`
	SceneID   string            `json:"scene_id"`
	SceneUUID string            `json:"scene_uuid"`
	SavedAt   time.Time         `json:"saved_at"`
	Objects   []messages.Object `json:"objects"`
}

// Store reads and writes snapshot documents as JSON files under Dir.
type Store struct {
	Dir string
}

func (s *Store) Save(snapshot Snapshot) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return errors.New("creating snapshot directory failed").
			WithTag("dir", s.Dir).
			Wrap(err)
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return errors.New("encoding snapshot failed").
			WithTag("snapshot_id", snapshot.ID).
			Wrap(err)
	}

	if err := os.WriteFile(s.filename(snapshot.ID), data, 0644); err != nil {
		return errors.New("writing snapshot failed").
			WithTag("snapshot_id", snapshot.ID).
			Wrap(err)
	}
	return nil
}

func (s *Store) Load(id string) (Snapshot, error) {
	// Ids are uuids, anything else cannot name a stored file.
	if _, err := uuid.Parse(id); err != nil {
		return Snapshot{}, errors.New("snapshot not found").
			WithType(ErrTypeNotFound).
			WithTag("snapshot_id", id).
			Wrap(err)
	}

	data, err := os.ReadFile(s.filename(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, errors.New("snapshot not found").
				WithType(ErrTypeNotFound).
				WithTag("snapshot_id", id).
				Wrap(err)
		}
		return Snapshot{}, errors.New("reading snapshot failed").
			WithTag("snapshot_id", id).
			Wrap(err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, errors.New("decoding snapshot failed").
			WithTag("snapshot_id", id).
			Wrap(err)
	}
	return snapshot, nil
}

// List returns the stored snapshots, most recent first.
func (s *Store) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.New("listing snapshots failed").
			WithTag("dir", s.Dir).
			Wrap(err)
	}

	snapshots := make([]Snapshot, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		snapshot, err := s.Load(entry.Name()[:len(entry.Name())-len(".json")])
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].SavedAt.After(snapshots[j].SavedAt)
	})
	return snapshots, nil
}

func (s *Store) filename(id string) string {
	return filepath.Join(s.Dir, id+".json")
}
