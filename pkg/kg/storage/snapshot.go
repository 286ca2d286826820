package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/aashirjaved/biokg/pkg/kg"
)

// SnapshotStore persists whole-graph snapshots as JSON files. The downstream
// visualization layer reads these; they can also warm an alias table so a new
// ingestion run resolves surface forms against previously seen entities.
type SnapshotStore struct {
	filePath string
}

// NewSnapshotStore creates a snapshot store writing to filePath.
func NewSnapshotStore(filePath string) *SnapshotStore {
	return &SnapshotStore{filePath: filePath}
}

// Store writes the snapshot, creating parent directories as needed.
func (s *SnapshotStore) Store(ctx context.Context, snap kg.GraphSnapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return errors.Wrap(err, "failed to create snapshot directory")
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode snapshot")
	}

	return os.WriteFile(s.filePath, data, 0644)
}

// Load reads a snapshot back.
func (s *SnapshotStore) Load(ctx context.Context) (kg.GraphSnapshot, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return kg.GraphSnapshot{}, errors.Wrap(err, "failed to read snapshot")
	}

	var snap kg.GraphSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return kg.GraphSnapshot{}, errors.Wrap(err, "failed to decode snapshot")
	}
	return snap, nil
}

// WarmAliasTable registers every entity in the snapshot with the table.
func WarmAliasTable(table *kg.AliasTable, snap kg.GraphSnapshot) {
	for _, e := range snap.Entities {
		table.AddEntity(e)
	}
}
