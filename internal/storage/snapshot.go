package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"ammpool/internal/model"
)

// SnapshotFile writes pool snapshots to a JSON document, replacing it
// atomically.
type SnapshotFile struct {
	Path string
}

type snapshotDocument struct {
	Pools     []model.PoolSnapshot `json:"pools"`
	UpdatedAt string               `json:"updated_at"`
}

func (s *SnapshotFile) PutSnapshots(_ context.Context, snapshots []model.PoolSnapshot) error {
	if s == nil || s.Path == "" {
		return nil
	}
	if err := ensureDir(s.Path); err != nil {
		return err
	}

	if snapshots == nil {
		snapshots = []model.PoolSnapshot{}
	}
	doc := snapshotDocument{
		Pools:     snapshots,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// LoadSnapshots reads a document written by PutSnapshots.
func (s *SnapshotFile) LoadSnapshots() ([]model.PoolSnapshot, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return doc.Pools, nil
}
