package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pavelanni/interviewer/internal/model"
)

// Snapshot is the persisted part of State.
type Snapshot struct {
	User        *model.User            `json:"user"`
	Token       string                 `json:"token,omitempty"`
	History     []model.SessionHistory `json:"sessionHistory"`
	CustomRoles []string               `json:"customRoles"`
}

// SnapshotOf extracts the persisted fields of s.
func SnapshotOf(s State) Snapshot {
	return Snapshot{User: s.User, Token: s.Token, History: s.History, CustomRoles: s.CustomRoles}
}

// Apply restores a snapshot onto s. Session fields are left untouched.
func (snap Snapshot) Apply(s State) State {
	s.User = snap.User
	s.Token = snap.Token
	s.History = snap.History
	s.CustomRoles = snap.CustomRoles
	return s
}

// SnapshotStore loads and saves snapshots.
type SnapshotStore interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
}

// FileStore keeps the snapshot in a JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by path. The file is created on the
// first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the snapshot. A missing file yields an empty snapshot.
func (f *FileStore) Load() (Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("parse snapshot %s: %w", f.path, err)
	}
	return snap, nil
}

// Save writes the snapshot atomically with owner-only permissions.
func (f *FileStore) Save(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
