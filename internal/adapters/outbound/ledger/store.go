package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/noxaudit/noxaudit/internal/domain"
)

// Store is a file-based implementation of domain.PendingLedger.
type Store struct{}

// New creates a new file-based ledger store.
func New() *Store {
	return &Store{}
}

// Load reads the pending set at path. Returns (nil, nil) if nothing is pending.
func (s *Store) Load(path string) (*domain.PendingSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // nothing pending is not an error
		}
		return nil, err
	}

	var set domain.PendingSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, domain.NewMalformedInputError("load_ledger", path, err)
	}
	return &set, nil
}

// Save replaces the ledger with set. The data is written to a temporary file
// in the same directory, synced, then renamed over path, so a crash leaves
// either the old or the new ledger and never a torn one.
func (s *Store) Save(path string, set domain.PendingSet) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".pending-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing ledger: %w", err)
	}
	return syncDir(dir)
}

// Clear removes the ledger. Clearing an absent ledger succeeds.
func (s *Store) Clear(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	// Some filesystems refuse to fsync directories; the rename already happened.
	_ = d.Sync()
	return nil
}
