package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ManifestName is the companion file listing every archive run.
const ManifestName = "archive_manifest.json"

// Manifest records archive runs so operators can audit what went cold when.
type Manifest struct {
	UpdatedAt time.Time `json:"updated_at"`
	Runs      []Run     `json:"runs"`
}

// Run is one Archive() invocation.
type Run struct {
	RunID      string    `json:"run_id"`
	ArchivedAt time.Time `json:"archived_at"`
	Cutoff     string    `json:"cutoff"`
	Entries    []Entry   `json:"entries"`
}

// Entry is one monthly file produced by a run.
type Entry struct {
	Month string `json:"month"`
	File  string `json:"file"`
	Rows  int    `json:"rows"`
}

// loadManifest reads an existing manifest; a missing file yields an empty one.
func loadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Manifest{}, nil
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return m, nil
}

// save writes the manifest durably: temp file in the same directory, sync,
// then atomic rename.
func (m *Manifest) save(path string) error {
	m.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".manifest-*")
	if err != nil {
		return fmt.Errorf("failed to create manifest temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
