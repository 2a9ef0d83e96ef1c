// Package manifestfile persists the build manifest on the local filesystem.
package manifestfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nathantilsley/chart-pin/api"
)

// Adapter implements ports.ManifestPort with atomic file replacement so a
// crashed run never leaves a half-written manifest behind.
type Adapter struct{}

// New creates a new manifest file adapter.
func New() *Adapter {
	return &Adapter{}
}

// Load reads and parses the manifest at path.
func (a *Adapter) Load(path string) (*api.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := api.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return m, nil
}

// Save encodes m and replaces the file at path via a rename from a temp file
// in the same directory.
func (a *Adapter) Save(path string, m *api.Manifest) error {
	data, err := m.Encode()
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp manifest: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("setting manifest permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing manifest: %w", err)
	}
	return nil
}
