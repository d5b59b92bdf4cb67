package files

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Manager writes run outputs under a base directory
type Manager struct {
	basePath string
}

// NewManager creates a new output manager
func NewManager(basePath string) *Manager {
	return &Manager{basePath: basePath}
}

// Path resolves a name against the base directory
func (m *Manager) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(m.basePath, name)
}

// EnsureDirectory creates the base directory if it doesn't exist
func (m *Manager) EnsureDirectory() error {
	if err := os.MkdirAll(m.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", m.basePath, err)
	}
	return nil
}

// WriteFile streams write's output into name. The content goes to a
// temporary file in the same directory which replaces name only once write
// succeeds.
func (m *Manager) WriteFile(name string, write func(w io.Writer) error) error {
	if err := m.EnsureDirectory(); err != nil {
		return err
	}
	target := m.Path(name)

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", name, err)
	}
	return nil
}

// FileExists checks if a file exists at the given name
func (m *Manager) FileExists(name string) bool {
	_, err := os.Stat(m.Path(name))
	return err == nil
}
