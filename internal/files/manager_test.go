package files

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_WriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	m := NewManager(dir)

	err := m.WriteFile("panel.csv", func(w io.Writer) error {
		_, err := fmt.Fprint(w, "user_id,ym\n")
		return err
	})
	require.NoError(t, err)
	assert.True(t, m.FileExists("panel.csv"))

	data, err := os.ReadFile(filepath.Join(dir, "panel.csv"))
	require.NoError(t, err)
	assert.Equal(t, "user_id,ym\n", string(data))
}

func TestManager_WriteFileFailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "panel.csv"), []byte("old"), 0644))

	err := m.WriteFile("panel.csv", func(w io.Writer) error {
		_, _ = fmt.Fprint(w, "partial")
		return errors.New("boom")
	})
	require.Error(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "panel.csv"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file removed")
}

func TestManager_Path(t *testing.T) {
	m := NewManager("out")
	assert.Equal(t, filepath.Join("out", "a.csv"), m.Path("a.csv"))
	abs := filepath.Join(t.TempDir(), "b.csv")
	assert.Equal(t, abs, m.Path(abs))
}
