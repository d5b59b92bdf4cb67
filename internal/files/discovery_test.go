package files

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalpanel/internal/shared/testutil"
)

func touch(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDiscover(t *testing.T) {
	tests := []struct {
		name      string
		files     []string
		wantNames []string
		wantFiles map[string]int
	}{
		{
			name:      "single files sorted by name",
			files:     []string{"shard_2.csv", "shard_0.xlsx", "shard_1.CSV"},
			wantNames: []string{"shard_0.xlsx", "shard_1.CSV", "shard_2.csv"},
		},
		{
			name:      "unsupported and hidden files ignored",
			files:     []string{"shard_0.csv", "notes.txt", ".shard_1.csv", "old.xls"},
			wantNames: []string{"shard_0.csv"},
		},
		{
			name:      "directories are shards",
			files:     []string{"b/part_1.csv", "b/part_0.csv", "a/part.xlsx", "empty/readme.md", "c.csv"},
			wantNames: []string{"a", "b", "c.csv"},
			wantFiles: map[string]int{"a": 1, "b": 2, "c.csv": 1},
		},
		{
			name: "empty directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				touch(t, filepath.Join(dir, f), "id\n")
			}
			logger, _ := testutil.NewTestLogger(t)

			shards, err := NewDiscovery(dir, logger).Discover(context.Background())
			require.NoError(t, err)

			names := make([]string, 0, len(shards))
			for i, s := range shards {
				assert.Equal(t, i, s.Index)
				names = append(names, s.Name)
				if n, ok := tt.wantFiles[s.Name]; ok {
					assert.Len(t, s.Files, n, s.Name)
				}
			}
			if len(tt.wantNames) == 0 {
				assert.Empty(t, names)
				return
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestDiscover_DirectoryFilesInNameOrder(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "s", "part_1.csv"), "")
	touch(t, filepath.Join(dir, "s", "part_0.csv"), "")

	shards, err := NewDiscovery(dir, nil).Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, shards, 1)
	assert.Equal(t, []string{
		filepath.Join(dir, "s", "part_0.csv"),
		filepath.Join(dir, "s", "part_1.csv"),
	}, shards[0].Files)
}

func TestDiscover_MissingDirectory(t *testing.T) {
	_, err := NewDiscovery(filepath.Join(t.TempDir(), "absent"), nil).Discover(context.Background())
	assert.Error(t, err)
}

func TestSelect(t *testing.T) {
	shards := []Shard{{Index: 0, Name: "a"}, {Index: 1, Name: "b"}}

	all, err := Select(shards, -1)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := Select(shards, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "b", one[0].Name)

	_, err = Select(shards, 2)
	assert.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	touch(t, a, "id,user_id\n1,2\n")
	touch(t, b, "id,user_id\n1,2\n")

	fa, err := Fingerprint(Shard{Files: []string{a}})
	require.NoError(t, err)
	fb, err := Fingerprint(Shard{Files: []string{b}})
	require.NoError(t, err)
	assert.Len(t, fa, 64)
	assert.Equal(t, fa, fb, "identical content hashes identically")

	touch(t, b, "id,user_id\n1,3\n")
	fb, err = Fingerprint(Shard{Files: []string{b}})
	require.NoError(t, err)
	assert.NotEqual(t, fa, fb)

	_, err = Fingerprint(Shard{Files: []string{filepath.Join(dir, "absent.csv")}})
	assert.Error(t, err)
}
