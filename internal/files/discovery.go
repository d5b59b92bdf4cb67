package files

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Shard is one independent slice of the ledger. A shard is a single file or
// a directory whose files are read and concatenated.
type Shard struct {
	Index int      `json:"index"`
	Name  string   `json:"name"`
	Path  string   `json:"path"`
	Files []string `json:"files"`
}

// IsSupported reports whether a file name carries a readable extension
func IsSupported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// Discovery finds shards under a data directory
type Discovery struct {
	basePath string
	logger   *slog.Logger
}

// NewDiscovery creates a new shard discovery instance
func NewDiscovery(basePath string, logger *slog.Logger) *Discovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{
		basePath: basePath,
		logger:   logger.With(slog.String("component", "discovery")),
	}
}

// Discover returns the shards in name order. Hidden entries, unsupported
// files and directories without any supported file are ignored.
func (d *Discovery) Discover(ctx context.Context) ([]Shard, error) {
	entries, err := os.ReadDir(d.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", d.basePath, err)
	}

	var shards []Shard
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(d.basePath, name)

		if entry.IsDir() {
			files, err := listSupported(path)
			if err != nil {
				return nil, err
			}
			if len(files) == 0 {
				d.logger.DebugContext(ctx, "skipping directory without shard files",
					slog.String("path", path))
				continue
			}
			shards = append(shards, Shard{Name: name, Path: path, Files: files})
			continue
		}
		if IsSupported(name) {
			shards = append(shards, Shard{Name: name, Path: path, Files: []string{path}})
		}
	}

	sort.Slice(shards, func(i, j int) bool {
		return shards[i].Name < shards[j].Name
	})
	for i := range shards {
		shards[i].Index = i
	}

	d.logger.InfoContext(ctx, "shards discovered",
		slog.String("path", d.basePath),
		slog.Int("count", len(shards)))
	return shards, nil
}

// Select returns the shard at index, or every shard when index is negative
func Select(shards []Shard, index int) ([]Shard, error) {
	if index < 0 {
		return shards, nil
	}
	if index >= len(shards) {
		return nil, fmt.Errorf("shard %d out of range, %d shards found", index, len(shards))
	}
	return shards[index : index+1], nil
}

func listSupported(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || !IsSupported(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Fingerprint returns the hex BLAKE2b-256 digest of the shard's file contents
// in file order
func Fingerprint(shard Shard) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	for _, path := range shard.Files {
		if err := hashFile(h, path); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return nil
}
