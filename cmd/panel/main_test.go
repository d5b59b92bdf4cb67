package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalpanel/internal/exporter"
	"evalpanel/internal/shared/testutil"
	"evalpanel/pkg/contracts/domain"
)

func writeShard(t *testing.T, dir, name string, ids ...int64) {
	t.Helper()
	var txns []domain.Transaction
	for _, id := range ids {
		u := testutil.NewUser(id, domain.NewYearMonth(2018, time.July))
		txns = append(txns, u.Months(domain.NewYearMonth(2018, time.January), 12, testutil.DefaultPlan())...)
	}

	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, testutil.WriteLedgerCSV(f, txns))
}

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{"-data", "in", "-out", "out", "-shard", "2", "-serve"})
	require.NoError(t, err)
	assert.Equal(t, "in", o.dataDir)
	assert.Equal(t, "out", o.outDir)
	assert.Equal(t, 2, o.shard)
	assert.True(t, o.serve)

	o, err = parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, -1, o.shard)

	_, err = parseFlags([]string{"-shard", "x"})
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	tests := []struct {
		name       string
		shardFlag  string
		wantUsers  float64
		wantShards int
	}{
		{"all shards", "-1", 5, 2},
		{"single shard", "1", 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dataDir, outDir := t.TempDir(), t.TempDir()
			writeShard(t, dataDir, "part-0.csv", 1, 2, 3)
			writeShard(t, dataDir, "part-1.csv", 4, 5)

			var stdout bytes.Buffer
			err := run(context.Background(), []string{"-data", dataDir, "-out", outDir, "-shard", tt.shardFlag}, &stdout)
			require.NoError(t, err)
			assert.Contains(t, stdout.String(), "user-months")

			data, err := os.ReadFile(filepath.Join(outDir, exporter.ManifestFile))
			require.NoError(t, err)
			var manifest map[string]interface{}
			require.NoError(t, json.Unmarshal(data, &manifest))
			assert.Equal(t, tt.wantUsers, manifest["users"])
			assert.Len(t, manifest["shards"], tt.wantShards)

			_, err = os.Stat(filepath.Join(outDir, exporter.PanelFile))
			assert.NoError(t, err)
		})
	}
}

func TestRun_ShardOutOfRange(t *testing.T) {
	dataDir := t.TempDir()
	writeShard(t, dataDir, "part-0.csv", 1)

	err := run(context.Background(), []string{"-data", dataDir, "-out", t.TempDir(), "-shard", "3"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "out of range")
}

func TestRun_MissingDataDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent")
	err := run(context.Background(), []string{"-data", missing, "-out", t.TempDir()}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "does not exist")
}

// syncBuffer lets the test read output written by run from another goroutine
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun_ServeKeepsFailedRunVisible(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "part-0.csv"), []byte("id,user_id\n1,1\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stdout syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, []string{"-data", dataDir, "-out", t.TempDir(), "-serve", "-addr", "127.0.0.1:0"}, &stdout)
	}()

	addrPattern := regexp.MustCompile(`serving run status on http://(\S+)`)
	var addr string
	require.Eventually(t, func() bool {
		m := addrPattern.FindStringSubmatch(stdout.String())
		if m == nil {
			return false
		}
		addr = m[1]
		return true
	}, 5*time.Second, 20*time.Millisecond)
	assert.Contains(t, stdout.String(), "run failed")

	resp, err := http.Get("http://" + addr + "/api/v1/run")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}
