package operations

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"evalpanel/internal/infrastructure"
	"evalpanel/internal/outliers"
	"evalpanel/internal/panel"
	"evalpanel/internal/selection"
	"evalpanel/internal/validation"
)

// ManifestShard records the provenance and yield of one shard
type ManifestShard struct {
	Index       int              `json:"index"`
	Name        string           `json:"name"`
	Files       []string         `json:"files"`
	Fingerprint string           `json:"fingerprint"`
	Users       int              `json:"users"`
	UserMonths  int              `json:"user_months"`
	Join        panel.JoinReport `json:"join"`
}

// RunManifest is the reproducibility record of a run
type RunManifest struct {
	mu sync.RWMutex

	RunID        string                      `json:"run_id"`
	Version      string                      `json:"version"`
	StartTime    time.Time                   `json:"start_time"`
	EndTime      *time.Time                  `json:"end_time,omitempty"`
	Status       RunStatus                   `json:"status"`
	ConfigDigest string                      `json:"config_digest"`
	Shards       []ManifestShard             `json:"shards"`
	Join         panel.JoinReport            `json:"join"`
	Columns      []string                    `json:"columns"`
	Users        int                         `json:"users"`
	UserMonths   int                         `json:"user_months"`
	Ledger       *selection.Ledger           `json:"ledger"`
	Outliers     outliers.Report             `json:"outliers,omitempty"`
	Validation   []validation.Outcome        `json:"validation,omitempty"`
	Stages       []StageSnapshot             `json:"stages"`
	Runtime      infrastructure.RuntimeStats `json:"runtime"`
	Outputs      []string                    `json:"outputs,omitempty"`
}

// NewRunManifest builds the manifest of a completed run
func NewRunManifest(result *Result, configDigest string) *RunManifest {
	start, end := result.State.Times()
	m := &RunManifest{
		RunID:        result.RunID,
		Version:      infrastructure.ServiceVersion,
		StartTime:    start,
		EndTime:      end,
		Status:       result.State.Status(),
		ConfigDigest: configDigest,
		Join:         result.Join,
		Columns:      result.Panel.Columns,
		Users:        result.Panel.UserCount(),
		UserMonths:   result.Panel.Len(),
		Ledger:       result.Ledger,
		Outliers:     result.Outliers,
		Validation:   result.Outcomes,
		Stages:       result.State.Snapshots(),
		Runtime:      infrastructure.CaptureRuntimeStats(),
	}
	for _, s := range result.Shards {
		m.Shards = append(m.Shards, ManifestShard{
			Index:       s.Shard.Index,
			Name:        s.Shard.Name,
			Files:       s.Shard.Files,
			Fingerprint: s.Fingerprint,
			Users:       s.Panel.UserCount(),
			UserMonths:  s.Panel.Len(),
			Join:        s.Join,
		})
	}
	return m
}

// AddOutput records a file written for the run
func (m *RunManifest) AddOutput(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Outputs = append(m.Outputs, name)
}

// MarshalJSON serialises the manifest under its read lock
func (m *RunManifest) MarshalJSON() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type plain RunManifest
	data, err := json.Marshal((*plain)(m))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return data, nil
}
