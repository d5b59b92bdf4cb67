package operations

import (
	"context"
	"fmt"
	"sync"
	"time"

	"evalpanel/internal/files"
	"evalpanel/internal/outliers"
	"evalpanel/internal/panel"
	"evalpanel/internal/selection"
	"evalpanel/internal/validation"
	"evalpanel/pkg/contracts/domain"
)

// Scope says whether a stage runs once per shard or once on the gathered panel
type Scope string

const (
	ScopeShard  Scope = "shard"
	ScopeGlobal Scope = "global"
)

// Stage represents a single named step of the pipeline
type Stage interface {
	// ID returns the unique identifier for this stage
	ID() string

	// Name returns the human-readable name for this stage
	Name() string

	// Scope reports where the stage runs
	Scope() Scope

	// Required stages cannot be disabled
	Required() bool

	// Execute runs the stage against the data of one shard or of the
	// gathered run
	Execute(ctx context.Context, data *Data) error
}

// Data is what stages read and write. Shard stages each get their own value;
// global stages share the gathered one.
type Data struct {
	Shard        *files.Shard
	Transactions []domain.Transaction
	Panel        *panel.Panel
	Join         panel.JoinReport
	Ledger       *selection.Ledger
	Outliers     outliers.Report
	Outcomes     []validation.Outcome
}

// StageStatus represents the current status of a stage
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusActive    StageStatus = "active"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

// StageState represents the runtime state of one stage execution
type StageState struct {
	mu        sync.RWMutex
	seq       int
	stage     string
	name      string
	shard     *int
	status    StageStatus
	startTime *time.Time
	endTime   *time.Time
	message   string
	err       error
}

// NewStageState creates a pending stage state. shard is nil for global stages.
func NewStageState(stage, name string, shard *int) *StageState {
	return &StageState{
		stage:  stage,
		name:   name,
		shard:  shard,
		status: StageStatusPending,
	}
}

func stateKey(stage string, shard *int) string {
	if shard == nil {
		return stage
	}
	return fmt.Sprintf("%s[%d]", stage, *shard)
}

// Start marks the stage as active and sets the start time
func (s *StageState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.startTime = &now
	s.status = StageStatusActive
}

// Complete marks the stage as completed and sets the end time
func (s *StageState) Complete(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.endTime = &now
	s.status = StageStatusCompleted
	s.message = message
}

// Fail marks the stage as failed with the given error
func (s *StageState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.endTime = &now
	s.status = StageStatusFailed
	s.err = err
}

// Skip marks the stage as skipped with the given reason
func (s *StageState) Skip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.endTime = &now
	s.status = StageStatusSkipped
	s.message = reason
}

// Status returns the current status
func (s *StageState) Status() StageStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Duration returns the duration of the stage execution
func (s *StageState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.startTime == nil {
		return 0
	}
	if s.endTime != nil {
		return s.endTime.Sub(*s.startTime)
	}
	return time.Since(*s.startTime)
}

// StageSnapshot is the serialisable view of a stage state
type StageSnapshot struct {
	Stage      string      `json:"stage"`
	Name       string      `json:"name"`
	Shard      *int        `json:"shard,omitempty"`
	Status     StageStatus `json:"status"`
	StartTime  *time.Time  `json:"start_time,omitempty"`
	EndTime    *time.Time  `json:"end_time,omitempty"`
	DurationMS int64       `json:"duration_ms"`
	Message    string      `json:"message,omitempty"`
	Error      string      `json:"error,omitempty"`

	seq int
}

// Snapshot copies the state for reporting
func (s *StageState) Snapshot() StageSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StageSnapshot{
		Stage:     s.stage,
		Name:      s.name,
		Shard:     s.shard,
		Status:    s.status,
		StartTime: s.startTime,
		EndTime:   s.endTime,
		Message:   s.message,
		seq:       s.seq,
	}
	if s.startTime != nil && s.endTime != nil {
		snap.DurationMS = s.endTime.Sub(*s.startTime).Milliseconds()
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

// BaseStage provides the identity part of a Stage
type BaseStage struct {
	id       string
	name     string
	scope    Scope
	required bool
}

// NewBaseStage creates a new base stage
func NewBaseStage(id, name string, scope Scope, required bool) BaseStage {
	return BaseStage{id: id, name: name, scope: scope, required: required}
}

// ID returns the stage ID
func (b *BaseStage) ID() string { return b.id }

// Name returns the stage name
func (b *BaseStage) Name() string { return b.name }

// Scope returns where the stage runs
func (b *BaseStage) Scope() Scope { return b.scope }

// Required reports whether the stage may be disabled
func (b *BaseStage) Required() bool { return b.required }

// funcStage adapts a function into a Stage
type funcStage struct {
	BaseStage
	run func(ctx context.Context, data *Data) error
}

// NewStage creates a stage from a function
func NewStage(base BaseStage, run func(ctx context.Context, data *Data) error) Stage {
	return &funcStage{BaseStage: base, run: run}
}

func (s *funcStage) Execute(ctx context.Context, data *Data) error {
	return s.run(ctx, data)
}
