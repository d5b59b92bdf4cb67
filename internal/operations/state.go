package operations

import (
	"sort"
	"sync"
	"time"
)

// RunStatus represents the overall run status
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunState tracks the stages of one pipeline run
type RunState struct {
	mu sync.RWMutex

	id        string
	status    RunStatus
	startTime time.Time
	endTime   *time.Time
	stages    map[string]*StageState
	err       error
}

// NewRunState creates a new run state
func NewRunState(id string) *RunState {
	return &RunState{
		id:        id,
		status:    RunStatusPending,
		startTime: time.Now(),
		stages:    make(map[string]*StageState),
	}
}

// ID returns the run id
func (s *RunState) ID() string {
	return s.id
}

// Start marks the run as running
func (s *RunState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = RunStatusRunning
	s.startTime = time.Now()
}

// Complete marks the run as completed
func (s *RunState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.endTime = &now
	s.status = RunStatusCompleted
}

// Fail marks the run as failed
func (s *RunState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.endTime = &now
	s.status = RunStatusFailed
	s.err = err
}

// Status returns the run status
func (s *RunState) Status() RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Times returns the start and, once finished, end time of the run
func (s *RunState) Times() (time.Time, *time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startTime, s.endTime
}

// Err returns the error that failed the run
func (s *RunState) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Stage returns the state of a stage execution, creating it on first use
func (s *RunState) Stage(stage Stage, shard *int) *StageState {
	key := stateKey(stage.ID(), shard)

	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.stages[key]; ok {
		return st
	}
	st := NewStageState(stage.ID(), stage.Name(), shard)
	st.seq = len(s.stages)
	s.stages[key] = st
	return st
}

// Snapshots returns every stage state, global stages after shard stages,
// shard stages ordered by shard, each group in execution order
func (s *RunState) Snapshots() []StageSnapshot {
	s.mu.RLock()
	snaps := make([]StageSnapshot, 0, len(s.stages))
	for _, st := range s.stages {
		snaps = append(snaps, st.Snapshot())
	}
	s.mu.RUnlock()

	sort.SliceStable(snaps, func(i, j int) bool {
		a, b := snaps[i], snaps[j]
		if (a.Shard == nil) != (b.Shard == nil) {
			return a.Shard != nil
		}
		if a.Shard != nil && *a.Shard != *b.Shard {
			return *a.Shard < *b.Shard
		}
		return a.seq < b.seq
	})
	return snaps
}
