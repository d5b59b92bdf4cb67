package operations

import "time"

// Event types broadcast while a run progresses
const (
	EventTypeRun   = "run"
	EventTypeStage = "stage"
)

// EventHub receives run and stage events, typically a websocket hub
type EventHub interface {
	Broadcast(eventType string, payload interface{})
}

// RunEvent reports a change of the overall run status
type RunEvent struct {
	RunID     string     `json:"run_id"`
	Status    RunStatus  `json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// StageEvent reports a change of one stage execution
type StageEvent struct {
	RunID string `json:"run_id"`
	StageSnapshot
}

func (r *Runner) publishRun(state *RunState) {
	if r.hub == nil {
		return
	}
	start, end := state.Times()
	event := RunEvent{
		RunID:     state.ID(),
		Status:    state.Status(),
		StartTime: start,
		EndTime:   end,
	}
	if err := state.Err(); err != nil {
		event.Error = err.Error()
	}
	r.hub.Broadcast(EventTypeRun, event)
}

func (r *Runner) publishStage(state *RunState, st *StageState) {
	if r.hub == nil {
		return
	}
	r.hub.Broadcast(EventTypeStage, StageEvent{RunID: state.ID(), StageSnapshot: st.Snapshot()})
}
