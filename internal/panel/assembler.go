package panel

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// JoinReport describes the user-months lost by the intersection join
type JoinReport struct {
	Candidates int            `json:"candidates"`
	Kept       int            `json:"kept"`
	Missing    map[string]int `json:"missing,omitempty"`
}

// Dropped returns the number of candidate user-months removed by the join
func (j JoinReport) Dropped() int {
	return j.Candidates - j.Kept
}

// Add accumulates another shard's join report
func (j *JoinReport) Add(other JoinReport) {
	j.Candidates += other.Candidates
	j.Kept += other.Kept
	for id, n := range other.Missing {
		if j.Missing == nil {
			j.Missing = make(map[string]int)
		}
		j.Missing[id] += n
	}
}

// Assembler runs the enabled metrics and joins their outputs
type Assembler struct {
	registry *Registry
	params   Params
	logger   *slog.Logger
}

// NewAssembler creates an assembler over a metric registry
func NewAssembler(registry *Registry, params Params, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		registry: registry,
		params:   params,
		logger:   logger.With(slog.String("component", "panel_assembler")),
	}
}

// Columns returns the columns the assembled panel carries
func (a *Assembler) Columns() []string {
	return a.registry.Columns()
}

// Assemble computes every enabled metric over the table and keeps the
// user-months produced by all of them
func (a *Assembler) Assemble(ctx context.Context, t *Table) (*Panel, JoinReport, error) {
	metrics := a.registry.Enabled()
	candidates := t.Keys()
	report := JoinReport{Candidates: len(candidates), Missing: make(map[string]int)}

	outputs := make([]Output, len(metrics))
	for i, m := range metrics {
		out, err := m.Compute(t, a.params)
		if err != nil {
			return nil, report, fmt.Errorf("metric %s: %w", m.ID, err)
		}
		outputs[i] = out
		a.logger.DebugContext(ctx, "metric computed",
			slog.String("metric", m.ID),
			slog.Int("keys", len(out)))
	}

	rows := make([]Row, 0, len(candidates))
	for _, key := range candidates {
		complete := true
		for i, out := range outputs {
			if _, ok := out[key]; !ok {
				report.Missing[metrics[i].ID]++
				complete = false
			}
		}
		if !complete {
			continue
		}
		row := NewRow(key)
		for _, out := range outputs {
			out[key](&row)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key().Less(rows[j].Key()) })

	report.Kept = len(rows)
	if len(report.Missing) == 0 {
		report.Missing = nil
	}

	if report.Dropped() > 0 {
		a.logger.WarnContext(ctx, "join dropped user-months",
			slog.Int("candidates", report.Candidates),
			slog.Int("kept", report.Kept),
			slog.Any("missing_by_metric", report.Missing))
	}

	return &Panel{Columns: a.registry.Columns(), Rows: rows}, report, nil
}
