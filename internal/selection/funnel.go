// Package selection implements the sample-selection funnel: an ordered
// sequence of user-level filters, each recording the surviving sample size in
// a mergeable ledger.
package selection

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/shopspring/decimal"

	"evalpanel/internal/panel"
)

// Step is one stage of the funnel. Apply must only remove rows.
type Step interface {
	ID() string
	Label() string
	Requires() []string
	Apply(p *panel.Panel) *panel.Panel
}

// UserStep keeps or drops whole users by a predicate over all their retained
// rows. Users for which the predicate cannot be evaluated are dropped.
type UserStep struct {
	id       string
	label    string
	requires []string
	keep     func(u panel.UserRows) bool
}

// NewUserStep creates a whole-user filter
func NewUserStep(id, label string, requires []string, keep func(u panel.UserRows) bool) *UserStep {
	return &UserStep{id: id, label: label, requires: requires, keep: keep}
}

func (s *UserStep) ID() string         { return s.id }
func (s *UserStep) Label() string      { return s.label }
func (s *UserStep) Requires() []string { return s.requires }

// Apply keeps the users satisfying the predicate
func (s *UserStep) Apply(p *panel.Panel) *panel.Panel {
	return p.Filter(func(u panel.UserRows) bool {
		if len(u.Rows) == 0 {
			return false
		}
		return s.keep(u)
	})
}

// BoundaryStep removes each user's first and last observed month
type BoundaryStep struct {
	id    string
	label string
}

// NewBoundaryStep creates a boundary trim step
func NewBoundaryStep(id, label string) *BoundaryStep {
	return &BoundaryStep{id: id, label: label}
}

func (s *BoundaryStep) ID() string         { return s.id }
func (s *BoundaryStep) Label() string      { return s.label }
func (s *BoundaryStep) Requires() []string { return nil }

// Apply keeps the months strictly between each user's first and last month
func (s *BoundaryStep) Apply(p *panel.Panel) *panel.Panel {
	return p.Narrow(func(u panel.UserRows) []panel.Row {
		if len(u.Rows) <= 2 {
			return nil
		}
		return u.Rows[1 : len(u.Rows)-1]
	})
}

// CountSample measures a panel for the ledger. Volume is summed exactly so the
// result does not depend on how the sample was split across shards.
func CountSample(p *panel.Panel) Counts {
	c := Counts{Users: int64(p.UserCount()), UserMonths: int64(p.Len()), Volume: decimal.Zero}
	for i := range p.Rows {
		r := &p.Rows[i]
		if !math.IsNaN(r.TxnsCount) {
			c.Txns += int64(math.Round(r.TxnsCount))
		}
		if !math.IsNaN(r.TxnsVolume) && !math.IsInf(r.TxnsVolume, 0) {
			c.Volume = c.Volume.Add(decimal.NewFromFloat(r.TxnsVolume))
		}
	}
	return c
}

// Funnel runs the enabled steps in order
type Funnel struct {
	steps    []Step
	disabled map[string]bool
	logger   *slog.Logger
}

// NewFunnel creates a funnel over steps in the given order
func NewFunnel(steps []Step, logger *slog.Logger) (*Funnel, error) {
	if logger == nil {
		logger = slog.Default()
	}
	seen := make(map[string]bool, len(steps))
	for _, s := range steps {
		if s == nil || s.ID() == "" {
			return nil, fmt.Errorf("funnel step must have an ID")
		}
		if seen[s.ID()] {
			return nil, fmt.Errorf("funnel step %s registered twice", s.ID())
		}
		seen[s.ID()] = true
	}
	return &Funnel{
		steps:    steps,
		disabled: make(map[string]bool),
		logger:   logger.With(slog.String("component", "selection_funnel")),
	}, nil
}

// SetEnabled switches a step on or off
func (f *Funnel) SetEnabled(id string, enabled bool) error {
	for _, s := range f.steps {
		if s.ID() == id {
			f.disabled[id] = !enabled
			return nil
		}
	}
	return fmt.Errorf("funnel step %s not found", id)
}

// IsEnabled reports whether a step exists and is enabled
func (f *Funnel) IsEnabled(id string) bool {
	for _, s := range f.steps {
		if s.ID() == id {
			return !f.disabled[id]
		}
	}
	return false
}

// Steps returns the enabled steps in order
func (f *Funnel) Steps() []Step {
	out := make([]Step, 0, len(f.steps))
	for _, s := range f.steps {
		if !f.disabled[s.ID()] {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks that the panel carries every column the enabled steps read
func (f *Funnel) Validate(columns []string) error {
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[c] = true
	}
	for _, need := range []string{"txns_count", "txns_volume"} {
		if !have[need] {
			return fmt.Errorf("funnel ledger requires column %s", need)
		}
	}
	for _, s := range f.Steps() {
		for _, need := range s.Requires() {
			if !have[need] {
				return fmt.Errorf("funnel step %s requires column %s", s.ID(), need)
			}
		}
	}
	return nil
}

// Run narrows the panel through every enabled step, recording the surviving
// sample after each one
func (f *Funnel) Run(ctx context.Context, p *panel.Panel) (*panel.Panel, *Ledger) {
	ledger := NewLedger()
	current := p
	prevUsers := int64(p.UserCount())

	for _, s := range f.Steps() {
		current = s.Apply(current)
		counts := CountSample(current)
		ledger.Record(s.ID(), s.Label(), counts)

		f.logger.InfoContext(ctx, "funnel step applied",
			slog.String("step", s.ID()),
			slog.Int64("users", counts.Users),
			slog.Int64("user_months", counts.UserMonths),
			slog.Int64("users_dropped", prevUsers-counts.Users))
		prevUsers = counts.Users
	}

	return current, ledger
}
