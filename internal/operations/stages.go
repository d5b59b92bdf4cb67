package operations

import (
	"context"
	"errors"
	"fmt"

	"evalpanel/internal/outliers"
	"evalpanel/internal/panel"
	"evalpanel/internal/selection"
	"evalpanel/internal/validation"
)

// Stage IDs
const (
	StageRead        = "read"
	StageAssemble    = "assemble"
	StageSelect      = "select"
	StageGather      = "gather"
	StageOutliers    = "outliers"
	StageStandardize = "standardize"
	StageValidate    = "validate"
)

// NewReadStage loads the shard's transactions from source
func NewReadStage(source ShardSource) Stage {
	return NewStage(NewBaseStage(StageRead, "Read shard", ScopeShard, true),
		func(ctx context.Context, data *Data) error {
			if data.Shard == nil {
				return NewValidationError(StageRead, "no shard to read")
			}
			txns, err := source.Load(ctx, *data.Shard)
			if err != nil {
				return NewFatalError(StageRead, "failed to read shard", err)
			}
			data.Transactions = txns
			return nil
		})
}

// NewAssembleStage aggregates the transactions into the user-month panel
func NewAssembleStage(assembler *panel.Assembler) Stage {
	return NewStage(NewBaseStage(StageAssemble, "Aggregate and assemble panel", ScopeShard, true),
		func(ctx context.Context, data *Data) error {
			p, join, err := assembler.Assemble(ctx, panel.NewTable(data.Transactions))
			if err != nil {
				return NewExecutionError(StageAssemble, err)
			}
			data.Panel = p
			data.Join = join
			data.Transactions = nil
			return nil
		})
}

// NewSelectStage runs the sample-selection funnel over the shard's panel
func NewSelectStage(funnel *selection.Funnel) Stage {
	return NewStage(NewBaseStage(StageSelect, "Select sample", ScopeShard, false),
		func(ctx context.Context, data *Data) error {
			if err := funnel.Validate(data.Panel.Columns); err != nil {
				return NewValidationError(StageSelect, err.Error())
			}
			data.Panel, data.Ledger = funnel.Run(ctx, data.Panel)
			return nil
		})
}

// NewOutlierStage trims or winsorizes the configured columns over the
// gathered sample
func NewOutlierStage(t *outliers.Transformer) Stage {
	return NewStage(NewBaseStage(StageOutliers, "Control outliers", ScopeGlobal, false),
		func(ctx context.Context, data *Data) error {
			report, err := t.Apply(ctx, data.Panel)
			if err != nil {
				return NewExecutionError(StageOutliers, err)
			}
			data.Outliers = report
			return nil
		})
}

// NewStandardizeStage adds the z-score columns
func NewStandardizeStage(t *outliers.Transformer) Stage {
	return NewStage(NewBaseStage(StageStandardize, "Standardize entropy", ScopeGlobal, false),
		func(ctx context.Context, data *Data) error {
			if _, err := t.Apply(ctx, data.Panel); err != nil {
				return NewExecutionError(StageStandardize, err)
			}
			return nil
		})
}

// NewValidateStage runs the integrity checks. Any failed check is fatal.
func NewValidateStage(v *validation.Validator) Stage {
	return NewStage(NewBaseStage(StageValidate, "Validate panel", ScopeGlobal, false),
		func(ctx context.Context, data *Data) error {
			outcomes, err := v.Validate(ctx, data.Panel)
			data.Outcomes = outcomes
			if err == nil {
				return nil
			}
			var verr *validation.Error
			if errors.As(err, &verr) {
				return NewFatalError(StageValidate, fmt.Sprintf("check %s failed", verr.Check), err)
			}
			return NewExecutionError(StageValidate, err)
		})
}
