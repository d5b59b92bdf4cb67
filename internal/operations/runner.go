package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"evalpanel/internal/files"
	"evalpanel/internal/infrastructure"
	"evalpanel/internal/outliers"
	"evalpanel/internal/panel"
	"evalpanel/internal/selection"
	"evalpanel/internal/validation"
	"evalpanel/pkg/contracts/domain"
)

// ShardSource loads the transactions of a shard
type ShardSource interface {
	Load(ctx context.Context, shard files.Shard) ([]domain.Transaction, error)
}

// ShardResult is what one shard worker hands to the gather phase
type ShardResult struct {
	Shard       files.Shard
	Fingerprint string
	Panel       *panel.Panel
	Ledger      *selection.Ledger
	Join        panel.JoinReport
}

// Result is the outcome of a complete run
type Result struct {
	RunID    string
	Panel    *panel.Panel
	Ledger   *selection.Ledger
	Join     panel.JoinReport
	Shards   []ShardResult
	Outliers outliers.Report
	Outcomes []validation.Outcome
	State    *RunState
}

// Runner fans shards out to workers, gathers their panels and ledgers and
// runs the global stages over the complete sample
type Runner struct {
	stages      *Registry
	workers     int
	tracer      *PipelineTracer
	hub         EventHub
	logger      *slog.Logger
	fingerprint func(files.Shard) (string, error)

	mu   sync.RWMutex
	last *RunState
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithWorkers bounds the number of concurrent shard workers
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithTracer sets the telemetry recorder
func WithTracer(t *PipelineTracer) RunnerOption {
	return func(r *Runner) { r.tracer = t }
}

// WithEventHub publishes stage events to hub
func WithEventHub(hub EventHub) RunnerOption {
	return func(r *Runner) { r.hub = hub }
}

// WithLogger sets the runner logger
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithFingerprint replaces the shard fingerprint function
func WithFingerprint(fn func(files.Shard) (string, error)) RunnerOption {
	return func(r *Runner) { r.fingerprint = fn }
}

// NewRunner creates a runner over a stage registry
func NewRunner(stages *Registry, opts ...RunnerOption) (*Runner, error) {
	r := &Runner{
		stages:      stages,
		workers:     1,
		fingerprint: files.Fingerprint,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With(slog.String("component", "runner"))
	if r.tracer == nil {
		t, err := NewPipelineTracer(nil)
		if err != nil {
			return nil, err
		}
		r.tracer = t
	}
	return r, nil
}

// LastState returns the state of the most recent run, or nil before the
// first run
func (r *Runner) LastState() *RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Run processes the shards and returns the gathered, validated panel. A
// failure on any shard fails the run without a partial gather.
func (r *Runner) Run(ctx context.Context, shards []files.Shard) (*Result, error) {
	runID := uuid.NewString()
	ctx = infrastructure.WithRunID(ctx, runID)
	ctx = infrastructure.EnsureTraceID(ctx)

	state := NewRunState(runID)
	r.mu.Lock()
	r.last = state
	r.mu.Unlock()

	ctx, span := r.tracer.TraceRun(ctx, runID, len(shards))
	defer span.End()

	state.Start()
	r.publishRun(state)
	r.logger.InfoContext(ctx, "run started",
		slog.Int("shards", len(shards)),
		slog.Int("workers", r.workers))

	result, err := r.run(ctx, state, shards)
	start, _ := state.Times()
	duration := time.Since(start)
	r.tracer.RecordRunCompletion(span, duration, err)

	if err != nil {
		state.Fail(err)
		r.publishRun(state)
		r.logger.ErrorContext(ctx, "run failed",
			slog.String("error", err.Error()),
			slog.String("error_type", string(GetErrorType(err))),
			slog.Duration("duration", duration))
		return nil, err
	}

	state.Complete()
	r.publishRun(state)
	r.logger.InfoContext(ctx, "run completed",
		slog.Int("users", result.Panel.UserCount()),
		slog.Int("user_months", result.Panel.Len()),
		slog.Duration("duration", duration))
	return result, nil
}

func (r *Runner) run(ctx context.Context, state *RunState, shards []files.Shard) (*Result, error) {
	if len(shards) == 0 {
		return nil, NewValidationError(StageRead, "no shards to process")
	}

	results := make([]ShardResult, len(shards))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range shards {
		shard := shards[i]
		g.Go(func() error {
			res, err := r.runShard(gctx, state, shard)
			r.tracer.RecordShard(gctx, err)
			if err != nil {
				return err
			}
			results[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data, err := r.gather(ctx, results)
	if err != nil {
		return nil, err
	}

	for _, stage := range r.stages.ListScope(ScopeGlobal) {
		if err := r.execute(ctx, state, stage, nil, data); err != nil {
			var verr *validation.Error
			if errors.As(err, &verr) {
				r.tracer.RecordValidationFailure(ctx, verr.Check)
			}
			return nil, err
		}
	}

	r.tracer.RecordRows(ctx, data.Panel.Len())
	r.tracer.RecordLedger(ctx, data.Ledger)

	return &Result{
		RunID:    state.ID(),
		Panel:    data.Panel,
		Ledger:   data.Ledger,
		Join:     data.Join,
		Shards:   results,
		Outliers: data.Outliers,
		Outcomes: data.Outcomes,
		State:    state,
	}, nil
}

// runShard executes the shard stages in order on an isolated Data value
func (r *Runner) runShard(ctx context.Context, state *RunState, shard files.Shard) (*ShardResult, error) {
	ctx, span := r.tracer.TraceShard(ctx, shard.Index, shard.Name)
	defer span.End()

	fingerprint, err := r.fingerprint(shard)
	if err != nil {
		return nil, NewFatalError(StageRead, "failed to fingerprint shard", err).WithShard(shard.Index)
	}

	data := &Data{Shard: &shard}
	index := shard.Index
	for _, stage := range r.stages.ListScope(ScopeShard) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.execute(ctx, state, stage, &index, data); err != nil {
			var opErr *OperationError
			if errors.As(err, &opErr) && opErr.Shard == nil {
				opErr.WithShard(shard.Index)
			}
			return nil, err
		}
	}
	if data.Panel == nil {
		return nil, NewValidationError(StageAssemble, "shard stages produced no panel").WithShard(shard.Index)
	}
	if data.Ledger == nil {
		data.Ledger = selection.NewLedger()
	}

	return &ShardResult{
		Shard:       shard,
		Fingerprint: fingerprint,
		Panel:       data.Panel,
		Ledger:      data.Ledger,
		Join:        data.Join,
	}, nil
}

// execute runs one stage with its span, state and event bookkeeping.
// Disabled stages are marked skipped and leave data untouched.
func (r *Runner) execute(ctx context.Context, state *RunState, stage Stage, shard *int, data *Data) error {
	st := state.Stage(stage, shard)
	logger := r.logger.With(slog.String("stage", stage.ID()))
	if shard != nil {
		logger = logger.With(slog.Int("shard", *shard))
	}

	if !r.stages.IsEnabled(stage.ID()) {
		st.Skip("disabled")
		r.publishStage(state, st)
		logger.DebugContext(ctx, "stage skipped")
		return nil
	}

	st.Start()
	r.publishStage(state, st)

	sctx, span := r.tracer.TraceStage(ctx, stage)
	start := time.Now()
	err := stage.Execute(sctx, data)
	duration := time.Since(start)
	r.tracer.RecordStage(sctx, span, stage, duration, err)
	span.End()

	if err != nil {
		st.Fail(err)
		r.publishStage(state, st)
		return err
	}

	st.Complete(describe(stage.ID(), data))
	r.publishStage(state, st)
	logger.InfoContext(ctx, "stage completed", slog.Duration("duration", duration))
	return nil
}

// gather concatenates the shard panels, merges their ledgers and join
// reports and recodes regions over the full sample
func (r *Runner) gather(ctx context.Context, results []ShardResult) (*Data, error) {
	panels := make([]*panel.Panel, len(results))
	ledgers := make([]*selection.Ledger, len(results))
	var join panel.JoinReport
	for i, res := range results {
		panels[i] = res.Panel
		ledgers[i] = res.Ledger
		join.Add(res.Join)
	}

	p, err := panel.Concat(panels...)
	if err != nil {
		return nil, NewFatalError(StageGather, "shards do not partition users", err)
	}
	p.RecodeRegions()
	ledger := selection.MergeLedgers(ledgers...)

	r.logger.InfoContext(ctx, "shards gathered",
		slog.Int("shards", len(results)),
		slog.Int("users", p.UserCount()),
		slog.Int("user_months", p.Len()),
		slog.Int("join_dropped", join.Dropped()))

	return &Data{Panel: p, Ledger: ledger, Join: join}, nil
}

func describe(stage string, data *Data) string {
	switch stage {
	case StageRead:
		return fmt.Sprintf("%d transactions", len(data.Transactions))
	case StageAssemble, StageSelect, StageOutliers, StageStandardize:
		if data.Panel != nil {
			return fmt.Sprintf("%d users, %d user-months", data.Panel.UserCount(), data.Panel.Len())
		}
	case StageValidate:
		return fmt.Sprintf("%d checks", len(data.Outcomes))
	}
	return ""
}
