// Package operations runs the panel pipeline over a set of shards.
//
// A run is an explicit, ordered registry of named stages. Shard stages run
// once per shard on an isolated worker; global stages run once on the
// gathered sample:
//
//	shard:  read -> assemble -> select
//	gather: concatenate panels, merge ledgers and join reports, recode regions
//	global: outliers -> standardize -> validate
//
// Core Components:
//
// Builder: turns the pipeline configuration into a Pipeline, applying the
// enabled/disabled toggles of stages, metrics, funnel steps and checks.
// Unknown names are reported together as an ErrorList.
//
// Registry: holds stages in execution order with their enabled flags.
// Required stages (read, assemble) cannot be disabled.
//
// Runner: fans shards out under an errgroup bounded by the worker count.
// Workers share no mutable state; each returns a ShardResult. The first
// worker error fails the run and nothing is gathered.
//
// RunState: tracks every stage execution for the status API and publishes
// run and stage events to an EventHub.
//
// PipelineTracer: OpenTelemetry spans per run, shard and stage plus the
// panel metrics.
//
// RunManifest: the reproducibility record written next to the outputs.
//
// Example usage:
//
//	pipeline, err := operations.NewBuilder(cfg, logger).Build(reader)
//	runner, err := operations.NewRunner(pipeline.Stages,
//		operations.WithWorkers(cfg.WorkerCount()),
//		operations.WithLogger(logger))
//	result, err := runner.Run(ctx, shards)
//	if operations.IsFatal(err) {
//		// validation failure, schema error or overlapping shards
//	}
package operations
