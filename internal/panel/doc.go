// Package panel derives the user-month analysis panel from a transaction table.
//
// The package provides the aggregation engine and the panel assembler of the
// panel-construction pipeline. Each metric is a named function that maps the
// transaction table to values keyed by (user, calendar month). The assembler runs
// every enabled metric and joins their outputs on the shared key.
//
// # Join Policy
//
// The assembler keeps the intersection of keys: a user-month survives only if every
// enabled metric produced a value for it. Keys dropped by the join are reported per
// metric in a JoinReport so callers can log the loss.
//
// # Architecture
//
//   - row.go: Key and Row, the typed panel schema
//   - columns.go: Named column accessors used by transforms, checks and exporters
//   - table.go: Transaction table grouped by user and by user-month
//   - registry.go: Ordered metric registry with per-metric enable flags
//   - metrics.go: Activity, spend and account metrics
//   - income.go: Annual mean income broadcast onto months
//   - flows.go: Savings account flow netting
//   - treatment.go: Registration month, treatment indicator and time to treatment
//   - demographics.go: Age, gender, region and generation snapshots
//   - entropy.go: Shannon entropy of spend diversity
//   - assembler.go: Intersection join of metric outputs
//   - panel.go: Panel container, user grouping and concatenation
//
// Metrics never read a partially assembled panel. A metric that depends on another
// quantity (flows normalised by income) computes it itself through the same helper.
package panel
