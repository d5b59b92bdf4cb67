// Package exporter writes the outputs of a panel run.
//
// This package contains three main components:
//
// Panel CSV: one row per user-month with every computed column in declared
// order. Missing values are written as empty fields.
//
// SelectionTable: the funnel ledger as a publication table, rendered as CSV,
// XLSX or LaTeX. Counts carry thousands separators and the transaction
// volume is reported in millions.
//
// Exporter: writes every output of a run into the output directory through
// files.Manager, so a failed write never leaves a truncated file behind.
//
// Example usage:
//
//	exp := exporter.NewExporter(cfg.OutputPath(), logger)
//	manifest := operations.NewRunManifest(result, digest)
//	if err := exp.Export(result, manifest); err != nil {
//		return err
//	}
package exporter
