package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"evalpanel/internal/files"
	"evalpanel/internal/operations"
	"evalpanel/internal/panel"
	"evalpanel/internal/selection"
)

// Output file names
const (
	PanelFile          = "panel.csv"
	SelectionCSVFile   = "selection.csv"
	SelectionXLSXFile  = "selection.xlsx"
	SelectionLaTeXFile = "selection.tex"
	ManifestFile       = "manifest.json"
)

// Exporter writes run outputs into one directory
type Exporter struct {
	manager *files.Manager
	logger  *slog.Logger
}

// NewExporter creates an exporter writing under outputDir
func NewExporter(outputDir string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		manager: files.NewManager(outputDir),
		logger:  logger.With(slog.String("component", "exporter")),
	}
}

// Path returns the full path of an output file
func (e *Exporter) Path(name string) string {
	return e.manager.Path(name)
}

func (e *Exporter) write(name string, fn func(w io.Writer) error) error {
	if err := e.manager.WriteFile(name, fn); err != nil {
		return fmt.Errorf("failed to export %s: %w", name, err)
	}
	e.logger.Info("output written", slog.String("file", e.manager.Path(name)))
	return nil
}

// ExportPanel writes the panel CSV
func (e *Exporter) ExportPanel(p *panel.Panel) error {
	return e.write(PanelFile, func(w io.Writer) error { return WritePanel(w, p) })
}

// ExportSelection writes the selection table in every format and returns the
// file names
func (e *Exporter) ExportSelection(l *selection.Ledger) ([]string, error) {
	table := NewSelectionTable(l)
	outputs := []struct {
		name  string
		write func(io.Writer, SelectionTable) error
	}{
		{SelectionCSVFile, WriteSelectionCSV},
		{SelectionXLSXFile, WriteSelectionXLSX},
		{SelectionLaTeXFile, WriteSelectionLaTeX},
	}

	names := make([]string, 0, len(outputs))
	for _, o := range outputs {
		write := o.write
		if err := e.write(o.name, func(w io.Writer) error { return write(w, table) }); err != nil {
			return names, err
		}
		names = append(names, o.name)
	}
	return names, nil
}

// ExportManifest writes the manifest as indented JSON
func (e *Exporter) ExportManifest(m *operations.RunManifest) error {
	return e.write(ManifestFile, func(w io.Writer) error { return WriteJSON(w, m) })
}

// Export writes every output of a run. The manifest goes last and lists the
// files written before it.
func (e *Exporter) Export(result *operations.Result, m *operations.RunManifest) error {
	if err := e.ExportPanel(result.Panel); err != nil {
		return err
	}
	m.AddOutput(PanelFile)

	names, err := e.ExportSelection(result.Ledger)
	for _, name := range names {
		m.AddOutput(name)
	}
	if err != nil {
		return err
	}

	return e.ExportManifest(m)
}

// WriteJSON writes v as indented JSON
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
