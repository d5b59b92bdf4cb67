package exporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"evalpanel/internal/panel"
)

// WritePanel writes p as CSV with a header of its columns
func WritePanel(w io.Writer, p *panel.Panel) error {
	cols := make([]panel.Column, len(p.Columns))
	for i, name := range p.Columns {
		col, ok := panel.LookupColumn(name)
		if !ok {
			return fmt.Errorf("panel column %s has no accessor", name)
		}
		cols[i] = col
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(p.Columns); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	record := make([]string, len(cols))
	for i := range p.Rows {
		row := &p.Rows[i]
		for j, col := range cols {
			record[j] = col.Format(row)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
