package exporter

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"evalpanel/internal/selection"
)

// SelectionHeaders are the column titles of the selection table
var SelectionHeaders = []string{"", "Users", "User-months", "Txns", "Txns (m£)"}

const selectionSheet = "Selection"

var printer = message.NewPrinter(language.English)

// SelectionRow is one funnel step of the selection table
type SelectionRow struct {
	Label          string
	Users          int64
	UserMonths     int64
	Txns           int64
	VolumeMillions decimal.Decimal
}

// SelectionTable is the funnel ledger in publication form
type SelectionTable struct {
	Rows []SelectionRow
}

// NewSelectionTable builds the table from a ledger in step order
func NewSelectionTable(l *selection.Ledger) SelectionTable {
	entries := l.Entries()
	t := SelectionTable{Rows: make([]SelectionRow, 0, len(entries))}
	for _, e := range entries {
		t.Rows = append(t.Rows, SelectionRow{
			Label:          e.Label,
			Users:          e.Users,
			UserMonths:     e.UserMonths,
			Txns:           e.Txns,
			VolumeMillions: e.VolumeMillions(),
		})
	}
	return t
}

// formatCount renders n with thousands separators
func formatCount(n int64) string {
	return printer.Sprintf("%d", n)
}

// formatMillions rounds half to even and renders with thousands separators
func formatMillions(d decimal.Decimal) string {
	return formatCount(d.RoundBank(0).IntPart())
}

// Records returns the formatted table body
func (t SelectionTable) Records() [][]string {
	records := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		records[i] = []string{
			r.Label,
			formatCount(r.Users),
			formatCount(r.UserMonths),
			formatCount(r.Txns),
			formatMillions(r.VolumeMillions),
		}
	}
	return records
}

// WriteSelectionCSV writes the table as CSV with a UTF-8 BOM so spreadsheet
// tools pick up the pound sign
func WriteSelectionCSV(w io.Writer, t SelectionTable) error {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(SelectionHeaders); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, record := range t.Records() {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteSelectionXLSX writes the table as a workbook with one sheet. Counts
// are stored as numbers with a thousands format.
func WriteSelectionXLSX(w io.Writer, t SelectionTable) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", selectionSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	thousands, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		return fmt.Errorf("failed to create number style: %w", err)
	}

	headers := make([]interface{}, len(SelectionHeaders))
	for i, h := range SelectionHeaders {
		headers[i] = h
	}
	if err := f.SetSheetRow(selectionSheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	if err := f.SetCellStyle(selectionSheet, "A1", "E1", header); err != nil {
		return fmt.Errorf("failed to style headers: %w", err)
	}

	for i, r := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{r.Label, r.Users, r.UserMonths, r.Txns, r.VolumeMillions.RoundBank(0).IntPart()}
		if err := f.SetSheetRow(selectionSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	if len(t.Rows) > 0 {
		last, err := excelize.CoordinatesToCellName(5, len(t.Rows)+1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(selectionSheet, "B2", last, thousands); err != nil {
			return fmt.Errorf("failed to style counts: %w", err)
		}
	}
	if err := f.SetColWidth(selectionSheet, "A", "A", 48); err != nil {
		return fmt.Errorf("failed to size label column: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

var latexEscaper = strings.NewReplacer(
	"£", `\pounds`,
	"&", `\&`,
	"%", `\%`,
	"#", `\#`,
	"_", `\_`,
)

// WriteSelectionLaTeX writes the table as a booktabs tabular with column
// format lrrrr
func WriteSelectionLaTeX(w io.Writer, t SelectionTable) error {
	bw := bufio.NewWriter(w)
	line := func(cells []string) {
		escaped := make([]string, len(cells))
		for i, c := range cells {
			escaped[i] = latexEscaper.Replace(c)
		}
		fmt.Fprintf(bw, "%s \\\\\n", strings.Join(escaped, " & "))
	}

	bw.WriteString("\\begin{tabular}{lrrrr}\n")
	bw.WriteString("\\toprule\n")
	line(SelectionHeaders)
	bw.WriteString("\\midrule\n")
	for _, record := range t.Records() {
		line(record)
	}
	bw.WriteString("\\bottomrule\n")
	bw.WriteString("\\end{tabular}\n")
	return bw.Flush()
}
