package dataprocessing

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"evalpanel/internal/files"
	"evalpanel/pkg/contracts/domain"
)

// Reader loads transaction files
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a new transaction reader
func NewReader(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{logger: logger.With(slog.String("component", "reader"))}
}

// Load reads every file of a shard and concatenates their transactions
func (r *Reader) Load(ctx context.Context, shard files.Shard) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	for _, path := range shard.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		part, err := r.ReadFile(ctx, path)
		if err != nil {
			return nil, err
		}
		txns = append(txns, part...)
	}

	r.logger.InfoContext(ctx, "shard read",
		slog.Int("shard", shard.Index),
		slog.String("name", shard.Name),
		slog.Int("files", len(shard.Files)),
		slog.Int("transactions", len(txns)))
	return txns, nil
}

// ReadFile reads a CSV or XLSX file, chosen by extension
func (r *Reader) ReadFile(ctx context.Context, path string) ([]domain.Transaction, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer f.Close()
		return r.ReadCSV(ctx, path, f)
	case ".xlsx":
		return r.ReadXLSX(ctx, path)
	}
	return nil, fmt.Errorf("%s: unsupported file type", path)
}

// ReadCSV reads a CSV ledger; name is used in error messages
func (r *Reader) ReadCSV(ctx context.Context, name string, src io.Reader) ([]domain.Transaction, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &SchemaError{File: name, Missing: RequiredColumns}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read header: %w", name, err)
	}
	h, err := newHeader(name, head)
	if err != nil {
		return nil, err
	}

	p := &recordParser{file: name, header: h}
	var txns []domain.Transaction
	for row := 2; ; row++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", name, row, err)
		}
		if isBlank(record) {
			continue
		}
		tx, err := p.parse(record, row)
		if err != nil {
			return nil, err
		}
		txns = append(txns, tx)
	}

	r.logger.DebugContext(ctx, "csv file read",
		slog.String("file", name),
		slog.Int("transactions", len(txns)))
	return txns, nil
}

// ReadXLSX reads the first sheet of a workbook
func (r *Reader) ReadXLSX(ctx context.Context, path string) ([]domain.Transaction, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &SchemaError{File: path, Missing: RequiredColumns}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read sheet %s: %w", path, sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, &SchemaError{File: path, Missing: RequiredColumns}
	}

	h, err := newHeader(path, rows[0])
	if err != nil {
		return nil, err
	}

	p := &recordParser{file: path, header: h}
	txns := make([]domain.Transaction, 0, len(rows)-1)
	for i, record := range rows[1:] {
		if isBlank(record) {
			continue
		}
		tx, err := p.parse(record, i+2)
		if err != nil {
			return nil, err
		}
		txns = append(txns, tx)
	}

	r.logger.DebugContext(ctx, "xlsx file read",
		slog.String("file", path),
		slog.String("sheet", sheets[0]),
		slog.Int("transactions", len(txns)))
	return txns, nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
