// Package dataprocessing reads transaction ledgers into domain records.
//
// # Formats
//
// A shard file is either CSV (first line is the header) or XLSX (first sheet,
// first row is the header). Header names are matched case-insensitively and
// columns may appear in any order.
//
// # Schema
//
// Every file must carry the required columns listed in RequiredColumns. A
// file missing any of them fails with a *SchemaError before a single row is
// parsed. Optional columns may be absent and default to empty values.
//
// # Parsing
//
//   - dates: 2006-01-02, 2006-01-02 15:04:05 or RFC3339
//   - booleans: true/false, t/f, 1/0
//   - is_female: additionally f (female), m (male) and u (unknown)
//   - empty birth_year, is_female and is_urban read as NaN
//
// A malformed value fails the whole file with a *ParseError naming the row
// and column.
//
// # Usage
//
//	reader := dataprocessing.NewReader(logger)
//	txns, err := reader.Load(ctx, shard)
package dataprocessing
