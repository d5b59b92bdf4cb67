package dataprocessing

import (
	"fmt"
	"strings"
)

// Column names of the transaction ledger
const (
	ColID               = "id"
	ColUserID           = "user_id"
	ColAccountID        = "account_id"
	ColAccountType      = "account_type"
	ColAccountCreated   = "account_created"
	ColDate             = "date"
	ColAmount           = "amount"
	ColIsDebit          = "is_debit"
	ColDescription      = "desc"
	ColTagAuto          = "tag_auto"
	ColTagManual        = "tag_manual"
	ColMerchant         = "merchant"
	ColBusinessLine     = "business_line"
	ColTagGroup         = "tag_group"
	ColBirthYear        = "birth_year"
	ColIsFemale         = "is_female"
	ColRegistrationDate = "user_registration_date"
	ColRegion           = "region_name"
	ColIsUrban          = "is_urban"
)

// RequiredColumns must be present in every shard file
var RequiredColumns = []string{
	ColID, ColUserID, ColAccountID, ColAccountType, ColDate, ColAmount,
	ColIsDebit, ColTagAuto, ColTagGroup, ColBirthYear, ColIsFemale,
	ColRegistrationDate, ColRegion, ColIsUrban,
}

// OptionalColumns are read when present
var OptionalColumns = []string{
	ColAccountCreated, ColDescription, ColTagManual, ColMerchant, ColBusinessLine,
}

// SchemaError reports required columns a file lacks
type SchemaError struct {
	File    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s", e.File, strings.Join(e.Missing, ", "))
}

// ParseError locates a value that could not be parsed
type ParseError struct {
	File   string
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: row %d: column %s: invalid value %q: %v", e.File, e.Row, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// header maps column names to their position in a record
type header map[string]int

// newHeader indexes a header row and checks it against the required columns
func newHeader(file string, names []string) (header, error) {
	h := make(header, len(names))
	for i, name := range names {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := h[key]; !dup {
			h[key] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := h[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{File: file, Missing: missing}
	}
	return h, nil
}

// get returns the trimmed value of col, or "" when the column or cell is absent
func (h header) get(record []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
