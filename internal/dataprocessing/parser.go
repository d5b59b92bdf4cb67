package dataprocessing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"evalpanel/pkg/contracts/domain"
)

var validate = validator.New()

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseDate parses the date formats found in ledger exports
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date format")
}

// ParseBool parses true/false, t/f and 1/0, ignoring case
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "t", "1":
		return true, nil
	case "false", "f", "0":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean")
}

// ParseOptionalFloat parses a number, reading an empty value as NaN
func ParseOptionalFloat(s string) (float64, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// ParseFemale parses the gender indicator: 1 female, 0 male, NaN unknown
func ParseFemale(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "f", "true":
		return 1, nil
	case "m", "false":
		return 0, nil
	case "u", "":
		return math.NaN(), nil
	}
	return ParseOptionalFloat(s)
}

// parseID parses an integer key, accepting integral floats as spreadsheets
// write them
func parseID(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer")
	}
	return int64(f), nil
}

// recordParser turns records of one file into transactions
type recordParser struct {
	file   string
	header header
}

// parse converts one record; row is the 1-based line number for errors
func (p *recordParser) parse(record []string, row int) (domain.Transaction, error) {
	var (
		tx  domain.Transaction
		err error
	)
	get := func(col string) string { return p.header.get(record, col) }
	fail := func(col string, err error) (domain.Transaction, error) {
		return domain.Transaction{}, &ParseError{
			File:   p.file,
			Row:    row,
			Column: col,
			Value:  get(col),
			Err:    err,
		}
	}

	if tx.ID, err = parseID(get(ColID)); err != nil {
		return fail(ColID, err)
	}
	if tx.UserID, err = parseID(get(ColUserID)); err != nil {
		return fail(ColUserID, err)
	}
	if tx.AccountID, err = parseID(get(ColAccountID)); err != nil {
		return fail(ColAccountID, err)
	}
	tx.AccountType = domain.ParseAccountType(get(ColAccountType))
	if v := get(ColAccountCreated); v != "" {
		if tx.AccountCreated, err = ParseDate(v); err != nil {
			return fail(ColAccountCreated, err)
		}
	}
	if tx.Date, err = ParseDate(get(ColDate)); err != nil {
		return fail(ColDate, err)
	}
	if tx.Amount, err = strconv.ParseFloat(get(ColAmount), 64); err != nil {
		return fail(ColAmount, err)
	}
	if tx.IsDebit, err = ParseBool(get(ColIsDebit)); err != nil {
		return fail(ColIsDebit, err)
	}
	tx.Description = get(ColDescription)
	tx.TagAuto = get(ColTagAuto)
	tx.TagManual = get(ColTagManual)
	tx.Merchant = get(ColMerchant)
	tx.BusinessLine = get(ColBusinessLine)
	tx.TagGroup = domain.ParseTagGroup(get(ColTagGroup))
	if tx.BirthYear, err = ParseOptionalFloat(get(ColBirthYear)); err != nil {
		return fail(ColBirthYear, err)
	}
	if tx.IsFemale, err = ParseFemale(get(ColIsFemale)); err != nil {
		return fail(ColIsFemale, err)
	}
	if tx.RegistrationDate, err = ParseDate(get(ColRegistrationDate)); err != nil {
		return fail(ColRegistrationDate, err)
	}
	tx.Region = get(ColRegion)
	if tx.IsUrban, err = ParseOptionalFloat(get(ColIsUrban)); err != nil {
		return fail(ColIsUrban, err)
	}

	if err := validate.Struct(tx); err != nil {
		return domain.Transaction{}, fmt.Errorf("%s: row %d: %w", p.file, row, err)
	}
	return tx, nil
}
