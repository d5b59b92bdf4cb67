package dataprocessing

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"evalpanel/internal/files"
	"evalpanel/internal/shared/testutil"
	"evalpanel/pkg/contracts/domain"
)

const csvHeader = "id,user_id,account_id,account_type,date,amount,is_debit,tag_auto,tag_group,birth_year,is_female,user_registration_date,region_name,is_urban,merchant"

func newReader(t *testing.T) *Reader {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewReader(logger)
}

func readCSV(t *testing.T, content string) ([]domain.Transaction, error) {
	t.Helper()
	return newReader(t).ReadCSV(context.Background(), "shard.csv", strings.NewReader(content))
}

func TestReadCSV(t *testing.T) {
	content := csvHeader + "\n" +
		"1,7,71,current,2018-03-04,12.5,true,groceries,spend,1985,1,2018-01-15,London,1,Tesco\n" +
		"2,7,72,Savings,2018-03-05T10:00:00Z,-20,f,transfers,transfers,,u,2018-01-15 09:30:00,London,,\n" +
		",,,,,,,,,,,,,,\n"

	txns, err := readCSV(t, content)
	require.NoError(t, err)
	require.Len(t, txns, 2)

	first := txns[0]
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(7), first.UserID)
	assert.Equal(t, domain.AccountTypeCurrent, first.AccountType)
	assert.Equal(t, time.Date(2018, time.March, 4, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, 12.5, first.Amount)
	assert.True(t, first.IsDebit)
	assert.Equal(t, domain.TagGroupSpend, first.TagGroup)
	assert.Equal(t, 1985.0, first.BirthYear)
	assert.Equal(t, 1.0, first.IsFemale)
	assert.Equal(t, "Tesco", first.Merchant)
	assert.True(t, first.AccountCreated.IsZero(), "optional column absent")

	second := txns[1]
	assert.Equal(t, domain.AccountTypeSavings, second.AccountType)
	assert.False(t, second.IsDebit)
	assert.True(t, math.IsNaN(second.BirthYear))
	assert.True(t, math.IsNaN(second.IsFemale))
	assert.True(t, math.IsNaN(second.IsUrban))
	assert.Equal(t, domain.NewYearMonth(2018, time.January), second.RegistrationYM())
}

func TestReadCSV_HeaderCaseAndOrder(t *testing.T) {
	content := "USER_ID,Id,Account_ID,account_type,DATE,amount,is_debit,tag_auto,tag_group,birth_year,is_female,user_registration_date,region_name,is_urban\n" +
		"7,1,71,current,2018-03-04,5,1,rent,spend,1990,m,2018-01-15,Wales,0\n"

	txns, err := readCSV(t, content)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, int64(7), txns[0].UserID)
	assert.Equal(t, int64(1), txns[0].ID)
	assert.Equal(t, 0.0, txns[0].IsFemale)
}

func TestReadCSV_SchemaError(t *testing.T) {
	tests := []struct {
		name    string
		content string
		missing []string
	}{
		{
			name:    "missing columns listed",
			content: strings.Replace(strings.Replace(csvHeader, "tag_group,", "", 1), ",is_urban", "", 1) + "\n",
			missing: []string{ColTagGroup, ColIsUrban},
		},
		{
			name:    "empty file",
			content: "",
			missing: RequiredColumns,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readCSV(t, tt.content)
			var schemaErr *SchemaError
			require.True(t, errors.As(err, &schemaErr))
			assert.Equal(t, "shard.csv", schemaErr.File)
			assert.Equal(t, tt.missing, schemaErr.Missing)
		})
	}
}

func TestReadCSV_ParseError(t *testing.T) {
	tests := []struct {
		name   string
		row    string
		column string
	}{
		{
			name:   "bad date",
			row:    "1,7,71,current,04/03/2018,12.5,true,groceries,spend,1985,1,2018-01-15,London,1,",
			column: ColDate,
		},
		{
			name:   "bad amount",
			row:    "1,7,71,current,2018-03-04,twelve,true,groceries,spend,1985,1,2018-01-15,London,1,",
			column: ColAmount,
		},
		{
			name:   "bad boolean",
			row:    "1,7,71,current,2018-03-04,12.5,yes,groceries,spend,1985,1,2018-01-15,London,1,",
			column: ColIsDebit,
		},
		{
			name:   "fractional id",
			row:    "1.5,7,71,current,2018-03-04,12.5,true,groceries,spend,1985,1,2018-01-15,London,1,",
			column: ColID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readCSV(t, csvHeader+"\n"+tt.row+"\n")
			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "got %v", err)
			assert.Equal(t, tt.column, parseErr.Column)
			assert.Equal(t, 2, parseErr.Row)
		})
	}
}

func TestReadCSV_ZeroIDs(t *testing.T) {
	txns, err := readCSV(t, csvHeader+"\n"+"0,0,0,current,2018-03-04,12.5,true,groceries,spend,1985,1,2018-01-15,London,1,\n")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, int64(0), txns[0].ID)
	assert.Equal(t, int64(0), txns[0].UserID)
	assert.Equal(t, int64(0), txns[0].AccountID)
}

func TestReadCSV_MissingRequiredValue(t *testing.T) {
	tests := []struct {
		name   string
		row    string
		column string
	}{
		{
			name:   "empty account id",
			row:    "1,7,,current,2018-03-04,12.5,true,groceries,spend,1985,1,2018-01-15,London,1,",
			column: ColAccountID,
		},
		{
			name:   "empty registration date",
			row:    "1,7,71,current,2018-03-04,12.5,true,groceries,spend,1985,1,,London,1,",
			column: ColRegistrationDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readCSV(t, csvHeader+"\n"+tt.row+"\n")
			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "got %v", err)
			assert.Equal(t, tt.column, parseErr.Column)
			assert.Equal(t, 2, parseErr.Row)
		})
	}
}

func writeXLSX(t *testing.T, path string, rows [][]interface{}) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shard.xlsx")
	head := make([]interface{}, 0, len(RequiredColumns))
	for _, c := range RequiredColumns {
		head = append(head, c)
	}
	writeXLSX(t, path, [][]interface{}{
		head,
		{1, 7, 71, "current", "2018-03-04", 12.5, "true", "groceries", "spend", 1985, "f", "2018-01-15", "London", 1},
		{2, 7, 71, "current", "2018-03-05", 3, "true", "groceries", "spend", 1985, "f", "2018-01-15", "London"},
	})

	txns, err := newReader(t).ReadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, 12.5, txns[0].Amount)
	assert.Equal(t, 1.0, txns[0].IsFemale)
	assert.True(t, math.IsNaN(txns[1].IsUrban), "trailing empty cell reads as missing")
}

func TestReadXLSX_SchemaError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shard.xlsx")
	writeXLSX(t, path, [][]interface{}{{"id", "user_id"}})

	_, err := newReader(t).ReadFile(context.Background(), path)
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Contains(t, schemaErr.Missing, ColAmount)
}

func TestLoad_ConcatenatesShardFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "part_0.csv")
	b := filepath.Join(dir, "part_1.csv")
	require.NoError(t, os.WriteFile(a, []byte(csvHeader+"\n1,7,71,current,2018-03-04,1,true,x,spend,1985,1,2018-01-15,London,1,\n"), 0644))
	require.NoError(t, os.WriteFile(b, []byte(csvHeader+"\n2,8,81,current,2018-03-04,2,true,x,spend,1985,1,2018-01-15,London,1,\n"), 0644))

	txns, err := newReader(t).Load(context.Background(), files.Shard{Name: "s", Files: []string{a, b}})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, int64(7), txns[0].UserID)
	assert.Equal(t, int64(8), txns[1].UserID)
}

func TestReadFile_Unsupported(t *testing.T) {
	_, err := newReader(t).ReadFile(context.Background(), "ledger.parquet")
	assert.Error(t, err)
}

func TestParseFemale(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		nan  bool
	}{
		{in: "f", want: 1},
		{in: "F", want: 1},
		{in: "m", want: 0},
		{in: "1", want: 1},
		{in: "0.0", want: 0},
		{in: "u", nan: true},
		{in: "", nan: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFemale(tt.in)
			require.NoError(t, err)
			if tt.nan {
				assert.True(t, math.IsNaN(got))
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseFemale("x")
	assert.Error(t, err)
}
