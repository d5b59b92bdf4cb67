package panel

import (
	"fmt"
	"math"
	"strconv"
)

// Column is a named accessor into Row.
// Numeric columns can be read and written as float64; the rest are formatted only.
type Column struct {
	Name    string
	Numeric bool
	get     func(r *Row) float64
	set     func(r *Row, v float64)
	format  func(r *Row) string
}

// Value returns the numeric value of the column for r
func (c Column) Value(r *Row) float64 {
	if c.get == nil {
		return math.NaN()
	}
	return c.get(r)
}

// Set writes v into the column of r
func (c Column) Set(r *Row, v float64) error {
	if c.set == nil {
		return fmt.Errorf("column %s is not numeric", c.Name)
	}
	c.set(r, v)
	return nil
}

// Format renders the column of r for export; NaN renders as an empty field
func (c Column) Format(r *Row) string {
	if c.format != nil {
		return c.format(r)
	}
	return FormatFloat(c.get(r))
}

// FormatFloat renders a float with the shortest exact representation
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func floatCol(name string, ptr func(r *Row) *float64) Column {
	return Column{
		Name:    name,
		Numeric: true,
		get:     func(r *Row) float64 { return *ptr(r) },
		set:     func(r *Row, v float64) { *ptr(r) = v },
	}
}

func intCol(name string, ptr func(r *Row) *int) Column {
	return Column{
		Name:    name,
		Numeric: true,
		get:     func(r *Row) float64 { return float64(*ptr(r)) },
		set:     func(r *Row, v float64) { *ptr(r) = int(math.Round(v)) },
		format:  func(r *Row) string { return strconv.Itoa(*ptr(r)) },
	}
}

func textCol(name string, format func(r *Row) string) Column {
	return Column{Name: name, format: format}
}

var columnTable = []Column{
	textCol("user_id", func(r *Row) string { return strconv.FormatInt(r.UserID, 10) }),
	textCol("ym", func(r *Row) string { return r.YM.String() }),
	intCol("ymn", func(r *Row) *int { return &r.YMN }),
	intCol("month", func(r *Row) *int { return &r.Month }),
	floatCol("txns_count", func(r *Row) *float64 { return &r.TxnsCount }),
	floatCol("txns_volume", func(r *Row) *float64 { return &r.TxnsVolume }),
	floatCol("month_income", func(r *Row) *float64 { return &r.MonthIncome }),
	floatCol("inflows", func(r *Row) *float64 { return &r.Inflows }),
	floatCol("outflows", func(r *Row) *float64 { return &r.Outflows }),
	floatCol("netflows", func(r *Row) *float64 { return &r.Netflows }),
	floatCol("inflows_norm", func(r *Row) *float64 { return &r.InflowsNorm }),
	floatCol("outflows_norm", func(r *Row) *float64 { return &r.OutflowsNorm }),
	floatCol("netflows_norm", func(r *Row) *float64 { return &r.NetflowsNorm }),
	floatCol("has_pos_netflows", func(r *Row) *float64 { return &r.HasPosNetflows }),
	floatCol("pos_netflows", func(r *Row) *float64 { return &r.PosNetflows }),
	textCol("user_reg_ym", func(r *Row) string { return r.UserRegYM.String() }),
	intCol("t", func(r *Row) *int { return &r.T }),
	intCol("tt", func(r *Row) *int { return &r.TT }),
	floatCol("month_spend", func(r *Row) *float64 { return &r.MonthSpend }),
	floatCol("age", func(r *Row) *float64 { return &r.Age }),
	floatCol("is_female", func(r *Row) *float64 { return &r.IsFemale }),
	textCol("region", func(r *Row) string { return r.Region }),
	floatCol("is_urban", func(r *Row) *float64 { return &r.IsUrban }),
	intCol("region_code", func(r *Row) *int { return &r.RegionCode }),
	intCol("has_savings_account", func(r *Row) *int { return &r.HasSavingsAccount }),
	intCol("has_current_account", func(r *Row) *int { return &r.HasCurrentAccount }),
	textCol("generation", func(r *Row) string { return r.Generation }),
	intCol("generation_code", func(r *Row) *int { return &r.GenerationCode }),
	intCol("new_loan", func(r *Row) *int { return &r.NewLoan }),
	floatCol("prop_credit", func(r *Row) *float64 { return &r.PropCredit }),
	floatCol("discret_spend", func(r *Row) *float64 { return &r.DiscretSpend }),
	intCol("accounts_active", func(r *Row) *int { return &r.AccountsActive }),
	intCol("accounts_total", func(r *Row) *int { return &r.AccountsTotal }),
	intCol("sa_added_once", func(r *Row) *int { return &r.SAAddedOnce }),
	textCol("latest_first_sa_txn", func(r *Row) string { return r.LatestFirstSATxn.String() }),
	textCol("earliest_last_sa_txn", func(r *Row) string { return r.EarliestLastSATxn.String() }),
	floatCol("entropy_tag", func(r *Row) *float64 { return &r.EntropyTag }),
	floatCol("entropy_tag_sm", func(r *Row) *float64 { return &r.EntropyTagSm }),
	floatCol("entropy_tag_z", func(r *Row) *float64 { return &r.EntropyTagZ }),
	floatCol("entropy_merchant", func(r *Row) *float64 { return &r.EntropyMerchant }),
	floatCol("entropy_merchant_sm", func(r *Row) *float64 { return &r.EntropyMerchantSm }),
	floatCol("entropy_merchant_z", func(r *Row) *float64 { return &r.EntropyMerchantZ }),
}

var columnIndex = func() map[string]int {
	idx := make(map[string]int, len(columnTable))
	for i, c := range columnTable {
		idx[c.Name] = i
	}
	return idx
}()

// LookupColumn returns the accessor for a named column
func LookupColumn(name string) (Column, bool) {
	i, ok := columnIndex[name]
	if !ok {
		return Column{}, false
	}
	return columnTable[i], true
}

// KeyColumns are present in every panel
var KeyColumns = []string{"user_id", "ym"}

// orderColumns sorts names into declaration order, dropping duplicates
func orderColumns(names []string) []string {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	ordered := make([]string, 0, len(seen))
	for _, c := range columnTable {
		if seen[c.Name] {
			ordered = append(ordered, c.Name)
		}
	}
	return ordered
}
