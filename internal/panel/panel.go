package panel

import (
	"fmt"
	"math"
	"sort"
)

// Panel is a set of user-month rows sorted by key, with the columns that were
// computed for them
type Panel struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"-"`
}

// UserRows is one user's retained rows, in month order
type UserRows struct {
	UserID int64
	Rows   []Row
}

// Len returns the number of user-months
func (p *Panel) Len() int {
	return len(p.Rows)
}

// HasColumn reports whether a column was computed for the panel
func (p *Panel) HasColumn(name string) bool {
	for _, c := range p.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumn records a derived column as present
func (p *Panel) AddColumn(name string) error {
	if _, ok := LookupColumn(name); !ok {
		return fmt.Errorf("unknown column %s", name)
	}
	if !p.HasColumn(name) {
		p.Columns = orderColumns(append(p.Columns, name))
	}
	return nil
}

// ByUser splits the rows into per-user runs
func (p *Panel) ByUser() []UserRows {
	var users []UserRows
	start := 0
	for i := 1; i <= len(p.Rows); i++ {
		if i < len(p.Rows) && p.Rows[i].UserID == p.Rows[start].UserID {
			continue
		}
		users = append(users, UserRows{UserID: p.Rows[start].UserID, Rows: p.Rows[start:i:i]})
		start = i
	}
	return users
}

// UserCount returns the number of distinct users
func (p *Panel) UserCount() int {
	n := 0
	for i := range p.Rows {
		if i == 0 || p.Rows[i].UserID != p.Rows[i-1].UserID {
			n++
		}
	}
	return n
}

// Narrow returns a new panel keeping, for every user, the rows fn returns.
// fn must return a subset of the rows it is given.
func (p *Panel) Narrow(fn func(u UserRows) []Row) *Panel {
	out := &Panel{Columns: p.Columns, Rows: make([]Row, 0, len(p.Rows))}
	for _, u := range p.ByUser() {
		out.Rows = append(out.Rows, fn(u)...)
	}
	return out
}

// Filter returns a new panel keeping whole users for which keep is true
func (p *Panel) Filter(keep func(u UserRows) bool) *Panel {
	return p.Narrow(func(u UserRows) []Row {
		if keep(u) {
			return u.Rows
		}
		return nil
	})
}

// Column returns a copy of a numeric column's values in row order
func (p *Panel) Column(name string) ([]float64, error) {
	col, ok := LookupColumn(name)
	if !ok || !col.Numeric {
		return nil, fmt.Errorf("unknown numeric column %s", name)
	}
	values := make([]float64, len(p.Rows))
	for i := range p.Rows {
		values[i] = col.Value(&p.Rows[i])
	}
	return values, nil
}

// SetColumn overwrites a numeric column in row order
func (p *Panel) SetColumn(name string, values []float64) error {
	col, ok := LookupColumn(name)
	if !ok || !col.Numeric {
		return fmt.Errorf("unknown numeric column %s", name)
	}
	if len(values) != len(p.Rows) {
		return fmt.Errorf("column %s: got %d values for %d rows", name, len(values), len(p.Rows))
	}
	for i := range p.Rows {
		if err := col.Set(&p.Rows[i], values[i]); err != nil {
			return err
		}
	}
	return nil
}

// Sum adds the finite values of a numeric column
func (p *Panel) Sum(name string) (float64, error) {
	values, err := p.Column(name)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sum += v
		}
	}
	return sum, nil
}

// Concat joins panels computed on disjoint users. All panels must carry the
// same columns, and a key appearing twice is an error.
func Concat(panels ...*Panel) (*Panel, error) {
	out := &Panel{}
	total := 0
	for _, p := range panels {
		total += len(p.Rows)
	}
	out.Rows = make([]Row, 0, total)

	for i, p := range panels {
		if i == 0 {
			out.Columns = append([]string{}, p.Columns...)
		} else if !sameColumns(out.Columns, p.Columns) {
			return nil, fmt.Errorf("panel %d has columns %v, expected %v", i, p.Columns, out.Columns)
		}
		out.Rows = append(out.Rows, p.Rows...)
	}

	sort.SliceStable(out.Rows, func(i, j int) bool {
		return out.Rows[i].Key().Less(out.Rows[j].Key())
	})
	for i := 1; i < len(out.Rows); i++ {
		if out.Rows[i].Key() == out.Rows[i-1].Key() {
			k := out.Rows[i].Key()
			return nil, fmt.Errorf("duplicate panel key user=%d ym=%s", k.UserID, k.YM)
		}
	}
	return out, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// RecodeRegions reassigns region codes from the panel's own region vocabulary
func (p *Panel) RecodeRegions() {
	if !p.HasColumn("region_code") {
		return
	}
	names := make([]string, len(p.Rows))
	for i := range p.Rows {
		names[i] = p.Rows[i].Region
	}
	codes := RegionCodes(names)
	for i := range p.Rows {
		code, ok := codes[p.Rows[i].Region]
		if !ok {
			code = -1
		}
		p.Rows[i].RegionCode = code
	}
}
