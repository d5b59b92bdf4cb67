package panel

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowsFor(user int64, from int, n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = NewRow(Key{UserID: user, YM: ym(2018, time.Month(from+i))})
		rows[i].TxnsCount = float64(10 + i)
		rows[i].TxnsVolume = 100
	}
	return rows
}

func testPanel(rows ...[]Row) *Panel {
	p := &Panel{Columns: DefaultRegistry().Columns()}
	for _, r := range rows {
		p.Rows = append(p.Rows, r...)
	}
	return p
}

func TestPanel_ByUserAndFilter(t *testing.T) {
	p := testPanel(rowsFor(1, 1, 3), rowsFor(2, 1, 2), rowsFor(3, 4, 1))

	users := p.ByUser()
	require.Len(t, users, 3)
	assert.Equal(t, int64(2), users[1].UserID)
	assert.Len(t, users[1].Rows, 2)
	assert.Equal(t, 3, p.UserCount())

	kept := p.Filter(func(u UserRows) bool { return u.UserID != 2 })
	assert.Equal(t, 4, kept.Len())
	assert.Equal(t, 2, kept.UserCount())
	assert.Equal(t, 6, p.Len(), "filter must not modify the input")

	trimmed := p.Narrow(func(u UserRows) []Row { return u.Rows[:1] })
	assert.Equal(t, 3, trimmed.Len())
}

func TestPanel_Columns(t *testing.T) {
	p := testPanel(rowsFor(1, 1, 3))

	values, err := p.Column("txns_count")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11, 12}, values)

	require.NoError(t, p.SetColumn("txns_count", []float64{1, 2, 3}))
	assert.Equal(t, 2.0, p.Rows[1].TxnsCount)

	require.NoError(t, p.SetColumn("tt", []float64{-1, 0, 1.4}))
	assert.Equal(t, 1, p.Rows[2].TT)

	sum, err := p.Sum("txns_volume")
	require.NoError(t, err)
	assert.Equal(t, 300.0, sum)

	_, err = p.Column("region")
	assert.Error(t, err, "text columns are not numeric")
	_, err = p.Column("nope")
	assert.Error(t, err)
	assert.Error(t, p.SetColumn("txns_count", []float64{1}))
}

func TestPanel_AddColumn(t *testing.T) {
	p := testPanel()
	assert.False(t, p.HasColumn("entropy_tag_z"))
	require.NoError(t, p.AddColumn("entropy_tag_z"))
	assert.True(t, p.HasColumn("entropy_tag_z"))
	assert.Equal(t, "entropy_tag_z", p.Columns[len(p.Columns)-3])
	assert.Error(t, p.AddColumn("bogus"))
}

func TestConcat(t *testing.T) {
	a := testPanel(rowsFor(2, 1, 2))
	b := testPanel(rowsFor(1, 1, 2))

	merged, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, 4, merged.Len())
	assert.Equal(t, int64(1), merged.Rows[0].UserID, "rows are re-sorted by key")

	_, err = Concat(a, testPanel(rowsFor(2, 2, 1)))
	assert.ErrorContains(t, err, "duplicate panel key")

	other := testPanel(rowsFor(9, 1, 1))
	other.Columns = []string{"user_id", "ym"}
	_, err = Concat(a, other)
	assert.Error(t, err)
}

func TestPanel_RecodeRegions(t *testing.T) {
	rows := rowsFor(1, 1, 1)
	rows = append(rows, rowsFor(2, 1, 1)...)
	rows = append(rows, rowsFor(3, 1, 1)...)
	rows[0].Region = "Wales"
	rows[1].Region = "London"
	rows[2].Region = ""
	p := testPanel(rows)

	p.RecodeRegions()
	assert.Equal(t, 0, p.Rows[0].RegionCode, "first region seen")
	assert.Equal(t, 1, p.Rows[1].RegionCode)
	assert.Equal(t, -1, p.Rows[2].RegionCode)
}

func TestRegionCodes_FirstAppearance(t *testing.T) {
	codes := RegionCodes([]string{"Wales", "", "London", "Wales", "Aberdeen"})
	assert.Equal(t, map[string]int{"Wales": 0, "London": 1, "Aberdeen": 2}, codes)
}

func TestColumnFormat(t *testing.T) {
	row := NewRow(Key{UserID: 42, YM: ym(2018, time.March)})
	row.TxnsVolume = 12.5
	row.TT = -2

	format := func(name string) string {
		c, ok := LookupColumn(name)
		require.True(t, ok, name)
		return c.Format(&row)
	}
	assert.Equal(t, "42", format("user_id"))
	assert.Equal(t, "2018-03", format("ym"))
	assert.Equal(t, "12.5", format("txns_volume"))
	assert.Equal(t, "-2", format("tt"))
	assert.Equal(t, "", format("prop_credit"))
	assert.True(t, math.IsNaN(row.PropCredit))
}

func TestRegistry(t *testing.T) {
	t.Run("registration order", func(t *testing.T) {
		ids := DefaultRegistry().IDs()
		require.NotEmpty(t, ids)
		assert.Equal(t, "numeric_ym", ids[0])
		assert.Equal(t, "entropy_merchant", ids[len(ids)-1])
	})

	t.Run("savings-only metrics start disabled", func(t *testing.T) {
		reg := DefaultRegistry()
		assert.False(t, reg.IsEnabled("sa_observation_checkers"))
		assert.False(t, reg.IsEnabled("all_savings_accounts_added_at_once"))
		assert.True(t, reg.IsEnabled("income"))
		assert.Len(t, reg.Enabled(), len(reg.List())-2)
		assert.NotContains(t, reg.Columns(), "sa_added_once")
	})

	t.Run("default disabled metrics are registered", func(t *testing.T) {
		reg := DefaultRegistry()
		for _, id := range DefaultDisabledMetrics() {
			_, err := reg.Get(id)
			assert.NoError(t, err, id)
			assert.False(t, reg.IsEnabled(id), id)
		}
	})

	t.Run("rejects invalid metrics", func(t *testing.T) {
		reg := NewRegistry()
		noop := func(*Table, Params) (Output, error) { return Output{}, nil }

		assert.Error(t, reg.Register(Metric{Compute: noop}))
		assert.Error(t, reg.Register(Metric{ID: "x"}))
		assert.Error(t, reg.Register(Metric{ID: "x", Compute: noop, Columns: []string{"unknown"}}))
		require.NoError(t, reg.Register(Metric{ID: "x", Compute: noop, Columns: []string{"tt"}}))
		assert.Error(t, reg.Register(Metric{ID: "x", Compute: noop}))
		assert.Error(t, reg.SetEnabled("missing", false))

		_, err := reg.Get("x")
		assert.NoError(t, err)
		assert.Equal(t, []string{"user_id", "ym", "tt"}, reg.Columns())
	})
}
