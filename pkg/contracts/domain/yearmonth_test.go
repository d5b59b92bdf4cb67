package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYearMonth(t *testing.T) {
	t.Run("Sub counts months across years", func(t *testing.T) {
		a := NewYearMonth(2019, time.February)
		b := NewYearMonth(2018, time.November)
		assert.Equal(t, 3, a.Sub(b))
		assert.Equal(t, -3, b.Sub(a))
	})

	t.Run("AddMonths", func(t *testing.T) {
		tests := []struct {
			name string
			ym   YearMonth
			n    int
			want YearMonth
		}{
			{"same year", NewYearMonth(2018, time.March), 2, NewYearMonth(2018, time.May)},
			{"year rollover", NewYearMonth(2018, time.December), 1, NewYearMonth(2019, time.January)},
			{"backwards", NewYearMonth(2018, time.January), -1, NewYearMonth(2017, time.December)},
			{"zero", NewYearMonth(2018, time.June), 0, NewYearMonth(2018, time.June)},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.Equal(t, tt.want, tt.ym.AddMonths(tt.n))
			})
		}
	})

	t.Run("formatting", func(t *testing.T) {
		ym := NewYearMonth(2017, time.April)
		assert.Equal(t, "2017-04", ym.String())
		assert.Equal(t, 201704, ym.Int())
	})

	t.Run("parse round trip", func(t *testing.T) {
		ym, err := ParseYearMonth("2017-04")
		require.NoError(t, err)
		assert.Equal(t, NewYearMonth(2017, time.April), ym)

		_, err = ParseYearMonth("April 2017")
		assert.Error(t, err)
	})

	t.Run("text unmarshal", func(t *testing.T) {
		var ym YearMonth
		require.NoError(t, ym.UnmarshalText([]byte("2020-12")))
		assert.Equal(t, NewYearMonth(2020, time.December), ym)
	})
}

func TestParseAccountType(t *testing.T) {
	assert.Equal(t, AccountTypeSavings, ParseAccountType(" Savings "))
	assert.Equal(t, AccountTypeCreditCard, ParseAccountType("credit card"))
	assert.Equal(t, AccountTypeCurrent, ParseAccountType("CURRENT"))
	assert.Equal(t, AccountTypeOther, ParseAccountType("mortgage"))
}
