package panel

import (
	"math"

	"evalpanel/pkg/contracts/domain"
)

// Key identifies one user-month observation
type Key struct {
	UserID int64
	YM     domain.YearMonth
}

// Less orders keys by user, then month
func (k Key) Less(other Key) bool {
	if k.UserID != other.UserID {
		return k.UserID < other.UserID
	}
	return k.YM.Before(other.YM)
}

// Row is one user-month observation of the panel.
// Float fields use NaN for undefined values.
type Row struct {
	UserID int64
	YM     domain.YearMonth
	YMN    int
	Month  int

	TxnsCount   float64
	TxnsVolume  float64
	MonthIncome float64

	Inflows        float64
	Outflows       float64
	Netflows       float64
	InflowsNorm    float64
	OutflowsNorm   float64
	NetflowsNorm   float64
	HasPosNetflows float64
	PosNetflows    float64

	UserRegYM domain.YearMonth
	T         int
	TT        int

	MonthSpend   float64
	DiscretSpend float64
	PropCredit   float64

	Age            float64
	IsFemale       float64
	Region         string
	IsUrban        float64
	RegionCode     int
	Generation     string
	GenerationCode int

	HasSavingsAccount int
	HasCurrentAccount int
	AccountsActive    int
	AccountsTotal     int
	SAAddedOnce       int
	LatestFirstSATxn  domain.YearMonth
	EarliestLastSATxn domain.YearMonth

	NewLoan int

	EntropyTag        float64
	EntropyTagSm      float64
	EntropyTagZ       float64
	EntropyMerchant   float64
	EntropyMerchantSm float64
	EntropyMerchantZ  float64
}

// NewRow creates a row for key with every nullable float unset
func NewRow(key Key) Row {
	nan := math.NaN()
	return Row{
		UserID:            key.UserID,
		YM:                key.YM,
		PropCredit:        nan,
		Age:               nan,
		IsFemale:          nan,
		IsUrban:           nan,
		RegionCode:        -1,
		GenerationCode:    -1,
		EntropyTag:        nan,
		EntropyTagSm:      nan,
		EntropyTagZ:       nan,
		EntropyMerchant:   nan,
		EntropyMerchantSm: nan,
		EntropyMerchantZ:  nan,
	}
}

// Key returns the row key
func (r *Row) Key() Key {
	return Key{UserID: r.UserID, YM: r.YM}
}
