package selection

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Metric names of a ledger entry
const (
	MetricUsers      = "users"
	MetricUserMonths = "user_months"
	MetricTxns       = "txns"
	MetricTxnsVolume = "txns_volume"
)

var million = decimal.NewFromInt(1_000_000)

// Counts is the sample size recorded after a funnel step
type Counts struct {
	Users      int64           `json:"users"`
	UserMonths int64           `json:"user_months"`
	Txns       int64           `json:"txns"`
	Volume     decimal.Decimal `json:"txns_volume"`
}

// Add returns the element-wise sum of two counts
func (c Counts) Add(other Counts) Counts {
	return Counts{
		Users:      c.Users + other.Users,
		UserMonths: c.UserMonths + other.UserMonths,
		Txns:       c.Txns + other.Txns,
		Volume:     c.Volume.Add(other.Volume),
	}
}

// VolumeMillions returns the transaction volume in millions
func (c Counts) VolumeMillions() decimal.Decimal {
	return c.Volume.Div(million)
}

// Value returns one metric of the counts as float64
func (c Counts) Value(metric string) (float64, error) {
	switch metric {
	case MetricUsers:
		return float64(c.Users), nil
	case MetricUserMonths:
		return float64(c.UserMonths), nil
	case MetricTxns:
		return float64(c.Txns), nil
	case MetricTxnsVolume:
		return c.VolumeMillions().InexactFloat64(), nil
	}
	return 0, fmt.Errorf("unknown ledger metric %q", metric)
}

// Entry is one recorded funnel step
type Entry struct {
	Step  string `json:"step"`
	Label string `json:"label"`
	Counts
}

// Ledger accumulates sample sizes per funnel step. Ledgers from independent
// shards merge by summation; step order follows first appearance.
type Ledger struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*Entry
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*Entry)}
}

// Record adds counts under a step; recording a step twice accumulates
func (l *Ledger) Record(step, label string, c Counts) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recordLocked(step, label, c)
}

func (l *Ledger) recordLocked(step, label string, c Counts) {
	e, ok := l.entries[step]
	if !ok {
		l.entries[step] = &Entry{Step: step, Label: label, Counts: c}
		l.order = append(l.order, step)
		return
	}
	e.Counts = e.Counts.Add(c)
}

// Merge adds every entry of other into l
func (l *Ledger) Merge(other *Ledger) {
	if other == nil || other == l {
		return
	}
	entries := other.Entries()

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range entries {
		l.recordLocked(e.Step, e.Label, e.Counts)
	}
}

// MergeLedgers sums any number of ledgers into a new one
func MergeLedgers(ledgers ...*Ledger) *Ledger {
	out := NewLedger()
	for _, l := range ledgers {
		out.Merge(l)
	}
	return out
}

// Entries returns a copy of the entries in step order
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, 0, len(l.order))
	for _, step := range l.order {
		out = append(out, *l.entries[step])
	}
	return out
}

// Get returns the counts recorded for a step
func (l *Ledger) Get(step string) (Counts, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[step]
	if !ok {
		return Counts{}, false
	}
	return e.Counts, true
}

// Len returns the number of recorded steps
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// Equal reports whether two ledgers hold the same steps and counts.
// Step order is not compared.
func (l *Ledger) Equal(other *Ledger) bool {
	a, b := l.Entries(), other.Entries()
	if len(a) != len(b) {
		return false
	}
	for _, e := range a {
		c, ok := other.Get(e.Step)
		if !ok || c.Users != e.Users || c.UserMonths != e.UserMonths || c.Txns != e.Txns || !c.Volume.Equal(e.Volume) {
			return false
		}
	}
	return true
}

// MarshalJSON renders the entries in step order
func (l *Ledger) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Entries())
}

// UnmarshalJSON restores a ledger from its entries
func (l *Ledger) UnmarshalJSON(data []byte) error {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = nil
	l.entries = make(map[string]*Entry, len(entries))
	for _, e := range entries {
		l.recordLocked(e.Step, e.Label, e.Counts)
	}
	return nil
}
