package panel

import (
	"fmt"
	"regexp"
	"sync"
)

// Setter writes one metric's values into a row
type Setter func(r *Row)

// Output maps each user-month a metric could compute to its setter
type Output map[Key]Setter

// MetricFunc computes a metric over the whole transaction table
type MetricFunc func(t *Table, p Params) (Output, error)

// Metric is a named aggregation producing one or more panel columns
type Metric struct {
	ID      string
	Name    string
	Columns []string
	Compute MetricFunc
}

// EntropyWeight selects what entropy buckets are weighted by
type EntropyWeight string

const (
	EntropyWeightCount  EntropyWeight = "count"
	EntropyWeightAmount EntropyWeight = "amount"
)

// Params carries the aggregation settings metrics read
type Params struct {
	SAFlowMinAmount       float64
	SAFlowExcludedTags    []string
	SAFlowExcludedPattern *regexp.Regexp
	LoanTags              []string
	DiscretionaryTags     []string
	EntropyWeight         EntropyWeight
}

// DefaultParams returns the aggregation settings of the reference design
func DefaultParams() Params {
	return Params{
		SAFlowMinAmount:       5,
		SAFlowExcludedTags:    []string{"interest"},
		SAFlowExcludedPattern: regexp.MustCompile(`(?i)save\s?the\s?change`),
		LoanTags: []string{
			"personal loan",
			"unsecured loan funds",
			"payday loan",
			"unsecured loan repayment",
			"payday loan funds",
			"secured loan repayment",
		},
		DiscretionaryTags: DefaultDiscretionaryTags(),
		EntropyWeight:     EntropyWeightCount,
	}
}

// DefaultDiscretionaryTags lists the auto-tags counted as highly discretionary spend
func DefaultDiscretionaryTags() []string {
	return []string{
		"accessories", "appearance", "beauty products", "beauty treatments",
		"clothes", "clothes - designer or other", "clothes - everyday or work",
		"clothes - other", "designer clothes", "food, groceries, household",
		"groceries", "supermarket", "jewellery", "personal electronics", "shoes",
		"cinema", "concert & theatre", "dining and drinking", "dining or going out",
		"enjoyment", "entertainment, tv, media", "gambling", "games and gaming",
		"hotel/b&b", "lunch or snacks", "sports event", "take-away",
	}
}

type registryEntry struct {
	metric  Metric
	enabled bool
}

// Registry manages metrics in registration order
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]*registryEntry
	order   []string
}

// NewRegistry creates an empty metric registry
func NewRegistry() *Registry {
	return &Registry{
		metrics: make(map[string]*registryEntry),
		order:   make([]string, 0),
	}
}

// Register adds an enabled metric to the registry
func (r *Registry) Register(m Metric) error {
	if m.ID == "" {
		return fmt.Errorf("metric ID cannot be empty")
	}
	if m.Compute == nil {
		return fmt.Errorf("metric %s has no compute function", m.ID)
	}
	for _, c := range m.Columns {
		if _, ok := LookupColumn(c); !ok {
			return fmt.Errorf("metric %s declares unknown column %s", m.ID, c)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.metrics[m.ID]; exists {
		return fmt.Errorf("metric with ID %s already registered", m.ID)
	}
	r.metrics[m.ID] = &registryEntry{metric: m, enabled: true}
	r.order = append(r.order, m.ID)
	return nil
}

// SetEnabled switches a registered metric on or off
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.metrics[id]
	if !ok {
		return fmt.Errorf("metric with ID %s not found", id)
	}
	e.enabled = enabled
	return nil
}

// IsEnabled reports whether a metric is registered and enabled
func (r *Registry) IsEnabled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.metrics[id]
	return ok && e.enabled
}

// Get retrieves a metric by ID
func (r *Registry) Get(id string) (Metric, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.metrics[id]
	if !ok {
		return Metric{}, fmt.Errorf("metric with ID %s not found", id)
	}
	return e.metric, nil
}

// List returns all registered metrics in registration order
func (r *Registry) List() []Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Metric, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.metrics[id].metric)
	}
	return out
}

// Enabled returns the enabled metrics in registration order
func (r *Registry) Enabled() []Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Metric, 0, len(r.order))
	for _, id := range r.order {
		if e := r.metrics[id]; e.enabled {
			out = append(out, e.metric)
		}
	}
	return out
}

// IDs returns all registered metric IDs in registration order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Columns returns the panel columns produced by the enabled metrics,
// key columns first, in declaration order
func (r *Registry) Columns() []string {
	names := append([]string{}, KeyColumns...)
	for _, m := range r.Enabled() {
		names = append(names, m.Columns...)
	}
	return orderColumns(names)
}

// DefaultDisabledMetrics lists the metrics DefaultRegistry registers disabled
func DefaultDisabledMetrics() []string {
	return []string{"all_savings_accounts_added_at_once", "sa_observation_checkers"}
}

// DefaultRegistry builds the reference metric set. Metrics that narrow the
// panel to savings account holders through the join are registered disabled.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, m := range []Metric{
		{ID: "numeric_ym", Name: "Numeric year-month", Columns: []string{"ymn"}, Compute: numericYM},
		{ID: "month", Name: "Calendar month", Columns: []string{"month"}, Compute: calendarMonth},
		{ID: "txns_count", Name: "Transaction count", Columns: []string{"txns_count"}, Compute: txnsCount},
		{ID: "txns_volume", Name: "Transaction volume", Columns: []string{"txns_volume"}, Compute: txnsVolume},
		{ID: "income", Name: "Mean monthly income by calendar year", Columns: []string{"month_income"}, Compute: income},
		{ID: "savings_accounts_flows", Name: "Savings account flows", Columns: flowColumns, Compute: savingsAccountFlows},
		{ID: "user_registration_ym", Name: "Registration year-month", Columns: []string{"user_reg_ym"}, Compute: registrationYM},
		{ID: "treatment", Name: "Treatment indicator", Columns: []string{"t"}, Compute: treatment},
		{ID: "time_to_treatment", Name: "Time to treatment", Columns: []string{"tt"}, Compute: timeToTreatment},
		{ID: "month_spend", Name: "Monthly spend", Columns: []string{"month_spend"}, Compute: monthSpend},
		{ID: "age", Name: "Age at signup", Columns: []string{"age"}, Compute: age},
		{ID: "female", Name: "Female indicator", Columns: []string{"is_female"}, Compute: female},
		{ID: "region", Name: "Region and urban indicator", Columns: []string{"region", "is_urban", "region_code"}, Compute: region},
		{ID: "savings_account", Name: "Has savings account", Columns: []string{"has_savings_account"}, Compute: savingsAccount},
		{ID: "current_account", Name: "Has current account", Columns: []string{"has_current_account"}, Compute: currentAccount},
		{ID: "generation", Name: "Generation", Columns: []string{"generation", "generation_code"}, Compute: generation},
		{ID: "new_loan", Name: "New loan indicator", Columns: []string{"new_loan"}, Compute: newLoan},
		{ID: "proportion_credit", Name: "Credit card share of spend", Columns: []string{"prop_credit"}, Compute: proportionCredit},
		{ID: "discretionary_spend", Name: "Discretionary spend", Columns: []string{"discret_spend"}, Compute: discretionarySpend},
		{ID: "num_accounts", Name: "Number of accounts", Columns: []string{"accounts_active", "accounts_total"}, Compute: numAccounts},
		{ID: "all_savings_accounts_added_at_once", Name: "Savings accounts added at once", Columns: []string{"sa_added_once"}, Compute: savingsAccountsAddedOnce},
		{ID: "sa_observation_checkers", Name: "Savings account observation window", Columns: []string{"latest_first_sa_txn", "earliest_last_sa_txn"}, Compute: saObservationCheckers},
		{ID: "entropy_tag", Name: "Spend entropy by tag", Columns: []string{"entropy_tag", "entropy_tag_sm"}, Compute: entropyByTag},
		{ID: "entropy_merchant", Name: "Spend entropy by merchant", Columns: []string{"entropy_merchant", "entropy_merchant_sm"}, Compute: entropyByMerchant},
	} {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
	for _, id := range DefaultDisabledMetrics() {
		if err := r.SetEnabled(id, false); err != nil {
			panic(err)
		}
	}
	return r
}
