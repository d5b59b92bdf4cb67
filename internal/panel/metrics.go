package panel

import (
	"math"
	"time"

	"evalpanel/pkg/contracts/domain"
)

// perGroup builds an output with one setter per user-month group
func perGroup(t *Table, fn func(g Group) Setter) Output {
	out := make(Output, len(t.groups))
	for _, g := range t.groups {
		out[g.Key] = fn(g)
	}
	return out
}

// perUser builds an output broadcasting a user-level setter onto each of the
// user's months; users for which fn reports false produce no keys
func perUser(t *Table, fn func(u UserGroup) (Setter, bool)) Output {
	out := make(Output, len(t.groups))
	for _, u := range t.users {
		set, ok := fn(u)
		if !ok {
			continue
		}
		for _, gi := range u.Groups {
			out[t.groups[gi].Key] = set
		}
	}
	return out
}

func stringSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func numericYM(t *Table, _ Params) (Output, error) {
	return perGroup(t, func(g Group) Setter {
		v := g.Key.YM.Int()
		return func(r *Row) { r.YMN = v }
	}), nil
}

func calendarMonth(t *Table, _ Params) (Output, error) {
	return perGroup(t, func(g Group) Setter {
		v := int(g.Key.YM.Month)
		return func(r *Row) { r.Month = v }
	}), nil
}

func txnsCount(t *Table, _ Params) (Output, error) {
	return perGroup(t, func(g Group) Setter {
		v := float64(len(g.Txns))
		return func(r *Row) { r.TxnsCount = v }
	}), nil
}

func txnsVolume(t *Table, _ Params) (Output, error) {
	return perGroup(t, func(g Group) Setter {
		var v float64
		for _, tx := range g.Txns {
			v += math.Abs(tx.Amount)
		}
		return func(r *Row) { r.TxnsVolume = v }
	}), nil
}

func isSpend(tx *domain.Transaction) bool {
	return tx.TagGroup == domain.TagGroupSpend && tx.IsDebit
}

// spendTotals returns the month spend and its credit card part
func spendTotals(txns []domain.Transaction) (spend, credit float64) {
	for i := range txns {
		tx := &txns[i]
		if !isSpend(tx) {
			continue
		}
		spend += tx.Amount
		if tx.AccountType == domain.AccountTypeCreditCard {
			credit += tx.Amount
		}
	}
	return spend, credit
}

func monthSpend(t *Table, _ Params) (Output, error) {
	return perGroup(t, func(g Group) Setter {
		spend, _ := spendTotals(g.Txns)
		return func(r *Row) { r.MonthSpend = spend }
	}), nil
}

// proportionCredit is undefined for months without spend
func proportionCredit(t *Table, _ Params) (Output, error) {
	return perGroup(t, func(g Group) Setter {
		spend, credit := spendTotals(g.Txns)
		v := math.NaN()
		if spend != 0 {
			v = credit / spend
		}
		return func(r *Row) { r.PropCredit = v }
	}), nil
}

func discretionarySpend(t *Table, p Params) (Output, error) {
	tags := stringSet(p.DiscretionaryTags)
	return perGroup(t, func(g Group) Setter {
		var v float64
		for _, tx := range g.Txns {
			if tx.IsDebit && tags[tx.TagAuto] {
				v += tx.Amount
			}
		}
		return func(r *Row) { r.DiscretSpend = v }
	}), nil
}

func newLoan(t *Table, p Params) (Output, error) {
	tags := stringSet(p.LoanTags)
	return perGroup(t, func(g Group) Setter {
		v := 0
		for _, tx := range g.Txns {
			if !tx.IsDebit && tags[tx.TagAuto] {
				v = 1
				break
			}
		}
		return func(r *Row) { r.NewLoan = v }
	}), nil
}

func numAccounts(t *Table, _ Params) (Output, error) {
	out := make(Output, len(t.groups))
	for _, u := range t.users {
		total := make(map[int64]bool)
		for _, tx := range u.Txns {
			total[tx.AccountID] = true
		}
		nTotal := len(total)
		for _, gi := range u.Groups {
			g := t.groups[gi]
			active := make(map[int64]bool)
			for _, tx := range g.Txns {
				active[tx.AccountID] = true
			}
			nActive := len(active)
			out[g.Key] = func(r *Row) {
				r.AccountsActive = nActive
				r.AccountsTotal = nTotal
			}
		}
	}
	return out, nil
}

func holdsAccountType(u UserGroup, at domain.AccountType) int {
	for _, tx := range u.Txns {
		if tx.AccountType == at {
			return 1
		}
	}
	return 0
}

// savingsAccount flags users with at least one observed savings account transaction
func savingsAccount(t *Table, _ Params) (Output, error) {
	return perUser(t, func(u UserGroup) (Setter, bool) {
		v := holdsAccountType(u, domain.AccountTypeSavings)
		return func(r *Row) { r.HasSavingsAccount = v }, true
	}), nil
}

func currentAccount(t *Table, _ Params) (Output, error) {
	return perUser(t, func(u UserGroup) (Setter, bool) {
		v := holdsAccountType(u, domain.AccountTypeCurrent)
		return func(r *Row) { r.HasCurrentAccount = v }, true
	}), nil
}

// savingsAccountsAddedOnce is only defined for savings account holders
func savingsAccountsAddedOnce(t *Table, _ Params) (Output, error) {
	return perUser(t, func(u UserGroup) (Setter, bool) {
		created := make(map[time.Time]bool)
		for _, tx := range u.Txns {
			if tx.AccountType == domain.AccountTypeSavings {
				y, m, d := tx.AccountCreated.Date()
				created[time.Date(y, m, d, 0, 0, 0, 0, time.UTC)] = true
			}
		}
		if len(created) == 0 {
			return nil, false
		}
		v := 0
		if len(created) == 1 {
			v = 1
		}
		return func(r *Row) { r.SAAddedOnce = v }, true
	}), nil
}

// saObservationCheckers finds the window in which all of a user's savings
// accounts are observed: the latest first transaction and the earliest last one
func saObservationCheckers(t *Table, _ Params) (Output, error) {
	type span struct{ first, last time.Time }
	return perUser(t, func(u UserGroup) (Setter, bool) {
		spans := make(map[int64]*span)
		for _, tx := range u.Txns {
			if tx.AccountType != domain.AccountTypeSavings {
				continue
			}
			s, ok := spans[tx.AccountID]
			if !ok {
				spans[tx.AccountID] = &span{first: tx.Date, last: tx.Date}
				continue
			}
			if tx.Date.Before(s.first) {
				s.first = tx.Date
			}
			if tx.Date.After(s.last) {
				s.last = tx.Date
			}
		}
		if len(spans) == 0 {
			return nil, false
		}
		var latestFirst, earliestLast time.Time
		for _, s := range spans {
			if latestFirst.IsZero() || s.first.After(latestFirst) {
				latestFirst = s.first
			}
			if earliestLast.IsZero() || s.last.Before(earliestLast) {
				earliestLast = s.last
			}
		}
		first, last := domain.YearMonthOf(latestFirst), domain.YearMonthOf(earliestLast)
		return func(r *Row) {
			r.LatestFirstSATxn = first
			r.EarliestLastSATxn = last
		}, true
	}), nil
}
