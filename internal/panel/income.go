package panel

import "evalpanel/pkg/contracts/domain"

// monthIncome sums income credits of one month. Credits carry negative amounts.
func monthIncome(txns []domain.Transaction) float64 {
	var v float64
	for _, tx := range txns {
		if tx.TagGroup == domain.TagGroupIncome && !tx.IsDebit {
			v -= tx.Amount
		}
	}
	return v
}

// annualMeanIncome returns, for every user-month, the mean monthly income of
// that user's observed months in the same calendar year. Months without income
// count as zero.
func annualMeanIncome(t *Table) map[Key]float64 {
	out := make(map[Key]float64, len(t.groups))
	for _, u := range t.users {
		type acc struct {
			sum float64
			n   int
		}
		years := make(map[int]*acc)
		for _, gi := range u.Groups {
			g := t.groups[gi]
			a, ok := years[g.Key.YM.Year]
			if !ok {
				a = &acc{}
				years[g.Key.YM.Year] = a
			}
			a.sum += monthIncome(g.Txns)
			a.n++
		}
		for _, gi := range u.Groups {
			key := t.groups[gi].Key
			a := years[key.YM.Year]
			out[key] = a.sum / float64(a.n)
		}
	}
	return out
}

// income broadcasts the annual mean monthly income onto each month of the year
func income(t *Table, _ Params) (Output, error) {
	means := annualMeanIncome(t)
	out := make(Output, len(means))
	for key, v := range means {
		v := v
		out[key] = func(r *Row) { r.MonthIncome = v }
	}
	return out, nil
}
