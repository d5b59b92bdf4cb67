package panel

import (
	"math"

	"evalpanel/pkg/contracts/domain"
)

// Entropy returns the base-2 Shannon entropy of the distribution given by
// bucket weights. It is NaN when there is no mass and 0 for a single bucket.
func Entropy(weights []float64) float64 {
	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total == 0 {
		return math.NaN()
	}
	var h float64
	for _, w := range weights {
		if w <= 0 {
			continue
		}
		p := w / total
		h -= p * math.Log2(p)
	}
	if h < 0 {
		return 0
	}
	return h
}

// SmoothedEntropy adds one to every bucket before normalising. It stays NaN
// when the buckets hold no observations.
func SmoothedEntropy(weights []float64) float64 {
	var total float64
	smoothed := make([]float64, len(weights))
	for i, w := range weights {
		if w > 0 {
			total += w
		}
		smoothed[i] = math.Max(w, 0) + 1
	}
	if total == 0 {
		return math.NaN()
	}
	return Entropy(smoothed)
}

// entropyMetric buckets each month's transactions by dim. Buckets span the
// categories the user is ever observed in, so smoothing does not depend on
// which other users share the table.
func entropyMetric(dim func(tx *domain.Transaction) string, assign func(r *Row, h, hs float64)) MetricFunc {
	return func(t *Table, p Params) (Output, error) {
		weight := func(tx *domain.Transaction) float64 {
			if p.EntropyWeight == EntropyWeightAmount {
				return math.Abs(tx.Amount)
			}
			return 1
		}
		out := make(Output, len(t.groups))
		for _, u := range t.users {
			vocab := make(map[string]int)
			for i := range u.Txns {
				if c := dim(&u.Txns[i]); c != "" {
					if _, ok := vocab[c]; !ok {
						vocab[c] = len(vocab)
					}
				}
			}
			for _, gi := range u.Groups {
				g := t.groups[gi]
				buckets := make([]float64, len(vocab))
				for i := range g.Txns {
					tx := &g.Txns[i]
					if c := dim(tx); c != "" {
						buckets[vocab[c]] += weight(tx)
					}
				}
				h, hs := Entropy(buckets), SmoothedEntropy(buckets)
				out[g.Key] = func(r *Row) { assign(r, h, hs) }
			}
		}
		return out, nil
	}
}

var entropyByTag = entropyMetric(
	func(tx *domain.Transaction) string { return tx.TagAuto },
	func(r *Row, h, hs float64) { r.EntropyTag, r.EntropyTagSm = h, hs },
)

var entropyByMerchant = entropyMetric(
	func(tx *domain.Transaction) string { return tx.Merchant },
	func(r *Row, h, hs float64) { r.EntropyMerchant, r.EntropyMerchantSm = h, hs },
)
