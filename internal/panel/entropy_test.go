package panel

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalpanel/internal/shared/testutil"
	"evalpanel/pkg/contracts/domain"
)

func TestEntropy(t *testing.T) {
	tests := []struct {
		name    string
		weights []float64
		want    float64
	}{
		{"single category", []float64{7}, 0},
		{"single non-empty bucket", []float64{0, 4, 0}, 0},
		{"two equal categories", []float64{3, 3}, 1},
		{"four equal categories", []float64{2, 2, 2, 2}, 2},
		{"eight equal categories", []float64{1, 1, 1, 1, 1, 1, 1, 1}, 3},
		{"skewed", []float64{3, 1}, -(0.75*math.Log2(0.75) + 0.25*math.Log2(0.25))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Entropy(tt.weights), 1e-12)
		})
	}

	t.Run("no observations is undefined", func(t *testing.T) {
		assert.True(t, math.IsNaN(Entropy(nil)))
		assert.True(t, math.IsNaN(Entropy([]float64{0, 0})))
	})

	t.Run("k equal categories is the maximum", func(t *testing.T) {
		for k := 1; k <= 10; k++ {
			weights := make([]float64, k)
			for i := range weights {
				weights[i] = 5
			}
			assert.InDelta(t, math.Log2(float64(k)), Entropy(weights), 1e-12)
			skewed := append([]float64{}, weights...)
			skewed[0] = 50
			assert.LessOrEqual(t, Entropy(skewed), math.Log2(float64(k))+1e-12)
		}
	})
}

func TestSmoothedEntropy(t *testing.T) {
	t.Run("smoothing spreads mass onto empty buckets", func(t *testing.T) {
		// (4,0) + 1 -> (5,1)
		want := -(5.0/6*math.Log2(5.0/6) + 1.0/6*math.Log2(1.0/6))
		assert.InDelta(t, want, SmoothedEntropy([]float64{4, 0}), 1e-12)
	})

	t.Run("no observations stays undefined", func(t *testing.T) {
		assert.True(t, math.IsNaN(SmoothedEntropy([]float64{0, 0, 0})))
	})

	t.Run("equal buckets are unchanged", func(t *testing.T) {
		assert.InDelta(t, 1.0, SmoothedEntropy([]float64{2, 2}), 1e-12)
	})
}

func TestAssemble_Entropy(t *testing.T) {
	user := testutil.NewUser(1, ym(2018, time.March))
	jan := time.Date(2018, time.January, 3, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2018, time.February, 3, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2018, time.March, 3, 0, 0, 0, 0, time.UTC)

	txns := []domain.Transaction{
		user.Txn(jan, 10, testutil.Tagged("groceries", domain.TagGroupSpend), testutil.AtMerchant("tesco")),
		user.Txn(jan, 10, testutil.Tagged("groceries", domain.TagGroupSpend), testutil.AtMerchant("tesco")),
		user.Txn(feb, 10, testutil.Tagged("groceries", domain.TagGroupSpend), testutil.AtMerchant("tesco")),
		user.Txn(feb, 10, testutil.Tagged("cinema", domain.TagGroupSpend), testutil.AtMerchant("odeon")),
		user.Txn(mar, 10, testutil.Tagged("", domain.TagGroupSpend)),
	}

	p, _ := assemble(t, DefaultRegistry(), txns)
	require.Equal(t, 3, p.Len())

	assert.InDelta(t, 0, p.Rows[0].EntropyTag, 1e-12)
	assert.InDelta(t, 1, p.Rows[1].EntropyTag, 1e-12)
	assert.InDelta(t, 1, p.Rows[1].EntropyMerchant, 1e-12)
	assert.True(t, math.IsNaN(p.Rows[2].EntropyTag), "month without tagged transactions")
	assert.True(t, math.IsNaN(p.Rows[2].EntropyMerchant))
	assert.True(t, math.IsNaN(p.Rows[2].EntropyTagSm))

	// the user's tag vocabulary is {groceries, cinema}: (2,0) + 1 -> (3,1)
	want := -(0.75*math.Log2(0.75) + 0.25*math.Log2(0.25))
	assert.InDelta(t, want, p.Rows[0].EntropyTagSm, 1e-12)
	assert.True(t, math.IsNaN(p.Rows[0].EntropyTagZ), "z-scores are filled after gather")
}

func TestAssemble_SmoothedEntropyVocabularyPerUser(t *testing.T) {
	jan := time.Date(2018, time.January, 3, 0, 0, 0, 0, time.UTC)
	first := testutil.NewUser(1, ym(2018, time.March))
	second := testutil.NewUser(2, ym(2018, time.March))

	firstTxns := []domain.Transaction{
		first.Txn(jan, 10, testutil.Tagged("groceries", domain.TagGroupSpend)),
		first.Txn(jan, 10, testutil.Tagged("groceries", domain.TagGroupSpend)),
	}
	secondTxns := []domain.Transaction{
		second.Txn(jan, 10, testutil.Tagged("cinema", domain.TagGroupSpend)),
		second.Txn(jan, 10, testutil.Tagged("rent", domain.TagGroupSpend)),
	}

	alone, _ := assemble(t, DefaultRegistry(), firstTxns)
	require.Equal(t, 1, alone.Len())

	together, _ := assemble(t, DefaultRegistry(), append(append([]domain.Transaction{}, firstTxns...), secondTxns...))
	require.Equal(t, 2, together.Len())

	// the first user never tags cinema or rent, so those buckets are not smoothed in
	assert.InDelta(t, 0, alone.Rows[0].EntropyTagSm, 1e-12)
	assert.InDelta(t, alone.Rows[0].EntropyTagSm, together.Rows[0].EntropyTagSm, 1e-12)
	assert.InDelta(t, 1, together.Rows[1].EntropyTagSm, 1e-12)
}
