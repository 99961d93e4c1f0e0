package kernel

import (
	"math"

	"github.com/haskel/kstar/internal/kstar/randcol"
)

type entropyStats struct {
	actual  float64 // class entropy under the real class column
	random  float64 // mean class entropy under the shuffled columns
	avgProb float64
	minProb float64
}

// classEntropy spreads the per-row transformation probabilities over the
// class labels of every column. probs[i] < 0 marks a row without a value.
func classEntropy(probs []float64, count int, cols randcol.Columns, numClasses int) entropyStats {
	st := entropyStats{minProb: 1}
	if count == 0 || len(cols) == 0 || numClasses <= 0 {
		return st
	}

	pseudo := make([][]float64, len(cols))
	for k := range pseudo {
		pseudo[k] = make([]float64, numClasses)
	}

	for i, p := range probs {
		if p < 0 {
			continue
		}
		tprob := p / float64(count)
		st.avgProb += tprob
		if p < st.minProb {
			st.minProb = p
		}
		for k, col := range cols {
			if i >= len(col) {
				continue
			}
			c := col[i]
			if c < 0 || c >= numClasses {
				continue
			}
			pseudo[k][c] += tprob
		}
	}

	if st.avgProb == 0 {
		return st
	}

	st.actual = entropy(pseudo[len(pseudo)-1], st.avgProb)
	if n := cols.Count(); n > 0 {
		for k := 0; k < n; k++ {
			st.random += entropy(pseudo[k], st.avgProb)
		}
		st.random /= float64(n)
	}
	return st
}

func entropy(mass []float64, total float64) float64 {
	var h float64
	for c := len(mass) - 1; c >= 0; c-- {
		p := mass[c] / total
		if p > 0 {
			h -= p * math.Log2(p)
		}
	}
	return h
}
