// Package randcol builds randomized permutations of a class column. The
// entropic blend compares class statistics of the real column against these
// permutations.
package randcol

import "math/rand/v2"

const (
	// DefaultCount is the number of shuffled columns built per model.
	DefaultCount = 5
	// DefaultSeed keeps the shuffles reproducible across runs.
	DefaultSeed int64 = 42
)

// Columns holds Count() shuffled copies of a class column followed by the
// original column. All entries have the same length and the same multiset.
type Columns [][]int

// Generate returns count Fisher-Yates shuffles of classValues and, as the
// last entry, classValues itself. The same seed and input always produce the
// same output.
func Generate(classValues []int, count int, seed int64) Columns {
	if count < 0 {
		count = 0
	}
	original := make([]int, len(classValues))
	copy(original, classValues)

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	cols := make(Columns, count+1)
	for i := 0; i < count; i++ {
		cols[i] = shuffle(original, rng)
	}
	cols[count] = original
	return cols
}

func shuffle(values []int, rng *rand.Rand) []int {
	out := make([]int, len(values))
	copy(out, values)
	for j := len(out) - 1; j > 0; j-- {
		k := rng.IntN(j + 1)
		out[j], out[k] = out[k], out[j]
	}
	return out
}

// Count returns the number of shuffled columns, excluding the original.
func (c Columns) Count() int {
	if len(c) == 0 {
		return 0
	}
	return len(c) - 1
}

// Len returns the length of every column.
func (c Columns) Len() int {
	if len(c) == 0 {
		return 0
	}
	return len(c[0])
}

// Original returns the unshuffled class column.
func (c Columns) Original() []int {
	if len(c) == 0 {
		return nil
	}
	return c[len(c)-1]
}
