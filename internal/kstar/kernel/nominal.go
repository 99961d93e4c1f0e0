package kernel

import (
	"math"

	"github.com/haskel/kstar/internal/kstar/cache"
)

// Nominal is the kernel for nominal attributes. A value stays unchanged with
// the stop probability, otherwise it moves to any of the V labels uniformly.
type Nominal struct{}

func (Nominal) Name() string {
	return "nominal"
}

func (Nominal) TransProb(in Input) float64 {
	key := in.cacheKey()
	e, ok := in.Cache.Get(key)
	if !ok {
		e = nominalParams(in)
		_ = in.Cache.Store(key, e)
	}

	if in.Train.IsMissing(in.Attr) {
		return e.MissingProb
	}
	numValues := in.Query.Schema().Attribute(in.Attr).NumValues()
	return nominalPStar(int(in.Query.Value(in.Attr)), int(in.Train.Value(in.Attr)), e.Param, numValues)
}

func nominalPStar(test, train int, stop float64, numValues int) float64 {
	if numValues <= 0 {
		return 0
	}
	p := (1 - stop) / float64(numValues)
	if test == train {
		p += stop
	}
	return p
}

// nominalSearch holds the label distribution of one attribute over the window.
type nominalSearch struct {
	test      int
	numValues int
	dist      []int
	rows      []int // label per window row, -1 when missing
	total     int
}

func newNominalSearch(in Input) *nominalSearch {
	numValues := in.Query.Schema().Attribute(in.Attr).NumValues()
	s := &nominalSearch{
		test:      int(in.Query.Value(in.Attr)),
		numValues: numValues,
		dist:      make([]int, numValues),
		rows:      make([]int, len(in.Window)),
	}
	for i, train := range in.Window {
		if train.IsMissing(in.Attr) {
			s.rows[i] = -1
			continue
		}
		v := int(train.Value(in.Attr))
		s.rows[i] = v
		if v >= 0 && v < numValues {
			s.dist[v]++
		}
		s.total++
	}
	return s
}

func (s *nominalSearch) testCount() int {
	if s.test < 0 || s.test >= s.numValues {
		return 0
	}
	return s.dist[s.test]
}

func nominalParams(in Input) cache.Entry {
	s := newNominalSearch(in)
	if s.total == 0 || s.numValues == 0 {
		stop := 1 - float64(in.Config.GlobalBlend)/100
		return cache.Entry{Param: stop, MissingProb: in.Config.MissingMode.probability(1, 1)}
	}

	var stop, avg, smallest float64
	if in.Config.BlendMethod == BlendEntropic && len(in.Columns) > 0 {
		stop, avg, smallest = s.entropicStop(in)
	} else {
		stop, avg, smallest = s.blendStop(in.Config.GlobalBlend)
	}
	return cache.Entry{Param: stop, MissingProb: in.Config.MissingMode.probability(avg, smallest)}
}

// sphere returns the effective number of rows covered at the given stop
// probability.
func (s *nominalSearch) sphere(stop float64) sphereStats {
	var sum, sumSq float64
	minProb := 1.0
	for v, count := range s.dist {
		if count == 0 {
			continue
		}
		p := nominalPStar(s.test, v, stop, s.numValues)
		if p < minProb {
			minProb = p
		}
		tprob := p / float64(s.total)
		sum += tprob * float64(count)
		sumSq += tprob * tprob * float64(count)
	}
	st := sphereStats{avgProb: sum, minProb: minProb}
	if sumSq != 0 {
		st.size = sum * sum / sumSq
	}
	return st
}

// blendStop bisects for the stop probability whose sphere covers the rows
// sharing the query label plus blend percent of the rest.
func (s *nominalSearch) blendStop(blend int) (stop, avg, smallest float64) {
	same := float64(s.testCount())
	aimfor := (float64(s.total)-same)*float64(blend)/100 + same

	stop = 1 - float64(blend)/100
	lower := rootFinderAccuracy / 2
	upper := 1 - rootFinderAccuracy/2

	upVals := s.sphere(upper)
	switch {
	case upVals.avgProb == 0:
		vals := s.sphere(stop)
		return stop, vals.avgProb, vals.minProb
	case upVals.size-aimfor > 0:
		return upper, upVals.avgProb, upVals.minProb
	}

	var vals sphereStats
	for i := 0; i < rootFinderMaxIter; i++ {
		vals = s.sphere(stop)
		diff := vals.size - aimfor
		if math.Abs(diff) <= rootFinderAccuracy {
			break
		}
		if diff > 0 {
			lower = stop
		} else {
			upper = stop
		}
		stop = (upper + lower) / 2
	}
	vals = s.sphere(stop)
	return stop, vals.avgProb, vals.minProb
}

func (s *nominalSearch) entropyAt(stop float64, in Input) entropyStats {
	probs := make([]float64, len(s.rows))
	for i, v := range s.rows {
		if v < 0 {
			probs[i] = -1
			continue
		}
		probs[i] = nominalPStar(s.test, v, stop, s.numValues)
	}
	return classEntropy(probs, s.total, in.Columns, in.Query.NumClasses())
}

// entropicStop hill-climbs the stop probability that maximizes the gap
// between randomized and actual class entropy.
func (s *nominalSearch) entropicStop(in Input) (stop, avg, smallest float64) {
	lower := rootFinderAccuracy / 2
	upper := 1 - rootFinderAccuracy/2

	botVals := s.entropyAt(lower, in)
	upVals := s.entropyAt(upper, in)
	if upVals.avgProb == 0 {
		return lower, botVals.avgProb, botVals.minProb
	}

	botDiff := botVals.random - botVals.actual
	upDiff := upVals.random - upVals.actual

	var pos, step, bestPos, bestDiff float64
	if upDiff < botDiff && botDiff > entropyFloor {
		pos, step, bestPos, bestDiff = lower, initialStep, lower, botDiff
	} else {
		pos, step, bestPos, bestDiff = upper, -initialStep, upper, upDiff
	}
	if bestDiff < entropyFloor {
		bestDiff = entropyFloor
	}
	current := bestDiff

	for it := 1; ; it++ {
		last := current
		pos += step

		var delta float64
		switch {
		case pos <= lower:
			pos, current, delta = lower, entropyFloor, -1
		case pos >= upper:
			pos, current, delta = upper, entropyFloor, -1
		default:
			vals := s.entropyAt(pos, in)
			current = vals.random - vals.actual
			if current < entropyFloor {
				current = entropyFloor
				if math.Abs(step) < initialStep && bestDiff == entropyFloor {
					bestPos = lower
					it = rootFinderMaxIter + 1
				}
			}
			delta = current - last
		}

		if current > bestDiff {
			bestDiff, bestPos = current, pos
		}
		if it > rootFinderMaxIter {
			break
		}
		if delta < 0 {
			if math.Abs(step) < rootFinderAccuracy {
				break
			}
			step /= -4
		}
	}

	vals := s.entropyAt(bestPos, in)
	return bestPos, vals.avgProb, vals.minProb
}
