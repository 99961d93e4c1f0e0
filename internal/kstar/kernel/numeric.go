package kernel

import (
	"math"

	"github.com/haskel/kstar/internal/kstar/cache"
)

// Numeric is the kernel for numeric attributes. The probability of
// transforming a value into one at distance x is exp(-2*(x-offset)*scale),
// where offset is the distance to the closest window value. The offset is
// constant for a query, so it cancels when votes are normalized, and it
// keeps far-away queries from underflowing to zero.
type Numeric struct{}

func (Numeric) Name() string {
	return "numeric"
}

func (Numeric) TransProb(in Input) float64 {
	key := in.cacheKey()
	e, ok := in.Cache.Get(key)
	if !ok {
		e = numericParams(in)
		_ = in.Cache.Store(key, e)
	}

	if in.Train.IsMissing(in.Attr) {
		return e.MissingProb
	}
	d := math.Abs(in.Query.Value(in.Attr)-in.Train.Value(in.Attr)) - e.Offset
	if d < 0 {
		d = 0
	}
	return numericPStar(d, e.Param)
}

func numericPStar(distance, scale float64) float64 {
	return math.Exp(-2 * distance * scale)
}

// numericSearch holds the distances from the query value to every window
// row, shifted so the closest row is at distance 0.
type numericSearch struct {
	distances   []float64 // -1 for rows missing the attribute
	actual      int
	offset      float64
	nextLowest  float64
	lowestCount int
	spread      bool
}

func newNumericSearch(in Input) *numericSearch {
	test := in.Query.Value(in.Attr)
	s := &numericSearch{
		distances:  make([]float64, len(in.Window)),
		offset:     -1,
		nextLowest: -1,
	}
	for i, train := range in.Window {
		if train.IsMissing(in.Attr) {
			s.distances[i] = -1
			continue
		}
		d := math.Abs(train.Value(in.Attr) - test)
		s.distances[i] = d
		s.actual++
		if s.offset < 0 || d < s.offset {
			s.offset = d
		}
	}
	if s.actual == 0 {
		s.offset = 0
		return s
	}
	for i, d := range s.distances {
		if d < 0 {
			continue
		}
		d -= s.offset
		s.distances[i] = d
		if d < spreadEpsilon {
			s.lowestCount++
		} else if s.nextLowest < 0 || d < s.nextLowest {
			s.nextLowest = d
		}
	}
	s.spread = s.nextLowest >= 0
	return s
}

func numericParams(in Input) cache.Entry {
	s := newNumericSearch(in)
	if !s.spread {
		// every observed value is at the same distance
		return cache.Entry{Param: 1, MissingProb: in.Config.MissingMode.probability(1, 1), Offset: s.offset}
	}

	var scale, avg, smallest float64
	if in.Config.BlendMethod == BlendEntropic && len(in.Columns) > 0 {
		scale, avg, smallest = s.entropicScale(in)
	} else {
		scale, avg, smallest = s.blendScale(in.Config.GlobalBlend)
	}
	return cache.Entry{
		Param:       scale,
		MissingProb: in.Config.MissingMode.probability(avg, smallest),
		Offset:      s.offset,
	}
}

type sphereStats struct {
	size    float64
	avgProb float64
	minProb float64
}

// sphere returns the effective number of rows covered at the given scale.
func (s *numericSearch) sphere(scale float64) sphereStats {
	var sum, sumSq float64
	minProb := 1.0
	for _, d := range s.distances {
		if d < 0 {
			continue
		}
		p := numericPStar(d, scale)
		if p < minProb {
			minProb = p
		}
		inc := p / float64(s.actual)
		sum += inc
		sumSq += inc * inc
	}
	st := sphereStats{avgProb: sum, minProb: minProb}
	if sumSq != 0 {
		st.size = sum * sum / sumSq
	}
	return st
}

// blendScale bisects for the scale whose sphere covers the lowest-distance
// rows plus blend percent of the rest.
func (s *numericSearch) blendScale(blend int) (scale, avg, smallest float64) {
	aimfor := float64(s.actual-s.lowestCount)*float64(blend)/100 + float64(s.lowestCount)

	root := 1 / s.nextLowest
	bot := rootFinderAccuracy / 2
	up := root * 16

	botVals := s.sphere(bot)
	if botVals.size-aimfor < 0 {
		return bot, botVals.avgProb, botVals.minProb
	}
	upVals := s.sphere(up)
	if upVals.size-aimfor > 0 {
		return up, upVals.avgProb, upVals.minProb
	}

	best := math.MaxFloat64
	scale = root
	for i := 0; ; i++ {
		vals := s.sphere(root)
		diff := vals.size - aimfor
		if math.Abs(diff) < best {
			best = math.Abs(diff)
			scale, avg, smallest = root, vals.avgProb, vals.minProb
		}
		if math.Abs(diff) <= rootFinderAccuracy || i >= rootFinderMaxIter {
			break
		}
		if diff > 0 {
			bot = root
			root = (root + up) / 2
		} else {
			up = root
			root = (root + bot) / 2
		}
	}
	return scale, avg, smallest
}

func (s *numericSearch) entropyAt(scale float64, in Input) entropyStats {
	probs := make([]float64, len(s.distances))
	for i, d := range s.distances {
		if d < 0 {
			probs[i] = -1
			continue
		}
		probs[i] = numericPStar(d, scale)
	}
	return classEntropy(probs, s.actual, in.Columns, in.Query.NumClasses())
}

// entropicScale walks the scale range looking for the largest gap between
// the randomized and the actual class entropy.
func (s *numericSearch) entropicScale(in Input) (scale, avg, smallest float64) {
	root := 1 / s.nextLowest
	bot := rootFinderAccuracy / 2
	up := root * 8

	botVals := s.entropyAt(bot, in)
	upVals := s.entropyAt(up, in)
	randRange := botVals.random - upVals.random
	if randRange <= 0 {
		return bot, botVals.avgProb, botVals.minProb
	}

	bestRoot, bestDiff := bot, entropyFloorNum
	avg, smallest = botVals.avgProb, botVals.minProb
	current := entropyFloorNum
	step := (up - bot) / 20
	pos := bot

	for it := 1; ; it++ {
		last := current
		pos += step

		var delta float64
		var vals entropyStats
		switch {
		case pos <= bot:
			pos, current, delta = bot, 0, -1
		case pos >= up:
			pos, current, delta = up, 0, -1
		default:
			vals = s.entropyAt(pos, in)
			current = (vals.random-upVals.random)/randRange - (vals.actual-upVals.actual)/randRange
			if current < entropyFloorNum {
				current = entropyFloorNum
				if step < 0 && bestDiff == entropyFloorNum {
					return bot, botVals.avgProb, botVals.minProb
				}
			}
			delta = current - last
		}

		if current > bestDiff {
			bestDiff, bestRoot = current, pos
			avg, smallest = vals.avgProb, vals.minProb
		}
		if delta < 0 {
			if math.Abs(step) < rootFinderAccuracy {
				break
			}
			step /= -4
		}
		if it > rootFinderMaxIter {
			break
		}
	}
	return bestRoot, avg, smallest
}
