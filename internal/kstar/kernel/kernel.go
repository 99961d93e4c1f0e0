// Package kernel computes single-attribute transformation probabilities.
//
// A kernel answers: how likely is the query's value of one attribute to
// transform into the training instance's value? The answer depends on a
// blend parameter (scale factor for numeric attributes, stop probability
// for nominal ones) derived from the whole window, which is cached per
// distinct query value and window column.
package kernel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/haskel/kstar/internal/instance"
	"github.com/haskel/kstar/internal/kstar/cache"
	"github.com/haskel/kstar/internal/kstar/randcol"
)

const (
	rootFinderAccuracy = 0.01
	rootFinderMaxIter  = 40
	spreadEpsilon      = 1e-5

	// entropy search floors for the nominal and numeric kernels
	entropyFloor    = 0.0
	entropyFloorNum = 0.1
	initialStep     = 0.05
)

// MissingMode selects the probability of transforming into a missing value.
type MissingMode int

const (
	// MissingAverage uses the average transformation probability.
	MissingAverage MissingMode = iota
	// MissingDelete makes a missing training value contribute nothing.
	MissingDelete
	// MissingMaxDiff treats a missing value as maximally different.
	MissingMaxDiff
	// MissingNormal treats a missing value as identical.
	MissingNormal
)

// String returns string representation.
func (m MissingMode) String() string {
	switch m {
	case MissingAverage:
		return "average"
	case MissingDelete:
		return "delete"
	case MissingMaxDiff:
		return "max_diff"
	case MissingNormal:
		return "normal"
	default:
		return "unknown"
	}
}

// ParseMissingMode parses the config spelling of a missing mode.
func ParseMissingMode(s string) (MissingMode, error) {
	switch s {
	case "average":
		return MissingAverage, nil
	case "delete":
		return MissingDelete, nil
	case "max_diff":
		return MissingMaxDiff, nil
	case "normal":
		return MissingNormal, nil
	}
	return 0, fmt.Errorf("unknown missing mode: %q (valid: average, delete, max_diff, normal)", s)
}

// probability returns the missing-value probability for the given averages.
func (m MissingMode) probability(average, smallest float64) float64 {
	switch m {
	case MissingDelete:
		return 0
	case MissingNormal:
		return 1
	case MissingMaxDiff:
		return smallest
	default:
		return average
	}
}

// BlendMethod selects how the blend parameter is chosen.
type BlendMethod int

const (
	// BlendSphere targets a fixed share of the window (sphere of influence).
	BlendSphere BlendMethod = iota
	// BlendEntropic maximizes the gap between randomized and actual class entropy.
	BlendEntropic
)

// String returns string representation.
func (b BlendMethod) String() string {
	switch b {
	case BlendSphere:
		return "sphere"
	case BlendEntropic:
		return "entropic"
	default:
		return "unknown"
	}
}

// ParseBlendMethod parses the config spelling of a blend method.
func ParseBlendMethod(s string) (BlendMethod, error) {
	switch s {
	case "sphere":
		return BlendSphere, nil
	case "entropic":
		return BlendEntropic, nil
	}
	return 0, fmt.Errorf("unknown blend method: %q (valid: sphere, entropic)", s)
}

// DefaultGlobalBlend is the default sphere-of-influence percentage.
const DefaultGlobalBlend = 20

var ErrGlobalBlend = errors.New("global blend must be between 0 and 100")

// BlendConfig is passed unchanged to every kernel invocation of one model.
type BlendConfig struct {
	MissingMode MissingMode
	BlendMethod BlendMethod
	GlobalBlend int
}

// DefaultBlendConfig returns the K* defaults.
func DefaultBlendConfig() BlendConfig {
	return BlendConfig{
		MissingMode: MissingAverage,
		BlendMethod: BlendSphere,
		GlobalBlend: DefaultGlobalBlend,
	}
}

// Validate checks ranges.
func (c BlendConfig) Validate() error {
	if c.GlobalBlend < 0 || c.GlobalBlend > 100 {
		return fmt.Errorf("%w, got %d", ErrGlobalBlend, c.GlobalBlend)
	}
	if c.MissingMode.String() == "unknown" {
		return fmt.Errorf("invalid missing mode %d", c.MissingMode)
	}
	if c.BlendMethod.String() == "unknown" {
		return fmt.Errorf("invalid blend method %d", c.BlendMethod)
	}
	return nil
}

// Input carries everything one kernel invocation may read.
// Attr must not be the class index and the query value at Attr must not be missing.
type Input struct {
	Query   *instance.Instance
	Train   *instance.Instance
	Attr    int
	Window  []*instance.Instance
	Columns randcol.Columns
	Cache   *cache.Cache
	Config  BlendConfig

	// Reference is ColumnFingerprint(Window, Attr). Callers issuing many
	// invocations against one window compute it once; zero means unset.
	Reference uint64
}

func (in Input) cacheKey() cache.Key {
	ref := in.Reference
	if ref == 0 {
		ref = ColumnFingerprint(in.Window, in.Attr)
	}
	return cache.Key{
		TestValue: in.Query.Value(in.Attr),
		Reference: ref,
	}
}

// ColumnFingerprint hashes the attribute and class values of every row in
// order. Cached parameters are reused only against an identical column, so
// a full window that slides at constant size never serves stale entries.
func ColumnFingerprint(rows []*instance.Instance, attr int) uint64 {
	d := xxhash.New()
	var buf [16]byte
	for _, r := range rows {
		binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(r.Value(attr)))
		binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(r.ClassValue()))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// Kernel computes the transformation probability of one attribute.
type Kernel interface {
	// Name returns the kernel name.
	Name() string
	// TransProb returns a probability in [0, 1]. It may populate in.Cache.
	TransProb(in Input) float64
}

// For returns the kernel matching the attribute's declared type.
func For(a instance.Attribute) Kernel {
	switch a.Type {
	case instance.Numeric:
		return Numeric{}
	case instance.Nominal:
		return Nominal{}
	default:
		return nil
	}
}
