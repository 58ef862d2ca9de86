// Package compute is the deterministic correctness backstop: a fixed
// vocabulary of aggregate operations evaluated directly over in-memory
// column values, with no external dependency.
package compute

import (
	"errors"
	"math"
	"sort"
	"strings"
)

var (
	// ErrUnknownOperation means the normalized operation text matches
	// none of the supported names. User-correctable.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrNoValues means the operation needs at least one value.
	ErrNoValues = errors.New("column has no values")
)

// Canonical operation names after alias resolution.
const (
	OpCount    = "count"
	OpSum      = "sum"
	OpAverage  = "average"
	OpMin      = "min"
	OpMax      = "max"
	OpMedian   = "median"
	OpStdDev   = "stddev"
	OpVariance = "variance"
)

var aliases = map[string]string{
	"count":              OpCount,
	"sum":                OpSum,
	"total":              OpSum,
	"avg":                OpAverage,
	"mean":               OpAverage,
	"average":            OpAverage,
	"min":                OpMin,
	"minimum":            OpMin,
	"max":                OpMax,
	"maximum":            OpMax,
	"median":             OpMedian,
	"std":                OpStdDev,
	"stdev":              OpStdDev,
	"stddev":             OpStdDev,
	"standard deviation": OpStdDev,
	"var":                OpVariance,
	"variance":           OpVariance,
}

// Normalize resolves free-text operation names to their canonical form.
// ok is false for text outside the vocabulary.
func Normalize(operation string) (string, bool) {
	key := strings.Join(strings.Fields(strings.ToLower(operation)), " ")
	op, ok := aliases[key]
	return op, ok
}

// Fallback evaluates the operation over the values. Standard deviation and
// variance are the population forms (divide by n), matching what the SQL
// path's STDDEV would report on MySQL-style engines.
func Fallback(values []float64, operation string) (float64, error) {
	op, ok := Normalize(operation)
	if !ok {
		return 0, ErrUnknownOperation
	}

	switch op {
	case OpCount:
		return float64(len(values)), nil
	case OpSum:
		return sum(values), nil
	}

	if len(values) == 0 {
		return 0, ErrNoValues
	}

	switch op {
	case OpAverage:
		return sum(values) / float64(len(values)), nil
	case OpMin:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min, nil
	case OpMax:
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max, nil
	case OpMedian:
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 0 {
			return (sorted[mid-1] + sorted[mid]) / 2, nil
		}
		return sorted[mid], nil
	case OpVariance:
		return variance(values), nil
	case OpStdDev:
		return math.Sqrt(variance(values)), nil
	}

	return 0, ErrUnknownOperation
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func variance(values []float64) float64 {
	mean := sum(values) / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return sq / float64(len(values))
}
