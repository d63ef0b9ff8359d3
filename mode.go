package tally

import "math"

// Mode selects how per-owner slot values are reduced into one reading.
type Mode uint8

const (
	// ModeSum adds slot values together.
	ModeSum Mode = iota
	// ModeMax keeps the largest value written.
	ModeMax
	// ModeMin keeps the smallest value written.
	ModeMin
	// ModeAverage sums values; the sample count lives in a companion Sum entry.
	ModeAverage
)

func (m Mode) String() string {
	switch m {
	case ModeSum:
		return "sum"
	case ModeMax:
		return "max"
	case ModeMin:
		return "min"
	case ModeAverage:
		return "average"
	default:
		return "unknown"
	}
}

// Identity returns the value a slot holds before anything is written to it,
// and the value it is reset to by a reset-on-read aggregation.
func (m Mode) Identity() int64 {
	switch m {
	case ModeMax:
		return math.MinInt64
	case ModeMin:
		return math.MaxInt64
	default:
		return 0
	}
}

func (m Mode) combine(acc, v int64) int64 {
	switch m {
	case ModeMax:
		return max(acc, v)
	case ModeMin:
		return min(acc, v)
	default:
		return acc + v
	}
}
