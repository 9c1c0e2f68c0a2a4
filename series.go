package evcompbasic

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

const (
	yuvFullScale     = 255.0
	yuvSaturationMin = 253.0

	// SaturationMin is the normalized luma at or above which a sample is
	// treated as clipped.
	SaturationMin = yuvSaturationMin / yuvFullScale

	// minRetainedSamples is the smallest sample count that still shows a trend.
	minRetainedSamples = 3
)

// Series holds per-EV luma and RGB means in sweep order. The four slices
// always have the same length.
type Series struct {
	Lumas  []float64
	Reds   []float64
	Greens []float64
	Blues  []float64
}

// Len returns the number of samples.
func (s *Series) Len() int {
	return len(s.Lumas)
}

// Append adds one sample to the tail of every sequence.
func (s *Series) Append(luma float64, rgb [3]float64) {
	s.Lumas = append(s.Lumas, luma)
	s.Reds = append(s.Reds, rgb[0])
	s.Greens = append(s.Greens, rgb[1])
	s.Blues = append(s.Blues, rgb[2])
}

// Clone returns a deep copy.
func (s *Series) Clone() Series {
	return Series{
		Lumas:  append([]float64(nil), s.Lumas...),
		Reds:   append([]float64(nil), s.Reds...),
		Greens: append([]float64(nil), s.Greens...),
		Blues:  append([]float64(nil), s.Blues...),
	}
}

// TrimSaturated drops trailing samples that are clipped to neutral white and
// returns how many were removed. Colour-saturated tails are kept. Channel
// equality is exact.
func (s *Series) TrimSaturated() int {
	removed := 0
	for n := s.Len(); n > 0; n = s.Len() {
		last := n - 1
		if s.Lumas[last] < SaturationMin {
			break
		}
		if !(s.Reds[last] == s.Greens[last] && s.Greens[last] == s.Blues[last]) {
			break
		}
		s.Lumas = s.Lumas[:last]
		s.Reds = s.Reds[:last]
		s.Greens = s.Greens[:last]
		s.Blues = s.Blues[:last]
		removed++
	}
	return removed
}

// LumaDiffs returns luma[i+1]-luma[i] for every adjacent pair.
func (s *Series) LumaDiffs() []float64 {
	if s.Len() < 2 {
		return nil
	}
	diffs := make([]float64, s.Len()-1)
	for i := range diffs {
		diffs[i] = s.Lumas[i+1] - s.Lumas[i]
	}
	return diffs
}

// CheckMonotonic verifies there are enough samples and that luma strictly
// increases. minDiff is set whenever it could be computed; reason explains a
// failed check.
func (s *Series) CheckMonotonic() (minDiff float64, reason string, ok bool) {
	if s.Len() < minRetainedSamples {
		return 0, fmt.Sprintf("only %d samples left after trimming saturated frames, need at least %d",
			s.Len(), minRetainedSamples), false
	}
	diffs := s.LumaDiffs()
	minDiff = floats.Min(diffs)
	if !(minDiff > 0) {
		idx := floats.MinIdx(diffs)
		return minDiff, fmt.Sprintf("luma did not increase between samples %d and %d (diff %v)",
			idx, idx+1, minDiff), false
	}
	return minDiff, "", true
}
