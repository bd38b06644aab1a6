// Package timing provides tolerance-aware float comparisons and the small
// pieces of beat arithmetic shared by every transform. Beat positions come
// from integer tick counts divided by a ticks-per-beat constant, so values
// that are musically identical routinely differ in the last few bits;
// all range and boundary logic goes through these helpers instead of raw
// < and <=.
package timing

import "math"

// Epsilon is the absolute tolerance for beat comparisons.
const Epsilon = 1e-7

func close(a, b float64) bool {
	return math.Abs(a-b) <= Epsilon
}

// Lt reports a < b outside tolerance.
func Lt(a, b float64) bool {
	return a < b && !close(a, b)
}

// Gt reports a > b outside tolerance.
func Gt(a, b float64) bool {
	return a > b && !close(a, b)
}

// Lte reports a <= b within tolerance.
func Lte(a, b float64) bool {
	return a <= b || close(a, b)
}

// Gte reports a >= b within tolerance.
func Gte(a, b float64) bool {
	return a >= b || close(a, b)
}

// Sandwiched reports a <= b < c under tolerant comparison. Used for
// half-open interval membership when slicing tracks by beat range.
func Sandwiched(a, b, c float64) bool {
	return Lte(a, b) && Lt(b, c)
}

// SecondsPerBeat converts beats-per-minute to seconds per beat.
func SecondsPerBeat(bpm float64) float64 {
	return 60.0 / bpm
}

// ClampSorted returns indices p and q into the sorted slice li such that
// everything at and right of p is >= a and everything left of q is < b.
func ClampSorted(li []float64, a, b float64) (int, int) {
	p, q := 0, 0
	pSet, qSet := false, false
	for i, val := range li {
		if !pSet && Lte(a, val) {
			pSet = true
			p = i
			q = len(li)
		}
		if !qSet && Lte(b, val) {
			qSet = true
			q = i
		}
		if pSet && qSet {
			break
		}
	}
	if !pSet {
		// Every element is below a; both halves are empty.
		return len(li), len(li)
	}
	return p, q
}
