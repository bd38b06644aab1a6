package timing

import "math"

// The swing curve is a piecewise-linear bijection on one unit beat: the
// first half of the beat is stretched by 4/3 (so beat 0.5 lands on 2/3)
// and the second half is compressed to fit the remainder. Both halves are
// strictly increasing, so the map is invertible.

// ToSwing maps a straight beat position to its swung position. mult rescales
// what counts as one beat for swing purposes: mult=2 swings eighth notes
// instead of quarters. mult must be positive; callers validate.
func ToSwing(beat, mult float64) float64 {
	return swingUnit(beat*mult) / mult
}

// FromSwing is the exact inverse of ToSwing for the same mult.
func FromSwing(beat, mult float64) float64 {
	return unswingUnit(beat*mult) / mult
}

func swingUnit(b float64) float64 {
	whole, frac := math.Floor(b), b-math.Floor(b)
	if frac < 0.5 {
		frac = frac * 4.0 / 3.0
	} else {
		frac = 2.0/3.0 + (frac-0.5)*2.0/3.0
	}
	return whole + frac
}

func unswingUnit(b float64) float64 {
	whole, frac := math.Floor(b), b-math.Floor(b)
	if frac < 2.0/3.0 {
		frac = frac * 3.0 / 4.0
	} else {
		frac = 0.5 + (frac-2.0/3.0)*3.0/2.0
	}
	return whole + frac
}
