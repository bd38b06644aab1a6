package timing

import (
	"math"
	"testing"
)

func TestSwingKnownPoints(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{0.25, 1.0 / 3.0},
		{0.5, 2.0 / 3.0},
		{0.75, 5.0 / 6.0},
		{1, 1},
		{1.5, 1 + 2.0/3.0},
		{4, 4},
	}
	for _, c := range cases {
		if got := ToSwing(c.in, 1); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("ToSwing(%v, 1) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSwingRoundTrip(t *testing.T) {
	mults := []float64{0.5, 1, 2, 3}
	for _, m := range mults {
		for b := 0.0; b < 8.0; b += 0.113 {
			got := FromSwing(ToSwing(b, m), m)
			if math.Abs(got-b) > 1e-9 {
				t.Errorf("FromSwing(ToSwing(%v, %v)) = %v", b, m, got)
			}
		}
	}
}

func TestSwingMonotonic(t *testing.T) {
	prev := math.Inf(-1)
	for b := 0.0; b < 8.0; b += 0.01 {
		got := ToSwing(b, 2)
		if got <= prev {
			t.Fatalf("ToSwing not increasing at beat %v: %v <= %v", b, got, prev)
		}
		prev = got
	}
}

func TestSwingMultiplierRescalesUnit(t *testing.T) {
	// With mult=2 the midpoint of an eighth note (beat 0.25) should swing
	// the way beat 0.5 does with mult=1, scaled back down.
	want := ToSwing(0.5, 1) / 2
	if got := ToSwing(0.25, 2); math.Abs(got-want) > 1e-9 {
		t.Errorf("ToSwing(0.25, 2) = %v, want %v", got, want)
	}
}
