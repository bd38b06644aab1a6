package filters

import (
	"fmt"

	"github.com/cbegin/midishape-go/internal/song"
	"github.com/cbegin/midishape-go/internal/timing"
)

// NewSwing returns a filter that pushes every note onto the swung timeline.
// mult rescales the swing unit: 1 swings quarter notes, 2 swings eighths.
// The curve is non-linear, so both ends of a note are mapped and the
// duration is the difference; scaling only the onset would let durations
// drift against the grid.
func NewSwing(mult float64) (Filter, error) {
	return newSwingFilter(mult, timing.ToSwing)
}

// NewDeswing returns the inverse filter of NewSwing for the same mult.
func NewDeswing(mult float64) (Filter, error) {
	return newSwingFilter(mult, timing.FromSwing)
}

func newSwingFilter(mult float64, curve func(beat, mult float64) float64) (Filter, error) {
	if mult <= 0 {
		return nil, fmt.Errorf("filters: swing multiplier must be positive, got %v", mult)
	}
	return func(s *song.Song) (*song.Song, error) {
		for ti := range s.Tracks {
			t := &s.Tracks[ti]
			for ni := range t.Notes {
				n := &t.Notes[ni]
				start := curve(n.Beat, mult)
				end := curve(n.Beat+n.Duration, mult)
				n.Beat = start
				n.Duration = end - start
			}
		}
		return s, nil
	}, nil
}
