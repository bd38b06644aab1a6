// Package bars splits a song into a sequence of self-contained bars whose
// boundaries follow the time-signature changes, and reassembles them. A Bar
// is expressed in quarter-note-equivalent beats with beat 0 at the bar
// start, so per-bar editing never needs to know the surrounding meter.
package bars

import (
	"math"
	"sort"

	"github.com/cbegin/midishape-go/internal/song"
	"github.com/cbegin/midishape-go/internal/timing"
)

// Bar is one measure. Tracks hold only the notes whose onset falls inside
// the bar, shifted to bar-relative positions and rescaled by the meter's
// squish factor. TempoChanges are the changes declared inside the bar,
// shifted and scaled the same way. StartingTempo is the (scaled) tempo in
// effect as the bar begins, carried over from the previous bar.
type Bar struct {
	Tracks        []song.Track
	TimeSignature song.TimeSignature
	TempoChanges  []song.TempoChange
	StartingTempo float64
}

// Generate decomposes s into bars starting at beat 0. Signature change
// positions are rounded to the nearest integer beat first: a change
// declared mid-bar takes effect at the next bar boundary, and when several
// changes round into the same bar the last one governs. Iteration runs one
// bar past the song length so boundary rounding cannot drop the final bar.
func Generate(s *song.Song) []Bar {
	sigs := make([]song.TimeSignature, len(s.TimeSignatureChanges))
	copy(sigs, s.TimeSignatureChanges)
	sort.SliceStable(sigs, func(i, j int) bool { return sigs[i].Beat < sigs[j].Beat })

	tempos := make([]song.TempoChange, len(s.TempoChanges))
	copy(tempos, s.TempoChanges)
	sort.SliceStable(tempos, func(i, j int) bool { return tempos[i].Beat < tempos[j].Beat })

	length := float64(s.Length())
	active := song.FourFour()
	sigIdx := 0
	currentBPM := float64(song.DefaultBPM)

	var out []Bar
	cur := 0.0
	for timing.Lt(cur, length+1) {
		for sigIdx < len(sigs) && timing.Lte(math.Round(sigs[sigIdx].Beat), cur) {
			// A meter with a zero numerator or denominator has no bar
			// length; such signatures are skipped so the cursor always
			// advances.
			if sigs[sigIdx].Numerator > 0 && sigs[sigIdx].Denominator > 0 {
				active = sigs[sigIdx]
			}
			sigIdx++
		}
		end := cur + active.BarLength()
		squish := active.SquishFactor()

		bar := Bar{
			TimeSignature: song.TimeSignature{
				Numerator:   active.Numerator,
				Denominator: active.Denominator,
			},
			StartingTempo: currentBPM * squish,
		}
		for _, t := range s.Tracks {
			bar.Tracks = append(bar.Tracks, t.SliceWithTimeSignature(cur, end, active))
		}
		for _, tc := range tempos {
			if timing.Sandwiched(cur, tc.Beat, end) {
				bar.TempoChanges = append(bar.TempoChanges, song.TempoChange{
					Beat: (tc.Beat - cur) * squish,
					BPM:  tc.BPM * squish,
				})
				currentBPM = tc.BPM
			}
		}
		out = append(out, bar)
		cur = end
	}
	return out
}

// Reassemble walks bars in order, un-scales and re-offsets each bar's
// contents by the accumulated bar lengths, and concatenates note lists per
// track index. It is the left inverse of Generate up to the rounding
// already applied at signature boundaries. The channel-instrument map is
// not part of a Bar; callers carry it over from the source song.
func Reassemble(bs []Bar) *song.Song {
	s := &song.Song{ChannelInstrument: make(map[int]int)}
	byIndex := make(map[int]*song.Track)
	var indexOrder []int

	offset := 0.0
	haveSig := false
	var lastSig song.TimeSignature
	for _, b := range bs {
		squish := b.TimeSignature.SquishFactor()
		for _, bt := range b.Tracks {
			tr, ok := byIndex[bt.Index]
			if !ok {
				tr = &song.Track{Index: bt.Index, Name: bt.Name}
				byIndex[bt.Index] = tr
				indexOrder = append(indexOrder, bt.Index)
			}
			part := bt.Clone()
			part.Scale(1 / squish)
			part.Offset(offset)
			tr.Notes = append(tr.Notes, part.Notes...)
		}
		for _, tc := range b.TempoChanges {
			s.TempoChanges = append(s.TempoChanges, song.TempoChange{
				Beat: tc.Beat/squish + offset,
				BPM:  tc.BPM / squish,
			})
		}
		if !haveSig || b.TimeSignature.Numerator != lastSig.Numerator || b.TimeSignature.Denominator != lastSig.Denominator {
			s.TimeSignatureChanges = append(s.TimeSignatureChanges, song.TimeSignature{
				Numerator:   b.TimeSignature.Numerator,
				Denominator: b.TimeSignature.Denominator,
				Beat:        offset,
			})
			lastSig = b.TimeSignature
			haveSig = true
		}
		offset += b.TimeSignature.BarLength()
	}

	sort.Ints(indexOrder)
	for _, idx := range indexOrder {
		s.Tracks = append(s.Tracks, *byIndex[idx])
	}
	return s
}
